package main // Entry point package

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iliyamo/wedding-rsvp/internal/config"
	"github.com/iliyamo/wedding-rsvp/internal/database"
	"github.com/iliyamo/wedding-rsvp/internal/handler"
	"github.com/iliyamo/wedding-rsvp/internal/logging"
	"github.com/iliyamo/wedding-rsvp/internal/metadata"
	"github.com/iliyamo/wedding-rsvp/internal/middleware"
	"github.com/iliyamo/wedding-rsvp/internal/queue"
	"github.com/iliyamo/wedding-rsvp/internal/router"
	"github.com/iliyamo/wedding-rsvp/internal/service"
	"github.com/iliyamo/wedding-rsvp/internal/utils"
)

var (
	migrateOnStart bool
	hashCost       int

	rootCmd = &cobra.Command{
		Use:           "wedding-rsvp",
		Short:         "Guest list and RSVP API",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (default command)",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Create the tables and stored procedures, then exit",
		RunE:  runMigrate,
	}

	hashPasswordCmd = &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH (reads stdin when no argument is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runHashPassword,
	}
)

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply the schema before serving")
	}
	hashPasswordCmd.Flags().IntVar(&hashCost, "cost", 0, "bcrypt cost (default BCRYPT_COST or 12)")
	rootCmd.AddCommand(serveCmd, migrateCmd, hashPasswordCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := logging.Default(cfg.LogLevel, cfg.Env)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if migrateOnStart {
		if err := database.Migrate(ctx, db, logger); err != nil {
			return err
		}
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	// Keep the interface nil when no broker is configured.
	var publisher service.EventPublisher
	if cfg.RabbitMQURL != "" {
		publisher = queue.NewPublisher(cfg.RabbitMQURL, logger)
	}
	svc := service.NewGuestService(
		service.FromDatabase(database.NewUnitOfWorkFactory(db)),
		service.GuestRepositories,
		publisher,
		logger,
	)

	if cfg.ConsumerEnabled {
		go func() {
			err := queue.StartReservationConsumer(ctx, cfg.RabbitMQURL, cfg.RSVPLogPath, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("rsvp consumer stopped")
			}
		}()
	}

	limits := config.LoadRateLimitConfig()
	e := newEcho(logger, rdb, limits)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, logger), cfg.JWTSecret,
		middleware.NewTokenBucket(limits.ForWrites(), rdb))
	router.RegisterGuests(e, handler.NewGuestHandler(svc, metadata.NewMemoryStore(), logger), router.GuestDeps{
		JWTSecret: cfg.JWTSecret,
		Cache:     config.LoadCacheConfig(),
		RateLimit: limits,
		Redis:     rdb,
		Logger:    logger,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// newEcho builds the server with the global middleware chain: request
// logging first so throttled and panicking requests are logged too, then
// panic recovery, then rate limiting.
func newEcho(logger zerolog.Logger, rdb *redis.Client, limits config.RateLimitConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestLogger(logger))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error().Err(err).Str("path", c.Path()).Bytes("stack", stack).Msg("panic recovered")
			return err
		},
	}))
	e.Use(middleware.NewTokenBucket(limits, rdb))
	return e
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Load()
	logger := logging.Default(cfg.LogLevel, cfg.Env)

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return database.Migrate(cmd.Context(), db, logger)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var plain string
	if len(args) == 1 {
		plain = args[0]
	} else {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		plain = strings.TrimRight(line, "\r\n")
	}
	if plain == "" {
		return errors.New("empty password")
	}
	cost := hashCost
	if cost == 0 {
		cost = config.LoadBcryptCost()
	}
	hash, err := utils.HashPassword(plain, cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), hash)
	return nil
}
