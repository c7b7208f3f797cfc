package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"

    "github.com/joho/godotenv"
    "github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values. Each field corresponds to
// an environment variable.
type Config struct {
    Env               string // application environment (e.g. "dev", "prod")
    Port              string // HTTP port to listen on
    LogLevel          string // zerolog level name, "info" by default
    DBUser            string // database username
    DBPass            string // database password (optional)
    DBHost            string // database host address
    DBPort            string // database port number
    DBName            string // database name
    JWTSecret         string // secret used to sign JWTs
    AccessTTLMin      int    // access token time-to-live in minutes
    BcryptCost        int    // bcrypt cost used by the hash-password command
    AdminUser         string // login name of the RSVP administrator
    AdminPasswordHash string // bcrypt hash of the administrator password
    RabbitMQURL       string // broker for RSVP events; empty disables publishing
    ConsumerEnabled   bool   // run the RSVP log consumer inside the server
    RSVPLogPath       string // file the consumer appends RSVP lines to
}

// Load reads an optional .env file, then the environment, and returns a
// Config. Missing or malformed required variables are fatal.
func Load() Config {
    // A missing .env file is normal outside local development.
    _ = godotenv.Load()
    cfg, err := Parse()
    if err != nil {
        log.Fatal().Err(err).Msg("invalid configuration")
    }
    return cfg
}

// Parse builds a Config from the current environment and reports every
// missing or malformed required variable at once.
func Parse() (Config, error) {
    var errs []error
    must := func(key string) string {
        v, ok := os.LookupEnv(key)
        if !ok || strings.TrimSpace(v) == "" {
            errs = append(errs, fmt.Errorf("missing required env var: %s", key))
        }
        return v
    }
    mustInt := func(key string) int {
        s := must(key)
        if s == "" {
            return 0
        }
        n, err := strconv.Atoi(s)
        if err != nil {
            errs = append(errs, fmt.Errorf("invalid int for %s: %q", key, s))
        }
        return n
    }

    cfg := Config{
        Env:               must("APP_ENV"),
        Port:              must("APP_PORT"),
        LogLevel:          envStr("LOG_LEVEL", "info"),
        DBUser:            must("DB_USER"),
        DBPass:            os.Getenv("DB_PASS"),
        DBHost:            must("DB_HOST"),
        DBPort:            must("DB_PORT"),
        DBName:            must("DB_NAME"),
        JWTSecret:         must("JWT_SECRET"),
        AccessTTLMin:      mustInt("ACCESS_TOKEN_TTL_MIN"),
        BcryptCost:        bcryptCost(),
        AdminUser:         must("ADMIN_USER"),
        AdminPasswordHash: must("ADMIN_PASSWORD_HASH"),
        RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
        ConsumerEnabled:   envBool("RSVP_CONSUMER_ENABLED", false),
        RSVPLogPath:       envStr("RSVP_LOG_PATH", "logs/rsvp.log"),
    }
    if cfg.ConsumerEnabled && cfg.RabbitMQURL == "" {
        errs = append(errs, errors.New("RSVP_CONSUMER_ENABLED requires RABBITMQ_URL"))
    }
    if len(errs) > 0 {
        return Config{}, errors.Join(errs...)
    }
    return cfg, nil
}

// LoadBcryptCost returns BCRYPT_COST (default 12) without requiring the
// rest of the configuration. The hash-password command uses it.
func LoadBcryptCost() int {
    _ = godotenv.Load()
    return bcryptCost()
}

func bcryptCost() int { return envInt("BCRYPT_COST", 12) }
