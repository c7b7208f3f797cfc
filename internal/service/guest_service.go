// Package service runs guest operations inside a unit of work. Each call
// opens exactly one unit of work, commits it when the repository call
// succeeds and rolls it back otherwise.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iliyamo/wedding-rsvp/internal/database"
	"github.com/iliyamo/wedding-rsvp/internal/model"
	"github.com/iliyamo/wedding-rsvp/internal/queue"
	"github.com/iliyamo/wedding-rsvp/internal/repository"
)

// ErrPreconditionFailed is returned by a ReplaceGuest precondition that
// rejects the stored guest. Nothing is written when it occurs.
var ErrPreconditionFailed = errors.New("precondition failed")

// UnitOfWork is one transaction the repository issues calls through.
type UnitOfWork interface {
	repository.Executor
	Commit() error
	Rollback() error
}

// UnitOfWorkFactory opens a fresh unit of work for one operation.
type UnitOfWorkFactory func(ctx context.Context) (UnitOfWork, error)

// Repository is the guest store as seen by the service.
type Repository interface {
	GetGuest(ctx context.Context, id uint64) (model.Guest, error)
	LockGuest(ctx context.Context, id uint64) (model.Guest, error)
	GetGuests(ctx context.Context, q *model.GuestSearchQuery) ([]model.Guest, error)
	InsertGuest(ctx context.Context, g model.Guest) (uint64, error)
	UpdateGuest(ctx context.Context, g model.Guest) error
	DeleteGuest(ctx context.Context, id uint64) error
}

// RepositoryFactory binds a Repository to the active unit of work.
type RepositoryFactory func(exec repository.Executor) Repository

// EventPublisher receives RSVP events after a write commits.
type EventPublisher interface {
	PublishReservationSubmitted(ctx context.Context, ev queue.ReservationSubmittedEvent) error
}

// FromDatabase adapts a database.UnitOfWorkFactory.
func FromDatabase(f *database.UnitOfWorkFactory) UnitOfWorkFactory {
	return func(ctx context.Context) (UnitOfWork, error) {
		uow, err := f.Create(ctx)
		if err != nil {
			return nil, err
		}
		return uow, nil
	}
}

// GuestRepositories binds a repository.GuestRepo to each unit of work.
func GuestRepositories(exec repository.Executor) Repository {
	return repository.NewGuestRepo(exec)
}

// GuestPage is one page of a guest search together with the number of
// guests matching the filter without paging.
type GuestPage struct {
	Guests []model.Guest
	Total  int
}

// GuestService implements the guest use cases.
type GuestService struct {
	newUnitOfWork UnitOfWorkFactory
	newRepository RepositoryFactory
	publisher     EventPublisher
	logger        zerolog.Logger
	now           func() time.Time
}

// NewGuestService returns a GuestService. publisher may be nil, in which
// case no RSVP events are sent.
func NewGuestService(uow UnitOfWorkFactory, repo RepositoryFactory, publisher EventPublisher, logger zerolog.Logger) *GuestService {
	return &GuestService{
		newUnitOfWork: uow,
		newRepository: repo,
		publisher:     publisher,
		logger:        logger.With().Str("component", "guest-service").Logger(),
		now:           time.Now,
	}
}

// GetGuest returns the guest with id. A missing guest yields an error
// matching repository.ErrNotFound.
func (s *GuestService) GetGuest(ctx context.Context, id uint64) (model.Guest, error) {
	var g model.Guest
	err := s.run(ctx, "get guest", func(repo Repository) error {
		var err error
		g, err = repo.GetGuest(ctx, id)
		return err
	})
	return g, err
}

// GetGuests returns the guests matching q. A nil q returns every guest.
func (s *GuestService) GetGuests(ctx context.Context, q *model.GuestSearchQuery) ([]model.Guest, error) {
	var guests []model.Guest
	err := s.run(ctx, "get guests", func(repo Repository) error {
		var err error
		guests, err = repo.GetGuests(ctx, q)
		return err
	})
	return guests, err
}

// SearchGuests returns the page selected by q and the size of the full
// result set behind it, both read in the same unit of work.
func (s *GuestService) SearchGuests(ctx context.Context, q *model.GuestSearchQuery) (GuestPage, error) {
	var page GuestPage
	err := s.run(ctx, "search guests", func(repo Repository) error {
		guests, err := repo.GetGuests(ctx, q)
		if err != nil {
			return err
		}
		page.Guests = guests
		if q == nil || (q.Skip == nil && q.Take == nil) {
			page.Total = len(guests)
			return nil
		}
		all, err := repo.GetGuests(ctx, q.WithoutPaging())
		if err != nil {
			return err
		}
		page.Total = len(all)
		return nil
	})
	return page, err
}

// InsertGuest stores g and returns it with its assigned id. A blank invite
// code is replaced with a generated one.
func (s *GuestService) InsertGuest(ctx context.Context, g model.Guest) (model.Guest, error) {
	g = g.Clone()
	if strings.TrimSpace(g.InviteCode) == "" {
		g.InviteCode = NewInviteCode()
	}
	err := s.run(ctx, "insert guest", func(repo Repository) error {
		id, err := repo.InsertGuest(ctx, g)
		if err != nil {
			return err
		}
		return g.AssignID(id)
	})
	if err != nil {
		return model.Guest{}, err
	}
	s.publish(ctx, g)
	return g, nil
}

// UpdateGuest replaces the stored guest g.ID with g.
func (s *GuestService) UpdateGuest(ctx context.Context, g model.Guest) error {
	return s.ReplaceGuest(ctx, g, nil)
}

// ReplaceGuest replaces the stored guest g.ID with g after precondition,
// when non-nil, accepts the stored state. The stored guest is read with
// row locks, so the check and the write see the same version. A rejecting
// precondition should return an error wrapping ErrPreconditionFailed.
//
// An RSVP event is published only when the reservation is new, its
// attendance changed, or an explicit submission time differs from the
// stored one.
func (s *GuestService) ReplaceGuest(ctx context.Context, g model.Guest, precondition func(current model.Guest) error) error {
	var current model.Guest
	err := s.run(ctx, "update guest", func(repo Repository) error {
		var err error
		if current, err = repo.LockGuest(ctx, g.ID); err != nil {
			return err
		}
		if precondition != nil {
			if err := precondition(current); err != nil {
				return err
			}
		}
		return repo.UpdateGuest(ctx, g)
	})
	if err != nil {
		return err
	}
	if reservationChanged(current.Reservation, g.Reservation) {
		s.publish(ctx, g)
	}
	return nil
}

func reservationChanged(stored, desired *model.Reservation) bool {
	switch {
	case desired == nil:
		return false
	case stored == nil:
		return true
	case stored.IsAttending != desired.IsAttending:
		return true
	}
	return !desired.SubmittedAt.IsZero() && !desired.SubmittedAt.Equal(stored.SubmittedAt)
}

// DeleteGuest removes the guest with id and its reservation.
func (s *GuestService) DeleteGuest(ctx context.Context, id uint64) error {
	return s.run(ctx, "delete guest", func(repo Repository) error {
		return repo.DeleteGuest(ctx, id)
	})
}

// run executes fn against a repository bound to a fresh unit of work and
// commits or rolls back depending on its result. Not-found outcomes are
// logged at info level and keep their *repository.NotFoundError in the
// chain; everything else is logged as a failure.
func (s *GuestService) run(ctx context.Context, op string, fn func(Repository) error) error {
	uow, err := s.newUnitOfWork(ctx)
	if err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("open unit of work failed")
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := fn(s.newRepository(uow)); err != nil {
		if rbErr := uow.Rollback(); rbErr != nil {
			s.logger.Error().Err(rbErr).Str("op", op).Msg("rollback failed")
		}
		var nf *repository.NotFoundError
		switch {
		case errors.As(err, &nf):
			s.logger.Info().Str("op", op).Uint64("guest_id", nf.ID).Msg("guest not found")
		case errors.Is(err, ErrPreconditionFailed):
			s.logger.Info().Err(err).Str("op", op).Msg("precondition failed")
		default:
			s.logger.Error().Err(err).Str("op", op).Msg("store failure")
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := uow.Commit(); err != nil {
		s.logger.Error().Err(err).Str("op", op).Msg("commit failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (s *GuestService) publish(ctx context.Context, g model.Guest) {
	if s.publisher == nil || g.Reservation == nil {
		return
	}
	ev := queue.NewReservationSubmittedEvent(g, s.now())
	if err := s.publisher.PublishReservationSubmitted(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Uint64("guest_id", g.ID).Msg("rsvp event not published")
	}
}

// NewInviteCode returns an eight character upper-case code derived from a
// random UUID.
func NewInviteCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}
