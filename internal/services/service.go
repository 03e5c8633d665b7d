package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/lojf/gymclass/internal/apperr"
	"github.com/lojf/gymclass/internal/db"
	"github.com/lojf/gymclass/internal/models"
)

type Options struct {
	Now              func() time.Time
	Loc              *time.Location // club calendar
	LockTimeout      time.Duration  // bound on a single booking transaction
	MaxExpansionDays int
}

// Service owns every state change of the booking engine.
type Service struct {
	db   *gorm.DB
	opts Options
}

func New(gdb *gorm.DB, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Loc == nil {
		opts.Loc = time.UTC
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 3 * time.Second
	}
	if opts.MaxExpansionDays <= 0 {
		opts.MaxExpansionDays = 366
	}
	return &Service{db: gdb, opts: opts}
}

// now is always UTC so stored instants compare correctly as text in SQLite.
func (s *Service) now() time.Time { return s.opts.Now().UTC() }

func (s *Service) today() time.Time { return models.Today(s.now(), s.opts.Loc) }

// Today is the current club-local calendar day.
func (s *Service) Today() time.Time { return s.today() }

// Ping checks that the store answers.
func (s *Service) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Location is the club calendar the service evaluates dates in.
func (s *Service) Location() *time.Location { return s.opts.Loc }

// transaction runs fn in one database transaction and classifies storage errors.
func (s *Service) transaction(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	err := s.db.WithContext(ctx).Transaction(fn)
	return classify(op, err)
}

// classify keeps domain errors as they are and maps storage failures onto codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Wrap(apperr.CodeNotFound, op+": not found", err)
	}
	if db.IsContention(err) {
		return apperr.Wrap(apperr.CodeContention, op+": resource busy, try again", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func notFound(what string, id uint) error {
	return apperr.New(apperr.CodeNotFound, fmt.Sprintf("%s %d not found", what, id))
}

func invalidArg(format string, args ...any) error {
	return apperr.New(apperr.CodeInvalidArgument, fmt.Sprintf(format, args...))
}

// first loads one row by id or returns a NotFound domain error.
func first[T any](tx *gorm.DB, what string, id uint) (T, error) {
	var row T
	err := tx.First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, notFound(what, id)
	}
	return row, err
}
