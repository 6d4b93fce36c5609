package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/internal/repository"
)

// Config carries the circulation policy knobs. The zero value is not usable;
// start from DefaultConfig.
type Config struct {
	BorrowDays            int `envconfig:"CIRCULATION_BORROW_DAYS" default:"14"`
	AssignmentWindowDays  int `envconfig:"CIRCULATION_ASSIGNMENT_WINDOW_DAYS" default:"3"`
	MaxActiveReservations int `envconfig:"CIRCULATION_MAX_ACTIVE_RESERVATIONS" default:"3"`
	LostThresholdDays     int `envconfig:"CIRCULATION_LOST_THRESHOLD_DAYS" default:"14"`
	ReminderLeadDays      int `envconfig:"CIRCULATION_REMINDER_LEAD_DAYS" default:"2"`
}

func DefaultConfig() Config {
	return Config{
		BorrowDays:            14,
		AssignmentWindowDays:  3,
		MaxActiveReservations: 3,
		LostThresholdDays:     14,
		ReminderLeadDays:      2,
	}
}

// Notifier is the notification collaborator. Implementations live outside the
// engine; delivery failures are logged by the caller and never abort the
// owning state transition.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res model.Reservation) error
	ReservationAssigned(ctx context.Context, res model.Reservation, copy model.Copy) error
	PickupConfirmed(ctx context.Context, res model.Reservation, b model.Borrowing) error
	ReturnConfirmed(ctx context.Context, b model.Borrowing) error
	DueSoon(ctx context.Context, b model.Borrowing) error
	Overdue(ctx context.Context, b model.Borrowing) error
}

type Service struct {
	log      *zap.Logger
	repo     repository.Repository
	notifier Notifier
	metadata MetadataClient
	cfg      Config

	// now is swappable in tests
	now func() time.Time
}

func NewService(repo repository.Repository, notifier Notifier, cfg Config, log *zap.Logger) *Service {
	return &Service{
		log:      log,
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithMetadata plugs in the external catalog client used by ISBN import.
func (s *Service) WithMetadata(mc MetadataClient) *Service {
	s.metadata = mc
	return s
}

// WithClock replaces the service clock. Test helper.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// notify runs one notifier call and swallows the error: notification delivery
// never rolls back a committed transition.
func (s *Service) notify(event string, fn func() error) {
	if err := fn(); err != nil {
		s.log.Warn("notify failed", zap.String("event", event), zap.Error(err))
	}
}

func (s *Service) audit(ctx context.Context, repo repository.Repository, reservationID *int64, action, details string) {
	entry := model.LogEntry{
		ReservationID: reservationID,
		Action:        action,
		ActionDate:    s.now(),
		Details:       details,
	}
	if err := repo.AppendLog(ctx, entry); err != nil {
		s.log.Error("audit append", zap.String("action", action), zap.Error(err))
	}
}
