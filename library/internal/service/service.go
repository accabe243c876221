package service

import (
	"time"

	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/library/internal/repository"
)

// EventPublisher emits loan lifecycle events. Best effort: the service
// never fails an operation over a publish.
type EventPublisher interface {
	PublishLoanEvent(ev model.LoanEvent)
}

type noopPublisher struct{}

func (noopPublisher) PublishLoanEvent(model.LoanEvent) {}

type Service struct {
	repo   repository.Repository
	events EventPublisher
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo repository.Repository, events EventPublisher, log *zap.Logger) *Service {
	if events == nil {
		events = noopPublisher{}
	}
	return &Service{
		repo:   repo,
		events: events,
		log:    log,
		now:    time.Now,
	}
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
