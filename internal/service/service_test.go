package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const processA = "11111111-1111-1111-1111-111111111111"
const processB = "22222222-2222-2222-2222-222222222222"

var fixedNow = time.Date(2024, 5, 6, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store       *repository.MemoryStore
	stages      *StageService
	transitions *TransitionService
	mover       *MoverService
	reorder     *ReorderService
	dispatcher  events.Dispatcher
	events      *eventLog
	metrics     *observability.Metrics
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) record(_ context.Context, event events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

func (l *eventLog) types() []events.EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]events.EventType, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	dispatcher := events.NewInMemoryDispatcher()
	log := &eventLog{}
	metrics := observability.NewMetrics()
	for _, eventType := range events.MovementEventTypes {
		dispatcher.Subscribe(eventType, log.record)
	}

	transitions := NewTransitionService(TransitionDependencies{
		StageRepo:      store.Stages(),
		TransitionRepo: store.Transitions(),
		Transactor:     store,
		Logger:         logger,
	})
	return &fixture{
		store:       store,
		transitions: transitions,
		dispatcher:  dispatcher,
		events:      log,
		metrics:     metrics,
		stages: NewStageService(StageDependencies{
			StageRepo:   store.Stages(),
			TicketRepo:  store.Tickets(),
			Transitions: transitions,
			Transactor:  store,
			Logger:      logger,
			Config:      config.WorkflowConfig{DefaultPageSize: 2, MaxPageSize: 3},
		}),
		mover: NewMoverService(MoverDependencies{
			StageRepo:   store.Stages(),
			TicketRepo:  store.Tickets(),
			CommentRepo: store.Comments(),
			Transitions: transitions,
			Transactor:  store,
			Dispatcher:  dispatcher,
			Metrics:     metrics,
			Logger:      logger,
			Clock:       func() time.Time { return fixedNow },
		}),
		reorder: NewReorderService(ReorderDependencies{
			StageRepo:  store.Stages(),
			Transactor: store,
			Logger:     logger,
		}),
	}
}

func (f *fixture) createStage(t *testing.T, input StageCreateInput) *domain.Stage {
	t.Helper()
	if input.ProcessID == "" {
		input.ProcessID = processA
	}
	stage, err := f.stages.Create(context.Background(), input)
	require.NoError(t, err)
	return stage
}

func (f *fixture) seedTicket(t *testing.T, stage *domain.Stage) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{ProcessID: stage.ProcessID, Title: "Printer jam", CurrentStageID: stage.ID}
	require.NoError(t, f.store.SeedTicket(ticket))
	return ticket
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
