package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/workflow-service/internal/domain"
)

func newStage(t *testing.T, store *MemoryStore, processID, name string, order int) *domain.Stage {
	t.Helper()
	stage := &domain.Stage{ProcessID: processID, Name: name, OrderIndex: order, Priority: order}
	require.NoError(t, store.Stages().Create(context.Background(), stage))
	return stage
}

func TestMemoryStoreStageNameUniqueness(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	root := newStage(t, store, "p1", "Review", 1)

	err := store.Stages().Create(ctx, &domain.Stage{ProcessID: "p1", Name: "review"})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	// same name in another process or under a parent is a different sibling set
	require.NoError(t, store.Stages().Create(ctx, &domain.Stage{ProcessID: "p2", Name: "Review"}))
	require.NoError(t, store.Stages().Create(ctx, &domain.Stage{ProcessID: "p1", Name: "Review", ParentStageID: &root.ID}))

	exists, err := store.Stages().NameExists(ctx, "p1", nil, "REVIEW", root.ID)
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = store.Stages().NameExists(ctx, "p1", nil, "REVIEW", "")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStoreListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newStage(t, store, "p1", "Todo", 3)
	newStage(t, store, "p1", "Doing", 1)
	done := &domain.Stage{ProcessID: "p1", Name: "Done", OrderIndex: 2, Priority: 2, IsFinal: true, Description: "finished work"}
	require.NoError(t, store.Stages().Create(ctx, done))
	newStage(t, store, "p2", "Other", 1)

	items, total, err := store.Stages().List(ctx, StageFilter{ProcessID: "p1", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "Doing", items[0].Name)
	assert.Equal(t, "Done", items[1].Name)

	items, total, err = store.Stages().List(ctx, StageFilter{ProcessID: "p1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 1)
	assert.Equal(t, "Todo", items[0].Name)

	search := "FINISHED"
	items, total, err = store.Stages().List(ctx, StageFilter{ProcessID: "p1", SearchTerm: &search})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, done.ID, items[0].ID)

	final := true
	finals, err := store.Stages().ListFinal(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, finals, 1)
	items, _, err = store.Stages().List(ctx, StageFilter{ProcessID: "p1", IsFinal: &final})
	require.NoError(t, err)
	assert.Equal(t, finals, items)
}

func TestMemoryStoreDeleteConstraints(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newStage(t, store, "p1", "A", 1)
	b := newStage(t, store, "p1", "B", 2)
	c := newStage(t, store, "p1", "C", 3)

	require.NoError(t, store.Transitions().Create(ctx, &domain.Transition{FromStageID: a.ID, ToStageID: b.ID, OrderIndex: 1}))
	require.NoError(t, store.Transitions().Create(ctx, &domain.Transition{FromStageID: b.ID, ToStageID: c.ID, OrderIndex: 1}))
	err := store.Transitions().Create(ctx, &domain.Transition{FromStageID: a.ID, ToStageID: b.ID})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	require.NoError(t, store.SeedTicket(&domain.Ticket{ProcessID: "p1", CurrentStageID: c.ID}))
	assert.ErrorIs(t, store.Stages().Delete(ctx, "p1", c.ID), ErrForeignKeyViolation)
	assert.ErrorIs(t, store.Stages().Delete(ctx, "p2", b.ID), pgx.ErrNoRows)

	require.NoError(t, store.Stages().Delete(ctx, "p1", b.ID))
	ok, err := store.Transitions().Exists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	edges, err := store.Transitions().ListBySource(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)
}

func TestMemoryStoreWithinTxRollsBack(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newStage(t, store, "p1", "A", 1)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, store.Stages().UpdateOrder(ctx, "p1", a.ID, 9, 9))
		newStage(t, store, "p1", "B", 2)
		return store.WithinTx(ctx, func(context.Context) error { return boom })
	})
	require.ErrorIs(t, err, boom)

	got, err := store.Stages().GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.OrderIndex)
	all, err := store.Stages().ListByProcess(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStoreTicketConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	a := newStage(t, store, "p1", "A", 1)
	b := newStage(t, store, "p1", "B", 2)
	ticket := &domain.Ticket{ProcessID: "p1", CurrentStageID: a.ID}
	require.NoError(t, store.SeedTicket(ticket))

	moved := *ticket
	moved.CurrentStageID = b.ID
	assert.ErrorIs(t, store.Tickets().UpdateStage(ctx, &moved, &b.ID), ErrStaleTicket)
	require.NoError(t, store.Tickets().UpdateStage(ctx, &moved, &a.ID))

	got, err := store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.CurrentStageID)

	count, err := store.Tickets().CountByStage(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = store.Tickets().GetByID(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}

func TestMemoryStoreOrderSlots(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	newStage(t, store, "p1", "A", 2)
	newStage(t, store, "p1", "B", 5)

	order, priority := 2, 3
	slots, err := store.Stages().OrderSlots(ctx, "p1", &order, &priority)
	require.NoError(t, err)
	assert.Equal(t, 5, slots.MaxOrderIndex)
	assert.Equal(t, 5, slots.MaxPriority)
	assert.True(t, slots.OrderTaken)
	assert.False(t, slots.PriorityTaken)
}
