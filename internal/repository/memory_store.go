package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/workflow"
)

// Constraint errors raised by MemoryStore where Postgres would reject a write.
var (
	ErrUniqueViolation     = errors.New("unique constraint violated")
	ErrForeignKeyViolation = errors.New("foreign key constraint violated")
)

// MemoryStore keeps stages, transitions, tickets and comments in memory and
// mirrors the schema constraints of the Postgres repositories. WithinTx
// serializes transactions and restores a snapshot when fn fails. It backs the
// service tests and local runs without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	stages      map[string]domain.Stage
	transitions map[string][]domain.Transition // key: from stage id
	tickets     map[string]domain.Ticket
	comments    map[string][]domain.TicketComment // key: ticket id

	now func() time.Time
}

type memTxKey struct{}

type memSnapshot struct {
	stages      map[string]domain.Stage
	transitions map[string][]domain.Transition
	tickets     map[string]domain.Ticket
	comments    map[string][]domain.TicketComment
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stages:      make(map[string]domain.Stage),
		transitions: make(map[string][]domain.Transition),
		tickets:     make(map[string]domain.Ticket),
		comments:    make(map[string][]domain.TicketComment),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Stages returns the stage repository view.
func (s *MemoryStore) Stages() StageRepository { return &memStageRepo{s: s} }

// Transitions returns the transition repository view.
func (s *MemoryStore) Transitions() TransitionRepository { return &memTransitionRepo{s: s} }

// Tickets returns the ticket repository view.
func (s *MemoryStore) Tickets() TicketRepository { return &memTicketRepo{s: s} }

// Comments returns the comment repository view.
func (s *MemoryStore) Comments() TicketCommentRepository { return &memCommentRepo{s: s} }

// WithinTx runs fn atomically with respect to other transactions.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// SeedTicket inserts a ticket as the external ticket layer would.
func (s *MemoryStore) SeedTicket(ticket *domain.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stages[ticket.CurrentStageID]; !ok {
		return fmt.Errorf("ticket current stage %q: %w", ticket.CurrentStageID, ErrForeignKeyViolation)
	}
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusActive
	}
	now := s.now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	s.tickets[ticket.ID] = *ticket
	return nil
}

func (s *MemoryStore) snapshot() memSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := memSnapshot{
		stages:      make(map[string]domain.Stage, len(s.stages)),
		transitions: make(map[string][]domain.Transition, len(s.transitions)),
		tickets:     make(map[string]domain.Ticket, len(s.tickets)),
		comments:    make(map[string][]domain.TicketComment, len(s.comments)),
	}
	for k, v := range s.stages {
		snap.stages[k] = cloneStage(v)
	}
	for k, v := range s.transitions {
		snap.transitions[k] = append([]domain.Transition(nil), v...)
	}
	for k, v := range s.tickets {
		snap.tickets[k] = v
	}
	for k, v := range s.comments {
		snap.comments[k] = append([]domain.TicketComment(nil), v...)
	}
	return snap
}

func (s *MemoryStore) restore(snap memSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages = snap.stages
	s.transitions = snap.transitions
	s.tickets = snap.tickets
	s.comments = snap.comments
}

func cloneStage(stage domain.Stage) domain.Stage {
	out := stage
	if stage.RequiredPermissions != nil {
		out.RequiredPermissions = append(make([]string, 0, len(stage.RequiredPermissions)), stage.RequiredPermissions...)
	}
	if stage.AutomationRules != nil {
		out.AutomationRules = append(make([]map[string]any, 0, len(stage.AutomationRules)), stage.AutomationRules...)
	}
	if stage.Settings != nil {
		out.Settings = make(map[string]any, len(stage.Settings))
		for k, v := range stage.Settings {
			out.Settings[k] = v
		}
	}
	out.AllowedTransitions = nil
	return out
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sortStages(stages []domain.Stage) {
	sort.SliceStable(stages, func(i, j int) bool {
		if stages[i].OrderIndex != stages[j].OrderIndex {
			return stages[i].OrderIndex < stages[j].OrderIndex
		}
		if stages[i].Priority != stages[j].Priority {
			return stages[i].Priority < stages[j].Priority
		}
		if !stages[i].CreatedAt.Equal(stages[j].CreatedAt) {
			return stages[i].CreatedAt.Before(stages[j].CreatedAt)
		}
		return stages[i].ID < stages[j].ID
	})
}

// --- stages ---

type memStageRepo struct{ s *MemoryStore }

func (r *memStageRepo) nameTaken(stage domain.Stage) bool {
	for _, existing := range r.s.stages {
		if existing.ID == stage.ID || existing.ProcessID != stage.ProcessID {
			continue
		}
		if sameParent(existing.ParentStageID, stage.ParentStageID) && workflow.SameName(existing.Name, stage.Name) {
			return true
		}
	}
	return false
}

func (r *memStageRepo) Create(_ context.Context, stage *domain.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if stage.ParentStageID != nil {
		if _, ok := r.s.stages[*stage.ParentStageID]; !ok {
			return fmt.Errorf("parent stage %q: %w", *stage.ParentStageID, ErrForeignKeyViolation)
		}
	}
	if stage.ID == "" {
		stage.ID = uuid.NewString()
	}
	if r.nameTaken(*stage) {
		return fmt.Errorf("stage name %q: %w", stage.Name, ErrUniqueViolation)
	}
	now := r.s.now()
	stage.CreatedAt = now
	stage.UpdatedAt = now
	r.s.stages[stage.ID] = cloneStage(*stage)
	return nil
}

func (r *memStageRepo) Update(_ context.Context, stage *domain.Stage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.stages[stage.ID]
	if !ok || existing.ProcessID != stage.ProcessID {
		return pgx.ErrNoRows
	}
	// process and parent are immutable through Update.
	next := cloneStage(*stage)
	next.ParentStageID = existing.ParentStageID
	next.CreatedAt = existing.CreatedAt
	if r.nameTaken(next) {
		return fmt.Errorf("stage name %q: %w", stage.Name, ErrUniqueViolation)
	}
	next.UpdatedAt = r.s.now()
	stage.UpdatedAt = next.UpdatedAt
	r.s.stages[stage.ID] = next
	return nil
}

func (r *memStageRepo) Delete(_ context.Context, processID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.stages[id]
	if !ok || existing.ProcessID != processID {
		return pgx.ErrNoRows
	}
	for _, ticket := range r.s.tickets {
		if ticket.CurrentStageID == id {
			return fmt.Errorf("stage %q referenced by ticket %q: %w", id, ticket.ID, ErrForeignKeyViolation)
		}
	}
	for _, stage := range r.s.stages {
		if stage.ParentStageID != nil && *stage.ParentStageID == id {
			return fmt.Errorf("stage %q has sub-stage %q: %w", id, stage.ID, ErrForeignKeyViolation)
		}
	}

	delete(r.s.stages, id)
	delete(r.s.transitions, id)
	for from, edges := range r.s.transitions {
		kept := edges[:0:0]
		for _, edge := range edges {
			if edge.ToStageID != id {
				kept = append(kept, edge)
			}
		}
		r.s.transitions[from] = kept
	}
	return nil
}

func (r *memStageRepo) GetByID(_ context.Context, id string) (*domain.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stage, ok := r.s.stages[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := cloneStage(stage)
	return &out, nil
}

func (r *memStageRepo) matching(processID string, keep func(domain.Stage) bool) []domain.Stage {
	var result []domain.Stage
	for _, stage := range r.s.stages {
		if stage.ProcessID != processID || !keep(stage) {
			continue
		}
		result = append(result, cloneStage(stage))
	}
	sortStages(result)
	return result
}

func (r *memStageRepo) List(_ context.Context, filter StageFilter) ([]domain.Stage, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	search := ""
	if filter.SearchTerm != nil {
		search = strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
	}
	result := r.matching(filter.ProcessID, func(stage domain.Stage) bool {
		if filter.RootsOnly && stage.ParentStageID != nil {
			return false
		}
		if !filter.RootsOnly && filter.ParentStageID != nil && !sameParent(stage.ParentStageID, filter.ParentStageID) {
			return false
		}
		if filter.IsInitial != nil && stage.IsInitial != *filter.IsInitial {
			return false
		}
		if filter.IsFinal != nil && stage.IsFinal != *filter.IsFinal {
			return false
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(stage.Name), search) &&
			!strings.Contains(strings.ToLower(stage.Description), search) {
			return false
		}
		return true
	})
	total := len(result)

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(result) {
			return []domain.Stage{}, total, nil
		}
		result = result[filter.Offset:]
	}
	if limit < len(result) {
		result = result[:limit]
	}
	return result, total, nil
}

func (r *memStageRepo) ListByProcess(_ context.Context, processID string) ([]domain.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.matching(processID, func(domain.Stage) bool { return true }), nil
}

func (r *memStageRepo) NameExists(_ context.Context, processID string, parentID *string, name, excludeID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, stage := range r.s.stages {
		if stage.ProcessID != processID || stage.ID == excludeID {
			continue
		}
		if sameParent(stage.ParentStageID, parentID) && workflow.SameName(stage.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memStageRepo) OrderSlots(_ context.Context, processID string, orderIndex, priority *int) (workflow.OrderSlots, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var slots workflow.OrderSlots
	for _, stage := range r.s.stages {
		if stage.ProcessID != processID {
			continue
		}
		if stage.OrderIndex > slots.MaxOrderIndex {
			slots.MaxOrderIndex = stage.OrderIndex
		}
		if stage.Priority > slots.MaxPriority {
			slots.MaxPriority = stage.Priority
		}
		if orderIndex != nil && stage.OrderIndex == *orderIndex {
			slots.OrderTaken = true
		}
		if priority != nil && stage.Priority == *priority {
			slots.PriorityTaken = true
		}
	}
	return slots, nil
}

func (r *memStageRepo) GetInitial(_ context.Context, processID string) (*domain.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stages := r.matching(processID, func(stage domain.Stage) bool { return stage.IsInitial })
	if len(stages) == 0 {
		return nil, pgx.ErrNoRows
	}
	return &stages[0], nil
}

func (r *memStageRepo) ListFinal(_ context.Context, processID string) ([]domain.Stage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.matching(processID, func(stage domain.Stage) bool { return stage.IsFinal }), nil
}

func (r *memStageRepo) CountChildren(_ context.Context, id string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, stage := range r.s.stages {
		if stage.ParentStageID != nil && *stage.ParentStageID == id {
			count++
		}
	}
	return count, nil
}

func (r *memStageRepo) UpdateOrder(_ context.Context, processID, id string, orderIndex, priority int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stage, ok := r.s.stages[id]
	if !ok || stage.ProcessID != processID {
		return pgx.ErrNoRows
	}
	stage.OrderIndex = orderIndex
	stage.Priority = priority
	stage.UpdatedAt = r.s.now()
	r.s.stages[id] = stage
	return nil
}

// --- transitions ---

type memTransitionRepo struct{ s *MemoryStore }

func (r *memTransitionRepo) Create(_ context.Context, transition *domain.Transition) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.stages[transition.FromStageID]; !ok {
		return fmt.Errorf("from stage %q: %w", transition.FromStageID, ErrForeignKeyViolation)
	}
	if _, ok := r.s.stages[transition.ToStageID]; !ok {
		return fmt.Errorf("to stage %q: %w", transition.ToStageID, ErrForeignKeyViolation)
	}
	for _, edge := range r.s.transitions[transition.FromStageID] {
		if edge.ToStageID == transition.ToStageID {
			return fmt.Errorf("transition %s->%s: %w", transition.FromStageID, transition.ToStageID, ErrUniqueViolation)
		}
	}
	if transition.ID == "" {
		transition.ID = uuid.NewString()
	}
	transition.CreatedAt = r.s.now()
	r.s.transitions[transition.FromStageID] = append(r.s.transitions[transition.FromStageID], *transition)
	return nil
}

func (r *memTransitionRepo) DeleteBySource(_ context.Context, fromStageID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.transitions, fromStageID)
	return nil
}

func (r *memTransitionRepo) ListBySource(_ context.Context, fromStageID string) ([]domain.Transition, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	edges := r.s.transitions[fromStageID]
	result := make([]domain.Transition, 0, len(edges))
	for _, edge := range edges {
		edge.ToStageName = r.s.stages[edge.ToStageID].Name
		result = append(result, edge)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OrderIndex < result[j].OrderIndex
	})
	return result, nil
}

func (r *memTransitionRepo) Exists(_ context.Context, fromStageID, toStageID string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, edge := range r.s.transitions[fromStageID] {
		if edge.ToStageID == toStageID {
			return true, nil
		}
	}
	return false, nil
}

// --- tickets ---

type memTicketRepo struct{ s *MemoryStore }

func (r *memTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (r *memTicketRepo) UpdateStage(_ context.Context, ticket *domain.Ticket, expectedStageID *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.tickets[ticket.ID]
	if !ok {
		if expectedStageID != nil {
			return ErrStaleTicket
		}
		return pgx.ErrNoRows
	}
	if expectedStageID != nil && existing.CurrentStageID != *expectedStageID {
		return ErrStaleTicket
	}
	if _, ok := r.s.stages[ticket.CurrentStageID]; !ok {
		return fmt.Errorf("ticket current stage %q: %w", ticket.CurrentStageID, ErrForeignKeyViolation)
	}

	existing.ProcessID = ticket.ProcessID
	existing.CurrentStageID = ticket.CurrentStageID
	existing.Status = ticket.Status
	existing.CompletedAt = ticket.CompletedAt
	existing.UpdatedAt = r.s.now()
	ticket.UpdatedAt = existing.UpdatedAt
	r.s.tickets[ticket.ID] = existing
	return nil
}

func (r *memTicketRepo) CountByStage(_ context.Context, stageID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	count := 0
	for _, ticket := range r.s.tickets {
		if ticket.CurrentStageID == stageID {
			count++
		}
	}
	return count, nil
}

// --- comments ---

type memCommentRepo struct{ s *MemoryStore }

func (r *memCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.tickets[comment.TicketID]; !ok {
		return fmt.Errorf("comment ticket %q: %w", comment.TicketID, ErrForeignKeyViolation)
	}
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	comment.CreatedAt = r.s.now()
	r.s.comments[comment.TicketID] = append(r.s.comments[comment.TicketID], *comment)
	return nil
}

func (r *memCommentRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.TicketComment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return append([]domain.TicketComment(nil), r.s.comments[ticketID]...), nil
}
