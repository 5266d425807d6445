package seed

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
)

const supportProcess = `
process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10
stages:
  - name: New
    is_initial: true
    transitions: [Triage]
  - name: Triage
    sla_hours: 4
    transitions: [Working, Closed]
    children:
      - name: Waiting
      - name: New
  - name: Working
    transitions: [Closed]
  - name: Closed
    is_final: true
`

func newStageService(t *testing.T, store *repository.MemoryStore) *service.StageService {
	t.Helper()
	logger := zaptest.NewLogger(t)
	transitions := service.NewTransitionService(service.TransitionDependencies{
		StageRepo:      store.Stages(),
		TransitionRepo: store.Transitions(),
		Transactor:     store,
		Logger:         logger,
	})
	return service.NewStageService(service.StageDependencies{
		StageRepo:   store.Stages(),
		TicketRepo:  store.Tickets(),
		Transitions: transitions,
		Transactor:  store,
		Logger:      logger,
		Config:      config.WorkflowConfig{DefaultPageSize: 50, MaxPageSize: 200},
	})
}

func TestParseRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		message string
	}{
		{"bad yaml", "stages: [", "decode definition"},
		{"process id", "process_id: abc\nstages: [{name: A}]", "not a uuid"},
		{"no stages", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10", "at least one stage"},
		{"duplicate root", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: Done}, {name: ' done '}]", "duplicate stage name"},
		{"blank name", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: ''}]", "has no name"},
		{"unknown target", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: A, transitions: [B]}]", "unknown transition target"},
		{"ambiguous target", supportProcess + "  - name: Archive\n    transitions: [New]\n", "ambiguous transition target"},
		{"sla", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: A, sla_hours: 0}]", "sla_hours must be positive"},
		{"two initial", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: A, is_initial: true}, {name: B, is_initial: true}]", "marked initial"},
		{"three levels", "process_id: 5b0c7a52-9d0e-4f4e-9a51-2f1f0b6f2a10\nstages: [{name: A, children: [{name: B, children: [{name: C}]}]}]", "cannot have children"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.raw))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadFileAndApply(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "seeds/support.yaml", []byte(supportProcess), 0o644))

	def, err := LoadFile(fs, "seeds/support.yaml")
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	stages := newStageService(t, store)
	ctx := context.Background()

	ids, err := Apply(ctx, store, stages, def)
	require.NoError(t, err)
	assert.Len(t, ids, 6)
	assert.NotEqual(t, ids["New"], ids["Triage/New"])

	initial, err := stages.GetInitialStage(ctx, def.ProcessID)
	require.NoError(t, err)
	require.NotNil(t, initial)
	assert.Equal(t, ids["New"], initial.ID)

	waiting, err := stages.Get(ctx, ids["Triage/Waiting"])
	require.NoError(t, err)
	require.NotNil(t, waiting.ParentStageID)
	assert.Equal(t, ids["Triage"], *waiting.ParentStageID)

	edges, err := store.Transitions().ListBySource(ctx, ids["Triage"])
	require.NoError(t, err)
	targets := make([]string, 0, len(edges))
	for _, edge := range edges {
		targets = append(targets, edge.ToStageID)
	}
	assert.ElementsMatch(t, []string{ids["Working"], ids["Closed"]}, targets)
}

func TestApplyRollsBackOnConflict(t *testing.T) {
	store := repository.NewMemoryStore()
	stages := newStageService(t, store)
	ctx := context.Background()

	def, err := Parse([]byte(supportProcess))
	require.NoError(t, err)
	_, err = stages.Create(ctx, service.StageCreateInput{ProcessID: def.ProcessID, Name: "Closed"})
	require.NoError(t, err)

	_, err = Apply(ctx, store, stages, def)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `create stage "Closed"`)

	result, err := stages.List(ctx, service.StageListFilter{ProcessID: def.ProcessID})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile(afero.NewMemMapFs(), "nope.yaml")
	assert.Error(t, err)
}

func TestRepositorySeedFileIsValid(t *testing.T) {
	def, err := LoadFile(afero.NewOsFs(), "../../seeds/support_process.yaml")
	require.NoError(t, err)
	assert.Len(t, def.Stages, 5)
}
