package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spec-kit/workflow-service/internal/api/http/handlers"
	"github.com/spec-kit/workflow-service/internal/auth"
	"github.com/spec-kit/workflow-service/internal/config"
	"github.com/spec-kit/workflow-service/internal/domain"
	"github.com/spec-kit/workflow-service/internal/events"
	"github.com/spec-kit/workflow-service/internal/observability"
	"github.com/spec-kit/workflow-service/internal/repository"
	"github.com/spec-kit/workflow-service/internal/service"
)

const testProcess = "33333333-3333-3333-3333-333333333333"

type testServer struct {
	app     *fiber.App
	store   *repository.MemoryStore
	stages  *service.StageService
	metrics *observability.Metrics
	admin   string
	agent   string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := repository.NewMemoryStore()
	metrics := observability.NewMetrics()

	transitions := service.NewTransitionService(service.TransitionDependencies{
		StageRepo:      store.Stages(),
		TransitionRepo: store.Transitions(),
		Transactor:     store,
		Logger:         logger,
	})
	stages := service.NewStageService(service.StageDependencies{
		StageRepo:   store.Stages(),
		TicketRepo:  store.Tickets(),
		Transitions: transitions,
		Transactor:  store,
		Logger:      logger,
		Config:      config.WorkflowConfig{DefaultPageSize: 50, MaxPageSize: 200},
	})
	mover := service.NewMoverService(service.MoverDependencies{
		StageRepo:   store.Stages(),
		TicketRepo:  store.Tickets(),
		CommentRepo: store.Comments(),
		Transitions: transitions,
		Transactor:  store,
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     metrics,
		Logger:      logger,
	})
	reorder := service.NewReorderService(service.ReorderDependencies{
		StageRepo:  store.Stages(),
		Transactor: store,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager("test-secret", "workflow-service", 5)
	admin, _, err := tokens.GenerateToken("admin-1", "Ada", []string{domain.PermissionManageWorkflow})
	require.NoError(t, err)
	agent, _, err := tokens.GenerateToken("agent-1", "Dana", nil)
	require.NoError(t, err)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("workflow-service", "test", nil),
		Stages:         handlers.NewStagesHandler(stages, transitions, reorder),
		Tickets:        handlers.NewTicketsHandler(mover, stages, auth.NewClaimsPermissionChecker()),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})
	return &testServer{app: app, store: store, stages: stages, metrics: metrics, admin: admin, agent: agent}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) createStage(t *testing.T, input service.StageCreateInput) *domain.Stage {
	t.Helper()
	input.ProcessID = testProcess
	stage, err := s.stages.Create(context.Background(), input)
	require.NoError(t, err)
	return stage
}

func errorCode(body map[string]any) string {
	errBody, _ := body["error"].(map[string]any)
	code, _ := errBody["code"].(string)
	return code
}

func TestHealthLiveIsPublic(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body["status"])
}

func TestStageAuthoringRoutes(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/processes/" + testProcess + "/stages"

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
		code   string
	}{
		{"missing token", http.MethodGet, base, "", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"bad token", http.MethodGet, base, "nope", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"create without manage", http.MethodPost, base, s.agent, map[string]any{"name": "Todo"}, http.StatusForbidden, "FORBIDDEN"},
		{"process id not a uuid", http.MethodGet, "/api/v1/processes/abc/stages", s.agent, nil, http.StatusBadRequest, "INVALID_INPUT"},
		{"create without name", http.MethodPost, base, s.admin, map[string]any{"name": "  "}, http.StatusBadRequest, "INVALID_INPUT"},
		{"no initial stage yet", http.MethodGet, base + "/initial", s.agent, nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown stage", http.MethodGet, "/api/v1/stages/missing", s.agent, nil, http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, tt.method, tt.path, tt.token, tt.body)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, errorCode(body))
		})
	}
}

func TestCreateAndListStages(t *testing.T) {
	s := newTestServer(t)
	base := "/api/v1/processes/" + testProcess + "/stages"

	status, body := s.do(t, http.MethodPost, base, s.admin, map[string]any{"name": "Todo", "is_initial": true})
	require.Equal(t, http.StatusCreated, status, body)
	created := body["data"].(map[string]any)
	assert.Equal(t, "Todo", created["name"])
	assert.Equal(t, float64(1), created["order_index"])

	status, body = s.do(t, http.MethodPost, base, s.admin, map[string]any{"name": "todo"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "DUPLICATE_NAME", errorCode(body))

	status, body = s.do(t, http.MethodGet, base+"?is_initial=true", s.agent, nil)
	require.Equal(t, http.StatusOK, status)
	list := body["data"].(map[string]any)
	assert.Equal(t, float64(1), list["total"])

	status, body = s.do(t, http.MethodGet, base+"?is_final=maybe", s.agent, nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(body))

	status, _ = s.do(t, http.MethodGet, base+"/initial", s.agent, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestMoveTicketRoute(t *testing.T) {
	s := newTestServer(t)
	todo := s.createStage(t, service.StageCreateInput{Name: "Todo", IsInitial: true})
	doing := s.createStage(t, service.StageCreateInput{Name: "Doing"})
	done := s.createStage(t, service.StageCreateInput{Name: "Done", IsFinal: true})
	locked := s.createStage(t, service.StageCreateInput{Name: "Escalated", RequiredPermissions: []string{"tickets:escalate"}})

	status, _ := s.do(t, http.MethodPut, "/api/v1/stages/"+todo.ID+"/transitions", s.admin,
		map[string]any{"target_stage_ids": []string{doing.ID}})
	require.Equal(t, http.StatusOK, status)

	ticket := &domain.Ticket{ProcessID: testProcess, Title: "Broken VPN", CurrentStageID: todo.ID}
	require.NoError(t, s.store.SeedTicket(ticket))
	movePath := "/api/v1/tickets/" + ticket.ID + "/move"

	status, body := s.do(t, http.MethodPost, movePath, s.agent, map[string]any{"target_stage_id": done.ID})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "ILLEGAL_TRANSITION", errorCode(body))

	status, body = s.do(t, http.MethodPost, movePath, s.agent, map[string]any{"target_stage_id": locked.ID, "validate_transitions": false})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))

	status, body = s.do(t, http.MethodPost, movePath, s.agent, map[string]any{"target_stage_id": doing.ID, "comment": "picked up"})
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, doing.ID, data["ticket"].(map[string]any)["current_stage_id"])
	assert.Equal(t, "Dana", data["movement"].(map[string]any)["actor_name"])

	status, body = s.do(t, http.MethodPost, movePath, s.agent, map[string]any{"target_stage_id": done.ID, "validate_transitions": false})
	require.Equal(t, http.StatusOK, status, body)
	data = body["data"].(map[string]any)
	assert.Equal(t, true, data["movement"].(map[string]any)["auto_completed"])
	assert.Equal(t, "completed", data["ticket"].(map[string]any)["status"])

	status, body = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/move-to-initial", s.agent, map[string]any{"process_id": testProcess})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["data"].(map[string]any)["movement"].(map[string]any)["auto_reopened"])

	status, body = s.do(t, http.MethodPost, "/api/v1/tickets/"+ticket.ID+"/move-to-initial", s.agent, map[string]any{"process_id": "x"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", errorCode(body))

	_, _, moves := s.metrics.Snapshot()
	assert.Equal(t, int64(1), moves["completed"])
	assert.Equal(t, int64(1), moves["reopened"])
}
