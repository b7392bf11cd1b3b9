package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
	"github.com/alanyoungcy/roundkeeper/internal/server/handler"
	"github.com/alanyoungcy/roundkeeper/internal/server/middleware"
)

type stubRunner struct {
	busy   bool
	last   *domain.TickReport
	err    error
	report domain.TickReport
	ctxErr error
}

func (s *stubRunner) TriggerTick(ctx context.Context) (domain.TickReport, error) {
	s.ctxErr = ctx.Err()
	return s.report, s.err
}

func (s *stubRunner) Busy() bool { return s.busy }

func (s *stubRunner) LastReport() (domain.TickReport, bool) {
	if s.last == nil {
		return domain.TickReport{}, false
	}
	return *s.last, true
}

type stubAudit struct{}

func (stubAudit) Log(context.Context, string, map[string]any) error { return nil }

func (stubAudit) List(context.Context, domain.ListOpts) ([]domain.AuditEntry, error) {
	return []domain.AuditEntry{{ID: 1, Event: "update_treasury"}}, nil
}

type failingPing struct{}

func (failingPing) Ping(context.Context) error { return errors.New("connection refused") }

func newTestRoutes(runner *stubRunner, apiKey string, checks map[string]handler.Pinger) http.Handler {
	logger := logging.Discard()
	return Routes(Config{APIKey: apiKey}, Handlers{
		Health: handler.NewHealthHandler(checks, logger),
		Status: handler.NewStatusHandler(handler.KeeperInfo{Chain: "solana", Network: "devnet"}, runner),
		Ticks:  handler.NewTickHandler(runner, nil, logger),
		Audit:  handler.NewAuditHandler(stubAudit{}, logger),
	}, nil, logger)
}

func do(t *testing.T, h http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoAuthRequired(t *testing.T) {
	h := newTestRoutes(&stubRunner{}, "secret", nil)

	rec := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_Degraded(t *testing.T) {
	h := newTestRoutes(&stubRunner{}, "", map[string]handler.Pinger{"redis": failingPing{}})

	rec := do(t, h, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestStatus_RequiresAPIKey(t *testing.T) {
	last := domain.TickReport{ID: "t1", Decision: domain.DecisionWait, RoundID: 5, Actions: []domain.ActionRecord{}}
	h := newTestRoutes(&stubRunner{last: &last, busy: true}, "secret", nil)

	rec := do(t, h, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodGet, "/api/status", map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Busy     bool              `json:"busy"`
		Keeper   map[string]any    `json:"keeper"`
		LastTick domain.TickReport `json:"last_tick"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Busy)
	assert.Equal(t, "solana", body.Keeper["chain"])
	assert.Equal(t, uint64(5), body.LastTick.RoundID)
}

func TestTrigger_ConflictWhenBusy(t *testing.T) {
	h := newTestRoutes(&stubRunner{err: domain.ErrTickInProgress}, "", nil)

	rec := do(t, h, http.MethodPost, "/api/tick", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestTrigger_ReturnsReport(t *testing.T) {
	h := newTestRoutes(&stubRunner{report: domain.TickReport{ID: "manual", Actions: []domain.ActionRecord{}}}, "", nil)

	rec := do(t, h, http.MethodPost, "/api/tick", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"manual"`)

	// The trigger is rate limited per client.
	rec = do(t, h, http.MethodPost, "/api/tick", map[string]string{"X-Forwarded-For": "10.0.0.1"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestTrigger_SurvivesClientDisconnect(t *testing.T) {
	runner := &stubRunner{report: domain.TickReport{ID: "manual", Actions: []domain.ActionRecord{}}}
	h := newTestRoutes(runner, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/tick", nil).WithContext(ctx)
	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NoError(t, runner.ctxErr)
}

func TestTicks_FallbackToLastReport(t *testing.T) {
	last := domain.TickReport{ID: "only", Actions: []domain.ActionRecord{}}
	h := newTestRoutes(&stubRunner{last: &last}, "", nil)

	rec := do(t, h, http.MethodGet, "/api/ticks", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var reports []domain.TickReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, "only", reports[0].ID)
}

func TestAudit_List(t *testing.T) {
	h := newTestRoutes(&stubRunner{}, "k", nil)

	rec := do(t, h, http.MethodGet, "/api/audit?limit=10", map[string]string{"X-API-Key": "k"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "update_treasury")
}

func TestCORS_Preflight(t *testing.T) {
	h := newTestRoutes(&stubRunner{}, "", nil)

	rec := do(t, h, http.MethodOptions, "/api/status", map[string]string{
		"Origin":                        "https://dash.example",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	h := middleware.CORS([]string{"https://dash.example"})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := do(t, h, http.MethodGet, "/api/status", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestLogging_RequestID(t *testing.T) {
	h := newTestRoutes(&stubRunner{}, "", nil)

	rec := do(t, h, http.MethodGet, "/api/health", nil)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))

	rec = do(t, h, http.MethodGet, "/api/health", map[string]string{middleware.RequestIDHeader: "abc"})
	assert.Equal(t, "abc", rec.Header().Get(middleware.RequestIDHeader))
}
