package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Greg89/normaize-server-sub004/internal/chaos"
)

func testSource(enabled bool) chaos.StaticSource {
	return chaos.StaticSource{Snapshot: chaos.Snapshot{
		Environment: "dev",
		Global: chaos.GlobalConfig{
			Enabled:                     enabled,
			AllowedEnvironments:         []string{"dev"},
			GlobalProbabilityMultiplier: 1.0,
			MaxTriggersPerMinute:        1000,
		},
		Scenarios: map[string]chaos.ScenarioConfig{
			"DatabaseTimeout": {Name: "DatabaseTimeout", Enabled: true, Probability: 0.05, MaxTriggersPerHour: 5},
		},
	}}
}

func newTestServer(t *testing.T, rateLimit, burst int) *Server {
	t.Helper()
	source := testSource(true)
	engine := chaos.NewEngine(source, zaptest.NewLogger(t))
	s, err := NewServer(Config{Enabled: true, ListenAddr: ":0", RateLimit: rateLimit, RateBurst: burst},
		zaptest.NewLogger(t), engine, source, chaos.NewMetrics("test"))
	require.NoError(t, err)
	return s
}

func TestNewServerDisabled(t *testing.T) {
	t.Parallel()

	_, err := NewServer(Config{Enabled: false}, zaptest.NewLogger(t), nil, nil, nil)
	assert.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, 100, 100)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestStatsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, 100, 100)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chaos/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
}

func TestScenariosEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, 100, 100)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/chaos/scenarios", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Success bool           `json:"success"`
		Data    []scenarioView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)

	byName := make(map[string]scenarioView, len(resp.Data))
	for _, v := range resp.Data {
		byName[v.Name] = v
	}

	// Built-ins appear as registered; the configured-only scenario as
	// configured. Both show up in the one merged view.
	builtin, ok := byName[chaos.ScenarioProcessingDelay]
	require.True(t, ok)
	assert.True(t, builtin.Registered)
	assert.False(t, builtin.Configured)

	db, ok := byName["DatabaseTimeout"]
	require.True(t, ok)
	assert.False(t, db.Registered)
	assert.True(t, db.Configured)
	assert.Equal(t, 0.05, db.Probability)

	// Sorted by name.
	for i := 1; i < len(resp.Data); i++ {
		assert.Less(t, resp.Data[i-1].Name, resp.Data[i].Name)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, 100, 100)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, 1, 2)

	codes := make([]int, 0, 5)
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		s.Handler().ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, http.StatusOK, codes[0])
	assert.Equal(t, http.StatusOK, codes[1])
	assert.Contains(t, codes, http.StatusTooManyRequests, "burst of two exhausted")

	// A different client IP has its own bucket.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIPRateLimiter(t *testing.T) {
	t.Parallel()

	rl := NewIPRateLimiter(1, 1)
	assert.True(t, rl.Allow("10.0.0.1:1"))
	assert.False(t, rl.Allow("10.0.0.1:2"), "same IP, bucket drained")
	assert.True(t, rl.Allow("10.0.0.2:1"), "independent bucket per IP")

	// Bare IPs without a port are accepted as-is.
	assert.True(t, rl.Allow("192.168.1.1"))
}

func TestChaosMiddlewarePassThrough(t *testing.T) {
	t.Parallel()

	// Chaos globally disabled: every request reaches the handler, and the
	// correlation id is echoed back.
	source := testSource(false)
	engine := chaos.NewEngine(source, zaptest.NewLogger(t))

	var handled int
	h := ChaosMiddleware(engine, "DatabaseTimeout")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled++
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(CorrelationHeader, "cid-123")
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, handled)
	assert.Equal(t, "cid-123", rec.Header().Get(CorrelationHeader))
}

func TestChaosMiddlewareGeneratesCorrelationID(t *testing.T) {
	t.Parallel()

	source := testSource(false)
	engine := chaos.NewEngine(source, zaptest.NewLogger(t))
	h := ChaosMiddleware(engine, "DatabaseTimeout")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
}

func TestChaosMiddlewarePropagatedFault(t *testing.T) {
	t.Parallel()

	source := chaos.StaticSource{Snapshot: chaos.Snapshot{
		Environment: "dev",
		Global: chaos.GlobalConfig{
			Enabled:                     true,
			AllowedEnvironments:         []string{"dev"},
			GlobalProbabilityMultiplier: 1.0,
			MaxTriggersPerMinute:        1000,
			PropagateActionErrors:       true,
		},
	}}
	engine := chaos.NewEngine(source, zaptest.NewLogger(t))
	require.NoError(t, engine.Register("AlwaysFail",
		func(map[string]interface{}) bool { return true },
		func(context.Context) error { return errors.New("injected") },
	))

	var handled int
	h := ChaosMiddleware(engine, "AlwaysFail")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handled++
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, handled, "a propagated fault must answer before the handler")
}
