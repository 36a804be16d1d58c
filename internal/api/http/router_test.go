package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/carias-rh/lx-toolbox/internal/api/http/handlers"
	"github.com/carias-rh/lx-toolbox/internal/auth"
	"github.com/carias-rh/lx-toolbox/internal/observability"
	"github.com/carias-rh/lx-toolbox/internal/service"
)

type fakeLoop struct {
	wakes int
}

func (f *fakeLoop) Status() service.LoopStatus {
	return service.LoopStatus{Team: "lx-feedback", State: service.StateSleeping, Cycles: 4}
}

func (f *fakeLoop) Wake() { f.wakes++ }

type pingFunc func(context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

func newTestApp(t *testing.T, deps map[string]handlers.Pinger) (*fakeLoop, *auth.TokenManager, *observability.Metrics, func(*http.Request) *http.Response) {
	t.Helper()
	loop := &fakeLoop{}
	tokens := auth.NewTokenManager("test-secret", 5)
	metrics := observability.NewMetrics()
	metrics.RecordCycle("lx-feedback", 3, 2, 1)
	app := NewApp(RouteConfig{
		Health:         handlers.NewHealthHandler("lx-autoassign", "test", deps),
		Status:         handlers.NewStatusHandler(loop, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	}, zap.NewNop(), metrics)
	do := func(req *http.Request) *http.Response {
		resp, err := app.Test(req, -1)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp
	}
	return loop, tokens, metrics, do
}

func TestHealthEndpoints(t *testing.T) {
	deps := map[string]handlers.Pinger{
		"servicenow": pingFunc(func(context.Context) error { return nil }),
	}
	_, _, _, do := newTestApp(t, deps)
	if resp := do(httptest.NewRequest(http.MethodGet, "/health/live", nil)); resp.StatusCode != http.StatusOK {
		t.Errorf("live = %d", resp.StatusCode)
	}
	if resp := do(httptest.NewRequest(http.MethodGet, "/health/ready", nil)); resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	deps["redis"] = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	resp := do(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready with failing dep = %d", resp.StatusCode)
	}
}

func TestStatusEndpoint(t *testing.T) {
	_, _, _, do := newTestApp(t, nil)
	resp := do(httptest.NewRequest(http.MethodGet, "/status", nil))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Loop     service.LoopStatus                    `json:"loop"`
		Counters map[string]observability.TeamCounters `json:"counters"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Loop.State != service.StateSleeping || body.Counters["lx-feedback"].Failed != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestWakeRequiresToken(t *testing.T) {
	loop, tokens, _, do := newTestApp(t, nil)

	resp := do(httptest.NewRequest(http.MethodPost, "/teams/lx-feedback/wake", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token = %d", resp.StatusCode)
	}

	noScope, _, err := tokens.GenerateToken("ops")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/teams/lx-feedback/wake", nil)
	req.Header.Set("Authorization", "Bearer "+noScope)
	if resp := do(req); resp.StatusCode != http.StatusForbidden {
		t.Errorf("no scope = %d", resp.StatusCode)
	}

	token, _, err := tokens.GenerateToken("ops", auth.ScopeWake)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	req = httptest.NewRequest(http.MethodPost, "/teams/lx-feedback/wake", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := do(req); resp.StatusCode != http.StatusAccepted {
		t.Errorf("wake = %d", resp.StatusCode)
	}
	if loop.wakes != 1 {
		t.Errorf("wakes = %d", loop.wakes)
	}

	req = httptest.NewRequest(http.MethodPost, "/teams/other/wake", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	if resp := do(req); resp.StatusCode != http.StatusNotFound {
		t.Errorf("other team = %d", resp.StatusCode)
	}
}

func TestUnknownRouteRendersDomainError(t *testing.T) {
	_, _, metrics, do := newTestApp(t, nil)
	resp := do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q", body.Error.Code)
	}
	if metrics.Requests()["/nope|GET|404"] != 1 {
		t.Errorf("requests = %v", metrics.Requests())
	}
}
