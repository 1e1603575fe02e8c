package api_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sctg/renderpool/internal/api"
	"github.com/sctg/renderpool/internal/capability"
	"github.com/sctg/renderpool/internal/model"
	"github.com/sctg/renderpool/internal/pool"
	"github.com/sctg/renderpool/internal/store"
)

// fakeCap is a fast direct-shape capability for handler tests. Inputs starting
// with "bad" are rejected as invalid.
type fakeCap struct{}

func (c *fakeCap) Name() string   { return "fake" }
func (c *fakeCap) Marker() string { return "<svg" }

func (c *fakeCap) Render(ctx context.Context, input string) (string, error) {
	if strings.HasPrefix(input, "bad") {
		return "", fmt.Errorf("%w: parse error on line 1", capability.ErrInvalidInput)
	}
	return "<svg>" + input + "</svg>", nil
}

func newTestServer(t *testing.T) (*api.Server, store.TaskRegistry) {
	t.Helper()

	reg, err := store.NewSQLiteRegistry(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteRegistry: %v", err)
	}
	t.Cleanup(func() { reg.Close() })

	caps := capability.NewRegistry()
	caps.Register(model.FormatMermaid, &fakeCap{})

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	p := pool.New(pool.Config{
		Size:          2,
		RenderTimeout: 2 * time.Second,
		SettleWindow:  100 * time.Millisecond,
	}, reg, caps, logger)
	t.Cleanup(p.Close)

	return api.NewServer(":0", reg, caps, p, logger), reg
}

func doRequest(srv *api.Server, method, path string, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want ok status", rec.Body.String())
	}
}

func TestPanicRecovery(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.Router().Get("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	rec := doRequest(srv, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500 from recoverer", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/tasks", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("metrics body missing standard collectors")
	}
}
