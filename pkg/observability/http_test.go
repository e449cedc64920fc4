package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// TestNewMetricsServer tests metrics server creation
func TestNewMetricsServer(t *testing.T) {
	server := NewMetricsServer("localhost:19090", nil, zap.NewNop())

	if server == nil {
		t.Fatal("NewMetricsServer() returned nil")
	}
	if server.addr != "localhost:19090" {
		t.Errorf("Expected addr localhost:19090, got %s", server.addr)
	}
	if server.server == nil {
		t.Error("Expected non-nil HTTP server")
	}
}

func get(t *testing.T, server *MetricsServer, path string) (int, string) {
	t.Helper()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	server.server.Handler.ServeHTTP(w, req)

	body, err := io.ReadAll(w.Result().Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return w.Code, string(body)
}

// TestHealthEndpoint tests /health handler
func TestHealthEndpoint(t *testing.T) {
	server := NewMetricsServer("localhost:0", nil, zap.NewNop())

	code, body := get(t, server, "/health")
	if code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", code)
	}
	if body != "ok" {
		t.Errorf("Expected body 'ok', got '%s'", body)
	}
}

// TestReadyEndpoint tests /ready handler with and without a failing check
func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		check    ReadinessCheck
		wantCode int
		wantBody string
	}{
		{
			name:     "No check",
			wantCode: http.StatusOK,
			wantBody: "READY",
		},
		{
			name:     "Passing check",
			check:    func(ctx context.Context) error { return nil },
			wantCode: http.StatusOK,
			wantBody: "READY",
		},
		{
			name:     "Failing check",
			check:    func(ctx context.Context) error { return errors.New("docker unreachable") },
			wantCode: http.StatusServiceUnavailable,
			wantBody: "NOT READY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := NewMetricsServer("localhost:0", tt.check, zap.NewNop())
			code, body := get(t, server, "/ready")
			if code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, code)
			}
			if body != tt.wantBody {
				t.Errorf("Expected body %q, got %q", tt.wantBody, body)
			}
		})
	}
}

// TestMetricsEndpoint tests /metrics handler exposes our collectors
func TestMetricsEndpoint(t *testing.T) {
	SubmissionsTotal.WithLabelValues("success").Inc()

	server := NewMetricsServer("localhost:0", nil, zap.NewNop())
	code, body := get(t, server, "/metrics")
	if code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", code)
	}
	if !strings.Contains(body, "chaosswarm_submissions_total") {
		t.Error("Expected chaosswarm_submissions_total in metrics output")
	}
}

// TestMetricsServer_StartStop tests server lifecycle on a real listener
func TestMetricsServer_StartStop(t *testing.T) {
	server := NewMetricsServer("127.0.0.1:0", nil, zap.NewNop())
	if err := server.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}
