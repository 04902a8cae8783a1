package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/deckman/internal/reactor"
	"github.com/hitoshi/deckman/internal/reconciler"
)

type mockPinger struct {
	err error
}

func (m *mockPinger) PingContext(ctx context.Context) error { return m.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, nil))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestRouter(pingErr error) http.Handler {
	return NewRouter(&RouterDeps{
		Logger: testLogger(),
		ReactorService: &mockReactorService{
			grantCreatedFunc: func(ctx context.Context, ev reactor.GrantEvent) error { return nil },
			grantDeletedFunc: func(ctx context.Context, deckKey, uid string) error { return nil },
			cardCreatedFunc:  func(ctx context.Context, deckKey, cardKey, actorUID string) error { return nil },
		},
		ReconcilerService: &mockReconcilerService{
			runFunc: func(ctx context.Context) (*reconciler.Summary, error) {
				return &reconciler.Summary{}, nil
			},
		},
		EmailResolver: &mockEmailResolver{
			resolveByEmailFunc: func(ctx context.Context, email string) (string, error) {
				return "user-1", nil
			},
		},
		DB:       &mockPinger{err: pingErr},
		Gatherer: prometheus.NewRegistry(),
	})
}

// 全ルートが配線されていることを検証
func TestNewRouter_Routes(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"deck shared trigger", http.MethodPost, "/api/triggers/deck-shared", `{"deckKey":"d","uid":"u","access":"shared"}`, http.StatusNoContent},
		{"deck unshared trigger", http.MethodPost, "/api/triggers/deck-unshared", `{"deckKey":"d","uid":"u"}`, http.StatusNoContent},
		{"card added trigger", http.MethodPost, "/api/triggers/card-added", `{"deckKey":"d","cardKey":"c"}`, http.StatusNoContent},
		{"reconcile", http.MethodPost, "/api/maintenance/reconcile", "", http.StatusOK},
		{"user lookup", http.MethodGet, "/api/users/lookup?q=a@example.com", "", http.StatusOK},
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.body != "" {
				req = httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			} else {
				req = httptest.NewRequest(tt.method, tt.path, nil)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
		})
	}
}

// データストア疎通失敗時にヘルスチェックが503になることを検証
func TestNewRouter_HealthUnhealthy(t *testing.T) {
	router := newTestRouter(errors.New("connection refused"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}
