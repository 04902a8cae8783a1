package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/deckman/internal/reconciler"
)

type mockReconcilerService struct {
	runFunc func(ctx context.Context) (*reconciler.Summary, error)
}

func (m *mockReconcilerService) Run(ctx context.Context) (*reconciler.Summary, error) {
	return m.runFunc(ctx)
}

// スイープ実行結果がJSONで返ることを検証
func TestMaintenanceHandler_Reconcile_Success(t *testing.T) {
	h := NewMaintenanceHandler(&mockReconcilerService{
		runFunc: func(ctx context.Context) (*reconciler.Summary, error) {
			return &reconciler.Summary{
				DeletedOrphanShares: 2,
				RepairedEntries:     5,
				PrunedUsers:         1,
			}, nil
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/reconcile", nil)
	w := httptest.NewRecorder()
	h.Reconcile(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got reconciler.Summary
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.DeletedOrphanShares != 2 || got.RepairedEntries != 5 || got.PrunedUsers != 1 {
		t.Errorf("summary = %+v", got)
	}
}

// スイープ失敗が500になることを検証
func TestMaintenanceHandler_Reconcile_Failure(t *testing.T) {
	h := NewMaintenanceHandler(&mockReconcilerService{
		runFunc: func(ctx context.Context) (*reconciler.Summary, error) {
			return nil, errors.New("store unavailable")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/maintenance/reconcile", nil)
	w := httptest.NewRecorder()
	h.Reconcile(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
}
