package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/deckman/internal/reconciler"
)

// ReconcilerService はメンテナンスハンドラーが必要とするサービスインターフェース。
type ReconcilerService interface {
	// Run は整合スイープを1回実行し、実行結果を返す。
	Run(ctx context.Context) (*reconciler.Summary, error)
}

// MaintenanceHandler は整合スイープのHTTPハンドラー。
type MaintenanceHandler struct {
	service ReconcilerService
}

// NewMaintenanceHandler はMaintenanceHandlerを生成する。
func NewMaintenanceHandler(service ReconcilerService) *MaintenanceHandler {
	return &MaintenanceHandler{
		service: service,
	}
}

// Reconcile は整合スイープを実行し、実行結果のサマリを返す。
// POST /api/maintenance/reconcile
func (h *MaintenanceHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Run(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(summary)
}
