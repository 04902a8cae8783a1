package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/deckman/internal/metrics"
	"github.com/hitoshi/deckman/internal/middleware"
)

// Pinger はデータストアの疎通確認インターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// トリガー
	ReactorService ReactorService

	// メンテナンス
	ReconcilerService ReconcilerService

	// ユーザー検索
	EmailResolver EmailResolver

	// ヘルスチェック
	DB Pinger

	// メトリクス公開
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	triggerHandler := NewTriggerHandler(deps.ReactorService)
	maintenanceHandler := NewMaintenanceHandler(deps.ReconcilerService)
	lookupHandler := NewLookupHandler(deps.EmailResolver)

	// エンティティ変更トリガー
	r.Route("/api/triggers", func(r chi.Router) {
		r.Post("/deck-shared", triggerHandler.DeckShared)
		r.Post("/deck-unshared", triggerHandler.DeckUnshared)
		r.Post("/card-added", triggerHandler.CardAdded)
	})

	// メンテナンス
	r.Route("/api/maintenance", func(r chi.Router) {
		r.Post("/reconcile", maintenanceHandler.Reconcile)
	})

	// ユーザー検索
	r.Get("/api/users/lookup", lookupHandler.Lookup)

	// ヘルスチェック
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.DB.PingContext(req.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheusスクレイプ
	r.Handle("/metrics", metrics.Handler(deps.Gatherer))

	return r
}
