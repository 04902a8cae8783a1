package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/deckman/internal/identity"
	"github.com/hitoshi/deckman/internal/model"
)

// EmailResolver はメールアドレスからのuid解決インターフェース。
// identity.Resolverを直接要求せず、検索に必要な最小限だけを定義する。
type EmailResolver interface {
	// ResolveByEmail はメールアドレスからuidを解決する。
	// 存在しない場合はidentity.ErrNotFoundを返す。
	ResolveByEmail(ctx context.Context, email string) (string, error)
}

// LookupHandler はユーザー検索のHTTPハンドラー。
// 共有相手をメールアドレスで探すためにアプリから呼ばれる。
type LookupHandler struct {
	resolver EmailResolver
}

// NewLookupHandler はLookupHandlerを生成する。
func NewLookupHandler(resolver EmailResolver) *LookupHandler {
	return &LookupHandler{
		resolver: resolver,
	}
}

// Lookup はメールアドレスからuidを検索し、プレーンテキストで返す。
// GET /api/users/lookup?q={email}
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewQueryMissingError())
		return
	}

	uid, err := h.resolver.ResolveByEmail(r.Context(), query)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError(query))
			return
		}
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(uid))
}
