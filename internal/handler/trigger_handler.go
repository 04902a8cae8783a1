package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/deckman/internal/model"
	"github.com/hitoshi/deckman/internal/reactor"
)

// ReactorService はトリガーハンドラーが必要とするサービスインターフェース。
type ReactorService interface {
	// GrantCreated はアクセス権作成イベントを処理する。
	GrantCreated(ctx context.Context, ev reactor.GrantEvent) error
	// GrantDeleted はアクセス権削除イベントを処理する。
	GrantDeleted(ctx context.Context, deckKey, uid string) error
	// CardCreated はカード作成イベントを処理する。
	CardCreated(ctx context.Context, deckKey, cardKey, actorUID string) error
}

// TriggerHandler はエンティティ変更トリガーのHTTPハンドラー。
// アプリ側の書き込みが完了した後にデータ層から呼び出される。
type TriggerHandler struct {
	service  ReactorService
	validate *validator.Validate
}

// NewTriggerHandler はTriggerHandlerを生成する。
func NewTriggerHandler(service ReactorService) *TriggerHandler {
	return &TriggerHandler{
		service:  service,
		validate: validator.New(),
	}
}

// deckSharedRequest はアクセス権作成トリガーのボディ。
type deckSharedRequest struct {
	DeckKey  string `json:"deckKey" validate:"required"`
	UID      string `json:"uid" validate:"required"`
	Access   string `json:"access" validate:"required,oneof=owner shared"`
	ActorUID string `json:"actorUid"`
	AuthType string `json:"authType"`
}

// deckUnsharedRequest はアクセス権削除トリガーのボディ。
type deckUnsharedRequest struct {
	DeckKey string `json:"deckKey" validate:"required"`
	UID     string `json:"uid" validate:"required"`
}

// cardAddedRequest はカード作成トリガーのボディ。
type cardAddedRequest struct {
	DeckKey  string `json:"deckKey" validate:"required"`
	CardKey  string `json:"cardKey" validate:"required"`
	ActorUID string `json:"actorUid"`
}

// decodeTrigger はトリガーボディをデコードして検証する。
func (h *TriggerHandler) decodeTrigger(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTriggerError("JSONの解析に失敗しました"))
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidTriggerError(err.Error()))
		return false
	}
	return true
}

// DeckShared はアクセス権作成トリガーを処理する。
// POST /api/triggers/deck-shared
func (h *TriggerHandler) DeckShared(w http.ResponseWriter, r *http.Request) {
	var req deckSharedRequest
	if !h.decodeTrigger(w, r, &req) {
		return
	}

	ev := reactor.GrantEvent{
		DeckKey:  req.DeckKey,
		UID:      req.UID,
		Access:   model.AccessLevel(req.Access),
		ActorUID: req.ActorUID,
		AuthType: req.AuthType,
	}
	if err := h.service.GrantCreated(r.Context(), ev); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeckUnshared はアクセス権削除トリガーを処理する。
// POST /api/triggers/deck-unshared
func (h *TriggerHandler) DeckUnshared(w http.ResponseWriter, r *http.Request) {
	var req deckUnsharedRequest
	if !h.decodeTrigger(w, r, &req) {
		return
	}

	if err := h.service.GrantDeleted(r.Context(), req.DeckKey, req.UID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CardAdded はカード作成トリガーを処理する。
// POST /api/triggers/card-added
func (h *TriggerHandler) CardAdded(w http.ResponseWriter, r *http.Request) {
	var req cardAddedRequest
	if !h.decodeTrigger(w, r, &req) {
		return
	}

	if err := h.service.CardCreated(r.Context(), req.DeckKey, req.CardKey, req.ActorUID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
