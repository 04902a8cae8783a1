// Package reactor はアクセス権とカードの変更イベントに対する後続処理を提供する。
// イベント本体の書き込みはアプリ側で完了しており、ここでは
// 学習レコードの射影生成と通知ファンアウトのみを行う。
package reactor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/deckman/internal/identity"
	"github.com/hitoshi/deckman/internal/model"
	"github.com/hitoshi/deckman/internal/notifier"
	"github.com/hitoshi/deckman/internal/store"
)

// AuthTypeUser は認証済みエンドユーザーによる操作を示す。
// これ以外（管理ツールやシステム操作）では共有通知を送らない。
const AuthTypeUser = "USER"

// MaterializerService は学習レコード射影の生成インターフェース。
type MaterializerService interface {
	MaterializeFull(ctx context.Context, deckKey, uid string) (int, error)
	StageCardForGrantees(ctx context.Context, deckKey, cardKey, skipUID string) error
}

// NotifierService は共有通知の配信インターフェース。
type NotifierService interface {
	NotifyShare(ctx context.Context, ev notifier.ShareEvent)
}

// GrantEvent はアクセス権レコードの作成イベントを表す。
type GrantEvent struct {
	DeckKey  string
	UID      string // アクセス権を付与されたユーザー
	Access   model.AccessLevel
	ActorUID string // 操作したユーザー。システム操作の場合は空
	AuthType string
}

// Reactor は変更イベントを受けて射影生成と通知を起動する。
type Reactor struct {
	store        store.Store
	materializer MaterializerService
	notifier     NotifierService
	identity     identity.Resolver
	logger       *slog.Logger
}

// New はReactorの新しいインスタンスを生成する。
func New(s store.Store, m MaterializerService, n NotifierService, r identity.Resolver, logger *slog.Logger) *Reactor {
	return &Reactor{
		store:        s,
		materializer: m,
		notifier:     n,
		identity:     r,
		logger:       logger,
	}
}

// GrantCreated はアクセス権作成イベントを処理する。
// 所有者自身のアクセス権（デッキ作成時の自動付与）は対象外。
// 学習レコードの生成は常に行い、通知は認証済みユーザーによる
// 操作の場合のみ送る。通知の準備に失敗してもイベント処理は成功させる。
func (r *Reactor) GrantCreated(ctx context.Context, ev GrantEvent) error {
	if ev.Access == model.AccessOwner {
		r.logger.Info("所有者アクセス権のため処理をスキップします",
			slog.String("deck_key", ev.DeckKey),
			slog.String("uid", ev.UID),
		)
		return nil
	}

	cardCount, err := r.materializer.MaterializeFull(ctx, ev.DeckKey, ev.UID)
	if err != nil {
		return fmt.Errorf("共有デッキの学習レコード生成に失敗しました: %w", err)
	}
	r.logger.Info("共有デッキの学習レコードを生成しました",
		slog.String("deck_key", ev.DeckKey),
		slog.String("uid", ev.UID),
		slog.Int("card_count", cardCount),
	)

	if ev.AuthType != AuthTypeUser || ev.ActorUID == "" {
		r.logger.Info("操作ユーザーが不明なため通知をスキップします",
			slog.String("deck_key", ev.DeckKey),
			slog.String("auth_type", ev.AuthType),
		)
		return nil
	}

	shareEv, err := r.buildShareEvent(ctx, ev, cardCount)
	if err != nil {
		// 通知は共有処理の成否を左右しない
		r.logger.Error("共有通知の準備に失敗しました",
			slog.String("deck_key", ev.DeckKey),
			slog.String("uid", ev.UID),
			slog.Any("error", err),
		)
		return nil
	}
	r.notifier.NotifyShare(ctx, *shareEv)
	return nil
}

func (r *Reactor) buildShareEvent(ctx context.Context, ev GrantEvent, cardCount int) (*notifier.ShareEvent, error) {
	actor, err := r.identity.ResolveByUID(ctx, ev.ActorUID)
	if err != nil {
		return nil, fmt.Errorf("操作ユーザーの解決に失敗しました (%s): %w", ev.ActorUID, err)
	}

	recipientEmail := ""
	recipient, err := r.identity.ResolveByUID(ctx, ev.UID)
	switch {
	case err == nil:
		recipientEmail = recipient.Email
	case errors.Is(err, identity.ErrNotFound):
		// 受領者が未登録でもプッシュ通知は送れる
	default:
		return nil, fmt.Errorf("受領者の解決に失敗しました (%s): %w", ev.UID, err)
	}

	deckName, err := r.store.DeckName(ctx, ev.UID, ev.DeckKey)
	if err != nil {
		return nil, fmt.Errorf("デッキ名の読み取りに失敗しました (%s): %w", ev.DeckKey, err)
	}

	actorName := actor.DisplayName
	if actorName == "" {
		actorName = actor.Email
	}

	return &notifier.ShareEvent{
		ActorName:      actorName,
		ActorEmail:     actor.Email,
		RecipientUID:   ev.UID,
		RecipientEmail: recipientEmail,
		DeckName:       deckName,
		CardCount:      cardCount,
	}, nil
}

// GrantDeleted はアクセス権削除イベントを処理する。
// そのユーザーのデッキ1つ分の派生データ（学習レコード、ビュー状態、
// デッキ一覧エントリ）を原子的に削除する。アクセス権レコード自体は
// イベント発生時点で既に削除済み。
func (r *Reactor) GrantDeleted(ctx context.Context, deckKey, uid string) error {
	updates := map[string]any{
		store.LearningDeckPath(uid, deckKey): nil,
		store.ViewsDeckPath(uid, deckKey):    nil,
		store.DeckListingPath(uid, deckKey):  nil,
	}
	if err := r.store.BatchWrite(ctx, updates); err != nil {
		return fmt.Errorf("共有解除後の派生データ削除に失敗しました (%s/%s): %w", deckKey, uid, err)
	}
	r.logger.Info("共有解除に伴う派生データを削除しました",
		slog.String("deck_key", deckKey),
		slog.String("uid", uid),
	)
	return nil
}

// CardCreated はカード作成イベントを処理する。
// 操作したユーザー以外の全アクセス権保持者に学習レコードを配る。
// actorUIDが空（システム操作）の場合は全員に配る。
func (r *Reactor) CardCreated(ctx context.Context, deckKey, cardKey, actorUID string) error {
	if err := r.materializer.StageCardForGrantees(ctx, deckKey, cardKey, actorUID); err != nil {
		return fmt.Errorf("カード追加イベントの処理に失敗しました: %w", err)
	}
	return nil
}
