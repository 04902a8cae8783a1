// Package materializer はユーザーごとの学習レコード射影の生成を提供する。
// 共有イベント時の全件生成と、整合スイープ時の欠損補完の両方がここを通る。
package materializer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/deckman/internal/model"
	"github.com/hitoshi/deckman/internal/store"
)

// Materializer は(uid, deckKey)ペアの学習レコード集合を
// デッキの現在のカード集合に合わせて生成する。
// 既存レコードは決して上書きしない（差分は常に追加のみ）。
type Materializer struct {
	store  store.Store
	logger *slog.Logger
}

// New はMaterializerの新しいインスタンスを生成する。
func New(s store.Store, logger *slog.Logger) *Materializer {
	return &Materializer{store: s, logger: logger}
}

// MaterializeMissing はカード集合と学習レコード集合の差分を検出し、
// 欠けているレコードのみを初期状態で補完する。作成したレコード数を返す。
// 欠損の検出はドリフト（上流バグか取りこぼし）を意味するため、
// エラーレベルの診断ログを出した上で自動修復する。
// 差分がなければ書き込みは発生せず、再実行しても冪等。
func (m *Materializer) MaterializeMissing(ctx context.Context, uid, deckKey string) (int, error) {
	scheduled, err := m.store.ScheduledCards(ctx, uid, deckKey)
	if err != nil {
		return 0, fmt.Errorf("学習レコードの読み取りに失敗しました (%s/%s): %w", uid, deckKey, err)
	}

	cards, err := m.store.Cards(ctx, deckKey)
	if err != nil {
		return 0, fmt.Errorf("カード集合の読み取りに失敗しました (%s): %w", deckKey, err)
	}

	updates := make(map[string]any)
	for cardKey := range cards {
		if _, ok := scheduled[cardKey]; !ok {
			updates[store.LearningCardPath(uid, deckKey, cardKey)] = model.NewScheduledCard()
		}
	}

	if len(updates) == 0 {
		return 0, nil
	}

	// ここに到達するのは共有イベント経路で作られるはずのレコードが
	// 欠けている場合のみ。修復はするが、上流の不具合として記録する。
	m.logger.Error("学習レコードの欠損を検出しました。修復します",
		slog.String("uid", uid),
		slog.String("deck_key", deckKey),
		slog.Int("missing_count", len(updates)),
	)

	if err := m.store.BatchWrite(ctx, updates); err != nil {
		return 0, fmt.Errorf("欠損レコードの書き込みに失敗しました (%s/%s): %w", uid, deckKey, err)
	}
	return len(updates), nil
}

// MaterializeFull はデッキの全カードに対する学習レコード集合を
// 初期状態で生成する。新規共有の直後に呼ばれる前提で、
// 既存レコードは存在しないものとして扱う（ドリフト診断は出さない）。
// 作成したレコード数を返す。
func (m *Materializer) MaterializeFull(ctx context.Context, deckKey, uid string) (int, error) {
	cards, err := m.store.Cards(ctx, deckKey)
	if err != nil {
		return 0, fmt.Errorf("カード集合の読み取りに失敗しました (%s): %w", deckKey, err)
	}

	updates := make(map[string]any, len(cards))
	for cardKey := range cards {
		updates[store.LearningCardPath(uid, deckKey, cardKey)] = model.NewScheduledCard()
	}

	if len(updates) == 0 {
		return 0, nil
	}
	if err := m.store.BatchWrite(ctx, updates); err != nil {
		return 0, fmt.Errorf("学習レコードの書き込みに失敗しました (%s/%s): %w", uid, deckKey, err)
	}
	return len(updates), nil
}

// StageCardForGrantees は追加されたカード1枚分の学習レコードを、
// skipUIDを除く全アクセス権保持者に対して一括生成する。
// skipUIDが空の場合は全員が対象（システム操作によるカード追加）。
func (m *Materializer) StageCardForGrantees(ctx context.Context, deckKey, cardKey, skipUID string) error {
	grants, err := m.store.DeckAccessByDeck(ctx, deckKey)
	if err != nil {
		return fmt.Errorf("アクセス権集合の読み取りに失敗しました (%s): %w", deckKey, err)
	}

	updates := make(map[string]any)
	for uid := range grants {
		// カードを追加した本人の分はアプリ側が作成済み
		if uid == skipUID {
			continue
		}
		updates[store.LearningCardPath(uid, deckKey, cardKey)] = model.NewScheduledCard()
	}

	if len(updates) == 0 {
		return nil
	}
	if err := m.store.BatchWrite(ctx, updates); err != nil {
		return fmt.Errorf("カード追加分の学習レコード書き込みに失敗しました (%s/%s): %w", deckKey, cardKey, err)
	}
	return nil
}
