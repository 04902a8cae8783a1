package store

import (
	"context"

	"github.com/hitoshi/deckman/internal/model"
)

// Store はエンティティグラフへの型付き読み書きインターフェース。
// 読み取りは型付きレコードへデコードして返し、書き込みは
// パス→値マップを受け取るBatchWriteに集約する。
type Store interface {
	// Cards はデッキのカード集合をカードキー→カードで返す。
	Cards(ctx context.Context, deckKey string) (map[string]model.Card, error)

	// ScheduledCards はユーザーのデッキ1つ分の学習レコード集合を
	// カードキー→レコードで返す。
	ScheduledCards(ctx context.Context, uid, deckKey string) (map[string]model.ScheduledCard, error)

	// DeckAccessByDeck はデッキ1つのアクセス権集合をuid→レコードで返す。
	DeckAccessByDeck(ctx context.Context, deckKey string) (map[string]model.DeckAccess, error)

	// AllDeckAccess は全デッキのアクセス権集合をdeckKey→uid→レコードで返す。
	// 整合スイープの一括読み取り用。
	AllDeckAccess(ctx context.Context) (map[string]map[string]model.DeckAccess, error)

	// AllDeckListings は全ユーザーのデッキ一覧をuid→deckKey→エントリで返す。
	// 整合スイープの一括読み取り用。
	AllDeckListings(ctx context.Context) (map[string]map[string]model.DeckListing, error)

	// DeckName はユーザー自身のデッキ一覧に載っているデッキ名を返す。
	// 一覧にない場合は空文字列を返す。
	DeckName(ctx context.Context, uid, deckKey string) (string, error)

	// DeliveryEndpoints はユーザーの配信エンドポイント集合を
	// エンドポイントID→レコードで返す。
	DeliveryEndpoints(ctx context.Context, uid string) (map[string]model.DeliveryEndpoint, error)

	// BatchWrite は複数パスへの書き込みを原子的に適用する。
	// 値がnilのパスはサブツリーごと削除する。
	BatchWrite(ctx context.Context, updates map[string]any) error
}
