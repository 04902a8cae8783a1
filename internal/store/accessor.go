package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/deckman/internal/model"
)

// Accessor はGraphStore上にStoreインターフェースを実装する型付きアクセサ。
// 平坦パスツリーの生JSONとドメインレコードの相互変換はここで完結し、
// 型なしマップの形はドメインロジックへ持ち出さない。
type Accessor struct {
	graph GraphStore
}

// NewAccessor はAccessorを生成する。
func NewAccessor(graph GraphStore) *Accessor {
	return &Accessor{graph: graph}
}

// Cards はデッキのカード集合を返す。
func (a *Accessor) Cards(ctx context.Context, deckKey string) (map[string]model.Card, error) {
	raw, err := a.graph.ReadSubtree(ctx, CardsPath(deckKey))
	if err != nil {
		return nil, fmt.Errorf("カード集合の取得に失敗しました: %w", err)
	}

	cards := make(map[string]model.Card, len(raw))
	for key, data := range raw {
		var card model.Card
		if err := json.Unmarshal(data, &card); err != nil {
			return nil, fmt.Errorf("カードのデコードに失敗しました (%s/%s): %w", deckKey, key, err)
		}
		cards[key] = card
	}
	return cards, nil
}

// ScheduledCards はユーザーのデッキ1つ分の学習レコード集合を返す。
func (a *Accessor) ScheduledCards(ctx context.Context, uid, deckKey string) (map[string]model.ScheduledCard, error) {
	raw, err := a.graph.ReadSubtree(ctx, LearningDeckPath(uid, deckKey))
	if err != nil {
		return nil, fmt.Errorf("学習レコード集合の取得に失敗しました: %w", err)
	}

	scheduled := make(map[string]model.ScheduledCard, len(raw))
	for key, data := range raw {
		var sc model.ScheduledCard
		if err := json.Unmarshal(data, &sc); err != nil {
			return nil, fmt.Errorf("学習レコードのデコードに失敗しました (%s/%s/%s): %w", uid, deckKey, key, err)
		}
		scheduled[key] = sc
	}
	return scheduled, nil
}

// DeckAccessByDeck はデッキ1つのアクセス権集合を返す。
func (a *Accessor) DeckAccessByDeck(ctx context.Context, deckKey string) (map[string]model.DeckAccess, error) {
	raw, err := a.graph.ReadSubtree(ctx, DeckAccessDeckPath(deckKey))
	if err != nil {
		return nil, fmt.Errorf("アクセス権集合の取得に失敗しました: %w", err)
	}

	grants := make(map[string]model.DeckAccess, len(raw))
	for uid, data := range raw {
		var grant model.DeckAccess
		if err := json.Unmarshal(data, &grant); err != nil {
			return nil, fmt.Errorf("アクセス権のデコードに失敗しました (%s/%s): %w", deckKey, uid, err)
		}
		grants[uid] = grant
	}
	return grants, nil
}

// AllDeckAccess は全デッキのアクセス権集合を返す。
func (a *Accessor) AllDeckAccess(ctx context.Context) (map[string]map[string]model.DeckAccess, error) {
	raw, err := a.graph.ReadSubtree(ctx, rootDeckAccess)
	if err != nil {
		return nil, fmt.Errorf("全アクセス権の取得に失敗しました: %w", err)
	}

	result := make(map[string]map[string]model.DeckAccess)
	for key, data := range raw {
		deckKey, uid, ok := splitTwo(key)
		if !ok {
			// 想定外の深さのノードはスキップする
			continue
		}
		var grant model.DeckAccess
		if err := json.Unmarshal(data, &grant); err != nil {
			return nil, fmt.Errorf("アクセス権のデコードに失敗しました (%s): %w", key, err)
		}
		if result[deckKey] == nil {
			result[deckKey] = make(map[string]model.DeckAccess)
		}
		result[deckKey][uid] = grant
	}
	return result, nil
}

// AllDeckListings は全ユーザーのデッキ一覧を返す。
func (a *Accessor) AllDeckListings(ctx context.Context) (map[string]map[string]model.DeckListing, error) {
	raw, err := a.graph.ReadSubtree(ctx, rootDecks)
	if err != nil {
		return nil, fmt.Errorf("全デッキ一覧の取得に失敗しました: %w", err)
	}

	result := make(map[string]map[string]model.DeckListing)
	for key, data := range raw {
		uid, deckKey, ok := splitTwo(key)
		if !ok {
			continue
		}
		var listing model.DeckListing
		if err := json.Unmarshal(data, &listing); err != nil {
			return nil, fmt.Errorf("デッキ一覧エントリのデコードに失敗しました (%s): %w", key, err)
		}
		if result[uid] == nil {
			result[uid] = make(map[string]model.DeckListing)
		}
		result[uid][deckKey] = listing
	}
	return result, nil
}

// DeckName はユーザー自身のデッキ一覧に載っているデッキ名を返す。
func (a *Accessor) DeckName(ctx context.Context, uid, deckKey string) (string, error) {
	data, err := a.graph.ReadLeaf(ctx, DeckListingPath(uid, deckKey))
	if err != nil {
		return "", fmt.Errorf("デッキ名の取得に失敗しました: %w", err)
	}
	if data == nil {
		return "", nil
	}

	var listing model.DeckListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return "", fmt.Errorf("デッキ一覧エントリのデコードに失敗しました (%s/%s): %w", uid, deckKey, err)
	}
	return listing.Name, nil
}

// DeliveryEndpoints はユーザーの配信エンドポイント集合を返す。
func (a *Accessor) DeliveryEndpoints(ctx context.Context, uid string) (map[string]model.DeliveryEndpoint, error) {
	raw, err := a.graph.ReadSubtree(ctx, EndpointsUserPath(uid))
	if err != nil {
		return nil, fmt.Errorf("配信エンドポイントの取得に失敗しました: %w", err)
	}

	endpoints := make(map[string]model.DeliveryEndpoint, len(raw))
	for id, data := range raw {
		var ep model.DeliveryEndpoint
		if err := json.Unmarshal(data, &ep); err != nil {
			return nil, fmt.Errorf("配信エンドポイントのデコードに失敗しました (%s/%s): %w", uid, id, err)
		}
		endpoints[id] = ep
	}
	return endpoints, nil
}

// BatchWrite は複数パスへの書き込みを原子的に適用する。
func (a *Accessor) BatchWrite(ctx context.Context, updates map[string]any) error {
	return a.graph.BatchWrite(ctx, updates)
}

// splitTwo は相対キーをちょうど2セグメントに分割する。
// views/{uid}/{deckKey}/... のような深いノードを弾くために使う。
func splitTwo(key string) (first, second string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
