package store

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hitoshi/deckman/internal/model"
)

// --- インメモリのGraphStore偽実装 ---

type memGraph struct {
	nodes map[string]json.RawMessage
}

func newMemGraph() *memGraph {
	return &memGraph{nodes: make(map[string]json.RawMessage)}
}

func (m *memGraph) set(t *testing.T, path string, value any) {
	t.Helper()
	data, err := json.Marshal(value)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	m.nodes[path] = data
}

func (m *memGraph) ReadLeaf(ctx context.Context, path string) (json.RawMessage, error) {
	return m.nodes[path], nil
}

func (m *memGraph) ReadSubtree(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	prefix := path + "/"
	result := make(map[string]json.RawMessage)
	for p, v := range m.nodes {
		if strings.HasPrefix(p, prefix) {
			result[strings.TrimPrefix(p, prefix)] = v
		}
	}
	return result, nil
}

func (m *memGraph) BatchWrite(ctx context.Context, updates map[string]any) error {
	for path, value := range updates {
		if value == nil {
			delete(m.nodes, path)
			prefix := path + "/"
			for p := range m.nodes {
				if strings.HasPrefix(p, prefix) {
					delete(m.nodes, p)
				}
			}
			continue
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		m.nodes[path] = data
	}
	return nil
}

func (m *memGraph) CreateLeaf(ctx context.Context, path string, value any) error {
	return m.BatchWrite(ctx, map[string]any{path: value})
}

func (m *memGraph) DeleteLeaf(ctx context.Context, path string) error {
	delete(m.nodes, path)
	return nil
}

// --- テスト ---

// AccessorがStoreインターフェースを満たすことを検証
func TestAccessor_ImplementsInterface(t *testing.T) {
	var _ Store = (*Accessor)(nil)
}

// PostgresGraphStoreがGraphStoreインターフェースを満たすことを検証
func TestPostgresGraphStore_ImplementsInterface(t *testing.T) {
	var _ GraphStore = (*PostgresGraphStore)(nil)
}

// Cardsがカードキーで引けるマップを返すことを検証
func TestAccessor_Cards(t *testing.T) {
	g := newMemGraph()
	g.set(t, "cards/deck-1/card-1", model.Card{Front: "犬", Back: "dog"})
	g.set(t, "cards/deck-1/card-2", model.Card{Front: "猫", Back: "cat"})
	g.set(t, "cards/deck-2/card-9", model.Card{Front: "other"})

	a := NewAccessor(g)
	cards, err := a.Cards(context.Background(), "deck-1")
	if err != nil {
		t.Fatalf("Cards returned error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards["card-1"].Front != "犬" {
		t.Errorf("card-1 front = %q, want %q", cards["card-1"].Front, "犬")
	}
}

// ScheduledCardsがデッキ単位で学習レコードを返すことを検証
func TestAccessor_ScheduledCards(t *testing.T) {
	g := newMemGraph()
	g.set(t, "learning/user-1/deck-1/card-1", model.ScheduledCard{Level: model.LevelL0, RepeatAt: 0})
	g.set(t, "learning/user-1/deck-2/card-5", model.ScheduledCard{Level: "L3", RepeatAt: 1700000000000})
	g.set(t, "learning/user-2/deck-1/card-1", model.ScheduledCard{Level: "L1"})

	a := NewAccessor(g)
	scheduled, err := a.ScheduledCards(context.Background(), "user-1", "deck-1")
	if err != nil {
		t.Fatalf("ScheduledCards returned error: %v", err)
	}
	if len(scheduled) != 1 {
		t.Fatalf("expected 1 scheduled card, got %d", len(scheduled))
	}
	if scheduled["card-1"].Level != model.LevelL0 {
		t.Errorf("level = %q, want %q", scheduled["card-1"].Level, model.LevelL0)
	}
}

// AllDeckAccessがdeckKey→uidの二段マップを返すことを検証
func TestAccessor_AllDeckAccess(t *testing.T) {
	g := newMemGraph()
	g.set(t, "deck_access/deck-1/user-1", model.DeckAccess{Access: model.AccessOwner})
	g.set(t, "deck_access/deck-1/user-2", model.DeckAccess{Access: model.AccessShared})
	g.set(t, "deck_access/deck-2/user-1", model.DeckAccess{Access: model.AccessOwner})

	a := NewAccessor(g)
	all, err := a.AllDeckAccess(context.Background())
	if err != nil {
		t.Fatalf("AllDeckAccess returned error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 decks, got %d", len(all))
	}
	if all["deck-1"]["user-2"].Access != model.AccessShared {
		t.Errorf("deck-1/user-2 access = %q, want shared", all["deck-1"]["user-2"].Access)
	}
}

// AllDeckListingsが2セグメントより深いノードを無視することを検証
func TestAccessor_AllDeckListings_SkipsDeepNodes(t *testing.T) {
	g := newMemGraph()
	g.set(t, "decks/user-1/deck-1", model.DeckListing{Name: "英単語"})
	g.set(t, "decks/user-1/deck-1/extra/junk", map[string]string{"x": "y"})

	a := NewAccessor(g)
	listings, err := a.AllDeckListings(context.Background())
	if err != nil {
		t.Fatalf("AllDeckListings returned error: %v", err)
	}
	if len(listings["user-1"]) != 1 {
		t.Fatalf("expected 1 listing for user-1, got %d", len(listings["user-1"]))
	}
	if listings["user-1"]["deck-1"].Name != "英単語" {
		t.Errorf("name = %q, want %q", listings["user-1"]["deck-1"].Name, "英単語")
	}
}

// DeckNameが一覧にないデッキで空文字列を返すことを検証
func TestAccessor_DeckName_AbsentReturnsEmpty(t *testing.T) {
	g := newMemGraph()
	g.set(t, "decks/user-1/deck-1", model.DeckListing{Name: "英単語"})

	a := NewAccessor(g)

	name, err := a.DeckName(context.Background(), "user-1", "deck-1")
	if err != nil {
		t.Fatalf("DeckName returned error: %v", err)
	}
	if name != "英単語" {
		t.Errorf("name = %q, want %q", name, "英単語")
	}

	name, err = a.DeckName(context.Background(), "user-1", "deck-404")
	if err != nil {
		t.Fatalf("DeckName returned error for absent deck: %v", err)
	}
	if name != "" {
		t.Errorf("expected empty name for absent deck, got %q", name)
	}
}

// BatchWriteのnil値がサブツリーごと削除されることを検証
func TestAccessor_BatchWrite_NilDeletesSubtree(t *testing.T) {
	g := newMemGraph()
	g.set(t, "learning/user-1/deck-1/card-1", model.NewScheduledCard())
	g.set(t, "learning/user-1/deck-1/card-2", model.NewScheduledCard())
	g.set(t, "learning/user-1/deck-2/card-3", model.NewScheduledCard())

	a := NewAccessor(g)
	err := a.BatchWrite(context.Background(), map[string]any{
		LearningDeckPath("user-1", "deck-1"): nil,
	})
	if err != nil {
		t.Fatalf("BatchWrite returned error: %v", err)
	}

	scheduled, _ := a.ScheduledCards(context.Background(), "user-1", "deck-1")
	if len(scheduled) != 0 {
		t.Errorf("expected deck-1 learning subtree deleted, got %d entries", len(scheduled))
	}
	remaining, _ := a.ScheduledCards(context.Background(), "user-1", "deck-2")
	if len(remaining) != 1 {
		t.Errorf("expected deck-2 learning data untouched, got %d entries", len(remaining))
	}
}
