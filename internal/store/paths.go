package store

// ツリー直下のコレクションルート。
// パス構造は learning/{uid}/{deckKey}/{cardKey} のように
// スラッシュ区切りのキー階層で表現する。
const (
	rootCards      = "cards"
	rootDeckAccess = "deck_access"
	rootDecks      = "decks"
	rootLearning   = "learning"
	rootViews      = "views"
	rootEndpoints  = "fcm"
)

// CardsPath はデッキのカードコレクションのパスを返す。
func CardsPath(deckKey string) string {
	return rootCards + "/" + deckKey
}

// CardPath はカード1枚のパスを返す。
func CardPath(deckKey, cardKey string) string {
	return rootCards + "/" + deckKey + "/" + cardKey
}

// DeckAccessPath はアクセス権レコード1件のパスを返す。
func DeckAccessPath(deckKey, uid string) string {
	return rootDeckAccess + "/" + deckKey + "/" + uid
}

// DeckAccessDeckPath はデッキ1つのアクセス権コレクションのパスを返す。
func DeckAccessDeckPath(deckKey string) string {
	return rootDeckAccess + "/" + deckKey
}

// DeckListingPath はユーザーのデッキ一覧エントリ1件のパスを返す。
func DeckListingPath(uid, deckKey string) string {
	return rootDecks + "/" + uid + "/" + deckKey
}

// DeckListingsUserPath はユーザーのデッキ一覧全体のパスを返す。
func DeckListingsUserPath(uid string) string {
	return rootDecks + "/" + uid
}

// LearningCardPath は学習レコード1件のパスを返す。
func LearningCardPath(uid, deckKey, cardKey string) string {
	return rootLearning + "/" + uid + "/" + deckKey + "/" + cardKey
}

// LearningDeckPath はユーザーのデッキ1つ分の学習レコード群のパスを返す。
func LearningDeckPath(uid, deckKey string) string {
	return rootLearning + "/" + uid + "/" + deckKey
}

// LearningUserPath はユーザーの学習レコード全体のパスを返す。
func LearningUserPath(uid string) string {
	return rootLearning + "/" + uid
}

// ViewsDeckPath はユーザーのデッキ1つ分のビュー状態のパスを返す。
func ViewsDeckPath(uid, deckKey string) string {
	return rootViews + "/" + uid + "/" + deckKey
}

// ViewsUserPath はユーザーのビュー状態全体のパスを返す。
func ViewsUserPath(uid string) string {
	return rootViews + "/" + uid
}

// EndpointPath は配信エンドポイント1件のパスを返す。
func EndpointPath(uid, endpointID string) string {
	return rootEndpoints + "/" + uid + "/" + endpointID
}

// EndpointsUserPath はユーザーの配信エンドポイント全体のパスを返す。
func EndpointsUserPath(uid string) string {
	return rootEndpoints + "/" + uid
}
