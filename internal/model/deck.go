// Package model はドメインモデルを定義する。
package model

// Card はデッキに属するカード1枚を表す。
// カード本体はデッキ所有者が管理し、本システムは内容を解釈しない。
type Card struct {
	Front string `json:"front"`
	Back  string `json:"back,omitempty"`
}

// AccessLevel はデッキへのアクセス種別を表す。
type AccessLevel string

const (
	// AccessOwner はデッキ作成者自身のアクセスを示す。
	// デッキ作成時に自動的に付与され、共有ファンアウトの対象外。
	AccessOwner AccessLevel = "owner"
	// AccessShared は共有によって付与されたアクセスを示す。
	AccessShared AccessLevel = "shared"
)

// DeckAccess はユーザーにデッキの閲覧を許可するアクセス権レコードを表す。
// DisplayName/PhotoURL/Emailは認証サービスから取得した表示用キャッシュで、
// 整合スイープ時に更新される。
type DeckAccess struct {
	Access      AccessLevel `json:"access"`
	DisplayName string      `json:"displayName,omitempty"`
	PhotoURL    string      `json:"photoUrl,omitempty"`
	Email       string      `json:"email,omitempty"`
}

// DeckListing はユーザー自身のデッキ一覧に載るデッキのエントリを表す。
// 共有を受けたユーザーが自分の一覧からデッキを外すことがあるため、
// アクセス権とは独立して存在する。
type DeckListing struct {
	Name string `json:"name"`
}

// DeliveryEndpoint はプッシュ通知の配信先エンドポイントを表す。
// Nameは端末の表示名（ログ用）。
type DeliveryEndpoint struct {
	Name string `json:"name,omitempty"`
}
