// Package identity は認証サービスへの問い合わせクライアントを提供する。
// ユーザー情報の解決と一覧取得のみを行い、認証データベースは管理しない。
package identity

import (
	"context"
	"errors"

	"github.com/hitoshi/deckman/internal/model"
)

// ErrNotFound は指定されたユーザーが認証サービスに存在しないことを示す。
// 例外的な失敗ではなく、呼び出し元が分岐に使う正常な結果のひとつ。
var ErrNotFound = errors.New("identity: user not found")

// UserPage はユーザー一覧の1ページを表す。
// NextPageTokenが空の場合、これが最終ページ。
type UserPage struct {
	Users         []model.UserRecord
	NextPageToken string
}

// Resolver は認証サービスへの問い合わせインターフェース。
type Resolver interface {
	// ResolveByUID はuidからユーザー情報を解決する。
	// 存在しない場合はErrNotFoundを返す。
	ResolveByUID(ctx context.Context, uid string) (*model.UserRecord, error)

	// ResolveByEmail はメールアドレスからuidを解決する。
	// 存在しない場合はErrNotFoundを返す。
	ResolveByEmail(ctx context.Context, email string) (string, error)

	// ListUsers はユーザー一覧を1ページ取得する。
	// pageTokenが空の場合は先頭ページを返す。
	ListUsers(ctx context.Context, pageToken string, pageSize int) (*UserPage, error)
}
