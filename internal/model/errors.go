package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, identity, system
	Action   string // 呼び出し元向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTrigger = "INVALID_TRIGGER"
	ErrCodeQueryMissing   = "QUERY_MISSING"
	ErrCodeUserNotFound   = "USER_NOT_FOUND"
)

// NewInvalidTriggerError はトリガーペイロードの検証エラーを生成する。
func NewInvalidTriggerError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTrigger,
		Message:  fmt.Sprintf("トリガーペイロードが不正です: %s", reason),
		Category: "validation",
		Action:   "変更されたエンティティのキーパスと値を含むJSONを送信してください。",
	}
}

// NewQueryMissingError は検索クエリ未指定エラーを生成する。
func NewQueryMissingError() *APIError {
	return &APIError{
		Code:     ErrCodeQueryMissing,
		Message:  "検索クエリが指定されていません。",
		Category: "validation",
		Action:   "qパラメータにメールアドレスを指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(query string) *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %s", query),
		Category: "identity",
		Action:   "メールアドレスを確認してください。",
	}
}
