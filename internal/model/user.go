package model

// UserRecord は認証サービスが保持するユーザー情報を表す。
// 本システムはこれを参照するのみで、認証データベース自体は管理しない。
type UserRecord struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhotoURL    string `json:"photoUrl"`
}
