package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/hitoshi/deckman/internal/model"
)

// AuthClient は認証サービスのHTTP APIを呼び出すResolver実装。
// 整合スイープ中は大量の問い合わせが発生しうるため、
// レートリミッタで外部API呼び出し頻度を制限する。
type AuthClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewAuthClient はAuthClientの新しいインスタンスを生成する。
// ratePerSecが0以下の場合はデフォルト値20を使用する。
func NewAuthClient(httpClient *http.Client, baseURL string, ratePerSec float64, logger *slog.Logger) *AuthClient {
	if ratePerSec <= 0 {
		ratePerSec = 20
	}
	return &AuthClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), int(ratePerSec)),
		logger:     logger,
	}
}

// ResolveByUID はuidからユーザー情報を解決する。
func (c *AuthClient) ResolveByUID(ctx context.Context, uid string) (*model.UserRecord, error) {
	var user model.UserRecord
	err := c.getJSON(ctx, c.baseURL+"/api/users/"+url.PathEscape(uid), &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ResolveByEmail はメールアドレスからuidを解決する。
func (c *AuthClient) ResolveByEmail(ctx context.Context, email string) (string, error) {
	var result struct {
		UID string `json:"uid"`
	}
	reqURL := c.baseURL + "/api/users:lookup?email=" + url.QueryEscape(email)
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return "", err
	}
	return result.UID, nil
}

// ListUsers はユーザー一覧を1ページ取得する。
func (c *AuthClient) ListUsers(ctx context.Context, pageToken string, pageSize int) (*UserPage, error) {
	q := url.Values{}
	q.Set("pageSize", strconv.Itoa(pageSize))
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}

	var result struct {
		Users         []model.UserRecord `json:"users"`
		NextPageToken string             `json:"nextPageToken"`
	}
	if err := c.getJSON(ctx, c.baseURL+"/api/users?"+q.Encode(), &result); err != nil {
		return nil, err
	}
	return &UserPage{Users: result.Users, NextPageToken: result.NextPageToken}, nil
}

// getJSON はGETリクエストを実行しJSONレスポンスをデコードする。
// 404はErrNotFoundとして返す。
func (c *AuthClient) getJSON(ctx context.Context, reqURL string, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("レートリミッタの待機が中断されました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("認証サービスの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("認証サービスの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("認証サービスがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return fmt.Errorf("認証サービスがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	return nil
}
