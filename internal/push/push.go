// Package push はプッシュ通知ゲートウェイへの送信クライアントを提供する。
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// ErrInvalidEndpoint は配信エンドポイントが恒久的に無効
// （端末側でトークンが失効・登録解除済み）であることを示す。
// この分類を受けた呼び出し元はエンドポイントを削除し、再試行しない。
var ErrInvalidEndpoint = errors.New("push: endpoint permanently invalid")

// Notification は送信するプッシュ通知1件を表す。
type Notification struct {
	EndpointID string `json:"token"`
	Title      string `json:"title"`
	Body       string `json:"body"`
}

// Sender はプッシュ通知送信のインターフェース。
type Sender interface {
	// Send は通知を1件送信する。エンドポイントが恒久的に無効な場合は
	// ErrInvalidEndpointを返す。チャネルが無効化されている場合は
	// エラーを返さず何もしない。
	Send(ctx context.Context, n Notification) error
}

// HTTPSender は設定されたゲートウェイにHTTPで通知を送るSender実装。
// エンドポイントURLが未設定の場合は無効化された状態で生成される。
type HTTPSender struct {
	httpClient *http.Client
	endpoint   string
	logger     *slog.Logger
	enabled    bool
}

// NewHTTPSender はHTTPSenderの新しいインスタンスを生成する。
// endpointが空の場合は無効化されたインスタンスを返す。
func NewHTTPSender(httpClient *http.Client, endpoint string, logger *slog.Logger) *HTTPSender {
	if endpoint == "" {
		logger.Info("プッシュチャネルは無効です（PUSH_ENDPOINT未設定）")
		return &HTTPSender{logger: logger, enabled: false}
	}
	return &HTTPSender{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
		enabled:    true,
	}
}

// gatewayError はゲートウェイのエラーレスポンスボディを表す。
type gatewayError struct {
	Code string `json:"code"`
}

// Send は通知を1件送信する。
func (s *HTTPSender) Send(ctx context.Context, n Notification) error {
	if !s.enabled {
		return nil
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("通知ペイロードのシリアライズに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("プッシュゲートウェイの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	// 404/410、またはボディのcodeがunregisteredの場合は
	// トークン失効として恒久的に無効と分類する
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		return fmt.Errorf("ステータス %d: %w", resp.StatusCode, ErrInvalidEndpoint)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var gerr gatewayError
	if json.Unmarshal(body, &gerr) == nil && gerr.Code == "unregistered" {
		return fmt.Errorf("ゲートウェイ応答 %s: %w", gerr.Code, ErrInvalidEndpoint)
	}

	return fmt.Errorf("プッシュゲートウェイがステータス %d を返しました", resp.StatusCode)
}
