// Package notifier はデッキ共有の通知ファンアウトを提供する。
// メールとプッシュの両チャネルへベストエフォートで配信し、
// どちらが失敗しても共有処理自体は成功させる。
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/deckman/internal/mail"
	"github.com/hitoshi/deckman/internal/metrics"
	"github.com/hitoshi/deckman/internal/push"
	"github.com/hitoshi/deckman/internal/store"
)

// ShareEvent は通知対象となる共有イベント1件を表す。
type ShareEvent struct {
	ActorName      string // 共有したユーザーの表示名
	ActorEmail     string // 共有したユーザーのアドレス（Reply-To用）
	RecipientUID   string
	RecipientEmail string
	DeckName       string
	CardCount      int
}

// Notifier は共有イベントの通知をメールとプッシュに配信する。
type Notifier struct {
	store   store.Store
	mailer  mail.Mailer
	push    push.Sender
	metrics metrics.Recorder
	appName string
	logger  *slog.Logger
}

// New はNotifierの新しいインスタンスを生成する。
// appNameは通知文面に使うプロダクト名（差出人表示にも使う）。
func New(s store.Store, m mail.Mailer, p push.Sender, rec metrics.Recorder, appName string, logger *slog.Logger) *Notifier {
	if appName == "" {
		appName = "Deckman"
	}
	return &Notifier{
		store:   s,
		mailer:  m,
		push:    p,
		metrics: rec,
		appName: appName,
		logger:  logger,
	}
}

// NotifyShare は共有イベントの通知を配信する。
// チャネルの失敗はログとメトリクスに記録した上で握りつぶし、
// 常に最後まで処理を続ける。恒久的に無効な配信エンドポイントは
// 検出次第まとめて削除する。
func (n *Notifier) NotifyShare(ctx context.Context, ev ShareEvent) {
	n.sendMail(ctx, ev)
	n.sendPush(ctx, ev)
}

func (n *Notifier) sendMail(ctx context.Context, ev ShareEvent) {
	if ev.RecipientEmail == "" {
		n.logger.Info("受領者のアドレスが不明なためメール通知をスキップします",
			slog.String("recipient_uid", ev.RecipientUID),
		)
		return
	}

	msg := mail.Message{
		FromName: fmt.Sprintf("%s via %s", ev.ActorName, n.appName),
		ReplyTo:  ev.ActorEmail,
		To:       ev.RecipientEmail,
		Subject:  fmt.Sprintf("%s shared a deck with you", ev.ActorName),
		Text: fmt.Sprintf(
			"Hello! %s has shared a %s deck %q (%d cards) with you! "+
				"Go to the %s app on your device to check it out",
			ev.ActorName, n.appName, ev.DeckName, ev.CardCount, n.appName),
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Error("メール通知の送信に失敗しました",
			slog.String("recipient_uid", ev.RecipientUID),
			slog.Any("error", err),
		)
		n.metrics.RecordMailFailure()
		return
	}
	n.metrics.RecordMailSent()
}

func (n *Notifier) sendPush(ctx context.Context, ev ShareEvent) {
	endpoints, err := n.store.DeliveryEndpoints(ctx, ev.RecipientUID)
	if err != nil {
		n.logger.Error("配信エンドポイントの読み取りに失敗しました",
			slog.String("recipient_uid", ev.RecipientUID),
			slog.Any("error", err),
		)
		return
	}

	removals := make(map[string]any)
	for endpointID, ep := range endpoints {
		err := n.push.Send(ctx, push.Notification{
			EndpointID: endpointID,
			Title:      fmt.Sprintf("%s shared a deck with you", ev.ActorName),
			Body:       fmt.Sprintf("%s shared their deck %q (%d cards) with you", ev.ActorName, ev.DeckName, ev.CardCount),
		})
		switch {
		case err == nil:
			n.metrics.RecordPushSent()
		case errors.Is(err, push.ErrInvalidEndpoint):
			// 失効済みトークン。次回以降の送信対象から外す
			n.logger.Info("無効な配信エンドポイントを削除します",
				slog.String("recipient_uid", ev.RecipientUID),
				slog.String("endpoint_id", endpointID),
				slog.String("endpoint_name", ep.Name),
			)
			removals[store.EndpointPath(ev.RecipientUID, endpointID)] = nil
			n.metrics.RecordPushFailure()
		default:
			n.logger.Error("プッシュ通知の送信に失敗しました",
				slog.String("recipient_uid", ev.RecipientUID),
				slog.String("endpoint_id", endpointID),
				slog.Any("error", err),
			)
			n.metrics.RecordPushFailure()
		}
	}

	if len(removals) == 0 {
		return
	}
	if err := n.store.BatchWrite(ctx, removals); err != nil {
		n.logger.Error("無効エンドポイントの削除に失敗しました",
			slog.String("recipient_uid", ev.RecipientUID),
			slog.Any("error", err),
		)
		return
	}
	n.metrics.RecordEndpointsPruned(len(removals))
}
