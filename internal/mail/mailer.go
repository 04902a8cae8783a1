// Package mail は共有通知メールの送信クライアントを提供する。
package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Message は送信するメール1通を表す。
type Message struct {
	FromName string // 表示上の差出人名（例: "Hanako via Deckman"）
	ReplyTo  string // 返信先（共有した本人のアドレス）
	To       string
	Subject  string
	Text     string
}

// Mailer はメール送信のインターフェース。
type Mailer interface {
	// Send はメールを1通送信する。チャネルが無効化されている場合は
	// エラーを返さず何もしない。
	Send(ctx context.Context, msg Message) error
}

// SESMailer はAmazon SES v2を使用したMailer実装。
// 差出人アドレスが未設定の場合は無効化された状態で生成され、
// Sendはサイレントに何もしない。
type SESMailer struct {
	client    *sesv2.Client
	fromEmail string
	logger    *slog.Logger
	enabled   bool
}

// NewSESMailer はSESMailerの新しいインスタンスを生成する。
// fromEmailが空の場合はAWS設定を読み込まず、無効化されたインスタンスを返す。
func NewSESMailer(ctx context.Context, region, fromEmail string, logger *slog.Logger) (*SESMailer, error) {
	if fromEmail == "" {
		logger.Info("メールチャネルは無効です（SES_FROM_EMAIL未設定）")
		return &SESMailer{logger: logger, enabled: false}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("AWS設定の読み込みに失敗しました: %w", err)
	}

	logger.Info("メールチャネルを有効化しました",
		slog.String("from", fromEmail),
		slog.String("region", region),
	)

	return &SESMailer{
		client:    sesv2.NewFromConfig(cfg),
		fromEmail: fromEmail,
		logger:    logger,
		enabled:   true,
	}, nil
}

// Enabled はメールチャネルが有効かどうかを返す。
func (m *SESMailer) Enabled() bool {
	return m.enabled
}

// Send はメールを1通送信する。
func (m *SESMailer) Send(ctx context.Context, msg Message) error {
	if !m.enabled {
		return nil
	}

	fromAddress := m.fromEmail
	if msg.FromName != "" {
		fromAddress = fmt.Sprintf("%s <%s>", msg.FromName, m.fromEmail)
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Text),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
	if msg.ReplyTo != "" {
		input.ReplyToAddresses = []string{msg.ReplyTo}
	}

	if _, err := m.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("メールの送信に失敗しました (%s): %w", msg.To, err)
	}

	m.logger.Info("通知メールを送信しました",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
