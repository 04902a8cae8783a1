// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/deckman/internal/config"
	"github.com/hitoshi/deckman/internal/database"
	"github.com/hitoshi/deckman/internal/handler"
	"github.com/hitoshi/deckman/internal/identity"
	"github.com/hitoshi/deckman/internal/logger"
	"github.com/hitoshi/deckman/internal/mail"
	"github.com/hitoshi/deckman/internal/materializer"
	"github.com/hitoshi/deckman/internal/metrics"
	"github.com/hitoshi/deckman/internal/notifier"
	"github.com/hitoshi/deckman/internal/push"
	"github.com/hitoshi/deckman/internal/reactor"
	"github.com/hitoshi/deckman/internal/reconciler"
	"github.com/hitoshi/deckman/internal/store"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandReconcile:
		return runReconcile(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// services はワイヤリング済みのサービス一式を保持する。
type services struct {
	db         *sql.DB
	store      store.Store
	identity   identity.Resolver
	reconciler *reconciler.Reconciler
	reactor    *reactor.Reactor
	registry   *prometheus.Registry
}

// buildServices はDB接続を開き、全サービスをワイヤリングする。
// 呼び出し元はdbのCloseに責任を持つ。
func buildServices(ctx context.Context, cfg *config.Config) (*services, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	graph := store.NewPostgresGraphStore(db)
	accessor := store.NewAccessor(graph)

	authClient := identity.NewAuthClient(
		&http.Client{Timeout: cfg.AuthAPITimeout},
		cfg.AuthAPIBaseURL,
		cfg.AuthAPIRateLimit,
		slog.Default(),
	)

	mailer, err := mail.NewSESMailer(ctx, cfg.SESRegion, cfg.SESFromEmail, slog.Default())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to build mailer: %w", err)
	}

	pushSender := push.NewHTTPSender(
		&http.Client{Timeout: cfg.PushTimeout},
		cfg.PushEndpoint,
		slog.Default(),
	)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	mat := materializer.New(accessor, slog.Default())
	notif := notifier.New(accessor, mailer, pushSender, collector, cfg.SESFromName, slog.Default())
	react := reactor.New(accessor, mat, notif, authClient, slog.Default())
	recon := reconciler.New(
		accessor, authClient, mat, collector, slog.Default(),
		cfg.ReconcileDeadline, cfg.ReconcileMaxConcurrent, cfg.UserPageSize,
	)

	return &services{
		db:         db,
		store:      accessor,
		identity:   authClient,
		reconciler: recon,
		reactor:    react,
		registry:   registry,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	svcs, err := buildServices(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		ReactorService:    svcs.reactor,
		ReconcilerService: svcs.reconciler,
		EmailResolver:     svcs.identity,
		DB:                svcs.db,
		Gatherer:          svcs.registry,
	}
	router := handler.NewRouter(deps)

	// 整合スイープはリクエスト内で完走するため、書き込みタイムアウトは
	// スイープ期限より長く取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ReconcileDeadline + time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runReconcile は整合スイープを1回実行して終了する。
// cron等の外部スケジューラからの定期実行用サブコマンド。
func runReconcile(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	svcs, err := buildServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svcs.db.Close()

	summary, err := svcs.reconciler.Run(ctx)
	if err != nil {
		return fmt.Errorf("reconcile failed: %w", err)
	}

	slog.Info("reconcile completed",
		slog.Int("deleted_orphan_shares", summary.DeletedOrphanShares),
		slog.Int("repaired_entries", summary.RepairedEntries),
		slog.Int("pruned_users", summary.PrunedUsers),
	)
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
