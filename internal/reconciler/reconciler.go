// Package reconciler はエンティティグラフ全体の整合スイープを提供する。
// 全アクセス権レコードを走査し、消えたユーザーの痕跡削除、
// 学習レコードのドリフト修復、表示用メタデータの更新を行う。
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/deckman/internal/identity"
	"github.com/hitoshi/deckman/internal/metrics"
	"github.com/hitoshi/deckman/internal/model"
	"github.com/hitoshi/deckman/internal/store"
)

// finalBatchGrace は期限超過後もメタデータ更新のコミットを待つ猶予時間。
const finalBatchGrace = 30 * time.Second

// MaterializerService は学習レコードのドリフト修復インターフェース。
type MaterializerService interface {
	MaterializeMissing(ctx context.Context, uid, deckKey string) (int, error)
}

// Summary はスイープ1回分の実行結果を表す。
type Summary struct {
	DeletedOrphanShares int `json:"deletedOrphanShares"` // 受領者が一覧から外した共有の検出数
	RepairedEntries     int `json:"repairedEntries"`     // 補完した学習レコード数
	PrunedUsers         int `json:"prunedUsers"`         // 痕跡を削除したユーザー数
}

// Reconciler はグラフ全体の整合スイープを実行する。
type Reconciler struct {
	store          store.Store
	identity       identity.Resolver
	materializer   MaterializerService
	metrics        metrics.Recorder
	logger         *slog.Logger
	deadline       time.Duration
	maxConcurrency int
	pageSize       int
}

// New はReconcilerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func New(
	s store.Store,
	res identity.Resolver,
	m MaterializerService,
	rec metrics.Recorder,
	logger *slog.Logger,
	deadline time.Duration,
	maxConcurrency int,
	pageSize int,
) *Reconciler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Reconciler{
		store:          s,
		identity:       res,
		materializer:   m,
		metrics:        rec,
		logger:         logger,
		deadline:       deadline,
		maxConcurrency: maxConcurrency,
		pageSize:       pageSize,
	}
}

// identityMemo はスイープ1回分のユーザー解決結果のメモ。
// 同じユーザーが複数デッキに現れるため、解決は最初の1回だけ行い、
// ErrNotFoundを含む結果をそのまま記憶する。単一ゴルーチンから使う。
type identityMemo struct {
	resolver identity.Resolver
	users    map[string]*model.UserRecord
	misses   map[string]bool
}

func newIdentityMemo(resolver identity.Resolver) *identityMemo {
	return &identityMemo{
		resolver: resolver,
		users:    make(map[string]*model.UserRecord),
		misses:   make(map[string]bool),
	}
}

// seed は一覧取得で得たユーザーをメモに事前登録する。
func (m *identityMemo) seed(users []model.UserRecord) {
	for i := range users {
		m.users[users[i].UID] = &users[i]
	}
}

// resolve はuidのユーザーを解決する。メモにあればそれを返し、
// なければ認証サービスへ問い合わせて結果を記憶する。
func (m *identityMemo) resolve(ctx context.Context, uid string) (*model.UserRecord, error) {
	if u, ok := m.users[uid]; ok {
		return u, nil
	}
	if m.misses[uid] {
		return nil, identity.ErrNotFound
	}

	u, err := m.resolver.ResolveByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			m.misses[uid] = true
		}
		return nil, err
	}
	m.users[uid] = u
	return u, nil
}

// Run は整合スイープを1回実行する。実行時間が設定された期限を超えた場合、
// 走査は途中で打ち切られるが、それまでに確定したバッチはすべて
// コミットされた状態で結果を返す。
func (r *Reconciler) Run(ctx context.Context) (*Summary, error) {
	sweepID := uuid.NewString()
	start := time.Now()
	logger := r.logger.With(slog.String("sweep_id", sweepID))
	logger.Info("整合スイープを開始します",
		slog.Duration("deadline", r.deadline),
		slog.Int("max_concurrency", r.maxConcurrency),
	)

	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	memo := newIdentityMemo(r.identity)
	r.seedMemo(ctx, memo, logger)

	access, err := r.store.AllDeckAccess(ctx)
	if err != nil {
		return nil, fmt.Errorf("アクセス権全体の読み取りに失敗しました: %w", err)
	}
	listings, err := r.store.AllDeckListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("デッキ一覧全体の読み取りに失敗しました: %w", err)
	}

	summary := &Summary{}
	metaUpdates := make(map[string]any)
	prunedUIDs := make(map[string]bool)
	var repaired atomic.Int64

	sem := make(chan struct{}, r.maxConcurrency)
	var wg sync.WaitGroup

	// 期限は新規タスクの投入のみ止める。投入済みの修復は自然に完走させる
	taskCtx := context.WithoutCancel(ctx)

sweep:
	for deckKey, grants := range access {
		for uid, grant := range grants {
			if ctx.Err() != nil {
				logger.Warn("期限超過のため走査を打ち切ります",
					slog.String("deck_key", deckKey),
				)
				break sweep
			}

			user, err := memo.resolve(ctx, uid)
			if errors.Is(err, identity.ErrNotFound) {
				if err := r.pruneUser(ctx, deckKey, uid, logger); err != nil {
					logger.Error("消えたユーザーの痕跡削除に失敗しました",
						slog.String("uid", uid),
						slog.Any("error", err),
					)
					continue
				}
				if !prunedUIDs[uid] {
					prunedUIDs[uid] = true
					summary.PrunedUsers++
				}
				continue
			}
			if err != nil {
				logger.Error("ユーザーの解決に失敗しました。スキップします",
					slog.String("uid", uid),
					slog.Any("error", err),
				)
				continue
			}

			if refreshed, changed := refreshAccess(grant, user); changed {
				metaUpdates[store.DeckAccessPath(deckKey, uid)] = refreshed
			}

			if _, listed := listings[uid][deckKey]; !listed {
				// 共有を受けた後に受領者が自分の一覧から外したデッキ。
				// 正常な状態なので修復はせず、件数だけ数える
				summary.DeletedOrphanShares++
				continue
			}

			wg.Add(1)
			sem <- struct{}{}
			go func(uid, deckKey string) {
				defer wg.Done()
				defer func() { <-sem }()

				created, err := r.materializer.MaterializeMissing(taskCtx, uid, deckKey)
				if err != nil {
					logger.Error("ドリフト修復に失敗しました",
						slog.String("uid", uid),
						slog.String("deck_key", deckKey),
						slog.Any("error", err),
					)
					return
				}
				repaired.Add(int64(created))
			}(uid, deckKey)
		}
	}

	wg.Wait()
	summary.RepairedEntries = int(repaired.Load())

	if len(metaUpdates) > 0 {
		// 期限を過ぎていても確定済みの更新は書き切る
		flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), finalBatchGrace)
		defer flushCancel()
		if err := r.store.BatchWrite(flushCtx, metaUpdates); err != nil {
			return nil, fmt.Errorf("メタデータ更新の書き込みに失敗しました: %w", err)
		}
	}

	duration := time.Since(start)
	r.metrics.RecordReconcileRun(duration)
	r.metrics.RecordDriftRepaired(summary.RepairedEntries)
	r.metrics.RecordOrphanShares(summary.DeletedOrphanShares)
	r.metrics.RecordPrunedUsers(summary.PrunedUsers)

	logger.Info("整合スイープが完了しました",
		slog.Int("deleted_orphan_shares", summary.DeletedOrphanShares),
		slog.Int("repaired_entries", summary.RepairedEntries),
		slog.Int("pruned_users", summary.PrunedUsers),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
	return summary, nil
}

// seedMemo は認証サービスの一覧APIでメモを事前に温める。
// 一覧の取得に失敗しても致命的ではなく、個別解決にフォールバックする。
func (r *Reconciler) seedMemo(ctx context.Context, memo *identityMemo, logger *slog.Logger) {
	pager := identity.NewPager(r.identity, r.pageSize)
	for {
		page, err := pager.Next(ctx)
		if err != nil {
			logger.Warn("ユーザー一覧の取得に失敗しました。個別解決にフォールバックします",
				slog.Any("error", err),
			)
			return
		}
		if page == nil {
			return
		}
		memo.seed(page.Users)
	}
}

// pruneUser は認証サービスに存在しないユーザーの痕跡を原子的に削除する。
// ユーザー単位のサブツリーと、現在走査中のデッキのアクセス権を対象とする。
// 同じユーザーが別のデッキにも現れた場合、サブツリー削除は冪等に再実行される。
func (r *Reconciler) pruneUser(ctx context.Context, deckKey, uid string, logger *slog.Logger) error {
	logger.Info("消えたユーザーの痕跡を削除します",
		slog.String("uid", uid),
		slog.String("deck_key", deckKey),
	)
	return r.store.BatchWrite(ctx, map[string]any{
		store.LearningUserPath(uid):        nil,
		store.DeckListingsUserPath(uid):    nil,
		store.ViewsUserPath(uid):           nil,
		store.DeckAccessPath(deckKey, uid): nil,
	})
}

// refreshAccess は認証サービスの最新情報でアクセス権レコードの
// 表示用メタデータを更新したコピーを返す。変更がなければchanged=false。
func refreshAccess(grant model.DeckAccess, user *model.UserRecord) (model.DeckAccess, bool) {
	refreshed := grant
	refreshed.DisplayName = user.DisplayName
	refreshed.PhotoURL = user.PhotoURL
	refreshed.Email = user.Email
	return refreshed, refreshed != grant
}
