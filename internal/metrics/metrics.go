// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 通知ファンアウトと整合スイープから利用する。
type Recorder interface {
	RecordMailSent()
	RecordMailFailure()
	RecordPushSent()
	RecordPushFailure()
	RecordEndpointsPruned(count int)
	RecordDriftRepaired(count int)
	RecordOrphanShares(count int)
	RecordPrunedUsers(count int)
	RecordReconcileRun(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	mailSent          prometheus.Counter
	mailFail          prometheus.Counter
	pushSent          prometheus.Counter
	pushFail          prometheus.Counter
	endpointsPruned   prometheus.Counter
	driftRepaired     prometheus.Counter
	orphanShares      prometheus.Counter
	prunedUsers       prometheus.Counter
	reconcileRuns     prometheus.Counter
	reconcileDuration prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		mailSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_mail_sent_total",
			Help: "共有通知メール送信成功の合計数",
		}),
		mailFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_mail_fail_total",
			Help: "共有通知メール送信失敗の合計数",
		}),
		pushSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_push_sent_total",
			Help: "プッシュ通知送信成功の合計数",
		}),
		pushFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_push_fail_total",
			Help: "プッシュ通知送信失敗の合計数（無効エンドポイント含む）",
		}),
		endpointsPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_endpoints_pruned_total",
			Help: "削除された無効配信エンドポイントの合計数",
		}),
		driftRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_drift_repaired_total",
			Help: "ドリフト修復で補完された学習レコードの合計数",
		}),
		orphanShares: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_orphan_shares_total",
			Help: "共有後に受領者が一覧から外したデッキの検出数",
		}),
		prunedUsers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_pruned_users_total",
			Help: "認証サービスに存在せずデータを削除したユーザーの合計数",
		}),
		reconcileRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deckman_reconcile_runs_total",
			Help: "整合スイープ実行の合計数",
		}),
		reconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "deckman_reconcile_duration_seconds",
			Help:    "整合スイープの所要時間（秒）",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
	}

	reg.MustRegister(
		c.mailSent,
		c.mailFail,
		c.pushSent,
		c.pushFail,
		c.endpointsPruned,
		c.driftRepaired,
		c.orphanShares,
		c.prunedUsers,
		c.reconcileRuns,
		c.reconcileDuration,
	)

	return c
}

// RecordMailSent はメール送信成功を記録する。
func (c *Collector) RecordMailSent() { c.mailSent.Inc() }

// RecordMailFailure はメール送信失敗を記録する。
func (c *Collector) RecordMailFailure() { c.mailFail.Inc() }

// RecordPushSent はプッシュ送信成功を記録する。
func (c *Collector) RecordPushSent() { c.pushSent.Inc() }

// RecordPushFailure はプッシュ送信失敗を記録する。
func (c *Collector) RecordPushFailure() { c.pushFail.Inc() }

// RecordEndpointsPruned は無効エンドポイントの削除数を記録する。
func (c *Collector) RecordEndpointsPruned(count int) { c.endpointsPruned.Add(float64(count)) }

// RecordDriftRepaired はドリフト修復による補完レコード数を記録する。
func (c *Collector) RecordDriftRepaired(count int) { c.driftRepaired.Add(float64(count)) }

// RecordOrphanShares は受領者が一覧から外した共有の検出数を記録する。
func (c *Collector) RecordOrphanShares(count int) { c.orphanShares.Add(float64(count)) }

// RecordPrunedUsers は削除対象になったユーザー数を記録する。
func (c *Collector) RecordPrunedUsers(count int) { c.prunedUsers.Add(float64(count)) }

// RecordReconcileRun は整合スイープ1回分の実行を記録する。
func (c *Collector) RecordReconcileRun(duration time.Duration) {
	c.reconcileRuns.Inc()
	c.reconcileDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
