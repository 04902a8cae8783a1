// Package store は平坦パスツリーとして永続化されたエンティティグラフへの
// 型付きアクセスを提供する。永続化状態に直接触れるのはこのパッケージのみで、
// 他コンポーネントはパス→値マップを組み立ててBatchWriteに渡す。
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// GraphStore は平坦パスKVツリーへの低レベル読み書きインターフェース。
type GraphStore interface {
	// ReadLeaf は単一パスの値を取得する。存在しない場合はnilを返す。
	ReadLeaf(ctx context.Context, path string) (json.RawMessage, error)

	// ReadSubtree は指定パス直下のサブツリーを読み取り、
	// パスのプレフィックスを除いた相対キーで返す。存在しない場合は空マップを返す。
	ReadSubtree(ctx context.Context, path string) (map[string]json.RawMessage, error)

	// BatchWrite は複数パスへの書き込みを単一トランザクションで適用する。
	// 値がnilのパスはそのサブツリーごと削除する。全適用か非適用かのいずれかで、
	// 部分適用は発生しない。
	BatchWrite(ctx context.Context, updates map[string]any) error

	// CreateLeaf は単一パスに値を書き込む。既存の値は上書きされる。
	CreateLeaf(ctx context.Context, path string, value any) error

	// DeleteLeaf は単一パスの値を削除する。存在しない場合もエラーにしない。
	DeleteLeaf(ctx context.Context, path string) error
}

// PostgresGraphStore はgraph_nodesテーブルを使用したGraphStoreの実装。
type PostgresGraphStore struct {
	db *sql.DB
}

// NewPostgresGraphStore はPostgresGraphStoreを生成する。
func NewPostgresGraphStore(db *sql.DB) *PostgresGraphStore {
	return &PostgresGraphStore{db: db}
}

// ReadLeaf は単一パスの値を取得する。存在しない場合はnilを返す。
func (s *PostgresGraphStore) ReadLeaf(ctx context.Context, path string) (json.RawMessage, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM graph_nodes WHERE path = $1`,
		path,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ノードの読み取りに失敗しました (%s): %w", path, err)
	}

	return json.RawMessage(value), nil
}

// ReadSubtree は指定パス直下のサブツリーを相対キーで読み取る。
func (s *PostgresGraphStore) ReadSubtree(ctx context.Context, path string) (map[string]json.RawMessage, error) {
	prefix := path + "/"
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, value FROM graph_nodes WHERE path LIKE $1`,
		likeEscape(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("サブツリーの読み取りに失敗しました (%s): %w", path, err)
	}
	defer rows.Close()

	result := make(map[string]json.RawMessage)
	for rows.Next() {
		var p string
		var value []byte
		if err := rows.Scan(&p, &value); err != nil {
			return nil, fmt.Errorf("ノード行の読み取りに失敗しました: %w", err)
		}
		result[strings.TrimPrefix(p, prefix)] = json.RawMessage(value)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("サブツリーの走査に失敗しました (%s): %w", path, err)
	}

	return result, nil
}

// BatchWrite は複数パスへの書き込みを単一トランザクションで適用する。
func (s *PostgresGraphStore) BatchWrite(ctx context.Context, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("トランザクションの開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	for path, value := range updates {
		if value == nil {
			// nil値はサブツリーごと削除する
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM graph_nodes WHERE path = $1 OR path LIKE $2`,
				path, likeEscape(path+"/")+"%",
			); err != nil {
				return fmt.Errorf("ノードの削除に失敗しました (%s): %w", path, err)
			}
			continue
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("値のシリアライズに失敗しました (%s): %w", path, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO graph_nodes (path, value, updated_at) VALUES ($1, $2, now())
			 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			path, data,
		); err != nil {
			return fmt.Errorf("ノードの書き込みに失敗しました (%s): %w", path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}
	return nil
}

// CreateLeaf は単一パスに値を書き込む。
func (s *PostgresGraphStore) CreateLeaf(ctx context.Context, path string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("値のシリアライズに失敗しました (%s): %w", path, err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO graph_nodes (path, value, updated_at) VALUES ($1, $2, now())
		 ON CONFLICT (path) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		path, data,
	); err != nil {
		return fmt.Errorf("ノードの作成に失敗しました (%s): %w", path, err)
	}
	return nil
}

// DeleteLeaf は単一パスの値を削除する。
func (s *PostgresGraphStore) DeleteLeaf(ctx context.Context, path string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM graph_nodes WHERE path = $1`,
		path,
	); err != nil {
		return fmt.Errorf("ノードの削除に失敗しました (%s): %w", path, err)
	}
	return nil
}

// likeEscape はLIKEパターンに埋め込むリテラルをエスケープする。
// キーにユーザー入力由来の文字列が含まれるため、%と_をエスケープする。
func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
