package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goccy/go-json"

	"flic_feed/affinity"
	"flic_feed/db"
)

// SnapshotRepo 模型快照表 model_snapshots，实现 affinity.SnapshotStore
type SnapshotRepo struct {
	conn *sql.DB
}

// NewSnapshotRepo conn 为 nil 时使用全局连接 db.DB
func NewSnapshotRepo(conn *sql.DB) *SnapshotRepo {
	return &SnapshotRepo{conn: conn}
}

func (r *SnapshotRepo) db() *sql.DB {
	if r.conn != nil {
		return r.conn
	}
	return db.DB
}

// SaveSnapshot 追加一条快照，训练摘要单独存一列便于排查
func (r *SnapshotRepo) SaveSnapshot(ctx context.Context, data []byte, report affinity.TrainReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}
	_, err = r.db().ExecContext(ctx, `
		INSERT INTO model_snapshots (source, users, items, final_loss, report, payload, trained_at, created_at)
		VALUES (?, ?, ?, ?, CAST(? AS JSON), ?, ?, NOW())
	`, report.Source, report.Users, report.Items, report.FinalLoss, string(reportJSON), data, report.TrainedAt)
	return err
}

// LatestSnapshot 最近一次训练的快照，没有记录时返回 affinity.ErrNoSnapshot
func (r *SnapshotRepo) LatestSnapshot(ctx context.Context) ([]byte, error) {
	var payload []byte
	err := r.db().QueryRowContext(ctx, `
		SELECT payload
		FROM model_snapshots
		ORDER BY trained_at DESC, id DESC
		LIMIT 1
	`).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, affinity.ErrNoSnapshot
		}
		return nil, err
	}
	return payload, nil
}

// PruneSnapshots 只保留最近 keep 条快照
func (r *SnapshotRepo) PruneSnapshots(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	res, err := r.db().ExecContext(ctx, `
		DELETE FROM model_snapshots
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id FROM model_snapshots ORDER BY trained_at DESC, id DESC LIMIT ?
			) AS latest
		)
	`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
