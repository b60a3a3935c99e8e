package repository

import (
	"context"
	"database/sql"
	"strings"

	"flic_feed/db"
	"flic_feed/models"
)

// InteractionRepo 用户互动历史表 user_interactions
type InteractionRepo struct {
	conn *sql.DB
}

// NewInteractionRepo conn 为 nil 时使用全局连接 db.DB
func NewInteractionRepo(conn *sql.DB) *InteractionRepo {
	return &InteractionRepo{conn: conn}
}

func (r *InteractionRepo) db() *sql.DB {
	if r.conn != nil {
		return r.conn
	}
	return db.DB
}

// ListInteractions 近 lookbackDays 天的去重互动记录，lookbackDays<=0 表示不限时间
func (r *InteractionRepo) ListInteractions(ctx context.Context, lookbackDays int) ([]models.Interaction, error) {
	q := `SELECT DISTINCT user_id, post_id FROM user_interactions`
	args := make([]any, 0, 1)
	if lookbackDays > 0 {
		q += ` WHERE created_at >= DATE_SUB(NOW(), INTERVAL ? DAY)`
		args = append(args, lookbackDays)
	}
	q += ` ORDER BY user_id, post_id`

	rows, err := r.db().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Interaction, 0)
	for rows.Next() {
		var userID, postID sql.NullString
		if err := rows.Scan(&userID, &postID); err != nil {
			return nil, err
		}
		u := strings.TrimSpace(userID.String)
		p := strings.TrimSpace(postID.String)
		if !userID.Valid || !postID.Valid || u == "" || p == "" {
			continue
		}
		out = append(out, models.Interaction{UserID: u, PostID: p})
	}
	return out, rows.Err()
}
