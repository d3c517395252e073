package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dailyquill/dailyquill/internal/models"
)

type PostLogRepository interface {
	Create(ctx context.Context, log *models.PostLog) (int64, error)
	GetByPostID(ctx context.Context, postID int64) ([]*models.PostLog, error)
}

type postLogRepository struct {
	db *sql.DB
}

func NewPostLogRepository(db *sql.DB) PostLogRepository {
	return &postLogRepository{db: db}
}

func (r *postLogRepository) Create(ctx context.Context, log *models.PostLog) (int64, error) {
	query := `
		INSERT INTO post_logs (post_id, platform, success, remote_id, remote_url, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, log.PostID, log.Platform, log.Success, log.RemoteID, log.RemoteURL, log.Error).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postLogRepository) GetByPostID(ctx context.Context, postID int64) ([]*models.PostLog, error) {
	query := `SELECT id, post_id, platform, success, remote_id, remote_url, error_message, created_at FROM post_logs WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var logs []*models.PostLog
	for rows.Next() {
		var entry models.PostLog
		if err := rows.Scan(&entry.ID, &entry.PostID, &entry.Platform, &entry.Success, &entry.RemoteID, &entry.RemoteURL, &entry.Error, &entry.CreatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		logs = append(logs, &entry)
	}

	return logs, rows.Err()
}
