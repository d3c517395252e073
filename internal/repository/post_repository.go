package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dailyquill/dailyquill/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) (int64, error)
	List(ctx context.Context, limit int) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	UpdateMediaPath(ctx context.Context, mediaPath string, postID int64) error
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (content_id, caption, link, scheduled_at, status, media_path)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, post.ContentID, post.Caption, post.Link, post.ScheduledAt, post.Status, post.MediaPath).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT id, content_id, caption, link, scheduled_at, status, media_path, created_at, updated_at FROM posts WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var post models.Post
	err := row.Scan(&post.ID, &post.ContentID, &post.Caption, &post.Link, &post.ScheduledAt, &post.Status, &post.MediaPath, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &post, nil
}

func (r *postRepository) List(ctx context.Context, limit int) ([]*models.Post, error) {
	query := `SELECT id, content_id, caption, link, scheduled_at, status, media_path, created_at, updated_at FROM posts ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.ContentID, &post.Caption, &post.Link, &post.ScheduledAt, &post.Status, &post.MediaPath, &post.CreatedAt, &post.UpdatedAt); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, &post)
	}

	return posts, rows.Err()
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `UPDATE posts SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, status, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateMediaPath(ctx context.Context, mediaPath string, postID int64) error {
	query := `UPDATE posts SET media_path = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, mediaPath, postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
