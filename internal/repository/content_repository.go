package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dailyquill/dailyquill/internal/models"
)

type ContentRepository interface {
	Create(ctx context.Context, item *models.ContentItem) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.ContentItem, error)
	// OldestUnused returns the queued item that has waited longest,
	// or nil when the queue is empty.
	OldestUnused(ctx context.Context) (*models.ContentItem, error)
	MarkUsed(ctx context.Context, id int64) error
	List(ctx context.Context, limit int) ([]*models.ContentItem, error)
	Remove(ctx context.Context, id int64) error
}

type contentRepository struct {
	db *sql.DB
}

func NewContentRepository(db *sql.DB) ContentRepository {
	return &contentRepository{db: db}
}

func (r *contentRepository) Create(ctx context.Context, item *models.ContentItem) (int64, error) {
	query := `
		INSERT INTO content_items (title, body, citation, link, category)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, item.Title, item.Body, item.Citation, item.Link, item.Category).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *contentRepository) GetByID(ctx context.Context, id int64) (*models.ContentItem, error) {
	query := `SELECT id, title, body, citation, link, category FROM content_items WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)

	var item models.ContentItem
	err := row.Scan(&item.ID, &item.Title, &item.Body, &item.Citation, &item.Link, &item.Category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &item, nil
}

func (r *contentRepository) OldestUnused(ctx context.Context) (*models.ContentItem, error) {
	query := `SELECT id, title, body, citation, link, category FROM content_items WHERE used_at IS NULL ORDER BY created_at, id LIMIT 1`
	row := r.db.QueryRowContext(ctx, query)

	var item models.ContentItem
	err := row.Scan(&item.ID, &item.Title, &item.Body, &item.Citation, &item.Link, &item.Category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &item, nil
}

func (r *contentRepository) MarkUsed(ctx context.Context, id int64) error {
	query := `UPDATE content_items SET used_at = NOW() WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *contentRepository) List(ctx context.Context, limit int) ([]*models.ContentItem, error) {
	query := `SELECT id, title, body, citation, link, category FROM content_items ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var items []*models.ContentItem
	for rows.Next() {
		var item models.ContentItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Body, &item.Citation, &item.Link, &item.Category); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		items = append(items, &item)
	}

	return items, rows.Err()
}

func (r *contentRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM content_items WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
