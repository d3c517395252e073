package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dailyquill/dailyquill/internal/models"
)

type SettingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	UpdatePostingTime(ctx context.Context, hour, minute int) error
	ListPlatformSettings(ctx context.Context) ([]*models.PlatformSetting, error)
	SetPlatformEnabled(ctx context.Context, platform models.PlatformID, enabled bool) error
}

type settingsRepository struct {
	db *sql.DB
}

func NewSettingsRepository(db *sql.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

func (r *settingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := `SELECT id, posting_hour, posting_minute, updated_at FROM settings WHERE id = 1`
	row := r.db.QueryRowContext(ctx, query)

	var settings models.Settings
	err := row.Scan(&settings.ID, &settings.PostingHour, &settings.PostingMinute, &settings.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return &settings, nil
}

func (r *settingsRepository) UpdatePostingTime(ctx context.Context, hour, minute int) error {
	query := `
		INSERT INTO settings (id, posting_hour, posting_minute)
		VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET posting_hour = $1, posting_minute = $2, updated_at = NOW()
	`
	_, err := r.db.ExecContext(ctx, query, hour, minute)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *settingsRepository) ListPlatformSettings(ctx context.Context) ([]*models.PlatformSetting, error) {
	query := `SELECT platform, enabled FROM platform_settings`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var settings []*models.PlatformSetting
	for rows.Next() {
		var setting models.PlatformSetting
		if err := rows.Scan(&setting.Platform, &setting.Enabled); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		settings = append(settings, &setting)
	}

	return settings, rows.Err()
}

func (r *settingsRepository) SetPlatformEnabled(ctx context.Context, platform models.PlatformID, enabled bool) error {
	query := `
		INSERT INTO platform_settings (platform, enabled)
		VALUES ($1, $2)
		ON CONFLICT (platform) DO UPDATE SET enabled = $2
	`
	_, err := r.db.ExecContext(ctx, query, platform, enabled)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
