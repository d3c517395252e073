package secrets

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/dailyquill/dailyquill/pkg/utils"
)

// postgresStore keeps secrets in a single key/value table, AES-GCM
// encrypted with the service secret key.
type postgresStore struct {
	db  *sql.DB
	key []byte
}

func NewPostgresStore(db *sql.DB, secretKey []byte) Store {
	return &postgresStore{db: db, key: secretKey}
}

func (s *postgresStore) Exists(ctx context.Context, key string) (bool, error) {
	var result int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM secrets WHERE key = $1`, key).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var sealed string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = $1`, key).Scan(&sealed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return utils.Decrypt(sealed, s.key)
}

func (s *postgresStore) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := utils.Encrypt(value, s.key)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO secrets (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, sealed); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (s *postgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = $1`, key); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
