package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

type staticTokens struct {
	tok *models.Token
	err error
}

func (s staticTokens) Token(ctx context.Context, id models.PlatformID) (*models.Token, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tok, nil
}

type staticPublisher struct {
	url string
	err error
}

func (s staticPublisher) PublishFile(ctx context.Context, path string) (string, error) {
	return s.url, s.err
}

func testKeyring(t *testing.T) *secrets.Keyring {
	t.Helper()
	return secrets.NewKeyring(secrets.NewMemoryStore())
}

func testToken(platform models.PlatformID) *models.Token {
	return &models.Token{
		Platform:    platform,
		AccessToken: "access-token",
		TokenType:   "bearer",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
}

func tempImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quote.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG fake image bytes"), 0o644))
	return path
}
