package secrets

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dailyquill/dailyquill/internal/models"
)

// Keyring is the typed view over the Store used by the orchestrator
// and the connectors.
type Keyring struct {
	store Store
}

func NewKeyring(store Store) *Keyring {
	return &Keyring{store: store}
}

func (k *Keyring) SaveCredential(ctx context.Context, cred *models.Credential) error {
	b, err := json.Marshal(cred)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return k.store.Set(ctx, CredentialKey(cred.Platform), b)
}

func (k *Keyring) Credential(ctx context.Context, p models.PlatformID) (*models.Credential, error) {
	b, err := k.store.Get(ctx, CredentialKey(p))
	if err != nil {
		return nil, err
	}
	var cred models.Credential
	if err := json.Unmarshal(b, &cred); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &cred, nil
}

func (k *Keyring) HasCredential(ctx context.Context, p models.PlatformID) bool {
	ok, err := k.store.Exists(ctx, CredentialKey(p))
	return err == nil && ok
}

func (k *Keyring) DeleteCredential(ctx context.Context, p models.PlatformID) error {
	return k.store.Delete(ctx, CredentialKey(p))
}

// SaveToken replaces the stored token for the platform in one write.
func (k *Keyring) SaveToken(ctx context.Context, tok *models.Token) error {
	b, err := json.Marshal(tok)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return k.store.Set(ctx, TokenKey(tok.Platform), b)
}

func (k *Keyring) Token(ctx context.Context, p models.PlatformID) (*models.Token, error) {
	b, err := k.store.Get(ctx, TokenKey(p))
	if err != nil {
		return nil, err
	}
	var tok models.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &tok, nil
}

func (k *Keyring) HasToken(ctx context.Context, p models.PlatformID) bool {
	ok, err := k.store.Exists(ctx, TokenKey(p))
	return err == nil && ok
}

func (k *Keyring) DeleteToken(ctx context.Context, p models.PlatformID) error {
	return k.store.Delete(ctx, TokenKey(p))
}

func (k *Keyring) SaveSubResource(ctx context.Context, p models.PlatformID, id string) error {
	return k.store.Set(ctx, SubResourceKey(p), []byte(id))
}

func (k *Keyring) SubResource(ctx context.Context, p models.PlatformID) (string, error) {
	b, err := k.store.Get(ctx, SubResourceKey(p))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (k *Keyring) DeleteSubResource(ctx context.Context, p models.PlatformID) error {
	return k.store.Delete(ctx, SubResourceKey(p))
}
