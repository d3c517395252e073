package secrets

import (
	"context"
	"errors"
	"fmt"

	"github.com/dailyquill/dailyquill/internal/models"
)

var ErrNotFound = errors.New("secret not found")

// Store is keyed opaque blob storage. Values are encrypted at rest by
// the concrete implementation.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// One key per platform for the credential, one for the token, and one
// for any discovered sub-resource identifier.
func CredentialKey(p models.PlatformID) string { return fmt.Sprintf("credential:%s", p) }
func TokenKey(p models.PlatformID) string      { return fmt.Sprintf("token:%s", p) }
func SubResourceKey(p models.PlatformID) string {
	return fmt.Sprintf("subresource:%s", p)
}
