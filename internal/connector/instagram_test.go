package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

func testInstagram(t *testing.T, handler http.Handler) (*Instagram, *secrets.Keyring) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	keys := testKeyring(t)
	tokens := staticTokens{tok: testToken(models.PlatformInstagram)}
	publisher := staticPublisher{url: "https://media.dailyquill.app/quote.png"}

	ig := NewInstagram(keys, tokens, publisher)
	ig.client = srv.Client()
	ig.graphURL = srv.URL
	return ig, keys
}

func TestInstagramTwoPhasePublish(t *testing.T) {
	var containerPayload map[string]any
	var publishPayload map[string]any
	ig, keys := testInstagram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/me":
			w.Write([]byte(`{"id":"ig-account-1","username":"dailyquill"}`))
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&publishPayload))
			w.Write([]byte(`{"id":"media-2"}`))
		case strings.HasSuffix(r.URL.Path, "/media"):
			require.NoError(t, json.NewDecoder(r.Body).Decode(&containerPayload))
			w.Write([]byte(`{"id":"container-1"}`))
		default:
			w.Write([]byte(`{"permalink":"https://www.instagram.com/p/abc/"}`))
		}
	}))

	result := ig.Post(context.Background(), tempImage(t), "Less, but better.", "")

	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "media-2", result.RemoteID)
	assert.Equal(t, "https://www.instagram.com/p/abc/", result.RemoteURL)

	assert.Equal(t, "https://media.dailyquill.app/quote.png", containerPayload["image_url"])
	assert.Equal(t, "Less, but better.", containerPayload["caption"])
	assert.Equal(t, "container-1", publishPayload["creation_id"])

	// Discovery result is persisted for the next cycle.
	id, err := keys.SubResource(context.Background(), models.PlatformInstagram)
	require.NoError(t, err)
	assert.Equal(t, "ig-account-1", id)
}

func TestInstagramPublishStepFailureCarriesStage(t *testing.T) {
	ig, keys := testInstagram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/media_publish"):
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"media not ready"}}`))
		case strings.HasSuffix(r.URL.Path, "/media"):
			w.Write([]byte(`{"id":"container-1"}`))
		}
	}))
	require.NoError(t, keys.SaveSubResource(context.Background(), models.PlatformInstagram, "ig-account-1"))

	result := ig.Post(context.Background(), tempImage(t), "caption", "")

	assert.False(t, result.Success)
	assert.Empty(t, result.RemoteID)

	var upload *UploadError
	require.ErrorAs(t, result.Err, &upload)
	assert.Equal(t, "publish", upload.Stage)
}

func TestInstagramStagingFailureCarriesStage(t *testing.T) {
	keys := testKeyring(t)
	require.NoError(t, keys.SaveSubResource(context.Background(), models.PlatformInstagram, "ig-account-1"))

	ig := NewInstagram(keys, staticTokens{tok: testToken(models.PlatformInstagram)},
		staticPublisher{err: fmt.Errorf("bucket unreachable")})

	result := ig.Post(context.Background(), tempImage(t), "caption", "")

	var upload *UploadError
	require.ErrorAs(t, result.Err, &upload)
	assert.Equal(t, "stage media", upload.Stage)
}

func TestInstagramTextOnlyUnsupported(t *testing.T) {
	ig, _ := testInstagram(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unsupported operation must not reach the network")
	}))

	result := ig.PostText(context.Background(), "caption")
	assert.ErrorIs(t, result.Err, ErrUnsupportedOperation)
}
