package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
)

func testLinkedin(t *testing.T, handler http.Handler) *Linkedin {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	l := NewLinkedin(staticTokens{tok: testToken(models.PlatformLinkedin)})
	l.client = srv.Client()
	l.apiURL = srv.URL
	return l
}

func TestLinkedinRegisterUploadShareSequence(t *testing.T) {
	var sequence []string
	var registerPayload map[string]any
	var sharePayload map[string]any
	var uploadedBody []byte

	l := testLinkedin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/userinfo":
			sequence = append(sequence, "userinfo")
			w.Write([]byte(`{"sub":"a1b2c3"}`))
		case "/assets":
			sequence = append(sequence, "register")
			assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&registerPayload))
			fmt.Fprintf(w, `{"value":{"asset":"urn:li:digitalmediaAsset:img-1","uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"http://%s/upload-slot"}}}}`, r.Host)
		case "/upload-slot":
			sequence = append(sequence, "upload")
			assert.Equal(t, http.MethodPut, r.Method)
			assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
			uploadedBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusCreated)
		case "/ugcPosts":
			sequence = append(sequence, "share")
			assert.Equal(t, "2.0.0", r.Header.Get("X-Restli-Protocol-Version"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sharePayload))
			w.Header().Set("X-Restli-Id", "urn:li:share:555")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	result := l.Post(context.Background(), tempImage(t), "Less, but better.", "https://dailyquill.app/7")

	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "urn:li:share:555", result.RemoteID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:555/", result.RemoteURL)
	assert.Equal(t, []string{"userinfo", "register", "upload", "share"}, sequence)

	register := registerPayload["registerUploadRequest"].(map[string]any)
	assert.Equal(t, "urn:li:person:a1b2c3", register["owner"])
	assert.Equal(t, []any{"urn:li:digitalmediaRecipe:feedshare-image"}, register["recipes"])

	assert.Equal(t, []byte("\x89PNG fake image bytes"), uploadedBody)

	assert.Equal(t, "urn:li:person:a1b2c3", sharePayload["author"])
	assert.Equal(t, "PUBLISHED", sharePayload["lifecycleState"])
	content := sharePayload["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "IMAGE", content["shareMediaCategory"])
	media := content["media"].([]any)[0].(map[string]any)
	assert.Equal(t, "urn:li:digitalmediaAsset:img-1", media["media"])
	commentary := content["shareCommentary"].(map[string]any)
	assert.Equal(t, "Less, but better.\n\nhttps://dailyquill.app/7", commentary["text"])
}

func TestLinkedinTextShareCarriesNoMedia(t *testing.T) {
	var sharePayload map[string]any
	l := testLinkedin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo":
			w.Write([]byte(`{"sub":"a1b2c3"}`))
		case "/ugcPosts":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sharePayload))
			w.Header().Set("X-Restli-Id", "urn:li:share:556")
			w.WriteHeader(http.StatusCreated)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	result := l.PostText(context.Background(), "Less, but better.")

	require.NoError(t, result.Err)
	content := sharePayload["specificContent"].(map[string]any)["com.linkedin.ugc.ShareContent"].(map[string]any)
	assert.Equal(t, "NONE", content["shareMediaCategory"])
	assert.NotContains(t, content, "media")
}

func TestLinkedinRegisterRejectionIsRegisterStage(t *testing.T) {
	l := testLinkedin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/userinfo":
			w.Write([]byte(`{"sub":"a1b2c3"}`))
		case "/assets":
			http.Error(w, `{"message":"quota exceeded"}`, http.StatusInternalServerError)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	result := l.Post(context.Background(), tempImage(t), "caption", "")

	require.Error(t, result.Err)
	assert.Empty(t, result.RemoteID)

	var upload *UploadError
	require.ErrorAs(t, result.Err, &upload)
	assert.Equal(t, "register", upload.Stage)
}

func TestLinkedinWithoutTokenIsNotConfigured(t *testing.T) {
	l := NewLinkedin(staticTokens{err: errors.New("no token stored")})

	assert.False(t, l.IsConfigured(context.Background()))

	result := l.Post(context.Background(), "/tmp/quote.png", "caption", "")
	assert.ErrorIs(t, result.Err, ErrNotConfigured)
}

func TestLinkedinVideoUnsupported(t *testing.T) {
	l := testLinkedin(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unsupported operation must not reach the network")
	}))

	result := l.PostVideo(context.Background(), "/tmp/quote.mp4", "caption")
	assert.ErrorIs(t, result.Err, ErrUnsupportedOperation)
}
