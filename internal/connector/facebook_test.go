package connector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

func testFacebook(t *testing.T, handler http.Handler) (*Facebook, *secrets.Keyring) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	keys := testKeyring(t)
	tokens := staticTokens{tok: testToken(models.PlatformFacebook)}

	fb := NewFacebook(keys, tokens)
	fb.client = srv.Client()
	fb.graphURL = srv.URL
	return fb, keys
}

func facebookHandler(t *testing.T, photoForm *map[string]string, feedForm *map[string]string, accountCalls *int) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			if accountCalls != nil {
				*accountCalls++
			}
			w.Write([]byte(`{"data":[{"id":"p1","name":"Cooking Club"},{"id":"p2","name":"Daily Wisdom"}]}`))
		case "/p2":
			assert.Equal(t, "access_token", r.URL.Query().Get("fields"))
			w.Write([]byte(`{"access_token":"page-token"}`))
		case "/p2/photos":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			if photoForm != nil {
				form := map[string]string{}
				for key, values := range r.MultipartForm.Value {
					form[key] = values[0]
				}
				*photoForm = form
			}
			_, _, err := r.FormFile("source")
			assert.NoError(t, err, "photo upload must carry the image bytes")
			w.Write([]byte(`{"id":"photo-1"}`))
		case "/p2/feed":
			require.NoError(t, r.ParseForm())
			if feedForm != nil {
				form := map[string]string{}
				for key, values := range r.PostForm {
					form[key] = values[0]
				}
				*feedForm = form
			}
			w.Write([]byte(`{"id":"p2_post-9"}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func TestFacebookTwoPhasePhotoThenFeedPost(t *testing.T) {
	var photoForm, feedForm map[string]string
	fb, keys := testFacebook(t, facebookHandler(t, &photoForm, &feedForm, nil))

	result := fb.Post(context.Background(), tempImage(t), "Well begun is half done.", "https://dailyquill.app/7")

	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "p2_post-9", result.RemoteID)
	assert.Equal(t, "https://www.facebook.com/p2_post-9", result.RemoteURL)

	assert.Equal(t, "false", photoForm["published"])
	assert.Equal(t, "page-token", photoForm["access_token"])

	assert.Equal(t, "Well begun is half done.", feedForm["message"])
	assert.Equal(t, "https://dailyquill.app/7", feedForm["link"])
	assert.Equal(t, `{"media_fbid":"photo-1"}`, feedForm["attached_media[0]"])
	assert.Equal(t, "page-token", feedForm["access_token"])

	pageID, err := keys.SubResource(context.Background(), models.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, "p2", pageID, "the keyword page must win over the first page")
}

func TestFacebookPageDiscoveryRunsOnce(t *testing.T) {
	accountCalls := 0
	fb, _ := testFacebook(t, facebookHandler(t, nil, nil, &accountCalls))

	for i := 0; i < 2; i++ {
		result := fb.Post(context.Background(), tempImage(t), "caption", "")
		require.NoError(t, result.Err)
	}
	assert.Equal(t, 1, accountCalls)
}

func TestFacebookPhotoRejectionIsUploadStage(t *testing.T) {
	fb, _ := testFacebook(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/me/accounts":
			w.Write([]byte(`{"data":[{"id":"p2","name":"Daily Wisdom"}]}`))
		case "/p2":
			w.Write([]byte(`{"access_token":"page-token"}`))
		case "/p2/photos":
			http.Error(w, `{"error":{"message":"image too large"}}`, http.StatusBadRequest)
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))

	result := fb.Post(context.Background(), tempImage(t), "caption", "")

	require.Error(t, result.Err)
	assert.False(t, result.Success)
	assert.Empty(t, result.RemoteID)

	var upload *UploadError
	require.ErrorAs(t, result.Err, &upload)
	assert.Equal(t, "upload", upload.Stage)
}

func TestFacebookWithoutPagesIsNotConfigured(t *testing.T) {
	fb, _ := testFacebook(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))

	assert.False(t, fb.IsConfigured(context.Background()))

	result := fb.Post(context.Background(), tempImage(t), "caption", "")
	assert.ErrorIs(t, result.Err, ErrNotConfigured)
}

func TestFacebookVideoUnsupported(t *testing.T) {
	fb, _ := testFacebook(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unsupported operation must not reach the network")
	}))

	result := fb.PostVideo(context.Background(), "/tmp/quote.mp4", "caption")
	assert.ErrorIs(t, result.Err, ErrUnsupportedOperation)
}
