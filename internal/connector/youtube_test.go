package connector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/dailyquill/dailyquill/internal/models"
)

func testYoutube(t *testing.T, handler http.Handler) *Youtube {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	y := NewYoutube(staticTokens{tok: testToken(models.PlatformYoutube)})
	y.newService = func(ctx context.Context, accessToken string) (*youtube.Service, error) {
		assert.Equal(t, "access-token", accessToken)
		return youtube.NewService(ctx, option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	}
	return y
}

func tempVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quote.mp4")
	require.NoError(t, os.WriteFile(path, []byte("fake video bytes"), 0o644))
	return path
}

// youtubeUploadHandler speaks the resumable protocol: the metadata
// request gets a session Location, the chunk request gets the video
// resource.
func youtubeUploadHandler(t *testing.T, meta *map[string]any, uploaded *[]byte) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/upload/youtube/v3/videos"):
			assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(meta))
			w.Header().Set("Location", fmt.Sprintf("http://%s/upload-session", r.Host))
		case r.URL.Path == "/upload-session":
			assert.NotEmpty(t, r.Header.Get("Content-Range"))
			body, _ := io.ReadAll(r.Body)
			if uploaded != nil {
				*uploaded = body
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":"vid-1"}`))
		default:
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	})
}

func TestYoutubeUploadSetsMetadataInInsertCall(t *testing.T) {
	var meta map[string]any
	var uploaded []byte
	y := testYoutube(t, youtubeUploadHandler(t, &meta, &uploaded))

	caption := "Well begun is half done.\n\n- Aristotle"
	result := y.PostVideo(context.Background(), tempVideo(t), caption)

	require.NoError(t, result.Err)
	assert.True(t, result.Success)
	assert.Equal(t, "vid-1", result.RemoteID)
	assert.Equal(t, "https://youtu.be/vid-1", result.RemoteURL)
	assert.Equal(t, []byte("fake video bytes"), uploaded)

	snippet := meta["snippet"].(map[string]any)
	assert.Equal(t, "Well begun is half done.", snippet["title"])
	assert.Equal(t, caption, snippet["description"])
	assert.Equal(t, "22", snippet["categoryId"])

	status := meta["status"].(map[string]any)
	assert.Equal(t, "public", status["privacyStatus"])
	madeForKids, declared := status["selfDeclaredMadeForKids"]
	require.True(t, declared, "the kids declaration must ride along with the insert call")
	assert.Equal(t, false, madeForKids)
}

func TestYoutubeLongTitleTruncated(t *testing.T) {
	var meta map[string]any
	y := testYoutube(t, youtubeUploadHandler(t, &meta, nil))

	caption := strings.Repeat("a", 150)
	result := y.PostVideo(context.Background(), tempVideo(t), caption)

	require.NoError(t, result.Err)
	snippet := meta["snippet"].(map[string]any)
	title := snippet["title"].(string)
	assert.Len(t, title, 100)
	assert.Equal(t, strings.Repeat("a", 97)+"...", title)
	assert.Equal(t, caption, snippet["description"])
}

func TestYoutubeAuthRejectionIsUploadStage(t *testing.T) {
	y := testYoutube(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))

	result := y.PostVideo(context.Background(), tempVideo(t), "caption")

	require.Error(t, result.Err)
	assert.False(t, result.Success)

	var upload *UploadError
	require.ErrorAs(t, result.Err, &upload)
	assert.Equal(t, "upload", upload.Stage)
	assert.ErrorIs(t, result.Err, ErrAuthExpired)
}

func TestYoutubeWithoutTokenIsNotConfigured(t *testing.T) {
	y := NewYoutube(staticTokens{err: errors.New("no token stored")})

	assert.False(t, y.IsConfigured(context.Background()))

	result := y.PostVideo(context.Background(), "/tmp/quote.mp4", "caption")
	assert.ErrorIs(t, result.Err, ErrNotConfigured)
}

func TestYoutubeImageAndTextUnsupported(t *testing.T) {
	y := testYoutube(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unsupported operation must not reach the network")
	}))

	assert.ErrorIs(t, y.Post(context.Background(), "/tmp/quote.png", "caption", "").Err, ErrUnsupportedOperation)
	assert.ErrorIs(t, y.PostText(context.Background(), "caption").Err, ErrUnsupportedOperation)
}
