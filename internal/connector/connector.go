package connector

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/dailyquill/dailyquill/internal/signing"
)

// PostResult is the outcome of one publish attempt. Success and Err
// are mutually exclusive; a failed attempt never carries a remote id.
type PostResult struct {
	Success   bool
	RemoteID  string
	RemoteURL string
	Err       error
}

func Succeeded(remoteID, remoteURL string) PostResult {
	return PostResult{Success: true, RemoteID: remoteID, RemoteURL: remoteURL}
}

func Failed(err error) PostResult {
	return PostResult{Err: err}
}

// Connector publishes content to one platform. Connectors never write
// posts or logs; the scheduler persists the returned result.
type Connector interface {
	Platform() models.PlatformID
	IsConfigured(ctx context.Context) bool
	PostText(ctx context.Context, caption string) PostResult
	Post(ctx context.Context, imagePath, caption, link string) PostResult
	PostVideo(ctx context.Context, videoPath, caption string) PostResult
}

// TokenSource hands out a usable (refreshed if needed) token.
type TokenSource interface {
	Token(ctx context.Context, id models.PlatformID) (*models.Token, error)
}

// URLPublisher gives a local file a publicly reachable URL. Two-phase
// platforms require the media to be fetchable before the post object
// can reference it.
type URLPublisher interface {
	PublishFile(ctx context.Context, path string) (string, error)
}

var (
	ErrNotConfigured        = errors.New("platform is not configured")
	ErrAuthExpired          = errors.New("platform authorization expired")
	ErrUnsupportedOperation = errors.New("operation not supported by platform")
)

type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// UploadError marks which stage of a multi-step publish failed.
type UploadError struct {
	Stage string
	Err   error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed at %s: %v", e.Stage, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// RemoteError is a platform-side rejection, surfaced verbatim.
type RemoteError struct {
	Code    int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request: %d %s", e.Code, e.Message)
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 2 * time.Minute}
}

// remoteFailure maps a non-2xx response to the error taxonomy.
func remoteFailure(status int, header http.Header, body string) error {
	if status == http.StatusTooManyRequests {
		retryAfter := time.Minute
		if s := header.Get("Retry-After"); s != "" {
			if secs, err := strconv.Atoi(s); err == nil {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	}
	if status == http.StatusUnauthorized {
		return ErrAuthExpired
	}
	return &RemoteError{Code: status, Message: body}
}

// BuildAll wires one connector per platform in the closed enumeration.
func BuildAll(keys *secrets.Keyring, tokens TokenSource, publisher URLPublisher) map[models.PlatformID]Connector {
	return map[models.PlatformID]Connector{
		models.PlatformTwitter:   NewTwitter(keys, signing.NewSigner()),
		models.PlatformFacebook:  NewFacebook(keys, tokens),
		models.PlatformInstagram: NewInstagram(keys, tokens, publisher),
		models.PlatformPinterest: NewPinterest(keys, tokens, publisher),
		models.PlatformLinkedin:  NewLinkedin(tokens),
		models.PlatformYoutube:   NewYoutube(tokens),
	}
}
