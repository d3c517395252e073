package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/dailyquill/dailyquill/internal/signing"
)

// Twitter publishes with a single multipart request signed by the
// static four-key credential; there is no token lifecycle.
type Twitter struct {
	keys      *secrets.Keyring
	signer    *signing.Signer
	client    *http.Client
	apiURL    string
	uploadURL string
}

func NewTwitter(keys *secrets.Keyring, signer *signing.Signer) *Twitter {
	return &Twitter{
		keys:      keys,
		signer:    signer,
		client:    newHTTPClient(),
		apiURL:    "https://api.twitter.com/1.1",
		uploadURL: "https://upload.twitter.com/1.1",
	}
}

func (t *Twitter) Platform() models.PlatformID { return models.PlatformTwitter }

func (t *Twitter) IsConfigured(ctx context.Context) bool {
	cred, err := t.keys.Credential(ctx, models.PlatformTwitter)
	if err != nil {
		return false
	}
	return cred.ClientID != "" && cred.ClientSecret != "" && cred.AccessToken != "" && cred.AccessSecret != ""
}

func (t *Twitter) signingCreds(ctx context.Context) (signing.Credentials, error) {
	cred, err := t.keys.Credential(ctx, models.PlatformTwitter)
	if err != nil {
		return signing.Credentials{}, ErrNotConfigured
	}
	return signing.Credentials{
		ConsumerKey:    cred.ClientID,
		ConsumerSecret: cred.ClientSecret,
		AccessToken:    cred.AccessToken,
		AccessSecret:   cred.AccessSecret,
	}, nil
}

func (t *Twitter) PostText(ctx context.Context, caption string) PostResult {
	creds, err := t.signingCreds(ctx)
	if err != nil {
		return Failed(err)
	}

	form := url.Values{"status": {caption}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL+"/statuses/update.json", strings.NewReader(form.Encode()))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	t.signer.Sign(req, creds, form)

	return t.do(req)
}

// Post uploads caption and image in one multipart body.
func (t *Twitter) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	creds, err := t.signingCreds(ctx)
	if err != nil {
		return Failed(err)
	}

	status := caption
	if link != "" {
		status = fmt.Sprintf("%s %s", caption, link)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("status", status); err != nil {
		return Failed(&UploadError{Stage: "encode", Err: err})
	}
	file, err := os.Open(imagePath)
	if err != nil {
		return Failed(&UploadError{Stage: "read media", Err: err})
	}
	defer file.Close()
	part, err := writer.CreateFormFile("media[]", filepath.Base(imagePath))
	if err != nil {
		return Failed(&UploadError{Stage: "encode", Err: err})
	}
	if _, err := io.Copy(part, file); err != nil {
		return Failed(&UploadError{Stage: "encode", Err: err})
	}
	if err := writer.Close(); err != nil {
		return Failed(&UploadError{Stage: "encode", Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.uploadURL+"/statuses/update_with_media.json", body)
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	// Multipart body parameters are excluded from the OAuth signature.
	t.signer.Sign(req, creds, nil)

	return t.do(req)
}

func (t *Twitter) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (t *Twitter) do(req *http.Request) PostResult {
	resp, err := t.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Failed(&UploadError{Stage: "post", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Failed(remoteFailure(resp.StatusCode, resp.Header, string(body)))
	}

	var result struct {
		IDStr string `json:"id_str"`
		User  struct {
			ScreenName string `json:"screen_name"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return Failed(&UploadError{Stage: "decode", Err: err})
	}
	if result.IDStr == "" {
		return Failed(&UploadError{Stage: "decode", Err: fmt.Errorf("no post id in response")})
	}

	remoteURL := fmt.Sprintf("https://twitter.com/%s/status/%s", result.User.ScreenName, result.IDStr)
	if result.User.ScreenName == "" {
		remoteURL = fmt.Sprintf("https://twitter.com/i/web/status/%s", result.IDStr)
	}
	return Succeeded(result.IDStr, remoteURL)
}
