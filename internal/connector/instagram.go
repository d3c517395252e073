package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

// Instagram uses the two-phase container/publish protocol: the image
// must be publicly reachable, a container object references it, and a
// second call publishes the container.
type Instagram struct {
	keys      *secrets.Keyring
	tokens    TokenSource
	publisher URLPublisher
	client    *http.Client
	graphURL  string
}

func NewInstagram(keys *secrets.Keyring, tokens TokenSource, publisher URLPublisher) *Instagram {
	return &Instagram{
		keys:      keys,
		tokens:    tokens,
		publisher: publisher,
		client:    newHTTPClient(),
		graphURL:  "https://graph.instagram.com/v21.0",
	}
}

func (ig *Instagram) Platform() models.PlatformID { return models.PlatformInstagram }

func (ig *Instagram) IsConfigured(ctx context.Context) bool {
	if _, err := ig.tokens.Token(ctx, models.PlatformInstagram); err != nil {
		return false
	}
	_, err := ig.accountID(ctx)
	return err == nil
}

// accountID returns the authenticated account, discovering and
// persisting it on first use.
func (ig *Instagram) accountID(ctx context.Context) (string, error) {
	if id, err := ig.keys.SubResource(ctx, models.PlatformInstagram); err == nil {
		return id, nil
	}

	tok, err := ig.tokens.Token(ctx, models.PlatformInstagram)
	if err != nil {
		return "", ErrNotConfigured
	}

	reqURL := fmt.Sprintf("%s/me?fields=id,username&access_token=%s", ig.graphURL, url.QueryEscape(tok.AccessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := ig.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", remoteFailure(resp.StatusCode, resp.Header, string(body))
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if me.ID == "" {
		return "", fmt.Errorf("no account id returned")
	}

	if err := ig.keys.SaveSubResource(ctx, models.PlatformInstagram, me.ID); err != nil {
		return "", err
	}
	return me.ID, nil
}

func (ig *Instagram) PostText(ctx context.Context, caption string) PostResult {
	// Instagram has no text-only posts.
	return Failed(ErrUnsupportedOperation)
}

func (ig *Instagram) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	tok, err := ig.tokens.Token(ctx, models.PlatformInstagram)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	accountID, err := ig.accountID(ctx)
	if err != nil {
		return Failed(ErrNotConfigured)
	}

	imageURL, err := ig.publisher.PublishFile(ctx, imagePath)
	if err != nil {
		return Failed(&UploadError{Stage: "stage media", Err: err})
	}

	containerID, err := ig.createContainer(ctx, accountID, imageURL, caption, tok.AccessToken)
	if err != nil {
		return Failed(&UploadError{Stage: "container", Err: err})
	}

	mediaID, err := ig.publishContainer(ctx, accountID, containerID, tok.AccessToken)
	if err != nil {
		return Failed(&UploadError{Stage: "publish", Err: err})
	}

	// Permalink resolution is best effort once the publish succeeded.
	permalink, err := ig.permalink(ctx, mediaID, tok.AccessToken)
	if err != nil {
		slog.Info("permalink lookup failed", "media_id", mediaID, "error", err.Error())
	}
	return Succeeded(mediaID, permalink)
}

func (ig *Instagram) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (ig *Instagram) createContainer(ctx context.Context, accountID, imageURL, caption, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"image_url":    imageURL,
		"caption":      caption,
		"access_token": accessToken,
	}
	return ig.graphPost(ctx, fmt.Sprintf("%s/%s/media", ig.graphURL, accountID), payload)
}

func (ig *Instagram) publishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}
	return ig.graphPost(ctx, fmt.Sprintf("%s/%s/media_publish", ig.graphURL, accountID), payload)
}

func (ig *Instagram) graphPost(ctx context.Context, reqURL string, payload map[string]interface{}) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", remoteFailure(resp.StatusCode, resp.Header, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("no media id in response")
	}
	return result.ID, nil
}

func (ig *Instagram) permalink(ctx context.Context, mediaID, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", ig.graphURL, mediaID, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := ig.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("permalink lookup status %d", resp.StatusCode)
	}

	var result struct {
		Permalink string `json:"permalink"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Permalink, nil
}
