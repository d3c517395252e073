package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/dailyquill/dailyquill/internal/models"
)

// Linkedin posts to the member's own profile with a manually supplied
// bearer token. Image posts register an upload slot, put the binary to
// the returned URL, then create the share referencing the asset.
type Linkedin struct {
	tokens TokenSource
	client *http.Client
	apiURL string
}

func NewLinkedin(tokens TokenSource) *Linkedin {
	return &Linkedin{
		tokens: tokens,
		client: newHTTPClient(),
		apiURL: "https://api.linkedin.com/v2",
	}
}

func (l *Linkedin) Platform() models.PlatformID { return models.PlatformLinkedin }

func (l *Linkedin) IsConfigured(ctx context.Context) bool {
	_, err := l.tokens.Token(ctx, models.PlatformLinkedin)
	return err == nil
}

// personURN resolves the authenticated member from the userinfo endpoint.
func (l *Linkedin) personURN(ctx context.Context, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.apiURL+"/userinfo", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", remoteFailure(resp.StatusCode, resp.Header, string(body))
	}

	var result struct {
		Sub string `json:"sub"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.Sub == "" {
		return "", fmt.Errorf("no member id in userinfo response")
	}
	return "urn:li:person:" + result.Sub, nil
}

func (l *Linkedin) PostText(ctx context.Context, caption string) PostResult {
	tok, err := l.tokens.Token(ctx, models.PlatformLinkedin)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	author, err := l.personURN(ctx, tok.AccessToken)
	if err != nil {
		return Failed(err)
	}
	return l.createShare(ctx, tok.AccessToken, author, caption, "")
}

func (l *Linkedin) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	tok, err := l.tokens.Token(ctx, models.PlatformLinkedin)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	author, err := l.personURN(ctx, tok.AccessToken)
	if err != nil {
		return Failed(err)
	}

	asset, uploadURL, err := l.registerUpload(ctx, tok.AccessToken, author)
	if err != nil {
		return Failed(&UploadError{Stage: "register", Err: err})
	}
	if err := l.uploadBinary(ctx, tok.AccessToken, uploadURL, imagePath); err != nil {
		return Failed(&UploadError{Stage: "upload", Err: err})
	}

	text := caption
	if link != "" {
		text = caption + "\n\n" + link
	}
	return l.createShare(ctx, tok.AccessToken, author, text, asset)
}

func (l *Linkedin) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (l *Linkedin) registerUpload(ctx context.Context, accessToken, author string) (asset, uploadURL string, err error) {
	payload := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{"urn:li:digitalmediaRecipe:feedshare-image"},
			"owner":   author,
			"serviceRelationships": []map[string]any{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL+"/assets?action=registerUpload", bytes.NewReader(body))
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", "", remoteFailure(resp.StatusCode, resp.Header, string(respBody))
	}

	var result struct {
		Value struct {
			Asset           string `json:"asset"`
			UploadMechanism map[string]struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"uploadMechanism"`
		} `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", err
	}
	for _, mech := range result.Value.UploadMechanism {
		if mech.UploadURL != "" {
			return result.Value.Asset, mech.UploadURL, nil
		}
	}
	return "", "", fmt.Errorf("no upload url in register response")
}

func (l *Linkedin) uploadBinary(ctx context.Context, accessToken, uploadURL, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, file)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := l.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return remoteFailure(resp.StatusCode, resp.Header, string(body))
	}
	return nil
}

func (l *Linkedin) createShare(ctx context.Context, accessToken, author, text, asset string) PostResult {
	content := map[string]any{
		"shareCommentary":    map[string]string{"text": text},
		"shareMediaCategory": "NONE",
	}
	if asset != "" {
		content["shareMediaCategory"] = "IMAGE"
		content["media"] = []map[string]any{
			{"status": "READY", "media": asset},
		}
	}

	payload := map[string]any{
		"author":         author,
		"lifecycleState": "PUBLISHED",
		"specificContent": map[string]any{
			"com.linkedin.ugc.ShareContent": content,
		},
		"visibility": map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Failed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.apiURL+"/ugcPosts", bytes.NewReader(body))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := l.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Failed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Failed(remoteFailure(resp.StatusCode, resp.Header, string(respBody)))
	}

	postID := resp.Header.Get("X-Restli-Id")
	if postID == "" {
		var result struct {
			ID string `json:"id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&result)
		postID = result.ID
	}

	return Succeeded(postID, fmt.Sprintf("https://www.linkedin.com/feed/update/%s/", postID))
}
