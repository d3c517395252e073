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
)

// Facebook posts to a page discovered from the account's page list.
// Publishing is two-phase: the photo is uploaded unpublished, then a
// feed post references it.
type Facebook struct {
	keys     *secrets.Keyring
	tokens   TokenSource
	client   *http.Client
	graphURL string
}

func NewFacebook(keys *secrets.Keyring, tokens TokenSource) *Facebook {
	return &Facebook{
		keys:     keys,
		tokens:   tokens,
		client:   newHTTPClient(),
		graphURL: "https://graph.facebook.com/v21.0",
	}
}

func (fb *Facebook) Platform() models.PlatformID { return models.PlatformFacebook }

func (fb *Facebook) IsConfigured(ctx context.Context) bool {
	if _, err := fb.tokens.Token(ctx, models.PlatformFacebook); err != nil {
		return false
	}
	_, err := fb.pageID(ctx)
	return err == nil
}

// pageID returns the page to post to, running discovery on first use.
func (fb *Facebook) pageID(ctx context.Context) (string, error) {
	if id, err := fb.keys.SubResource(ctx, models.PlatformFacebook); err == nil {
		return id, nil
	}

	tok, err := fb.tokens.Token(ctx, models.PlatformFacebook)
	if err != nil {
		return "", ErrNotConfigured
	}

	candidates, err := fb.listPages(ctx, tok.AccessToken)
	if err != nil {
		return "", err
	}

	platform, _ := models.PlatformByID(models.PlatformFacebook)
	chosen, ok := SelectSubResource(candidates, platform.DiscoveryKeywords)
	if !ok {
		return "", fmt.Errorf("account has no pages to post to")
	}

	if err := fb.keys.SaveSubResource(ctx, models.PlatformFacebook, chosen.ID); err != nil {
		return "", err
	}
	return chosen.ID, nil
}

func (fb *Facebook) listPages(ctx context.Context, accessToken string) ([]Candidate, error) {
	reqURL := fmt.Sprintf("%s/me/accounts?access_token=%s", fb.graphURL, url.QueryEscape(accessToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := fb.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, remoteFailure(resp.StatusCode, resp.Header, string(body))
	}

	var result struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	candidates := make([]Candidate, 0, len(result.Data))
	for _, page := range result.Data {
		candidates = append(candidates, Candidate{ID: page.ID, Name: page.Name})
	}
	return candidates, nil
}

// pageToken resolves the page-scoped token the publish calls require.
func (fb *Facebook) pageToken(ctx context.Context, pageID, userToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=access_token&access_token=%s", fb.graphURL, pageID, url.QueryEscape(userToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := fb.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", remoteFailure(resp.StatusCode, resp.Header, string(body))
	}

	var result struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.AccessToken == "" {
		return "", fmt.Errorf("no page token in response")
	}
	return result.AccessToken, nil
}

func (fb *Facebook) PostText(ctx context.Context, caption string) PostResult {
	return fb.publishFeedPost(ctx, caption, "", "")
}

func (fb *Facebook) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	tok, err := fb.tokens.Token(ctx, models.PlatformFacebook)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	pageID, err := fb.pageID(ctx)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	pageTok, err := fb.pageToken(ctx, pageID, tok.AccessToken)
	if err != nil {
		return Failed(&UploadError{Stage: "page token", Err: err})
	}

	photoID, err := fb.uploadUnpublishedPhoto(ctx, pageID, pageTok, imagePath)
	if err != nil {
		return Failed(&UploadError{Stage: "upload", Err: err})
	}

	return fb.createFeedPost(ctx, pageID, pageTok, caption, link, photoID)
}

func (fb *Facebook) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (fb *Facebook) publishFeedPost(ctx context.Context, caption, link, photoID string) PostResult {
	tok, err := fb.tokens.Token(ctx, models.PlatformFacebook)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	pageID, err := fb.pageID(ctx)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	pageTok, err := fb.pageToken(ctx, pageID, tok.AccessToken)
	if err != nil {
		return Failed(&UploadError{Stage: "page token", Err: err})
	}
	return fb.createFeedPost(ctx, pageID, pageTok, caption, link, photoID)
}

func (fb *Facebook) uploadUnpublishedPhoto(ctx context.Context, pageID, pageToken, imagePath string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	_ = writer.WriteField("published", "false")
	_ = writer.WriteField("access_token", pageToken)
	part, err := writer.CreateFormFile("source", filepath.Base(imagePath))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s/photos", fb.graphURL, pageID), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := fb.client.Do(req)
	if err != nil {
		return "", err
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
		return "", err
	}
	if result.ID == "" {
		return "", fmt.Errorf("no photo id in response")
	}
	return result.ID, nil
}

func (fb *Facebook) createFeedPost(ctx context.Context, pageID, pageToken, caption, link, photoID string) PostResult {
	form := url.Values{}
	form.Set("message", caption)
	form.Set("access_token", pageToken)
	if link != "" {
		form.Set("link", link)
	}
	if photoID != "" {
		form.Set("attached_media[0]", fmt.Sprintf(`{"media_fbid":"%s"}`, photoID))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/%s/feed", fb.graphURL, pageID), strings.NewReader(form.Encode()))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := fb.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Failed(&UploadError{Stage: "publish", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Failed(&UploadError{Stage: "publish", Err: remoteFailure(resp.StatusCode, resp.Header, string(respBody))})
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Failed(&UploadError{Stage: "publish", Err: err})
	}
	if result.ID == "" {
		return Failed(&UploadError{Stage: "publish", Err: fmt.Errorf("no post id in response")})
	}

	return Succeeded(result.ID, fmt.Sprintf("https://www.facebook.com/%s", result.ID))
}
