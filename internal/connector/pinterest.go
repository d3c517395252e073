package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
)

// Pinterest creates pins on a board discovered from the account's board
// list. Pin media is referenced by public URL, so local files are pushed
// through the publisher first.
type Pinterest struct {
	keys      *secrets.Keyring
	tokens    TokenSource
	publisher URLPublisher
	client    *http.Client
	apiURL    string
}

func NewPinterest(keys *secrets.Keyring, tokens TokenSource, publisher URLPublisher) *Pinterest {
	return &Pinterest{
		keys:      keys,
		tokens:    tokens,
		publisher: publisher,
		client:    newHTTPClient(),
		apiURL:    "https://api.pinterest.com/v5",
	}
}

func (p *Pinterest) Platform() models.PlatformID { return models.PlatformPinterest }

func (p *Pinterest) IsConfigured(ctx context.Context) bool {
	if _, err := p.tokens.Token(ctx, models.PlatformPinterest); err != nil {
		return false
	}
	_, err := p.boardID(ctx)
	return err == nil
}

// boardID returns the target board, running discovery on first use.
func (p *Pinterest) boardID(ctx context.Context) (string, error) {
	if id, err := p.keys.SubResource(ctx, models.PlatformPinterest); err == nil {
		return id, nil
	}

	tok, err := p.tokens.Token(ctx, models.PlatformPinterest)
	if err != nil {
		return "", ErrNotConfigured
	}

	candidates, err := p.listBoards(ctx, tok.AccessToken)
	if err != nil {
		return "", err
	}

	platform, _ := models.PlatformByID(models.PlatformPinterest)
	chosen, ok := SelectSubResource(candidates, platform.DiscoveryKeywords)
	if !ok {
		return "", fmt.Errorf("account has no boards to pin to")
	}

	if err := p.keys.SaveSubResource(ctx, models.PlatformPinterest, chosen.ID); err != nil {
		return "", err
	}
	return chosen.ID, nil
}

func (p *Pinterest) listBoards(ctx context.Context, accessToken string) ([]Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL+"/boards", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := p.client.Do(req)
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
		Items []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	candidates := make([]Candidate, 0, len(result.Items))
	for _, board := range result.Items {
		candidates = append(candidates, Candidate{ID: board.ID, Name: board.Name})
	}
	return candidates, nil
}

func (p *Pinterest) PostText(ctx context.Context, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}

func (p *Pinterest) Post(ctx context.Context, imagePath, caption, link string) PostResult {
	tok, err := p.tokens.Token(ctx, models.PlatformPinterest)
	if err != nil {
		return Failed(ErrNotConfigured)
	}
	boardID, err := p.boardID(ctx)
	if err != nil {
		return Failed(ErrNotConfigured)
	}

	imageURL, err := p.publisher.PublishFile(ctx, imagePath)
	if err != nil {
		return Failed(&UploadError{Stage: "stage media", Err: err})
	}

	payload := map[string]any{
		"board_id":    boardID,
		"title":       caption,
		"description": caption,
		"media_source": map[string]any{
			"source_type": "image_url",
			"url":         imageURL,
		},
	}
	if link != "" {
		payload["link"] = link
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Failed(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/pins", bytes.NewReader(body))
	if err != nil {
		return Failed(err)
	}
	req.Header.Set("Authorization", "Bearer "+tok.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return Failed(&UploadError{Stage: "publish", Err: err})
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
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
		return Failed(&UploadError{Stage: "publish", Err: fmt.Errorf("no pin id in response")})
	}

	return Succeeded(result.ID, fmt.Sprintf("https://www.pinterest.com/pin/%s/", result.ID))
}

func (p *Pinterest) PostVideo(ctx context.Context, videoPath, caption string) PostResult {
	return Failed(ErrUnsupportedOperation)
}
