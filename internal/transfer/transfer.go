package transfer

import "github.com/dailyquill/dailyquill/internal/models"

type PlatformInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Auth        string `json:"auth"`
	Enabled     bool   `json:"enabled"`
	Configured  bool   `json:"configured"`
}

type CredentialRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AccessToken  string `json:"access_token"`
	AccessSecret string `json:"access_secret"`
}

type ManualTokenRequest struct {
	AccessToken   string `json:"access_token"`
	ExpiresInDays int    `json:"expires_in_days"`
}

type ToggleRequest struct {
	Enabled bool `json:"enabled"`
}

type SettingsUpdate struct {
	PostingHour   int `json:"posting_hour"`
	PostingMinute int `json:"posting_minute"`
}

type ContentCreate struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Citation string `json:"citation"`
	Link     string `json:"link"`
	Category string `json:"category"`
}

// PostView pairs a post with its per-platform outcomes so the queue
// view never recomputes anything.
type PostView struct {
	Post *models.Post      `json:"post"`
	Logs []*models.PostLog `json:"logs"`
}
