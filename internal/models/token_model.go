package models

import "time"

// Credential holds the API keys a user enters for one platform.
// For redirect platforms only ClientID/ClientSecret are set; signed
// platforms additionally carry the access token pair.
type Credential struct {
	Platform     PlatformID `json:"platform"`
	ClientID     string     `json:"client_id"`
	ClientSecret string     `json:"client_secret,omitempty"`
	AccessToken  string     `json:"access_token,omitempty"`
	AccessSecret string     `json:"access_secret,omitempty"`
}

// Token is the result of an authorization or refresh.
type Token struct {
	Platform     PlatformID `json:"platform"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	Scope        string     `json:"scope,omitempty"`
	IDToken      string     `json:"id_token,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at,omitempty"`
}

// Expired reports whether the token is past (or within skew of) its
// expiry. Tokens without an expiry never expire.
func (t *Token) Expired(skew time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(skew).After(t.ExpiresAt)
}

// Refreshable reports whether a refresh can even be attempted.
func (t *Token) Refreshable() bool {
	return t.RefreshToken != ""
}
