package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dailyquill/dailyquill/internal/models"
	"golang.org/x/oauth2"
)

// exchange turns an authorization code into a token. Client
// authentication is body parameters by default and HTTP Basic where
// the platform requires it; YouTube goes through x/oauth2.
func (o *Orchestrator) exchange(ctx context.Context, id models.PlatformID, cred *models.Credential, code string) (*models.Token, error) {
	switch id {
	case models.PlatformYoutube:
		return o.exchangeGoogle(ctx, cred, code)
	case models.PlatformInstagram:
		return o.exchangeInstagram(ctx, cred, code)
	default:
		return o.exchangeStandard(ctx, id, cred, code)
	}
}

func (o *Orchestrator) exchangeStandard(ctx context.Context, id models.PlatformID, cred *models.Credential, code string) (*models.Token, error) {
	ep := o.endpoints[id]

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("redirect_uri", o.redirectURI())
	if !ep.basicAuth {
		data.Set("client_id", cred.ClientID)
		data.Set("client_secret", cred.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ep.basicAuth {
		req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("token endpoint request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Body: responseBody(resp)}
	}
	return decodeTokenResponse(resp, id)
}

func (o *Orchestrator) exchangeGoogle(ctx context.Context, cred *models.Credential, code string) (*models.Token, error) {
	conf := googleConfig(cred, o.redirectURI())
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		slog.Info(err.Error())
		return nil, &TokenExchangeError{Status: 0, Body: err.Error()}
	}
	return &models.Token{
		Platform:     models.PlatformYoutube,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}, nil
}

// exchangeInstagram runs the two-step exchange: the code buys a
// short-lived token, which is then traded for a long-lived one. The
// long-lived token doubles as the refresh token.
func (o *Orchestrator) exchangeInstagram(ctx context.Context, cred *models.Credential, code string) (*models.Token, error) {
	ep := o.endpoints[models.PlatformInstagram]

	data := url.Values{}
	data.Set("client_id", cred.ClientID)
	data.Set("client_secret", cred.ClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", o.redirectURI())
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Body: responseBody(resp)}
	}

	var short struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&short); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return o.instagramLongLived(ctx, cred, short.AccessToken)
}

func (o *Orchestrator) instagramLongLived(ctx context.Context, cred *models.Credential, shortLived string) (*models.Token, error) {
	ep := o.endpoints[models.PlatformInstagram]
	reqURL := fmt.Sprintf("%s?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		ep.longLivedURL, url.QueryEscape(cred.ClientSecret), url.QueryEscape(shortLived))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Body: responseBody(resp)}
	}

	tok, err := decodeTokenResponse(resp, models.PlatformInstagram)
	if err != nil {
		return nil, err
	}
	tok.RefreshToken = tok.AccessToken
	return tok, nil
}

// refresh issues exactly one refresh call for the platform. Callers
// hold the per-platform lock.
func (o *Orchestrator) refresh(ctx context.Context, id models.PlatformID, tok *models.Token) (*models.Token, error) {
	cred, err := o.keys.Credential(ctx, id)
	if err != nil {
		return nil, ErrMissingCredential
	}

	switch id {
	case models.PlatformYoutube:
		return o.refreshGoogle(ctx, cred, tok)
	case models.PlatformInstagram:
		return o.refreshInstagram(ctx, tok)
	default:
		return o.refreshStandard(ctx, id, cred, tok)
	}
}

func (o *Orchestrator) refreshStandard(ctx context.Context, id models.PlatformID, cred *models.Credential, tok *models.Token) (*models.Token, error) {
	ep := o.endpoints[id]

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", tok.RefreshToken)
	if !ep.basicAuth {
		data.Set("client_id", cred.ClientID)
		data.Set("client_secret", cred.ClientSecret)
	}

	refreshURL := ep.refreshURL
	if refreshURL == "" {
		refreshURL = ep.tokenURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, refreshURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if ep.basicAuth {
		req.SetBasicAuth(cred.ClientID, cred.ClientSecret)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Body: responseBody(resp)}
	}
	return decodeTokenResponse(resp, id)
}

func (o *Orchestrator) refreshInstagram(ctx context.Context, tok *models.Token) (*models.Token, error) {
	ep := o.endpoints[models.PlatformInstagram]
	reqURL := fmt.Sprintf("%s?grant_type=ig_refresh_token&access_token=%s",
		ep.refreshURL, url.QueryEscape(tok.RefreshToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &TokenExchangeError{Status: resp.StatusCode, Body: responseBody(resp)}
	}

	fresh, err := decodeTokenResponse(resp, models.PlatformInstagram)
	if err != nil {
		return nil, err
	}
	fresh.RefreshToken = fresh.AccessToken
	return fresh, nil
}

func (o *Orchestrator) refreshGoogle(ctx context.Context, cred *models.Credential, tok *models.Token) (*models.Token, error) {
	conf := googleConfig(cred, o.redirectURI())
	source := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: tok.RefreshToken})

	fresh, err := source.Token()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &models.Token{
		Platform:     models.PlatformYoutube,
		AccessToken:  fresh.AccessToken,
		RefreshToken: fresh.RefreshToken,
		TokenType:    fresh.TokenType,
		ExpiresAt:    fresh.Expiry,
	}, nil
}
