package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	config "github.com/dailyquill/dailyquill/configs"
	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/dailyquill/dailyquill/pkg/utils"
)

var (
	ErrMissingCredential   = errors.New("no credential stored for platform")
	ErrFlowInProgress      = errors.New("authorization flow already in progress")
	ErrListenerBind        = errors.New("unable to bind callback listener")
	ErrFlowTimeout         = errors.New("authorization timed out or was denied")
	ErrNotConnected        = errors.New("platform is not connected")
	ErrReauthorizeRequired = errors.New("session expired, platform must be reauthorized")
)

// TokenExchangeError carries the remote response of a failed code
// exchange verbatim.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}

// FlowPhase is the observable progress of the active authorization
// attempt.
type FlowPhase int32

const (
	FlowIdle FlowPhase = iota
	FlowListening
	FlowCodeReceived
	FlowExchanging
	FlowCompleted
	FlowFailed
)

// FlowResult is delivered once per started flow.
type FlowResult struct {
	Platform models.PlatformID
	Token    *models.Token
	Err      error
}

// refreshSkew is how close to expiry a token may get before use
// triggers a refresh.
const refreshSkew = 5 * time.Minute

// Orchestrator owns the credential/token lifecycle: browser redirect
// flows through the localhost callback listener, code exchange,
// transparent refresh, and persistence in the secret store.
type Orchestrator struct {
	cfg       config.Config
	keys      *secrets.Keyring
	client    *http.Client
	endpoints map[models.PlatformID]endpoint

	flowMu     sync.Mutex
	flowActive bool
	phase      atomic.Int32

	refreshMu sync.Mutex
	refreshes map[models.PlatformID]*sync.Mutex

	stateTTL time.Duration
}

func NewOrchestrator(cfg config.Config, keys *secrets.Keyring) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		keys:      keys,
		client:    &http.Client{Timeout: 30 * time.Second},
		endpoints: defaultEndpoints(),
		refreshes: make(map[models.PlatformID]*sync.Mutex),
		stateTTL:  10 * time.Minute,
	}
}

func (o *Orchestrator) Phase() FlowPhase { return FlowPhase(o.phase.Load()) }

func (o *Orchestrator) setPhase(p FlowPhase) { o.phase.Store(int32(p)) }

// StartFlow begins a browser redirect authorization for the platform.
// It binds the callback listener before returning, hands back the URL
// the user must open, and delivers exactly one FlowResult on the
// returned channel. The listener is torn down on completion, failure
// and timeout.
func (o *Orchestrator) StartFlow(ctx context.Context, id models.PlatformID) (string, <-chan FlowResult, error) {
	platform, ok := models.PlatformByID(id)
	if !ok {
		return "", nil, fmt.Errorf("unknown platform %q", id)
	}
	if platform.Auth != models.AuthRedirect {
		return "", nil, fmt.Errorf("platform %s does not use a redirect flow", id)
	}

	cred, err := o.keys.Credential(ctx, id)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return "", nil, ErrMissingCredential
		}
		return "", nil, err
	}

	if !o.tryAcquireFlow() {
		return "", nil, ErrFlowInProgress
	}

	state, err := utils.GenerateStateToken(o.cfg.SecretKey, string(id), o.stateTTL)
	if err != nil {
		o.releaseFlow(FlowFailed)
		return "", nil, err
	}

	listener, err := newCallbackListener(o.cfg.CallbackPort)
	if err != nil {
		o.releaseFlow(FlowFailed)
		return "", nil, err
	}
	o.setPhase(FlowListening)

	authURL := o.buildAuthURL(platform, cred, state)
	results := make(chan FlowResult, 1)

	go o.runFlow(platform, cred, listener, state, results)

	return authURL, results, nil
}

// Authorize runs StartFlow and blocks for the result. The auth URL is
// logged for the operator to open.
func (o *Orchestrator) Authorize(ctx context.Context, id models.PlatformID) (*models.Token, error) {
	authURL, results, err := o.StartFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	slog.Info("open the authorization URL to continue", "platform", id, "url", authURL)

	select {
	case res := <-results:
		return res.Token, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (o *Orchestrator) runFlow(platform models.Platform, cred *models.Credential, listener *callbackListener, state string, results chan<- FlowResult) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(o.cfg.CallbackTimeout)*time.Second+10*time.Second)
	defer cancel()

	fail := func(err error) {
		listener.close()
		o.releaseFlow(FlowFailed)
		results <- FlowResult{Platform: platform.ID, Err: err}
	}

	payload, err := listener.wait(ctx, time.Duration(o.cfg.CallbackTimeout)*time.Second)
	if err != nil {
		fail(err)
		return
	}
	if payload.remoteErr != "" || payload.code == "" {
		fail(fmt.Errorf("%w: %s", ErrFlowTimeout, payload.remoteErr))
		return
	}
	o.setPhase(FlowCodeReceived)

	claims, err := utils.ValidateStateToken(o.cfg.SecretKey, payload.state)
	if err != nil || claims.Platform != string(platform.ID) {
		fail(errors.New("state mismatch on callback"))
		return
	}

	o.setPhase(FlowExchanging)
	token, err := o.exchange(ctx, platform.ID, cred, payload.code)
	if err != nil {
		fail(err)
		return
	}
	token.Platform = platform.ID

	if err := o.keys.SaveToken(ctx, token); err != nil {
		fail(err)
		return
	}

	listener.close()
	o.releaseFlow(FlowCompleted)
	results <- FlowResult{Platform: platform.ID, Token: token}
}

func (o *Orchestrator) tryAcquireFlow() bool {
	o.flowMu.Lock()
	defer o.flowMu.Unlock()
	if o.flowActive {
		return false
	}
	o.flowActive = true
	return true
}

func (o *Orchestrator) releaseFlow(final FlowPhase) {
	o.flowMu.Lock()
	o.flowActive = false
	o.flowMu.Unlock()
	o.setPhase(final)
}

// SetManualToken stores a pasted bearer token for platforms without a
// live flow.
func (o *Orchestrator) SetManualToken(ctx context.Context, id models.PlatformID, accessToken string, expiresAt time.Time) error {
	platform, ok := models.PlatformByID(id)
	if !ok {
		return fmt.Errorf("unknown platform %q", id)
	}
	if platform.Auth != models.AuthManual {
		return fmt.Errorf("platform %s does not accept pasted tokens", id)
	}
	if strings.TrimSpace(accessToken) == "" {
		return errors.New("token is empty")
	}

	return o.keys.SaveToken(ctx, &models.Token{
		Platform:    id,
		AccessToken: strings.TrimSpace(accessToken),
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	})
}

// Token returns a usable token for the platform, refreshing it first
// when it is expired or within the refresh skew. Refresh is
// single-flight per platform: concurrent callers produce one outbound
// refresh call and observe the same stored token.
func (o *Orchestrator) Token(ctx context.Context, id models.PlatformID) (*models.Token, error) {
	return o.tokenWithSkew(ctx, id, refreshSkew)
}

// RefreshAhead refreshes the stored token when it expires within the
// given window. The periodic sweep uses a wider window than Token so
// publish cycles rarely block on a refresh.
func (o *Orchestrator) RefreshAhead(ctx context.Context, id models.PlatformID, within time.Duration) error {
	_, err := o.tokenWithSkew(ctx, id, within)
	return err
}

func (o *Orchestrator) tokenWithSkew(ctx context.Context, id models.PlatformID, skew time.Duration) (*models.Token, error) {
	tok, err := o.loadToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tok.Expired(skew) {
		return tok, nil
	}
	if !tok.Refreshable() {
		return nil, ErrReauthorizeRequired
	}

	mu := o.platformLock(id)
	mu.Lock()
	defer mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	tok, err = o.loadToken(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tok.Expired(skew) {
		return tok, nil
	}

	fresh, err := o.refresh(ctx, id, tok)
	if err != nil {
		slog.Info("token refresh failed", "platform", id, "error", err.Error())
		return nil, fmt.Errorf("%w: %v", ErrReauthorizeRequired, err)
	}
	fresh.Platform = id
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = tok.RefreshToken
	}

	if err := o.keys.SaveToken(ctx, fresh); err != nil {
		return nil, err
	}
	return fresh, nil
}

func (o *Orchestrator) loadToken(ctx context.Context, id models.PlatformID) (*models.Token, error) {
	tok, err := o.keys.Token(ctx, id)
	if err != nil {
		if errors.Is(err, secrets.ErrNotFound) {
			return nil, ErrNotConnected
		}
		return nil, err
	}
	return tok, nil
}

// Connected reports whether a token (valid or refreshable) is stored.
func (o *Orchestrator) Connected(ctx context.Context, id models.PlatformID) bool {
	tok, err := o.keys.Token(ctx, id)
	if err != nil {
		return false
	}
	return !tok.Expired(0) || tok.Refreshable()
}

// Disconnect removes the platform's token, credential and discovered
// sub-resource. Remote revocation is best effort.
func (o *Orchestrator) Disconnect(ctx context.Context, id models.PlatformID) error {
	if tok, err := o.keys.Token(ctx, id); err == nil && id == models.PlatformYoutube {
		if err := revokeGoogleAccess(ctx, o.client, tok.AccessToken); err != nil {
			slog.Info("google revoke failed", "error", err.Error())
		}
	}

	if err := o.keys.DeleteToken(ctx, id); err != nil {
		return err
	}
	if err := o.keys.DeleteSubResource(ctx, id); err != nil {
		return err
	}
	return o.keys.DeleteCredential(ctx, id)
}

func (o *Orchestrator) platformLock(id models.PlatformID) *sync.Mutex {
	o.refreshMu.Lock()
	defer o.refreshMu.Unlock()
	mu, ok := o.refreshes[id]
	if !ok {
		mu = &sync.Mutex{}
		o.refreshes[id] = mu
	}
	return mu
}

func revokeGoogleAccess(ctx context.Context, client *http.Client, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://oauth2.googleapis.com/revoke",
		strings.NewReader(url.Values{"token": {accessToken}}.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke returned status %d", resp.StatusCode)
	}
	return nil
}

func responseBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return string(b)
}

func decodeTokenResponse(resp *http.Response, id models.PlatformID) (*models.Token, error) {
	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
		IDToken      string `json:"id_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.AccessToken == "" {
		return nil, errors.New("token response has no access token")
	}

	tok := &models.Token{
		Platform:     id,
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		TokenType:    body.TokenType,
		Scope:        body.Scope,
		IDToken:      body.IDToken,
	}
	if body.ExpiresIn > 0 {
		tok.ExpiresAt = time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)
	}
	return tok, nil
}
