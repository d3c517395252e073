package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	config "github.com/dailyquill/dailyquill/configs"
	"github.com/dailyquill/dailyquill/internal/models"
	"github.com/dailyquill/dailyquill/internal/secrets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrchestrator(t *testing.T, port int) (*Orchestrator, *secrets.Keyring) {
	t.Helper()
	keys := secrets.NewKeyring(secrets.NewMemoryStore())
	cfg := config.Config{
		SecretKey:       "0123456789abcdef0123456789abcdef",
		CallbackPort:    port,
		CallbackTimeout: 5,
	}
	return NewOrchestrator(cfg, keys), keys
}

func storeCredential(t *testing.T, keys *secrets.Keyring, p models.PlatformID) {
	t.Helper()
	err := keys.SaveCredential(context.Background(), &models.Credential{
		Platform:     p,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)
}

func tokenEndpoint(t *testing.T, calls *atomic.Int32, wantBasic bool) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if wantBasic {
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
		} else if r.FormValue("client_id") != "client-id" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  fmt.Sprintf("fresh-token-%d", calls.Load()),
			"refresh_token": "fresh-refresh",
			"expires_in":    3600,
			"token_type":    "bearer",
		})
	}))
}

func TestStartFlowRequiresCredential(t *testing.T) {
	o, _ := testOrchestrator(t, 18701)
	_, _, err := o.StartFlow(context.Background(), models.PlatformPinterest)
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestStartFlowRejectsConcurrentAttempts(t *testing.T) {
	o, keys := testOrchestrator(t, 18702)
	storeCredential(t, keys, models.PlatformPinterest)
	storeCredential(t, keys, models.PlatformFacebook)

	var calls atomic.Int32
	ts := tokenEndpoint(t, &calls, true)
	defer ts.Close()
	ep := o.endpoints[models.PlatformPinterest]
	ep.tokenURL = ts.URL
	o.endpoints[models.PlatformPinterest] = ep

	authURL, results, err := o.StartFlow(context.Background(), models.PlatformPinterest)
	require.NoError(t, err)

	// The callback port is a singleton resource.
	_, _, err = o.StartFlow(context.Background(), models.PlatformFacebook)
	assert.ErrorIs(t, err, ErrFlowInProgress)

	// Complete the first flow by simulating the browser redirect.
	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	state := parsed.Query().Get("state")
	require.NotEmpty(t, state)

	cbURL := fmt.Sprintf("http://127.0.0.1:%d/oauth/callback?code=auth-code&state=%s", o.cfg.CallbackPort, url.QueryEscape(state))
	resp, err := http.Get(cbURL)
	require.NoError(t, err)
	resp.Body.Close()

	res := <-results
	require.NoError(t, res.Err)
	require.NotNil(t, res.Token)
	assert.Equal(t, "fresh-token-1", res.Token.AccessToken)
	assert.Equal(t, FlowCompleted, o.Phase())

	// The listener was torn down, so a new flow can bind the port.
	_, results2, err := o.StartFlow(context.Background(), models.PlatformPinterest)
	require.NoError(t, err)
	resp2, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/oauth/callback?error=access_denied", o.cfg.CallbackPort))
	require.NoError(t, err)
	resp2.Body.Close()
	res2 := <-results2
	assert.Error(t, res2.Err)
	assert.Nil(t, res2.Token)
}

func TestFlowTimesOutAndFreesPort(t *testing.T) {
	o, keys := testOrchestrator(t, 18703)
	o.cfg.CallbackTimeout = 1
	storeCredential(t, keys, models.PlatformFacebook)

	_, results, err := o.StartFlow(context.Background(), models.PlatformFacebook)
	require.NoError(t, err)

	res := <-results
	assert.ErrorIs(t, res.Err, ErrFlowTimeout)
	assert.Equal(t, FlowFailed, o.Phase())

	// Port must be reusable after the timeout teardown.
	_, results2, err := o.StartFlow(context.Background(), models.PlatformFacebook)
	require.NoError(t, err)
	res2 := <-results2
	assert.ErrorIs(t, res2.Err, ErrFlowTimeout)
}

func TestExchangeReportsRemoteFailure(t *testing.T) {
	o, keys := testOrchestrator(t, 18704)
	storeCredential(t, keys, models.PlatformFacebook)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_grant"}`)
	}))
	defer ts.Close()
	ep := o.endpoints[models.PlatformFacebook]
	ep.tokenURL = ts.URL
	o.endpoints[models.PlatformFacebook] = ep

	cred, err := keys.Credential(context.Background(), models.PlatformFacebook)
	require.NoError(t, err)

	_, err = o.exchange(context.Background(), models.PlatformFacebook, cred, "bad-code")
	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusBadRequest, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Body, "invalid_grant")
}

func TestTokenRefreshIsSingleFlight(t *testing.T) {
	o, keys := testOrchestrator(t, 18705)
	storeCredential(t, keys, models.PlatformPinterest)

	var calls atomic.Int32
	ts := tokenEndpoint(t, &calls, true)
	defer ts.Close()
	ep := o.endpoints[models.PlatformPinterest]
	ep.tokenURL = ts.URL
	o.endpoints[models.PlatformPinterest] = ep

	require.NoError(t, keys.SaveToken(context.Background(), &models.Token{
		Platform:     models.PlatformPinterest,
		AccessToken:  "stale",
		RefreshToken: "stale-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	const callers = 2
	tokens := make([]*models.Token, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = o.Token(context.Background(), models.PlatformPinterest)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "expected exactly one outbound refresh call")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0].AccessToken, tokens[i].AccessToken)
	}
	assert.Equal(t, "fresh-token-1", tokens[0].AccessToken)
}

func TestTokenRefreshFailureRequiresReauthorize(t *testing.T) {
	o, keys := testOrchestrator(t, 18706)
	storeCredential(t, keys, models.PlatformPinterest)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()
	ep := o.endpoints[models.PlatformPinterest]
	ep.tokenURL = ts.URL
	o.endpoints[models.PlatformPinterest] = ep

	require.NoError(t, keys.SaveToken(context.Background(), &models.Token{
		Platform:     models.PlatformPinterest,
		AccessToken:  "stale",
		RefreshToken: "stale-refresh",
		ExpiresAt:    time.Now().Add(-time.Hour),
	}))

	_, err := o.Token(context.Background(), models.PlatformPinterest)
	assert.ErrorIs(t, err, ErrReauthorizeRequired)
}

func TestTokenWithoutRefreshTokenIsNotRefreshed(t *testing.T) {
	o, keys := testOrchestrator(t, 18707)
	require.NoError(t, keys.SaveToken(context.Background(), &models.Token{
		Platform:    models.PlatformLinkedin,
		AccessToken: "expired",
		ExpiresAt:   time.Now().Add(-time.Minute),
	}))

	_, err := o.Token(context.Background(), models.PlatformLinkedin)
	assert.ErrorIs(t, err, ErrReauthorizeRequired)
}

func TestManualTokenEntry(t *testing.T) {
	o, keys := testOrchestrator(t, 18708)

	err := o.SetManualToken(context.Background(), models.PlatformLinkedin, "  pasted-token  ", time.Time{})
	require.NoError(t, err)

	tok, err := keys.Token(context.Background(), models.PlatformLinkedin)
	require.NoError(t, err)
	assert.Equal(t, "pasted-token", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	// Platforms with a live flow reject pasted tokens.
	err = o.SetManualToken(context.Background(), models.PlatformPinterest, "nope", time.Time{})
	assert.Error(t, err)
}

func TestDisconnectRemovesStoredState(t *testing.T) {
	o, keys := testOrchestrator(t, 18709)
	ctx := context.Background()
	storeCredential(t, keys, models.PlatformPinterest)
	require.NoError(t, keys.SaveToken(ctx, &models.Token{Platform: models.PlatformPinterest, AccessToken: "tok"}))
	require.NoError(t, keys.SaveSubResource(ctx, models.PlatformPinterest, "board-1"))

	require.NoError(t, o.Disconnect(ctx, models.PlatformPinterest))

	assert.False(t, o.Connected(ctx, models.PlatformPinterest))
	_, err := keys.Token(ctx, models.PlatformPinterest)
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	_, err = keys.SubResource(ctx, models.PlatformPinterest)
	assert.ErrorIs(t, err, secrets.ErrNotFound)
	assert.False(t, keys.HasCredential(ctx, models.PlatformPinterest))
}
