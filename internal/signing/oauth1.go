package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Credentials is the static four-key tuple used by signed platforms.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Signer produces OAuth 1.0a HMAC-SHA1 Authorization headers. It is a
// pure function of the request, the credentials, the clock and the
// nonce source; the latter two are injectable for tests.
type Signer struct {
	nowFn   func() time.Time
	nonceFn func() string
}

func NewSigner() *Signer {
	return &Signer{
		nowFn:   time.Now,
		nonceFn: func() string { return strconv.FormatInt(rand.Int63(), 36) },
	}
}

// Sign sets the Authorization header on req. The signature covers the
// request method, the URL without query, the URL query parameters and
// the given form body parameters.
func (s *Signer) Sign(req *http.Request, creds Credentials, body url.Values) {
	oauth := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            s.nonceFn(),
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(s.nowFn().Unix(), 10),
		"oauth_token":            creds.AccessToken,
		"oauth_version":          "1.0",
	}

	all := map[string]string{}
	for k, v := range oauth {
		all[k] = v
	}
	for k, vs := range req.URL.Query() {
		if len(vs) > 0 {
			all[k] = vs[0]
		}
	}
	for k, vs := range body {
		if len(vs) > 0 {
			all[k] = vs[0]
		}
	}

	// Canonical parameter string: pairs sorted by percent-encoded key.
	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return rfc3986(keys[i]) < rfc3986(keys[j]) })
	paramParts := make([]string, 0, len(keys))
	for _, k := range keys {
		paramParts = append(paramParts, rfc3986(k)+"="+rfc3986(all[k]))
	}
	paramStr := strings.Join(paramParts, "&")

	baseURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	base := strings.ToUpper(req.Method) + "&" + rfc3986(baseURL) + "&" + rfc3986(paramStr)
	signingKey := rfc3986(creds.ConsumerSecret) + "&" + rfc3986(creds.AccessSecret)

	mac := hmac.New(sha1.New, []byte(signingKey))
	_, _ = mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	hdrKeys := make([]string, 0, len(oauth))
	for k := range oauth {
		hdrKeys = append(hdrKeys, k)
	}
	sort.Strings(hdrKeys)
	authParts := make([]string, 0, len(hdrKeys))
	for _, k := range hdrKeys {
		authParts = append(authParts, fmt.Sprintf("%s=\"%s\"", rfc3986(k), rfc3986(oauth[k])))
	}
	req.Header.Set("Authorization", "OAuth "+strings.Join(authParts, ", "))
}

// RFC 3986 percent-encoding as OAuth requires it.
func rfc3986(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), "*", "%2A")
}
