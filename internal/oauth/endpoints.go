package oauth

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dailyquill/dailyquill/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// endpoint describes one redirect platform's authorization surface.
// basicAuth selects HTTP Basic client authentication at the token
// endpoint; the default is body parameters.
type endpoint struct {
	authURL      string
	tokenURL     string
	refreshURL   string
	longLivedURL string
	scopes       []string
	basicAuth    bool
}

func defaultEndpoints() map[models.PlatformID]endpoint {
	return map[models.PlatformID]endpoint{
		models.PlatformFacebook: {
			authURL:  "https://www.facebook.com/v21.0/dialog/oauth",
			tokenURL: "https://graph.facebook.com/v21.0/oauth/access_token",
			scopes:   []string{"pages_show_list", "pages_read_engagement", "pages_manage_posts"},
		},
		models.PlatformInstagram: {
			authURL:      "https://www.instagram.com/oauth/authorize",
			tokenURL:     "https://api.instagram.com/oauth/access_token",
			refreshURL:   "https://graph.instagram.com/refresh_access_token",
			longLivedURL: "https://graph.instagram.com/access_token",
			scopes:       []string{"instagram_business_basic", "instagram_business_content_publish"},
		},
		models.PlatformPinterest: {
			authURL:   "https://www.pinterest.com/oauth/",
			tokenURL:  "https://api.pinterest.com/v5/oauth/token",
			scopes:    []string{"boards:read", "pins:read", "pins:write"},
			basicAuth: true,
		},
	}
}

const (
	youtubeUploadScope = "https://www.googleapis.com/auth/youtube.upload"
	youtubeReadScope   = "https://www.googleapis.com/auth/youtube.readonly"
)

// googleConfig builds the x/oauth2 config for the YouTube flow from
// the stored credential.
func googleConfig(cred *models.Credential, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{youtubeUploadScope, youtubeReadScope},
		Endpoint:     google.Endpoint,
	}
}

func (o *Orchestrator) buildAuthURL(p models.Platform, cred *models.Credential, state string) string {
	redirectURI := o.redirectURI()

	if p.ID == models.PlatformYoutube {
		conf := googleConfig(cred, redirectURI)
		return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	}

	ep := o.endpoints[p.ID]
	params := url.Values{}
	params.Add("client_id", cred.ClientID)
	params.Add("scope", strings.Join(ep.scopes, ","))
	params.Add("response_type", "code")
	params.Add("redirect_uri", redirectURI)
	params.Add("state", state)

	return fmt.Sprintf("%s?%s", ep.authURL, params.Encode())
}

func (o *Orchestrator) redirectURI() string {
	return fmt.Sprintf("http://localhost:%d/oauth/callback", o.cfg.CallbackPort)
}
