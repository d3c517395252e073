package models

type PlatformID string

const (
	PlatformTwitter   PlatformID = "twitter"
	PlatformFacebook  PlatformID = "facebook"
	PlatformInstagram PlatformID = "instagram"
	PlatformPinterest PlatformID = "pinterest"
	PlatformLinkedin  PlatformID = "linkedin"
	PlatformYoutube   PlatformID = "youtube"
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

type AuthKind string

const (
	// AuthSigned platforms authenticate every request with a static
	// four-key HMAC signature and never run a browser flow.
	AuthSigned AuthKind = "signed"
	// AuthRedirect platforms run a browser redirect and exchange the
	// authorization code at a token endpoint.
	AuthRedirect AuthKind = "redirect"
	// AuthManual platforms accept a pasted bearer token.
	AuthManual AuthKind = "manual"
)

// Platform is static reference data. Capabilities are carried as data
// so adding a platform is a row here plus one connector implementation.
type Platform struct {
	ID                PlatformID
	DisplayName       string
	Auth              AuthKind
	PreferredMedia    MediaKind
	RequiresDiscovery bool
	DiscoveryKeywords []string
}

var Platforms = []Platform{
	{ID: PlatformTwitter, DisplayName: "Twitter", Auth: AuthSigned, PreferredMedia: MediaImage},
	{ID: PlatformFacebook, DisplayName: "Facebook", Auth: AuthRedirect, PreferredMedia: MediaImage, RequiresDiscovery: true, DiscoveryKeywords: []string{"wisdom", "book"}},
	{ID: PlatformInstagram, DisplayName: "Instagram", Auth: AuthRedirect, PreferredMedia: MediaImage},
	{ID: PlatformPinterest, DisplayName: "Pinterest", Auth: AuthRedirect, PreferredMedia: MediaImage, RequiresDiscovery: true, DiscoveryKeywords: []string{"wisdom", "book"}},
	{ID: PlatformLinkedin, DisplayName: "LinkedIn", Auth: AuthManual, PreferredMedia: MediaImage},
	{ID: PlatformYoutube, DisplayName: "YouTube", Auth: AuthRedirect, PreferredMedia: MediaVideo},
}

func PlatformByID(id PlatformID) (Platform, bool) {
	for _, p := range Platforms {
		if p.ID == id {
			return p, true
		}
	}
	return Platform{}, false
}

// PlatformSetting is the mutable per-platform state (user toggles).
type PlatformSetting struct {
	Platform PlatformID `db:"platform" json:"platform"`
	Enabled  bool       `db:"enabled" json:"enabled"`
}
