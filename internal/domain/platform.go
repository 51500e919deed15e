package domain

import (
	"net/url"
	"strings"
)

// Platform is the social network the sponsored content is published on.
type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
	PlatformYouTube   Platform = "youtube"
	PlatformTwitch    Platform = "twitch"
)

// platformDomains maps each platform to the host a delivery link must
// resolve to. Subdomains of the expected host are accepted
// (www.instagram.com, m.youtube.com).
var platformDomains = map[Platform]string{
	PlatformInstagram: "instagram.com",
	PlatformTikTok:    "tiktok.com",
	PlatformYouTube:   "youtube.com",
	PlatformTwitch:    "twitch.tv",
}

// Domain returns the expected host for delivery links on this platform.
func (p Platform) Domain() string {
	return platformDomains[p]
}

// Known reports whether the platform is one the marketplace supports.
func (p Platform) Known() bool {
	_, ok := platformDomains[p]
	return ok
}

// ValidateDeliveryLink checks that raw is an absolute https URL whose
// host belongs to the campaign's platform. This is the delivery-phase
// gate that keeps a TikTok campaign from being "delivered" with a link
// to somewhere else.
func ValidateDeliveryLink(raw string, platform Platform) error {
	u, err := url.Parse(raw)
	if err != nil {
		return &InvalidDeliveryLinkError{URL: raw, Platform: platform, Reason: "not a valid URL"}
	}
	if u.Scheme != "https" {
		return &InvalidDeliveryLinkError{URL: raw, Platform: platform, Reason: "link must use https"}
	}
	host := strings.ToLower(u.Hostname())
	want := platform.Domain()
	if want == "" {
		return &InvalidDeliveryLinkError{URL: raw, Platform: platform, Reason: "unknown platform"}
	}
	if host != want && !strings.HasSuffix(host, "."+want) {
		return &InvalidDeliveryLinkError{URL: raw, Platform: platform, Reason: "host does not match platform " + want}
	}
	return nil
}
