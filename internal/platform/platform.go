// Package platform resolves which social network a post URL belongs to.
// Credential material and download tuning are scoped per platform and never
// substituted across platforms.
package platform

import (
	"net/url"
	"strings"
)

// Platform describes one supported social network.
type Platform struct {
	// Name is the canonical identifier, e.g. "instagram".
	Name string
	// Hosts lists host suffixes owned by the platform.
	Hosts []string
	// Referer is sent by downloaders that need a plausible origin.
	Referer string
	// OEmbed is the public oEmbed endpoint, empty when the platform has none.
	OEmbed string
}

// Matches reports whether host belongs to this platform.
func (p Platform) Matches(host string) bool {
	host = strings.ToLower(host)
	for _, suffix := range p.Hosts {
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

// Registry keeps a mapping from platform names to their descriptors.
type Registry struct {
	platforms []Platform
}

// NewRegistry builds a registry preloaded with the supported platforms.
func NewRegistry() *Registry {
	return &Registry{
		platforms: []Platform{
			{
				Name:    "instagram",
				Hosts:   []string{"instagram.com", "instagr.am"},
				Referer: "https://www.instagram.com/",
			},
			{
				Name:    "tiktok",
				Hosts:   []string{"tiktok.com", "vm.tiktok.com"},
				Referer: "https://www.tiktok.com/",
				OEmbed:  "https://www.tiktok.com/oembed",
			},
		},
	}
}

// Register adds or replaces a platform descriptor.
func (r *Registry) Register(p Platform) {
	for i, existing := range r.platforms {
		if existing.Name == p.Name {
			r.platforms[i] = p
			return
		}
	}
	r.platforms = append(r.platforms, p)
}

// Resolve maps a post URL to its platform. The second return value is false
// for hosts no registered platform owns.
func (r *Registry) Resolve(rawURL string) (Platform, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Platform{}, false
	}
	host := parsed.Hostname()
	if host == "" {
		return Platform{}, false
	}
	for _, p := range r.platforms {
		if p.Matches(host) {
			return p, true
		}
	}
	return Platform{}, false
}
