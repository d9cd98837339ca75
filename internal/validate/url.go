// Package validate implements the security boundary in front of the
// extraction pipeline: only public HTTP(S) targets are allowed through.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"RecipeSnap/internal/domain"
	"RecipeSnap/internal/ports"
)

// LookupFunc resolves a hostname to addresses. Swappable in tests.
type LookupFunc func(host string) ([]net.IP, error)

// URLValidator rejects non-HTTP(S) schemes and targets inside private or
// loopback address space.
type URLValidator struct {
	lookup LookupFunc
}

var _ ports.URLValidator = (*URLValidator)(nil)

// New builds a validator using the system resolver unless one is supplied.
func New(lookup LookupFunc) *URLValidator {
	if lookup == nil {
		lookup = net.LookupIP
	}
	return &URLValidator{lookup: lookup}
}

// Validate returns a domain.ValidationError describing the first rule the
// URL breaks, or nil when the target is acceptable.
func (v *URLValidator) Validate(rawURL string) error {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return domain.ValidationError{Reason: fmt.Sprintf("malformed url: %v", err)}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ValidationError{Reason: fmt.Sprintf("unsupported scheme %q", parsed.Scheme)}
	}

	host := parsed.Hostname()
	if host == "" {
		return domain.ValidationError{Reason: "url has no host"}
	}

	if ip := net.ParseIP(host); ip != nil {
		if !isPublic(ip) {
			return domain.ValidationError{Reason: fmt.Sprintf("address %s is not publicly routable", ip)}
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return domain.ValidationError{Reason: "loopback host is not allowed"}
	}

	ips, err := v.lookup(host)
	if err != nil {
		return domain.ValidationError{Reason: fmt.Sprintf("cannot resolve host %s", host)}
	}
	for _, ip := range ips {
		if !isPublic(ip) {
			return domain.ValidationError{Reason: fmt.Sprintf("host %s resolves to non-public address %s", host, ip)}
		}
	}

	return nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() ||
		ip.IsPrivate() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsUnspecified() ||
		ip.IsMulticast())
}
