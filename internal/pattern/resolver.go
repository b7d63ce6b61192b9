package pattern

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// ErrUnresolvable is returned when a hostname has no registrable domain.
var ErrUnresolvable = errors.New("no registrable domain")

// Resolver maps a hostname to its registrable domain (eTLD+1).
type Resolver interface {
	RegistrableDomain(host string) (string, error)
}

// PublicSuffixResolver resolves registrable domains with the public suffix
// list compiled into golang.org/x/net/publicsuffix.
type PublicSuffixResolver struct{}

// RegistrableDomain implements Resolver. IP literals and hosts that are
// themselves public suffixes (or single labels) are rejected.
func (PublicSuffixResolver) RegistrableDomain(host string) (string, error) {
	h := CanonicalHost(host)
	if h == "" {
		return "", fmt.Errorf("%w: empty host", ErrUnresolvable)
	}
	if net.ParseIP(h) != nil {
		return "", fmt.Errorf("%w: %s is an IP address", ErrUnresolvable, h)
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(h)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnresolvable, h, err)
	}
	return d, nil
}

// CanonicalHost lower-cases a hostname, drops a trailing dot and converts
// internationalized labels to their ASCII (punycode) form. It returns "" for
// hosts that are not valid internationalized domain names.
func CanonicalHost(raw string) string {
	h := strings.TrimSpace(raw)
	h = strings.TrimSuffix(h, ".")
	if h == "" {
		return ""
	}

	if isASCII(h) {
		return strings.ToLower(h)
	}

	ascii, err := idna.Lookup.ToASCII(h)
	if err != nil {
		// Not a valid IDN: treated as no host, so it never resolves or matches.
		return ""
	}
	return ascii
}

// stripWWW removes one leading "www." label, case-insensitively.
func stripWWW(s string) string {
	if len(s) >= 4 && strings.EqualFold(s[:4], "www.") {
		return s[4:]
	}
	return s
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
