// Package pattern implements the URL pattern types understood by listkeeper:
// validation of domain patterns against the public suffix list, and
// compiled matchers for each pattern type.
package pattern

import (
	"errors"
	"fmt"
)

// Type is the matching strategy of a list entry.
type Type string

const (
	// Domain matches every URL whose registrable domain (eTLD+1) equals the pattern.
	Domain Type = "domain"
	// Host matches URLs whose hostname equals the pattern host, ignoring one leading "www.".
	Host Type = "host"
	// ExactURL matches a URL string byte for byte.
	ExactURL Type = "exact_url"
	// HostPathPrefix matches a host plus a path prefix.
	HostPathPrefix Type = "host_path_prefix"
	// Regex matches the full URL against a regular expression.
	Regex Type = "regex"
)

var (
	// ErrUnknownType is returned for pattern type strings outside the closed set.
	ErrUnknownType = errors.New("unknown pattern type")
	// ErrInvalidPattern is returned when a pattern cannot be compiled for its type.
	ErrInvalidPattern = errors.New("invalid pattern")
)

// Types returns every supported pattern type.
func Types() []Type {
	return []Type{Domain, Host, ExactURL, HostPathPrefix, Regex}
}

// Valid reports whether t is one of the supported pattern types.
func (t Type) Valid() bool {
	switch t {
	case Domain, Host, ExactURL, HostPathPrefix, Regex:
		return true
	}
	return false
}

func (t Type) String() string { return string(t) }

// ParseType converts a wire string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
	}
	return t, nil
}
