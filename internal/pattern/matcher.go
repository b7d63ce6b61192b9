package pattern

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrMalformedURL is returned by ParseTarget for strings that are not
// absolute URLs.
var ErrMalformedURL = errors.New("malformed URL")

// Target is a URL parsed once for matching against many patterns.
type Target struct {
	Raw  string
	Host string // canonical hostname, "www." kept
	Path string // escaped path, "/" when empty
}

// ParseTarget parses an absolute URL.
func ParseTarget(raw string) (*Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedURL, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: %q is not absolute", ErrMalformedURL, raw)
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}

	return &Target{
		Raw:  raw,
		Host: CanonicalHost(u.Hostname()),
		Path: path,
	}, nil
}

// Compiled is a pattern prepared for matching. The set of implementations is
// closed: one per pattern Type.
type Compiled interface {
	Type() Type
	// Pattern returns the pattern text as stored.
	Pattern() string
	Match(t *Target) bool

	compiled()
}

type domainPattern struct {
	raw      string
	domain   string
	resolver Resolver
}

func (p *domainPattern) Type() Type      { return Domain }
func (p *domainPattern) Pattern() string { return p.raw }
func (p *domainPattern) compiled()       {}

func (p *domainPattern) Match(t *Target) bool {
	if t.Host == "" {
		return false
	}
	d, err := p.resolver.RegistrableDomain(t.Host)
	if err != nil {
		return false
	}
	return d == p.domain
}

type hostPattern struct {
	raw  string
	host string
}

func (p *hostPattern) Type() Type      { return Host }
func (p *hostPattern) Pattern() string { return p.raw }
func (p *hostPattern) compiled()       {}

func (p *hostPattern) Match(t *Target) bool {
	return t.Host != "" && stripWWW(t.Host) == p.host
}

type exactURLPattern struct {
	raw string
}

func (p *exactURLPattern) Type() Type      { return ExactURL }
func (p *exactURLPattern) Pattern() string { return p.raw }
func (p *exactURLPattern) compiled()       {}

func (p *exactURLPattern) Match(t *Target) bool {
	return t.Raw == p.raw
}

type hostPathPrefixPattern struct {
	raw  string
	host string
	path string
}

func (p *hostPathPrefixPattern) Type() Type      { return HostPathPrefix }
func (p *hostPathPrefixPattern) Pattern() string { return p.raw }
func (p *hostPathPrefixPattern) compiled()       {}

func (p *hostPathPrefixPattern) Match(t *Target) bool {
	if t.Host == "" || stripWWW(t.Host) != p.host {
		return false
	}
	if strings.HasPrefix(t.Path, p.path) {
		return true
	}
	// "/maps/" also accepts exactly "/maps"; the reverse is not special-cased.
	return strings.HasSuffix(p.path, "/") && t.Path == strings.TrimSuffix(p.path, "/")
}

type regexPattern struct {
	raw string
	re  *regexp.Regexp
}

func (p *regexPattern) Type() Type      { return Regex }
func (p *regexPattern) Pattern() string { return p.raw }
func (p *regexPattern) compiled()       {}

func (p *regexPattern) Match(t *Target) bool {
	return p.re.MatchString(t.Raw)
}

// Matcher compiles and evaluates patterns.
type Matcher struct {
	resolver  Resolver
	validator *Validator
}

// NewMatcher returns a Matcher resolving registrable domains with r. A nil r
// selects the public suffix list resolver.
func NewMatcher(r Resolver) *Matcher {
	if r == nil {
		r = PublicSuffixResolver{}
	}
	return &Matcher{resolver: r, validator: NewValidator(r)}
}

// Compile prepares raw for matching as type t. Patterns that can never match
// (invalid domain patterns, host_path_prefix without a path, regex syntax
// errors) return ErrInvalidPattern; unknown types return ErrUnknownType.
func (m *Matcher) Compile(raw string, t Type) (Compiled, error) {
	switch t {
	case Domain:
		if err := m.validator.ValidateDomainPattern(raw); err != nil {
			return nil, err
		}
		return &domainPattern{raw: raw, domain: normalizeDomainCandidate(raw), resolver: m.resolver}, nil

	case Host:
		host, err := patternHost(raw)
		if err != nil {
			return nil, err
		}
		return &hostPattern{raw: raw, host: host}, nil

	case ExactURL:
		return &exactURLPattern{raw: raw}, nil

	case HostPathPrefix:
		host, path, err := splitHostPath(raw)
		if err != nil {
			return nil, err
		}
		return &hostPathPrefixPattern{raw: raw, host: host, path: path}, nil

	case Regex:
		re, err := regexp.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		return &regexPattern{raw: raw, re: re}, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownType, string(t))
}

// Matches reports whether rawURL matches pattern under type t. Any parse or
// compile failure yields false.
func (m *Matcher) Matches(rawURL, pattern string, t Type) bool {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return false
	}
	c, err := m.Compile(pattern, t)
	if err != nil {
		return false
	}
	return c.Match(target)
}

var defaultMatcher = NewMatcher(nil)

// Matches evaluates a single pattern with the public suffix list resolver.
func Matches(rawURL, pattern string, t Type) bool {
	return defaultMatcher.Matches(rawURL, pattern, t)
}

// patternHost extracts the www-stripped host from a bare host, a host/path
// string or a full URL.
func patternHost(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	var host string
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
		host = u.Hostname()
	} else {
		host, _, _ = strings.Cut(s, "/")
	}

	host = stripWWW(CanonicalHost(host))
	if host == "" {
		return "", fmt.Errorf("%w: %q has no host", ErrInvalidPattern, raw)
	}
	return host, nil
}

func splitHostPath(raw string) (host, path string, err error) {
	s := strings.TrimSpace(raw)
	if strings.Contains(s, "://") {
		u, perr := url.Parse(s)
		if perr != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidPattern, perr)
		}
		host = u.Hostname()
		path = u.EscapedPath()
	} else {
		i := strings.IndexByte(s, '/')
		if i < 0 {
			return "", "", fmt.Errorf("%w: %q has no path", ErrInvalidPattern, raw)
		}
		host, path = s[:i], s[i:]
	}

	host = stripWWW(CanonicalHost(host))
	if host == "" {
		return "", "", fmt.Errorf("%w: %q has no host", ErrInvalidPattern, raw)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return host, path, nil
}
