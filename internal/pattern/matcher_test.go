package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		pattern string
		typ     Type
		want    bool
	}{
		// domain
		{"domain covers subdomains", "https://mail.google.com/inbox", "google.com", Domain, true},
		{"domain with www pattern", "https://google.com/", "www.google.com", Domain, true},
		{"domain other registrable", "https://google.co.uk/", "google.com", Domain, false},
		{"domain invalid pattern never matches", "https://mail.google.com/", "mail.google.com", Domain, false},
		{"domain malformed url", "anything", "x", Domain, false},
		{"domain ip host", "http://127.0.0.1/", "google.com", Domain, false},
		{"domain case-insensitive host", "https://MAIL.Google.COM/", "google.com", Domain, true},
		{"domain upper case pattern never matches", "https://google.com/", "GOOGLE.COM", Domain, false},
		{"domain trailing dot pattern never matches", "https://google.com/", "google.com.", Domain, false},

		// host
		{"host not suffix match", "https://mail.google.com/inbox", "google.com", Host, false},
		{"host exact", "https://google.com/inbox", "google.com", Host, true},
		{"host www stripped on url", "https://www.google.com/", "google.com", Host, true},
		{"host www stripped on pattern", "https://google.com/", "WWW.google.com", Host, true},
		{"host pattern with path", "https://example.com/other", "example.com/maps", Host, true},
		{"host pattern as url", "https://example.com/", "https://www.example.com/foo?x=1", Host, true},
		{"host ignores port", "https://example.com:8443/", "example.com", Host, true},

		// exact_url
		{"exact equal", "https://example.com/a?b=c", "https://example.com/a?b=c", ExactURL, true},
		{"exact no normalization", "https://example.com/a", "https://example.com/a/", ExactURL, false},
		{"exact case sensitive", "https://Example.com/a", "https://example.com/a", ExactURL, false},

		// host_path_prefix
		{"hpp prefix", "https://example.com/maps/dir", "example.com/maps", HostPathPrefix, true},
		{"hpp shorter path", "https://example.com/map", "example.com/maps", HostPathPrefix, false},
		{"hpp trailing slash accepts bare", "https://example.com/maps", "example.com/maps/", HostPathPrefix, true},
		{"hpp trailing slash prefix", "https://example.com/maps/x", "example.com/maps/", HostPathPrefix, true},
		{"hpp no slash pattern invalid", "https://example.com/maps", "example.com", HostPathPrefix, false},
		{"hpp query ignored", "https://example.com/maps?q=1#top", "example.com/maps", HostPathPrefix, true},
		{"hpp www stripped", "https://www.example.com/maps", "example.com/maps", HostPathPrefix, true},
		{"hpp other host", "https://a.example.com/maps", "example.com/maps", HostPathPrefix, false},
		{"hpp full url pattern", "https://example.com/maps/x", "https://example.com/maps", HostPathPrefix, true},
		{"hpp full url root", "https://example.com/anything", "https://example.com", HostPathPrefix, true},
		{"hpp root url", "https://example.com", "example.com/", HostPathPrefix, true},

		// regex
		{"regex full url", "https://example.com/watch?v=1", `example\.com/watch\?v=\d+`, Regex, true},
		{"regex anchored", "https://example.com/", `^http://`, Regex, false},
		{"regex bad syntax", "https://example.com/", `([`, Regex, false},
		{"regex sees fragment", "https://example.com/#frag", `#frag$`, Regex, true},

		// unknown
		{"unknown type", "https://example.com/", "example.com", Type("wildcard"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Matches(tc.url, tc.pattern, tc.typ))
		})
	}
}

func TestMatches_MalformedURLNeverMatches(t *testing.T) {
	for _, typ := range Types() {
		assert.False(t, Matches("not a url", ".*", typ), "type %s", typ)
		assert.False(t, Matches("/relative/path", ".*", typ), "type %s", typ)
	}
}

func TestCompile_ReturnsVariantPerType(t *testing.T) {
	m := NewMatcher(nil)

	c, err := m.Compile("example.com/maps/", HostPathPrefix)
	require.NoError(t, err)
	assert.Equal(t, HostPathPrefix, c.Type())
	assert.Equal(t, "example.com/maps/", c.Pattern())

	hpp, ok := c.(*hostPathPrefixPattern)
	require.True(t, ok)
	assert.Equal(t, "example.com", hpp.host)
	assert.Equal(t, "/maps/", hpp.path)

	_, err = m.Compile("mail.google.com", Domain)
	assert.ErrorIs(t, err, ErrInvalidPattern)

	_, err = m.Compile("example.com", Type("glob"))
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestCompiled_ReusedAcrossTargets(t *testing.T) {
	m := NewMatcher(nil)
	c, err := m.Compile("google.com", Domain)
	require.NoError(t, err)

	urls := map[string]bool{
		"https://google.com/":             true,
		"https://docs.google.com/a":       true,
		"https://google.com.evil.test/":   false,
		"https://notgoogle.com/":          false,
		"https://www.google.com/?q=hello": true,
	}
	for raw, want := range urls {
		target, err := ParseTarget(raw)
		require.NoError(t, err)
		assert.Equal(t, want, c.Match(target), raw)
	}
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("https://Example.COM")
	require.NoError(t, err)
	assert.Equal(t, "example.com", target.Host)
	assert.Equal(t, "/", target.Path)

	_, err = ParseTarget("example.com/path")
	assert.ErrorIs(t, err, ErrMalformedURL)

	_, err = ParseTarget("http://[::1")
	assert.ErrorIs(t, err, ErrMalformedURL)
}
