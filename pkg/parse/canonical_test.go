package parse

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"SchemeDefault", "example.com/docs", "https://example.com/docs"},
		{"FragmentDropped", "https://example.com/a#section", "https://example.com/a"},
		{"TrailingSlashTrimmed", "https://example.com/docs/", "https://example.com/docs"},
		{"RootSlashKept", "https://example.com/", "https://example.com/"},
		{"EmptyPathBecomesRoot", "https://example.com", "https://example.com/"},
		{"TrackingStripped", "https://example.com/a?utm_source=x&id=1", "https://example.com/a?id=1"},
		{"TrackingCaseInsensitive", "https://example.com/a?UTM_Source=x&id=1", "https://example.com/a?id=1"},
		{"AllTrackingStripped", "https://example.com/a?gclid=1&fbclid=2", "https://example.com/a"},
		{"QueryOrderPreserved", "https://example.com/a?b=2&a=1", "https://example.com/a?b=2&a=1"},
		{"BlankValueKept", "https://example.com/a?flag=&x=1", "https://example.com/a?flag=&x=1"},
		{"HTTPPreserved", "http://example.com/a", "http://example.com/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Canonicalize(tt.input))
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	inputs := []string{
		"example.com/docs/page/",
		"https://example.com/a?utm_source=x&id=1#frag",
		"https://example.com",
		"https://example.com/a?b=2&a=1",
	}
	for _, input := range inputs {
		once := Canonicalize(input)
		assert.Equal(t, once, Canonicalize(once), "input %q", input)
	}
}

func TestResolveAndCanonicalize(t *testing.T) {
	base, err := url.Parse("https://example.com/docs/page")
	require.NoError(t, err)

	got, err := ResolveAndCanonicalize(base, "../other/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other", got)

	got, err = ResolveAndCanonicalize(base, "/app.js")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/app.js", got)

	got, err = ResolveAndCanonicalize(base, "https://other.com/x")
	require.NoError(t, err)
	assert.Equal(t, "https://other.com/x", got)

	got, err = ResolveAndCanonicalize(nil, "example.com/y")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/y", got)
}

func TestScope_InScope(t *testing.T) {
	tests := []struct {
		name     string
		mode     ScopeMode
		url      string
		expected bool
	}{
		{"SameOriginMatch", ScopeSameOrigin, "https://example.com/page", true},
		{"SameOriginSchemeMismatch", ScopeSameOrigin, "http://example.com/page", false},
		{"SameOriginHostMismatch", ScopeSameOrigin, "https://other.com/page", false},
		{"SameHostSchemeIgnored", ScopeSameHost, "http://example.com/page", true},
		{"SameHostOtherHost", ScopeSameHost, "https://cdn.example.com/x", false},
		{"AllAnyHost", ScopeAll, "https://anywhere.net/z", true},
		{"MailtoExcluded", ScopeAll, "mailto:someone@example.com", false},
		{"TelExcluded", ScopeAll, "tel:+155512345", false},
		{"JavascriptExcluded", ScopeSameHost, "javascript:void(0)", false},
		{"DataExcluded", ScopeSameOrigin, "data:text/plain;base64,aGk=", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope, err := NewScope(tt.mode, "https://example.com/")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, scope.InScope(tt.url))
		})
	}
}

func TestNewScope_UnknownMode(t *testing.T) {
	_, err := NewScope("subdomain", "https://example.com/")
	assert.Error(t, err)
}
