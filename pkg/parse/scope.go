package parse

import (
	"fmt"
	"net/url"

	"sitemirror/pkg/utils"
)

// ScopeMode selects which discovered URLs are eligible for crawling.
type ScopeMode string

const (
	ScopeSameOrigin ScopeMode = "same-origin" // scheme and host must match the seed
	ScopeSameHost   ScopeMode = "same-host"   // host must match the seed
	ScopeAll        ScopeMode = "all"         // any non-excluded scheme
)

// excludedSchemes are never crawlable regardless of mode.
var excludedSchemes = map[string]bool{
	"mailto":     true,
	"tel":        true,
	"javascript": true,
	"data":       true,
}

// Scope classifies canonical URLs against the configured crawl scope.
// It gates both the initial enqueue and link discovery.
type Scope struct {
	mode ScopeMode
	base *url.URL
}

// NewScope builds a Scope anchored at the canonical seed URL.
func NewScope(mode ScopeMode, canonicalSeed string) (*Scope, error) {
	switch mode {
	case ScopeSameOrigin, ScopeSameHost, ScopeAll:
	default:
		return nil, fmt.Errorf("%w: unknown scope mode '%s'", utils.ErrConfigValidation, mode)
	}
	base, err := url.Parse(canonicalSeed)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing seed URL '%s': %w", utils.ErrParsing, canonicalSeed, err)
	}
	return &Scope{mode: mode, base: base}, nil
}

// Mode returns the configured scope mode.
func (s *Scope) Mode() ScopeMode { return s.mode }

// Base returns the parsed canonical seed URL.
func (s *Scope) Base() *url.URL { return s.base }

// InScope reports whether a canonical URL is crawlable under this scope.
func (s *Scope) InScope(canonicalURL string) bool {
	u, err := url.Parse(canonicalURL)
	if err != nil {
		return false
	}
	if excludedSchemes[u.Scheme] {
		return false
	}
	switch s.mode {
	case ScopeSameOrigin:
		return u.Scheme == s.base.Scheme && u.Host == s.base.Host
	case ScopeSameHost:
		return u.Host == s.base.Host
	default:
		return true
	}
}
