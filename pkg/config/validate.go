package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"sitemirror/pkg/classify"
	"sitemirror/pkg/utils"
)

const (
	defaultMaxPages         = 100
	defaultScope            = "same-origin"
	defaultMaxDepth         = 3
	defaultConcurrency      = 8
	defaultRateRPS          = 2.0
	defaultUserAgent        = "sitemirror/0.1 (+mirror)"
	defaultMaxBodyBytes     = 10 << 20
	defaultRetryBackoffBase = 1 * time.Second
	defaultHTTPTimeout      = 20 * time.Second
)

var validScopes = map[string]bool{
	"same-origin": true,
	"same-host":   true,
	"all":         true,
}

// Load reads a YAML config file into an AppConfig. A missing path is
// not an error; callers get a zero config to fill from flags.
func Load(path string) (*AppConfig, error) {
	cfg := &AppConfig{}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration, applies defaults in place, and
// returns non-fatal warnings. A returned error means the config is
// unusable.
func (c *AppConfig) Validate() ([]string, error) {
	var warnings []string

	if strings.TrimSpace(c.SeedURL) == "" {
		return warnings, fmt.Errorf("%w: seed_url is required", utils.ErrConfigValidation)
	}
	u, err := url.Parse(c.SeedURL)
	if err != nil {
		return warnings, fmt.Errorf("%w: invalid seed_url %q: %v", utils.ErrConfigValidation, c.SeedURL, err)
	}
	if u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https" {
		return warnings, fmt.Errorf("%w: seed_url scheme %q not supported", utils.ErrConfigValidation, u.Scheme)
	}
	if u.Host == "" && !strings.Contains(c.SeedURL, "//") {
		// Bare hostnames parse with an empty host; a reparse with a
		// scheme prefix catches genuinely hostless input.
		if reparsed, rerr := url.Parse("https://" + c.SeedURL); rerr != nil || reparsed.Host == "" {
			return warnings, fmt.Errorf("%w: seed_url %q has no host", utils.ErrConfigValidation, c.SeedURL)
		}
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		c.OutputDir = "out"
		warnings = append(warnings, "output_dir not set, defaulting to ./out")
	}

	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
		warnings = append(warnings, fmt.Sprintf("max_pages not set, defaulting to %d", defaultMaxPages))
	}

	if c.Scope == "" {
		c.Scope = defaultScope
	} else if !validScopes[c.Scope] {
		return warnings, fmt.Errorf("%w: unknown scope %q (want same-origin, same-host, or all)", utils.ErrConfigValidation, c.Scope)
	}

	if len(c.IncludeAssets) == 0 {
		// misc is opt-in; the default buckets cover what a browsable
		// mirror needs.
		c.IncludeAssets = []string{"js", "css", "img", "font"}
	} else {
		for _, kind := range c.IncludeAssets {
			if !classify.ValidAssetKind(kind) {
				return warnings, fmt.Errorf("%w: unknown asset kind %q in include_assets", utils.ErrConfigValidation, kind)
			}
		}
	}

	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return warnings, fmt.Errorf("%w: max_depth must be >= 0, got %d", utils.ErrConfigValidation, *c.MaxDepth)
	}

	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if c.Concurrency > 64 {
		warnings = append(warnings, fmt.Sprintf("concurrency %d is high, capping at 64", c.Concurrency))
		c.Concurrency = 64
	}

	if c.RateRPS <= 0 {
		c.RateRPS = defaultRateRPS
	}

	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.RetryBackoffBase <= 0 {
		c.RetryBackoffBase = defaultRetryBackoffBase
	}

	if c.HTTPClientSettings.Timeout <= 0 {
		c.HTTPClientSettings.Timeout = defaultHTTPTimeout
	}
	if c.HTTPClientSettings.DialerTimeout <= 0 {
		c.HTTPClientSettings.DialerTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.DialerKeepAlive <= 0 {
		c.HTTPClientSettings.DialerKeepAlive = 30 * time.Second
	}
	if c.HTTPClientSettings.MaxIdleConns <= 0 {
		c.HTTPClientSettings.MaxIdleConns = 100
	}
	if c.HTTPClientSettings.MaxIdleConnsPerHost <= 0 {
		c.HTTPClientSettings.MaxIdleConnsPerHost = 10
	}
	if c.HTTPClientSettings.IdleConnTimeout <= 0 {
		c.HTTPClientSettings.IdleConnTimeout = 90 * time.Second
	}
	if c.HTTPClientSettings.TLSHandshakeTimeout <= 0 {
		c.HTTPClientSettings.TLSHandshakeTimeout = 10 * time.Second
	}
	if c.HTTPClientSettings.ExpectContinueTimeout <= 0 {
		c.HTTPClientSettings.ExpectContinueTimeout = 1 * time.Second
	}

	return warnings, nil
}
