package config

import "time"

// AppConfig holds the full configuration for one mirror run. Values
// come from an optional YAML file with CLI flags layered on top.
type AppConfig struct {
	SeedURL   string `yaml:"seed_url"`
	OutputDir string `yaml:"output_dir"`         // mirror tree root; host dir created underneath
	StateDir  string `yaml:"state_dir,omitempty"` // crawl-state database; empty keeps state in memory

	MaxPages      int      `yaml:"max_pages,omitempty"`
	Scope         string   `yaml:"scope,omitempty"` // same-origin | same-host | all
	IncludeAssets []string `yaml:"include_assets,omitempty"`
	MaxDepth      *int     `yaml:"max_depth,omitempty"` // nil=default; 0 crawls only the seed
	Concurrency   int      `yaml:"concurrency,omitempty"`
	RateRPS       float64  `yaml:"rate_rps,omitempty"`

	RewriteLinks  *bool `yaml:"rewrite_links,omitempty"` // default true
	StoreRaw      bool  `yaml:"store_raw,omitempty"`
	RespectRobots bool  `yaml:"respect_robots,omitempty"`

	UserAgent        string        `yaml:"user_agent,omitempty"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes,omitempty"`
	RetryBackoffBase time.Duration `yaml:"retry_backoff_base,omitempty"`

	HTTPClientSettings HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client.
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Overall request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// EffectiveRewriteLinks resolves the tri-state rewrite flag; rewriting
// defaults on.
func (c *AppConfig) EffectiveRewriteLinks() bool {
	if c.RewriteLinks != nil {
		return *c.RewriteLinks
	}
	return true
}

// EffectiveMaxDepth resolves the tri-state depth cap. An explicit 0
// limits the crawl to the seed; unset falls back to the default.
func (c *AppConfig) EffectiveMaxDepth() int {
	if c.MaxDepth != nil {
		return *c.MaxDepth
	}
	return defaultMaxDepth
}
