package models

// ItemKind distinguishes page fetches from asset fetches in the queue
// and in the crawl log.
type ItemKind string

const (
	KindPage  ItemKind = "page"
	KindAsset ItemKind = "asset"
)

// QueueItem is one candidate URL waiting in the crawl queue.
// Depth of a discovered link is always parent depth + 1; the seed is 0.
type QueueItem struct {
	URL   string
	Depth int
	Kind  ItemKind
}

// JSSources holds the metadata a lexical scan extracts from one block
// of JavaScript source text. Lists are deduplicated and sorted.
type JSSources struct {
	SourceMaps   []string `json:"source_maps"`
	Imports      []string `json:"imports"`
	NetworkHints []string `json:"network_hints"`
}

// FormInput is one input/textarea/select inside a form.
// Type falls back to the tag name when no type attribute exists.
type FormInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Form describes one HTML form found on a page.
type Form struct {
	Action string      `json:"action,omitempty"` // resolved absolute URL, empty if the form has none
	Method string      `json:"method"`           // lower-cased, "get" when absent
	Inputs []FormInput `json:"inputs"`
}

// SourceMeta is the structured source metadata attached to a crawl
// record. Pages populate the inline/external/forms groups; JS assets
// populate the source-map/import/network-hint groups.
type SourceMeta struct {
	InlineScripts      []JSSources `json:"inline_scripts,omitempty"`
	ExternalScriptURLs []string    `json:"external_script_urls,omitempty"`
	Forms              []Form      `json:"forms,omitempty"`

	SourceMaps   []string `json:"source_maps,omitempty"`
	Imports      []string `json:"imports,omitempty"`
	NetworkHints []string `json:"network_hints,omitempty"`
}

// CrawlResult is the immutable record produced for every processed URL.
// LocalPath is relative to the host output root and is set iff the body
// was written to disk; Error is set iff the fetch failed, the status was
// non-success, or the body exceeded the size ceiling.
type CrawlResult struct {
	URL             string     `json:"url"`
	StatusCode      int        `json:"status_code,omitempty"`
	ContentType     string     `json:"content_type,omitempty"`
	LocalPath       string     `json:"local_path,omitempty"`
	Kind            ItemKind   `json:"kind"`
	DiscoveredLinks []string   `json:"discovered_links"`
	Sources         SourceMeta `json:"sources"`
	Error           string     `json:"error,omitempty"`
}

// Summary is the final run summary persisted to _meta/summary.json.
type Summary struct {
	BaseURL         string  `json:"base_url"`
	Scope           string  `json:"scope"`
	MaxPages        int     `json:"max_pages"`
	Visited         int     `json:"visited"`
	SavedPages      int     `json:"saved_pages"`
	SavedAssets     int     `json:"saved_assets"`
	DurationSeconds float64 `json:"duration_seconds"`
	OutputRoot      string  `json:"output_root"`
	RunID           string  `json:"run_id,omitempty"`
}
