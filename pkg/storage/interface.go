package storage

// CrawlStore tracks which canonical URLs a run has visited and where
// each one landed on disk.
type CrawlStore interface {
	// MarkSeen records a canonical URL as queued-or-fetched.
	// Returns true if the URL was newly added, false if it already existed.
	MarkSeen(canonicalURL string) (bool, error)

	// Seen reports whether a canonical URL has already been marked.
	Seen(canonicalURL string) (bool, error)

	// SetLocalPath records the mirror-relative path a URL was saved to.
	SetLocalPath(canonicalURL, relPath string) error

	// LocalPath retrieves the mirror-relative path for a URL, if saved.
	LocalPath(canonicalURL string) (string, bool)

	// SeenCount returns the number of URLs marked so far.
	SeenCount() (int, error)

	// Close cleanly releases any underlying resources.
	Close() error
}
