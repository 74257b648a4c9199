package parse

import (
	"net/url"
	"strings"
)

// trackingParams are query keys stripped during canonicalization,
// compared against the lower-cased key.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
}

// Canonicalize normalizes a raw URL string into the comparable form used
// as the dedup key for the entire crawl: a missing scheme defaults to
// https, the fragment is dropped, tracking query parameters are removed,
// the remaining query is re-encoded preserving order and blank values,
// and trailing slashes are stripped from the path unless it is "/".
// Canonicalize is idempotent; relative references must be resolved
// against a base before calling it.
func Canonicalize(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
		if err != nil {
			return raw
		}
	}

	u.Fragment = ""
	u.RawQuery = stripTrackingParams(u.RawQuery)

	path := u.Path
	if path == "" {
		path = "/"
	} else if path != "/" && strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	u.Path = path
	u.RawPath = ""

	return u.String()
}

// stripTrackingParams re-encodes a raw query string, dropping tracking
// keys. Parameter order is preserved, which url.Values cannot do, so
// pairs are walked manually. Blank values survive as "key=".
func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	var kept []string
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			decodedKey = key
		}
		if trackingParams[strings.ToLower(decodedKey)] {
			continue
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			decodedValue = value
		}
		kept = append(kept, url.QueryEscape(decodedKey)+"="+url.QueryEscape(decodedValue))
	}
	return strings.Join(kept, "&")
}

// ResolveAndCanonicalize resolves ref against base (which may be nil for
// absolute refs) and canonicalizes the result.
func ResolveAndCanonicalize(base *url.URL, ref string) (string, error) {
	if base == nil {
		return Canonicalize(ref), nil
	}
	resolved, err := base.Parse(ref)
	if err != nil {
		return "", err
	}
	return Canonicalize(resolved.String()), nil
}
