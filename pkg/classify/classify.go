// Package classify decides what kind of content a fetched item is and
// where its body lives inside the mirror output tree.
package classify

import (
	"net/url"
	gopath "path"
	"strings"

	"sitemirror/pkg/utils"
)

// AssetKind is one of the asset buckets used for directory placement
// and the include-filter.
type AssetKind string

const (
	AssetJS   AssetKind = "js"
	AssetCSS  AssetKind = "css"
	AssetFont AssetKind = "font"
	AssetImg  AssetKind = "img"
	AssetMisc AssetKind = "misc"
)

// AllAssetKinds lists every valid asset kind, for config validation.
var AllAssetKinds = []AssetKind{AssetJS, AssetCSS, AssetFont, AssetImg, AssetMisc}

// AllAssetKindNames returns the asset kinds as plain strings.
func AllAssetKindNames() []string {
	names := make([]string, len(AllAssetKinds))
	for i, k := range AllAssetKinds {
		names[i] = string(k)
	}
	return names
}

// ValidAssetKind reports whether name is a recognized asset kind.
func ValidAssetKind(name string) bool {
	for _, k := range AllAssetKinds {
		if string(k) == name {
			return true
		}
	}
	return false
}

// defaultExt fills in a missing extension per asset kind.
var defaultExt = map[AssetKind]string{
	AssetJS:   ".js",
	AssetCSS:  ".css",
	AssetFont: ".bin",
	AssetImg:  ".bin",
	AssetMisc: ".bin",
}

// pageExtensions are URL path extensions treated as page-like.
var pageExtensions = map[string]bool{
	".html": true, ".htm": true, ".php": true,
	".asp": true, ".aspx": true, ".jsp": true,
}

// Asset determines an item's asset kind. Content-type substring match
// takes priority over the file extension; unknown content defaults to
// misc.
func Asset(contentType, urlPath string) AssetKind {
	ctype := strings.ToLower(contentType)
	pathL := strings.ToLower(urlPath)
	switch {
	case strings.Contains(ctype, "javascript") || hasSuffixAny(pathL, ".js", ".mjs", ".cjs"):
		return AssetJS
	case strings.Contains(ctype, "css") || strings.HasSuffix(pathL, ".css"):
		return AssetCSS
	case containsAny(ctype, "font", "woff", "ttf") || hasSuffixAny(pathL, ".woff", ".woff2", ".ttf", ".otf"):
		return AssetFont
	case containsAny(ctype, "image", "svg") || hasSuffixAny(pathL, ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico"):
		return AssetImg
	default:
		return AssetMisc
	}
}

// LooksLikePage reports whether a URL should be fetched as a page:
// directory-like paths, extensionless paths, and the common dynamic
// page extensions.
func LooksLikePage(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	if strings.HasSuffix(p, "/") {
		return true
	}
	ext := gopath.Ext(p)
	if ext == "" {
		return true
	}
	return pageExtensions[ext]
}

// MapPath computes the on-disk path for a URL, relative to the host
// output root, using forward slashes. Pages land under pages/ with
// directory-like paths becoming .../index.html; assets land under
// assets/<kind>/ with a per-kind default extension when missing. A
// query string inserts an 8-hex digest before the extension so
// style.css?v=2 and style.css?v=3 do not collide. Remaining collisions
// silently overwrite.
func MapPath(rawURL string, kind string, contentType string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		u = &url.URL{Path: rawURL}
	}
	rawPath := u.Path
	if rawPath == "" {
		rawPath = "/"
	}

	if kind == "page" {
		rel := strings.TrimLeft(rawPath, "/")
		if rel == "" {
			rel = "index"
		}
		if strings.HasSuffix(rawPath, "/") || !strings.Contains(gopath.Base(rel), ".") {
			rel = strings.TrimRight(rel, "/") + "/index.html"
		}
		return gopath.Join("pages", rel)
	}

	assetKind := Asset(contentType, rawPath)
	rel := strings.TrimLeft(rawPath, "/")
	if rel == "" {
		rel = "asset"
	}
	if strings.HasSuffix(rel, "/") {
		rel += "index"
	}
	if !strings.Contains(gopath.Base(rel), ".") {
		rel += defaultExt[assetKind]
	}

	if u.RawQuery != "" {
		digest := utils.QueryDigest(u.RawQuery)
		dir, name := gopath.Split(rel)
		ext := gopath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		rel = dir + stem + "." + digest + ext
	}

	return gopath.Join("assets", string(assetKind), rel)
}

func hasSuffixAny(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
