package extract

import (
	"regexp"
	"sort"
	"strings"

	"sitemirror/pkg/models"
)

// Pre-compiled regexes for the lexical JavaScript scan. These are
// best-effort heuristics: minified or obfuscated code will produce
// false negatives, string-heavy code false positives. That tradeoff is
// intentional; a real parser is out of scope for this extractor.
var (
	jsImportRe  = regexp.MustCompile(`(?:import\s+(?:[^'"]+from\s+)?|import\()\s*['"]([^'"]+)['"]`)
	sourceMapRe = regexp.MustCompile(`sourceMappingURL\s*=\s*([^\s*]+)`)
	fetchHintRe = regexp.MustCompile(`(?:fetch|axios\.(?:get|post|put|delete|patch))\s*\(\s*['"]([^'"]+)['"]`)
)

// ScanJS lexically scans JavaScript source text for source-map
// references, ES-module import specifiers (static and dynamic), and
// fetch/axios network-call literals. Each output list is deduplicated
// and sorted.
func ScanJS(jsText string) models.JSSources {
	var maps []string
	for _, m := range sourceMapRe.FindAllStringSubmatch(jsText, -1) {
		v := strings.TrimSpace(m[1])
		v = strings.TrimRight(v, "*/")
		if v != "" {
			maps = append(maps, v)
		}
	}

	var imports []string
	for _, m := range jsImportRe.FindAllStringSubmatch(jsText, -1) {
		imports = append(imports, m[1])
	}

	var hints []string
	for _, m := range fetchHintRe.FindAllStringSubmatch(jsText, -1) {
		hints = append(hints, m[1])
	}

	return models.JSSources{
		SourceMaps:   SortedUnique(maps),
		Imports:      SortedUnique(imports),
		NetworkHints: SortedUnique(hints),
	}
}

// SortedUnique returns a sorted, deduplicated copy of in.
// Always non-nil so the JSON encoding stays [] rather than null.
func SortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}
