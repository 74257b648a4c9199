// Package extract discovers outbound references and source-level
// metadata in fetched HTML and JavaScript bodies, and rewrites
// intra-site links for offline browsing.
package extract

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"

	"sitemirror/pkg/models"
	"sitemirror/pkg/parse"
	"sitemirror/pkg/utils"
)

// LocalLookup resolves a canonical URL to its saved path relative to
// the host output root. The orchestrator backs this with its crawl
// store; only targets already saved get rewritten.
type LocalLookup func(canonicalURL string) (string, bool)

// rewriteTargets are the attribute-bearing elements whose references
// get rewritten to local paths.
var rewriteTargets = []struct{ tag, attr string }{
	{"a", "href"},
	{"script", "src"},
	{"link", "href"},
	{"img", "src"},
}

// PageData is everything extracted from one HTML document.
type PageData struct {
	Links   []string // in-scope canonical URLs, deduplicated and sorted
	Sources models.SourceMeta
	HTML    string // serialized document, rewritten when enabled
}

// HTMLExtractor parses fetched pages, collects references and
// form/script metadata, and optionally rewrites links to local paths.
type HTMLExtractor struct {
	scope        *parse.Scope
	rewriteLinks bool
	log          *logrus.Entry
}

// NewHTMLExtractor creates an HTMLExtractor bound to the crawl scope.
func NewHTMLExtractor(scope *parse.Scope, rewriteLinks bool, log *logrus.Entry) *HTMLExtractor {
	return &HTMLExtractor{scope: scope, rewriteLinks: rewriteLinks, log: log}
}

// Extract parses htmlText fetched from pageURL and returns the
// discovered in-scope links, structural metadata, and the serialized
// (possibly rewritten) document.
func (e *HTMLExtractor) Extract(pageURL, htmlText string, lookup LocalLookup) (PageData, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return PageData{}, fmt.Errorf("%w: parsing page URL '%s': %w", utils.ErrParsing, pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlText))
	if err != nil {
		return PageData{}, fmt.Errorf("%w: parsing HTML from '%s': %w", utils.ErrParsing, pageURL, err)
	}

	var found []string
	push := func(ref string) {
		if ref == "" {
			return
		}
		abs, err := parse.ResolveAndCanonicalize(base, ref)
		if err != nil {
			e.log.Debugf("Skipping unresolvable reference '%s' on %s: %v", ref, pageURL, err)
			return
		}
		if e.scope.InScope(abs) {
			found = append(found, abs)
		}
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		push(href)
	})
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		push(src)
	})
	doc.Find("link[rel]").Each(func(_ int, sel *goquery.Selection) {
		rel, _ := sel.Attr("rel")
		if strings.Contains(rel, "stylesheet") || strings.Contains(rel, "preload") {
			href, _ := sel.Attr("href")
			push(href)
		}
	})
	doc.Find("img[src], source[srcset]").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			push(src)
		}
		if srcset, ok := sel.Attr("srcset"); ok {
			for _, part := range strings.Split(srcset, ",") {
				fields := strings.Fields(strings.TrimSpace(part))
				if len(fields) > 0 {
					push(fields[0])
				}
			}
		}
	})

	sources := models.SourceMeta{
		Forms:              e.extractForms(doc, base),
		InlineScripts:      extractInlineScripts(doc),
		ExternalScriptURLs: externalScriptURLs(doc, base),
	}

	if e.rewriteLinks && lookup != nil {
		e.rewriteToLocal(doc, base, lookup)
	}

	rendered, err := doc.Html()
	if err != nil {
		return PageData{}, fmt.Errorf("%w: serializing HTML for '%s': %w", utils.ErrParsing, pageURL, err)
	}

	return PageData{
		Links:   SortedUnique(found),
		Sources: sources,
		HTML:    rendered,
	}, nil
}

// extractForms records every form: resolved action, lower-cased method
// (default get), and each contained input's name and type.
func (e *HTMLExtractor) extractForms(doc *goquery.Document, base *url.URL) []models.Form {
	var forms []models.Form
	doc.Find("form").Each(func(_ int, formSel *goquery.Selection) {
		form := models.Form{Method: "get", Inputs: []models.FormInput{}}

		if action, ok := formSel.Attr("action"); ok && action != "" {
			if resolved, err := base.Parse(action); err == nil {
				form.Action = resolved.String()
			}
		}
		if method, ok := formSel.Attr("method"); ok && method != "" {
			form.Method = strings.ToLower(method)
		}

		formSel.Find("input, textarea, select").Each(func(_ int, inputSel *goquery.Selection) {
			input := models.FormInput{Type: goquery.NodeName(inputSel)}
			if name, ok := inputSel.Attr("name"); ok {
				input.Name = name
			}
			if typ, ok := inputSel.Attr("type"); ok {
				input.Type = typ
			}
			form.Inputs = append(form.Inputs, input)
		})

		forms = append(forms, form)
	})
	return forms
}

// extractInlineScripts runs the lexical JS scan over every non-empty
// inline script body.
func extractInlineScripts(doc *goquery.Document) []models.JSSources {
	var inline []models.JSSources
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if _, hasSrc := sel.Attr("src"); hasSrc {
			return
		}
		text := sel.Text()
		if strings.TrimSpace(text) == "" {
			return
		}
		inline = append(inline, ScanJS(text))
	})
	return inline
}

// externalScriptURLs records the absolute URL of every external
// script, including off-site ones. Scope filtering does not apply
// here.
func externalScriptURLs(doc *goquery.Document, base *url.URL) []string {
	var external []string
	doc.Find("script[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		if src == "" {
			return
		}
		abs, err := parse.ResolveAndCanonicalize(base, src)
		if err != nil {
			return
		}
		external = append(external, abs)
	})
	return external
}

// rewriteToLocal replaces reference attributes whose canonical target
// has already been saved with a path relative to the output root.
func (e *HTMLExtractor) rewriteToLocal(doc *goquery.Document, base *url.URL, lookup LocalLookup) {
	for _, target := range rewriteTargets {
		doc.Find(target.tag + "[" + target.attr + "]").Each(func(_ int, sel *goquery.Selection) {
			ref, _ := sel.Attr(target.attr)
			abs, err := parse.ResolveAndCanonicalize(base, ref)
			if err != nil {
				return
			}
			if local, ok := lookup(abs); ok {
				sel.SetAttr(target.attr, RelativeRef(local))
			}
		})
	}
}

// RelativeRef converts a host-root-relative local path into the
// reference written into rewritten documents. The fixed single
// parent-directory prefix assumes pages sit one level below the host
// root; deeply nested pages produce broken relative links.
func RelativeRef(localPath string) string {
	return "../" + localPath
}
