// Package crawler contains the wave-based crawl orchestrator: it owns
// the queue, the page budget, result merging, and the output tree.
package crawler

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"sitemirror/pkg/classify"
	"sitemirror/pkg/config"
	"sitemirror/pkg/extract"
	"sitemirror/pkg/fetch"
	"sitemirror/pkg/models"
	"sitemirror/pkg/parse"
	"sitemirror/pkg/storage"
	"sitemirror/pkg/utils"
)

// Crawler drives one mirror run. URLs move through it in waves: up to
// Concurrency unseen in-scope items are drained from the FIFO queue,
// fetched concurrently, then merged back strictly in batch order so the
// crawl log and discovery order stay deterministic per wave.
type Crawler struct {
	cfg       *config.AppConfig
	scope     *parse.Scope
	fetcher   *fetch.Fetcher
	robots    *fetch.RobotsGate // nil unless respect_robots
	extractor *extract.HTMLExtractor
	store     storage.CrawlStore
	output    *OutputManager
	sem       *semaphore.Weighted
	log       *logrus.Entry

	baseURL  string
	runID    string
	includes map[string]bool

	pageCount  int
	assetCount int
}

// New assembles a Crawler from its already-validated configuration and
// constructed collaborators. The seed URL is canonicalized here; it
// anchors the crawl scope.
func New(
	cfg *config.AppConfig,
	store storage.CrawlStore,
	output *OutputManager,
	fetcher *fetch.Fetcher,
	robots *fetch.RobotsGate,
	logger *logrus.Entry,
) (*Crawler, error) {
	baseURL := parse.Canonicalize(cfg.SeedURL)
	scope, err := parse.NewScope(parse.ScopeMode(cfg.Scope), baseURL)
	if err != nil {
		return nil, err
	}

	includes := make(map[string]bool, len(cfg.IncludeAssets))
	for _, kind := range cfg.IncludeAssets {
		includes[kind] = true
	}

	return &Crawler{
		cfg:       cfg,
		scope:     scope,
		fetcher:   fetcher,
		robots:    robots,
		extractor: extract.NewHTMLExtractor(scope, cfg.EffectiveRewriteLinks(), logger),
		store:     store,
		output:    output,
		sem:       semaphore.NewWeighted(int64(cfg.Concurrency)),
		log:       logger,
		baseURL:   baseURL,
		runID:     uuid.NewString(),
		includes:  includes,
	}, nil
}

// BaseURL returns the canonical seed URL anchoring this run.
func (c *Crawler) BaseURL() string { return c.baseURL }

// Run executes the crawl until the queue empties, the page budget is
// spent, or ctx is cancelled. Only saved pages count against the
// budget; assets ride along free. Filesystem failures on the output
// tree abort the run.
func (c *Crawler) Run(ctx context.Context) (*models.Summary, error) {
	startTime := time.Now()
	runLog := c.log.WithField("run_id", c.runID)
	runLog.WithFields(logrus.Fields{
		"base_url":  c.baseURL,
		"scope":     c.scope.Mode(),
		"max_pages": c.cfg.MaxPages,
	}).Info("Starting crawl")

	queue := []models.QueueItem{{URL: c.baseURL, Depth: 0, Kind: models.KindPage}}

	for len(queue) > 0 && c.pageCount < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			runLog.Warn("Crawl cancelled")
			break
		}

		batch, rest, err := c.drainBatch(ctx, queue)
		if err != nil {
			return nil, err
		}
		queue = rest
		if len(batch) == 0 {
			continue
		}

		results, err := c.fetchBatch(ctx, batch)
		if err != nil {
			return nil, err
		}

		queue, err = c.mergeResults(batch, results, queue)
		if err != nil {
			return nil, err
		}
	}

	visited, err := c.store.SeenCount()
	if err != nil {
		runLog.Warnf("Could not read visited count: %v", err)
	}
	summary := &models.Summary{
		BaseURL:         c.baseURL,
		Scope:           string(c.scope.Mode()),
		MaxPages:        c.cfg.MaxPages,
		Visited:         visited,
		SavedPages:      c.pageCount,
		SavedAssets:     c.assetCount,
		DurationSeconds: math.Round(time.Since(startTime).Seconds()*100) / 100,
		OutputRoot:      c.output.HostRoot(),
		RunID:           c.runID,
	}
	if err := c.output.WriteSummary(summary); err != nil {
		return nil, err
	}

	runLog.WithFields(logrus.Fields{
		"visited":      summary.Visited,
		"saved_pages":  summary.SavedPages,
		"saved_assets": summary.SavedAssets,
		"duration_s":   summary.DurationSeconds,
	}).Info("Crawl finished")
	return summary, nil
}

// drainBatch pops crawlable items from the queue head until the
// semaphore's permits run out; the pool is the wave bound. Each
// accepted item holds its permit from here through the end of its
// fetch, and the robots lookup runs under that permit too, so robots
// traffic is bounded the same as page fetches. Seen or out-of-scope
// candidates are dropped; accepted items are marked seen before any
// fetch starts so concurrent discovery cannot requeue them.
func (c *Crawler) drainBatch(ctx context.Context, queue []models.QueueItem) ([]models.QueueItem, []models.QueueItem, error) {
	var batch []models.QueueItem
	for len(queue) > 0 && c.sem.TryAcquire(1) {
		item := queue[0]
		queue = queue[1:]

		seen, err := c.store.Seen(item.URL)
		if err != nil {
			c.sem.Release(1)
			return nil, nil, err
		}
		if seen {
			c.sem.Release(1)
			continue
		}
		if !c.scope.InScope(item.URL) {
			c.log.WithFields(logrus.Fields{
				"url":            item.URL,
				"error_category": utils.CategorizeError(utils.ErrScopeViolation),
			}).Debug("Skipping out-of-scope URL")
			c.sem.Release(1)
			continue
		}
		if _, err := c.store.MarkSeen(item.URL); err != nil {
			c.sem.Release(1)
			return nil, nil, err
		}

		if c.robots != nil && !c.robots.Allowed(ctx, item.URL) {
			c.log.WithFields(logrus.Fields{
				"url":            item.URL,
				"error_category": utils.CategorizeError(utils.ErrRobotsDisallowed),
			}).Info("Skipping robots-disallowed URL")
			res := &models.CrawlResult{
				URL:             item.URL,
				Kind:            item.Kind,
				DiscoveredLinks: []string{},
				Error:           "robots disallowed",
			}
			recErr := c.output.RecordResult(res)
			c.sem.Release(1)
			if recErr != nil {
				return nil, nil, recErr
			}
			continue
		}

		batch = append(batch, item)
	}
	return batch, queue, nil
}

// fetchBatch processes a batch concurrently and returns results indexed
// to match it. Each worker releases the permit its item acquired at
// drain time; results are written only by their own goroutine, so no
// locking is needed until the merge.
func (c *Crawler) fetchBatch(ctx context.Context, batch []models.QueueItem) ([]*models.CrawlResult, error) {
	results := make([]*models.CrawlResult, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, item := range batch {
		wg.Add(1)
		go func(i int, item models.QueueItem) {
			defer wg.Done()
			defer c.sem.Release(1)
			results[i], errs[i] = c.processOne(ctx, item)
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// mergeResults records each result in batch order, updates the saved
// counters and the local path map, and enqueues newly discovered links.
// Discovery honors the depth cap and the asset include-filter; the
// queue keeps FIFO order across waves.
func (c *Crawler) mergeResults(batch []models.QueueItem, results []*models.CrawlResult, queue []models.QueueItem) ([]models.QueueItem, error) {
	for i, res := range results {
		if err := c.output.RecordResult(res); err != nil {
			return nil, err
		}

		if res.LocalPath != "" {
			if err := c.store.SetLocalPath(res.URL, res.LocalPath); err != nil {
				return nil, err
			}
			if res.Kind == models.KindPage {
				c.pageCount++
			} else {
				c.assetCount++
			}
		}

		depth := batch[i].Depth
		if depth+1 > c.cfg.EffectiveMaxDepth() {
			continue
		}
		for _, link := range res.DiscoveredLinks {
			seen, err := c.store.Seen(link)
			if err != nil {
				return nil, err
			}
			if seen {
				continue
			}
			kind := models.KindAsset
			if classify.LooksLikePage(link) {
				kind = models.KindPage
			} else {
				linkURL, err := url.Parse(link)
				if err != nil {
					continue
				}
				if !c.includes[string(classify.Asset("", linkURL.Path))] {
					continue
				}
			}
			queue = append(queue, models.QueueItem{URL: link, Depth: depth + 1, Kind: kind})
		}
	}
	return queue, nil
}

// processOne fetches a single item and turns it into a crawl record.
// Fetch and parse failures become per-URL error records; only output
// tree failures return an error and abort the run.
func (c *Crawler) processOne(ctx context.Context, item models.QueueItem) (*models.CrawlResult, error) {
	taskLog := c.log.WithFields(logrus.Fields{"url": item.URL, "kind": item.Kind})

	resp, err := c.fetcher.FetchWithRetry(ctx, item.URL)
	if err != nil {
		taskLog.WithField("error_category", utils.CategorizeError(err)).Warnf("Fetch failed: %v", err)
		return errorResult(item, err.Error()), nil
	}
	defer resp.Body.Close()

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0]))

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		readErr := fmt.Errorf("%w: %v", utils.ErrResponseBodyRead, err)
		taskLog.WithField("error_category", utils.CategorizeError(readErr)).Warnf("Reading body failed: %v", err)
		return errorResult(item, readErr.Error()), nil
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		taskLog.WithFields(logrus.Fields{
			"limit_bytes":    c.cfg.MaxBodyBytes,
			"error_category": utils.CategorizeError(utils.ErrBodyTooLarge),
		}).Warn("Body exceeds size ceiling, skipping")
		return &models.CrawlResult{
			URL:             item.URL,
			StatusCode:      resp.StatusCode,
			ContentType:     contentType,
			Kind:            item.Kind,
			DiscoveredLinks: []string{},
			Error:           "response too large",
		}, nil
	}

	isHTML := strings.Contains(contentType, "text/html") || classify.LooksLikePage(item.URL)
	effKind := item.Kind
	if isHTML {
		effKind = models.KindPage
	}
	localRel := classify.MapPath(item.URL, string(effKind), contentType)

	var discovered []string
	var sources models.SourceMeta

	if isHTML {
		text := string(body)
		pageData, err := c.extractor.Extract(item.URL, text, c.store.LocalPath)
		if err != nil {
			parseErr := fmt.Errorf("%w: %v", utils.ErrParsing, err)
			taskLog.WithField("error_category", utils.CategorizeError(parseErr)).Warnf("HTML extraction failed: %v", err)
			return errorResult(item, err.Error()), nil
		}
		discovered = pageData.Links
		sources = pageData.Sources

		content := text
		if c.cfg.EffectiveRewriteLinks() {
			content = pageData.HTML
		}
		if err := c.output.WriteBody(localRel, []byte(content)); err != nil {
			return nil, err
		}
	} else {
		if err := c.output.WriteBody(localRel, body); err != nil {
			return nil, err
		}
		if strings.Contains(contentType, "javascript") || strings.HasSuffix(localRel, ".js") {
			js := extract.ScanJS(string(body))
			sources.SourceMaps = js.SourceMaps
			sources.Imports = js.Imports
			sources.NetworkHints = js.NetworkHints

			base, err := url.Parse(item.URL)
			if err == nil {
				for _, hint := range append(append([]string{}, js.Imports...), js.SourceMaps...) {
					abs, err := parse.ResolveAndCanonicalize(base, hint)
					if err != nil {
						continue
					}
					if c.scope.InScope(abs) {
						discovered = append(discovered, abs)
					}
				}
			}
		}
	}

	if c.cfg.StoreRaw {
		if _, err := c.output.WriteRaw(item.URL, body); err != nil {
			return nil, err
		}
	}

	result := &models.CrawlResult{
		URL:             item.URL,
		StatusCode:      resp.StatusCode,
		ContentType:     contentType,
		LocalPath:       localRel,
		Kind:            effKind,
		DiscoveredLinks: extract.SortedUnique(discovered),
		Sources:         sources,
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("HTTP %d", resp.StatusCode)
		statusLog := taskLog.WithField("status_code", resp.StatusCode)
		if resp.StatusCode >= 400 {
			sentinel := utils.ErrClientHTTPError
			if resp.StatusCode >= 500 {
				sentinel = utils.ErrServerHTTPError
			}
			statusErr := fmt.Errorf("%w: status %d for %s", sentinel, resp.StatusCode, item.URL)
			statusLog = statusLog.WithField("error_category", utils.CategorizeError(statusErr))
		}
		statusLog.Warn("Saved response with non-success status")
	}
	return result, nil
}

// errorResult builds the record for a URL that failed before producing
// a usable response.
func errorResult(item models.QueueItem, msg string) *models.CrawlResult {
	return &models.CrawlResult{
		URL:             item.URL,
		Kind:            item.Kind,
		DiscoveredLinks: []string{},
		Error:           msg,
	}
}
