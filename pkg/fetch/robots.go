package fetch

import (
	"context"
	"io"
	"net/url"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate fetches, parses, and caches robots.txt data per host and
// answers allow/deny checks for the crawl user agent. Hosts whose
// robots.txt cannot be fetched or parsed are treated as fully allowed.
type RobotsGate struct {
	fetcher   *Fetcher
	userAgent string
	cache     map[string]*robotstxt.RobotsData // hostname -> parsed data, nil on failure
	cacheMu   sync.Mutex
	log       *logrus.Entry
}

// NewRobotsGate creates a RobotsGate using the crawl fetcher, so
// robots.txt requests share the pacing gate with page fetches.
func NewRobotsGate(fetcher *Fetcher, userAgent string, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher:   fetcher,
		userAgent: userAgent,
		cache:     make(map[string]*robotstxt.RobotsData),
		log:       log,
	}
}

// Allowed reports whether the crawl agent may fetch targetURL according
// to the host's robots.txt. Missing or unparseable robots.txt allows.
func (rg *RobotsGate) Allowed(ctx context.Context, targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return true
	}
	data := rg.robotsData(ctx, u)
	if data == nil {
		return true
	}
	return data.TestAgent(u.RequestURI(), rg.userAgent)
}

// robotsData returns cached robots data for the URL's host, fetching on
// a cache miss. Failures are cached as nil so each host is tried once.
func (rg *RobotsGate) robotsData(ctx context.Context, target *url.URL) *robotstxt.RobotsData {
	host := target.Hostname()

	rg.cacheMu.Lock()
	data, found := rg.cache[host]
	rg.cacheMu.Unlock()
	if found {
		return data
	}

	scheme := target.Scheme
	if scheme != "http" && scheme != "https" {
		scheme = "https"
	}
	robotsURL := (&url.URL{Scheme: scheme, Host: target.Host, Path: "/robots.txt"}).String()
	hostLog := rg.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL})
	hostLog.Info("Fetching robots.txt...")

	data = rg.fetchAndParse(ctx, robotsURL, hostLog)

	rg.cacheMu.Lock()
	rg.cache[host] = data
	rg.cacheMu.Unlock()
	return data
}

func (rg *RobotsGate) fetchAndParse(ctx context.Context, robotsURL string, hostLog *logrus.Entry) *robotstxt.RobotsData {
	resp, err := rg.fetcher.FetchWithRetry(ctx, robotsURL)
	if err != nil {
		hostLog.Warnf("Fetching robots.txt failed: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		hostLog.Debugf("robots.txt returned status %d, treating host as allowed", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		hostLog.Warnf("Reading robots.txt body failed: %v", err)
		return nil
	}

	data, err := robotstxt.FromBytes(body)
	if err != nil {
		hostLog.Warnf("Parsing robots.txt failed: %v", err)
		return nil
	}

	hostLog.Info("Successfully fetched and parsed robots.txt")
	return data
}
