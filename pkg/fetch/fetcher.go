package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"sitemirror/pkg/utils"
)

// maxAttempts is the total number of tries per URL: the initial fetch
// plus two retries on transient statuses.
const maxAttempts = 3

// transientStatuses are the HTTP statuses worth retrying.
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// Fetcher performs rate-limited HTTP GETs with bounded retry on
// transient statuses. Transport-level faults (DNS, TLS, connection
// reset, timeout) are returned immediately without retry; after
// exhausting retries the last response is returned as a normal result,
// transient status and all.
type Fetcher struct {
	client      *http.Client
	gate        *Gate
	userAgent   string
	backoffBase time.Duration // sleep is backoffBase * 2^attempt between retries
	log         *logrus.Entry
}

// NewFetcher creates a Fetcher. backoffBase is the unit for the
// exponential retry sleep; pass 0 for the default of one second.
func NewFetcher(client *http.Client, gate *Gate, userAgent string, backoffBase time.Duration, log *logrus.Entry) *Fetcher {
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	return &Fetcher{
		client:      client,
		gate:        gate,
		userAgent:   userAgent,
		backoffBase: backoffBase,
		log:         log,
	}
}

// FetchWithRetry GETs url, pacing every attempt through the shared
// gate. The caller owns resp.Body on any non-error return, including
// the exhausted-retries case.
func (f *Fetcher) FetchWithRetry(ctx context.Context, url string) (*http.Response, error) {
	reqLog := f.log.WithField("url", url)

	var resp *http.Response
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := f.gate.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: '%s': %w", utils.ErrRequestCreation, url, err)
		}
		// Accept-Encoding stays unset so the transport negotiates gzip
		// itself and hands back a decoded body.
		req.Header.Set("User-Agent", f.userAgent)

		resp, err = f.client.Do(req)
		if err != nil {
			// Transport fault: not retryable, the orchestrator records it per URL.
			return nil, err
		}

		if !transientStatuses[resp.StatusCode] {
			return resp, nil
		}

		if attempt < maxAttempts-1 {
			delay := f.backoffBase << uint(attempt)
			reqLog.WithFields(logrus.Fields{
				"status_code": resp.StatusCode,
				"attempt":     attempt + 1,
				"delay":       delay,
			}).Warn("Transient status, retrying...")

			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			}
		}
	}

	// Retries exhausted: hand the last response back unchanged. The
	// caller decides whether the status is an error.
	reqLog.WithField("status_code", resp.StatusCode).Warn("Retries exhausted, returning last response")
	return resp, nil
}
