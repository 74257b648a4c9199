package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"sitemirror/pkg/models"
	"sitemirror/pkg/utils"
)

const (
	metaDirName      = "_meta"
	rawDirName       = "raw"
	crawlLogFilename = "crawl.jsonl"
	errorLogFilename = "errors.jsonl"
	summaryFilename  = "summary.json"
)

// OutputManager owns the per-host mirror tree and all metadata file
// handles for a crawl. The tree layout is
// <output_dir>/mirror/<host>/{pages,assets/<kind>,raw,_meta}.
type OutputManager struct {
	log      *logrus.Entry
	hostRoot string

	crawlFile   *os.File
	crawlFileMu sync.Mutex

	errorFile   *os.File
	errorFileMu sync.Mutex
}

// NewOutputManager creates the host output root and opens the crawl and
// error logs under _meta/. Any filesystem failure here aborts the run.
func NewOutputManager(outputDir, siteHost string, log *logrus.Entry) (*OutputManager, error) {
	hostRoot := filepath.Join(outputDir, "mirror", utils.SanitizeFilename(siteHost))
	metaDir := filepath.Join(hostRoot, metaDirName)
	if err := os.MkdirAll(metaDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating output tree %s: %w", utils.ErrFilesystem, metaDir, err)
	}

	om := &OutputManager{log: log, hostRoot: hostRoot}

	var err error
	om.crawlFile, err = openOutputFile(log, filepath.Join(metaDir, crawlLogFilename), "crawl log")
	if err != nil {
		return nil, err
	}
	om.errorFile, err = openOutputFile(log, filepath.Join(metaDir, errorLogFilename), "error log")
	if err != nil {
		om.crawlFile.Close()
		return nil, err
	}

	log.Infof("Output tree initialized at: %s", hostRoot)
	return om, nil
}

// openOutputFile opens a metadata file for writing, truncating any
// previous run's contents. The crawl and error logs are append-only
// within a run; each run starts its logs fresh, matching the
// fresh-per-run crawl state.
func openOutputFile(log *logrus.Entry, path, label string) (*os.File, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s file '%s': %w", utils.ErrFilesystem, label, path, err)
	}
	log.Debugf("Opened %s file: %s", label, path)
	return file, nil
}

// HostRoot returns the absolute host output root.
func (om *OutputManager) HostRoot() string {
	return om.hostRoot
}

// WriteBody writes a fetched body at relPath under the host root,
// creating parent directories as needed. relPath uses forward slashes.
func (om *OutputManager) WriteBody(relPath string, body []byte) error {
	absPath := filepath.Join(om.hostRoot, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("%w: creating directory for '%s': %w", utils.ErrFilesystem, relPath, err)
	}
	if err := os.WriteFile(absPath, body, 0644); err != nil {
		return fmt.Errorf("%w: writing '%s': %w", utils.ErrFilesystem, relPath, err)
	}
	return nil
}

// WriteRaw stores an exact body copy under raw/, keyed by the SHA-1 of
// the source URL. Returns the relative path.
func (om *OutputManager) WriteRaw(sourceURL string, body []byte) (string, error) {
	relPath := rawDirName + "/" + utils.SHA1Hex(sourceURL) + ".bin"
	if err := om.WriteBody(relPath, body); err != nil {
		return "", err
	}
	return relPath, nil
}

// RecordResult appends one crawl record to crawl.jsonl; records with an
// error also land in errors.jsonl.
func (om *OutputManager) RecordResult(res *models.CrawlResult) error {
	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("%w: marshaling crawl record for '%s': %w", utils.ErrParsing, res.URL, err)
	}
	line = append(line, '\n')

	om.crawlFileMu.Lock()
	_, err = om.crawlFile.Write(line)
	om.crawlFileMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: writing crawl log: %w", utils.ErrFilesystem, err)
	}

	if res.Error == "" {
		return nil
	}
	om.errorFileMu.Lock()
	_, err = om.errorFile.Write(line)
	om.errorFileMu.Unlock()
	if err != nil {
		return fmt.Errorf("%w: writing error log: %w", utils.ErrFilesystem, err)
	}
	return nil
}

// WriteSummary writes the final run summary to _meta/summary.json.
func (om *OutputManager) WriteSummary(summary *models.Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling summary: %w", utils.ErrParsing, err)
	}
	path := filepath.Join(om.hostRoot, metaDirName, summaryFilename)
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("%w: writing summary file '%s': %w", utils.ErrFilesystem, path, err)
	}
	om.log.Infof("Wrote run summary to %s", path)
	return nil
}

// Close syncs and closes the metadata log files.
func (om *OutputManager) Close() error {
	var firstErr error

	om.crawlFileMu.Lock()
	if om.crawlFile != nil {
		if err := om.crawlFile.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := om.crawlFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		om.crawlFile = nil
	}
	om.crawlFileMu.Unlock()

	om.errorFileMu.Lock()
	if om.errorFile != nil {
		if err := om.errorFile.Sync(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := om.errorFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		om.errorFile = nil
	}
	om.errorFileMu.Unlock()

	return firstErr
}
