package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"sitemirror/pkg/config"
	"sitemirror/pkg/crawler"
	"sitemirror/pkg/fetch"
	"sitemirror/pkg/parse"
	"sitemirror/pkg/storage"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "mirror":
		runMirror(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "version":
		fmt.Printf("sitemirror %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `sitemirror - Offline website mirroring crawler

Usage:
  sitemirror <command> [options]

Commands:
  mirror      Crawl a site and save a browsable local copy
  validate    Validate configuration file
  version     Show version info

Run 'sitemirror <command> -h' for command-specific help.`)
}

// setupLogger builds the root logger at the requested level.
func setupLogger(levelName string) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	log.SetLevel(logrus.InfoLevel)

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		log.Warnf("Invalid log level '%s', using default 'info'. Error: %v", levelName, err)
	} else {
		log.SetLevel(level)
	}
	return log
}

// mirrorOptions holds the flag values shared by the mirror and
// validate subcommands.
type mirrorOptions struct {
	configFile    string
	seedURL       string
	outputDir     string
	stateDir      string
	maxPages      int
	scope         string
	assets        string
	maxDepth      int
	concurrency   int
	rateRPS       float64
	noRewrite     bool
	storeRaw      bool
	respectRobots bool
	logLevel      string
}

func registerMirrorFlags(fs *flag.FlagSet, opts *mirrorOptions) {
	fs.StringVar(&opts.configFile, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&opts.seedURL, "url", "", "Seed URL to mirror")
	fs.StringVar(&opts.outputDir, "out", "", "Output directory")
	fs.StringVar(&opts.stateDir, "state", "", "State directory for the crawl DB (in-memory if empty)")
	fs.IntVar(&opts.maxPages, "max-pages", 0, "Maximum number of pages to save")
	fs.StringVar(&opts.scope, "scope", "", "Crawl scope: same-origin, same-host, or all")
	fs.StringVar(&opts.assets, "assets", "", "Comma-separated asset kinds to save (js,css,font,img,misc)")
	fs.IntVar(&opts.maxDepth, "max-depth", -1, "Maximum link depth from the seed (0 fetches only the seed)")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "Concurrent fetches per wave")
	fs.Float64Var(&opts.rateRPS, "rate", 0, "Global fetch rate in requests per second")
	fs.BoolVar(&opts.noRewrite, "no-rewrite", false, "Keep original links instead of rewriting to local paths")
	fs.BoolVar(&opts.storeRaw, "store-raw", false, "Also store exact raw bodies under raw/")
	fs.BoolVar(&opts.respectRobots, "respect-robots", false, "Honor robots.txt disallow rules")
	fs.StringVar(&opts.logLevel, "loglevel", "info", "Log level (debug, info, warn, error, fatal)")
}

// buildConfig loads the YAML config (if any) and layers flag overrides
// on top.
func buildConfig(opts *mirrorOptions) (*config.AppConfig, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}

	if opts.seedURL != "" {
		cfg.SeedURL = opts.seedURL
	}
	if opts.outputDir != "" {
		cfg.OutputDir = opts.outputDir
	}
	if opts.stateDir != "" {
		cfg.StateDir = opts.stateDir
	}
	if opts.maxPages > 0 {
		cfg.MaxPages = opts.maxPages
	}
	if opts.scope != "" {
		cfg.Scope = opts.scope
	}
	if opts.assets != "" {
		kinds := strings.Split(opts.assets, ",")
		for i := range kinds {
			kinds[i] = strings.TrimSpace(kinds[i])
		}
		cfg.IncludeAssets = kinds
	}
	if opts.maxDepth >= 0 {
		cfg.MaxDepth = &opts.maxDepth
	}
	if opts.concurrency > 0 {
		cfg.Concurrency = opts.concurrency
	}
	if opts.rateRPS > 0 {
		cfg.RateRPS = opts.rateRPS
	}
	if opts.noRewrite {
		rewrite := false
		cfg.RewriteLinks = &rewrite
	}
	if opts.storeRaw {
		cfg.StoreRaw = true
	}
	if opts.respectRobots {
		cfg.RespectRobots = true
	}

	return cfg, nil
}

// runValidate checks the merged configuration and reports problems
// without crawling.
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var opts mirrorOptions
	registerMirrorFlags(fs, &opts)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemirror validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := buildConfig(&opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Config OK")
}

func runMirror(args []string) {
	fs := flag.NewFlagSet("mirror", flag.ExitOnError)
	var opts mirrorOptions
	registerMirrorFlags(fs, &opts)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: sitemirror mirror [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := buildConfig(&opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := setupLogger(opts.logLevel)

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	logCfg(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Initiating graceful shutdown...", sig)
		cancel()

		select {
		case sig = <-sigChan:
			log.Warnf("Received second signal: %v. Forcing exit.", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Warn("Graceful shutdown period exceeded after signal. Forcing exit.")
			os.Exit(1)
		}
	}()

	entry := logrus.NewEntry(log)
	host := seedHost(cfg.SeedURL)

	gate := fetch.NewGate(cfg.RateRPS)
	httpClient := fetch.NewClient(cfg.HTTPClientSettings, entry)
	fetcher := fetch.NewFetcher(httpClient, gate, cfg.UserAgent, cfg.RetryBackoffBase, entry)

	var robots *fetch.RobotsGate
	if cfg.RespectRobots {
		robots = fetch.NewRobotsGate(fetcher, cfg.UserAgent, entry)
	}

	var store storage.CrawlStore
	if cfg.StateDir != "" {
		store, err = storage.NewBadgerStore(cfg.StateDir, host, entry)
		if err != nil {
			log.Fatalf("Failed to initialize crawl state DB: %v", err)
		}
	} else {
		store = storage.NewMemoryStore()
	}
	defer store.Close()

	output, err := crawler.NewOutputManager(cfg.OutputDir, host, entry)
	if err != nil {
		log.Fatalf("Failed to initialize output tree: %v", err)
	}
	defer output.Close()

	c, err := crawler.New(cfg, store, output, fetcher, robots, entry)
	if err != nil {
		log.Fatalf("Failed to initialize crawler: %v", err)
	}

	summary, err := c.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn("Crawl cancelled gracefully.")
			os.Exit(0)
		}
		log.Errorf("Crawl finished with error: %v", err)
		os.Exit(1)
	}

	log.Infof("Mirror complete: %d pages, %d assets saved under %s",
		summary.SavedPages, summary.SavedAssets, summary.OutputRoot)
}

// seedHost extracts the host component that names the per-site output
// and state directories.
func seedHost(seedURL string) string {
	u, err := url.Parse(parse.Canonicalize(seedURL))
	if err != nil || u.Host == "" {
		return "site"
	}
	return u.Host
}

// logCfg logs the effective configuration.
func logCfg(cfg *config.AppConfig, log *logrus.Logger) {
	log.Infof("Config: Seed:%s, Scope:%s, MaxPages:%d, MaxDepth:%d",
		cfg.SeedURL, cfg.Scope, cfg.MaxPages, cfg.EffectiveMaxDepth())
	log.Infof("Config: Concurrency:%d, Rate:%.2f rps, Rewrite:%t, StoreRaw:%t, Robots:%t",
		cfg.Concurrency, cfg.RateRPS, cfg.EffectiveRewriteLinks(), cfg.StoreRaw, cfg.RespectRobots)
	log.Infof("Config: Output:%s, State:%s, Assets:%v",
		cfg.OutputDir, cfg.StateDir, cfg.IncludeAssets)
	log.Infof("Config HTTP: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d",
		cfg.HTTPClientSettings.Timeout, cfg.HTTPClientSettings.MaxIdleConns, cfg.HTTPClientSettings.MaxIdleConnsPerHost)
}
