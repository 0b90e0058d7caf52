package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
	"golang.org/x/text/language"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Input and state
	FeedsFile string `long:"feeds-file" env:"FEEDS_FILE" default:"./feeds.yml" description:"YAML file listing the feeds, in archive order"`
	DBPath    string `long:"db-path" env:"DB_PATH" default:"./data/seen.db" description:"SQLite database holding the ids of already packaged articles"`

	// Archive output
	OutputDir   string `long:"output-dir" env:"OUTPUT_DIR" default:"./out" description:"Directory the archives are written to"`
	ArchiveName string `long:"archive-name" env:"ARCHIVE_NAME" default:"rss_feed_2006-01-02.epub" description:"Archive file name as a Go time layout"`
	Title       string `long:"title" env:"TITLE" default:"RSS Feed EPUB" description:"Archive title prefix"`
	Language    string `long:"language" env:"LANGUAGE" default:"en" description:"Archive language (BCP 47 tag)"`

	// Fetching
	Timeout      int    `long:"timeout" env:"FETCH_TIMEOUT" default:"10" description:"Per-request HTTP timeout in seconds"`
	WorkerCount  int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of feeds fetched concurrently"`
	ImageWorkers int    `long:"image-workers" env:"IMAGE_WORKERS" default:"4" description:"Number of concurrent image downloads per feed"`
	MaxBodyBytes int64  `long:"max-body" env:"MAX_BODY_BYTES" default:"10485760" description:"Maximum response body size in bytes"`
	UserAgent    string `long:"user-agent" env:"USER_AGENT" default:"RSS EPUB/1.0" description:"User agent string for HTTP requests"`

	// Service mode
	Interval     int    `long:"interval" env:"INTERVAL" default:"0" description:"Run every N seconds and serve archives over HTTP (0 runs once and exits)"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port (service mode only)"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for triggering runs (optional)"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return parse(nil)
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		FeedsFile:    raw.FeedsFile,
		DBPath:       raw.DBPath,
		OutputDir:    raw.OutputDir,
		ArchiveName:  raw.ArchiveName,
		Title:        raw.Title,
		Timeout:      raw.Timeout,
		WorkerCount:  raw.WorkerCount,
		ImageWorkers: raw.ImageWorkers,
		MaxBodyBytes: raw.MaxBodyBytes,
		UserAgent:    raw.UserAgent,
		Interval:     raw.Interval,
		Port:         raw.Port,
		APIAccessKey: raw.APIAccessKey,
		Timezone:     raw.Timezone,
		Debug:        raw.Debug,
		Version:      GetVersion(),
	}

	lang, err := normalizeLanguage(raw.Language)
	if err != nil {
		return nil, err
	}
	cfg.Language = lang

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// normalizeLanguage returns the canonical form of a BCP 47 tag, e.g. "EN-us" -> "en-US".
func normalizeLanguage(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", fmt.Errorf("invalid language %q: %w", tag, err)
	}
	return t.String(), nil
}

func validate(cfg *Cfg) error {
	positiveFields := map[string]int{
		"timeout":       cfg.Timeout,
		"worker count":  cfg.WorkerCount,
		"image workers": cfg.ImageWorkers,
	}

	for fieldName, fieldValue := range positiveFields {
		if fieldValue <= 0 {
			return fmt.Errorf("%s must be positive", fieldName)
		}
	}

	if cfg.Interval < 0 {
		return fmt.Errorf("interval must be non-negative")
	}
	if cfg.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body must be positive")
	}
	if cfg.ArchiveName == "" {
		return fmt.Errorf("archive name is required")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
