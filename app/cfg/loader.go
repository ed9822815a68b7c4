package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/oli-a11y/albar-autos-feed/app/feed"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Source configuration
	Source     string `long:"source" env:"SOURCE" description:"Stock source: CSV/JSON file path or URL, or dealer listing page URL"`
	SourceType string `long:"source-type" env:"SOURCE_TYPE" default:"auto" choice:"auto" choice:"csv" choice:"json" choice:"html" description:"Stock source type"`
	Timeout    int    `long:"timeout" env:"TIMEOUT" default:"30" description:"HTTP timeout in seconds for source requests"`
	UserAgent  string `long:"user-agent" env:"USER_AGENT" default:"AlbarAutosFeed/1.0" description:"User agent string for HTTP requests"`

	// Feed configuration
	Output          string `short:"o" long:"output" env:"OUTPUT" default:"feed.xml" description:"Output path for the generated feed"`
	DealerName      string `long:"dealer-name" env:"DEALER_NAME" default:"Albar Autos" description:"Dealer name used in the channel and descriptions"`
	DealerURL       string `long:"dealer-url" env:"DEALER_URL" default:"https://albarautos.co.uk" description:"Dealer website URL"`
	FeedDescription string `long:"feed-description" env:"FEED_DESCRIPTION" description:"Channel description (default: Vehicle Feed for <dealer>)"`
	ProductCategory string `long:"product-category" env:"PRODUCT_CATEGORY" default:"916" description:"Google product category"`
	StoreCode       string `long:"store-code" env:"STORE_CODE" default:"Albar" description:"Store code for vehicle fulfillment"`
	Currency        string `long:"currency" env:"CURRENCY" default:"GBP" description:"Price currency code"`
	ImageMode       string `long:"image-mode" env:"IMAGE_MODE" default:"repeated" choice:"repeated" choice:"joined" description:"How additional images are emitted"`
	NoImageEscape   bool   `long:"no-image-escape" env:"NO_IMAGE_ESCAPE" description:"Do not percent-encode image URL paths"`
	MaxImages       int    `long:"max-additional-images" env:"MAX_ADDITIONAL_IMAGES" default:"10" description:"Maximum number of additional images per vehicle"`
	ImageBaseURL    string `long:"image-base-url" env:"IMAGE_BASE_URL" description:"Base URL for relative image paths"`
	FieldMapFile    string `long:"field-map" env:"FIELD_MAP" description:"YAML file overriding source field aliases"`
	VariedPhrasing  bool   `long:"varied-phrasing" env:"VARIED_PHRASING" description:"Vary description phrasing from the phrase bank"`
	PhraseSeed      uint64 `long:"phrase-seed" env:"PHRASE_SEED" description:"Seed for varied phrasing (0 picks one per process)"`

	// Storage configuration
	DBPath        string `long:"db-path" env:"DB_PATH" default:"runs.db" description:"SQLite database for run history (empty disables history)"`
	RedisAddr     string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for sharing the feed between replicas (optional)"`
	RedisPassword string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
	RedisDB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	RedisKey      string `long:"redis-key" env:"REDIS_KEY" default:"vehicle-feed:current" description:"Redis key holding the feed"`

	// Server configuration
	Serve             bool   `long:"serve" env:"SERVE" description:"Run the HTTP server and regenerate the feed on a schedule"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"3600" description:"Scheduler interval in seconds"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"1" description:"Number of background workers"`

	// Report configuration
	Report      bool `long:"report" env:"REPORT" description:"Print recent runs and exit"`
	ReportLimit int  `long:"report-limit" env:"REPORT_LIMIT" default:"20" description:"Number of runs shown by --report"`

	// Application metadata
	LogLevel  string `long:"log-level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Log level"`
	LogFormat string `long:"log-format" env:"LOG_FORMAT" default:"text" choice:"text" choice:"json" description:"Log output format"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/London)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load reads .env, then flags and environment variables. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	return parse(os.Args[1:])
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Source:            raw.Source,
		SourceType:        raw.SourceType,
		Timeout:           time.Duration(raw.Timeout) * time.Second,
		UserAgent:         raw.UserAgent,
		Output:            raw.Output,
		DealerName:        raw.DealerName,
		DealerURL:         raw.DealerURL,
		FeedDescription:   raw.FeedDescription,
		ProductCategory:   raw.ProductCategory,
		StoreCode:         raw.StoreCode,
		Currency:          raw.Currency,
		ImageMode:         raw.ImageMode,
		EscapeImages:      !raw.NoImageEscape,
		ImageBaseURL:      raw.ImageBaseURL,
		MaxImages:         raw.MaxImages,
		FieldMapFile:      raw.FieldMapFile,
		VariedPhrasing:    raw.VariedPhrasing,
		PhraseSeed:        raw.PhraseSeed,
		DBPath:            raw.DBPath,
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		RedisKey:          raw.RedisKey,
		Serve:             raw.Serve,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		SchedulerInterval: raw.SchedulerInterval,
		WorkerCount:       raw.WorkerCount,
		Report:            raw.Report,
		ReportLimit:       raw.ReportLimit,
		LogLevel:          raw.LogLevel,
		LogFormat:         raw.LogFormat,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	if c.Source == "" && !c.Report {
		return fmt.Errorf("source is required (--source or SOURCE)")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.Serve && c.SchedulerInterval < 0 {
		return fmt.Errorf("scheduler interval must not be negative")
	}
	if c.Report && c.DBPath == "" {
		return fmt.Errorf("--report needs run history (--db-path)")
	}
	return nil
}

// Settings derives the explicit feed settings handed to the assembler.
func (c *Cfg) Settings() (feed.Settings, error) {
	fieldMap, err := feed.LoadFieldMap(c.FieldMapFile)
	if err != nil {
		return feed.Settings{}, err
	}

	imageMode, err := feed.ParseImageMode(c.ImageMode)
	if err != nil {
		return feed.Settings{}, err
	}

	seed := c.PhraseSeed
	if c.VariedPhrasing && seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return feed.Settings{
		DealerName:         c.DealerName,
		DealerURL:          c.DealerURL,
		FeedDescription:    c.FeedDescription,
		ProductCategory:    c.ProductCategory,
		StoreCode:          c.StoreCode,
		Currency:           c.Currency,
		ImageMode:          imageMode,
		EscapeImages:       c.EscapeImages,
		ImageBaseURL:       c.ImageBaseURL,
		MaxAdditionalImage: c.MaxImages,
		FieldMap:           fieldMap,
		Phrases:            feed.DefaultPhraseBank(),
		VariedPhrasing:     c.VariedPhrasing,
		PhraseSeed:         seed,
	}, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
