package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./regwatch.db" description:"Path to the SQLite database file"`

	// Pipeline configuration
	CycleInterval     int  `long:"cycle-interval" env:"CYCLE_INTERVAL" default:"600" description:"Monitoring cycle interval in seconds"`
	BatchSize         int  `long:"batch-size" env:"BATCH_SIZE" default:"5" description:"Maximum number of entries per classification batch"`
	ClassifierRetries int  `long:"classifier-retries" env:"CLASSIFIER_RETRIES" default:"3" description:"Classification attempts per batch before deferring to the next cycle"`
	ClassifierBackoff int  `long:"classifier-backoff" env:"CLASSIFIER_BACKOFF" default:"2" description:"Base classification retry backoff in seconds"`
	DeliveryRetries   int  `long:"delivery-retries" env:"DELIVERY_RETRIES" default:"3" description:"Delivery attempts per recipient before recording a permanent failure"`
	DeliveryBackoff   int  `long:"delivery-backoff" env:"DELIVERY_BACKOFF" default:"1" description:"Base delivery retry backoff in seconds"`
	RetentionDays     int  `long:"retention-days" env:"RETENTION_DAYS" default:"30" description:"Age in days after which seen entries are evicted"`
	FetchTimeout      int  `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"Per-source fetch timeout in seconds"`
	FetchDelay        int  `long:"fetch-delay" env:"FETCH_DELAY" default:"1" description:"Politeness delay between source fetches in seconds"`
	FetchWorkers      int  `long:"fetch-workers" env:"FETCH_WORKERS" default:"5" description:"Number of concurrent source fetch workers"`
	TruncateLimit     int  `long:"truncate-limit" env:"TRUNCATE_LIMIT" default:"500" description:"Entry body length limit for classification requests"`
	ExtractContent    bool `long:"extract-content" env:"EXTRACT_CONTENT" description:"Extract readable page content for entries with empty bodies"`

	// Telegram configuration
	TelegramToken   string `long:"telegram-token" env:"TELEGRAM_BOT_TOKEN" description:"Telegram bot token (required)" required:"true"`
	RequireApproval bool   `long:"require-approval" env:"REQUIRE_APPROVAL" description:"Keep self-registered recipients unauthorized until approved via the ops API"`

	// Classifier service configuration
	OpenAIKey      string `long:"openai-key" env:"OPENAI_API_KEY" description:"API key for the classification service (required)" required:"true"`
	OpenAIModel    string `long:"openai-model" env:"OPENAI_MODEL" default:"gpt-4o-mini" description:"Model used for classification"`
	OpenAIEndpoint string `long:"openai-endpoint" env:"OPENAI_ENDPOINT" default:"https://api.openai.com/v1/chat/completions" description:"Chat completions endpoint"`

	// Source catalog configuration
	SpreadsheetID string `long:"spreadsheet-id" env:"SPREADSHEET_ID" description:"Google spreadsheet holding the source list and keyword rules"`
	SourcesRange  string `long:"sources-range" env:"SOURCES_RANGE" default:"monitor_list!B:B" description:"Spreadsheet range with source addresses"`
	KeywordsRange string `long:"keywords-range" env:"KEYWORDS_RANGE" default:"keywords_list!A:B" description:"Spreadsheet range with keyword rules"`
	GoogleAPIKey  string `long:"google-api-key" env:"GOOGLE_API_KEY" description:"Google API key for spreadsheet access"`
	SourcesFile   string `long:"sources-file" env:"SOURCES_FILE" default:"./sources.yml" description:"YAML source catalog used when no spreadsheet is configured"`

	// Ops HTTP surface
	Port         string `long:"port" env:"PORT" default:"8080" description:"Ops HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for admin endpoints (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RegWatch/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		CycleInterval:     raw.CycleInterval,
		BatchSize:         raw.BatchSize,
		ClassifierRetries: raw.ClassifierRetries,
		ClassifierBackoff: raw.ClassifierBackoff,
		DeliveryRetries:   raw.DeliveryRetries,
		DeliveryBackoff:   raw.DeliveryBackoff,
		RetentionDays:     raw.RetentionDays,
		FetchTimeout:      raw.FetchTimeout,
		FetchDelay:        raw.FetchDelay,
		FetchWorkers:      raw.FetchWorkers,
		TruncateLimit:     raw.TruncateLimit,
		ExtractContent:    raw.ExtractContent,
		TelegramToken:     raw.TelegramToken,
		RequireApproval:   raw.RequireApproval,
		OpenAIKey:         raw.OpenAIKey,
		OpenAIModel:       raw.OpenAIModel,
		OpenAIEndpoint:    raw.OpenAIEndpoint,
		SpreadsheetID:     raw.SpreadsheetID,
		SourcesRange:      raw.SourcesRange,
		KeywordsRange:     raw.KeywordsRange,
		GoogleAPIKey:      raw.GoogleAPIKey,
		SourcesFile:       raw.SourcesFile,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
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
