// Package config loads and validates the daemon configuration from the
// environment, optionally layered over a YAML file in the data directory.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Snapshot is an immutable view of the effective configuration.
type Snapshot struct {
	Listen    string
	DataDir   string
	Sync      bool
	Workers   int
	QueueSize int

	WebhookToken string
	DedupTTL     time.Duration

	NotionAPIKey  string
	NotionVersion string
	NotionBase    string

	TitleProp   string
	WebsiteProp string
	OutputProp  string

	OpenAIAPIKey string
	OpenAIBase   string
	OpenAIModel  string

	SummaryMax int

	RateRPS   int
	RateBurst int

	OTLPEndpoint string
	TraceSample  float64

	LogLevel string
}

// Defaults returns the built-in configuration before file and env layering.
func Defaults() Snapshot {
	return Snapshot{
		Listen:        ":8080",
		DataDir:       "/tmp/enrichd",
		Sync:          false,
		Workers:       4,
		QueueSize:     64,
		DedupTTL:      24 * time.Hour,
		NotionVersion: "2022-06-28",
		NotionBase:    "https://api.notion.com",
		TitleProp:     "企業名",
		WebsiteProp:   "Website",
		OutputProp:    "Description by Agent",
		OpenAIBase:    "https://api.openai.com",
		OpenAIModel:   "gpt-5",
		SummaryMax:    1800,
		RateRPS:       10,
		RateBurst:     20,
		TraceSample:   1.0,
		LogLevel:      "info",
	}
}

// FromEnv layers environment variables over the given base snapshot.
func FromEnv(base Snapshot) Snapshot {
	s := base
	s.Listen = ParseString("ENRICHD_LISTEN", base.Listen)
	s.DataDir = ParseString("ENRICHD_DATA", base.DataDir)
	s.Sync = ParseBool("ENRICHD_SYNC", base.Sync)
	s.Workers = ParseInt("ENRICHD_WORKERS", base.Workers)
	s.QueueSize = ParseInt("ENRICHD_QUEUE_SIZE", base.QueueSize)
	s.WebhookToken = ParseString("ENRICHD_WEBHOOK_TOKEN", base.WebhookToken)
	s.DedupTTL = ParseDuration("ENRICHD_DEDUP_TTL", base.DedupTTL)
	s.NotionAPIKey = ParseString("NOTION_API_KEY", base.NotionAPIKey)
	s.NotionVersion = ParseString("NOTION_VERSION", base.NotionVersion)
	s.NotionBase = ParseString("ENRICHD_NOTION_BASE", base.NotionBase)
	s.TitleProp = ParseString("ENRICHD_TITLE_PROP", base.TitleProp)
	s.WebsiteProp = ParseString("ENRICHD_WEBSITE_PROP", base.WebsiteProp)
	s.OutputProp = ParseString("ENRICHD_OUTPUT_PROP", base.OutputProp)
	s.OpenAIAPIKey = ParseString("OPENAI_API_KEY", base.OpenAIAPIKey)
	s.OpenAIBase = ParseString("ENRICHD_OPENAI_BASE", base.OpenAIBase)
	s.OpenAIModel = ParseString("ENRICHD_OPENAI_MODEL", base.OpenAIModel)
	s.SummaryMax = ParseInt("ENRICHD_SUMMARY_MAX", base.SummaryMax)
	s.RateRPS = ParseInt("ENRICHD_RATE_RPS", base.RateRPS)
	s.RateBurst = ParseInt("ENRICHD_RATE_BURST", base.RateBurst)
	s.OTLPEndpoint = ParseString("ENRICHD_OTLP_ENDPOINT", base.OTLPEndpoint)
	s.TraceSample = ParseFloat("ENRICHD_TRACE_SAMPLE", base.TraceSample)
	s.LogLevel = ParseString("LOG_LEVEL", base.LogLevel)
	return s
}

// Load builds the effective snapshot: defaults, then the optional YAML file
// at path (empty path skips the file layer), then the environment.
func Load(path string) (Snapshot, error) {
	base := Defaults()
	if path != "" {
		layered, err := applyFile(base, path)
		if err != nil {
			return Snapshot{}, err
		}
		base = layered
	}
	s := FromEnv(base)
	if err := s.Validate(); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// Validate rejects snapshots that cannot produce a working daemon.
func (s Snapshot) Validate() error {
	var errs []error
	if s.Listen == "" {
		errs = append(errs, errors.New("listen address must not be empty"))
	}
	if s.DataDir == "" {
		errs = append(errs, errors.New("data dir must not be empty"))
	}
	if s.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be >= 1, got %d", s.Workers))
	}
	if s.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("queue size must be >= 1, got %d", s.QueueSize))
	}
	if s.SummaryMax < 1 {
		errs = append(errs, fmt.Errorf("summary max must be >= 1, got %d", s.SummaryMax))
	}
	if s.DedupTTL <= 0 {
		errs = append(errs, fmt.Errorf("dedup ttl must be positive, got %s", s.DedupTTL))
	}
	if s.NotionAPIKey == "" {
		errs = append(errs, errors.New("NOTION_API_KEY is not set"))
	}
	if s.OpenAIAPIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if s.OpenAIModel == "" {
		errs = append(errs, errors.New("openai model must not be empty"))
	}
	if s.OutputProp == "" {
		errs = append(errs, errors.New("output property must not be empty"))
	}
	if s.TitleProp == "" && s.WebsiteProp == "" {
		errs = append(errs, errors.New("at least one of title/website property must be set"))
	}
	if s.TraceSample < 0 || s.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("trace sample must be in [0,1], got %g", s.TraceSample))
	}
	return errors.Join(errs...)
}
