package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the YAML layout of ${ENRICHD_DATA}/config.yaml.
// Pointer fields distinguish "absent" from zero values during merge.
type fileConfig struct {
	Listen       *string `yaml:"listen"`
	DataDir      *string `yaml:"data_dir"`
	Sync         *bool   `yaml:"sync"`
	Workers      *int    `yaml:"workers"`
	QueueSize    *int    `yaml:"queue_size"`
	WebhookToken *string `yaml:"webhook_token"`
	DedupTTL     *string `yaml:"dedup_ttl"`

	Notion struct {
		Version *string `yaml:"version"`
		Base    *string `yaml:"base"`
	} `yaml:"notion"`

	Properties struct {
		Title   *string `yaml:"title"`
		Website *string `yaml:"website"`
		Output  *string `yaml:"output"`
	} `yaml:"properties"`

	OpenAI struct {
		Base  *string `yaml:"base"`
		Model *string `yaml:"model"`
	} `yaml:"openai"`

	SummaryMax *int `yaml:"summary_max"`

	RateLimit struct {
		RPS   *int `yaml:"rps"`
		Burst *int `yaml:"burst"`
	} `yaml:"rate_limit"`

	OTLPEndpoint *string  `yaml:"otlp_endpoint"`
	TraceSample  *float64 `yaml:"trace_sample"`
	LogLevel     *string  `yaml:"log_level"`
}

// applyFile layers the YAML file at path over base. A missing file is not an
// error; a malformed one is.
func applyFile(base Snapshot, path string) (Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return base, nil
		}
		return Snapshot{}, fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return Snapshot{}, fmt.Errorf("parse config file %s: %w", path, err)
	}

	s := base
	setString(&s.Listen, fc.Listen)
	setString(&s.DataDir, fc.DataDir)
	if fc.Sync != nil {
		s.Sync = *fc.Sync
	}
	setInt(&s.Workers, fc.Workers)
	setInt(&s.QueueSize, fc.QueueSize)
	setString(&s.WebhookToken, fc.WebhookToken)
	if fc.DedupTTL != nil {
		d, derr := time.ParseDuration(*fc.DedupTTL)
		if derr != nil {
			return Snapshot{}, fmt.Errorf("parse dedup_ttl in %s: %w", path, derr)
		}
		s.DedupTTL = d
	}
	setString(&s.NotionVersion, fc.Notion.Version)
	setString(&s.NotionBase, fc.Notion.Base)
	setString(&s.TitleProp, fc.Properties.Title)
	setString(&s.WebsiteProp, fc.Properties.Website)
	setString(&s.OutputProp, fc.Properties.Output)
	setString(&s.OpenAIBase, fc.OpenAI.Base)
	setString(&s.OpenAIModel, fc.OpenAI.Model)
	setInt(&s.SummaryMax, fc.SummaryMax)
	setInt(&s.RateRPS, fc.RateLimit.RPS)
	setInt(&s.RateBurst, fc.RateLimit.Burst)
	setString(&s.OTLPEndpoint, fc.OTLPEndpoint)
	if fc.TraceSample != nil {
		s.TraceSample = *fc.TraceSample
	}
	setString(&s.LogLevel, fc.LogLevel)
	return s, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}
