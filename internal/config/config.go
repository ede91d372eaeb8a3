package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lifeos-tools/attache/internal"
)

const (
	DefaultPath     = "attache.yaml"
	DefaultDatabase = "attache.db"
)

type SourceConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Kind       string `yaml:"kind"`
	Platform   string `yaml:"platform"`
	ProviderID string `yaml:"provider_id"`
	// Account is "platform/name"; the credential itself lives in the
	// local database, never in this file.
	Account string `yaml:"account"`
}

type BriefingConfig struct {
	Cron       string `yaml:"cron"`
	Budget     int    `yaml:"char_budget"`
	WebhookURL string `yaml:"webhook_url,omitempty"`
}

type HoursConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type Config struct {
	Timezone string         `yaml:"timezone"`
	Database string         `yaml:"database"`
	Hours    HoursConfig    `yaml:"business_hours"`
	Briefing BriefingConfig `yaml:"briefing"`
	Sources  []SourceConfig `yaml:"sources"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills zero values so a minimal config file still behaves.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/Toronto"
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	if c.Briefing.Cron == "" {
		c.Briefing.Cron = "0 7 * * *"
	}
	if c.Briefing.Budget <= 0 {
		c.Briefing.Budget = 1200
	}
	if c.Hours.Start == 0 && c.Hours.End == 0 {
		c.Hours = HoursConfig{Start: 9, End: 17}
	}
	for i := range c.Sources {
		if c.Sources[i].Name == "" {
			c.Sources[i].Name = c.Sources[i].ID
		}
	}
}

func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", internal.ErrValidation, c.Timezone)
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: at least one calendar source is required", internal.ErrValidation)
	}
	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("%w: sources[%d] has no id", internal.ErrValidation, i)
		}
		if seen[src.ID] {
			return fmt.Errorf("%w: duplicate source id %q", internal.ErrValidation, src.ID)
		}
		seen[src.ID] = true
		if _, err := internal.ParseKind(src.Kind); err != nil {
			return fmt.Errorf("source %s: %w", src.ID, err)
		}
		switch src.Platform {
		case internal.PlatformGoogle, internal.PlatformCalDAV:
		default:
			return fmt.Errorf("%w: source %s: unknown platform %q", internal.ErrValidation, src.ID, src.Platform)
		}
		if src.ProviderID == "" {
			return fmt.Errorf("%w: source %s has no provider_id", internal.ErrValidation, src.ID)
		}
		if src.Account == "" {
			return fmt.Errorf("%w: source %s has no account", internal.ErrValidation, src.ID)
		}
	}
	if c.Hours.Start < 0 || c.Hours.End > 24 || c.Hours.End <= c.Hours.Start {
		return fmt.Errorf("%w: business_hours %d..%d", internal.ErrValidation, c.Hours.Start, c.Hours.End)
	}
	return nil
}

// SourceList materializes the configured sources, pulling each account's
// stored credential through lookup.
func (c *Config) SourceList(lookup func(accountID string) (*internal.Account, error)) ([]*internal.Source, error) {
	out := make([]*internal.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		acc, err := lookup(sc.Account)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.ID, err)
		}
		kind, err := internal.ParseKind(sc.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.ID, err)
		}
		out = append(out, &internal.Source{
			ID:         sc.ID,
			Name:       sc.Name,
			Kind:       kind,
			Platform:   sc.Platform,
			ProviderID: sc.ProviderID,
			Account:    *acc,
		})
	}
	return out, nil
}
