package application

import (
	"errors"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config defines billing behaviour configuration.
type Config struct {
	Ruleset        string         `yaml:"ruleset"`
	ReissueEnabled bool           `yaml:"reissue_enabled"`
	Schedule       ScheduleConfig `yaml:"schedule"`
	LegacyRefresh  string         `yaml:"legacy_refresh_url"`
}

// ScheduleConfig defines the annual bill run schedule.
type ScheduleConfig struct {
	DailyAt string   `yaml:"daily_at"`
	Regions []string `yaml:"regions"`
}

// LoadConfig loads billing config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		Ruleset:       getenvDefault("BILLING_RULESET", "sroc"),
		LegacyRefresh: os.Getenv("BILLING_LEGACY_REFRESH_URL"),
	}

	if path := os.Getenv("BILLING_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.Schedule.DailyAt == "" {
		cfg.Schedule.DailyAt = getenvDefault("BILLING_ANNUAL_DAILY_AT", "")
	}
	if len(cfg.Schedule.Regions) == 0 {
		cfg.Schedule.Regions = splitCSV(os.Getenv("BILLING_ANNUAL_REGIONS"))
	}
	if !cfg.ReissueEnabled {
		cfg.ReissueEnabled = os.Getenv("BILLING_REISSUE_ENABLED") == "true"
	}
	if cfg.Ruleset == "" {
		return cfg, errors.New("billing config: ruleset required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
