package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"quantamental/internal/features"
	"quantamental/internal/model"
)

// Date is a calendar date parsed from "YYYY-MM-DD".
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(model.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{t}, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseDate(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) String() string { return d.Format(model.DateLayout) }

// Config holds all application configuration. It is loaded once and passed
// into constructors; nothing reads it through package state.
type Config struct {
	Data struct {
		Tickers     []string `yaml:"tickers" validate:"required,min=1,unique,dive,required"`
		StartDate   Date     `yaml:"start_date"`
		EndDate     Date     `yaml:"end_date"`
		RawPath     string   `yaml:"raw_path" default:"data/raw" validate:"required"`
		DatasetFile string   `yaml:"dataset_file" default:"prices.parquet" validate:"required"`
	} `yaml:"data"`
	Features struct {
		Horizons  []int `yaml:"horizons" default:"[1,5,21]" validate:"required,min=1,unique,dive,gt=0"`
		Windows   []int `yaml:"sma_windows" default:"[5,20,50,200]" validate:"required,min=1,unique,dive,gt=0"`
		RSIPeriod int   `yaml:"rsi_period" default:"14" validate:"gt=0"`
		Record    bool  `yaml:"record"`
		Workers   int   `yaml:"workers" default:"4" validate:"gt=0"`
	} `yaml:"features"`
	Source struct {
		Provider       string        `yaml:"provider" default:"yahoo" validate:"oneof=yahoo rest mock"`
		BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
		APIKey         string        `yaml:"api_key"`
		Proxy          string        `yaml:"proxy"`
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		RequestsPerSec int           `yaml:"requests_per_sec" default:"5" validate:"gt=0"`
		MaxRetryTime   time.Duration `yaml:"max_retry_time" default:"30s"`
		Workers        int           `yaml:"workers" default:"4" validate:"gt=0"`
	} `yaml:"source"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron" default:"0 30 22 * * 1-5"`
	} `yaml:"schedule"`
	Telegram struct {
		BotToken string `yaml:"bot_token"`
		ChatID   string `yaml:"chat_id" validate:"required_with=BotToken"`
	} `yaml:"telegram"`
	Log struct {
		Level  string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
		Format string `yaml:"format" default:"console" validate:"oneof=json console"`
	} `yaml:"log"`
	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Load reads config from a YAML file, then applies defaults, environment
// variable overrides and validation. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("QUANT_TICKERS"); v != "" {
		c.Data.Tickers = splitList(v)
	}
	if v := os.Getenv("QUANT_START_DATE"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return fmt.Errorf("QUANT_START_DATE: %w", err)
		}
		c.Data.StartDate = d
	}
	if v := os.Getenv("QUANT_END_DATE"); v != "" {
		d, err := ParseDate(v)
		if err != nil {
			return fmt.Errorf("QUANT_END_DATE: %w", err)
		}
		c.Data.EndDate = d
	}
	if v := os.Getenv("QUANT_RAW_PATH"); v != "" {
		c.Data.RawPath = v
	}
	if v := os.Getenv("SOURCE_BASE_URL"); v != "" {
		c.Source.BaseURL = v
	}
	if v := os.Getenv("SOURCE_API_KEY"); v != "" {
		c.Source.APIKey = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		c.Source.Proxy = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Database.SQLitePath = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		c.Telegram.ChatID = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("CRON_REFRESH"); v != "" {
		c.Schedule.RefreshCron = v
	}
	return nil
}

var validate = validator.New()

// Validate checks that all required fields are set and consistent.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s: failed %q check", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if c.Source.Provider == "rest" && c.Source.BaseURL == "" {
		return errors.New("source.base_url is required for the rest provider")
	}
	if c.Data.StartDate.IsZero() {
		return errors.New("data.start_date is required")
	}
	if c.Data.EndDate.IsZero() {
		return errors.New("data.end_date is required")
	}
	if !c.Data.EndDate.After(c.Data.StartDate.Time) {
		return fmt.Errorf("data.end_date %s must be after data.start_date %s", c.Data.EndDate, c.Data.StartDate)
	}
	return nil
}

// FeatureParams returns the engine parameters described by the config.
func (c *Config) FeatureParams() features.Params {
	return features.Params{
		Horizons:  append([]int(nil), c.Features.Horizons...),
		Windows:   append([]int(nil), c.Features.Windows...),
		RSIPeriod: c.Features.RSIPeriod,
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
