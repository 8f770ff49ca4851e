// Package config loads process configuration from the environment and the
// instrument universe from an optional YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"marketpulse/internal/model"
	"marketpulse/internal/notification"
	"marketpulse/internal/quote"
	"marketpulse/internal/store"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Servers
	HTTPAddr    string
	MetricsAddr string // empty serves /metrics on HTTPAddr
	LogLevel    string

	// Refresh loop
	BatchSize    int
	BatchPause   time.Duration
	PassPause    time.Duration
	PushInterval time.Duration
	HistoryLimit int

	// Instrument universe (YAML); empty uses the built-in groups
	InstrumentsFile string

	// Providers
	YahooBaseURL         string
	CryptoCompareBaseURL string
	HTTPTimeout          time.Duration

	// Snapshot publish sink; empty RedisAddr disables it
	RedisAddr     string
	RedisPassword string
	RedisChannel  string

	// Notifications
	TelegramBotToken   string
	SMTPHost           string
	SMTPPort           string
	SMTPUser           string
	SMTPPassword       string
	SMTPFrom           string
	AlertDefaultTarget string
}

// Load reads configuration from environment variables with sensible defaults.
// Malformed numeric or duration values are errors rather than silently
// replaced by defaults.
func Load() (*Config, error) {
	p := &parser{}
	cfg := &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8000"),
		MetricsAddr: getEnv("METRICS_ADDR", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		BatchSize:    p.intEnv("BATCH_SIZE", 10),
		BatchPause:   p.durationEnv("BATCH_PAUSE", time.Second),
		PassPause:    p.durationEnv("PASS_PAUSE", 30*time.Second),
		PushInterval: p.durationEnv("PUSH_INTERVAL", 5*time.Second),
		HistoryLimit: p.intEnv("HISTORY_LIMIT", 100),

		InstrumentsFile: getEnv("INSTRUMENTS_FILE", ""),

		YahooBaseURL:         getEnv("YAHOO_BASE_URL", quote.DefaultYahooBaseURL),
		CryptoCompareBaseURL: getEnv("CRYPTOCOMPARE_BASE_URL", quote.DefaultCryptoCompareBaseURL),
		HTTPTimeout:          p.durationEnv("HTTP_TIMEOUT", 10*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisChannel:  getEnv("REDIS_CHANNEL", "pub:prices"),

		TelegramBotToken:   getEnv("TELEGRAM_BOT_TOKEN", ""),
		SMTPHost:           getEnv("SMTP_HOST", ""),
		SMTPPort:           getEnv("SMTP_PORT", "587"),
		SMTPUser:           getEnv("SMTP_USER", ""),
		SMTPPassword:       getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:           getEnv("SMTP_FROM", ""),
		AlertDefaultTarget: getEnv("ALERT_DEFAULT_TARGET", ""),
	}
	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.BatchSize <= 0:
		return fmt.Errorf("config: BATCH_SIZE must be positive, got %d", c.BatchSize)
	case c.HistoryLimit <= 0 || c.HistoryLimit > store.DefaultHistoryLimit:
		return fmt.Errorf("config: HISTORY_LIMIT must be in 1..%d, got %d", store.DefaultHistoryLimit, c.HistoryLimit)
	case c.BatchPause < 0 || c.PassPause < 0:
		return fmt.Errorf("config: pauses must not be negative")
	case c.PushInterval <= 0:
		return fmt.Errorf("config: PUSH_INTERVAL must be positive")
	case c.HTTPTimeout <= 0:
		return fmt.Errorf("config: HTTP_TIMEOUT must be positive")
	}
	return nil
}

// QuoteOptions returns the fetcher settings.
func (c *Config) QuoteOptions() quote.Options {
	return quote.Options{
		YahooBaseURL:         c.YahooBaseURL,
		CryptoCompareBaseURL: c.CryptoCompareBaseURL,
		Timeout:              c.HTTPTimeout,
	}
}

// SMTP returns the mail settings.
func (c *Config) SMTP() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUser,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	}
}

// Groups loads the instrument universe from InstrumentsFile, or returns the
// built-in universe when no file is set.
func (c *Config) Groups() ([]model.Group, error) {
	if c.InstrumentsFile == "" {
		return model.DefaultGroups(), nil
	}
	return LoadGroups(c.InstrumentsFile)
}

type universeFile struct {
	Groups []model.Group `yaml:"groups"`
}

// LoadGroups reads and validates a YAML universe file of the form
//
//	groups:
//	  - name: Stocks
//	    kind: bulk
//	    symbols: [AAPL, MSFT]
func LoadGroups(path string) ([]model.Group, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments: %w", err)
	}
	return ParseGroups(data)
}

// ParseGroups decodes and validates a YAML universe document.
func ParseGroups(data []byte) ([]model.Group, error) {
	var f universeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments: %w", err)
	}
	if len(f.Groups) == 0 {
		return nil, fmt.Errorf("parse instruments: no groups defined")
	}

	seen := make(map[string]bool, len(f.Groups))
	for i := range f.Groups {
		g := &f.Groups[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return nil, fmt.Errorf("instruments: group %d has no name", i)
		}
		if seen[g.Name] {
			return nil, fmt.Errorf("instruments: duplicate group %q", g.Name)
		}
		seen[g.Name] = true
		if g.Kind == "" {
			g.Kind = model.KindBulk
		}
		if !g.Kind.Valid() {
			return nil, fmt.Errorf("instruments: group %q: unknown kind %q", g.Name, g.Kind)
		}
		syms := make([]string, 0, len(g.Symbols))
		for _, s := range g.Symbols {
			if s = strings.TrimSpace(s); s != "" {
				syms = append(syms, s)
			}
		}
		g.Symbols = syms
		if g.Kind == model.KindSpot {
			for _, s := range g.Symbols {
				if _, _, err := model.SplitPair(s); err != nil {
					return nil, fmt.Errorf("instruments: group %q: %w", g.Name, err)
				}
			}
		}
	}
	return f.Groups, nil
}

// parser collects the first conversion error across several lookups.
type parser struct {
	err error
}

func (p *parser) intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
	}
	if err != nil {
		return fallback
	}
	return n
}

// durationEnv accepts Go durations ("1.5s") or bare seconds ("30").
func (p *parser) durationEnv(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second))
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("config: %s=%q: %w", key, v, err)
		}
		return fallback
	}
	return d
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
