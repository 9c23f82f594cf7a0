// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	DiscordToken string
	DatabasePath string
	LogLevel     string
	Timezone     string
	AdminIDs     []string
	WakeWords    []string
	SilentMode   bool
	VocabPath    string

	FeedingTeamChannel string
	FeedingChannels    []string
	PhotoChannels      []string
	ProfilesChannel    string

	ImageLookback     time.Duration
	FeedImageLookback time.Duration
	PendingTTL        time.Duration
	ClarifyTimeout    time.Duration

	CVEndpoint      string
	CVTimeout       time.Duration
	CVMaxDownloadMB int

	NLPAPIKey  string
	NLPBaseURL string
	NLPModel   string

	DuesMailDir string
	MetricsAddr string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first; variables already set take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	token := os.Getenv("DISCORD_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}

	adminIDs, err := snowflakes("ADMIN_IDS")
	if err != nil {
		return nil, err
	}
	feeding, err := snowflakes("FEEDING_CHANNELS")
	if err != nil {
		return nil, err
	}
	photos, err := snowflakes("PHOTO_CHANNELS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DiscordToken:       token,
		DatabasePath:       getenv("DATABASE_PATH", "./data/tomcat.db"),
		LogLevel:           getenv("LOG_LEVEL", "info"),
		Timezone:           getenv("TIMEZONE", "America/Chicago"),
		AdminIDs:           adminIDs,
		WakeWords:          list(os.Getenv("WAKE_WORDS")),
		VocabPath:          os.Getenv("VOCAB_PATH"),
		FeedingTeamChannel: os.Getenv("CH_FEEDING_TEAM"),
		FeedingChannels:    feeding,
		PhotoChannels:      photos,
		ProfilesChannel:    os.Getenv("CH_PROFILES"),
		CVEndpoint:         os.Getenv("CV_ENDPOINT"),
		NLPAPIKey:          os.Getenv("NLP_API_KEY"),
		NLPBaseURL:         os.Getenv("NLP_BASE_URL"),
		NLPModel:           getenv("NLP_MODEL", "gpt-4o-mini"),
		DuesMailDir:        os.Getenv("DUES_MAIL_DIR"),
		MetricsAddr:        os.Getenv("METRICS_ADDR"),
	}

	// The feeding team channel always counts as a feeding channel.
	if cfg.FeedingTeamChannel != "" && !contains(cfg.FeedingChannels, cfg.FeedingTeamChannel) {
		cfg.FeedingChannels = append(cfg.FeedingChannels, cfg.FeedingTeamChannel)
	}

	if cfg.SilentMode, err = boolean("SILENT_MODE"); err != nil {
		return nil, err
	}

	durations := []struct {
		key  string
		def  time.Duration
		dest *time.Duration
	}{
		{"IMAGE_LOOKBACK", 30 * time.Second, &cfg.ImageLookback},
		{"FEED_IMAGE_LOOKBACK", 10 * time.Minute, &cfg.FeedImageLookback},
		{"PENDING_TTL", 2 * time.Minute, &cfg.PendingTTL},
		{"CLARIFY_TIMEOUT", 120 * time.Second, &cfg.ClarifyTimeout},
		{"CV_TIMEOUT", 60 * time.Second, &cfg.CVTimeout},
	}
	for _, d := range durations {
		if *d.dest, err = duration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	cfg.CVMaxDownloadMB = 10
	if raw := os.Getenv("CV_MAX_DOWNLOAD_MB"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CV_MAX_DOWNLOAD_MB %q", raw)
		}
		cfg.CVMaxDownloadMB = n
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin checks whether a user ID is in the administrator list.
func (c *Config) IsAdmin(userID string) bool {
	return contains(c.AdminIDs, userID)
}

// MaxDownloadBytes is the attachment size cap in bytes.
func (c *Config) MaxDownloadBytes() int64 {
	return int64(c.CVMaxDownloadMB) << 20
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func list(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// snowflakes reads a comma-separated list of Discord ids.
func snowflakes(key string) ([]string, error) {
	ids := list(os.Getenv(key))
	for _, id := range ids {
		if _, err := strconv.ParseUint(id, 10, 64); err != nil {
			return nil, fmt.Errorf("invalid id %q in %s: %w", id, key, err)
		}
	}
	return ids, nil
}

func boolean(key string) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch raw {
	case "":
		return false, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s %q", key, raw)
}

func duration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, raw)
	}
	return d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
