package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName is the configuration directory name.
const AppName = "task-manager"

// Config keeps runtime settings for the task manager.
type Config struct {
	TelegramToken  string
	OwnerChatID    int64
	DatabaseURL    string
	DatabaseDriver string
	ReportInterval time.Duration
	// SummaryTime is an optional HH:MM for a daily summary on top of the
	// interval reports.
	SummaryTime string
}

// Load reads configuration from environment variables and an optional YAML
// file, with sane defaults. Environment variables win over the file.
// An empty path falls back to DefaultConfigPath when that file exists.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("database_url", "task_manager.db")
	v.SetDefault("database_driver", "sqlite3")
	v.AutomaticEnv()

	if path == "" {
		if candidate := DefaultConfigPath(); fileExists(candidate) {
			path = candidate
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		TelegramToken:  strings.TrimSpace(v.GetString("telegram_token")),
		DatabaseURL:    strings.TrimSpace(v.GetString("database_url")),
		DatabaseDriver: strings.TrimSpace(v.GetString("database_driver")),
		ReportInterval: parseInterval(strings.TrimSpace(v.GetString("report_interval_hours"))),
		SummaryTime:    strings.TrimSpace(v.GetString("summary_time")),
	}

	if raw := strings.TrimSpace(v.GetString("owner_chat_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return cfg, fmt.Errorf("OWNER_CHAT_ID must be a number: %w", err)
		}
		cfg.OwnerChatID = id
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "task_manager.db"
	}

	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	return cfg, nil
}

// RequireTelegram checks the settings the chat front end cannot run without.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if c.OwnerChatID == 0 {
		return fmt.Errorf("OWNER_CHAT_ID is required")
	}
	return nil
}

// DefaultConfigPath uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(AppName, "config.yaml")
	}
	return filepath.Join(home, ".config", AppName, "config.yaml")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
