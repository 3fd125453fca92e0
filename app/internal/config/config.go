package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"pulse/app/internal/security"
)

// Store backends
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

var ErrInvalid = errors.New("invalid configuration")

// Config holds all application configuration
type Config struct {
	// Server
	Port           string
	AllowedOrigins []string
	TrustedProxies []string

	// Monitoring
	SiteURL          string
	PollInterval     time.Duration
	ProbeTimeout     time.Duration
	Capacity         int
	HistoryDays      int
	EnableScheduler  bool
	AllowURLOverride bool
	Timezone         string
	Location         *time.Location

	// Storage
	Store             string
	DBPath            string
	DatabaseURL       string
	RetentionSchedule string

	// Admin
	AdminUser string
	AdminHash []byte

	// Alerts
	StatusPageURL   string
	AlertWebhookURL string
	AlertSecret     string
	AlertDiscordURL string
	AlertThreshold  int
}

// fileConfig mirrors Config for the optional YAML file. Zero values mean
// "not set" and keep the default.
type fileConfig struct {
	Port              string   `yaml:"port"`
	SiteURL           string   `yaml:"site_url"`
	PollSeconds       int      `yaml:"poll_seconds"`
	ProbeTimeoutSecs  int      `yaml:"probe_timeout_seconds"`
	Capacity          int      `yaml:"monitor_capacity"`
	HistoryDays       int      `yaml:"history_days"`
	EnableScheduler   *bool    `yaml:"enable_scheduler"`
	AllowURLOverride  *bool    `yaml:"allow_url_override"`
	Timezone          string   `yaml:"timezone"`
	Store             string   `yaml:"store"`
	DBPath            string   `yaml:"db_path"`
	DatabaseURL       string   `yaml:"database_url"`
	RetentionSchedule string   `yaml:"retention_schedule"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
	AdminUser         string   `yaml:"admin_user"`
	AdminHash         string   `yaml:"admin_password_bcrypt"`
	StatusPageURL     string   `yaml:"status_page_url"`
	AlertWebhookURL   string   `yaml:"alert_webhook_url"`
	AlertSecret       string   `yaml:"alert_webhook_secret"`
	AlertDiscordURL   string   `yaml:"alert_discord_url"`
	AlertThreshold    int      `yaml:"alert_threshold"`
}

// Defaults returns the built-in configuration
func Defaults() *Config {
	return &Config{
		Port:              "4555",
		AllowedOrigins:    []string{"*"},
		SiteURL:           "http://localhost:3000",
		PollInterval:      60 * time.Second,
		ProbeTimeout:      10 * time.Second,
		Capacity:          1000,
		HistoryDays:       45,
		EnableScheduler:   true,
		AllowURLOverride:  true,
		Timezone:          "Local",
		Location:          time.Local,
		Store:             StoreMemory,
		DBPath:            "./uptime.db",
		RetentionSchedule: "@hourly",
		AdminUser:         "admin",
		AlertThreshold:    3,
	}
}

// Load reads configuration from .env, the optional CONFIG_FILE, and the
// environment, in that order of increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Defaults()
	if path := getenv("CONFIG_FILE", ""); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	setString(&c.Port, fc.Port)
	setString(&c.SiteURL, fc.SiteURL)
	if fc.PollSeconds > 0 {
		c.PollInterval = time.Duration(fc.PollSeconds) * time.Second
	}
	if fc.ProbeTimeoutSecs > 0 {
		c.ProbeTimeout = time.Duration(fc.ProbeTimeoutSecs) * time.Second
	}
	if fc.Capacity != 0 {
		c.Capacity = fc.Capacity
	}
	if fc.HistoryDays != 0 {
		c.HistoryDays = fc.HistoryDays
	}
	if fc.EnableScheduler != nil {
		c.EnableScheduler = *fc.EnableScheduler
	}
	if fc.AllowURLOverride != nil {
		c.AllowURLOverride = *fc.AllowURLOverride
	}
	setString(&c.Timezone, fc.Timezone)
	setString(&c.Store, fc.Store)
	setString(&c.DBPath, fc.DBPath)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	setString(&c.RetentionSchedule, fc.RetentionSchedule)
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if len(fc.TrustedProxies) > 0 {
		c.TrustedProxies = fc.TrustedProxies
	}
	setString(&c.AdminUser, fc.AdminUser)
	if fc.AdminHash != "" {
		c.AdminHash = []byte(fc.AdminHash)
	}
	setString(&c.StatusPageURL, fc.StatusPageURL)
	setString(&c.AlertWebhookURL, fc.AlertWebhookURL)
	setString(&c.AlertSecret, fc.AlertSecret)
	setString(&c.AlertDiscordURL, fc.AlertDiscordURL)
	if fc.AlertThreshold != 0 {
		c.AlertThreshold = fc.AlertThreshold
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Port = getenv("PORT", c.Port)
	c.SiteURL = strings.TrimSpace(getenv("SITE_URL", c.SiteURL))
	c.PollInterval = envDurSecs("POLL_SECONDS", int(c.PollInterval/time.Second))
	c.ProbeTimeout = envDurSecs("PROBE_TIMEOUT_SECONDS", int(c.ProbeTimeout/time.Second))
	c.Capacity = envInt("MONITOR_CAPACITY", c.Capacity)
	c.HistoryDays = envInt("HISTORY_DAYS", c.HistoryDays)
	c.EnableScheduler = envBool("ENABLE_SCHEDULER", c.EnableScheduler)
	c.AllowURLOverride = envBool("ALLOW_URL_OVERRIDE", c.AllowURLOverride)
	c.Timezone = getenv("TIMEZONE", c.Timezone)
	c.Store = strings.ToLower(getenv("STORE", c.Store))
	c.DBPath = getenv("DB_PATH", c.DBPath)
	c.DatabaseURL = getenv("DATABASE_URL", c.DatabaseURL)
	c.RetentionSchedule = getenv("RETENTION_SCHEDULE", c.RetentionSchedule)
	if v := getenv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getenv("TRUSTED_PROXIES", ""); v != "" {
		c.TrustedProxies = splitList(v)
	}
	c.AdminUser = getenv("ADMIN_USER", c.AdminUser)
	c.StatusPageURL = getenv("STATUS_PAGE_URL", c.StatusPageURL)
	c.AlertWebhookURL = getenv("ALERT_WEBHOOK_URL", c.AlertWebhookURL)
	c.AlertSecret = getenv("ALERT_WEBHOOK_SECRET", c.AlertSecret)
	c.AlertDiscordURL = getenv("ALERT_DISCORD_URL", c.AlertDiscordURL)
	c.AlertThreshold = envInt("ALERT_THRESHOLD", c.AlertThreshold)

	// Load admin password/hash
	if hp := getenv("ADMIN_PASSWORD_BCRYPT", ""); hp != "" {
		c.AdminHash = []byte(hp)
	} else if pw := getenv("ADMIN_PASSWORD", ""); pw != "" {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		c.AdminHash = h
	}
	if len(c.AdminHash) == 0 {
		log.Println("no ADMIN_PASSWORD or ADMIN_PASSWORD_BCRYPT set; incident writes are unauthenticated")
	}

	loc, err := loadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: TIMEZONE %q: %v", ErrInvalid, c.Timezone, err)
	}
	c.Location = loc
	return nil
}

// Validate checks ranges and cross-field requirements
func (c *Config) Validate() error {
	var errs []error
	if c.Capacity < 1 {
		errs = append(errs, fmt.Errorf("%w: MONITOR_CAPACITY must be at least 1, got %d", ErrInvalid, c.Capacity))
	}
	if c.HistoryDays < 1 || c.HistoryDays > 365 {
		errs = append(errs, fmt.Errorf("%w: HISTORY_DAYS must be between 1 and 365, got %d", ErrInvalid, c.HistoryDays))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("%w: POLL_SECONDS must be positive", ErrInvalid))
	}
	if c.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%w: PROBE_TIMEOUT_SECONDS must be positive", ErrInvalid))
	}
	if u, err := url.Parse(c.SiteURL); err != nil || u.Host == "" {
		errs = append(errs, fmt.Errorf("%w: SITE_URL %q is not an absolute URL", ErrInvalid, c.SiteURL))
	}
	if c.AlertThreshold < 1 {
		errs = append(errs, fmt.Errorf("%w: ALERT_THRESHOLD must be at least 1, got %d", ErrInvalid, c.AlertThreshold))
	}
	for name, v := range map[string]string{"ALERT_WEBHOOK_URL": c.AlertWebhookURL, "ALERT_DISCORD_URL": c.AlertDiscordURL} {
		if v == "" {
			continue
		}
		if u, err := url.Parse(v); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %s %q is not an http(s) URL", ErrInvalid, name, v))
		}
	}
	if _, err := security.ParseTrustedProxies(c.TrustedProxies); err != nil {
		errs = append(errs, fmt.Errorf("%w: TRUSTED_PROXIES: %v", ErrInvalid, err))
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, fmt.Errorf("%w: DB_PATH is required for the sqlite store", ErrInvalid))
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, fmt.Errorf("%w: DATABASE_URL is required for the postgres store", ErrInvalid))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: unknown STORE %q", ErrInvalid, c.Store))
	}
	return errors.Join(errs...)
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	return time.LoadLocation(name)
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

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Helper functions
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	v := strings.ToLower(getenv(k, ""))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}

func envDurSecs(k string, def int) time.Duration {
	return time.Duration(envInt(k, def)) * time.Second
}
