// Package config loads and validates the router's runtime configuration,
// following the shape of the teacher's internal/profile.Profile: a plain
// struct with exported fields, a FromEnv loader backed by viper, and a
// Validate step run once at process start.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is the full set of tunables recognized by the core, matching the
// Configuration table of the specification it implements.
type Config struct {
	TenantDefault string

	BufferWindow     time.Duration
	BufferMaxMsgs    int
	ConversationTTL  time.Duration
	HandoffTTL       time.Duration

	RateIPRPM     int
	RatePhoneRPM  int
	BanWindow     time.Duration
	InternalCIDRs []string

	CBErrorRateLimit float64
	CBOpenSecs       time.Duration

	HMACSecretCurrent  string
	HMACSecretPrevious string

	UpsellEnabled            bool
	UpsellDelayMin           time.Duration
	UpsellCopyAWeight        float64
	UpsellPosImmediateWeight float64
	UpsellMaxAttempts        int
	UpsellRetryDelay         time.Duration

	CatalogSyncPageSize int
	CatalogSyncLockTTL  time.Duration

	TimeZoneName string
	Location     *time.Location

	DatabaseDriver string // "memory" | "postgres" | "sqlite"
	DatabaseDSN    string

	AdminJWTSecret string
	HTTPAddr       string
}

// FromEnv loads a Config from the process environment (optionally seeded
// from a .env file, mirroring the teacher's main-command bootstrap), applying
// the defaults from the specification's configuration table.
func FromEnv() (*Config, error) {
	_ = godotenv.Load() // optional; missing .env is not an error

	v := viper.New()
	v.SetEnvPrefix("ROUTER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("tenant_default", "default")
	v.SetDefault("buffer_window_seconds", 30)
	v.SetDefault("buffer_max_messages", 8)
	v.SetDefault("conversation_ttl_hours", 2)
	v.SetDefault("handoff_ttl_hours", 1)
	v.SetDefault("rate_ip_rpm", 10)
	v.SetDefault("rate_phone_rpm", 5)
	v.SetDefault("ban_window_min", 1)
	v.SetDefault("internal_cidrs", "")
	v.SetDefault("cb_error_rate_limit", 0.5)
	v.SetDefault("cb_open_secs", 5)
	v.SetDefault("hmac_secret_current", "")
	v.SetDefault("hmac_secret_prev", "")
	v.SetDefault("upsell_enabled", true)
	v.SetDefault("upsell_delay_min", 10)
	v.SetDefault("upsell_copy_a_weight", 0.5)
	v.SetDefault("upsell_pos_immediate_weight", 0.5)
	v.SetDefault("upsell_max_attempts", 3)
	v.SetDefault("upsell_retry_delay_min", 5)
	v.SetDefault("catalog_sync_page_size", 100)
	v.SetDefault("catalog_sync_lock_ttl_sec", 3600)
	v.SetDefault("timezone", "America/Bahia")
	v.SetDefault("database_driver", "memory")
	v.SetDefault("database_dsn", "")
	v.SetDefault("admin_jwt_secret", "")
	v.SetDefault("http_addr", ":8080")

	cfg := &Config{
		TenantDefault:            v.GetString("tenant_default"),
		BufferWindow:             time.Duration(v.GetInt("buffer_window_seconds")) * time.Second,
		BufferMaxMsgs:            v.GetInt("buffer_max_messages"),
		ConversationTTL:          time.Duration(v.GetInt("conversation_ttl_hours")) * time.Hour,
		HandoffTTL:               time.Duration(v.GetInt("handoff_ttl_hours")) * time.Hour,
		RateIPRPM:                v.GetInt("rate_ip_rpm"),
		RatePhoneRPM:             v.GetInt("rate_phone_rpm"),
		BanWindow:                time.Duration(v.GetInt("ban_window_min")) * time.Minute,
		CBErrorRateLimit:         v.GetFloat64("cb_error_rate_limit"),
		CBOpenSecs:               time.Duration(v.GetInt("cb_open_secs")) * time.Second,
		HMACSecretCurrent:        v.GetString("hmac_secret_current"),
		HMACSecretPrevious:       v.GetString("hmac_secret_prev"),
		UpsellEnabled:            v.GetBool("upsell_enabled"),
		UpsellDelayMin:           time.Duration(v.GetInt("upsell_delay_min")) * time.Minute,
		UpsellCopyAWeight:        v.GetFloat64("upsell_copy_a_weight"),
		UpsellPosImmediateWeight: v.GetFloat64("upsell_pos_immediate_weight"),
		UpsellMaxAttempts:        v.GetInt("upsell_max_attempts"),
		UpsellRetryDelay:         time.Duration(v.GetInt("upsell_retry_delay_min")) * time.Minute,
		CatalogSyncPageSize:      v.GetInt("catalog_sync_page_size"),
		CatalogSyncLockTTL:       time.Duration(v.GetInt("catalog_sync_lock_ttl_sec")) * time.Second,
		TimeZoneName:             v.GetString("timezone"),
		DatabaseDriver:           v.GetString("database_driver"),
		DatabaseDSN:              v.GetString("database_dsn"),
		AdminJWTSecret:           v.GetString("admin_jwt_secret"),
		HTTPAddr:                 v.GetString("http_addr"),
	}
	if raw := v.GetString("internal_cidrs"); raw != "" {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				cfg.InternalCIDRs = append(cfg.InternalCIDRs, c)
			}
		}
	}

	loc, err := time.LoadLocation(cfg.TimeZoneName)
	if err != nil {
		return nil, errors.Wrapf(err, "loading timezone %q", cfg.TimeZoneName)
	}
	cfg.Location = loc

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field invariants the core relies on: key-ring
// minimum length, weight ranges, and positive windows.
func (c *Config) Validate() error {
	var problems []string

	if c.HMACSecretCurrent != "" && len(c.HMACSecretCurrent) < 16 {
		problems = append(problems, "hmac_secret_current must be >= 16 bytes when set")
	}
	if c.HMACSecretPrevious != "" && len(c.HMACSecretPrevious) < 16 {
		problems = append(problems, "hmac_secret_prev must be >= 16 bytes when set")
	}
	if c.UpsellCopyAWeight < 0 || c.UpsellCopyAWeight > 1 {
		problems = append(problems, "upsell_copy_a_weight must be in [0,1]")
	}
	if c.UpsellPosImmediateWeight < 0 || c.UpsellPosImmediateWeight > 1 {
		problems = append(problems, "upsell_pos_immediate_weight must be in [0,1]")
	}
	if c.BufferWindow <= 0 {
		problems = append(problems, "buffer_window_seconds must be > 0")
	}
	if c.BufferMaxMsgs <= 0 {
		problems = append(problems, "buffer_max_messages must be > 0")
	}
	if c.CatalogSyncPageSize <= 0 {
		problems = append(problems, "catalog_sync_page_size must be > 0")
	}

	if len(problems) > 0 {
		return errors.New(fmt.Sprintf("invalid configuration: %s", strings.Join(problems, "; ")))
	}
	return nil
}
