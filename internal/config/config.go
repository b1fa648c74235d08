// Package config provides configuration loading, validation, and defaults for
// the nfd-autoupdater.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for nfd-autoupdater.
type Config struct {
	Log        LogConfig        `yaml:"log"         json:"log"         toml:"log"`
	Server     ServerConfig     `yaml:"server"      json:"server"      toml:"server"`
	Backend    BackendConfig    `yaml:"backend"     json:"backend"     toml:"backend"`
	AutoUpdate AutoUpdateConfig `yaml:"auto_update" json:"auto_update" toml:"auto_update"`
	History    HistoryConfig    `yaml:"history"     json:"history"     toml:"history"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  toml:"level"  env:"NFD_LOG_LEVEL"  validate:"omitempty,oneof=trace debug info warn error fatal panic"`
	Format string `yaml:"format" json:"format" toml:"format" env:"NFD_LOG_FORMAT" validate:"omitempty,oneof=text json"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddress string        `yaml:"listen_address" json:"listen_address" toml:"listen_address" env:"NFD_LISTEN_ADDRESS" validate:"required"`
	EnablePprof   bool          `yaml:"enable_pprof"   json:"enable_pprof"   toml:"enable_pprof"   env:"NFD_ENABLE_PPROF"`
	Webhook       WebhookConfig `yaml:"webhook"        json:"webhook"        toml:"webhook"`
}

// WebhookConfig holds settings for the backend notification receiver.
type WebhookConfig struct {
	Enabled     bool   `yaml:"enabled"      json:"enabled"      toml:"enabled"      env:"NFD_WEBHOOK_ENABLED"`
	SecretToken string `yaml:"secret_token" json:"secret_token" toml:"secret_token" env:"NFD_WEBHOOK_SECRET_TOKEN"`
}

// BackendConfig holds the records backend connection settings.
type BackendConfig struct {
	URL                    string `yaml:"url"                       json:"url"                       toml:"url"                       env:"NFD_BACKEND_URL"            validate:"required,url"`
	Token                  string `yaml:"token"                     json:"token"                     toml:"token"                     env:"NFD_BACKEND_TOKEN"`
	UpdateExpiredPath      string `yaml:"update_expired_path"       json:"update_expired_path"       toml:"update_expired_path"       env:"NFD_BACKEND_UPDATE_PATH"    validate:"required,relpath"`
	CheckExpiredPath       string `yaml:"check_expired_path"        json:"check_expired_path"        toml:"check_expired_path"        env:"NFD_BACKEND_CHECK_PATH"     validate:"required,relpath"`
	TimeoutSeconds         int    `yaml:"timeout_seconds"           json:"timeout_seconds"           toml:"timeout_seconds"           env:"NFD_BACKEND_TIMEOUT"        validate:"omitempty,min=1"`
	MaxRequestsPerSecond   int    `yaml:"max_requests_per_second"   json:"max_requests_per_second"   toml:"max_requests_per_second"   env:"NFD_BACKEND_MAX_RPS"        validate:"omitempty,min=0"`
	BurstRequestsPerSecond int    `yaml:"burst_requests_per_second" json:"burst_requests_per_second" toml:"burst_requests_per_second" env:"NFD_BACKEND_BURST_RPS"      validate:"omitempty,min=0"`
}

// Timeout returns the per-request timeout as a time.Duration.
func (c BackendConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// AutoUpdateConfig holds the expired-record coordinator settings.
type AutoUpdateConfig struct {
	TTLSeconds             int  `yaml:"ttl_seconds"              json:"ttl_seconds"              toml:"ttl_seconds"              env:"NFD_AUTO_UPDATE_TTL"              validate:"min=1"`
	RefreshEnabled         bool `yaml:"refresh_enabled"          json:"refresh_enabled"          toml:"refresh_enabled"          env:"NFD_AUTO_UPDATE_REFRESH"`
	RefreshIntervalSeconds int  `yaml:"refresh_interval_seconds" json:"refresh_interval_seconds" toml:"refresh_interval_seconds" env:"NFD_AUTO_UPDATE_REFRESH_INTERVAL" validate:"omitempty,min=1"`
}

// TTL returns the cache validity window as a time.Duration.
func (c AutoUpdateConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

// RefreshInterval returns the background refresh period as a time.Duration.
func (c AutoUpdateConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// HistoryConfig selects where completed runs are recorded. RedisURL takes
// precedence over LevelDBPath; with neither set an in-memory ring is used.
type HistoryConfig struct {
	RedisURL    string `yaml:"redis_url"    json:"redis_url"    toml:"redis_url"    env:"NFD_HISTORY_REDIS_URL"`
	LevelDBPath string `yaml:"leveldb_path" json:"leveldb_path" toml:"leveldb_path" env:"NFD_HISTORY_LEVELDB_PATH"`
	Size        int    `yaml:"size"         json:"size"         toml:"size"         env:"NFD_HISTORY_SIZE"         validate:"omitempty,min=1,max=10000"`
}

// Load reads a YAML (or TOML, by file extension) configuration file, applies
// defaults, applies environment variable overrides, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{}
	ApplyDefaults(cfg)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	ApplyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnvOverrides walks the config struct and overwrites fields that have
// an "env" tag if the corresponding environment variable is set.
func ApplyEnvOverrides(cfg *Config) {
	applyEnvOverridesOnValue(reflect.ValueOf(cfg))
}

func applyEnvOverridesOnValue(v reflect.Value) {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if fieldVal.Kind() == reflect.Struct {
			applyEnvOverridesOnValue(fieldVal.Addr())
			continue
		}

		envKey := field.Tag.Get("env")
		if envKey == "" {
			continue
		}

		envVal, ok := os.LookupEnv(envKey)
		if !ok {
			continue
		}

		setFieldFromString(fieldVal, envVal)
	}
}

// setFieldFromString sets a reflect.Value from a string, supporting
// string, bool and int field types. Unparseable values are ignored.
func setFieldFromString(field reflect.Value, raw string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err == nil {
			field.SetBool(b)
		}

	case reflect.Int:
		n, err := strconv.Atoi(raw)
		if err == nil {
			field.SetInt(int64(n))
		}
	}
}

// redactString replaces a secret string with "****" if non-empty.
func redactString(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}

// Redacted returns a copy of the Config with sensitive fields masked.
func (c *Config) Redacted() Config {
	cp := *c
	cp.Backend.Token = redactString(cp.Backend.Token)
	cp.Server.Webhook.SecretToken = redactString(cp.Server.Webhook.SecretToken)
	cp.History.RedisURL = redactString(cp.History.RedisURL)
	return cp
}

// RedactedJSON returns the config as indented JSON with secrets masked.
func (c *Config) RedactedJSON() ([]byte, error) {
	redacted := c.Redacted()
	data, err := json.MarshalIndent(redacted, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling redacted config: %w", err)
	}
	return data, nil
}
