package voxline

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/voxline/voxline/pkg/transports/twilio"
	"github.com/voxline/voxline/pkg/transports/wsmedia"
)

type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`

	Call    CallConfig     `mapstructure:"call"`
	Media   wsmedia.Config `mapstructure:"media"`
	Vendors VendorsConfig  `mapstructure:"vendors"`
	Pools   PoolsConfig    `mapstructure:"pools"`
	Memory  MemoryConfig   `mapstructure:"memory"`
	Twilio  twilio.Config  `mapstructure:"twilio"`
}

type CallConfig struct {
	Greeting string `mapstructure:"greeting"`
	Language string `mapstructure:"language"`
	// PendingEvents sizes the per-call event buffer. One keeps only the
	// freshest unprocessed recognition result.
	PendingEvents int `mapstructure:"pending_events"`
	// ApologyByLanguage overrides the fallback line spoken when a turn fails.
	ApologyByLanguage map[string]string `mapstructure:"apology_by_language"`
}

type VendorConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type VendorsConfig struct {
	Recognizer  VendorConfig `mapstructure:"recognizer"`
	Synthesizer VendorConfig `mapstructure:"synthesizer"`
}

type PoolsConfig struct {
	RecognizerIdle  int `mapstructure:"recognizer_idle"`
	SynthesizerIdle int `mapstructure:"synthesizer_idle"`
	Prewarm         int `mapstructure:"prewarm"`
}

type MemoryConfig struct {
	MaxHistory int `mapstructure:"max_history"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("call.greeting", "")
	v.SetDefault("call.language", "en-US")
	v.SetDefault("call.pending_events", 1)
	v.SetDefault("media.addr", ":8080")
	v.SetDefault("media.path", "/media")
	v.SetDefault("media.allow_any_origin", false)
	v.SetDefault("pools.recognizer_idle", 4)
	v.SetDefault("pools.synthesizer_idle", 4)
	v.SetDefault("pools.prewarm", 0)
	v.SetDefault("memory.max_history", 32)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Vendors.Recognizer.Provider) == "" {
		return fmt.Errorf("vendors.recognizer.provider is required")
	}
	if strings.TrimSpace(c.Vendors.Synthesizer.Provider) == "" {
		return fmt.Errorf("vendors.synthesizer.provider is required")
	}
	if c.Call.PendingEvents < 0 {
		return fmt.Errorf("call.pending_events must not be negative")
	}
	return nil
}

func expandEnvStrings(cfg *Config) {
	cfg.LogLevel = os.ExpandEnv(cfg.LogLevel)
	cfg.LogFormat = os.ExpandEnv(cfg.LogFormat)
	cfg.Call.Greeting = os.ExpandEnv(cfg.Call.Greeting)
	cfg.Twilio.AccountSID = os.ExpandEnv(cfg.Twilio.AccountSID)
	cfg.Twilio.AuthToken = os.ExpandEnv(cfg.Twilio.AuthToken)
	cfg.Twilio.PublicURL = os.ExpandEnv(cfg.Twilio.PublicURL)
	cfg.Vendors.Recognizer.Settings = expandSettings(cfg.Vendors.Recognizer.Settings)
	cfg.Vendors.Synthesizer.Settings = expandSettings(cfg.Vendors.Synthesizer.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, inner := range val {
			val[k] = expandAny(inner)
		}
		return val
	default:
		return v
	}
}
