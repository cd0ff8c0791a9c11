// Package config loads zipdb settings from defaults, an optional YAML file
// and ZIPDB_ environment variables.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/woxQAQ/zipdb/internal/wasm"
)

// EnvPrefix prefixes environment overrides, e.g. ZIPDB_WASM_DEBUG=true.
const EnvPrefix = "ZIPDB"

type Config struct {
	LogLevel   string     `mapstructure:"log_level"`
	GuestPaths []string   `mapstructure:"guest_paths"`
	Demo       DemoConfig `mapstructure:"demo"`
	Wasm       WasmConfig `mapstructure:"wasm"`
}

// DemoConfig holds the zips the demo command compares.
type DemoConfig struct {
	// Zips are queried in order; the demo prints second minus first.
	Zips []string `mapstructure:"zips"`
}

// WasmConfig holds Wasm runtime configuration.
type WasmConfig struct {
	// Memory limit per module (in pages, 64KB each).
	MemoryPages uint32 `mapstructure:"memory_pages"`
	// Keep debug-level log_message calls from guests.
	Debug bool `mapstructure:"debug"`
	// Compilation cache directory. Empty disables the on-disk cache.
	CacheDir string `mapstructure:"cache_dir"`
	// Maximum concurrent instances.
	MaxInstances int `mapstructure:"max_instances"`
	// Guest call timeout (seconds).
	ExecutionTimeout int `mapstructure:"execution_timeout"`
	// Provide wasi_snapshot_preview1 to guests.
	WASI bool `mapstructure:"wasi"`
}

// New returns a viper instance with defaults and environment overrides set.
// Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("guest_paths", []string{"./guests"})
	v.SetDefault("demo.zips", []string{"10186", "10852"})

	// Wasm defaults
	v.SetDefault("wasm.memory_pages", 256) // 16MB
	v.SetDefault("wasm.debug", false)
	v.SetDefault("wasm.cache_dir", "")
	v.SetDefault("wasm.max_instances", 100)
	v.SetDefault("wasm.execution_timeout", 30)
	v.SetDefault("wasm.wasi", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads configPath, if set, into v and decodes the result.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfig loads configuration with defaults and environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	return Load(New(), configPath)
}

// RuntimeConfig converts the wasm section to a runtime configuration.
func (c *Config) RuntimeConfig() *wasm.RuntimeConfig {
	return &wasm.RuntimeConfig{
		MemoryPages:      c.Wasm.MemoryPages,
		DebugEnabled:     c.Wasm.Debug,
		CacheDir:         c.Wasm.CacheDir,
		MaxInstances:     c.Wasm.MaxInstances,
		ExecutionTimeout: time.Duration(c.Wasm.ExecutionTimeout) * time.Second,
		WASI:             c.Wasm.WASI,
	}
}
