package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/confsync/confsync/internal/prefs"
)

// ServerConfig holds the HTTP settings of the mock conference service.
type ServerConfig struct {
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutDownTimeout    time.Duration
	RequestTimeout     time.Duration
	CORSAllowedOrigins string
}

// RemoteConfig points the sync layer at a conference service.
type RemoteConfig struct {
	BaseURL string
	Timeout time.Duration
}

// CacheConfig selects where synchronized state is kept between runs.
// The memory backend ignores FilePath.
type CacheConfig struct {
	Backend  string
	FilePath string
}

type MiscConfig struct {
	LogLevel     string
	GinMode      string
	FixturePath  string
	SyncInterval time.Duration
}

type Config struct {
	Server ServerConfig
	Remote RemoteConfig
	Cache  CacheConfig
	Misc   MiscConfig
}

// LoadConfig reads an optional yaml config file plus environment overrides
// and returns a validated configuration. Environment variables use the
// CONFSYNC_ prefix with dots replaced by underscores, so remote.base_url
// becomes CONFSYNC_REMOTE_BASE_URL. A bare PORT overrides the server port,
// which is what most container platforms inject.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(getEnvOrDefault("CONFSYNC_CONFIG_PATH", "./config"))

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvPrefix("CONFSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, fmt.Errorf("config file error: %w", err)
		}
	}

	port, err := getEnvOrViperPort("PORT", "server.port")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               port,
			ReadTimeout:        viper.GetDuration("server.read_timeout"),
			WriteTimeout:       viper.GetDuration("server.write_timeout"),
			IdleTimeout:        viper.GetDuration("server.idle_timeout"),
			ShutDownTimeout:    viper.GetDuration("server.shutdown_timeout"),
			RequestTimeout:     viper.GetDuration("server.request_timeout"),
			CORSAllowedOrigins: viper.GetString("server.cors_allowed_origins"),
		},
		Remote: RemoteConfig{
			BaseURL: viper.GetString("remote.base_url"),
			Timeout: viper.GetDuration("remote.timeout"),
		},
		Cache: CacheConfig{
			Backend:  viper.GetString("cache.backend"),
			FilePath: viper.GetString("cache.file_path"),
		},
		Misc: MiscConfig{
			LogLevel:     viper.GetString("misc.log_level"),
			GinMode:      viper.GetString("misc.gin_mode"),
			FixturePath:  viper.GetString("misc.fixture_path"),
			SyncInterval: viper.GetDuration("misc.sync_interval"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	// The cache backends create their own file but not the directory
	// leading to it.
	if cfg.Cache.Backend != prefs.BackendMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Cache.FilePath), 0o755); err != nil {
			return nil, fmt.Errorf("cannot create cache directory: %w", err)
		}
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 10*time.Second)
	viper.SetDefault("server.write_timeout", 10*time.Second)
	viper.SetDefault("server.idle_timeout", 120*time.Second)
	viper.SetDefault("server.shutdown_timeout", 5*time.Second)
	viper.SetDefault("server.request_timeout", 1000*time.Millisecond)
	viper.SetDefault("server.cors_allowed_origins", "*")

	viper.SetDefault("remote.base_url", "http://localhost:8080")
	viper.SetDefault("remote.timeout", 10*time.Second)

	viper.SetDefault("cache.backend", prefs.BackendBolt)
	viper.SetDefault("cache.file_path", "./config/data/confsync.db")

	viper.SetDefault("misc.log_level", "info")
	viper.SetDefault("misc.gin_mode", "release")
	viper.SetDefault("misc.fixture_path", "./config/fixture.json")
	viper.SetDefault("misc.sync_interval", 5*time.Minute)
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}
	if c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server idle timeout must be positive")
	}
	if c.Server.ShutDownTimeout <= 0 {
		return fmt.Errorf("server shutdown timeout must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server request timeout must be positive")
	}

	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote base url is required")
	}
	if c.Remote.Timeout <= 0 {
		return fmt.Errorf("remote timeout must be positive")
	}

	switch c.Cache.Backend {
	case "", prefs.BackendMemory, prefs.BackendFile, prefs.BackendBolt:
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	if c.Cache.Backend != prefs.BackendMemory && c.Cache.FilePath == "" {
		return fmt.Errorf("cache file path is required for the %q backend", c.Cache.Backend)
	}

	if c.Misc.FixturePath == "" {
		return fmt.Errorf("fixture path is required")
	}
	if c.Misc.SyncInterval <= 0 {
		return fmt.Errorf("sync interval must be positive")
	}

	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvOrViperPort prefers the plain environment variable over the viper
// key, so platform-injected ports win over the config file.
func getEnvOrViperPort(envKey, viperKey string) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s value %q: %w", envKey, v, err)
		}
		return port, nil
	}
	return viper.GetInt(viperKey), nil
}
