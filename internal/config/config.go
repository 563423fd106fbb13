package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL         string        `yaml:"api_url"`
	BrokerURL      string        `yaml:"broker_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	HeartBeat      time.Duration `yaml:"heartbeat"`
	DedupWindow    time.Duration `yaml:"dedup_window"`
	DataDir        string        `yaml:"data_dir"`
	LogFile        string        `yaml:"log_file"`
	LogLevel       string        `yaml:"log_level"`
}

// Dir returns the default parley directory (~/.parley).
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".parley")
}

// DefaultPath returns the default config file path (~/.parley/config.yml).
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yml")
}

func Default() Config {
	return Config{
		APIURL:         "http://localhost:8080",
		BrokerURL:      "ws://localhost:8080/chat",
		RequestTimeout: 10 * time.Second,
		ReconnectDelay: 5 * time.Second,
		HeartBeat:      4 * time.Second,
		DedupWindow:    time.Second,
		DataDir:        Dir(),
		LogFile:        filepath.Join(Dir(), "parley.log"),
		LogLevel:       "info",
	}
}

// Load reads the config file at path, writing the defaults there first if it
// does not exist yet. A .env file in the working directory and PARLEY_*
// environment variables override file values.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := Save(cfg, path); err != nil {
			return Config{}, err
		}
	case err != nil:
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the parent directory if needed.
func Save(cfg Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"PARLEY_API_URL":    &c.APIURL,
		"PARLEY_BROKER_URL": &c.BrokerURL,
		"PARLEY_DATA_DIR":   &c.DataDir,
		"PARLEY_LOG_FILE":   &c.LogFile,
		"PARLEY_LOG_LEVEL":  &c.LogLevel,
	}
	for key, dst := range strs {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"PARLEY_REQUEST_TIMEOUT": &c.RequestTimeout,
		"PARLEY_RECONNECT_DELAY": &c.ReconnectDelay,
		"PARLEY_HEARTBEAT":       &c.HeartBeat,
		"PARLEY_DEDUP_WINDOW":    &c.DedupWindow,
	}
	for key, dst := range durations {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}
	return nil
}

func (c Config) Validate() error {
	api, err := url.Parse(c.APIURL)
	if err != nil || api.Host == "" || (api.Scheme != "http" && api.Scheme != "https") {
		return fmt.Errorf("api_url must be an http(s) URL, got %q", c.APIURL)
	}
	broker, err := url.Parse(c.BrokerURL)
	if err != nil || broker.Host == "" || (broker.Scheme != "ws" && broker.Scheme != "wss") {
		return fmt.Errorf("broker_url must be a ws(s) URL, got %q", c.BrokerURL)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	if c.DedupWindow < 0 {
		return fmt.Errorf("dedup_window cannot be negative")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	return nil
}

// BrokerHost is the value sent in the STOMP CONNECT host header.
func (c Config) BrokerHost() string {
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
