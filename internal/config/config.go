// Package config loads the gateway's YAML configuration file, applies
// the documented environment variable overrides, and watches the file
// for changes so non-secret options can be hot-reloaded (spec §6).
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config is the gateway's top-level configuration.
type Config struct {
	DataDir  string `yaml:"data-dir"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log-level"`
	LogJSON  bool   `yaml:"log-json"`
	LogFile  string `yaml:"log-file"`

	Pool PoolConfig `yaml:"pool"`

	JWTSecret     string `yaml:"-"`
	AdminUsername string `yaml:"-"`
	AdminPassword string `yaml:"-"`

	Search SearchConfig `yaml:"search"`
}

// PoolConfig controls account-pool defaults.
type PoolConfig struct {
	MaxAccounts         int           `yaml:"max-accounts"`
	DefaultCooldown     time.Duration `yaml:"default-cooldown"`
	DefaultProjectID    string        `yaml:"default-project-id"`
	TokenRefreshSkew    time.Duration `yaml:"token-refresh-skew"`
	TokenRefreshTimeout time.Duration `yaml:"token-refresh-timeout"`
	UpstreamCallTimeout time.Duration `yaml:"upstream-call-timeout"`
}

// SearchConfig carries the out-of-scope web-search shim's settings,
// consumed only by the external collaborator behind that interface.
type SearchConfig struct {
	Provider   string `yaml:"-"`
	SerperKey  string `yaml:"-"`
	BingKey    string `yaml:"-"`
	MaxResults int    `yaml:"-"`
	Enabled    bool   `yaml:"-"`
}

func defaults() Config {
	return Config{
		DataDir:  "./data",
		Port:     8080,
		LogLevel: "info",
		Pool: PoolConfig{
			MaxAccounts:         10,
			DefaultCooldown:     60 * time.Second,
			TokenRefreshSkew:    60 * time.Second,
			TokenRefreshTimeout: 30 * time.Second,
			UpstreamCallTimeout: 120 * time.Second,
		},
	}
}

// Load reads the YAML file at path (if it exists), applies defaults for
// anything unset, then layers environment variable overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	cfg.Search.Provider = os.Getenv("SEARCH_PROVIDER")
	cfg.Search.SerperKey = os.Getenv("SERPER_API_KEY")
	cfg.Search.BingKey = os.Getenv("BING_API_KEY")
	if v := os.Getenv("SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Search.MaxResults = n
		}
	}
	if v := strings.ToLower(os.Getenv("ENABLE_WEB_SEARCH")); v != "" {
		cfg.Search.Enabled = v == "1" || v == "true" || v == "yes"
	}
}

// Watcher reloads non-secret options from disk whenever the config file
// changes, mirroring the hot-reload pattern common across this
// ecosystem's gateways. Secrets (env-sourced fields) are never touched
// by a reload.
type Watcher struct {
	mu     sync.RWMutex
	path   string
	cfg    *Config
	notify *fsnotify.Watcher
	stop   chan struct{}
}

// NewWatcher starts watching path for changes, seeded with the initial
// config. Call Close to stop watching.
func NewWatcher(path string, initial *Config) (*Watcher, error) {
	w := &Watcher{path: path, cfg: initial, stop: make(chan struct{})}
	if path == "" {
		return w, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w.notify = fw

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			reloaded, err := Load(w.path)
			if err != nil {
				log.Warnf("config: reload failed: %v", err)
				continue
			}
			w.mu.Lock()
			w.cfg = reloaded
			w.mu.Unlock()
			log.Info("config: reloaded from disk")
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			log.Warnf("config: watcher error: %v", err)
		}
	}
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cfg
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.stop)
	if w.notify != nil {
		return w.notify.Close()
	}
	return nil
}
