package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config file and environment leave a value unset.
const (
	DefaultEditWindow        = 15 * time.Minute
	DefaultUnreadInterval    = 10 * time.Second
	DefaultWatermarkInterval = 30 * time.Second
	DefaultRetentionCron     = "0 3 * * *"
)

type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	TLS     struct {
		CertFile string `yaml:"cert_file"`
		KeyFile  string `yaml:"key_file"`
	} `yaml:"tls"`
}

type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ChatConfig controls the messaging core: the bounded edit/delete window and
// the audit retention of tombstoned messages and old revisions.
type ChatConfig struct {
	EditWindow time.Duration `yaml:"edit_window"`
	MaxBodyLen int           `yaml:"max_body_len"`
	Retention  struct {
		Enabled bool          `yaml:"enabled"`
		Cron    string        `yaml:"cron"`
		Period  time.Duration `yaml:"period"`
	} `yaml:"retention"`
}

// NotifyConfig names the watched collections the watermark engine accepts.
type NotifyConfig struct {
	Collections []string `yaml:"collections"`
}

// PollingConfig carries the default intervals handed to polling clients.
type PollingConfig struct {
	UnreadInterval    time.Duration `yaml:"unread_interval"`
	WatermarkInterval time.Duration `yaml:"watermark_interval"`
}

type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
	IPWhitelist []string `yaml:"ip_whitelist"`
	APIKeys     struct {
		Backend  []string `yaml:"backend"`
		Frontend []string `yaml:"frontend"`
	} `yaml:"api_keys"`
}

// DirectoryEntry is one row of the static participant directory used by
// deployments that do not run the external directory service. Each entry
// lists the counterparts one participant is allowed to message.
type DirectoryEntry struct {
	ID           string             `yaml:"id"`
	Role         string             `yaml:"role"`
	Counterparts []DirectoryContact `yaml:"counterparts"`
}

type DirectoryContact struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"` // text|json
	AuditDir string `yaml:"audit_dir"`
}

type Config struct {
	Server    ServerConfig     `yaml:"server"`
	Storage   StorageConfig    `yaml:"storage"`
	Chat      ChatConfig       `yaml:"chat"`
	Notify    NotifyConfig     `yaml:"notify"`
	Polling   PollingConfig    `yaml:"polling"`
	Security  SecurityConfig   `yaml:"security"`
	Logging   LoggingConfig    `yaml:"logging"`
	Directory []DirectoryEntry `yaml:"directory"`
}

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// EditWindow returns the configured mutation window, defaulted when unset.
func (c *Config) EditWindow() time.Duration {
	if c.Chat.EditWindow > 0 {
		return c.Chat.EditWindow
	}
	return DefaultEditWindow
}

// Load reads the YAML config at path. A missing file is an error; callers
// that tolerate absence (tests, env-only deployments) fall back to an empty
// Config in LoadEffective.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// RuntimeConfig holds derived runtime values other packages query after
// startup has merged file + env (API key sets used for auth and signing).
type RuntimeConfig struct {
	BackendKeys  map[string]struct{}
	FrontendKeys map[string]struct{}
	SigningKeys  map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

func copyKeys(m map[string]struct{}) map[string]struct{} {
	out := map[string]struct{}{}
	for k := range m {
		out[k] = struct{}{}
	}
	return out
}

// GetBackendKeys returns a copy of configured backend API keys.
func GetBackendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.BackendKeys)
}

// GetFrontendKeys returns a copy of configured frontend API keys.
func GetFrontendKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.FrontendKeys)
}

// GetSigningKeys returns a copy of configured identity-signing keys.
func GetSigningKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	if runtimeCfg == nil {
		return map[string]struct{}{}
	}
	return copyKeys(runtimeCfg.SigningKeys)
}
