package app

import (
	"fmt"
	"strings"
	"vkusync-backend/internal/notify"
	"vkusync-backend/internal/plugins"
	"vkusync-backend/internal/portal"
	"vkusync-backend/pkg/configutil"
)

type PortalConfig struct {
	BaseUrl string `json:"base_url"`
}

type BrowserConfig struct {
	// Driver is "chromedp" or "http".
	Driver            string              `json:"driver"`
	Headless          bool                `json:"headless"`
	ExecPath          string              `json:"exec_path"`
	UserAgent         string              `json:"user_agent"`
	CloudflareBypass  bool                `json:"cloudflare_bypass"`
	RequestsPerSecond float64             `json:"requests_per_second"`
	Timeout           configutil.Duration `json:"timeout"`
	WaitTimeout       configutil.Duration `json:"wait_timeout"`
	// DumpDir is where the http driver dumps portal exchanges, empty disables it.
	DumpDir string `json:"dump_dir"`
}

type SessionConfig struct {
	Dir          string              `json:"dir"`
	LoginTimeout configutil.Duration `json:"login_timeout"`
}

type StoreConfig struct {
	// Kind is "sqlite" or "mongo". libsql urls go through "sqlite".
	Kind          string `json:"kind"`
	Database      string `json:"database"`
	MongoUri      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`
}

type ServerConfig struct {
	Port              int     `json:"port"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	// TokenCacheTTL is how long a revoked token can still be accepted by a running server.
	TokenCacheTTL configutil.Duration `json:"token_cache_ttl"`
}

type ResyncConfig struct {
	// Schedule is a cron spec in the portal's timezone, empty disables scheduled syncs.
	Schedule string `json:"schedule"`
}

type PluginsConfig struct {
	Webhooks []plugins.WebhookConfig `json:"webhooks"`
}

type Config struct {
	Portal  PortalConfig      `json:"portal"`
	Browser BrowserConfig     `json:"browser"`
	Session SessionConfig     `json:"session"`
	Store   StoreConfig       `json:"store"`
	Server  ServerConfig      `json:"server"`
	Resync  ResyncConfig      `json:"resync"`
	Smtp    notify.SmtpConfig `json:"smtp"`
	Plugins PluginsConfig     `json:"plugins"`
}

const (
	StoreSqlite = "sqlite"
	StoreMongo  = "mongo"
)

// WithDefaults fills every unset field that has a sensible default.
func (c Config) WithDefaults() Config {
	if c.Portal.BaseUrl == "" {
		c.Portal.BaseUrl = portal.DefaultBaseUrl
	}
	if c.Browser.Driver == "" {
		c.Browser.Driver = "chromedp"
	}
	if c.Session.Dir == "" {
		c.Session.Dir = "sessions"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreSqlite
	}
	c.Store.Kind = strings.ToLower(c.Store.Kind)
	if c.Store.Kind == StoreSqlite && c.Store.Database == "" {
		c.Store.Database = "vkusync.db"
	}
	if c.Store.Kind == StoreMongo && c.Store.MongoDatabase == "" {
		c.Store.MongoDatabase = "vkusync"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	return c
}

func (c Config) Validate() error {
	switch c.Store.Kind {
	case StoreSqlite:
		if c.Store.Database == "" {
			return fmt.Errorf("store.database is required for the sqlite store")
		}
	case StoreMongo:
		if c.Store.MongoUri == "" {
			return fmt.Errorf("store.mongo_uri is required for the mongo store")
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	seen := map[string]bool{}
	for _, hook := range c.Plugins.Webhooks {
		if hook.ID == "" || hook.Url == "" {
			return fmt.Errorf("webhook plugins need both an id and a url")
		}
		if seen[hook.ID] {
			return fmt.Errorf("webhook plugin %q is configured twice", hook.ID)
		}
		seen[hook.ID] = true
	}
	return nil
}

// ReadConfig reads name (and its .local override) and applies the defaults.
func ReadConfig(name string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](name)
	if err != nil {
		return Config{}, err
	}
	cfg = cfg.WithDefaults()
	return cfg, cfg.Validate()
}
