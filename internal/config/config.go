// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/petervdpas/fcast-go/internal/util"
)

type Config struct {
	Sender    Sender    `json:"sender"`
	Discovery Discovery `json:"discovery"`
	Files     Files     `json:"files"`
	Storage   Storage   `json:"storage"`
}

// Sender controls how a Controller dials and retries a connection to a
// receiver.
type Sender struct {
	AppName           string `json:"app_name"`
	AppVersion        string `json:"app_version"`
	ConnectTimeoutMs  int    `json:"connect_timeout_ms"`
	ReconnectDelayMs  int    `json:"reconnect_delay_ms"`
	CommandQueueDepth int    `json:"command_queue_depth"`
}

// ConnectTimeout returns Sender.ConnectTimeoutMs as a time.Duration.
func (s Sender) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutMs) * time.Millisecond
}

// ReconnectDelay returns Sender.ReconnectDelayMs as a time.Duration.
func (s Sender) ReconnectDelay() time.Duration {
	return time.Duration(s.ReconnectDelayMs) * time.Millisecond
}

// Discovery controls the mDNS browse behind a Discovery session.
type Discovery struct {
	MdnsTag         string `json:"mdns_tag"`
	EnableFCast     bool   `json:"enable_fcast"`
	EnableChromecast bool  `json:"enable_chromecast"`
}

// Files controls the outgoing HTTP file server used to hand receivers
// local media.
type Files struct {
	MaxPartialBytes int `json:"max_partial_bytes"`
}

// Storage controls device history persistence.
type Storage struct {
	DataDir          string `json:"data_dir"`
	RetentionDays    int    `json:"retention_days"`
}

func Default() Config {
	return Config{
		Sender: Sender{
			AppName:           "fcast-go",
			AppVersion:        "1.0.0",
			ConnectTimeoutMs:  5000,
			ReconnectDelayMs:  2000,
			CommandQueueDepth: 32,
		},
		Discovery: Discovery{
			MdnsTag:          "fcast-go-mdns",
			EnableFCast:      true,
			EnableChromecast: true,
		},
		Files: Files{
			MaxPartialBytes: 1 << 20,
		},
		Storage: Storage{
			DataDir:       "data",
			RetentionDays: 30,
		},
	}
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sender.AppName) == "" {
		return errors.New("sender.app_name is required")
	}
	if strings.TrimSpace(c.Sender.AppVersion) == "" {
		return errors.New("sender.app_version is required")
	}
	if c.Sender.ConnectTimeoutMs <= 0 {
		return errors.New("sender.connect_timeout_ms must be > 0")
	}
	if c.Sender.ReconnectDelayMs <= 0 {
		return errors.New("sender.reconnect_delay_ms must be > 0")
	}
	if c.Sender.CommandQueueDepth <= 0 {
		return errors.New("sender.command_queue_depth must be > 0")
	}

	if strings.TrimSpace(c.Discovery.MdnsTag) == "" {
		return errors.New("discovery.mdns_tag is required")
	}
	if !c.Discovery.EnableFCast && !c.Discovery.EnableChromecast {
		return errors.New("discovery: at least one of enable_fcast/enable_chromecast must be true")
	}

	if c.Files.MaxPartialBytes <= 0 {
		return errors.New("files.max_partial_bytes must be > 0")
	}

	if strings.TrimSpace(c.Storage.DataDir) == "" {
		return errors.New("storage.data_dir is required")
	}
	if c.Storage.RetentionDays <= 0 {
		return errors.New("storage.retention_days must be > 0")
	}

	return nil
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	// Start from defaults so missing JSON fields remain initialized.
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func Save(path string, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	return util.WriteJSONFile(path, cfg)
}

// Ensure loads config if it exists; otherwise creates a default config file.
// Returns (cfg, createdNew, err).
func Ensure(path string) (Config, bool, error) {
	if _, err := os.Stat(path); err == nil {
		cfg, err := Load(path)
		return cfg, false, err
	} else if !os.IsNotExist(err) {
		return Config{}, false, err
	}

	cfg := Default()
	if err := Save(path, cfg); err != nil {
		return Config{}, false, fmt.Errorf("create default config: %w", err)
	}
	return cfg, true, nil
}
