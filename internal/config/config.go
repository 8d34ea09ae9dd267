package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Dispatch policies
const (
	ClearAlways       = "always"
	ClearRetainFailed = "retain_failed"

	UnassignedSkip  = "skip"
	UnassignedAbort = "abort"
)

// Bridge modes
const (
	BridgeLocal     = "local"
	BridgeWebSocket = "websocket"
	BridgeHTTP      = "http"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Ticket    TicketConfig    `yaml:"ticket"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Log       LogConfig       `yaml:"log"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Printers  []PrinterConfig `yaml:"printers"`

	// ConfigPath is the path to the config file (not serialized)
	ConfigPath string `yaml:"-"`
}

// ServerConfig represents the local server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`

	// APIKey, when set, is required in the X-API-Key header of the bridge
	// endpoints (/api/print and /ws)
	APIKey string `yaml:"api_key,omitempty"`
}

// BridgeConfig selects the printing bridge the dispatcher talks to.
// "local" drives the configured printers in-process, "websocket" and "http"
// talk to another print server.
type BridgeConfig struct {
	Mode     string `yaml:"mode"`
	Endpoint string `yaml:"endpoint,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`

	RequestTimeout    time.Duration `yaml:"request_timeout"`
	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
	PingInterval      time.Duration `yaml:"ping_interval"`
}

// DispatchConfig holds the ledger policies applied after a KOT dispatch
type DispatchConfig struct {
	ClearPolicy      string `yaml:"clear_policy"`
	UnassignedPolicy string `yaml:"unassigned_policy"`
}

// TicketConfig holds the fixed text printed around tickets
type TicketConfig struct {
	StoreName string `yaml:"store_name"`
	Header    string `yaml:"header,omitempty"`
	Footer    string `yaml:"footer,omitempty"`
}

// JobsConfig configures print job history
type JobsConfig struct {
	Capacity int    `yaml:"capacity"`
	RedisURL string `yaml:"redis_url,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	Level          string `yaml:"level"`
	BufferCapacity int    `yaml:"buffer_capacity"`
}

// DiscoveryConfig configures the port-probe printer scan
type DiscoveryConfig struct {
	Subnets []string      `yaml:"subnets"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	Workers int           `yaml:"workers"`
}

// PrinterConfig represents a printer configuration
type PrinterConfig struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"` // "network" or "serial"
	Address    string `yaml:"address,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Device     string `yaml:"device,omitempty"`
	BaudRate   int    `yaml:"baud_rate,omitempty"`
	CodePage   string `yaml:"code_page,omitempty"`
	PaperWidth int    `yaml:"paper_width,omitempty"` // 58 or 80 (mm)
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
			Host: "0.0.0.0",
		},
		Bridge: BridgeConfig{
			Mode:              BridgeLocal,
			RequestTimeout:    15 * time.Second,
			ReconnectDelay:    1 * time.Second,
			MaxReconnectDelay: 30 * time.Second,
			PingInterval:      30 * time.Second,
		},
		Dispatch: DispatchConfig{
			ClearPolicy:      ClearAlways,
			UnassignedPolicy: UnassignedSkip,
		},
		Ticket: TicketConfig{
			StoreName: "Store Name",
		},
		Jobs: JobsConfig{
			Capacity: 50,
			Prefix:   "kotprint:jobs:",
		},
		Log: LogConfig{
			Level:          "info",
			BufferCapacity: 500,
		},
		Discovery: DiscoveryConfig{
			Subnets: []string{"192.168.1.", "192.168.0.", "10.0.0."},
			Port:    9100,
			Timeout: 100 * time.Millisecond,
			Workers: 50,
		},
		Printers: []PrinterConfig{},
	}
}

// SearchPaths lists where Load looks when no explicit path is given
var SearchPaths = []string{
	"config.yaml",
	"configs/config.yaml",
	"/etc/kotprint/config.yaml",
}

// Load loads configuration from path, or from the first readable file in
// SearchPaths when path is empty.
func Load(path string) (*Config, error) {
	paths := SearchPaths
	if path != "" {
		paths = []string{path}
	}

	var data []byte
	var err error
	var loadedPath string

	for _, p := range paths {
		data, err = os.ReadFile(p)
		if err == nil {
			loadedPath = p
			break
		}
	}

	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", loadedPath, err)
	}

	cfg.ConfigPath = loadedPath
	return cfg, cfg.Validate()
}

// Validate checks policy names and printer definitions
func (c *Config) Validate() error {
	var errs []error

	switch c.Dispatch.ClearPolicy {
	case ClearAlways, ClearRetainFailed:
	default:
		errs = append(errs, fmt.Errorf("dispatch.clear_policy: unknown policy %q", c.Dispatch.ClearPolicy))
	}

	switch c.Dispatch.UnassignedPolicy {
	case UnassignedSkip, UnassignedAbort:
	default:
		errs = append(errs, fmt.Errorf("dispatch.unassigned_policy: unknown policy %q", c.Dispatch.UnassignedPolicy))
	}

	switch c.Bridge.Mode {
	case BridgeLocal:
	case BridgeWebSocket, BridgeHTTP:
		if c.Bridge.Endpoint == "" {
			errs = append(errs, fmt.Errorf("bridge.endpoint is required in %s mode", c.Bridge.Mode))
		}
	default:
		errs = append(errs, fmt.Errorf("bridge.mode: unknown mode %q", c.Bridge.Mode))
	}

	seen := make(map[string]bool)
	for i, p := range c.Printers {
		if p.ID == "" {
			errs = append(errs, fmt.Errorf("printers[%d]: id is required", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Errorf("printers[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true

		switch p.Type {
		case "network":
			if p.Address == "" {
				errs = append(errs, fmt.Errorf("printer %s: address is required", p.ID))
			}
		case "serial":
			if p.Device == "" {
				errs = append(errs, fmt.Errorf("printer %s: device is required", p.ID))
			}
		default:
			errs = append(errs, fmt.Errorf("printer %s: unknown type %q", p.ID, p.Type))
		}
	}

	return errors.Join(errs...)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
