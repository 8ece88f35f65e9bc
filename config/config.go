package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the server configuration.
type Config struct {
	// Host and Port are the listen address.
	Host string `json:"host"`
	Port int    `json:"port"`

	// Private gates the handshake behind Password.
	Private  bool   `json:"private"`
	Password string `json:"password"`

	// RoomChat enables relaying chat messages between room members.
	RoomChat bool `json:"roomChat"`

	// Debug lowers the log level to debug.
	Debug bool `json:"debug"`

	// CertFile and KeyFile enable TLS (wss) when both are set. When the pair
	// cannot be loaded the server falls back to plain ws with a warning.
	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
}

// Default returns the configuration written on first run.
func Default() *Config {
	return &Config{
		Host: "0.0.0.0",
		Port: 14157,
	}
}

// Load reads the configuration file at path, writing the defaults there
// first if it does not exist. created reports whether a default file was
// generated. Environment overrides apply after the file is read.
func Load(path string) (cfg *Config, created bool, err error) {
	cfg = Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		out, merr := json.MarshalIndent(cfg, "", "  ")
		if merr != nil {
			return nil, false, fmt.Errorf("failed to encode default config: %w", merr)
		}
		if werr := os.WriteFile(path, out, 0o644); werr != nil {
			return nil, false, fmt.Errorf("failed to write default config: %w", werr)
		}
		created = true
	case err != nil:
		return nil, false, fmt.Errorf("failed to read config file: %w", err)
	default:
		if uerr := json.Unmarshal(data, cfg); uerr != nil {
			return nil, false, fmt.Errorf("failed to parse config file: %w", uerr)
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, created, err
	}
	return cfg, created, nil
}

// applyEnv overrides file values with environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("HOST"); v != "" {
		c.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("PASSWORD"); v != "" {
		c.Password = v
	}
	if v := os.Getenv("PRIVATE"); v != "" {
		c.Private = v == "true" || v == "1"
	}
	if v := os.Getenv("ROOM_CHAT"); v != "" {
		c.RoomChat = v == "true" || v == "1"
	}
	if v := os.Getenv("DEBUG"); v != "" {
		c.Debug = v == "true" || v == "1"
	}
}

func (c *Config) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// TLSEnabled reports whether a certificate pair is configured.
func (c *Config) TLSEnabled() bool {
	return c.CertFile != "" && c.KeyFile != ""
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
