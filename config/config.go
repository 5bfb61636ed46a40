// Package config loads the agent configuration from a TOML file.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dotside-studios/nfc-presence-agent/buildinfo"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
	log "github.com/sirupsen/logrus"
)

// Reader drivers
const (
	DriverLibnfc    = "libnfc"
	DriverPN532UART = "pn532uart"
	DriverNone      = "none"
)

// FileName is the config file name inside the config directory.
const FileName = "config.toml"

// Duration is a time.Duration written as a Go duration string ("1s").
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Reader  ReaderConfig  `toml:"reader"`
	Server  ServerConfig  `toml:"server"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

type ReaderConfig struct {
	Driver       string   `toml:"driver"`
	Port         string   `toml:"port"`
	SenseTimeout Duration `toml:"sense_timeout"`
	StopTimeout  Duration `toml:"stop_timeout"`
	AID          string   `toml:"aid"`

	// ReconnectInterval is how often a stopped reader is reopened.
	// Zero disables reconnecting.
	ReconnectInterval Duration `toml:"reconnect_interval"`
}

type ServerConfig struct {
	Enabled   bool   `toml:"enabled"`
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	APISecret string `toml:"api_secret"`
	MDNS      bool   `toml:"mdns"`
	CertFile  string `toml:"cert_file"`
	KeyFile   string `toml:"key_file"`
}

type JournalConfig struct {
	Enabled   bool     `toml:"enabled"`
	Path      string   `toml:"path"`
	Retention Duration `toml:"retention"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Driver:       DriverLibnfc,
			Port:         nfc.PortAutoDetect,
			SenseTimeout: Duration{nfc.DefaultSenseTimeout},
			StopTimeout:  Duration{nfc.DefaultStopTimeout},
			AID:          nfc.FormatUID(nfc.DefaultAID),

			ReconnectInterval: Duration{5 * time.Second},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    18080,
			MDNS:    true,
		},
		Journal: JournalConfig{
			Enabled:   true,
			Path:      "journal.db",
			Retention: Duration{24 * time.Hour},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config file path under the user config directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(dir, buildinfo.DirName, FileName)
}

// Load reads the config at path. A missing file is created with defaults.
// Keys absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := Write(path, cfg); err != nil {
			log.WithField("path", path).Warnf("Could not write default config: %v", err)
		} else {
			log.WithField("path", path).Info("Created default config")
		}
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, key := range md.Undecoded() {
		log.WithField("path", path).Warnf("Unknown config key %q", key.String())
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Write saves cfg to path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Validate checks values that would otherwise fail at runtime.
func (c *Config) Validate() error {
	var errs []error

	switch c.Reader.Driver {
	case DriverLibnfc, DriverPN532UART, DriverNone:
	default:
		errs = append(errs, fmt.Errorf("reader.driver: unknown driver %q", c.Reader.Driver))
	}
	if c.Reader.SenseTimeout.Duration <= 0 {
		errs = append(errs, errors.New("reader.sense_timeout must be positive"))
	}
	if c.Reader.StopTimeout.Duration <= 0 {
		errs = append(errs, errors.New("reader.stop_timeout must be positive"))
	}
	if c.Reader.ReconnectInterval.Duration < 0 {
		errs = append(errs, errors.New("reader.reconnect_interval must not be negative"))
	}
	if _, err := c.AID(); err != nil {
		errs = append(errs, fmt.Errorf("reader.aid: %w", err))
	}

	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", c.Server.Port))
	}
	if (c.Server.CertFile == "") != (c.Server.KeyFile == "") {
		errs = append(errs, errors.New("server.cert_file and server.key_file must be set together"))
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if c.Journal.Retention.Duration < 0 {
		errs = append(errs, errors.New("journal.retention must not be negative"))
	}

	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Addr returns the server listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// SetListen overrides host and port from a "host:port" address.
func (s *ServerConfig) SetListen(addr string) error {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("listen address %q: %w", addr, err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return fmt.Errorf("listen port %q: %w", port, err)
	}
	s.Host, s.Port = host, p
	return nil
}

// AID decodes the configured application identifier.
func (c *Config) AID() ([]byte, error) {
	aid := strings.ReplaceAll(c.Reader.AID, " ", "")
	if aid == "" {
		return nil, errors.New("must not be empty")
	}
	b, err := hex.DecodeString(aid)
	if err != nil {
		return nil, err
	}
	if len(b) < 5 || len(b) > 16 {
		return nil, fmt.Errorf("length %d outside 5..16 bytes", len(b))
	}
	return b, nil
}

// Apply configures the standard logrus logger from the log section.
func (l LogConfig) Apply() error {
	level, err := log.ParseLevel(l.Level)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	if l.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
