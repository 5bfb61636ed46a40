package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dotside-studios/nfc-presence-agent/nfc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	content := `
[reader]
driver = "pn532uart"
port = "/dev/ttyUSB0"
sense_timeout = "500ms"

[server]
port = 9000
api_secret = "s3cret"

[journal]
enabled = false

[log]
level = "debug"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverPN532UART, cfg.Reader.Driver)
	assert.Equal(t, "/dev/ttyUSB0", cfg.Reader.Port)
	assert.Equal(t, 500*time.Millisecond, cfg.Reader.SenseTimeout.Duration)
	assert.Equal(t, nfc.DefaultStopTimeout, cfg.Reader.StopTimeout.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.Server.APISecret)
	assert.True(t, cfg.Server.MDNS)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, "debug", cfg.Log.Level)

	aid, err := cfg.AID()
	require.NoError(t, err)
	assert.Equal(t, nfc.DefaultAID, aid)
}

func TestLoadRejectsBadFiles(t *testing.T) {
	tests := map[string]string{
		"syntax":       "[reader\n",
		"duration":     "[reader]\nsense_timeout = \"soon\"\n",
		"validation":   "[reader]\ndriver = \"pcsc\"\n",
		"odd aid":      "[reader]\naid = \"F00\"\n",
		"log level":    "[log]\nlevel = \"chatty\"\n",
		"tls mismatch": "[server]\ncert_file = \"cert.pem\"\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"no driver", func(c *Config) { c.Reader.Driver = "none" }, ""},
		{"zero sense timeout", func(c *Config) { c.Reader.SenseTimeout.Duration = 0 }, "sense_timeout"},
		{"negative stop timeout", func(c *Config) { c.Reader.StopTimeout.Duration = -time.Second }, "stop_timeout"},
		{"non hex aid", func(c *Config) { c.Reader.AID = "F00000000100ZZ" }, "reader.aid"},
		{"short aid", func(c *Config) { c.Reader.AID = "F000" }, "reader.aid"},
		{"spaced aid", func(c *Config) { c.Reader.AID = "F0 00 00 00 01 00 01" }, ""},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"disabled server ignores port", func(c *Config) { c.Server.Enabled = false; c.Server.Port = 0 }, ""},
		{"journal without path", func(c *Config) { c.Journal.Path = "" }, "journal.path"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"negative reconnect", func(c *Config) { c.Reader.ReconnectInterval.Duration = -1 }, "reconnect_interval"},
		{"reconnect disabled", func(c *Config) { c.Reader.ReconnectInterval.Duration = 0 }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.ErrorContains(t, err, tt.wantErr)
			}
		})
	}
}

func TestServerListen(t *testing.T) {
	var s ServerConfig
	require.NoError(t, s.SetListen("127.0.0.1:9090"))
	assert.Equal(t, "127.0.0.1", s.Host)
	assert.Equal(t, 9090, s.Port)
	assert.Equal(t, "127.0.0.1:9090", s.Addr())

	require.NoError(t, s.SetListen(":18080"))
	assert.Equal(t, ":18080", s.Addr())

	assert.Error(t, s.SetListen("18080"))
	assert.Error(t, s.SetListen("host:http"))
}

func TestDurationText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(text))

	assert.Error(t, d.UnmarshalText([]byte("90")))
}
