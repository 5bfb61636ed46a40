// Package main runs the NFC presence agent: it watches a reader for tokens,
// resolves each token to a stable identity and publishes arrival and removal
// events over WebSocket.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dotside-studios/nfc-presence-agent/buildinfo"
	"github.com/dotside-studios/nfc-presence-agent/config"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
	"github.com/dotside-studios/nfc-presence-agent/nfc/pn532uart"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app = kingpin.New(buildinfo.Name, buildinfo.Description)

	configPath = app.Flag("config", "Path to the TOML config file. Created with defaults if missing.").Default(config.DefaultPath()).String()
	driverFlag = app.Flag("driver", "Reader driver: libnfc, pn532uart or none.").String()
	portFlag   = app.Flag("port", "Reader port selector. \"usb\" picks the first reader found.").String()
	listenFlag = app.Flag("listen", "HTTP listen address (host:port).").String()
	levelFlag  = app.Flag("log-level", "Log level: debug, info, warn or error.").String()

	run     = app.Command("run", "Detect tokens and publish presence events.").Default()
	devices = app.Command("devices", "List the readers the selected driver can see.")
	version = app.Command("version", "Print build information.")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if cmd == version.FullCommand() {
		fmt.Println(buildinfo.BuildInfo())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	switch cmd {
	case run.FullCommand():
		if err := runAgent(cfg); err != nil {
			log.Fatal(err)
		}
	case devices.FullCommand():
		if err := listDevices(cfg); err != nil {
			log.Fatal(err)
		}
	default:
		kingpin.FatalUsage("Unrecognized command")
	}
}

// loadConfig reads the config file and applies command line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}

	if *driverFlag != "" {
		cfg.Reader.Driver = *driverFlag
	}
	if *portFlag != "" {
		cfg.Reader.Port = *portFlag
	}
	if *listenFlag != "" {
		if err := cfg.Server.SetListen(*listenFlag); err != nil {
			return nil, err
		}
	}
	if *levelFlag != "" {
		cfg.Log.Level = *levelFlag
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Log.Apply(); err != nil {
		return nil, err
	}
	nfc.SetLogger(log.StandardLogger())
	return cfg, nil
}

func newManager(driver string) (nfc.Manager, error) {
	switch driver {
	case config.DriverLibnfc:
		return nfc.NewLibnfcManager(), nil
	case config.DriverPN532UART:
		return pn532uart.NewManager(), nil
	case config.DriverNone:
		return nfc.NewUnavailableManager("reader disabled by config"), nil
	}
	return nil, fmt.Errorf("unknown reader driver %q", driver)
}

func runAgent(cfg *config.Config) error {
	manager, err := newManager(cfg.Reader.Driver)
	if err != nil {
		return err
	}

	agent, err := NewAgent(cfg, manager)
	if err != nil {
		return err
	}
	if err := agent.Start(); err != nil {
		if agent.Journal != nil {
			agent.Journal.Close()
		}
		return err
	}
	defer agent.Stop()

	log.WithFields(log.Fields{
		"version": buildinfo.FullVersion(),
		"driver":  cfg.Reader.Driver,
		"port":    cfg.Reader.Port,
	}).Info("NFC presence agent running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info("Shutdown signal received")
	return nil
}

func listDevices(cfg *config.Config) error {
	manager, err := newManager(cfg.Reader.Driver)
	if err != nil {
		return err
	}

	ports, err := manager.ListDevices()
	if errors.Is(err, nfc.ErrReaderUnavailable) {
		fmt.Println("No reader driver enabled.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("list devices: %w", err)
	}

	if len(ports) == 0 {
		fmt.Println("No NFC readers found.")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}
