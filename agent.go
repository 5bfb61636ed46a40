package main

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dotside-studios/nfc-presence-agent/config"
	"github.com/dotside-studios/nfc-presence-agent/journal"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
	"github.com/dotside-studios/nfc-presence-agent/server"
	log "github.com/sirupsen/logrus"
)

// Agent wires the detector to its consumers: the event server and the
// journal. Either consumer may be disabled by config.
type Agent struct {
	Detector *nfc.Detector
	Server   *server.Server   // nil when the server is disabled
	Journal  *journal.Journal // nil when the journal is disabled

	reconnect time.Duration
	lost      chan struct{} // the open reader stopped answering

	mu      sync.Mutex
	running bool
	stopped bool
	quit    chan struct{}
	wg      sync.WaitGroup
}

func NewAgent(cfg *config.Config, manager nfc.Manager) (*Agent, error) {
	aid, err := cfg.AID()
	if err != nil {
		return nil, fmt.Errorf("reader aid: %w", err)
	}

	a := &Agent{
		reconnect: cfg.Reader.ReconnectInterval.Duration,
		lost:      make(chan struct{}, 1),
	}
	handlers := nfc.MultiHandler{nfc.HandlerFuncs{Error: a.onReaderError}}

	if cfg.Journal.Enabled {
		a.Journal, err = journal.Open(cfg.Journal.Path, journal.Options{
			Retention: cfg.Journal.Retention.Duration,
			Reader:    cfg.Reader.Port,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, a.Journal)
	}

	if cfg.Server.Enabled {
		a.Server = server.New(server.Config{
			Addr:      cfg.Server.Addr(),
			APISecret: cfg.Server.APISecret,
			MDNS:      cfg.Server.MDNS,
			CertFile:  cfg.Server.CertFile,
			KeyFile:   cfg.Server.KeyFile,
			Reader:    cfg.Reader.Port,
			Events:    journalLog(a.Journal),
		})
		handlers = append(handlers, a.Server)
	}

	a.Detector = nfc.NewDetector(manager, handlers, nfc.DetectorConfig{
		Port:         cfg.Reader.Port,
		SenseTimeout: cfg.Reader.SenseTimeout.Duration,
		StopTimeout:  cfg.Reader.StopTimeout.Duration,
		AID:          aid,
	})
	if a.Server != nil {
		a.Server.SetStatus(a.Detector)
	}

	return a, nil
}

// journalLog keeps a nil *Journal from becoming a non-nil interface.
func journalLog(j *journal.Journal) server.EventLog {
	if j == nil {
		return nil
	}
	return j
}

// onReaderError runs on the polling goroutine. The detector keeps polling
// through sense failures, so a reader that has gone away is handed to
// supervise to be reopened.
func (a *Agent) onReaderError(err error) {
	if !nfc.IsDeviceClosedError(err) {
		return
	}
	select {
	case a.lost <- struct{}{}:
	default:
	}
}

// Start brings up the server and starts detecting. A reader that goes away
// while polling is reopened at once; a stopped detector is restarted every
// reconnect interval until Stop.
func (a *Agent) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return errors.New("agent is already running")
	}
	if a.stopped {
		return errors.New("agent was stopped and cannot be restarted")
	}

	if a.Server != nil {
		if err := a.Server.Start(); err != nil {
			return err
		}
	}

	a.Detector.Start()
	a.running = true
	a.quit = make(chan struct{})

	a.wg.Add(1)
	go a.supervise(a.quit)

	log.WithField("port", a.Detector.Port()).Info("Agent started")
	return nil
}

// supervise restarts the detector after it gave up on the reader or the
// reader went away under it.
func (a *Agent) supervise(quit chan struct{}) {
	defer a.wg.Done()

	var tick <-chan time.Time
	if a.reconnect > 0 {
		ticker := time.NewTicker(a.reconnect)
		defer ticker.Stop()
		tick = ticker.C
	}

	entry := log.WithField("port", a.Detector.Port())
	for {
		select {
		case <-quit:
			return
		case <-a.lost:
			// Connect failures are left to the ticker.
			if a.Detector.State() != nfc.StatePolling {
				continue
			}
			entry.Warn("NFC reader went away, reopening")
			a.Detector.Stop()
			a.Detector.Start()
		case <-tick:
			if a.Detector.State() == nfc.StateStopped {
				entry.Info("Reconnecting to NFC reader")
				a.Detector.Start()
			}
		}
	}
}

// Stop shuts down the server first so no client sees a half-stopped
// agent, then the detector, then the journal.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		log.Debug("Agent is not running")
		return
	}
	log.Info("Stopping agent...")

	close(a.quit)
	a.wg.Wait()

	if a.Server != nil {
		a.Server.Stop()
	}
	a.Detector.Stop()
	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			log.Errorf("Closing journal: %v", err)
		}
	}

	a.running = false
	a.stopped = true
	log.Info("Agent stopped successfully")
}
