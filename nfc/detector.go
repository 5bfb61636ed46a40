package nfc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// DetectorState is the lifecycle state of a Detector.
type DetectorState int32

const (
	StateStopped DetectorState = iota
	StateConnecting
	StatePolling
)

func (s DetectorState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateConnecting:
		return "connecting"
	case StatePolling:
		return "polling"
	default:
		return fmt.Sprintf("DetectorState(%d)", int32(s))
	}
}

// DetectorConfig configures a Detector. Zero values take the defaults.
type DetectorConfig struct {
	// Port selects the reader; "usb" or "" auto-detects.
	Port string

	// SenseTimeout bounds a single Sense call.
	SenseTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the polling goroutine.
	StopTimeout time.Duration

	// ErrorBackoff is the pause after a failed iteration.
	ErrorBackoff time.Duration

	// AID is the application selected when resolving identities.
	AID []byte
}

func (c DetectorConfig) withDefaults() DetectorConfig {
	if c.Port == "" {
		c.Port = PortAutoDetect
	}
	if c.SenseTimeout <= 0 {
		c.SenseTimeout = DefaultSenseTimeout
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	return c
}

// Detector polls a reader and reports token arrival and removal edges to a
// Handler. Repeated senses of the same token are collapsed into one arrival;
// a run of empty senses produces at most one removal.
//
// A failed connection ends the run; call Start again to retry.
type Detector struct {
	manager  Manager
	handler  Handler
	resolver *Resolver
	cfg      DetectorConfig

	running   atomic.Bool
	connected atomic.Bool // device != nil, readable without mu
	state     atomic.Int32
	current   atomic.Value // string

	mu     sync.Mutex // guards device, cancel, done
	device Device
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDetector creates a stopped Detector. handler may be nil, in which case
// events are dropped.
func NewDetector(manager Manager, handler Handler, cfg DetectorConfig) *Detector {
	cfg = cfg.withDefaults()
	d := &Detector{
		manager:  manager,
		handler:  handler,
		resolver: NewResolver(cfg.AID),
		cfg:      cfg,
	}
	d.current.Store("")
	return d
}

// Start launches the polling goroutine and returns immediately. It is a
// no-op while the detector is running.
func (d *Detector) Start() {
	d.mu.Lock()
	if !d.running.CompareAndSwap(false, true) {
		d.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	d.cancel = cancel
	d.done = done
	changed := d.setState(StateConnecting)
	d.mu.Unlock()

	if changed {
		d.notifyState(StateConnecting)
	}
	go d.run(ctx, done)
}

// Stop ends the current run. It waits up to StopTimeout for the polling
// goroutine, then closes the reader whether or not the goroutine finished.
// Stop on a stopped detector is a no-op.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.running.Store(false)
	d.mu.Unlock()

	if cancel != nil {
		cancel()
		select {
		case <-done:
		case <-time.After(d.cfg.StopTimeout):
			logger.WithField("port", d.cfg.Port).Warnf("Polling goroutine did not exit within %s", d.cfg.StopTimeout)
		}
	}

	d.closeDevice()
	d.current.Store("")
	d.transition(StateStopped)
}

// IsConnected reports whether the detector is running with an open reader.
// It never blocks, so handlers may call it.
func (d *Detector) IsConnected() bool {
	return d.running.Load() && d.connected.Load()
}

// State returns the current lifecycle state.
func (d *Detector) State() DetectorState {
	return DetectorState(d.state.Load())
}

// CurrentUID returns the identity of the token in the field, or "" if none.
func (d *Detector) CurrentUID() string {
	return d.current.Load().(string)
}

// Port returns the configured port selector.
func (d *Detector) Port() string {
	return d.cfg.Port
}

func (d *Detector) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	entry := logger.WithField("port", d.cfg.Port)

	dev, err := d.manager.OpenDevice(d.cfg.Port)
	if err != nil {
		entry.WithError(err).Error("Failed to connect to NFC reader")
		d.reportError(fmt.Errorf("connect %s: %w", d.cfg.Port, err))
		d.abandon(done)
		return
	}

	d.mu.Lock()
	if ctx.Err() != nil {
		d.mu.Unlock()
		dev.Close()
		return
	}
	d.device = dev
	d.connected.Store(true)
	changed := d.setState(StatePolling)
	d.mu.Unlock()

	if changed {
		d.notifyState(StatePolling)
	}

	entry = entry.WithField("device", dev.String())
	entry.Info("NFC reader connected, polling for tokens")

	d.poll(ctx, dev, entry)
	entry.Debug("Polling goroutine exiting")
}

// poll is the sense loop. current is the session state and is only ever
// touched here.
func (d *Detector) poll(ctx context.Context, dev Device, entry log.FieldLogger) {
	var current, lastErr string

	for d.running.Load() && ctx.Err() == nil {
		target, err := dev.Sense(ctx, Modulation106A, d.cfg.SenseTimeout)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// A reader stuck on one failure is reported once until it recovers.
			if msg := err.Error(); msg != lastErr {
				lastErr = msg
				entry.WithError(err).Warn("Sense failed")
				d.reportError(err)
			} else {
				entry.WithError(err).Debug("Sense failed again")
			}
			d.pause(ctx)
			continue
		}
		lastErr = ""

		if target == nil {
			if current != "" {
				entry.WithField("uid", current).Info("Token removed")
				current = ""
				d.current.Store("")
				d.dispatch("removal", func() { d.handler.OnRemoval() })
			}
			continue
		}

		uid := d.resolver.Resolve(dev, target)
		if uid == "" || uid == current {
			continue
		}
		entry.WithField("uid", uid).Info("Token arrived")
		current = uid
		d.current.Store(uid)
		d.dispatch("arrival", func() { d.handler.OnArrival(uid) })
	}
}

// abandon clears the running flag after a failed connect, unless a Stop or
// a newer Start already took over.
func (d *Detector) abandon(done chan struct{}) {
	d.mu.Lock()
	if d.done != done {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.cancel, d.done = nil, nil
	d.running.Store(false)
	d.mu.Unlock()

	d.transition(StateStopped)
}

func (d *Detector) closeDevice() {
	d.mu.Lock()
	dev := d.device
	d.device = nil
	d.connected.Store(false)
	d.mu.Unlock()

	if dev == nil {
		return
	}
	if err := dev.Close(); err != nil {
		logger.WithField("port", d.cfg.Port).Debugf("Closing reader: %v", err)
	}
}

func (d *Detector) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(d.cfg.ErrorBackoff):
	}
}

// setState records s and reports whether it differs from the previous state.
func (d *Detector) setState(s DetectorState) bool {
	return DetectorState(d.state.Swap(int32(s))) != s
}

// notifyState hands s to a StateHandler. It must not be called with d.mu
// held. A notification overtaken by a newer transition is dropped.
func (d *Detector) notifyState(s DetectorState) {
	if d.State() != s {
		return
	}
	if sh, ok := d.handler.(StateHandler); ok {
		d.dispatch("state", func() { sh.OnStateChange(s) })
	}
}

func (d *Detector) transition(s DetectorState) {
	if d.setState(s) {
		d.notifyState(s)
	}
}

func (d *Detector) reportError(err error) {
	if eh, ok := d.handler.(ErrorHandler); ok {
		d.dispatch("error", func() { eh.OnError(err) })
	}
}

// dispatch runs a handler callback, keeping a panicking consumer from
// killing the polling goroutine.
func (d *Detector) dispatch(event string, fn func()) {
	if d.handler == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.WithField("event", event).Errorf("Handler panicked: %v", r)
		}
	}()
	fn()
}
