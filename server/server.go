// Package server publishes presence events over HTTP and WebSocket and
// announces the agent on the local network with mDNS.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dotside-studios/nfc-presence-agent/buildinfo"
	"github.com/dotside-studios/nfc-presence-agent/nfc"
	"github.com/dotside-studios/nfc-presence-agent/protocol"
	"github.com/gorilla/websocket"
	"github.com/grandcat/zeroconf"
	log "github.com/sirupsen/logrus"
)

// ReaderStatus is the view of the detector the server reports on.
// *nfc.Detector satisfies it.
type ReaderStatus interface {
	IsConnected() bool
	State() nfc.DetectorState
	CurrentUID() string
}

// EventLog supplies recent events for /api/v1/events. *journal.Journal
// satisfies it.
type EventLog interface {
	Recent(limit int) ([]protocol.Event, error)
}

// Config holds the server configuration
type Config struct {
	// Addr is the listen address, e.g. ":18080".
	Addr      string
	APISecret string // Optional secret required as ?secret= on /ws
	MDNS      bool
	CertFile  string
	KeyFile   string

	// Reader is the port selector stamped on published events.
	Reader string
	Status ReaderStatus
	Events EventLog // nil disables /api/v1/events
}

// Server manages the HTTP and WebSocket server. It implements nfc.Handler,
// nfc.ErrorHandler and nfc.StateHandler so the detector can feed it directly.
type Server struct {
	config   Config
	hub      *Hub
	upgrader websocket.Upgrader

	lifeMu     sync.Mutex // guards httpServer, listener, mdnsServer
	httpServer *http.Server
	listener   net.Listener
	mdnsServer *zeroconf.Server

	mu      sync.Mutex
	lastUID string
}

// New creates a new server instance
func New(config Config) *Server {
	return &Server{
		config: config,
		hub:    NewHub(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// SetStatus attaches the detector view. It must be called before Start.
func (s *Server) SetStatus(status ReaderStatus) {
	s.config.Status = status
}

// Hub returns the WebSocket client hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the HTTP routes served by the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(RouteHealth, enableCORS(getOnly(s.handleHealthCheck)))
	mux.HandleFunc(RouteToken, enableCORS(getOnly(s.handleToken)))
	mux.HandleFunc(RouteEvents, enableCORS(getOnly(s.handleEvents)))
	mux.HandleFunc(RouteWebSocket, s.handleWebSocket)
	mux.HandleFunc("/", enableCORS(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		w.Write([]byte(buildinfo.DisplayName + " running"))
	}))

	return mux
}

// Start binds the listen address and serves in the background. Bind errors
// are returned; mDNS failures are logged and ignored.
func (s *Server) Start() error {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.httpServer != nil {
		return errors.New("server is already running")
	}

	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.config.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.listener = ln
	s.httpServer = srv

	tls := s.config.CertFile != "" && s.config.KeyFile != ""
	entry := log.WithFields(log.Fields{"addr": ln.Addr().String(), "tls": tls})

	go func() {
		entry.Info("Starting server")
		var err error
		if tls {
			err = srv.ServeTLS(ln, s.config.CertFile, s.config.KeyFile)
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			entry.Errorf("HTTP server error: %v", err)
		}
	}()

	if s.config.MDNS {
		mdns, err := startMDNS(ln)
		if err != nil {
			log.Warnf("Failed to start mDNS service: %v", err)
			log.Warn("Auto-discovery will not be available, but server will continue normally")
		}
		s.mdnsServer = mdns
	}
	return nil
}

// Addr returns the bound address, or "" before Start and after Stop.
func (s *Server) Addr() string {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop unregisters mDNS, disconnects WebSocket clients and shuts the HTTP
// server down. It is safe to call at any time, including right after Start.
func (s *Server) Stop() {
	s.lifeMu.Lock()
	srv, mdns := s.httpServer, s.mdnsServer
	s.httpServer, s.listener, s.mdnsServer = nil, nil, nil
	s.lifeMu.Unlock()

	if mdns != nil {
		mdns.Shutdown()
		log.Info("mDNS service stopped")
	}

	s.hub.CloseAll()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Errorf("Server shutdown error: %v", err)
		}
	}
}

// startMDNS registers the agent as an mDNS service for auto-discovery
func startMDNS(ln net.Listener) (*zeroconf.Server, error) {
	tcp, ok := ln.Addr().(*net.TCPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected listener address %s", ln.Addr())
	}

	txtRecords := []string{
		"version=" + buildinfo.Version,
		"path=" + RouteWebSocket,
	}

	server, err := zeroconf.Register(MDNSServiceName, MDNSServiceType, MDNSDomain, tcp.Port, txtRecords, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}

	log.WithFields(log.Fields{"service": MDNSServiceType, "port": tcp.Port}).Info("mDNS service registered")
	return server, nil
}

// OnArrival broadcasts tokenArrived.
func (s *Server) OnArrival(uid string) {
	s.mu.Lock()
	s.lastUID = uid
	s.mu.Unlock()

	s.publish(protocol.NewEvent(protocol.EventArrival, uid, s.config.Reader))
}

// OnRemoval broadcasts tokenRemoved carrying the identity that left.
func (s *Server) OnRemoval() {
	s.mu.Lock()
	uid := s.lastUID
	s.lastUID = ""
	s.mu.Unlock()

	s.publish(protocol.NewEvent(protocol.EventRemoval, uid, s.config.Reader))
}

// OnError broadcasts readerError.
func (s *Server) OnError(err error) {
	s.hub.Broadcast(protocol.WebSocketMessage{
		Type: protocol.WSTypeReaderError,
		Payload: protocol.ReaderErrorPayload{
			Message: err.Error(),
			Code:    int(nfc.GetErrorCode(err)),
		},
	})
}

// OnStateChange broadcasts deviceStatus. It runs on the detector goroutine
// or on the caller of Start or Stop, never under the detector's lock.
func (s *Server) OnStateChange(state nfc.DetectorState) {
	if state == nfc.StateStopped {
		s.mu.Lock()
		s.lastUID = ""
		s.mu.Unlock()
	}
	s.hub.Broadcast(protocol.WebSocketMessage{
		Type:    protocol.WSTypeDeviceStatus,
		Payload: s.deviceStatus(state),
	})
}

func (s *Server) publish(ev protocol.Event) {
	n := s.hub.Broadcast(protocol.NewTokenMessage(ev))
	log.WithFields(log.Fields{"uid": ev.UID, "kind": ev.Kind, "clients": n}).Debug("Broadcast presence event")
}

// currentUID prefers the detector's view and falls back to the last
// broadcast arrival.
func (s *Server) currentUID() string {
	if s.config.Status != nil {
		return s.config.Status.CurrentUID()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUID
}

func (s *Server) state() nfc.DetectorState {
	if s.config.Status == nil {
		return nfc.StateStopped
	}
	return s.config.Status.State()
}

func (s *Server) connected() bool {
	return s.config.Status != nil && s.config.Status.IsConnected()
}

func (s *Server) deviceStatus(state nfc.DetectorState) protocol.DeviceStatusPayload {
	connected := state == nfc.StatePolling
	msg := "Waiting for NFC reader"
	switch state {
	case nfc.StatePolling:
		msg = "NFC reader connected"
	case nfc.StateStopped:
		msg = "NFC reader stopped"
	}
	return protocol.DeviceStatusPayload{
		Connected:    connected,
		State:        state.String(),
		Message:      msg,
		TokenPresent: s.currentUID() != "",
	}
}

// handleHealthCheck provides a health check endpoint (GET /api/v1/health)
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	connected := s.connected()
	resp := protocol.HealthResponse{
		Status:    "ok",
		Connected: connected,
		State:     s.state().String(),
		Version:   buildinfo.FullVersion(),
		Timestamp: time.Now().Format(time.RFC3339),
	}
	code := http.StatusOK
	if !connected {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

// handleToken reports the token currently in the field (GET /api/v1/token)
func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	uid := s.currentUID()
	writeJSON(w, http.StatusOK, protocol.TokenResponse{Present: uid != "", UID: uid})
}

// handleEvents lists journaled events, newest first (GET /api/v1/events)
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.config.Events == nil {
		writeError(w, http.StatusNotFound, "event journal is disabled")
		return
	}

	limit := defaultEventsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxEventsLimit)
	}

	events, err := s.config.Events.Recent(limit)
	if err != nil {
		log.Errorf("Failed to read event journal: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to read events")
		return
	}
	writeJSON(w, http.StatusOK, protocol.EventsResponse{Events: events})
}

// handleWebSocket upgrades the connection, sends the current status and
// token, then keeps the client registered until it disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.APISecret != "" {
		secret := r.URL.Query().Get("secret")
		if subtle.ConstantTimeCompare([]byte(secret), []byte(s.config.APISecret)) != 1 {
			log.WithField("remote", r.RemoteAddr).Warn("WebSocket connection rejected: invalid API secret")
			writeError(w, http.StatusUnauthorized, "invalid API secret")
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("WebSocket upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := s.hub.register(conn, r.RemoteAddr)
	defer s.hub.unregister(c.id)

	if err := c.send(protocol.WebSocketMessage{
		Type:    protocol.WSTypeDeviceStatus,
		Payload: s.deviceStatus(s.state()),
	}); err != nil {
		return
	}
	if uid := s.currentUID(); uid != "" {
		ev := protocol.NewEvent(protocol.EventArrival, uid, s.config.Reader)
		if err := c.send(protocol.NewTokenMessage(ev)); err != nil {
			return
		}
	}

	// Clients only listen; reading keeps control frames flowing and
	// notices the disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// enableCORS is a middleware that adds CORS headers to responses
func enableCORS(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", CORSAllowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", CORSAllowMethods)
		w.Header().Set("Access-Control-Allow-Headers", CORSAllowHeaders)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debugf("Failed to write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, protocol.ErrorResponse{Error: msg})
}
