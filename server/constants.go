package server

import (
	"time"

	"github.com/dotside-studios/nfc-presence-agent/buildinfo"
)

// mDNS service discovery
var (
	MDNSServiceType = "_nfc-presence._tcp"
	MDNSServiceName = buildinfo.DisplayName
	MDNSDomain      = "local."
)

// HTTP routes
const (
	APIPrefix      = "/api/v1"
	RouteHealth    = APIPrefix + "/health"
	RouteToken     = APIPrefix + "/token"
	RouteEvents    = APIPrefix + "/events"
	RouteWebSocket = "/ws"
)

// CORS configuration
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET, OPTIONS"
	CORSAllowHeaders = "Content-Type, Authorization"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 1000

	writeWait       = 5 * time.Second
	maxMessageSize  = 1024
	shutdownTimeout = 3 * time.Second
)
