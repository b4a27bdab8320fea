// Package api provides the HTTP REST API and WebSocket server for the Tuya
// BLE bridge.
//
// It exposes the product database, the paired devices and their entities,
// entity commands, state history and BLE discoveries, and streams entity
// state changes and device events to WebSocket clients.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-tuyable/internal/bridges/tuyable"
	"github.com/nerrad567/gray-logic-tuyable/internal/device"
	"github.com/nerrad567/gray-logic-tuyable/internal/gateway"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-tuyable/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Bridge is the part of the Tuya BLE bridge the API serves.
// Satisfied by *tuyable.Bridge.
type Bridge interface {
	Devices() []tuyable.DeviceView
	Device(id string) (tuyable.DeviceView, bool)
	Entities(id string) ([]tuyable.EntityView, error)
	ExecuteCommand(ctx context.Context, deviceID, key string, cmd tuyable.CommandMessage) (tuyable.AckMessage, error)
	OnStateChange(fn func(tuyable.StateMessage))
	OnEvent(fn func(tuyable.EventMessage))
}

// ConnectionChecker reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionChecker interface {
	IsConnected() bool
}

// DBStatser exposes connection pool statistics. Satisfied by *sql.DB.
type DBStatser interface {
	Stats() sql.DBStats
}

// GatewayStatser reports the supervised gateway process.
// Satisfied by *gateway.Supervisor.
type GatewayStatser interface {
	Stats() gateway.Stats
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config      config.APIConfig
	WS          config.WebSocketConfig
	Security    config.SecurityConfig
	Logger      *logging.Logger
	Bridge      Bridge
	Registry    *device.Registry              // optional: device stats in /metrics
	History     device.StateHistoryRepository // optional: /devices/{id}/history
	Discoveries device.DiscoveryRepository    // optional: /discoveries
	MQTT        ConnectionChecker             // optional
	DB          DBStatser                     // optional
	Gateway     GatewayStatser                // optional: managed gateway in /metrics
	Version     string
}

// Server is the HTTP API server for the bridge.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg         config.APIConfig
	wsCfg       config.WebSocketConfig
	secCfg      config.SecurityConfig
	logger      *logging.Logger
	bridge      Bridge
	registry    *device.Registry
	history     device.StateHistoryRepository
	discoveries device.DiscoveryRepository
	mqtt        ConnectionChecker
	db          DBStatser
	gateway     GatewayStatser
	version     string
	startTime   time.Time
	tickets     *ticketStore
	server      *http.Server
	hub         *Hub
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Parameters:
//   - deps: Required dependencies (config, logger, bridge)
//
// Returns:
//   - *Server: Configured server ready to start
//   - error: If required dependencies are missing
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Bridge == nil {
		return nil, fmt.Errorf("bridge is required")
	}

	return &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		bridge:      deps.Bridge,
		registry:    deps.Registry,
		history:     deps.History,
		discoveries: deps.Discoveries,
		mqtt:        deps.MQTT,
		db:          deps.DB,
		gateway:     deps.Gateway,
		version:     deps.Version,
		startTime:   time.Now(),
		tickets:     newTicketStore(),
		hub:         NewHub(deps.WS, deps.Logger, deps.Bridge),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, relays bridge state changes and events to
// it, and launches the HTTP listener in a background goroutine. The server
// can be stopped with Close().
//
// Parameters:
//   - ctx: Context for cancellation (not used for listener lifetime)
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	go s.hub.Run(srvCtx)
	go s.cleanTicketsLoop(srvCtx)

	s.relayBridgeUpdates()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Handler returns the routed HTTP handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// relayBridgeUpdates forwards bridge state changes and events to the hub.
func (s *Server) relayBridgeUpdates() {
	s.bridge.OnStateChange(s.hub.PublishState)
	s.bridge.OnEvent(s.hub.PublishEvent)
}
