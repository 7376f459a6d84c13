// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/satellite_tracker/internal/gps"
	"github.com/relabs-tech/satellite_tracker/internal/hub"
	"github.com/relabs-tech/satellite_tracker/internal/ingest"
	"github.com/relabs-tech/satellite_tracker/internal/logging"
)

const (
	defaultQueryWindow = time.Hour
	healthTimeout      = 2 * time.Second
	maxClientMessage   = 4096
)

// Health status values, matching the wording dashboards already expect.
const (
	statusHealthy   = "Healthy"
	statusUnhealthy = "Unhealthy"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards are served from other origins during development
	},
}

// FixQuerier answers the history API and the store health check.
type FixQuerier interface {
	Query(ctx context.Context, from, to time.Time, system string) ([]gps.SatelliteFix, error)
	Ping(ctx context.Context) error
}

// StatusReporter exposes the ingestion loop state to /health.
type StatusReporter interface {
	Status() ingest.Status
}

// Server is the HTTP face of the tracker: live websocket feed, history
// API, health and metrics.
type Server struct {
	echo     *echo.Echo
	addr     string
	registry *hub.Registry
	store    FixQuerier
	loop     StatusReporter
	clock    clockwork.Clock
}

// NewServer registers every route. webRoot may be empty to disable the
// static dashboard.
func NewServer(addr, webRoot string, registry *hub.Registry, store FixQuerier, loop StatusReporter, clock clockwork.Clock) *Server {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		addr:     addr,
		registry: registry,
		store:    store,
		loop:     loop,
		clock:    clock,
	}

	e.GET("/ws", s.handleWebSocket)
	e.GET("/api/satellites", s.handleSatellites)
	e.GET("/health", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	if webRoot != "" {
		e.Static("/", webRoot)
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("Starting HTTP server", "addr", s.addr)
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", "remote", c.RealIP(), "error", err)
		return nil
	}
	defer conn.Close()

	id := s.registry.Subscribe(conn)
	defer s.registry.Unsubscribe(id)

	// Client messages carry nothing; reading keeps control frames flowing
	// and tells us when the peer goes away.
	conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.WithSubscriber(id).Debug("WebSocket closed unexpectedly", "error", err)
			}
			return nil
		}
	}
}

func (s *Server) handleSatellites(c echo.Context) error {
	to := s.clock.Now().UTC()
	from := to.Add(-defaultQueryWindow)

	if raw := c.QueryParam("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "to must be an RFC3339 timestamp"})
		}
		to = parsed
		if c.QueryParam("from") == "" {
			from = to.Add(-defaultQueryWindow)
		}
	}
	if raw := c.QueryParam("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "from must be an RFC3339 timestamp"})
		}
		from = parsed
	}
	if from.After(to) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "from must not be after to"})
	}

	fixes, err := s.store.Query(c.Request().Context(), from, to, c.QueryParam("system"))
	if err != nil {
		slog.Error("Satellite history query failed", "error", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "history unavailable"})
	}
	if fixes == nil {
		fixes = []gps.SatelliteFix{}
	}
	return c.JSON(http.StatusOK, fixes)
}

type healthCheck struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	Description string `json:"description"`
}

type healthReport struct {
	Status string        `json:"status"`
	Checks []healthCheck `json:"checks"`
}

func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	report := healthReport{Status: statusHealthy}
	add := func(check healthCheck) {
		if check.Status != statusHealthy {
			report.Status = statusUnhealthy
		}
		report.Checks = append(report.Checks, check)
	}

	status := s.loop.Status()
	ingestion := healthCheck{Name: "ingestion", Status: statusHealthy, Description: string(status.State)}
	if status.State == ingest.StateFailed {
		ingestion.Status = statusUnhealthy
		if status.Err != nil {
			ingestion.Description = status.Err.Error()
		}
	}
	add(ingestion)

	storage := healthCheck{Name: "store", Status: statusHealthy, Description: "reachable"}
	if err := s.store.Ping(ctx); err != nil {
		storage.Status = statusUnhealthy
		storage.Description = err.Error()
	}
	add(storage)

	add(healthCheck{
		Name:        "subscribers",
		Status:      statusHealthy,
		Description: fmt.Sprintf("%d connected", s.registry.Count()),
	})

	code := http.StatusOK
	if report.Status != statusHealthy {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, report)
}
