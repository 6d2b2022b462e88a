package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/auth"
	"github.com/botdesk/botdesk/internal/events"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// WSHandler streams a tenant's conversation events to dashboard clients
// over a websocket.
type WSHandler struct {
	hub      *events.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(log *slog.Logger, hub *events.Hub) *WSHandler {
	return &WSHandler{
		hub:    hub,
		logger: log.With(slog.String("handler", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboard origins vary by deployment; the JWT is the gate.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Stream)
}

func (h *WSHandler) Stream(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	eventsCh, cancel := h.hub.Subscribe(tenantID)
	defer cancel()

	// Drain client frames so close and pong frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return nil
		case <-c.Request().Context().Done():
			return nil
		case event := <-eventsCh:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.Debug("subscriber write failed", slog.Any("error", err))
				return nil
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
