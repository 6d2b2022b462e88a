package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/channels"
	"github.com/botdesk/botdesk/internal/conversation"
	"github.com/botdesk/botdesk/internal/pipeline"
	"github.com/botdesk/botdesk/internal/platform"
)

// maxWebhookBody caps how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

// WebhookHandler receives platform webhook deliveries and runs them through
// the inbound pipeline.
type WebhookHandler struct {
	pipeline *pipeline.Pipeline
	channels *channels.Service
	logger   *slog.Logger
}

func NewWebhookHandler(log *slog.Logger, p *pipeline.Pipeline, channelService *channels.Service) *WebhookHandler {
	return &WebhookHandler{
		pipeline: p,
		channels: channelService,
		logger:   log.With(slog.String("handler", "webhook")),
	}
}

func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/webhooks/:platform/:channel_id", h.Verify)
	e.POST("/webhooks/:platform/:channel_id", h.Receive)
}

// Verify answers Meta's subscription handshake: when hub.verify_token
// matches the channel's stored token, the raw hub.challenge echoes back.
func (h *WebhookHandler) Verify(c echo.Context) error {
	channelID := strings.TrimSpace(c.Param("channel_id"))
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")
	if mode != "subscribe" || challenge == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid verification request")
	}
	ch, err := h.channels.GetByID(c.Request().Context(), channelID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "channel not found")
	}
	if ch.VerifyToken == "" || token != ch.VerifyToken {
		return echo.NewHTTPError(http.StatusForbidden, "verify token mismatch")
	}
	return c.String(http.StatusOK, challenge)
}

type webhookResponse struct {
	Status    string `json:"status"`
	Processed int    `json:"processed"`
	Failed    int    `json:"failed"`
	Skipped   int    `json:"skipped"`
}

// Receive runs one webhook delivery through the pipeline. Signature failures
// come back 401 so the platform stops trusting the endpoint silently;
// per-message failures still return 200 because the delivery itself was
// accepted.
func (h *WebhookHandler) Receive(c echo.Context) error {
	platformTag := strings.TrimSpace(c.Param("platform"))
	channelID := strings.TrimSpace(c.Param("channel_id"))

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "read body failed")
	}
	signature := c.Request().Header.Get("X-Hub-Signature-256")

	results, err := h.pipeline.ProcessInbound(c.Request().Context(), platformTag, channelID, body, signature)
	if err != nil {
		var authErr *pipeline.AuthenticationError
		var normErr *platform.NormalizationError
		var confErr *conversation.ConfigurationError
		switch {
		case errors.As(err, &authErr):
			h.logger.Warn("webhook rejected", slog.String("channel_id", channelID), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusUnauthorized, "signature verification failed")
		case errors.As(err, &normErr):
			return echo.NewHTTPError(http.StatusBadRequest, "unrecognized payload")
		case errors.As(err, &confErr):
			return echo.NewHTTPError(http.StatusNotFound, "channel not found")
		default:
			h.logger.Error("webhook processing failed", slog.String("channel_id", channelID), slog.Any("error", err))
			return echo.NewHTTPError(http.StatusInternalServerError, "processing failed")
		}
	}

	resp := webhookResponse{Status: "ok"}
	for _, r := range results {
		switch {
		case r.Skipped:
			resp.Skipped++
		case r.Err != nil:
			resp.Failed++
		default:
			resp.Processed++
		}
	}
	return c.JSON(http.StatusOK, resp)
}
