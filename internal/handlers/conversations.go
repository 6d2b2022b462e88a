package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/auth"
	"github.com/botdesk/botdesk/internal/conversation"
	"github.com/botdesk/botdesk/internal/message"
)

// ConversationsHandler serves the dashboard's conversation and message
// reads. All routes are tenant-scoped through the JWT.
type ConversationsHandler struct {
	conversations *conversation.Service
	messages      message.Reader
	logger        *slog.Logger
}

func NewConversationsHandler(log *slog.Logger, conversations *conversation.Service, messages message.Reader) *ConversationsHandler {
	return &ConversationsHandler{
		conversations: conversations,
		messages:      messages,
		logger:        log.With(slog.String("handler", "conversations")),
	}
}

func (h *ConversationsHandler) Register(e *echo.Echo) {
	e.GET("/api/conversations", h.List)
	e.GET("/api/conversations/:id", h.Get)
	e.GET("/api/conversations/:id/messages", h.Messages)
	e.PATCH("/api/conversations/:id/status", h.UpdateStatus)
}

func (h *ConversationsHandler) List(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	items, err := h.conversations.ListByTenant(c.Request().Context(), tenantID, limit, offset)
	if err != nil {
		h.logger.Error("list conversations failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	if items == nil {
		items = []conversation.Conversation{}
	}
	return c.JSON(http.StatusOK, items)
}

// loadOwned loads a conversation and checks it belongs to the caller's
// tenant. Cross-tenant ids come back as 404, not 403, so ids do not leak.
func (h *ConversationsHandler) loadOwned(c echo.Context) (conversation.Conversation, error) {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return conversation.Conversation{}, echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	conv, err := h.conversations.GetByID(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			return conversation.Conversation{}, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		h.logger.Error("load conversation failed", slog.Any("error", err))
		return conversation.Conversation{}, echo.NewHTTPError(http.StatusInternalServerError, "load failed")
	}
	if conv.TenantID != tenantID {
		return conversation.Conversation{}, echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return conv, nil
}

func (h *ConversationsHandler) Get(c echo.Context) error {
	conv, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, conv)
}

func (h *ConversationsHandler) Messages(c echo.Context) error {
	conv, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	msgs, err := h.messages.ListByConversation(c.Request().Context(), conv.ID, limit, offset)
	if err != nil {
		h.logger.Error("list messages failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	return c.JSON(http.StatusOK, msgs)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *ConversationsHandler) UpdateStatus(c echo.Context) error {
	conv, err := h.loadOwned(c)
	if err != nil {
		return err
	}
	var req updateStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	status := conversation.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if status != conversation.StatusActive && status != conversation.StatusResolved {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if err := h.conversations.UpdateStatus(c.Request().Context(), conv.ID, status); err != nil {
		h.logger.Error("update status failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "update failed")
	}
	conv.Status = status
	return c.JSON(http.StatusOK, conv)
}
