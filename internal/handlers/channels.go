package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/auth"
	"github.com/botdesk/botdesk/internal/channels"
)

// ChannelsHandler manages platform channel registrations.
type ChannelsHandler struct {
	channels *channels.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewChannelsHandler(log *slog.Logger, service *channels.Service) *ChannelsHandler {
	return &ChannelsHandler{
		channels: service,
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "channels")),
	}
}

func (h *ChannelsHandler) Register(e *echo.Echo) {
	e.GET("/api/channels", h.List)
	e.POST("/api/channels", h.Create)
}

func (h *ChannelsHandler) List(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	items, err := h.channels.ListByTenant(c.Request().Context(), tenantID)
	if err != nil {
		h.logger.Error("list channels failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	if items == nil {
		items = []channels.Channel{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *ChannelsHandler) Create(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	var input channels.CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	input.TenantID = tenantID
	if err := h.validate.Struct(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ch, err := h.channels.Create(c.Request().Context(), input)
	if err != nil {
		h.logger.Error("create channel failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "create failed")
	}
	return c.JSON(http.StatusCreated, ch)
}
