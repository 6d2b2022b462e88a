package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/agents"
	"github.com/botdesk/botdesk/internal/auth"
)

// AgentsHandler manages chatbot configurations.
type AgentsHandler struct {
	agents   *agents.Service
	validate *validator.Validate
	logger   *slog.Logger
}

func NewAgentsHandler(log *slog.Logger, service *agents.Service) *AgentsHandler {
	return &AgentsHandler{
		agents:   service,
		validate: validator.New(),
		logger:   log.With(slog.String("handler", "agents")),
	}
}

func (h *AgentsHandler) Register(e *echo.Echo) {
	e.GET("/api/agents", h.List)
	e.GET("/api/agents/:id", h.Get)
	e.POST("/api/agents", h.Create)
}

func (h *AgentsHandler) List(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	items, err := h.agents.ListByTenant(c.Request().Context(), tenantID)
	if err != nil {
		h.logger.Error("list agents failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "list failed")
	}
	if items == nil {
		items = []agents.Agent{}
	}
	return c.JSON(http.StatusOK, items)
}

func (h *AgentsHandler) Get(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	agent, err := h.agents.GetByID(c.Request().Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "agent not found")
		}
		h.logger.Error("load agent failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "load failed")
	}
	if agent.TenantID != tenantID {
		return echo.NewHTTPError(http.StatusNotFound, "agent not found")
	}
	return c.JSON(http.StatusOK, agent)
}

func (h *AgentsHandler) Create(c echo.Context) error {
	tenantID, err := auth.TenantIDFromContext(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing tenant")
	}
	var input agents.CreateInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	input.TenantID = tenantID
	if err := h.validate.Struct(input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	agent, err := h.agents.Create(c.Request().Context(), input)
	if err != nil {
		h.logger.Error("create agent failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusBadRequest, "create failed")
	}
	return c.JSON(http.StatusCreated, agent)
}
