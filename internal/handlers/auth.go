package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/botdesk/botdesk/internal/auth"
	"github.com/botdesk/botdesk/internal/tenants"
)

// AuthHandler issues JWTs for dashboard users.
type AuthHandler struct {
	tenants   *tenants.Service
	logger    *slog.Logger
	jwtSecret string
	expiresIn time.Duration
}

func NewAuthHandler(log *slog.Logger, service *tenants.Service, jwtSecret string, expiresIn time.Duration) *AuthHandler {
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	return &AuthHandler{
		tenants:   service,
		logger:    log.With(slog.String("handler", "auth")),
		jwtSecret: jwtSecret,
		expiresIn: expiresIn,
	}
}

func (h *AuthHandler) Register(e *echo.Echo) {
	e.POST("/auth/login", h.Login)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      tenants.User `json:"user"`
}

func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.tenants.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, tenants.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		h.logger.Error("authenticate failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	token, expiresAt, err := auth.GenerateToken(user.ID, user.TenantID, user.Role, h.jwtSecret, h.expiresIn)
	if err != nil {
		h.logger.Error("issue token failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
	}
	return c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt, User: user})
}
