package handler

import (
	"net/http"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/veloraid/velora/velora-backend/internal/domain"
	"github.com/veloraid/velora/velora-backend/internal/websocket"
)

// JWTValidator validates JWT tokens and returns the subject and claims
type JWTValidator interface {
	ValidateToken(token string) (subject string, claims *websocket.CustomClaims, err error)
}

// ApplicationLookup resolves an application for the ownership check on
// connection
type ApplicationLookup interface {
	Get(id uuid.UUID) (*domain.Application, error)
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub            *websocket.Hub
	validator      JWTValidator
	applications   ApplicationLookup
	allowedOrigins map[string]bool
	upgrader       ws.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *websocket.Hub, validator JWTValidator, applications ApplicationLookup, allowedOrigins []string) *WebSocketHandler {
	// Build origin lookup map
	originMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	h := &WebSocketHandler{
		hub:            hub,
		validator:      validator,
		applications:   applications,
		allowedOrigins: originMap,
	}

	h.upgrader = ws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	return h
}

// checkOrigin validates the request origin against allowed origins
func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Allow requests with no Origin header (e.g., same-origin or non-browser clients)
		return true
	}

	if h.allowedOrigins[origin] {
		return true
	}

	log.Warn().
		Str("origin", origin).
		Msg("WebSocket connection rejected: origin not allowed")
	return false
}

// HandleWS handles WebSocket connection requests at GET /ws.
// Clients subscribe to a single application's event stream:
// /ws?token=<jwt>&application=<uuid>
func (h *WebSocketHandler) HandleWS(c echo.Context) error {
	// Get token from query parameter
	token := c.QueryParam("token")
	if token == "" {
		log.Debug().Msg("WebSocket connection rejected: missing token")
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}

	applicationID, err := uuid.Parse(c.QueryParam("application"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid application id")
	}

	// Validate JWT
	subject, claims, err := h.validator.ValidateToken(token)
	if err != nil {
		log.Debug().Err(err).Msg("WebSocket connection rejected: invalid token")
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}

	// Admins may watch any application; applicants only their own
	app, err := h.applications.Get(applicationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "application not found")
	}
	if !claims.IsAdmin() && app.ApplicantAuthID != subject {
		log.Debug().
			Str("subject", subject).
			Str("application_id", applicationID.String()).
			Msg("WebSocket connection rejected: not the applicant")
		return echo.NewHTTPError(http.StatusForbidden, "not your application")
	}

	// Upgrade HTTP connection to WebSocket
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Error().Err(err).Msg("WebSocket upgrade failed")
		return err
	}

	// Create client and register with hub
	client := websocket.NewClient(conn, applicationID, h.hub)
	h.hub.Register(client)

	log.Info().
		Str("application_id", applicationID.String()).
		Str("client_id", client.ID()).
		Msg("WebSocket client connected")

	// Start read/write pumps in goroutines
	go client.WritePump()
	go client.ReadPump()

	return nil
}
