package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ridehail/internal/logging"
	"ridehail/internal/middleware"
	"ridehail/internal/realtime"
)

// RealtimeHandler upgrades clients to websocket connections.
type RealtimeHandler struct {
	registry *realtime.Registry
	log      logrus.FieldLogger
}

// NewRealtimeHandler creates a new RealtimeHandler.
func NewRealtimeHandler(registry *realtime.Registry, log logrus.FieldLogger) *RealtimeHandler {
	return &RealtimeHandler{registry: registry, log: log}
}

// Connect handles GET /v1/ws
func (h *RealtimeHandler) Connect(c *gin.Context) {
	userID := middleware.UserID(c)
	role := middleware.Role(c)
	if userID == "" || role == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "X-User-ID and X-User-Role are required", Code: "unauthenticated"})
		return
	}

	conn, err := realtime.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		logging.FromContext(c.Request.Context(), h.log).WithError(err).Warn("websocket upgrade failed")
		return
	}

	h.registry.Serve(conn, userID, role)
}
