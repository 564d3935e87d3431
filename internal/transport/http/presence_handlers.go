package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/venturesroom/venturechat/internal/core"
	"github.com/venturesroom/venturechat/internal/store"
)

// PresenceHandlers serves the online-status endpoint.
type PresenceHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewPresenceHandlers creates a new presence handlers instance.
func NewPresenceHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *PresenceHandlers {
	return &PresenceHandlers{hub: hub, store: st, log: logger}
}

// PresenceEntry reports one partner's connection status.
type PresenceEntry struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

const (
	statusOnline  = "Online"
	statusOffline = "Offline"
)

// Status lists every partner with an Online/Offline flag derived from the
// hub's live connection registry.
// GET /api/presence/status
func (h *PresenceHandlers) Status(c *gin.Context) {
	uid, _, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}

	partners, err := h.store.ListPartners(c.Request.Context(), uid)
	if err != nil {
		h.log.Error().Err(err).Int64("user_id", uid).Msg("failed to list partners for presence")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	online, err := h.hub.OnlineNames(c.Request.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to query online names")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	response := make([]PresenceEntry, 0, len(partners))
	for _, p := range partners {
		status := statusOffline
		if _, ok := online[p.DisplayName]; ok {
			status = statusOnline
		}
		response = append(response, PresenceEntry{Name: p.DisplayName, Status: status})
	}
	c.JSON(http.StatusOK, response)
}
