package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/alerts"
	"github.com/fitcompany/console/internal/ws"
)

// AlertSource returns the latest stock alerts.
// Satisfied by *alerts.Poller; narrow interface for testability.
type AlertSource interface {
	Current() []alerts.Alert
}

// AlertHandler serves the stock alert list and its live feed.
type AlertHandler struct {
	source AlertSource
	hub    *ws.Hub
	secret string
	logger *zap.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(source AlertSource, hub *ws.Hub, secret string, logger *zap.Logger) *AlertHandler {
	return &AlertHandler{source: source, hub: hub, secret: secret, logger: logger}
}

// RegisterRoutes registers the alert list inside the authenticated group.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Get("/alerts", h.List)
}

// RegisterFeedRoutes registers the WebSocket feed. It authenticates through
// the token query parameter, so it is mounted outside the authenticated group.
func (h *AlertHandler) RegisterFeedRoutes(r chi.Router) {
	r.Get("/ws/alerts", h.Feed)
}

// List returns the alerts of the last poll.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.source.Current()
	if list == nil {
		list = []alerts.Alert{}
	}
	writeJSON(w, http.StatusOK, list)
}

// Feed upgrades to a WebSocket subscribed to alert changes.
func (h *AlertHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ws.ServeWS(h.hub, ws.TopicAlerts, h.secret, h.logger, w, r)
}
