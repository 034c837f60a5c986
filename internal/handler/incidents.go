package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ai-devops/autoheal/internal/audit"
	"github.com/ai-devops/autoheal/internal/domain"
	"github.com/ai-devops/autoheal/internal/orchestrator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IncidentStore exposes the orchestrator's incident table.
type IncidentStore interface {
	Get(id string) (domain.Incident, error)
	List() []domain.Incident
	Status() orchestrator.Status
}

// EventSource exposes the broadcast hub's replay buffer and observers.
type EventSource interface {
	History() []domain.Event
	ObserverCount() int
}

// StatusHandler reports the running configuration, incident counts and
// stream state.
type StatusHandler struct {
	config    map[string]any
	incidents IncidentStore
	events    EventSource
}

// NewStatusHandler creates a new StatusHandler. events may be nil.
func NewStatusHandler(config map[string]any, incidents IncidentStore, events EventSource) *StatusHandler {
	return &StatusHandler{config: config, incidents: incidents, events: events}
}

// Handle processes GET /status requests.
func (h *StatusHandler) Handle(c *gin.Context) {
	st := h.incidents.Status()
	resp := gin.H{
		"config":                 h.config,
		"active_incident_count":  st.ActiveIncidents,
		"tracked_incident_count": st.TrackedIncidents,
	}
	if h.events != nil {
		resp["observer_count"] = h.events.ObserverCount()
		resp["buffered_event_count"] = len(h.events.History())
	}
	c.JSON(http.StatusOK, resp)
}

// EventsHandler serves the replay buffer over plain HTTP.
type EventsHandler struct {
	events EventSource
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(events EventSource) *EventsHandler {
	return &EventsHandler{events: events}
}

// Handle processes GET /api/v1/events requests. Events are oldest first.
func (h *EventsHandler) Handle(c *gin.Context) {
	history := h.events.History()
	c.JSON(http.StatusOK, gin.H{
		"count":  len(history),
		"events": history,
	})
}

// IncidentsHandler serves incident inspection routes.
type IncidentsHandler struct {
	incidents IncidentStore
	logger    *zap.Logger
}

// NewIncidentsHandler creates a new IncidentsHandler.
func NewIncidentsHandler(incidents IncidentStore, logger *zap.Logger) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidents, logger: logger.Named("incidents_handler")}
}

// List processes GET /api/v1/incidents requests.
func (h *IncidentsHandler) List(c *gin.Context) {
	list := h.incidents.List()
	c.JSON(http.StatusOK, gin.H{
		"count":     len(list),
		"incidents": list,
	})
}

// Get processes GET /api/v1/incidents/:id requests.
func (h *IncidentsHandler) Get(c *gin.Context) {
	inc, err := h.incidents.Get(c.Param("id"))
	if errors.Is(err, domain.ErrIncidentNotFound) {
		errorJSON(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("incident lookup failed", zap.Error(err))
		errorJSON(c, http.StatusInternalServerError, "Internal error")
		return
	}
	c.JSON(http.StatusOK, inc)
}

// AuditHandler lists the incident audit log.
type AuditHandler struct {
	recorder *audit.Recorder
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(recorder *audit.Recorder) *AuditHandler {
	return &AuditHandler{recorder: recorder}
}

// Handle processes GET /api/v1/audit?limit=N requests.
func (h *AuditHandler) Handle(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errorJSON(c, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	entries := h.recorder.List(limit)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}
