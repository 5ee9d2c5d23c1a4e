package appointments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotline/booking-platform/internal/calcom"
	"github.com/slotline/booking-platform/pkg/logging"
)

// Handler serves the booking mutation endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a booking HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Start       string `json:"start"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	Phone       string `json:"phone,omitempty"`
	Notes       string `json:"notes,omitempty"`
	EventTypeID int    `json:"eventTypeId,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	ClientID    string `json:"client_id,omitempty"`
	UserID      string `json:"user_id,omitempty"`
}

// parseOptionalUUID parses a UUID field that may be absent.
func parseOptionalUUID(field, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, errors.New(field + " must be a UUID")
	}
	return &id, nil
}

type mutateRequest struct {
	Start  string `json:"start,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Create books an appointment through the external scheduling system.
// POST /bookings
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		writeJSONError(w, http.StatusBadRequest, "name and email are required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "start must be an RFC3339 instant")
		return
	}
	projectID, err := parseOptionalUUID("project_id", req.ProjectID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	clientID, err := parseOptionalUUID("client_id", req.ClientID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID, err := parseOptionalUUID("user_id", req.UserID)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.Create(r.Context(), CreateInput{
		Start:       start.UTC(),
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Notes:       req.Notes,
		EventTypeID: req.EventTypeID,
		ProjectID:   projectID,
		ClientID:    clientID,
		UserID:      userID,
	})
	if err != nil {
		h.writeUpstreamError(w, "create booking", err)
		return
	}

	resp := map[string]any{"ok": true, "booking": result.Booking}
	if result.AppointmentID != uuid.Nil {
		resp["appointment_id"] = result.AppointmentID
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// Cancel cancels the booking identified by uid.
// POST /bookings/{uid}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeJSONError(w, http.StatusBadRequest, "booking uid required")
		return
	}
	var req mutateRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := h.service.Cancel(r.Context(), uid, req.Reason)
	if err != nil {
		h.writeUpstreamError(w, "cancel booking", err)
		return
	}

	resp := map[string]any{"ok": true, "booking_uid": uid, "status": StatusCancelled}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// Reschedule moves the booking identified by uid.
// POST /bookings/{uid}/reschedule
func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeJSONError(w, http.StatusBadRequest, "booking uid required")
		return
	}
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "start must be an RFC3339 instant")
		return
	}

	result, err := h.service.Reschedule(r.Context(), uid, start.UTC(), req.Reason)
	if err != nil {
		h.writeUpstreamError(w, "reschedule booking", err)
		return
	}

	resp := map[string]any{"ok": true, "booking": result.Booking}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get returns the local appointment row for a booking uid.
// GET /bookings/{uid}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	uid := chi.URLParam(r, "uid")
	if uid == "" {
		writeJSONError(w, http.StatusBadRequest, "booking uid required")
		return
	}
	appt, err := h.service.Get(r.Context(), uid)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "appointment not found")
			return
		}
		h.logger.Error("appointment lookup failed", "booking_uid", uid, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "appointment lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "appointment": appt})
}

// writeUpstreamError propagates the scheduling API's status where known.
func (h *Handler) writeUpstreamError(w http.ResponseWriter, op string, err error) {
	var upstream *calcom.UpstreamError
	if errors.As(err, &upstream) {
		h.logger.Warn(op+" rejected upstream", "status", upstream.StatusCode, "error", err)
		status := upstream.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSONError(w, status, upstream.Body)
		return
	}
	h.logger.Error(op+" failed", "error", err)
	writeJSONError(w, http.StatusBadGateway, "scheduling system unavailable")
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}
