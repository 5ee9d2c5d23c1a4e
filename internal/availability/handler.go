package availability

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slotline/booking-platform/internal/config"
	"github.com/slotline/booking-platform/internal/observability/metrics"
	"github.com/slotline/booking-platform/pkg/logging"
)

// Handler serves the slot query endpoint.
type Handler struct {
	service *Service
	cfg     *config.Config
	metrics *metrics.BookingMetrics
	logger  *logging.Logger
}

// NewHandler creates an availability HTTP handler.
func NewHandler(service *Service, cfg *config.Config, m *metrics.BookingMetrics, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, cfg: cfg, metrics: m, logger: logger}
}

type slotsResponse struct {
	OK    bool   `json:"ok"`
	Slots []Slot `json:"slots"`
	Meta  Meta   `json:"meta"`
}

// GetSlots computes open slots for the requested window.
// GET /availability/slots
func (h *Handler) GetSlots(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	q, err := h.parseQuery(r)
	if err != nil {
		h.metrics.ObserveSlotRequest("invalid", time.Since(started).Seconds())
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.service.FindSlots(r.Context(), q)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, ErrUnresolvedSchema):
			h.metrics.ObserveSlotRequest("invalid", time.Since(started).Seconds())
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.logger.Error("slot query failed", "table", q.Table, "error", err)
			h.metrics.ObserveSlotRequest("error", time.Since(started).Seconds())
			writeError(w, http.StatusInternalServerError, "failed to compute slots")
		}
		return
	}

	h.metrics.ObserveSlotRequest("ok", time.Since(started).Seconds())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(slotsResponse{OK: true, Slots: result.Slots, Meta: result.Meta})
}

func (h *Handler) parseQuery(r *http.Request) (Query, error) {
	params := r.URL.Query()
	q := Query{
		Table:           h.cfg.AppointmentsTable,
		SlotMinutes:     h.cfg.SlotMinutes,
		BufferMinutes:   h.cfg.BufferMinutes,
		Limit:           h.cfg.SlotLimit,
		ExcludeWeekends: h.cfg.ExcludeWeekends,
		TZOffsetMinutes: h.cfg.TimezoneOffsetMins,
		WorkdayStart:    h.cfg.WorkdayStart,
		WorkdayEnd:      h.cfg.WorkdayEnd,
		StartField:      params.Get("start_field"),
		EndField:        params.Get("end_field"),
		StatusField:     params.Get("status_field"),
	}
	if v := params.Get("table"); v != "" {
		q.Table = v
	}

	var err error
	if q.SlotMinutes, err = intParam(params.Get("slot_minutes"), q.SlotMinutes); err != nil {
		return q, err
	}
	if q.SlotMinutes < 5 {
		return q, errValidation("slot_minutes must be at least 5")
	}
	if q.BufferMinutes, err = intParam(params.Get("buffer_minutes"), q.BufferMinutes); err != nil {
		return q, err
	}
	if q.BufferMinutes < 0 {
		return q, errValidation("buffer_minutes must not be negative")
	}
	days := h.cfg.RangeDays
	if days, err = intParam(params.Get("days"), days); err != nil {
		return q, err
	}
	if days < 1 {
		return q, errValidation("days must be at least 1")
	}
	if q.Limit, err = intParam(params.Get("limit"), q.Limit); err != nil {
		return q, err
	}
	if q.Limit < 1 || q.Limit > 200 {
		return q, errValidation("limit must be between 1 and 200")
	}
	if q.TZOffsetMinutes, err = intParam(params.Get("tz_offset_minutes"), q.TZOffsetMinutes); err != nil {
		return q, err
	}
	if v := params.Get("exclude_weekends"); v != "" {
		b, perr := strconv.ParseBool(v)
		if perr != nil {
			return q, errValidation("exclude_weekends must be a boolean")
		}
		q.ExcludeWeekends = b
	}
	if v := params.Get("workday_start"); v != "" {
		q.WorkdayStart = v
	}
	if v := params.Get("workday_end"); v != "" {
		q.WorkdayEnd = v
	}

	q.RangeStart = time.Now().UTC()
	if v := params.Get("range_start"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return q, errValidation("range_start must be an RFC3339 instant")
		}
		q.RangeStart = t.UTC()
	}
	q.RangeEnd = q.RangeStart.AddDate(0, 0, days)
	if v := params.Get("range_end"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return q, errValidation("range_end must be an RFC3339 instant")
		}
		q.RangeEnd = t.UTC()
	}
	if !q.RangeEnd.After(q.RangeStart) {
		return q, errValidation("range_end must be after range_start")
	}

	if v := params.Get("filters"); v != "" {
		if err := json.Unmarshal([]byte(v), &q.Filters); err != nil {
			return q, errValidation("filters must be a JSON object of column=value pairs")
		}
	}
	if v := params.Get("exclude_statuses"); v != "" {
		for _, status := range strings.Split(v, ",") {
			if status = strings.TrimSpace(status); status != "" {
				q.ExcludeStatuses = append(q.ExcludeStatuses, status)
			}
		}
	}
	if len(q.ExcludeStatuses) > 0 && q.StatusField == "" {
		return q, errValidation("status_field is required when exclude_statuses is set")
	}
	return q, nil
}

func intParam(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errValidation("expected an integer, got %q", raw)
	}
	return v, nil
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": msg})
}
