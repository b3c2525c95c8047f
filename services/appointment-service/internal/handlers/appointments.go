package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/md-rashed-zaman/clinicdesk/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicdesk/libs/otel"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/appointments"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/lifecycle"
	"github.com/md-rashed-zaman/clinicdesk/services/appointment-service/internal/model"
)

// AppointmentService is implemented by *appointments.Service.
type AppointmentService interface {
	Reschedule(ctx context.Context, id string, req appointments.RescheduleRequest) (appointments.Result, error)
	Cancel(ctx context.Context, id, reason string) (appointments.Result, error)
	Confirm(ctx context.Context, id string, kind lifecycle.Kind) (appointments.Result, error)
	Get(ctx context.Context, id string) (model.Appointment, error)
	Suggest(ctx context.Context, id string, day time.Time) ([]model.TimeSlot, error)
}

type AppointmentHandler struct {
	svc      AppointmentService
	logger   *slog.Logger
	location *time.Location
}

func NewAppointmentHandler(svc AppointmentService, logger *slog.Logger, location *time.Location) *AppointmentHandler {
	if location == nil {
		location = time.UTC
	}
	return &AppointmentHandler{svc: svc, logger: logger, location: location}
}

// Register mounts the appointment routes on mux.
func (h *AppointmentHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/appointments/reschedule", h.Reschedule)
	mux.HandleFunc("/api/v1/appointments/cancel", h.Cancel)
	mux.HandleFunc("/api/v1/appointments/confirm", h.Confirm)
	mux.HandleFunc("/api/v1/appointments/get", h.Get)
	mux.HandleFunc("/api/v1/appointments/suggestions", h.Suggestions)
}

type rescheduleRequest struct {
	AppointmentID string  `json:"appointment_id"`
	StartTime     *string `json:"start_time"`
	ProviderID    *string `json:"provider_id"`
}

type cancelRequest struct {
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

type confirmRequest struct {
	AppointmentID string `json:"appointment_id"`
	Kind          string `json:"kind"`
}

type patientItem struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type appointmentItem struct {
	ID              string      `json:"id"`
	StartTime       string      `json:"start_time"`
	EndTime         string      `json:"end_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Type            string      `json:"type"`
	ProviderID      *string     `json:"provider_id"`
	Status          string      `json:"status"`
	Notes           string      `json:"notes"`
	Patient         patientItem `json:"patient"`
}

type writeResponse struct {
	Appointment      appointmentItem `json:"appointment"`
	Changed          bool            `json:"changed"`
	AlreadyCancelled bool            `json:"already_cancelled"`
}

type slotItem struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type conflictItem struct {
	AppointmentID string `json:"appointment_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type errorResponse struct {
	Error     string         `json:"error"`
	Message   string         `json:"message"`
	Conflicts []conflictItem `json:"conflicts,omitempty"`
}

func (h *AppointmentHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "appointment_id is required", nil)
		return
	}

	var in appointments.RescheduleRequest
	if req.StartTime != nil {
		start, err := time.Parse(time.RFC3339, strings.TrimSpace(*req.StartTime))
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_input", "invalid start_time", nil)
			return
		}
		in.NewStart = &start
	}
	in.NewProviderID = req.ProviderID

	res, err := h.svc.Reschedule(r.Context(), id, in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeResult(w, res)
}

func (h *AppointmentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req cancelRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "appointment_id is required", nil)
		return
	}

	res, err := h.svc.Cancel(r.Context(), id, req.Reason)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeResult(w, res)
}

func (h *AppointmentHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := strings.TrimSpace(req.AppointmentID)
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "appointment_id is required", nil)
		return
	}
	kind, err := lifecycle.ParseKind(req.Kind)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "kind must be confirmed or present", nil)
		return
	}

	res, err := h.svc.Confirm(r.Context(), id, kind)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	h.writeResult(w, res)
}

func (h *AppointmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "appointment_id is required", nil)
		return
	}

	appt, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]appointmentItem{"appointment": toItem(appt)})
}

// Suggestions lists conflict-free start times on date (YYYY-MM-DD, clinic
// time) for the appointment's current provider.
func (h *AppointmentHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimSpace(r.URL.Query().Get("appointment_id"))
	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if id == "" || dateStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "appointment_id and date are required", nil)
		return
	}
	day, err := time.ParseInLocation(time.DateOnly, dateStr, h.location)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "date must be YYYY-MM-DD", nil)
		return
	}

	slots, err := h.svc.Suggest(r.Context(), id, day)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := make([]slotItem, 0, len(slots))
	for _, s := range slots {
		resp = append(resp, slotItem{
			StartTime: s.Start.UTC().Format(time.RFC3339),
			EndTime:   s.End.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string][]slotItem{"slots": resp})
}

func (h *AppointmentHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "invalid json body", nil)
		return false
	}
	return true
}

func (h *AppointmentHandler) writeResult(w http.ResponseWriter, res appointments.Result) {
	writeJSON(w, http.StatusOK, writeResponse{
		Appointment:      toItem(res.Appointment),
		Changed:          res.Changed,
		AlreadyCancelled: res.AlreadyCancelled,
	})
}

func (h *AppointmentHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var conflictErr *appointments.ConflictError
	switch {
	case errors.As(err, &conflictErr):
		items := make([]conflictItem, 0, len(conflictErr.Conflicts))
		for _, c := range conflictErr.Conflicts {
			items = append(items, conflictItem{
				AppointmentID: c.ID,
				StartTime:     c.Start.UTC().Format(time.RFC3339),
				EndTime:       c.End.UTC().Format(time.RFC3339),
			})
		}
		h.writeError(w, http.StatusConflict, "scheduling_conflict", conflictErr.Error(), items)
	case errors.Is(err, appointments.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "not_found", "appointment not found", nil)
	case errors.Is(err, lifecycle.ErrTerminalState):
		h.writeError(w, http.StatusConflict, "terminal_state", cause(err), nil)
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		h.writeError(w, http.StatusBadRequest, "invalid_transition", cause(err), nil)
	case errors.Is(err, appointments.ErrInvalidInput), errors.Is(err, lifecycle.ErrUnknownKind):
		h.writeError(w, http.StatusBadRequest, "invalid_input", cause(err), nil)
	case errors.Is(err, appointments.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		h.writeError(w, http.StatusGatewayTimeout, "timeout", "operation timed out, retry", nil)
	default:
		h.logger.Error("appointment request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()), "trace_id", otelx.TraceID(r.Context()))
		h.writeError(w, http.StatusInternalServerError, "internal", "internal error", nil)
	}
}

func (h *AppointmentHandler) writeError(w http.ResponseWriter, status int, code, msg string, conflicts []conflictItem) {
	writeJSON(w, status, errorResponse{Error: code, Message: msg, Conflicts: conflicts})
}

// cause strips the "appointments: op id:" prefix so clients see the domain message.
func cause(err error) string {
	msg := err.Error()
	rest, ok := strings.CutPrefix(msg, "appointments: ")
	if !ok {
		return msg
	}
	if _, tail, found := strings.Cut(rest, ": "); found {
		return tail
	}
	return msg
}

func toItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:              a.ID,
		StartTime:       a.StartTime.UTC().Format(time.RFC3339),
		EndTime:         a.EndTime().UTC().Format(time.RFC3339),
		DurationMinutes: a.DurationMinutes,
		Type:            a.Type,
		ProviderID:      a.ProviderID,
		Status:          string(a.Status),
		Notes:           a.Notes,
		Patient: patientItem{
			ID:    a.Patient.ID,
			Name:  a.Patient.Name,
			Phone: a.Patient.Phone,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
