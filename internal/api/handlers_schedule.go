package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/api/validate"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/services"
)

// ScheduleHandler serves the calendar endpoints.
type ScheduleHandler struct {
	svc *services.ScheduleService
}

func NewScheduleHandler(svc *services.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

// List GET /api/schedule?from=...&to=... (RFC3339; defaults to the
// coming 7 days)
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	from := time.Now()
	to := from.AddDate(0, 0, 7)
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := validate.RFC3339("from", v)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := validate.RFC3339("to", v)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		to = t
	}

	schedules, err := h.svc.ListRange(r.Context(), user.UserID, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"schedules": schedules,
		"count":     len(schedules),
	})
}

// Create POST /api/schedule
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title       string  `json:"title"`
		Description *string `json:"description,omitempty"`
		StartTime   string  `json:"startTime"`
		AllDay      bool    `json:"allDay"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("title", req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	start, err := validate.RFC3339("startTime", req.StartTime)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.Create(r.Context(), user.UserID, req.Title, req.Description, start, req.AllDay)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// Get GET /api/schedule/{scheduleId}
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	out, err := h.svc.Get(r.Context(), mux.Vars(r)["scheduleId"], user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Update PATCH /api/schedule/{scheduleId}
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title       *string `json:"title,omitempty"`
		Description *string `json:"description,omitempty"`
		StartTime   *string `json:"startTime,omitempty"`
		EndTime     *string `json:"endTime,omitempty"`
		AllDay      *bool   `json:"allDay,omitempty"`
		Location    *string `json:"location,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	upd := services.ScheduleUpdate{
		Title:       req.Title,
		Description: req.Description,
		AllDay:      req.AllDay,
		Location:    req.Location,
	}
	if req.StartTime != nil {
		t, err := validate.RFC3339("startTime", *req.StartTime)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		upd.StartTime = &t
	}
	if req.EndTime != nil {
		t, err := validate.RFC3339("endTime", *req.EndTime)
		if err != nil {
			respond.WriteBadRequest(w, err.Error())
			return
		}
		upd.EndTime = &t
	}

	out, err := h.svc.Update(r.Context(), mux.Vars(r)["scheduleId"], user.UserID, upd)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateStatus PATCH /api/schedule/{scheduleId}/status
func (h *ScheduleHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Status model.ScheduleStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	var (
		out *model.Schedule
		err error
	)
	switch req.Status {
	case model.ScheduleCompleted:
		out, err = h.svc.Complete(r.Context(), mux.Vars(r)["scheduleId"], user.UserID)
	case model.ScheduleCancelled:
		out, err = h.svc.Cancel(r.Context(), mux.Vars(r)["scheduleId"], user.UserID)
	default:
		respond.WriteBadRequest(w, "status must be completed or cancelled")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Delete DELETE /api/schedule/{scheduleId}
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["scheduleId"], user.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
