package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/api/validate"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/services"
)

// WarikanHandler serves the bill-split endpoints.
type WarikanHandler struct {
	svc *services.WarikanService
}

func NewWarikanHandler(svc *services.WarikanService) *WarikanHandler {
	return &WarikanHandler{svc: svc}
}

// List GET /api/warikan?status=active
func (h *WarikanHandler) List(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	status := model.WarikanStatus(r.URL.Query().Get("status"))
	if status == "" {
		status = model.WarikanActive
	}
	switch status {
	case model.WarikanActive, model.WarikanSettled, model.WarikanCancelled:
	default:
		respond.WriteBadRequest(w, "unknown status")
		return
	}

	warikans, err := h.svc.List(r.Context(), user.UserID, status, 50)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"warikans": warikans,
		"count":    len(warikans),
	})
}

// Create POST /api/warikan
func (h *WarikanHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title       string `json:"title"`
		TotalAmount int64  `json:"totalAmount"`
		MemberCount int    `json:"memberCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.PositiveAmount("totalAmount", req.TotalAmount); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.IntRange("memberCount", req.MemberCount, 1, services.MaxWarikanMembers); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if req.Title == "" {
		req.Title = "割り勘"
	}

	out, err := h.svc.Create(r.Context(), user.UserID, req.TotalAmount, req.MemberCount, req.Title)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// Get GET /api/warikan/{warikanId}
func (h *WarikanHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	out, err := h.svc.Get(r.Context(), mux.Vars(r)["warikanId"], user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateStatus PATCH /api/warikan/{warikanId}/status
func (h *WarikanHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Status model.WarikanStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	var (
		out *model.Warikan
		err error
	)
	switch req.Status {
	case model.WarikanSettled:
		out, err = h.svc.Settle(r.Context(), mux.Vars(r)["warikanId"], user.UserID)
	case model.WarikanCancelled:
		out, err = h.svc.Cancel(r.Context(), mux.Vars(r)["warikanId"], user.UserID)
	default:
		respond.WriteBadRequest(w, "status must be settled or cancelled")
		return
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// Pay PATCH /api/warikan/{warikanId}/pay
func (h *WarikanHandler) Pay(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	out, member, err := h.svc.Pay(r.Context(), mux.Vars(r)["warikanId"], user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"warikan": out,
		"member":  member,
	})
}
