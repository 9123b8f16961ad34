package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/api/validate"
	"github.com/himawari-tools/line-secretary/internal/services"
	"github.com/himawari-tools/line-secretary/internal/store"
)

// MemoHandler serves the personal memo, shared memo and memo page
// endpoints.
type MemoHandler struct {
	svc *services.MemoService
}

func NewMemoHandler(svc *services.MemoService) *MemoHandler { return &MemoHandler{svc: svc} }

// ListPersonal GET /api/memos/personal?tag=...&archived=true&limit=...&cursor=...
// Search mode when q= is present.
func (h *MemoHandler) ListPersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))

	if keyword := q.Get("q"); keyword != "" {
		memos, err := h.svc.SearchPersonal(r.Context(), user.UserID, keyword, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"memos": memos,
			"count": len(memos),
		})
		return
	}

	f := store.PersonalMemoFilter{
		IncludeArchived: q.Get("archived") == "true",
		Tag:             q.Get("tag"),
		Limit:           limit,
		Cursor:          q.Get("cursor"),
	}
	memos, err := h.svc.ListPersonal(r.Context(), user.UserID, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	nextCursor := ""
	if len(memos) > 0 && len(memos) == f.Limit {
		nextCursor = memos[len(memos)-1].MemoID
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"memos":      memos,
		"count":      len(memos),
		"nextCursor": nextCursor,
	})
}

// CreatePersonal POST /api/memos/personal
func (h *MemoHandler) CreatePersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title   string   `json:"title"`
		Content string   `json:"content"`
		Tags    []string `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("title", req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.MaxLen("title", &req.Title, 200); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.CreatePersonal(r.Context(), user.UserID, req.Title, req.Content, req.Tags, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetPersonal GET /api/memos/personal/{memoId}
func (h *MemoHandler) GetPersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	out, err := h.svc.GetPersonal(r.Context(), mux.Vars(r)["memoId"], user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdatePersonal PATCH /api/memos/personal/{memoId}
func (h *MemoHandler) UpdatePersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title        *string  `json:"title,omitempty"`
		Content      *string  `json:"content,omitempty"`
		Tags         []string `json:"tags,omitempty"`
		IsArchived   *bool    `json:"isArchived,omitempty"`
		ParentPageID *string  `json:"parentPageId,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	out, err := h.svc.UpdatePersonal(r.Context(), mux.Vars(r)["memoId"], user.UserID, services.PersonalMemoUpdate{
		Title:        req.Title,
		Content:      req.Content,
		Tags:         req.Tags,
		IsArchived:   req.IsArchived,
		ParentPageID: req.ParentPageID,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeletePersonal DELETE /api/memos/personal/{memoId}
func (h *MemoHandler) DeletePersonal(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if err := h.svc.DeletePersonal(r.Context(), mux.Vars(r)["memoId"], user.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListShared GET /api/memos/shared?groupId=...
func (h *MemoHandler) ListShared(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("groupId")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	memos, err := h.svc.ListShared(r.Context(), groupID, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"memos": memos,
		"count": len(memos),
	})
}

// CreateShared POST /api/memos/shared
func (h *MemoHandler) CreateShared(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		GroupID string `json:"groupId"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("groupId", req.GroupID); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	if err := validate.NonEmpty("title", req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.CreateShared(r.Context(), user.UserID, req.GroupID, req.Title, req.Content)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetShared GET /api/memos/shared/{memoId}
func (h *MemoHandler) GetShared(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	out, err := h.svc.GetShared(r.Context(), mux.Vars(r)["memoId"], user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// UpdateShared PATCH /api/memos/shared/{memoId}. The request carries
// the version the client last read; a stale version gets 409.
func (h *MemoHandler) UpdateShared(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title   *string `json:"title,omitempty"`
		Content *string `json:"content,omitempty"`
		Version int64   `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	out, err := h.svc.UpdateShared(r.Context(), mux.Vars(r)["memoId"], user.UserID, services.SharedMemoUpdate{
		Title:   req.Title,
		Content: req.Content,
		Version: req.Version,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeleteShared DELETE /api/memos/shared/{memoId}
func (h *MemoHandler) DeleteShared(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if err := h.svc.DeleteShared(r.Context(), mux.Vars(r)["memoId"], user.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPages GET /api/memos/pages
func (h *MemoHandler) ListPages(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	pages, err := h.svc.ListPages(r.Context(), user.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"pages": pages,
		"count": len(pages),
	})
}

// CreatePage POST /api/memos/pages
func (h *MemoHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title        string  `json:"title"`
		ParentPageID *string `json:"parentPageId,omitempty"`
		Order        int     `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.NonEmpty("title", req.Title); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	out, err := h.svc.CreatePage(r.Context(), user.UserID, req.Title, req.ParentPageID, req.Order)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// UpdatePage PATCH /api/memos/pages/{pageId}
func (h *MemoHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	var req struct {
		Title        *string `json:"title,omitempty"`
		ParentPageID *string `json:"parentPageId,omitempty"`
		Order        *int    `json:"order,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	out, err := h.svc.UpdatePage(r.Context(), mux.Vars(r)["pageId"], user.UserID, services.MemoPageUpdate{
		Title:        req.Title,
		ParentPageID: req.ParentPageID,
		Order:        req.Order,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// DeletePage DELETE /api/memos/pages/{pageId}
func (h *MemoHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if err := h.svc.DeletePage(r.Context(), mux.Vars(r)["pageId"], user.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
