package api

import (
	"encoding/json"
	"net/http"

	"github.com/himawari-tools/line-secretary/internal/api/respond"
	"github.com/himawari-tools/line-secretary/internal/api/validate"
	"github.com/himawari-tools/line-secretary/internal/model"
	"github.com/himawari-tools/line-secretary/internal/services"
)

// UserHandler serves the account endpoints.
type UserHandler struct {
	svc    *services.UserService
	groups *services.GroupService
}

func NewUserHandler(svc *services.UserService, groups *services.GroupService) *UserHandler {
	return &UserHandler{svc: svc, groups: groups}
}

// GetProfile GET /api/user/profile
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, userFrom(r))
}

// UpdateSettings PATCH /api/user/settings
func (h *UserHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)

	settings := user.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := validate.OneOf("language", settings.Language, "ja", "en"); err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}

	updated, err := h.svc.UpdateSettings(r.Context(), user.UserID, settings)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, updated)
}

// ListGroups GET /api/user/groups
func (h *UserHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	groups, err := h.groups.ListForUser(r.Context(), user.UserID, 50)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if groups == nil {
		groups = []*model.Group{}
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"groups": groups,
		"count":  len(groups),
	})
}

// GetUsage GET /api/user/usage
func (h *UserHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	limits := model.LimitsFor(user.Plan)
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"plan":   user.Plan,
		"usage":  user.Usage,
		"limits": limits,
	})
}
