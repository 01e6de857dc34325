package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// AdminHandler handles role permissions and the audit trails.
type AdminHandler struct {
	DB *sql.DB
}

// ListPermissions handles GET /api/admin/roles/permissions.
func (h *AdminHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := store.ListPermissions(r.Context(), h.DB)
	if err != nil {
		writeStoreError(w, err, "list permissions")
		return
	}
	perms = append([]model.Permissions{model.AllPermissions(model.RoleAdmin)}, perms...)
	jsonResponse(w, http.StatusOK, perms)
}

// GetPermissions handles GET /api/admin/roles/permissions/{role}.
func (h *AdminHandler) GetPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := store.GetPermissions(r.Context(), h.DB, r.PathValue("role"))
	if err != nil {
		writeStoreError(w, err, "get permissions")
		return
	}
	jsonResponse(w, http.StatusOK, perms)
}

// SetPermissions handles PUT /api/admin/roles/permissions/{role}.
func (h *AdminHandler) SetPermissions(w http.ResponseWriter, r *http.Request) {
	var req model.Permissions
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.RoleName = r.PathValue("role")

	perms, err := store.SetPermissions(r.Context(), h.DB, req)
	if err != nil {
		writeStoreError(w, err, "set permissions")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("role permissions updated", "user", claims.Username, "role", perms.RoleName)
	jsonResponse(w, http.StatusOK, perms)
}

// DeletePermissions handles DELETE /api/admin/roles/permissions/{role}.
func (h *AdminHandler) DeletePermissions(w http.ResponseWriter, r *http.Request) {
	role := r.PathValue("role")
	if err := store.DeletePermissions(r.Context(), h.DB, role); err != nil {
		writeStoreError(w, err, "delete permissions")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("role permissions deleted", "user", claims.Username, "role", role)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "permissions deleted"})
}

// ItemsAudit handles GET /api/admin/items-audit.
func (h *AdminHandler) ItemsAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.AuditFilter{
		ItemID:      q.Get("itemId"),
		Action:      model.Action(q.Get("action")),
		PerformedBy: q.Get("actor"),
	}
	if f.PerformedBy == "" {
		f.PerformedBy = q.Get("performedBy")
	}
	if f.Action != "" && !f.Action.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown action")
		return
	}

	var err error
	if f.Since, f.Until, err = timeRange(q); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Page, f.PageSize, err = pageParams(q); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := store.ListItemAuditLogs(r.Context(), h.DB, f)
	if err != nil {
		writeStoreError(w, err, "list audit logs")
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// UsersAudit handles GET /api/admin/users-audit.
func (h *AdminHandler) UsersAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := model.RoleAuditFilter{
		Action:      model.UserAuditAction(q.Get("action")),
		Target:      q.Get("target"),
		PerformedBy: q.Get("performedBy"),
	}
	if f.Action != "" && !f.Action.Valid() {
		jsonError(w, http.StatusBadRequest, "unknown action")
		return
	}

	var err error
	if f.Since, f.Until, err = timeRange(q); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Page, f.PageSize, err = pageParams(q); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := store.ListRoleAuditLogs(r.Context(), h.DB, f)
	if err != nil {
		writeStoreError(w, err, "list user audit logs")
		return
	}
	jsonResponse(w, http.StatusOK, page)
}

// MyPermissions handles GET /api/me/permissions.
func (h *AdminHandler) MyPermissions(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	perms, err := store.GetPermissions(r.Context(), h.DB, claims.Role)
	if err != nil {
		writeStoreError(w, err, "get permissions")
		return
	}
	jsonResponse(w, http.StatusOK, perms)
}

// timeRange reads the since/until query parameters.
func timeRange(q url.Values) (since, until time.Time, err error) {
	if since, err = parseTimeParam(q.Get("since")); err != nil {
		return since, until, errors.New("invalid since")
	}
	if until, err = parseTimeParam(q.Get("until")); err != nil {
		return since, until, errors.New("invalid until")
	}
	return since, until, nil
}

// pageParams reads the page/pageSize query parameters; absent values are 0.
func pageParams(q url.Values) (page, size int, err error) {
	if v := q.Get("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.New("invalid page")
		}
	}
	if v := q.Get("pageSize"); v != "" {
		if size, err = strconv.Atoi(v); err != nil {
			return 0, 0, errors.New("invalid pageSize")
		}
	}
	return page, size, nil
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates.
func parseTimeParam(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}
