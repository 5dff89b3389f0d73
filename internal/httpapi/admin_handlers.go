package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"casedesk.io/internal/identity"
)

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type createRoleRequest struct {
	Name            string `json:"name"`
	PagePermissions string `json:"page_permissions"`
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	act := actor(r)
	if !a.requireAdmin(w, r, act, identity.LevelFullControl) {
		return
	}
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	user, err := a.identity.CreateUser(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), act, "Create", "User", strconv.FormatInt(user.ID, 10), map[string]string{
		"username": user.Username,
	})
	writeJSON(w, http.StatusCreated, user)
}

// handleAdminUserScoped covers /api/admin/users/{id}/roles and
// DELETE /api/admin/users/{id}.
func (a *API) handleAdminUserScoped(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if !a.requireAdmin(w, r, act, identity.LevelFullControl) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/users/"), "/")
	parts := strings.Split(rest, "/")
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		if err := a.identity.DeactivateUser(r.Context(), userID); err != nil {
			handleIdentityError(w, r, err)
			return
		}
		a.audit.Record(r.Context(), act, "Deactivate", "User", parts[0], nil)
		w.WriteHeader(http.StatusNoContent)
	case len(parts) == 2 && parts[1] == "roles":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := a.identity.AssignRole(r.Context(), userID, req.RoleID); err != nil {
			handleIdentityError(w, r, err)
			return
		}
		a.audit.Record(r.Context(), act, "AssignRole", "User", parts[0], req)
		w.WriteHeader(http.StatusCreated)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAdminRoles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	act := actor(r)
	if !a.requireAdmin(w, r, act, identity.LevelFullControl) {
		return
	}
	var req createRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	role, err := a.identity.CreateRole(r.Context(), req.Name, req.PagePermissions)
	if err != nil {
		handleIdentityError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), act, "Create", "Role", strconv.FormatInt(role.ID, 10), map[string]string{
		"name": role.Name,
	})
	writeJSON(w, http.StatusCreated, role)
}

// handleAdminRoleScoped covers /api/admin/roles/{roleId}/coverage/{customerId}.
func (a *API) handleAdminRoleScoped(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	if !a.requireAdmin(w, r, act, identity.LevelFullControl) {
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/admin/roles/"), "/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "coverage" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	roleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || roleID <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	customerID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil || customerID <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPost:
		if err := a.identity.AddCoverage(r.Context(), roleID, customerID); err != nil {
			handleIdentityError(w, r, err)
			return
		}
		a.audit.Record(r.Context(), act, "AddCoverage", "Role", parts[0], map[string]int64{
			"customer_id": customerID,
		})
		w.WriteHeader(http.StatusCreated)
	case http.MethodDelete:
		if err := a.identity.RemoveCoverage(r.Context(), roleID, customerID); err != nil {
			handleIdentityError(w, r, err)
			return
		}
		a.audit.Record(r.Context(), act, "RemoveCoverage", "Role", parts[0], map[string]int64{
			"customer_id": customerID,
		})
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}
