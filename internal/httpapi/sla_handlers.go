package httpapi

import (
	"errors"
	"net/http"

	"casedesk.io/internal/identity"
	"casedesk.io/internal/sla"
)

type slaBulkRequest struct {
	Thresholds []sla.Threshold `json:"thresholds"`
}

func (a *API) handleSLAConfiguration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	list, err := a.sla.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (a *API) handleSLABulk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	act := actor(r)
	if !a.requireAdmin(w, r, act, identity.LevelFullControl) {
		return
	}

	var req slaBulkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.sla.BulkUpsert(r.Context(), req.Thresholds); err != nil {
		if errors.Is(err, sla.ErrInvalidInput) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.audit.Record(r.Context(), act, "Update", "SLAConfiguration", "", req.Thresholds)
	w.WriteHeader(http.StatusNoContent)
}

// requireAdmin answers 403 and returns false when the actor lacks the
// Admin page at the given level.
func (a *API) requireAdmin(w http.ResponseWriter, r *http.Request, act identity.Actor, level identity.PermissionLevel) bool {
	admin, err := a.identity.IsAdmin(r.Context(), act, level)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return false
	}
	if !admin {
		writeError(w, r, http.StatusForbidden, "administrator access required")
		return false
	}
	return true
}
