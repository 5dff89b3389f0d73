package httpapi

import (
	"net/http"
	"time"

	"casedesk.io/internal/audit"
	"casedesk.io/internal/identity"
)

func (a *API) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	act := actor(r)

	query := r.URL.Query()
	q := audit.Query{
		EntityType: query.Get("entityType"),
		Action:     query.Get("action"),
	}
	if raw := query.Get("fromDate"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "fromDate must be RFC3339")
			return
		}
		q.From = &from
	}
	if raw := query.Get("toDate"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "toDate must be RFC3339")
			return
		}
		q.To = &to
	}

	// viewAll lets administrators browse everyone's trail. Everyone else is
	// pinned to their own entries regardless of the parameter.
	admin, err := a.identity.IsAdmin(r.Context(), act, identity.LevelReadOnly)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !admin || query.Get("viewAll") != "true" {
		q.Username = act.Username
	}

	entries, err := a.audit.List(r.Context(), q)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (a *API) handleIsAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	admin, err := a.identity.IsAdmin(r.Context(), actor(r), identity.LevelReadOnly)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_admin": admin})
}
