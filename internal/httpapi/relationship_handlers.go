package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type createRelationshipRequest struct {
	SourceCaseID  int64  `json:"source_case_id"`
	RelatedCaseID int64  `json:"related_case_id"`
	Type          string `json:"type"`
	Notes         string `json:"notes"`
}

type deleteRelationshipRequest struct {
	SourceCaseID  int64  `json:"source_case_id"`
	RelatedCaseID int64  `json:"related_case_id"`
	Type          string `json:"type"`
}

func (a *API) handleRelationships(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listRelationships(w, r)
	case http.MethodPost:
		a.createRelationship(w, r)
	case http.MethodDelete:
		a.deleteRelationship(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) listRelationships(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	filter, err := a.filterFor(r.Context(), act)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	caseID, err := strconv.ParseInt(r.URL.Query().Get("caseId"), 10, 64)
	if err != nil || caseID <= 0 {
		writeError(w, r, http.StatusBadRequest, "caseId is required")
		return
	}
	list, err := a.cases.Related(r.Context(), filter, caseID)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	openCount, err := a.cases.OpenRelatedCount(r.Context(), caseID)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit.RecordList(r.Context(), act, "CaseRelationship", len(list))
	writeJSON(w, http.StatusOK, map[string]any{
		"relationships":      list,
		"open_related_count": openCount,
	})
}

func (a *API) createRelationship(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	filter, err := a.filterFor(r.Context(), act)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	var req createRelationshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	// Both endpoints must be visible to the caller.
	if _, err := a.cases.Get(r.Context(), filter, req.SourceCaseID); err != nil {
		handleCaseError(w, r, err)
		return
	}
	if _, err := a.cases.Get(r.Context(), filter, req.RelatedCaseID); err != nil {
		handleCaseError(w, r, err)
		return
	}

	forward, reverse, err := a.cases.Link(r.Context(), req.SourceCaseID, req.RelatedCaseID, req.Type, req.Notes, act.Username)
	if err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), act, "Create", "CaseRelationship", strconv.FormatInt(forward.ID, 10), forward)
	writeJSON(w, http.StatusCreated, map[string]any{
		"forward": forward,
		"reverse": reverse,
	})
}

func (a *API) deleteRelationship(w http.ResponseWriter, r *http.Request) {
	act := actor(r)
	filter, err := a.filterFor(r.Context(), act)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	var req deleteRelationshipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := a.cases.Get(r.Context(), filter, req.SourceCaseID); err != nil {
		handleCaseError(w, r, err)
		return
	}
	if err := a.cases.Unlink(r.Context(), req.SourceCaseID, req.RelatedCaseID, req.Type); err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), act, "Delete", "CaseRelationship", "", req)
	w.WriteHeader(http.StatusNoContent)
}

// handleRelationshipScoped covers DELETE /api/caserelationships/{id}. The
// id names one directed row; the whole mirrored pair is removed.
func (a *API) handleRelationshipScoped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/caserelationships/"), "/")
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	act := actor(r)
	filter, err := a.filterFor(r.Context(), act)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if err := a.cases.UnlinkByID(r.Context(), filter, id); err != nil {
		handleCaseError(w, r, err)
		return
	}
	a.audit.Record(r.Context(), act, "Delete", "CaseRelationship", rest, nil)
	w.WriteHeader(http.StatusNoContent)
}
