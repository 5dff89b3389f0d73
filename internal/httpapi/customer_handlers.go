package httpapi

import (
	"errors"
	"net/http"

	"casedesk.io/internal/customers"
)

func (a *API) handleCustomers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	act := actor(r)
	filter, err := a.filterFor(r.Context(), act)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	list, err := a.customers.List(r.Context(), filter)
	if err != nil {
		if errors.Is(err, customers.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	a.audit.RecordList(r.Context(), act, "Customer", len(list))
	writeJSON(w, http.StatusOK, list)
}
