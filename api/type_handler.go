package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/docsync/syncjob"
)

// decodeType reads a type definition. Omitted fields keep the NewType
// defaults.
func decodeType(r *http.Request, name string) (*syncjob.Type, error) {
	t := syncjob.NewType(name)
	if err := decodeBody(r, t); err != nil {
		return nil, fmt.Errorf("invalid type definition: %w", err)
	}
	return t, nil
}

func (a *API) createType(w http.ResponseWriter, r *http.Request) {
	t, err := decodeType(r, "")
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if err := a.eng.CreateType(r.Context(), t); err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (a *API) listTypes(w http.ResponseWriter, r *http.Request) {
	types, err := a.eng.ListTypes(r.Context())
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

func (a *API) getType(w http.ResponseWriter, r *http.Request) {
	t, err := a.eng.GetType(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (a *API) updateType(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	existing, err := a.eng.GetType(r.Context(), name)
	if err != nil {
		a.writeEngineErr(w, err)
		return
	}

	t, err := decodeType(r, name)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err)
		return
	}
	if t.Name != name {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("type name %q does not match path %q", t.Name, name))
		return
	}
	t.Entity = existing.Entity

	if err := a.eng.UpdateType(r.Context(), t); err != nil {
		a.writeEngineErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}
