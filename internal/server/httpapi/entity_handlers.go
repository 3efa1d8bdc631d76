package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
	"github.com/dmitrijs2005/bizdesk/internal/server/kinds"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func decodeValues(r *http.Request) (map[string]any, error) {
	var input map[string]any
	if err := decodeJSON(r, &input); err != nil {
		return nil, err
	}
	if input == nil {
		input = map[string]any{}
	}
	return input, nil
}

func queryFilters(r *http.Request) map[string]string {
	out := map[string]string{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func (a *API) listEntities(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		rows, err := a.entities.List(r.Context(), id, k, queryFilters(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (a *API) createEntity(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		input, err := decodeValues(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rec, err := a.entities.Create(r.Context(), id, k, input)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (a *API) getEntity(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		entityID, err := pathID(r, "id")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rec, err := a.entities.Get(r.Context(), id, k, entityID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *API) updateEntity(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		entityID, err := pathID(r, "id")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		input, err := decodeValues(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rec, err := a.entities.Update(r.Context(), id, k, entityID, input)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *API) deleteEntity(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		entityID, err := pathID(r, "id")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if err := a.entities.Delete(r.Context(), id, k, entityID); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "deleted", "id": entityID})
	}
}

func (a *API) entityHistory(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		entityID, err := pathID(r, "id")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rows, err := a.entities.History(r.Context(), id, k, entityID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func (a *API) entityHistoryWorkbook(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		entityID, err := pathID(r, "id")
		if err != nil {
			a.fail(w, r, err)
			return
		}
		b, err := a.export.HistoryWorkbook(r.Context(), id, k, entityID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s-%d-history.xlsx"`, k.Name, entityID))
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(b)
	}
}

func (a *API) mine(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		rec, err := a.entities.Mine(r.Context(), id, k)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *API) createMine(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		input, err := decodeValues(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rec, err := a.entities.CreateMine(r.Context(), id, k, input)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	}
}

func (a *API) updateMine(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		input, err := decodeValues(r)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		rec, err := a.entities.UpdateMine(r.Context(), id, k, input)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func (a *API) deleteMine(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		if err := a.entities.DeleteMine(r.Context(), id, k); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "deleted"})
	}
}

func (a *API) reorder(k *kinds.Kind) authedHandler {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		var req struct {
			IDs []int64 `json:"ids"`
		}
		if err := decodeJSON(r, &req); err != nil {
			a.fail(w, r, err)
			return
		}
		if err := a.entities.Reorder(r.Context(), id, k, req.IDs); err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "order updated"})
	}
}
