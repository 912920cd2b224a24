package persist

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/listkeeper/listkeeper/pkg/models"
	"github.com/listkeeper/listkeeper/pkg/store"
)

// List handlers

func (a *App) handleGetLists(w http.ResponseWriter, r *http.Request) {
	lists, err := a.coord.GetAllLists(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, lists)
}

// handleSaveList persists the posted list. The response status tells the
// caller whether the save inserted a new record (201) or merged into an
// existing one (200).
func (a *App) handleSaveList(w http.ResponseWriter, r *http.Request) {
	var list models.List
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	outcome, err := a.coord.SaveList(r.Context(), &list)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if outcome == OutcomeInserted {
		status = http.StatusCreated
	}
	respondJSON(w, status, list)
}

func (a *App) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseListID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid list ID")
		return
	}

	var list models.List
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	list.ID = id

	if err := a.coord.UpdateList(r.Context(), &list); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, list)
}

func (a *App) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseListID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid list ID")
		return
	}

	if err := a.coord.DeleteList(r.Context(), id); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleListPresence(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseListID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid list ID")
		return
	}

	presence, err := a.coord.VerifyListPersistence(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, presence)
}

// Item handlers

func (a *App) handleGetListItems(w http.ResponseWriter, r *http.Request) {
	listID, err := models.ParseListID(mux.Vars(r)["listId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid list ID")
		return
	}

	items, err := a.coord.GetItemsByListID(r.Context(), listID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (a *App) handleSaveItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	outcome, err := a.coord.SaveItem(r.Context(), &item)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	status := http.StatusOK
	if outcome == OutcomeInserted {
		status = http.StatusCreated
	}
	respondJSON(w, status, item)
}

// handleSaveItems writes the posted batch all-or-nothing: either every item
// lands or none do.
func (a *App) handleSaveItems(w http.ResponseWriter, r *http.Request) {
	var items []*models.Item
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	if err := a.coord.SaveMultipleItems(r.Context(), items); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, items)
}

func (a *App) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseItemID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	var item models.Item
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	item.ID = id

	if err := a.coord.UpdateItem(r.Context(), &item); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (a *App) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseItemID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	if err := a.coord.DeleteItem(r.Context(), id); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleItemPresence(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseItemID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid item ID")
		return
	}

	presence, err := a.coord.VerifyItemPersistence(r.Context(), id)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, presence)
}

// Control handlers

// handleForceSync runs a synchronous push to the cloud and blocks until it
// completes. A ?window=30m query restricts the pass to records modified
// within that duration; without it every record is pushed. A concurrent
// full sync answers 409.
func (a *App) handleForceSync(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("window"); raw != "" {
		window, err := time.ParseDuration(raw)
		if err != nil || window <= 0 {
			respondError(w, http.StatusBadRequest, "Invalid sync window")
			return
		}
		if err := a.coord.SyncRecentChanges(r.Context(), time.Now().UTC().Add(-window)); err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "synced", "window": window.String()})
		return
	}
	if err := a.coord.ForceSyncAll(r.Context()); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "synced"})
}

type authStateRequest struct {
	Authenticated bool   `json:"authenticated"`
	Strategy      string `json:"strategy,omitempty"`
}

// handleAuthState transitions the session identity. Signing in runs the
// selected migration strategy before the routing mode flips; signing out
// copies cloud data down to the device first.
func (a *App) handleAuthState(w http.ResponseWriter, r *http.Request) {
	var req authStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	strategy := StrategyIntelligentMerge
	if req.Strategy != "" {
		var err error
		strategy, err = ParseStrategy(req.Strategy)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	if err := a.coord.UpdateAuthenticationState(r.Context(), req.Authenticated, strategy); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"authenticated": a.coord.Authenticated(),
		"mode":          a.coord.Mode(),
	})
}

type migrateRequest struct {
	Strategy string `json:"strategy"`
}

func (a *App) handleMigrate(w http.ResponseWriter, r *http.Request) {
	var req migrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	strategy, err := ParseStrategy(req.Strategy)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.coord.MigrateData(r.Context(), strategy); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "migrated"})
}

func (a *App) handlePendingMigration(w http.ResponseWriter, r *http.Request) {
	pending, err := a.coord.HasPendingMigration(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"pending": pending})
}

func (a *App) handleReload(w http.ResponseWriter, r *http.Request) {
	report, err := a.coord.ReloadFromStore(r.Context())
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (a *App) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := a.coord.ClearAllData(r.Context()); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (a *App) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, a.coord.Stats())
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"mode":   a.coord.Mode(),
		"time":   time.Now().Unix(),
	})
}

// statusFor maps the persistence error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var verr *ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, store.ErrReadOnly):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrSyncInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrMigrationDecisionRequired):
		return http.StatusConflict
	case errors.Is(err, ErrNotInitialized), errors.Is(err, ErrAlreadyInitialized):
		return http.StatusServiceUnavailable
	case errors.As(err, &verr):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends payload as a JSON response with the given status. A nil
// payload produces an empty body.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

// respondError sends a standardized JSON error body:
//
//	{"error": "message"}
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
