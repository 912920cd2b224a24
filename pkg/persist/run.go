package persist

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/listkeeper/listkeeper/pkg/logger"
)

// Run starts the HTTP server exposing the persistence API.
//
// # API Endpoints
//
// Lists:
//
//	GET    /api/lists                       - All lists from the active store
//	POST   /api/lists                       - Save a list (insert or merge)
//	PUT    /api/lists/{id}                  - Update a list
//	DELETE /api/lists/{id}                  - Delete a list
//	GET    /api/lists/{id}/presence         - Probe both stores for the list
//	GET    /api/lists/{listId}/items        - Items of one list
//
// Items:
//
//	POST   /api/items                       - Save an item (insert or merge)
//	POST   /api/items/batch                 - Save a batch, all or nothing
//	PUT    /api/items/{id}                  - Update an item
//	DELETE /api/items/{id}                  - Delete an item
//	GET    /api/items/{id}/presence         - Probe both stores for the item
//
// Control:
//
//	POST   /api/sync                        - Synchronous full push to the cloud
//	POST   /api/sync?window=30m             - Push only recently modified records
//	POST   /api/auth/state                  - Sign in or out, with migration strategy
//	POST   /api/migrate                     - Run a migration strategy
//	GET    /api/migrate/pending             - Whether local data awaits migration
//	POST   /api/reload                      - Re-read the active store, report orphans
//	POST   /api/clear                       - Wipe the active store (safety snapshot first)
//	GET    /api/stats                       - Coordinator diagnostics
//	GET    /api/health, /health             - Service health
//
// The method blocks until the context is cancelled or the server fails. On
// shutdown, active requests get five seconds to complete.
func (a *App) Run(ctx context.Context, cmd *RunCommand) error {
	router := a.routes()

	addr := fmt.Sprintf(":%s", a.config.ServerPort)
	a.log.Info("starting listkeeper server", logger.Fields{
		"addr": addr,
		"mode": string(a.coord.Mode()),
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server", nil)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-serverErr:
		return err
	}
}

func (a *App) routes() *mux.Router {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", a.handleHealth).Methods("GET")

	api.HandleFunc("/lists", a.handleGetLists).Methods("GET")
	api.HandleFunc("/lists", a.handleSaveList).Methods("POST")
	api.HandleFunc("/lists/{id}", a.handleUpdateList).Methods("PUT")
	api.HandleFunc("/lists/{id}", a.handleDeleteList).Methods("DELETE")
	api.HandleFunc("/lists/{id}/presence", a.handleListPresence).Methods("GET")
	api.HandleFunc("/lists/{listId}/items", a.handleGetListItems).Methods("GET")

	api.HandleFunc("/items", a.handleSaveItem).Methods("POST")
	api.HandleFunc("/items/batch", a.handleSaveItems).Methods("POST")
	api.HandleFunc("/items/{id}", a.handleUpdateItem).Methods("PUT")
	api.HandleFunc("/items/{id}", a.handleDeleteItem).Methods("DELETE")
	api.HandleFunc("/items/{id}/presence", a.handleItemPresence).Methods("GET")

	api.HandleFunc("/sync", a.handleForceSync).Methods("POST")
	api.HandleFunc("/auth/state", a.handleAuthState).Methods("POST")
	api.HandleFunc("/migrate", a.handleMigrate).Methods("POST")
	api.HandleFunc("/migrate/pending", a.handlePendingMigration).Methods("GET")
	api.HandleFunc("/reload", a.handleReload).Methods("POST")
	api.HandleFunc("/clear", a.handleClear).Methods("POST")
	api.HandleFunc("/stats", a.handleStats).Methods("GET")

	// Health check route outside the /api prefix
	router.HandleFunc("/health", a.handleHealth).Methods("GET")

	return router
}
