package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", app.getDashboardHandler).Methods(http.MethodGet)
	r.HandleFunc("/login", app.postLoginHandler).Methods(http.MethodPost)
	r.HandleFunc("/logout", app.postLogoutHandler).Methods(http.MethodPost)
	r.HandleFunc("/actions", app.postActionHandler).Methods(http.MethodPost)
	r.HandleFunc("/database/drop", app.postDropHandler).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/view", app.apiViewHandler).Methods(http.MethodGet)
	api.HandleFunc("/login", app.apiLoginHandler).Methods(http.MethodPost)
	api.HandleFunc("/logout", app.apiLogoutHandler).Methods(http.MethodPost)
	api.HandleFunc("/actions", app.apiActionHandler).Methods(http.MethodPost)
	api.HandleFunc("/database/drop", app.apiDropHandler).Methods(http.MethodPost)

	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", app.metricsHandler).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(WithRecover(r)))
}
