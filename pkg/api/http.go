package api

import (
	"net/http"

	"marketsync/pkg/api/handlers"
	"marketsync/pkg/auth"
	"marketsync/pkg/chat"
	"marketsync/pkg/notify"
	"marketsync/pkg/store"
	"marketsync/pkg/telemetry"
	"marketsync/pkg/utils"

	"github.com/gorilla/mux"
)

// Handler builds the full HTTP surface: health, the v1 messaging,
// notification and admin endpoints, and the middleware chain (metrics,
// gateway auth, verified identity).
func Handler(svc *chat.Service, eng *notify.Engine, sec auth.SecConfig, retention handlers.RetentionRunner) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !store.Ready() {
			utils.JSONError(w, http.StatusServiceUnavailable, "store not ready")
			return
		}
		utils.JSONAck(w)
	}).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	handlers.RegisterMessages(v1, svc)
	handlers.RegisterNotifications(v1, eng, svc)
	handlers.RegisterAdmin(v1, retention)

	var h http.Handler = r
	h = auth.RequireVerifiedActor(h)
	h = auth.Gateway(sec)(h)
	h = telemetry.Middleware(h)
	return h
}
