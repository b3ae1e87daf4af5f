package handlers

import (
	"net/http"

	"marketsync/pkg/logger"
	"marketsync/pkg/utils"

	"github.com/gorilla/mux"
)

// RetentionRunner triggers a single immediate retention sweep.
type RetentionRunner func() error

var runRetention RetentionRunner

// RegisterAdmin registers backend-only operational endpoints on the v1
// router.
func RegisterAdmin(r *mux.Router, run RetentionRunner) {
	runRetention = run

	r.HandleFunc("/admin/retention/run", triggerRetention).Methods(http.MethodPost)
}

func triggerRetention(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Role-Name") != "backend" {
		utils.JSONError(w, http.StatusForbidden, "backend key required")
		return
	}
	if runRetention == nil {
		utils.JSONError(w, http.StatusServiceUnavailable, "retention not configured")
		return
	}
	if err := runRetention(); err != nil {
		logger.Error("retention_trigger_failed", "error", err)
		utils.JSONError(w, http.StatusInternalServerError, "retention run failed")
		return
	}
	utils.JSONAck(w)
}
