package handlers

import (
	"net/http"
	"strconv"

	"marketsync/pkg/chat"
	"marketsync/pkg/models"
	"marketsync/pkg/notify"
	"marketsync/pkg/utils"

	"github.com/gorilla/mux"
)

var engine *notify.Engine

// RegisterNotifications registers the watermark and counterpart endpoints
// on the v1 router.
func RegisterNotifications(r *mux.Router, e *notify.Engine, s *chat.Service) {
	engine = e
	if svc == nil {
		svc = s
	}

	r.HandleFunc("/notifications/{collection}/diff", watermarkDiff).Methods(http.MethodGet)
	r.HandleFunc("/notifications/{collection}/reset", watermarkReset).Methods(http.MethodPost)
	r.HandleFunc("/participants/{id}/counterparts", listCounterparts).Methods(http.MethodGet)
}

func watermarkDiff(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	observer, ok := resolveObserver(w, r, r.URL.Query().Get("observer"))
	if !ok {
		return
	}

	var (
		delta int64
		err   error
	)
	if s := r.URL.Query().Get("count"); s != "" {
		// externally counted collection: the caller supplies the current
		// count and the engine only owns the baseline
		current, perr := strconv.ParseInt(s, 10, 64)
		if perr != nil || current < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid count")
			return
		}
		delta, err = engine.DiffAt(collection, observer, current)
	} else {
		delta, err = engine.Diff(collection, observer)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int64{"new_count": delta})
}

func watermarkReset(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]
	observer, ok := resolveObserver(w, r, r.URL.Query().Get("observer"))
	if !ok {
		return
	}
	if err := engine.Reset(collection, observer); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSONAck(w)
}

func listCounterparts(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	role := models.Role(r.URL.Query().Get("role"))
	out, err := svc.Counterparts(id, role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ID           string               `json:"id"`
		Counterparts []models.Participant `json:"counterparts"`
	}{ID: id, Counterparts: out})
}
