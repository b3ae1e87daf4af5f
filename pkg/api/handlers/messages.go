package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"marketsync/pkg/auth"
	"marketsync/pkg/chat"
	"marketsync/pkg/models"
	"marketsync/pkg/notify"
	"marketsync/pkg/utils"

	"github.com/gorilla/mux"
)

var svc *chat.Service

// RegisterMessages registers the message endpoints on the v1 router.
func RegisterMessages(r *mux.Router, s *chat.Service) {
	svc = s

	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages", listMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/mark-read", markRead).Methods(http.MethodPut)
	r.HandleFunc("/messages/unread-count", unreadCount).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", editMessage).Methods(http.MethodPut)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/versions", listVersions).Methods(http.MethodGet)
}

// writeServiceError maps the service error taxonomy onto HTTP statuses.
// "You're not allowed" and "try again" must stay distinguishable for the
// polling clients.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		utils.JSONError(w, http.StatusBadRequest, "validation_error")
	case errors.Is(err, chat.ErrNotOwner):
		utils.JSONError(w, http.StatusForbidden, "not_owner")
	case errors.Is(err, chat.ErrWindowExpired):
		utils.JSONError(w, http.StatusConflict, "edit_window_expired")
	case errors.Is(err, chat.ErrNotFound):
		utils.JSONError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, notify.ErrUnknownCollection):
		utils.JSONError(w, http.StatusNotFound, "unknown_collection")
	default:
		utils.JSONError(w, http.StatusServiceUnavailable, "store_unavailable")
	}
}

// resolveObserver picks the acting participant: the signature-verified
// identity when present, otherwise the stated id (backend callers only,
// enforced by the identity middleware). A stated id conflicting with the
// verified one is rejected.
func resolveObserver(w http.ResponseWriter, r *http.Request, stated string) (string, bool) {
	actor := auth.ActorFromContext(r.Context())
	if actor != "" {
		if stated != "" && stated != actor {
			utils.JSONError(w, http.StatusForbidden, "identity_mismatch")
			return "", false
		}
		return actor, true
	}
	if stated == "" {
		utils.JSONError(w, http.StatusUnauthorized, "missing identity")
		return "", false
	}
	return stated, true
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SenderID   string `json:"sender_id"`
		ReceiverID string `json:"receiver_id"`
		Body       string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sender, ok := resolveObserver(w, r, in.SenderID)
	if !ok {
		return
	}
	msg, err := svc.Send(sender, in.ReceiverID, in.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, msg)
}

func listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, b := q.Get("a"), q.Get("b")
	if a == "" || b == "" {
		utils.JSONError(w, http.StatusBadRequest, "participants a and b are required")
		return
	}
	limit := 0
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			utils.JSONError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	conv := chat.ConversationKey(a, b)
	msgs, next, err := svc.List(conv, q.Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
		NextCursor   string           `json:"next_cursor,omitempty"`
	}{Conversation: conv, Messages: msgs, NextCursor: next})
}

func editMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var in struct {
		ActorID string `json:"actor_id"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	actor, ok := resolveObserver(w, r, in.ActorID)
	if !ok {
		return
	}
	msg, err := svc.Edit(id, actor, in.Body)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, msg)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	actor, ok := resolveObserver(w, r, r.URL.Query().Get("actor"))
	if !ok {
		return
	}
	if err := svc.Delete(id, actor); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSONAck(w)
}

func markRead(w http.ResponseWriter, r *http.Request) {
	var in struct {
		PeerID     string `json:"peer_id"`
		ObserverID string `json:"observer_id"`
		UptoID     string `json:"upto_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	observer, ok := resolveObserver(w, r, in.ObserverID)
	if !ok {
		return
	}
	if in.PeerID == "" {
		utils.JSONError(w, http.StatusBadRequest, "peer_id is required")
		return
	}
	if err := svc.MarkRead(observer, in.PeerID, observer, in.UptoID); err != nil {
		writeServiceError(w, err)
		return
	}
	utils.JSONAck(w)
}

func unreadCount(w http.ResponseWriter, r *http.Request) {
	observer, ok := resolveObserver(w, r, r.URL.Query().Get("observer"))
	if !ok {
		return
	}
	n, err := svc.UnreadCount(observer)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, map[string]int{"count": n})
}

func listVersions(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	vs, err := svc.Versions(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		ID       string           `json:"id"`
		Versions []models.Message `json:"versions"`
	}{ID: id, Versions: vs})
}
