package api

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketsync/pkg/api/handlers"
	"marketsync/pkg/auth"
	"marketsync/pkg/chat"
	"marketsync/pkg/config"
	"marketsync/pkg/models"
	"marketsync/pkg/notify"
	"marketsync/pkg/store"
)

const (
	backendKey  = "backend-secret"
	frontendKey = "frontend-secret"
)

// signHMAC produces the X-User-Signature value a trusted server would mint
// for a frontend caller.
func signHMAC(key, userID string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(userID))
	return hex.EncodeToString(mac.Sum(nil))
}

func setupServer(t *testing.T, retention ...handlers.RetentionRunner) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	config.SetRuntime(&config.RuntimeConfig{
		BackendKeys:  map[string]struct{}{backendKey: {}},
		FrontendKeys: map[string]struct{}{frontendKey: {}},
		SigningKeys:  map[string]struct{}{backendKey: {}},
	})

	dir := chat.NewStaticDirectory([]chat.StaticEntry{
		{ID: "adm-1", Role: models.RoleShop, Counterparts: []models.Participant{
			{ID: "shop-1", Role: models.RoleShop},
		}},
	})
	svc := chat.NewService(15*time.Minute, dir)
	eng := notify.NewEngine([]string{"products"})
	eng.Register("messages", store.CountMessagesTo)

	sec := auth.SecConfig{
		RPS:          1000,
		Burst:        1000,
		BackendKeys:  map[string]struct{}{backendKey: {}},
		FrontendKeys: map[string]struct{}{frontendKey: {}},
	}
	run := handlers.RetentionRunner(func() error { return nil })
	if len(retention) > 0 {
		run = retention[0]
	}
	srv := httptest.NewServer(Handler(svc, eng, sec, run))
	t.Cleanup(srv.Close)
	return srv
}

// doAs sends a request authenticated as the given frontend user.
func doAs(t *testing.T, srv *httptest.Server, user, method, path string, body interface{}) *http.Response {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, _ := http.NewRequest(method, srv.URL+path, rd)
	req.Header.Set("X-API-Key", frontendKey)
	req.Header.Set("X-User-ID", user)
	req.Header.Set("X-User-Signature", signHMAC(backendKey, user))
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return res
}

func decode(t *testing.T, res *http.Response, v interface{}) {
	t.Helper()
	defer res.Body.Close()
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthzSkipsAuth(t *testing.T) {
	srv := setupServer(t)
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("healthz status %d", res.StatusCode)
	}
}

func TestMissingAPIKeyUnauthorized(t *testing.T) {
	srv := setupServer(t)
	res, err := http.Get(srv.URL + "/v1/messages?a=x&b=y")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", res.StatusCode)
	}
}

func TestInvalidSignatureUnauthorized(t *testing.T) {
	srv := setupServer(t)
	req, _ := http.NewRequest("GET", srv.URL+"/v1/messages?a=x&b=y", nil)
	req.Header.Set("X-API-Key", frontendKey)
	req.Header.Set("X-User-ID", "cust-1")
	req.Header.Set("X-User-Signature", "deadbeef")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", res.StatusCode)
	}
}

func TestSendAndListFlow(t *testing.T) {
	srv := setupServer(t)

	res := doAs(t, srv, "cust-1", "POST", "/v1/messages", map[string]string{
		"receiver_id": "shop-1",
		"body":        "is my order ready?",
	})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("send status %d", res.StatusCode)
	}
	var sent models.Message
	decode(t, res, &sent)
	if sent.SenderID != "cust-1" || sent.ID == "" {
		t.Fatalf("unexpected message: %+v", sent)
	}

	res = doAs(t, srv, "shop-1", "GET", "/v1/messages?a=cust-1&b=shop-1", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("list status %d", res.StatusCode)
	}
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, res, &out)
	if len(out.Messages) != 1 || out.Messages[0].Body != "is my order ready?" {
		t.Fatalf("unexpected listing: %+v", out.Messages)
	}
}

func TestStatedSenderMustMatchIdentity(t *testing.T) {
	srv := setupServer(t)

	res := doAs(t, srv, "cust-1", "POST", "/v1/messages", map[string]string{
		"sender_id":   "cust-2", // forged
		"receiver_id": "shop-1",
		"body":        "spoof",
	})
	defer res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", res.StatusCode)
	}
}

func TestBackendStatesActorWithoutSignature(t *testing.T) {
	srv := setupServer(t)

	b, _ := json.Marshal(map[string]string{"receiver_id": "shop-1", "body": "via backend"})
	req, _ := http.NewRequest("POST", srv.URL+"/v1/messages", bytes.NewReader(b))
	req.Header.Set("X-API-Key", backendKey)
	req.Header.Set("X-User-ID", "cust-9")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	var sent models.Message
	decode(t, res, &sent)
	if res.StatusCode != http.StatusCreated || sent.SenderID != "cust-9" {
		t.Fatalf("status %d sender %q", res.StatusCode, sent.SenderID)
	}
}

func TestEditForbiddenForNonOwner(t *testing.T) {
	srv := setupServer(t)

	res := doAs(t, srv, "cust-1", "POST", "/v1/messages", map[string]string{
		"receiver_id": "shop-1", "body": "mine",
	})
	var sent models.Message
	decode(t, res, &sent)

	res = doAs(t, srv, "shop-1", "PUT", "/v1/messages/"+sent.ID, map[string]string{"body": "hijack"})
	defer res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d, want 403", res.StatusCode)
	}
}

func TestEditAndDeleteByOwner(t *testing.T) {
	srv := setupServer(t)

	res := doAs(t, srv, "cust-1", "POST", "/v1/messages", map[string]string{
		"receiver_id": "shop-1", "body": "typo"})
	var sent models.Message
	decode(t, res, &sent)

	res = doAs(t, srv, "cust-1", "PUT", "/v1/messages/"+sent.ID, map[string]string{"body": "fixed"})
	var edited models.Message
	decode(t, res, &edited)
	if edited.Body != "fixed" || edited.EditedTS == 0 {
		t.Fatalf("edit not applied: %+v", edited)
	}

	// revision history shows both versions
	res = doAs(t, srv, "cust-1", "GET", "/v1/messages/"+sent.ID+"/versions", nil)
	var vout struct {
		Versions []models.Message `json:"versions"`
	}
	decode(t, res, &vout)
	if len(vout.Versions) != 2 {
		t.Fatalf("got %d versions, want 2", len(vout.Versions))
	}

	res = doAs(t, srv, "cust-1", "DELETE", "/v1/messages/"+sent.ID, nil)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("delete status %d", res.StatusCode)
	}

	res = doAs(t, srv, "cust-1", "GET", "/v1/messages?a=cust-1&b=shop-1", nil)
	var out struct {
		Messages []models.Message `json:"messages"`
	}
	decode(t, res, &out)
	if len(out.Messages) != 0 {
		t.Fatalf("tombstoned message still listed")
	}
}

func TestMarkReadAndUnreadEndpoints(t *testing.T) {
	srv := setupServer(t)

	for _, body := range []string{"one", "two"} {
		res := doAs(t, srv, "shop-1", "POST", "/v1/messages", map[string]string{
			"receiver_id": "cust-1", "body": body})
		res.Body.Close()
	}

	res := doAs(t, srv, "cust-1", "GET", "/v1/messages/unread-count", nil)
	var cnt map[string]int
	decode(t, res, &cnt)
	if cnt["count"] != 2 {
		t.Fatalf("unread = %d, want 2", cnt["count"])
	}

	res = doAs(t, srv, "cust-1", "PUT", "/v1/messages/mark-read", map[string]string{
		"peer_id": "shop-1"})
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("mark-read status %d", res.StatusCode)
	}

	res = doAs(t, srv, "cust-1", "GET", "/v1/messages/unread-count", nil)
	decode(t, res, &cnt)
	if cnt["count"] != 0 {
		t.Fatalf("unread after ack = %d, want 0", cnt["count"])
	}
}

func TestWatermarkEndpoints(t *testing.T) {
	srv := setupServer(t)

	// externally counted collection: caller supplies the current count
	res := doAs(t, srv, "shop-1", "GET", "/v1/notifications/products/diff?count=5", nil)
	var out map[string]int64
	decode(t, res, &out)
	if out["new_count"] != 5 {
		t.Fatalf("first diff = %d, want 5", out["new_count"])
	}

	res = doAs(t, srv, "shop-1", "GET", "/v1/notifications/products/diff?count=5", nil)
	decode(t, res, &out)
	if out["new_count"] != 0 {
		t.Fatalf("repeat diff = %d, want 0", out["new_count"])
	}

	res = doAs(t, srv, "shop-1", "POST", "/v1/notifications/products/reset", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("reset status %d", res.StatusCode)
	}
	res = doAs(t, srv, "shop-1", "GET", "/v1/notifications/products/diff?count=5", nil)
	decode(t, res, &out)
	if out["new_count"] != 5 {
		t.Fatalf("diff after reset = %d, want 5", out["new_count"])
	}

	// the messages collection counts through the store
	r2 := doAs(t, srv, "shop-1", "POST", "/v1/messages", map[string]string{
		"receiver_id": "cust-1", "body": "new order note"})
	r2.Body.Close()
	res = doAs(t, srv, "cust-1", "GET", "/v1/notifications/messages/diff", nil)
	decode(t, res, &out)
	if out["new_count"] != 1 {
		t.Fatalf("messages diff = %d, want 1", out["new_count"])
	}

	res = doAs(t, srv, "shop-1", "GET", "/v1/notifications/unknown/diff?count=1", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown collection status %d, want 404", res.StatusCode)
	}
}

func TestCounterpartsEndpoint(t *testing.T) {
	srv := setupServer(t)

	res := doAs(t, srv, "adm-1", "GET", "/v1/participants/adm-1/counterparts?role=shop", nil)
	var out struct {
		Counterparts []models.Participant `json:"counterparts"`
	}
	decode(t, res, &out)
	if len(out.Counterparts) != 1 || out.Counterparts[0].ID != "shop-1" {
		t.Fatalf("unexpected counterparts: %+v", out.Counterparts)
	}

	res = doAs(t, srv, "adm-1", "GET", "/v1/participants/adm-1/counterparts?role=wizard", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown role status %d, want 400", res.StatusCode)
	}
}

func TestRetentionTriggerBackendOnly(t *testing.T) {
	runs := 0
	srv := setupServer(t, func() error { runs++; return nil })

	// frontend keys cannot start sweeps
	res := doAs(t, srv, "adm-1", "POST", "/v1/admin/retention/run", nil)
	res.Body.Close()
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("frontend trigger status %d, want 403", res.StatusCode)
	}
	if runs != 0 {
		t.Fatalf("frontend call started a sweep")
	}

	req, _ := http.NewRequest("POST", srv.URL+"/v1/admin/retention/run", nil)
	req.Header.Set("X-API-Key", backendKey)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("backend trigger: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("backend trigger status %d, want 200", res.StatusCode)
	}
	if runs != 1 {
		t.Fatalf("sweep ran %d times, want 1", runs)
	}
}
