package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/aura/internal/assistant"
	"github.com/kalambet/aura/internal/booking"
	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/dispatch"
	"github.com/kalambet/aura/internal/orchestrator"
	"github.com/kalambet/aura/internal/session"
	"github.com/kalambet/aura/internal/storage"
	"github.com/kalambet/aura/internal/tasks"
)

const testToken = "test-token-12345"

// scriptLanguage answers every completion with reply and always suggests
// one task.
type scriptLanguage struct {
	reply string
}

func (l *scriptLanguage) Complete(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return l.reply, nil
}
func (l *scriptLanguage) AgenticAction(context.Context, string) (*booking.Action, error) {
	return &booking.Action{Domain: booking.DomainRide, Params: map[string]string{
		booking.ParamDestination: "the airport",
	}}, nil
}
func (l *scriptLanguage) SuggestTasks(context.Context, string) ([]string, error) {
	return []string{"Pack bags"}, nil
}
func (l *scriptLanguage) GenerateImage(context.Context, string) (string, error) {
	return "", errors.New("unsupported")
}

func newTestManager(t *testing.T, reply string) (*session.Manager, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc := booking.NewService(store, booking.Catalog{})
	m := session.NewManager(session.Config{
		NewLanguage: func(*assistant.Files) orchestrator.Language { return &scriptLanguage{reply: reply} },
		Dispatcher:  dispatch.New(svc.Handlers()),
		Extract: func(_ string, data []byte) (string, error) {
			if len(data) == 0 {
				return "", errors.New("file is empty")
			}
			return string(data), nil
		},
		Journal:        store,
		AssistantName:  "A.U.R.A",
		MaxUploadBytes: 64,
	})
	return m, store
}

func setupHandler(t *testing.T, reply string) (http.Handler, *session.Manager, *storage.Store) {
	t.Helper()
	m, store := newTestManager(t, reply)
	h := NewHandler(Deps{Sessions: m, Store: store, Token: testToken, MaxUploadBytes: 64})
	return h, m, store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func startSession(t *testing.T, h http.Handler) StartSessionResponse {
	t.Helper()
	rr := serve(h, authReq(http.MethodPost, "/sessions", `{"full_name":"Ada Lovelace"}`, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body = %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	var resp StartSessionResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return resp
}

func TestHealth_NoAuth(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	rr := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"ok"`) {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestAuth(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")

	for _, token := range []string{"", "wrong"} {
		rr := serve(h, authReq(http.MethodGet, "/sessions", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "authentication_error") {
			t.Fatalf("token %q: body = %s", token, rr.Body.String())
		}
	}

	rr := serve(h, authReq(http.MethodGet, "/sessions", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("valid token: status = %d", rr.Code)
	}
}

func TestBearerAuth_EmptyTokenRejectsAll(t *testing.T) {
	h := BearerAuth("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := serve(h, authReq(http.MethodGet, "/", "", ""))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

func TestStartSession(t *testing.T) {
	h, m, _ := setupHandler(t, "hi")
	resp := startSession(t, h)

	if resp.Session.ID == "" {
		t.Fatal("expected session ID")
	}
	if len(resp.Messages) != 1 || !strings.HasPrefix(resp.Messages[0].Text, "Hello Ada Lovelace!") {
		t.Fatalf("unexpected greeting: %+v", resp.Messages)
	}
	if _, err := m.Get(resp.Session.ID); err != nil {
		t.Fatalf("session not registered: %v", err)
	}
}

func TestSubmit_Text(t *testing.T) {
	h, _, store := setupHandler(t, "Paris is the capital of France.")
	id := startSession(t, h).Session.ID

	rr := serve(h, authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"text":"capital of France?"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var resp TurnsResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(resp.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(resp.Turns))
	}
	if resp.Turns[1].Text != "Paris is the capital of France." {
		t.Fatalf("unexpected reply: %q", resp.Turns[1].Text)
	}

	turns, err := store.ListTurns(id, 10)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns in memory log, got %d", len(turns))
	}

	rr = serve(h, authReq(http.MethodGet, "/sessions/"+id+"/messages?since=1", "", testToken))
	var msgs []conversation.Turn
	if err := json.Unmarshal(rr.Body.Bytes(), &msgs); err != nil {
		t.Fatalf("decoding messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Role != conversation.RoleUser {
		t.Fatalf("unexpected messages since 1: %+v", msgs)
	}
}

func TestSubmit_ClientGoneStillCompletesTurn(t *testing.T) {
	h, m, store := setupHandler(t, "Hello!")
	id := startSession(t, h).Session.ID

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"text":"Hi"}`, testToken).WithContext(ctx)
	serve(h, req)

	s, err := m.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	msgs := s.Messages()
	if len(msgs) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(msgs))
	}
	if msgs[2].Text != "Hello!" {
		t.Fatalf("reply = %q, want %q", msgs[2].Text, "Hello!")
	}
	if got := len(s.Tasks()); got != 1 {
		t.Fatalf("tasks = %d, want 1", got)
	}

	logged, err := store.ListTurns(id, 10)
	if err != nil {
		t.Fatalf("ListTurns: %v", err)
	}
	if len(logged) != 3 || logged[2].Text != "Hello!" {
		t.Fatalf("unexpected memory log: %+v", logged)
	}
}

func TestSubmit_BookingPersistsOrder(t *testing.T) {
	h, _, _ := setupHandler(t, "RIDE_BOOKING_REQUEST")
	id := startSession(t, h).Session.ID

	rr := serve(h, authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"text":"get me a ride to the airport"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"order"`) {
		t.Fatalf("expected order attachment: %s", rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodGet, "/orders", "", testToken))
	var orders []storage.Order
	if err := json.Unmarshal(rr.Body.Bytes(), &orders); err != nil {
		t.Fatalf("decoding orders: %v", err)
	}
	if len(orders) != 1 || orders[0].Domain != "ride" {
		t.Fatalf("unexpected orders: %+v", orders)
	}
}

func TestSubmit_InvalidBody(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	id := startSession(t, h).Session.ID

	rr := serve(h, authReq(http.MethodPost, "/sessions/"+id+"/messages", `not json`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestSessionNotFound(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	for _, path := range []string{"/sessions/nope/messages", "/sessions/nope/status", "/sessions/nope/tasks"} {
		rr := serve(h, authReq(http.MethodGet, path, "", testToken))
		if rr.Code != http.StatusNotFound {
			t.Fatalf("%s: status = %d, want 404", path, rr.Code)
		}
	}
}

func TestTasks_ListAndUpdate(t *testing.T) {
	h, _, _ := setupHandler(t, "Sure.")
	id := startSession(t, h).Session.ID
	serve(h, authReq(http.MethodPost, "/sessions/"+id+"/messages", `{"text":"trip next week"}`, testToken))

	rr := serve(h, authReq(http.MethodGet, "/sessions/"+id+"/tasks", "", testToken))
	var list []tasks.Suggestion
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding tasks: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Pack bags" || list[0].Status != tasks.StatusPending {
		t.Fatalf("unexpected tasks: %+v", list)
	}

	path := "/sessions/" + id + "/tasks/" + list[0].ID
	rr = serve(h, authReq(http.MethodPatch, path, `{"status":"completed"}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	var got tasks.Suggestion
	json.Unmarshal(rr.Body.Bytes(), &got)
	if got.Status != tasks.StatusCompleted {
		t.Fatalf("status not updated: %+v", got)
	}

	rr = serve(h, authReq(http.MethodPatch, path, `{"status":"archived"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: code = %d, want 400", rr.Code)
	}
	rr = serve(h, authReq(http.MethodPatch, "/sessions/"+id+"/tasks/missing", `{"status":"completed"}`, testToken))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing task: code = %d, want 404", rr.Code)
	}
}

func uploadReq(t *testing.T, path, name string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	fw.Write(data)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+testToken)
	return req
}

func TestUpload(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	id := startSession(t, h).Session.ID

	rr := serve(h, uploadReq(t, "/sessions/"+id+"/files", "notes.txt", []byte("meeting at 5")))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "notes.txt") {
		t.Fatalf("expected processed message: %s", rr.Body.String())
	}

	rr = serve(h, authReq(http.MethodGet, "/sessions/"+id+"/files", "", testToken))
	var files []assistant.File
	if err := json.Unmarshal(rr.Body.Bytes(), &files); err != nil {
		t.Fatalf("decoding files: %v", err)
	}
	if len(files) != 1 || files[0].Name != "notes.txt" {
		t.Fatalf("unexpected files: %+v", files)
	}

	rr = serve(h, authReq(http.MethodDelete, "/sessions/"+id+"/files/notes.txt", "", testToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete: status = %d", rr.Code)
	}
	rr = serve(h, authReq(http.MethodDelete, "/sessions/"+id+"/files/notes.txt", "", testToken))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rr.Code)
	}
}

func TestUpload_Errors(t *testing.T) {
	h, m, _ := setupHandler(t, "hi")
	id := startSession(t, h).Session.ID

	rr := serve(h, uploadReq(t, "/sessions/"+id+"/files", "big.txt", bytes.Repeat([]byte("a"), 100)))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413; body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "File size must be less than") {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}

	rr = serve(h, uploadReq(t, "/sessions/"+id+"/files", "empty.txt", nil))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rr.Code)
	}

	s, _ := m.Get(id)
	if s.Status().UploadError == "" {
		t.Fatal("expected upload error in status")
	}
	rr = serve(h, authReq(http.MethodDelete, "/sessions/"+id+"/upload-error", "", testToken))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("clear: status = %d", rr.Code)
	}
	if s.Status().UploadError != "" {
		t.Fatal("upload error not cleared")
	}

	rr = serve(h, authReq(http.MethodPost, "/sessions/"+id+"/files", "", testToken))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("missing file: status = %d, want 400", rr.Code)
	}
}

func TestStatus(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	id := startSession(t, h).Session.ID

	rr := serve(h, authReq(http.MethodGet, "/sessions/"+id+"/status", "", testToken))
	var st orchestrator.Status
	if err := json.Unmarshal(rr.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if st.Composing || st.GeneratingImage || st.Uploading {
		t.Fatalf("expected idle status, got %+v", st)
	}
}

func TestMemory(t *testing.T) {
	h, _, store := setupHandler(t, "hi")
	a := startSession(t, h).Session.ID
	startSession(t, h)

	store.SaveTurns([]storage.TurnRecord{{
		ID: "extra", SessionID: a, Role: "user", Text: "later", CreatedAt: time.Now().UTC().Add(time.Hour),
	}})

	rr := serve(h, authReq(http.MethodGet, "/memory?session="+a, "", testToken))
	var turns []storage.TurnRecord
	if err := json.Unmarshal(rr.Body.Bytes(), &turns); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(turns) != 2 || turns[1].ID != "extra" {
		t.Fatalf("unexpected memory for session: %+v", turns)
	}

	rr = serve(h, authReq(http.MethodGet, "/memory", "", testToken))
	json.Unmarshal(rr.Body.Bytes(), &turns)
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns across sessions, got %d", len(turns))
	}
}

func TestOrders_Empty(t *testing.T) {
	h, _, _ := setupHandler(t, "hi")
	rr := serve(h, authReq(http.MethodGet, "/orders", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", rr.Body.String())
	}
}
