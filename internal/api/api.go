// Package api exposes sessions over HTTP and MCP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/aura/internal/assistant"
	"github.com/kalambet/aura/internal/conversation"
	"github.com/kalambet/aura/internal/orchestrator"
	"github.com/kalambet/aura/internal/session"
	"github.com/kalambet/aura/internal/storage"
	"github.com/kalambet/aura/internal/tasks"
)

const (
	maxRequestBodySize = 1 << 20 // 1MB
	// multipart framing on top of the file itself
	uploadOverhead = 1 << 20
)

// Deps holds dependencies for the HTTP API.
type Deps struct {
	Sessions *session.Manager
	Store    *storage.Store
	Token    string
	// MaxUploadBytes bounds the request body of a file upload.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// NewHandler returns the HTTP API. Everything except /health requires the
// bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = 100 << 20
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/sessions", handleStartSession(deps))
		r.Get("/sessions", handleListSessions(deps))
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/messages", withSession(deps, handleListMessages))
			r.Post("/messages", withSession(deps, handleSubmit))
			r.Get("/status", withSession(deps, handleStatus))
			r.Get("/tasks", withSession(deps, handleListTasks))
			r.Patch("/tasks/{taskID}", withSession(deps, handleSetTaskStatus))
			r.Get("/files", withSession(deps, handleListFiles))
			r.Post("/files", withSession(deps, handleUpload))
			r.Delete("/files/{name}", withSession(deps, handleRemoveFile))
			r.Delete("/upload-error", withSession(deps, handleClearUploadError))
		})
		r.Get("/memory", handleListMemory(deps))
		r.Get("/orders", handleListOrders(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// SessionView is the JSON form of a session.
type SessionView struct {
	ID        string                `json:"id"`
	Identity  conversation.Identity `json:"identity"`
	CreatedAt time.Time             `json:"created_at"`
}

func viewOf(s *session.Session) SessionView {
	return SessionView{ID: s.ID, Identity: s.Identity, CreatedAt: s.CreatedAt}
}

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// StartSessionResponse returns the new session with its greeting.
type StartSessionResponse struct {
	Session  SessionView         `json:"session"`
	Messages []conversation.Turn `json:"messages"`
}

func handleStartSession(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req StartSessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		s, err := deps.Sessions.Start(conversation.Identity{FullName: req.FullName, Email: req.Email})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to start session: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, StartSessionResponse{Session: viewOf(s), Messages: s.Messages()})
	}
}

func handleListSessions(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list := deps.Sessions.List()
		out := make([]SessionView, len(list))
		for i, s := range list {
			out[i] = viewOf(s)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

type sessionHandler func(deps Deps, s *session.Session, w http.ResponseWriter, r *http.Request)

func withSession(deps Deps, h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := deps.Sessions.Get(chi.URLParam(r, "id"))
		if errors.Is(err, session.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get session: %v", err)
			return
		}
		h(deps, s, w, r)
	}
}

func handleListMessages(_ Deps, s *session.Session, w http.ResponseWriter, r *http.Request) {
	msgs := s.Messages()
	if since := parseIntParam(r, "since", 0, 0); since > 0 {
		if since >= len(msgs) {
			msgs = []conversation.Turn{}
		} else {
			msgs = msgs[since:]
		}
	}
	writeJSON(w, http.StatusOK, msgs)
}

// SubmitRequest is the body of POST /sessions/{id}/messages.
type SubmitRequest struct {
	Text string `json:"text"`
}

// TurnsResponse lists the turns a call appended.
type TurnsResponse struct {
	Turns []conversation.Turn `json:"turns"`
}

func handleSubmit(_ Deps, s *session.Session, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}

	turns, err := s.Submit(r.Context(), req.Text)
	if errors.Is(err, session.ErrBusy) {
		httpError(w, http.StatusConflict, "conflict", "a message is already being processed")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to submit: %v", err)
		return
	}
	if turns == nil {
		turns = []conversation.Turn{}
	}
	writeJSON(w, http.StatusOK, TurnsResponse{Turns: turns})
}

func handleStatus(_ Deps, s *session.Session, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Status())
}

func handleListTasks(_ Deps, s *session.Session, w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Tasks())
}

// SetTaskStatusRequest is the body of PATCH /sessions/{id}/tasks/{taskID}.
type SetTaskStatusRequest struct {
	Status tasks.Status `json:"status"`
}

func handleSetTaskStatus(_ Deps, s *session.Session, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req SetTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return
	}
	if !req.Status.Valid() {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown task status %q", req.Status)
		return
	}

	got, err := s.SetTaskStatus(chi.URLParam(r, "taskID"), req.Status)
	if errors.Is(err, tasks.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "task not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to update task: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, got)
}

func handleListFiles(_ Deps, s *session.Session, w http.ResponseWriter, _ *http.Request) {
	files := s.Files()
	if files == nil {
		files = []assistant.File{}
	}
	writeJSON(w, http.StatusOK, files)
}

// handleUpload accepts a multipart form with a "file" field.
func handleUpload(deps Deps, s *session.Session, w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, deps.MaxUploadBytes+uploadOverhead)
	defer r.Body.Close()

	f, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "file too large")
			return
		}
		httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required: %v", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "failed to read file: %v", err)
		return
	}

	turns, err := s.Upload(hdr.Filename, data)
	switch {
	case errors.Is(err, session.ErrBusy):
		httpError(w, http.StatusConflict, "conflict", "another operation is in progress")
		return
	case errors.Is(err, orchestrator.ErrFileTooLarge):
		httpError(w, http.StatusRequestEntityTooLarge, "invalid_request_error", "%s", s.Status().UploadError)
		return
	case err != nil:
		deps.Logger.Warn("upload failed", "session_id", s.ID, "file", hdr.Filename, "error", err)
		msg := s.Status().UploadError
		if msg == "" {
			msg = err.Error()
		}
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%s", msg)
		return
	}
	writeJSON(w, http.StatusOK, TurnsResponse{Turns: turns})
}

func handleRemoveFile(_ Deps, s *session.Session, w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid file name")
		return
	}
	if !s.RemoveFile(name) {
		httpError(w, http.StatusNotFound, "not_found", "file not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func handleClearUploadError(_ Deps, s *session.Session, w http.ResponseWriter, _ *http.Request) {
	s.ClearUploadError()
	w.WriteHeader(http.StatusNoContent)
}

func handleListMemory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 50, 500)
		turns, err := deps.Store.ListTurns(r.URL.Query().Get("session"), limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list memory: %v", err)
			return
		}
		if turns == nil {
			turns = []storage.TurnRecord{}
		}
		writeJSON(w, http.StatusOK, turns)
	}
}

func handleListOrders(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		orders, err := deps.Store.ListOrders(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list orders: %v", err)
			return
		}
		if orders == nil {
			orders = []storage.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
