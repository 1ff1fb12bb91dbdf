package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/wfunc/liargame/game"
	"github.com/wfunc/liargame/logger"
	"github.com/wfunc/liargame/models"
	"github.com/wfunc/liargame/services"
	"github.com/wfunc/liargame/session"
)

// maxBodyBytes caps a request body.
const maxBodyBytes = 64 << 10

func (s *GameServer) routes() *mux.Router {
	r := mux.NewRouter()

	// Apply CORS middleware
	r.Use(s.corsMiddleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	g := r.PathPrefix("/game").Subrouter()
	g.HandleFunc("/start", s.handleStart).Methods(http.MethodPost, http.MethodOptions)
	g.HandleFunc("/step", s.handleStep).Methods(http.MethodPost, http.MethodOptions)
	g.HandleFunc("/{id}/view", s.handleView).Methods(http.MethodGet, http.MethodOptions)
	g.HandleFunc("/{id}/reset", s.handleReset).Methods(http.MethodPost, http.MethodOptions)

	r.HandleFunc("/admin/export/{id}", s.handleExport).Methods(http.MethodGet, http.MethodOptions)

	r.HandleFunc("/ws", s.handleWebSocket)

	return r
}

// CORS middleware
func (s *GameServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		// If it's a websocket upgrade, skip further CORS checks
		if strings.ToLower(r.Header.Get("Upgrade")) == "websocket" {
			next.ServeHTTP(w, r)
			return
		}

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// stepResponse is a StepResult with the ok flag clients check first.
type stepResponse struct {
	OK bool `json:"ok"`
	*services.StepResult
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type exportResponse struct {
	OK         bool                       `json:"ok"`
	SessionID  string                     `json:"sessionId"`
	Events     []models.Event             `json:"events"`
	Transcript []models.TranscriptMessage `json:"transcript"`
}

func (s *GameServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *GameServer) handleStart(w http.ResponseWriter, r *http.Request) {
	var req services.StartRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.StartRound(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{OK: true, StepResult: res})
}

func (s *GameServer) handleStep(w http.ResponseWriter, r *http.Request) {
	var req services.StepRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.games.Step(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{OK: true, StepResult: res})
}

func (s *GameServer) handleView(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.games.View(r.Context(), id, r.URL.Query().Get("viewer"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{OK: true, StepResult: res})
}

func (s *GameServer) handleReset(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	res, err := s.games.Reset(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepResponse{OK: true, StepResult: res})
}

func (s *GameServer) handleExport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	events, err := s.games.Events(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	transcript, err := s.games.Transcript(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	if transcript == nil {
		transcript = []models.TranscriptMessage{}
	}
	writeJSON(w, http.StatusOK, exportResponse{OK: true, SessionID: id, Events: events, Transcript: transcript})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode body: %v", services.ErrInvalidAction, err)
	}
	return nil
}

// statusOf maps service errors to HTTP statuses.
func statusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrSessionNotFound), errors.Is(err, services.ErrInvalidSession):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidAction):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrInvalidPrecondition), errors.Is(err, session.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicError maps err to a status and the text a client may see. Internal
// errors are logged and shown as the bare status text.
func publicError(err error) (int, string) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logger.Log.Errorf("Request failed: %v", err)
		return status, http.StatusText(status)
	}
	return status, err.Error()
}

func writeError(w http.ResponseWriter, err error) {
	status, msg := publicError(err)
	writeJSON(w, status, errorResponse{OK: false, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Warnf("Error encoding response: %v", err)
	}
}
