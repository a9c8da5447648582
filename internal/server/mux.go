// Package server is a reference implementation of the note service REST
// contract. It backs `notesync serve` for local development and the
// end-to-end tests; production deployments point the client at the real
// service.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
)

// maxRequestBytes caps a single note payload.
const maxRequestBytes = 4 * 1024 * 1024

// MuxConfig holds dependencies for building the HTTP mux.
type MuxConfig struct {
	Store  *NoteStore
	Token  string
	Logger *slog.Logger
}

// NewMux builds the HTTP mux with the health, listing, and per-note
// endpoints. Everything except health requires the bearer token when one
// is configured.
func NewMux(cfg MuxConfig) *http.ServeMux {
	h := &handlers{store: cfg.Store, logger: cfg.Logger}
	auth := bearer(cfg.Token)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.Handle("GET /v1/users/{owner}/notes", auth(http.HandlerFunc(h.list)))
	mux.Handle("POST /v1/notes", auth(http.HandlerFunc(h.create)))
	mux.Handle("PUT /v1/notes/{id}", auth(http.HandlerFunc(h.update)))
	mux.Handle("DELETE /v1/notes/{id}", auth(http.HandlerFunc(h.delete)))

	return mux
}

// bearer returns middleware that requires "Authorization: Bearer <token>".
// An empty token disables the check.
func bearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type handlers struct {
	store  *NoteStore
	logger *slog.Logger
}

func (h *handlers) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"notes": h.store.List(r.PathValue("owner")),
	})
}

func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
	n, ok := decode(w, r)
	if !ok {
		return
	}

	stored, err := h.store.Create(n)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, stored)
}

func (h *handlers) update(w http.ResponseWriter, r *http.Request) {
	n, ok := decode(w, r)
	if !ok {
		return
	}

	if n.ID != r.PathValue("id") {
		writeError(w, http.StatusBadRequest, "id in body does not match path")
		return
	}

	stored, err := h.store.Update(n)
	if err != nil {
		h.fail(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stored)
}

func (h *handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.PathValue("id")); err != nil {
		h.fail(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errs.ErrNoteNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, errInvalidNote):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, errConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decode(w http.ResponseWriter, r *http.Request) (models.Note, bool) {
	var n models.Note

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "malformed note: "+err.Error())
		return models.Note{}, false
	}

	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
