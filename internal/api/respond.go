package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/larder/internal/importer"
	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
	"github.com/kalambet/larder/internal/todos"
)

const maxRequestBodySize = 1 << 20 // 1MB

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}

// writeError maps domain errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	var fe *remote.FetchError
	switch {
	case errors.Is(err, recipes.ErrNotFound), errors.Is(err, todos.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found_error", "%v", err)
	case errors.Is(err, recipes.ErrDuplicateID):
		httpError(w, http.StatusConflict, "conflict_error", "%v", err)
	case errors.Is(err, recipes.ErrInvalidRecipe), errors.Is(err, todos.ErrInvalidTodo):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
	case errors.Is(err, importer.ErrNoRecipe), errors.Is(err, importer.ErrUnsupported):
		httpError(w, http.StatusUnprocessableEntity, "invalid_request_error", "%v", err)
	case errors.As(err, &fe):
		code := http.StatusBadGateway
		switch fe.Kind {
		case remote.KindNotFound:
			code = http.StatusNotFound
		case remote.KindRateLimited:
			code = http.StatusTooManyRequests
		}
		httpError(w, code, "upstream_error", "%s", remote.UserMessage(err))
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid id %q", chi.URLParam(r, "id"))
		return 0, false
	}
	return id, true
}

// intParam reads a positive integer query parameter, falling back to def.
func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

func writeEvent(w http.ResponseWriter, ev any) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", b)
	return err
}
