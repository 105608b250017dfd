package api

import (
	"net/http"

	"github.com/kalambet/larder/internal/todos"
)

type todoListResponse struct {
	Todos     []todos.Todo `json:"todos"`
	Remaining int          `json:"remaining"`
}

// todoStore writes a 503 and returns false when no todo list is configured.
func todoStore(w http.ResponseWriter, deps Deps) bool {
	if deps.Todos == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "todo list not configured")
		return false
	}
	return true
}

func handleListTodos(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !todoStore(w, deps) {
			return
		}
		writeJSON(w, http.StatusOK, todoListResponse{Todos: deps.Todos.All(), Remaining: deps.Todos.Remaining()})
	}
}

func handleAddTodo(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !todoStore(w, deps) {
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		t, err := deps.Todos.Add(req.Text)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, t)
	}
}

func handleToggleTodo(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !todoStore(w, deps) {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		t, err := deps.Todos.Toggle(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, t)
	}
}

func handleDeleteTodo(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !todoStore(w, deps) {
			return
		}
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := deps.Todos.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
