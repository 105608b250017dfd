package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/kalambet/larder/internal/todos"
)

func TestTodos_SaveLoadDelete(t *testing.T) {
	s := openTestStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for _, td := range []todos.Todo{
		{ID: 20, Text: "second", CreatedAt: created},
		{ID: 10, Text: "first", CreatedAt: created},
	} {
		if err := s.SaveTodo(td); err != nil {
			t.Fatalf("SaveTodo(%d): %v", td.ID, err)
		}
	}
	if err := s.SaveTodo(todos.Todo{ID: 10, Text: "first", Completed: true, CreatedAt: created}); err != nil {
		t.Fatalf("SaveTodo update: %v", err)
	}

	ts, err := s.LoadTodos()
	if err != nil {
		t.Fatalf("LoadTodos: %v", err)
	}
	if len(ts) != 2 || ts[0].ID != 10 || !ts[0].Completed || ts[1].Completed {
		t.Errorf("todos = %+v", ts)
	}
	if !ts[0].CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", ts[0].CreatedAt, created)
	}

	if err := s.DeleteTodo(10); err != nil {
		t.Fatalf("DeleteTodo: %v", err)
	}
	if err := s.DeleteTodo(10); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestTodos_BackTodoStore(t *testing.T) {
	s := openTestStore(t)

	list, err := todos.Open(todos.WithPersistence(s))
	if err != nil {
		t.Fatalf("todos.Open: %v", err)
	}
	td, err := list.Add("buy basil")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := list.Toggle(td.ID); err != nil {
		t.Fatalf("Toggle: %v", err)
	}

	reopened, err := todos.Open(todos.WithPersistence(s))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(td.ID)
	if err != nil || got.Text != "buy basil" || !got.Completed {
		t.Errorf("Get = %+v, %v", got, err)
	}
}
