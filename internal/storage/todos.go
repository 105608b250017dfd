package storage

import (
	"fmt"
	"time"

	"github.com/kalambet/larder/internal/todos"
)

// LoadTodos returns the to-do list ordered by id, which is creation order.
func (s *Store) LoadTodos() ([]todos.Todo, error) {
	rows, err := s.db.Query(`SELECT id, text, completed, created_at FROM todos ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []todos.Todo
	for rows.Next() {
		var (
			t         todos.Todo
			createdAt string
		)
		if err := rows.Scan(&t.ID, &t.Text, &t.Completed, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at of todo %d: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveTodo inserts t or overwrites the stored todo with the same id.
func (s *Store) SaveTodo(t todos.Todo) error {
	_, err := s.db.Exec(`
		INSERT INTO todos (id, text, completed, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, completed = excluded.completed`,
		t.ID, t.Text, t.Completed, t.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteTodo removes the todo with the given id or returns ErrNotFound.
func (s *Store) DeleteTodo(id int64) error {
	res, err := s.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
