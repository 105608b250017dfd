// Package todos holds the kitchen to-do list: short free-text items that can
// be ticked off and removed.
package todos

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when an operation references an id absent from the list.
	ErrNotFound = errors.New("todo not found")
	// ErrInvalidTodo is returned when a todo has no text.
	ErrInvalidTodo = errors.New("invalid todo")
)

// Todo is one item on the list. ID is assigned by the store.
type Todo struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// Persistence is the durable backing of a Store. A failed write aborts the
// mutation that caused it.
type Persistence interface {
	LoadTodos() ([]Todo, error)
	SaveTodo(t Todo) error
	DeleteTodo(id int64) error
}

// Clock supplies the time used for id allocation and CreatedAt.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the to-do list, kept in insertion order.
type Store struct {
	persist Persistence // optional
	clock   Clock
	logger  *slog.Logger

	mu     sync.Mutex
	todos  []Todo
	index  map[int64]int
	lastID int64
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence makes the store load from and write through to p.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

// WithClock overrides the clock.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty in-memory Store.
func New(opts ...Option) *Store {
	s := &Store{
		clock:  realClock{},
		logger: slog.Default(),
		index:  make(map[int64]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a Store and loads the list from its persistence, if any.
func Open(opts ...Option) (*Store, error) {
	s := New(opts...)
	if s.persist == nil {
		return s, nil
	}
	ts, err := s.persist.LoadTodos()
	if err != nil {
		return nil, fmt.Errorf("loading todos: %w", err)
	}
	for _, t := range ts {
		if _, dup := s.index[t.ID]; dup {
			return nil, fmt.Errorf("loading todos: duplicate id %d", t.ID)
		}
		s.todos = append(s.todos, t)
		s.index[t.ID] = len(s.todos) - 1
		s.lastID = max(s.lastID, t.ID)
	}
	s.logger.Debug("todo list opened", "todos", len(s.todos))
	return s, nil
}

// All returns a copy of the list in insertion order.
func (s *Store) All() []Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Todo{}, s.todos...)
}

// Get returns the todo with the given id.
func (s *Store) Get(id int64) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	return s.todos[i], nil
}

// Len returns the number of todos.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.todos)
}

// Remaining returns the number of todos not yet completed.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.todos {
		if !t.Completed {
			n++
		}
	}
	return n
}

// Add appends a new open todo with the trimmed text.
func (s *Store) Add(text string) (Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Todo{}, fmt.Errorf("text is required: %w", ErrInvalidTodo)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	id := max(now.UnixMilli(), s.lastID+1)
	t := Todo{ID: id, Text: text, CreatedAt: now.UTC()}
	if s.persist != nil {
		if err := s.persist.SaveTodo(t); err != nil {
			return Todo{}, fmt.Errorf("saving todo %d: %w", id, err)
		}
	}
	s.todos = append(s.todos, t)
	s.index[id] = len(s.todos) - 1
	s.lastID = id
	return t, nil
}

// Toggle flips the completed flag of the todo with the given id.
func (s *Store) Toggle(id int64) (Todo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Todo{}, fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	t := s.todos[i]
	t.Completed = !t.Completed
	if s.persist != nil {
		if err := s.persist.SaveTodo(t); err != nil {
			return Todo{}, fmt.Errorf("saving todo %d: %w", id, err)
		}
	}
	s.todos[i] = t
	return t, nil
}

// Delete removes the todo with the given id.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return fmt.Errorf("todo %d: %w", id, ErrNotFound)
	}
	if s.persist != nil {
		if err := s.persist.DeleteTodo(id); err != nil {
			return fmt.Errorf("deleting todo %d: %w", id, err)
		}
	}
	s.todos = append(s.todos[:i], s.todos[i+1:]...)
	delete(s.index, id)
	for j := i; j < len(s.todos); j++ {
		s.index[s.todos[j].ID] = j
	}
	return nil
}
