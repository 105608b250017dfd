package recipes

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when an operation references an id absent from the collection.
	ErrNotFound = errors.New("recipe not found")
	// ErrDuplicateID is returned when adding a recipe whose id is already taken.
	ErrDuplicateID = errors.New("duplicate recipe id")
	// ErrInvalidRecipe is returned when a recipe fails validation.
	ErrInvalidRecipe = errors.New("invalid recipe")
)

// Recipe is a single record in the collection. ID is assigned once and never changes.
type Recipe struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Ingredients  []string  `json:"ingredients,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	Image        string    `json:"image,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Patch holds the fields to merge into an existing recipe. Nil fields are left untouched.
type Patch struct {
	Title        *string   `json:"title,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Ingredients  *[]string `json:"ingredients,omitempty"`
	Instructions *string   `json:"instructions,omitempty"`
	Image        *string   `json:"image,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Ingredients == nil &&
		p.Instructions == nil && p.Image == nil
}

func (p Patch) apply(r Recipe) Recipe {
	if p.Title != nil {
		r.Title = *p.Title
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Ingredients != nil {
		r.Ingredients = append([]string(nil), (*p.Ingredients)...)
	}
	if p.Instructions != nil {
		r.Instructions = *p.Instructions
	}
	if p.Image != nil {
		r.Image = *p.Image
	}
	return r
}

func (r Recipe) clone() Recipe {
	if r.Ingredients != nil {
		r.Ingredients = append([]string(nil), r.Ingredients...)
	}
	return r
}

func cloneAll(in []Recipe) []Recipe {
	out := make([]Recipe, len(in))
	for i, r := range in {
		out[i] = r.clone()
	}
	return out
}

// EventKind identifies the mutation that produced an Event.
type EventKind string

const (
	EventAdded    EventKind = "added"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventQuery    EventKind = "query"
	EventFavorite EventKind = "favorite"
	EventReplaced EventKind = "replaced"
)

// Event is delivered to subscribers after every successful mutation.
type Event struct {
	Kind     EventKind `json:"kind"`
	ID       int64     `json:"id,omitempty"` // zero for query and replace events
	Favorite bool      `json:"favorite"`     // membership after a favorite toggle
	Query    string    `json:"query,omitempty"`
}

// Persistence is the durable side of a Store. Implemented by storage.Store.
type Persistence interface {
	LoadRecipes() ([]Recipe, error)
	SaveRecipe(r Recipe) error
	DeleteRecipe(id int64) error
	ReplaceRecipes(rs []Recipe) error
	LoadFavorites() ([]int64, error)
	SaveFavorites(ids []int64) error
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
