package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// FavoritesKey is the list key favorites are persisted under.
const FavoritesKey = "favorites"
