package recipes

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Store holds the recipe collection, the current search query and the
// favorite set. Every mutation recomputes the filtered view before it
// returns, so readers never see a view that lags the collection.
type Store struct {
	persist Persistence // optional
	clock   Clock
	logger  *slog.Logger

	mu        sync.Mutex
	recipes   []Recipe
	index     map[int64]int
	query     string
	visible   []Recipe
	favorites map[int64]bool
	lastID    int64

	seq uint64 // last mutation sequence number, guarded by mu

	// Events are delivered in mutation order: a mutation with sequence n waits
	// until n-1 has been delivered. Subscribers must not mutate the store
	// synchronously from their callback.
	notifyMu   sync.Mutex
	notifyCond *sync.Cond
	delivered  uint64

	subsMu      sync.Mutex
	subscribers map[int]func(Event)
	nextSub     int
}

// Option configures a Store.
type Option func(*Store)

// WithPersistence makes the store load from and write through to p.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

// WithClock overrides the clock used for id allocation and CreatedAt.
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
		clock:       realClock{},
		logger:      slog.Default(),
		index:       make(map[int64]int),
		favorites:   make(map[int64]bool),
		subscribers: make(map[int]func(Event)),
	}
	s.notifyCond = sync.NewCond(&s.notifyMu)
	for _, opt := range opts {
		opt(s)
	}
	s.visible = Filter(s.recipes, s.query)
	return s
}

// Open creates a Store and loads recipes and favorites from its persistence,
// if one was configured. Favorites pointing at missing recipes are dropped.
func Open(opts ...Option) (*Store, error) {
	s := New(opts...)
	if s.persist == nil {
		return s, nil
	}

	rs, err := s.persist.LoadRecipes()
	if err != nil {
		return nil, fmt.Errorf("loading recipes: %w", err)
	}
	if err := s.replaceLocked(rs); err != nil {
		return nil, fmt.Errorf("loading recipes: %w", err)
	}

	ids, err := s.persist.LoadFavorites()
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	dangling := 0
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.favorites[id] = true
		} else {
			dangling++
		}
	}
	if dangling > 0 {
		s.logger.Warn("dropped favorites without a recipe", "count", dangling)
	}

	s.logger.Debug("recipe store opened", "recipes", len(s.recipes), "favorites", len(s.favorites))
	return s, nil
}

// Close drops every subscriber.
func (s *Store) Close() {
	s.subsMu.Lock()
	s.subscribers = make(map[int]func(Event))
	s.subsMu.Unlock()
}

// Subscribe registers fn to be called after each successful mutation.
// The returned function removes the subscription.
func (s *Store) Subscribe(fn func(Event)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	s.subsMu.Unlock()

	return func() {
		s.subsMu.Lock()
		delete(s.subscribers, id)
		s.subsMu.Unlock()
	}
}

// --- readers ---

// All returns a copy of the collection in insertion order.
func (s *Store) All() []Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.recipes)
}

// Visible returns a copy of the filtered view for the current query.
func (s *Store) Visible() []Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.visible)
}

// Query returns the current search query.
func (s *Store) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Get returns the recipe with the given id.
func (s *Store) Get(id int64) (Recipe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return Recipe{}, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	return s.recipes[i].clone(), nil
}

// Len returns the number of recipes in the collection.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.recipes)
}

// Favorites returns the favorite ids in ascending order.
func (s *Store) Favorites() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favoriteIDsLocked()
}

// IsFavorite reports whether id is in the favorite set.
func (s *Store) IsFavorite(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites[id]
}

// FavoriteRecipes returns the favorited recipes in collection order.
func (s *Store) FavoriteRecipes() []Recipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Recipe
	for _, r := range s.recipes {
		if s.favorites[r.ID] {
			out = append(out, r.clone())
		}
	}
	return out
}

// Recommendations computes a fresh recommendation list from the current
// collection and favorite set.
func (s *Store) Recommendations(limit int) []Recipe {
	s.mu.Lock()
	records := cloneAll(s.recipes)
	favs := make(map[int64]bool, len(s.favorites))
	for id := range s.favorites {
		favs[id] = true
	}
	s.mu.Unlock()
	return Recommend(records, favs, limit)
}

// --- mutations ---

// Add appends r to the collection. An id of zero asks the store to allocate
// one; a non-zero id must not already exist.
func (s *Store) Add(r Recipe) (Recipe, error) {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return Recipe{}, fmt.Errorf("title is required: %w", ErrInvalidRecipe)
	}
	if r.ID < 0 {
		return Recipe{}, fmt.Errorf("id %d must be positive: %w", r.ID, ErrInvalidRecipe)
	}

	s.mu.Lock()
	if r.ID == 0 {
		r.ID = s.nextIDLocked()
	} else if _, exists := s.index[r.ID]; exists {
		s.mu.Unlock()
		return Recipe{}, fmt.Errorf("recipe %d: %w", r.ID, ErrDuplicateID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.clock.Now().UTC()
	}
	r = r.clone()

	if s.persist != nil {
		if err := s.persist.SaveRecipe(r); err != nil {
			s.mu.Unlock()
			return Recipe{}, fmt.Errorf("saving recipe %d: %w", r.ID, err)
		}
	}

	s.recipes = append(s.recipes, r)
	s.index[r.ID] = len(s.recipes) - 1
	if r.ID > s.lastID {
		s.lastID = r.ID
	}
	s.refreshLocked()
	out := r.clone()
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventAdded, ID: r.ID})
	return out, nil
}

// Update merges patch into the recipe with the given id.
func (s *Store) Update(id int64, patch Patch) (Recipe, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return Recipe{}, fmt.Errorf("title cannot be empty: %w", ErrInvalidRecipe)
		}
		patch.Title = &title
	}

	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return Recipe{}, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}
	updated := patch.apply(s.recipes[i].clone())

	if s.persist != nil {
		if err := s.persist.SaveRecipe(updated); err != nil {
			s.mu.Unlock()
			return Recipe{}, fmt.Errorf("saving recipe %d: %w", id, err)
		}
	}

	s.recipes[i] = updated
	s.refreshLocked()
	out := updated.clone()
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventUpdated, ID: id})
	return out, nil
}

// Delete removes the recipe with the given id and drops it from the favorite set.
func (s *Store) Delete(id int64) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}

	if s.persist != nil {
		if err := s.persist.DeleteRecipe(id); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("deleting recipe %d: %w", id, err)
		}
		if s.favorites[id] {
			ids := removeID(s.favoriteIDsLocked(), id)
			if err := s.persist.SaveFavorites(ids); err != nil {
				// The recipe is already gone; Open drops the dangling favorite on next load.
				s.logger.Warn("saving favorites after delete", "id", id, "error", err)
			}
		}
	}

	s.recipes = append(s.recipes[:i], s.recipes[i+1:]...)
	delete(s.favorites, id)
	s.reindexLocked()
	s.refreshLocked()
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventDeleted, ID: id})
	return nil
}

// SetQuery replaces the search query and recomputes the filtered view.
func (s *Store) SetQuery(text string) {
	s.mu.Lock()
	s.query = text
	s.refreshLocked()
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventQuery, Query: text})
}

// SetRecipes replaces the whole collection. Recipes with a zero id get one
// allocated; favorites whose recipe is gone are dropped.
func (s *Store) SetRecipes(rs []Recipe) error {
	s.mu.Lock()
	rs = s.prepareLocked(rs)
	if err := checkUnique(rs); err != nil {
		s.mu.Unlock()
		return err
	}

	kept := make([]int64, 0, len(s.favorites))
	ids := make(map[int64]bool, len(rs))
	for _, r := range rs {
		ids[r.ID] = true
	}
	for id := range s.favorites {
		if ids[id] {
			kept = append(kept, id)
		}
	}
	sortIDs(kept)

	if s.persist != nil {
		if err := s.persist.ReplaceRecipes(rs); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("replacing recipes: %w", err)
		}
		if len(kept) != len(s.favorites) {
			if err := s.persist.SaveFavorites(kept); err != nil {
				s.mu.Unlock()
				return fmt.Errorf("saving favorites: %w", err)
			}
		}
	}

	if err := s.replaceLocked(rs); err != nil {
		s.mu.Unlock()
		return err
	}
	s.favorites = make(map[int64]bool, len(kept))
	for _, id := range kept {
		s.favorites[id] = true
	}
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventReplaced})
	return nil
}

// ToggleFavorite flips membership of id in the favorite set and returns the
// new membership.
func (s *Store) ToggleFavorite(id int64) (bool, error) {
	s.mu.Lock()
	if _, ok := s.index[id]; !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("recipe %d: %w", id, ErrNotFound)
	}

	now := !s.favorites[id]
	if s.persist != nil {
		ids := s.favoriteIDsLocked()
		if now {
			ids = append(ids, id)
			sortIDs(ids)
		} else {
			ids = removeID(ids, id)
		}
		if err := s.persist.SaveFavorites(ids); err != nil {
			s.mu.Unlock()
			return false, fmt.Errorf("saving favorites: %w", err)
		}
	}

	if now {
		s.favorites[id] = true
	} else {
		delete(s.favorites, id)
	}
	seq := s.nextSeqLocked()
	s.mu.Unlock()

	s.emit(seq, Event{Kind: EventFavorite, ID: id, Favorite: now})
	return now, nil
}

// --- internals ---

// prepareLocked copies rs, trims titles and fills zero ids and creation times.
func (s *Store) prepareLocked(rs []Recipe) []Recipe {
	now := s.clock.Now()
	next := now.UnixMilli()
	for _, r := range rs {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	out := cloneAll(rs)
	for i := range out {
		out[i].Title = strings.TrimSpace(out[i].Title)
		if out[i].ID == 0 {
			out[i].ID = next
			next++
		}
		if out[i].CreatedAt.IsZero() {
			out[i].CreatedAt = now.UTC()
		}
	}
	return out
}

func (s *Store) replaceLocked(rs []Recipe) error {
	if err := checkUnique(rs); err != nil {
		return err
	}
	s.recipes = cloneAll(rs)
	s.reindexLocked()
	for _, r := range s.recipes {
		if r.ID > s.lastID {
			s.lastID = r.ID
		}
	}
	s.refreshLocked()
	return nil
}

func (s *Store) reindexLocked() {
	s.index = make(map[int64]int, len(s.recipes))
	for i, r := range s.recipes {
		s.index[r.ID] = i
	}
}

func (s *Store) refreshLocked() {
	s.visible = Filter(s.recipes, s.query)
}

// nextIDLocked derives an id from the wall clock in milliseconds, bumped past
// the last id handed out so rapid adds never collide.
func (s *Store) nextIDLocked() int64 {
	id := s.clock.Now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for {
		if _, taken := s.index[id]; !taken {
			return id
		}
		id++
	}
}

func (s *Store) favoriteIDsLocked() []int64 {
	ids := make([]int64, 0, len(s.favorites))
	for id := range s.favorites {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func (s *Store) nextSeqLocked() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) emit(seq uint64, ev Event) {
	s.notifyMu.Lock()
	for s.delivered != seq-1 {
		s.notifyCond.Wait()
	}
	s.notifyMu.Unlock()

	defer func() {
		s.notifyMu.Lock()
		s.delivered = seq
		s.notifyCond.Broadcast()
		s.notifyMu.Unlock()
	}()

	s.subsMu.Lock()
	keys := make([]int, 0, len(s.subscribers))
	for k := range s.subscribers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Event), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.subscribers[k])
	}
	s.subsMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

func checkUnique(rs []Recipe) error {
	seen := make(map[int64]bool, len(rs))
	for _, r := range rs {
		if r.ID <= 0 {
			return fmt.Errorf("recipe %q has no id: %w", r.Title, ErrInvalidRecipe)
		}
		if r.Title == "" {
			return fmt.Errorf("recipe %d: title is required: %w", r.ID, ErrInvalidRecipe)
		}
		if seen[r.ID] {
			return fmt.Errorf("recipe %d: %w", r.ID, ErrDuplicateID)
		}
		seen[r.ID] = true
	}
	return nil
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
