package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/larder/internal/recipes"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the recipe collection and named lists.
// It implements recipes.Persistence and todos.Persistence.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "larder.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		// Check if already applied.
		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Recipes ---

const recipeColumns = `id, title, description, ingredients, instructions, image, created_at`

// LoadRecipes returns every recipe in collection order.
func (s *Store) LoadRecipes() ([]recipes.Recipe, error) {
	rows, err := s.db.Query(`SELECT ` + recipeColumns + ` FROM recipes ORDER BY position ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []recipes.Recipe
	for rows.Next() {
		r, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// SaveRecipe inserts r at the end of the collection, or updates it in place
// if the id already exists.
func (s *Store) SaveRecipe(r recipes.Recipe) error {
	ingredients, err := encodeIngredients(r.Ingredients)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO recipes (id, position, title, description, ingredients, instructions, image, created_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM recipes), ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			ingredients = excluded.ingredients,
			instructions = excluded.instructions,
			image = excluded.image`,
		r.ID, r.Title, r.Description, ingredients, r.Instructions, r.Image,
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteRecipe removes a recipe. Missing ids return ErrNotFound.
func (s *Store) DeleteRecipe(id int64) error {
	res, err := s.db.Exec(`DELETE FROM recipes WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ReplaceRecipes swaps the whole collection in one transaction.
func (s *Store) ReplaceRecipes(rs []recipes.Recipe) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM recipes`); err != nil {
		return fmt.Errorf("clearing recipes: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO recipes (id, position, title, description, ingredients, instructions, image, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, r := range rs {
		ingredients, err := encodeIngredients(r.Ingredients)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(r.ID, i+1, r.Title, r.Description, ingredients, r.Instructions, r.Image,
			r.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("inserting recipe %d: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecipe(row rowScanner) (recipes.Recipe, error) {
	var r recipes.Recipe
	var ingredients, createdAt string
	if err := row.Scan(&r.ID, &r.Title, &r.Description, &ingredients, &r.Instructions, &r.Image, &createdAt); err != nil {
		return recipes.Recipe{}, err
	}
	if err := json.Unmarshal([]byte(ingredients), &r.Ingredients); err != nil {
		return recipes.Recipe{}, fmt.Errorf("parsing ingredients of recipe %d: %w", r.ID, err)
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return recipes.Recipe{}, fmt.Errorf("parsing created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

func encodeIngredients(items []string) (string, error) {
	if items == nil {
		items = []string{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encoding ingredients: %w", err)
	}
	return string(b), nil
}

// --- Lists ---

// SaveList stores items under key, replacing any previous list.
func (s *Store) SaveList(key string, items []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning list transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM lists WHERE key = ?`, key); err != nil {
		return err
	}
	for i, item := range items {
		if _, err := tx.Exec(`INSERT INTO lists (key, position, item) VALUES (?, ?, ?)`, key, i, item); err != nil {
			return fmt.Errorf("saving list %q: %w", key, err)
		}
	}
	return tx.Commit()
}

// LoadList returns the items stored under key in saved order. A key that was
// never saved yields an empty list.
func (s *Store) LoadList(key string) ([]string, error) {
	rows, err := s.db.Query(`SELECT item FROM lists WHERE key = ? ORDER BY position ASC`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []string{}
	for rows.Next() {
		var item string
		if err := rows.Scan(&item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// LoadFavorites returns the persisted favorite ids.
func (s *Store) LoadFavorites() ([]int64, error) {
	items, err := s.LoadList(FavoritesKey)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(item, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing favorite id %q: %w", item, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SaveFavorites persists the favorite ids.
func (s *Store) SaveFavorites(ids []int64) error {
	items := make([]string, len(ids))
	for i, id := range ids {
		items[i] = strconv.FormatInt(id, 10)
	}
	return s.SaveList(FavoritesKey, items)
}

var _ recipes.Persistence = (*Store)(nil)
