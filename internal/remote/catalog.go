package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/kalambet/larder/internal/recipes"
)

// CatalogEntry is one recipe in a published JSON catalog.
type CatalogEntry struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Summary      string   `json:"summary"`
	Image        string   `json:"image"`
	Ingredients  []string `json:"ingredients"`
	Instructions any      `json:"instructions"`
}

// Recipe converts the entry. Instructions may be a string or a list of steps.
func (e CatalogEntry) Recipe() recipes.Recipe {
	return recipes.Recipe{
		ID:           e.ID,
		Title:        strings.TrimSpace(e.Title),
		Description:  e.Summary,
		Ingredients:  e.Ingredients,
		Instructions: instructionsText(e.Instructions),
		Image:        e.Image,
	}
}

func instructionsText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		steps := make([]string, 0, len(t))
		for _, s := range t {
			steps = append(steps, fmt.Sprint(s))
		}
		return strings.Join(steps, "\n")
	default:
		return ""
	}
}

// Catalog fetches recipe catalogs published as JSON arrays.
type Catalog struct {
	c *Client
}

// NewCatalog creates a catalog client. Fetch paths may be absolute URLs.
func NewCatalog(baseURL string, opts ...ClientOption) *Catalog {
	return &Catalog{c: NewClient(baseURL, opts...)}
}

// Fetch downloads the catalog at path.
func (c *Catalog) Fetch(ctx context.Context, path string) ([]recipes.Recipe, error) {
	var entries []CatalogEntry
	if err := c.c.getJSON(ctx, "fetch catalog", path, nil, &entries); err != nil {
		return nil, err
	}
	return catalogRecipes(entries), nil
}

// DecodeCatalog reads a catalog from r.
func DecodeCatalog(r io.Reader) ([]recipes.Recipe, error) {
	var entries []CatalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return catalogRecipes(entries), nil
}

func catalogRecipes(entries []CatalogEntry) []recipes.Recipe {
	out := make([]recipes.Recipe, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Recipe())
	}
	return out
}
