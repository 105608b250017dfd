package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/kalambet/larder/internal/recipes"
)

// recipeView is a recipe as rendered to clients.
type recipeView struct {
	recipes.Recipe
	Favorite bool `json:"favorite"`
}

func views(s *recipes.Store, rs []recipes.Recipe) []recipeView {
	out := make([]recipeView, len(rs))
	for i, r := range rs {
		out[i] = recipeView{Recipe: r, Favorite: s.IsFavorite(r.ID)}
	}
	return out
}

func handleListRecipes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, views(deps.Recipes, deps.Recipes.All()))
	}
}

func handleAddRecipe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recipes.Recipe
		if !decodeBody(w, r, &req) {
			return
		}
		added, err := deps.Recipes.Add(req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recipeView{Recipe: added})
	}
}

func handleGetRecipe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		rec, err := deps.Recipes.Get(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recipeView{Recipe: rec, Favorite: deps.Recipes.IsFavorite(id)})
	}
}

func handleUpdateRecipe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var patch recipes.Patch
		if !decodeBody(w, r, &patch) {
			return
		}
		if patch.IsEmpty() {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "patch changes no fields")
			return
		}
		updated, err := deps.Recipes.Update(id, patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, recipeView{Recipe: updated, Favorite: deps.Recipes.IsFavorite(id)})
	}
}

func handleDeleteRecipe(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		if err := deps.Recipes.Delete(id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleToggleFavorite(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		fav, err := deps.Recipes.ToggleFavorite(id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "favorite": fav})
	}
}

type visibleResponse struct {
	Query   string       `json:"query"`
	Recipes []recipeView `json:"recipes"`
}

func handleVisible(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, visibleResponse{
			Query:   deps.Recipes.Query(),
			Recipes: views(deps.Recipes, deps.Recipes.Visible()),
		})
	}
}

func handleSetQuery(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query string `json:"query"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		deps.Recipes.SetQuery(req.Query)
		writeJSON(w, http.StatusOK, visibleResponse{
			Query:   deps.Recipes.Query(),
			Recipes: views(deps.Recipes, deps.Recipes.Visible()),
		})
	}
}

func handleFavorites(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, views(deps.Recipes, deps.Recipes.FavoriteRecipes()))
	}
}

func handleRecommendations(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := intParam(r, "limit", deps.RecommendLimit)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		limit = min(limit, recipes.MaxRecommendLimit)
		writeJSON(w, http.StatusOK, views(deps.Recipes, deps.Recipes.Recommendations(limit)))
	}
}

type importRequest struct {
	URL     string  `json:"url"`
	Catalog *string `json:"catalog"`

	// Replace swaps the whole collection for the imported recipes.
	Replace bool `json:"replace"`
}

type importResponse struct {
	Imported []recipes.Recipe `json:"imported"`
	Skipped  []string         `json:"skipped,omitempty"`
}

func handleImport(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req importRequest
		if !decodeBody(w, r, &req) {
			return
		}

		var (
			rs  []recipes.Recipe
			err error
		)
		switch {
		case req.URL != "" && req.Catalog != nil:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "set either url or catalog, not both")
			return
		case req.URL != "":
			if deps.Importer == nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "importer not configured")
				return
			}
			if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "url must be http or https")
				return
			}
			rs, err = deps.Importer.FetchURL(r.Context(), req.URL)
		case req.Catalog != nil:
			if deps.Catalog == nil {
				httpError(w, http.StatusServiceUnavailable, "api_error", "catalog not configured")
				return
			}
			path := *req.Catalog
			if path == "" {
				path = deps.CatalogPath
			}
			if path == "" {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "no catalog url configured")
				return
			}
			rs, err = deps.Catalog.Fetch(r.Context(), path)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url or catalog is required")
			return
		}
		if err != nil {
			writeError(w, err)
			return
		}

		if req.Replace {
			if err := deps.Recipes.SetRecipes(rs); err != nil {
				writeError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, importResponse{Imported: deps.Recipes.All()})
			return
		}

		resp := importResponse{Imported: []recipes.Recipe{}}
		for _, rec := range rs {
			added, err := deps.Recipes.Add(rec)
			if err != nil {
				deps.Logger.Info("skipped imported recipe", "title", rec.Title, "error", err)
				resp.Skipped = append(resp.Skipped, fmt.Sprintf("%s: %v", rec.Title, err))
				continue
			}
			resp.Imported = append(resp.Imported, added)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleEvents streams store events as server-sent events until the client
// goes away.
func handleEvents(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			httpError(w, http.StatusInternalServerError, "api_error", "streaming not supported")
			return
		}

		events := make(chan recipes.Event, 64)
		unsubscribe := deps.Recipes.Subscribe(func(ev recipes.Event) {
			select {
			case events <- ev:
			default:
				deps.Logger.Warn("dropping event for slow client", "kind", ev.Kind, "id", ev.ID)
			}
		})
		defer unsubscribe()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case ev := <-events:
				if err := writeEvent(w, ev); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
