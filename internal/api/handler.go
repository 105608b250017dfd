package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/larder/internal/querycache"
	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
	"github.com/kalambet/larder/internal/todos"
)

// GitHubAPI is the subset of remote.GitHub the handlers use.
type GitHubAPI interface {
	SearchUsers(ctx context.Context, p remote.SearchParams) (remote.SearchResult, error)
	GetUser(ctx context.Context, login string) (remote.User, error)
	GetUserRepos(ctx context.Context, login string, page, perPage int) ([]remote.Repo, error)
	GetUserFollowers(ctx context.Context, login string, page, perPage int) ([]remote.User, error)
	GetUserFollowing(ctx context.Context, login string, page, perPage int) ([]remote.User, error)
}

// PostsAPI lists the post feed.
type PostsAPI interface {
	List(ctx context.Context) ([]remote.Post, error)
}

// CatalogAPI fetches a recipe catalog by path or URL.
type CatalogAPI interface {
	Fetch(ctx context.Context, path string) ([]recipes.Recipe, error)
}

// RecipeImporter parses a recipe document at a URL.
type RecipeImporter interface {
	FetchURL(ctx context.Context, u string) ([]recipes.Recipe, error)
}

// Deps holds everything the HTTP API needs. Remote dependencies are optional;
// their routes answer 503 when unset.
type Deps struct {
	Recipes  *recipes.Store
	Todos    *todos.Store
	Cache    *querycache.Cache
	GitHub   GitHubAPI
	Posts    PostsAPI
	Catalog  CatalogAPI
	Importer RecipeImporter
	Token    string

	// CatalogPath is fetched when an import asks for the catalog without naming one.
	CatalogPath    string
	StaleTime      time.Duration
	RecommendLimit int
	Logger         *slog.Logger
}

// NewHandler returns the larder REST API. Everything but /health requires
// the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Cache == nil {
		deps.Cache = querycache.New(querycache.WithLogger(deps.Logger))
	}
	if deps.StaleTime <= 0 {
		deps.StaleTime = time.Minute
	}
	if deps.RecommendLimit <= 0 {
		deps.RecommendLimit = recipes.DefaultRecommendLimit
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth(deps))

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/recipes", handleListRecipes(deps))
		r.Post("/recipes", handleAddRecipe(deps))
		r.Get("/recipes/visible", handleVisible(deps))
		r.Get("/recipes/{id}", handleGetRecipe(deps))
		r.Patch("/recipes/{id}", handleUpdateRecipe(deps))
		r.Delete("/recipes/{id}", handleDeleteRecipe(deps))
		r.Post("/recipes/{id}/favorite", handleToggleFavorite(deps))
		r.Put("/search", handleSetQuery(deps))
		r.Get("/favorites", handleFavorites(deps))
		r.Get("/recommendations", handleRecommendations(deps))
		r.Get("/events", handleEvents(deps))
		r.Post("/import", handleImport(deps))

		r.Get("/todos", handleListTodos(deps))
		r.Post("/todos", handleAddTodo(deps))
		r.Post("/todos/{id}/toggle", handleToggleTodo(deps))
		r.Delete("/todos/{id}", handleDeleteTodo(deps))

		r.Get("/github/search", handleGitHubSearch(deps))
		r.Get("/github/users/{login}", handleGitHubUser(deps))
		r.Get("/github/users/{login}/repos", handleGitHubRepos(deps))
		r.Get("/github/users/{login}/followers", handleGitHubPeople(deps, "followers"))
		r.Get("/github/users/{login}/following", handleGitHubPeople(deps, "following"))
		r.Post("/github/refetch", handleRefetchGitHub(deps))

		r.Get("/posts", handlePosts(deps))
		r.Post("/posts/refetch", handleRefetchPosts(deps))
		r.Get("/cache/status", handleCacheStatus(deps))
	})

	return r
}

func handleHealth(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "ok",
			"recipes": deps.Recipes.Len(),
			"cached":  deps.Cache.Len(),
		})
	}
}
