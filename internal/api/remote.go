package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/larder/internal/querycache"
	"github.com/kalambet/larder/internal/remote"
)

const (
	postsKey        = "posts"
	githubKeyPrefix = "github:"
)

// remoteResponse wraps cached remote data. Error is set when Data is a
// previous result served because the refresh failed.
type remoteResponse struct {
	Data      any       `json:"data"`
	Stale     bool      `json:"stale"`
	Cached    bool      `json:"cached"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
	Error     string    `json:"error,omitempty"`
}

// serveCached fetches key through the cache and writes the result.
func serveCached[T any](w http.ResponseWriter, r *http.Request, deps Deps, key string, load func(ctx context.Context) (T, error)) {
	v, res, err := querycache.FetchAs(r.Context(), deps.Cache, key, deps.StaleTime, load)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := remoteResponse{Data: v, Stale: res.Stale, Cached: res.Cached, UpdatedAt: res.FetchedAt}
	if res.Err != nil {
		resp.Error = remote.UserMessage(res.Err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func handleGitHubSearch(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.GitHub == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "github client not configured")
			return
		}
		q := r.URL.Query()
		p := remote.SearchParams{
			Username:     q.Get("username"),
			Location:     q.Get("location"),
			Language:     q.Get("language"),
			CreatedAfter: q.Get("created_after"),
			Sort:         q.Get("sort"),
			Order:        q.Get("order"),
		}
		var err error
		for name, dst := range map[string]*int{
			"min_repos":     &p.MinRepos,
			"min_followers": &p.MinFollowers,
			"page":          &p.Page,
			"per_page":      &p.PerPage,
		} {
			if *dst, err = intParam(r, name, 0); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
		}
		if p.CreatedAfter != "" {
			if _, err := time.Parse(time.DateOnly, p.CreatedAfter); err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "created_after must be YYYY-MM-DD")
				return
			}
		}

		serveCached(w, r, deps, p.CacheKey(), func(ctx context.Context) (remote.SearchResult, error) {
			return deps.GitHub.SearchUsers(ctx, p)
		})
	}
}

func handleGitHubUser(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.GitHub == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "github client not configured")
			return
		}
		login := chi.URLParam(r, "login")
		serveCached(w, r, deps, githubKeyPrefix+"user:"+login, func(ctx context.Context) (remote.User, error) {
			return deps.GitHub.GetUser(ctx, login)
		})
	}
}

func handleGitHubRepos(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.GitHub == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "github client not configured")
			return
		}
		login := chi.URLParam(r, "login")
		page, perPage, ok := pageParams(w, r)
		if !ok {
			return
		}
		key := fmt.Sprintf("github:repos:%s:%d:%d", login, page, perPage)
		serveCached(w, r, deps, key, func(ctx context.Context) ([]remote.Repo, error) {
			return deps.GitHub.GetUserRepos(ctx, login, page, perPage)
		})
	}
}

// handleGitHubPeople serves followers or following for a user.
func handleGitHubPeople(deps Deps, relation string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.GitHub == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "github client not configured")
			return
		}
		login := chi.URLParam(r, "login")
		page, perPage, ok := pageParams(w, r)
		if !ok {
			return
		}
		list := deps.GitHub.GetUserFollowers
		if relation == "following" {
			list = deps.GitHub.GetUserFollowing
		}
		key := fmt.Sprintf("github:%s:%s:%d:%d", relation, login, page, perPage)
		serveCached(w, r, deps, key, func(ctx context.Context) ([]remote.User, error) {
			return list(ctx, login, page, perPage)
		})
	}
}

func pageParams(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	page, err := intParam(r, "page", 1)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return 0, 0, false
	}
	perPage, err := intParam(r, "per_page", 10)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return 0, 0, false
	}
	return page, perPage, true
}

func handlePosts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Posts == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "posts feed not configured")
			return
		}
		serveCached(w, r, deps, postsKey, deps.Posts.List)
	}
}

func handleRefetchPosts(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Posts == nil {
			httpError(w, http.StatusServiceUnavailable, "api_error", "posts feed not configured")
			return
		}
		deps.Cache.Invalidate(postsKey)
		serveCached(w, r, deps, postsKey, deps.Posts.List)
	}
}

// handleRefetchGitHub drops every cached GitHub response so the next read of
// each goes to the network.
func handleRefetchGitHub(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := deps.Cache.InvalidatePrefix(githubKeyPrefix)
		deps.Logger.Debug("invalidated github cache", "entries", n)
		writeJSON(w, http.StatusOK, map[string]int{"invalidated": n})
	}
}

// PrefetchPosts loads the post feed into the cache in the background so the
// first GET /posts is served from memory. The caller cancels the returned task
// on shutdown. It returns nil when no feed is configured.
func PrefetchPosts(ctx context.Context, deps Deps) *querycache.Task {
	if deps.Posts == nil || deps.Cache == nil {
		return nil
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := deps.StaleTime
	if ttl <= 0 {
		ttl = time.Minute
	}
	load := func(ctx context.Context) (any, error) { return deps.Posts.List(ctx) }
	return deps.Cache.Go(ctx, postsKey, ttl, load, func(res querycache.Result, err error) {
		if err != nil {
			logger.Warn("prefetching posts", "error", remote.UserMessage(err))
			return
		}
		logger.Debug("prefetched posts", "cached", res.Cached)
	})
}

func handleCacheStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("key")
		if key == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "key is required")
			return
		}
		writeJSON(w, http.StatusOK, deps.Cache.Status(key))
	}
}
