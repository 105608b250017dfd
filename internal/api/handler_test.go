package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kalambet/larder/internal/importer"
	"github.com/kalambet/larder/internal/querycache"
	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
	"github.com/kalambet/larder/internal/todos"
)

const testToken = "test-token-12345"

// --- mocks ---

type mockGitHub struct {
	searchCalls atomic.Int32
	userErr     error
}

func (m *mockGitHub) SearchUsers(_ context.Context, p remote.SearchParams) (remote.SearchResult, error) {
	m.searchCalls.Add(1)
	return remote.SearchResult{
		TotalCount: 1,
		Items:      []remote.User{{Login: p.Username}},
		Page:       1,
		PerPage:    10,
	}, nil
}

func (m *mockGitHub) GetUser(_ context.Context, login string) (remote.User, error) {
	if m.userErr != nil {
		return remote.User{}, m.userErr
	}
	return remote.User{Login: login, Name: "The Octocat"}, nil
}

func (m *mockGitHub) GetUserRepos(_ context.Context, login string, page, perPage int) ([]remote.Repo, error) {
	return []remote.Repo{{Name: "hello", FullName: login + "/hello"}}, nil
}

func (m *mockGitHub) GetUserFollowers(_ context.Context, _ string, _, _ int) ([]remote.User, error) {
	return []remote.User{{Login: "a"}, {Login: "b"}}, nil
}

func (m *mockGitHub) GetUserFollowing(_ context.Context, _ string, _, _ int) ([]remote.User, error) {
	return []remote.User{{Login: "c"}}, nil
}

type mockPosts struct {
	calls atomic.Int32
	fail  atomic.Bool
}

func (m *mockPosts) List(context.Context) ([]remote.Post, error) {
	n := m.calls.Add(1)
	if m.fail.Load() {
		return nil, &remote.FetchError{Op: "fetch posts", Kind: remote.KindRateLimited, StatusCode: 429}
	}
	return []remote.Post{{ID: int64(n), Title: "post"}}, nil
}

type mockCatalog struct {
	recipes []recipes.Recipe
	path    string
}

func (m *mockCatalog) Fetch(_ context.Context, path string) ([]recipes.Recipe, error) {
	m.path = path
	return m.recipes, nil
}

type mockImporter struct {
	recipes []recipes.Recipe
	err     error
}

func (m *mockImporter) FetchURL(context.Context, string) ([]recipes.Recipe, error) {
	return m.recipes, m.err
}

// --- helpers ---

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func setupHandler(t *testing.T) (http.Handler, Deps) {
	t.Helper()
	deps := Deps{
		Recipes:  recipes.New(recipes.WithClock(fixedClock{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})),
		Todos:    todos.New(todos.WithClock(fixedClock{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})),
		Cache:    querycache.New(),
		GitHub:   &mockGitHub{},
		Posts:    &mockPosts{},
		Catalog:  &mockCatalog{},
		Importer: &mockImporter{},
		Token:    testToken,
	}
	return NewHandler(deps), deps
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rr.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, s *recipes.Store, titles ...string) {
	t.Helper()
	for i, title := range titles {
		if _, err := s.Add(recipes.Recipe{ID: int64(i + 1), Title: title}); err != nil {
			t.Fatalf("Add(%q): %v", title, err)
		}
	}
}

// --- tests ---

func TestHealth_NoAuth(t *testing.T) {
	h, _ := setupHandler(t)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestAuth_Rejects(t *testing.T) {
	h, _ := setupHandler(t)
	for _, token := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/recipes", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
	}
}

func TestRecipes_CRUD(t *testing.T) {
	h, deps := setupHandler(t)

	rr := do(t, h, http.MethodPost, "/recipes", `{"id":7,"title":"  Tomato Soup ","ingredients":["tomato"]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[recipeView](t, rr); got.ID != 7 || got.Title != "Tomato Soup" {
		t.Errorf("created = %+v", got)
	}

	if rr := do(t, h, http.MethodPost, "/recipes", `{"id":7,"title":"Again"}`); rr.Code != http.StatusConflict {
		t.Errorf("duplicate POST status = %d, want 409", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/recipes", `{"title":"   "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank title status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodPatch, "/recipes/7", `{"description":"Warm"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("PATCH status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[recipeView](t, rr); got.Description != "Warm" || got.Title != "Tomato Soup" {
		t.Errorf("patched = %+v", got)
	}
	if rr := do(t, h, http.MethodPatch, "/recipes/7", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty PATCH status = %d, want 400", rr.Code)
	}

	rr = do(t, h, http.MethodGet, "/recipes/7", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("GET status = %d", rr.Code)
	}

	if rr := do(t, h, http.MethodDelete, "/recipes/7", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/recipes/7", ""); rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/recipes/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rr.Code)
	}
	if deps.Recipes.Len() != 0 {
		t.Errorf("Len = %d", deps.Recipes.Len())
	}
}

func TestSearch_UpdatesVisible(t *testing.T) {
	h, deps := setupHandler(t)
	seed(t, deps.Recipes, "Spaghetti Carbonara", "Chicken Curry", "Pasta Salad")

	rr := do(t, h, http.MethodPut, "/search", `{"query":"PASTA"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	got := decode[visibleResponse](t, rr)
	if got.Query != "PASTA" || len(got.Recipes) != 1 || got.Recipes[0].Title != "Pasta Salad" {
		t.Errorf("visible = %+v", got)
	}

	got = decode[visibleResponse](t, do(t, h, http.MethodGet, "/recipes/visible", ""))
	if len(got.Recipes) != 1 {
		t.Errorf("GET visible = %+v", got)
	}
}

func TestFavoritesAndRecommendations(t *testing.T) {
	h, deps := setupHandler(t)
	seed(t, deps.Recipes, "Chicken Curry", "Chicken Soup", "Beef Curry", "Salad")

	rr := do(t, h, http.MethodPost, "/recipes/1/favorite", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if got := decode[map[string]any](t, rr); got["favorite"] != true {
		t.Errorf("toggle = %v", got)
	}

	favs := decode[[]recipeView](t, do(t, h, http.MethodGet, "/favorites", ""))
	if len(favs) != 1 || favs[0].ID != 1 || !favs[0].Favorite {
		t.Errorf("favorites = %+v", favs)
	}

	recs := decode[[]recipeView](t, do(t, h, http.MethodGet, "/recommendations?limit=2", ""))
	if len(recs) != 2 || recs[0].ID != 2 || recs[1].ID != 3 {
		t.Errorf("recommendations = %+v", recs)
	}

	if rr := do(t, h, http.MethodGet, "/recommendations?limit=x", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, "/recipes/99/favorite", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown favorite status = %d, want 404", rr.Code)
	}
}

func TestRecommendations_HugeLimit(t *testing.T) {
	h, deps := setupHandler(t)
	seed(t, deps.Recipes, "Chicken Curry", "Chicken Soup", "Beef Curry")
	if _, err := deps.Recipes.ToggleFavorite(1); err != nil {
		t.Fatal(err)
	}

	rr := do(t, h, http.MethodGet, "/recommendations?limit=1099511627776", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if recs := decode[[]recipeView](t, rr); len(recs) != 2 {
		t.Errorf("recommendations = %+v", recs)
	}
}

func TestRecipes_PatchTrimsTitle(t *testing.T) {
	h, deps := setupHandler(t)
	seed(t, deps.Recipes, "Pancakes")

	rr := do(t, h, http.MethodPatch, "/recipes/1", `{"title":"  Waffles  "}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[recipeView](t, rr); got.Title != "Waffles" {
		t.Errorf("Title = %q, want %q", got.Title, "Waffles")
	}
}

func TestTodos_AddToggleDelete(t *testing.T) {
	h, deps := setupHandler(t)

	rr := do(t, h, http.MethodPost, "/todos", `{"text":"  soak beans "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST status = %d; body = %s", rr.Code, rr.Body.String())
	}
	created := decode[todos.Todo](t, rr)
	if created.Text != "soak beans" || created.Completed || created.ID == 0 {
		t.Errorf("created = %+v", created)
	}
	if rr := do(t, h, http.MethodPost, "/todos", `{"text":"  "}`); rr.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, want 400", rr.Code)
	}

	path := fmt.Sprintf("/todos/%d", created.ID)
	rr = do(t, h, http.MethodPost, path+"/toggle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rr.Code)
	}
	if got := decode[todos.Todo](t, rr); !got.Completed {
		t.Errorf("toggled = %+v", got)
	}

	list := decode[todoListResponse](t, do(t, h, http.MethodGet, "/todos", ""))
	if len(list.Todos) != 1 || list.Remaining != 0 {
		t.Errorf("list = %+v", list)
	}

	if rr := do(t, h, http.MethodDelete, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodPost, path+"/toggle", ""); rr.Code != http.StatusNotFound {
		t.Errorf("toggle after delete status = %d, want 404", rr.Code)
	}
	if rr := do(t, h, http.MethodDelete, "/todos/abc", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status = %d, want 400", rr.Code)
	}
	if deps.Todos.Len() != 0 {
		t.Errorf("Len = %d", deps.Todos.Len())
	}
}

func TestTodos_NotConfigured(t *testing.T) {
	_, deps := setupHandler(t)
	deps.Todos = nil
	h := NewHandler(deps)

	if rr := do(t, h, http.MethodGet, "/todos", ""); rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rr.Code)
	}
}

func TestGitHubSearch_Cached(t *testing.T) {
	h, deps := setupHandler(t)
	gh := deps.GitHub.(*mockGitHub)

	for i := 0; i < 2; i++ {
		rr := do(t, h, http.MethodGet, "/github/search?username=octo&min_repos=5", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
		}
	}
	if gh.searchCalls.Load() != 1 {
		t.Errorf("search calls = %d, want 1", gh.searchCalls.Load())
	}

	if rr := do(t, h, http.MethodGet, "/github/search?min_repos=-1", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("negative min_repos status = %d", rr.Code)
	}
	if rr := do(t, h, http.MethodGet, "/github/search?created_after=yesterday", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad created_after status = %d", rr.Code)
	}
}

func TestGitHubUser_ErrorMapping(t *testing.T) {
	h, deps := setupHandler(t)
	gh := deps.GitHub.(*mockGitHub)

	tests := []struct {
		kind remote.Kind
		want int
	}{
		{remote.KindNotFound, http.StatusNotFound},
		{remote.KindRateLimited, http.StatusTooManyRequests},
		{remote.KindUnreachable, http.StatusBadGateway},
		{remote.KindStatus, http.StatusBadGateway},
	}
	for i, tt := range tests {
		gh.userErr = &remote.FetchError{Op: "get user", Kind: tt.kind}
		rr := do(t, h, http.MethodGet, "/github/users/user"+string(rune('a'+i)), "")
		if rr.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.kind, rr.Code, tt.want)
		}
	}
}

func TestGitHubUser_Subresources(t *testing.T) {
	h, _ := setupHandler(t)

	user := decode[remoteResponse](t, do(t, h, http.MethodGet, "/github/users/octo", ""))
	if m, ok := user.Data.(map[string]any); !ok || m["login"] != "octo" {
		t.Errorf("user = %+v", user)
	}

	for path, want := range map[string]int{
		"/github/users/octo/repos":     1,
		"/github/users/octo/followers": 2,
		"/github/users/octo/following": 1,
	} {
		rr := do(t, h, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s: status = %d", path, rr.Code)
			continue
		}
		resp := decode[remoteResponse](t, rr)
		if items, ok := resp.Data.([]any); !ok || len(items) != want {
			t.Errorf("%s: data = %v, want %d items", path, resp.Data, want)
		}
	}
}

func TestGitHubRefetch_InvalidatesGitHubOnly(t *testing.T) {
	h, deps := setupHandler(t)
	gh := deps.GitHub.(*mockGitHub)
	posts := deps.Posts.(*mockPosts)

	do(t, h, http.MethodGet, "/github/search?username=octo", "")
	do(t, h, http.MethodGet, "/github/users/octo", "")
	do(t, h, http.MethodGet, "/posts", "")

	rr := do(t, h, http.MethodPost, "/github/refetch", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]int](t, rr); got["invalidated"] != 2 {
		t.Errorf("invalidated = %v, want 2", got)
	}

	do(t, h, http.MethodGet, "/github/search?username=octo", "")
	if gh.searchCalls.Load() != 2 {
		t.Errorf("search calls = %d, want 2", gh.searchCalls.Load())
	}
	resp := decode[remoteResponse](t, do(t, h, http.MethodGet, "/posts", ""))
	if !resp.Cached || posts.calls.Load() != 1 {
		t.Errorf("posts = %+v, calls = %d", resp, posts.calls.Load())
	}
}

func TestPrefetchPosts(t *testing.T) {
	h, deps := setupHandler(t)
	posts := deps.Posts.(*mockPosts)

	task := PrefetchPosts(context.Background(), deps)
	if task == nil {
		t.Fatal("PrefetchPosts returned nil")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := task.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	resp := decode[remoteResponse](t, do(t, h, http.MethodGet, "/posts", ""))
	if !resp.Cached || posts.calls.Load() != 1 {
		t.Errorf("posts = %+v, calls = %d", resp, posts.calls.Load())
	}

	deps.Posts = nil
	if task := PrefetchPosts(context.Background(), deps); task != nil {
		t.Error("PrefetchPosts without a feed returned a task")
	}
}

func TestPosts_KeepPreviousDataOnRefetchFailure(t *testing.T) {
	h, deps := setupHandler(t)
	posts := deps.Posts.(*mockPosts)

	first := decode[remoteResponse](t, do(t, h, http.MethodGet, "/posts", ""))
	if first.Stale || first.Cached {
		t.Errorf("first = %+v", first)
	}
	second := decode[remoteResponse](t, do(t, h, http.MethodGet, "/posts", ""))
	if !second.Cached || posts.calls.Load() != 1 {
		t.Errorf("second = %+v, calls = %d", second, posts.calls.Load())
	}

	posts.fail.Store(true)
	rr := do(t, h, http.MethodPost, "/posts/refetch", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("refetch status = %d; body = %s", rr.Code, rr.Body.String())
	}
	stale := decode[remoteResponse](t, rr)
	if !stale.Stale || stale.Error == "" {
		t.Errorf("refetch = %+v, want stale with error", stale)
	}
	if items, ok := stale.Data.([]any); !ok || len(items) != 1 {
		t.Errorf("stale data = %v", stale.Data)
	}

	st := decode[querycache.Status](t, do(t, h, http.MethodGet, "/cache/status?key=posts", ""))
	if !st.HasValue || st.LastError == "" {
		t.Errorf("status = %+v", st)
	}
}

func TestPosts_ErrorWithoutData(t *testing.T) {
	h, deps := setupHandler(t)
	deps.Posts.(*mockPosts).fail.Store(true)

	if rr := do(t, h, http.MethodGet, "/posts", ""); rr.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", rr.Code)
	}
}

func TestImport_Catalog(t *testing.T) {
	h, deps := setupHandler(t)
	cat := deps.Catalog.(*mockCatalog)
	cat.recipes = []recipes.Recipe{
		{ID: 1, Title: "Spaghetti Carbonara"},
		{ID: 2, Title: "Chicken Tikka Masala"},
	}
	deps.Recipes.Add(recipes.Recipe{ID: 2, Title: "Existing"})

	rr := do(t, h, http.MethodPost, "/import", `{"catalog":"https://example.test/data.json"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[importResponse](t, rr)
	if len(got.Imported) != 1 || len(got.Skipped) != 1 {
		t.Errorf("import = %+v", got)
	}
	if cat.path != "https://example.test/data.json" {
		t.Errorf("catalog path = %q", cat.path)
	}
}

func TestImport_Replace(t *testing.T) {
	h, deps := setupHandler(t)
	deps.Catalog.(*mockCatalog).recipes = []recipes.Recipe{{ID: 10, Title: "Only"}}
	seed(t, deps.Recipes, "Old")

	rr := do(t, h, http.MethodPost, "/import", `{"catalog":"x.json","replace":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	all := deps.Recipes.All()
	if len(all) != 1 || all[0].ID != 10 {
		t.Errorf("recipes = %+v", all)
	}
}

func TestImport_URL(t *testing.T) {
	h, deps := setupHandler(t)
	deps.Importer.(*mockImporter).recipes = []recipes.Recipe{{Title: "Banana Bread"}}

	rr := do(t, h, http.MethodPost, "/import", `{"url":"https://example.test/bread"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d; body = %s", rr.Code, rr.Body.String())
	}
	got := decode[importResponse](t, rr)
	if len(got.Imported) != 1 || got.Imported[0].ID == 0 {
		t.Errorf("import = %+v", got)
	}
}

func TestImport_URLNotRecipe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	_, deps := setupHandler(t)
	deps.Importer = importer.New(nil)
	h := NewHandler(deps)

	rr := do(t, h, http.MethodPost, "/import", `{"url":"`+srv.URL+`/status.json"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body = %s", rr.Code, rr.Body.String())
	}
	if deps.Recipes.Len() != 0 {
		t.Errorf("Len = %d, want 0", deps.Recipes.Len())
	}
}

func TestImport_Validation(t *testing.T) {
	h, _ := setupHandler(t)
	for _, body := range []string{
		`{}`,
		`{"url":"ftp://example.test/x"}`,
		`{"url":"https://a","catalog":"b"}`,
		`{"catalog":""}`,
		`not json`,
	} {
		if rr := do(t, h, http.MethodPost, "/import", body); rr.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestEvents_StreamsMutations(t *testing.T) {
	h, deps := setupHandler(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	req.Header.Set("Authorization", "Bearer "+testToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	if _, err := deps.Recipes.Add(recipes.Recipe{ID: 3, Title: "Soup"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev recipes.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			t.Fatalf("decoding event: %v", err)
		}
		if ev.Kind != recipes.EventAdded || ev.ID != 3 {
			t.Errorf("event = %+v", ev)
		}
		return
	}
	t.Fatalf("stream ended without event: %v", scanner.Err())
}
