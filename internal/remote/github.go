package remote

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultGitHubURL = "https://api.github.com"
	defaultPerPage   = 10
	maxPerPage       = 100
	// detailConcurrency bounds the per-user profile requests issued while
	// enriching a search page.
	detailConcurrency = 4
)

// User is a GitHub user profile. Search results carry only the summary
// fields until enriched.
type User struct {
	Login       string    `json:"login"`
	ID          int64     `json:"id"`
	AvatarURL   string    `json:"avatar_url"`
	HTMLURL     string    `json:"html_url"`
	Name        string    `json:"name,omitempty"`
	Company     string    `json:"company,omitempty"`
	Blog        string    `json:"blog,omitempty"`
	Location    string    `json:"location,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// Repo is a GitHub repository summary.
type Repo struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	Language        string    `json:"language"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	UpdatedAt       time.Time `json:"updated_at,omitzero"`
}

// SearchParams are the advanced user-search filters. Zero values are ignored.
type SearchParams struct {
	Username     string
	Location     string
	Language     string
	MinRepos     int
	MinFollowers int
	CreatedAfter string // YYYY-MM-DD
	Sort         string // followers, repositories or joined; default repositories
	Order        string // asc or desc; default desc
	Page         int
	PerPage      int
}

// SearchResult is one page of user search results.
type SearchResult struct {
	TotalCount        int    `json:"total_count"`
	IncompleteResults bool   `json:"incomplete_results"`
	Items             []User `json:"items"`
	Page              int    `json:"page"`
	PerPage           int    `json:"per_page"`
	HasMore           bool   `json:"has_more"`
}

// BuildSearchQuery renders params as a GitHub search qualifier string.
func BuildSearchQuery(p SearchParams) string {
	var parts []string
	if p.Username != "" {
		parts = append(parts, p.Username+" in:login")
	}
	if p.Location != "" {
		parts = append(parts, "location:"+p.Location)
	}
	if p.MinRepos > 0 {
		parts = append(parts, "repos:>="+strconv.Itoa(p.MinRepos))
	}
	if p.MinFollowers > 0 {
		parts = append(parts, "followers:>="+strconv.Itoa(p.MinFollowers))
	}
	if p.CreatedAfter != "" {
		parts = append(parts, "created:>="+p.CreatedAfter)
	}
	if p.Language != "" {
		parts = append(parts, "language:"+p.Language)
	}
	if len(parts) == 0 {
		parts = append(parts, "type:user")
	}
	return strings.Join(parts, "+")
}

// CacheKey returns a stable cache key for the search.
func (p SearchParams) CacheKey() string {
	page, perPage := p.pagination()
	return fmt.Sprintf("github:search:%s:%s:%s:%d:%d", BuildSearchQuery(p), p.sort(), p.order(), page, perPage)
}

func (p SearchParams) pagination() (int, int) {
	page := p.Page
	if page < 1 {
		page = 1
	}
	perPage := p.PerPage
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return page, perPage
}

func (p SearchParams) sort() string {
	if p.Sort == "" {
		return "repositories"
	}
	return p.Sort
}

func (p SearchParams) order() string {
	if p.Order == "" {
		return "desc"
	}
	return p.Order
}

// GitHub is a client for the GitHub REST API.
type GitHub struct {
	c *Client
}

// NewGitHub creates a GitHub client. An empty baseURL uses api.github.com.
func NewGitHub(baseURL string, opts ...ClientOption) *GitHub {
	if baseURL == "" {
		baseURL = DefaultGitHubURL
	}
	opts = append([]ClientOption{
		WithHeader("Accept", "application/vnd.github+json"),
		WithHeader("X-GitHub-Api-Version", "2022-11-28"),
	}, opts...)
	return &GitHub{c: NewClient(baseURL, opts...)}
}

// SearchUsers runs an advanced user search and replaces each summary with the
// user's full profile. A profile that fails to load keeps its summary.
func (g *GitHub) SearchUsers(ctx context.Context, p SearchParams) (SearchResult, error) {
	page, perPage := p.pagination()

	// Qualifiers are joined with a literal '+', which the API reads as a space.
	parts := strings.Split(BuildSearchQuery(p), "+")
	for i, part := range parts {
		parts[i] = url.QueryEscape(part)
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	q.Set("sort", p.sort())
	q.Set("order", p.order())
	u := g.c.resolve("/search/users", nil) + "?q=" + strings.Join(parts, "+") + "&" + q.Encode()

	var raw struct {
		TotalCount        int    `json:"total_count"`
		IncompleteResults bool   `json:"incomplete_results"`
		Items             []User `json:"items"`
	}
	if err := g.c.getJSONURL(ctx, "search users", u, &raw); err != nil {
		return SearchResult{}, err
	}

	items := make([]User, len(raw.Items))
	copy(items, raw.Items)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(detailConcurrency)
	for i, summary := range raw.Items {
		eg.Go(func() error {
			full, err := g.GetUser(egCtx, summary.Login)
			if err != nil {
				g.c.logger.Debug("keeping search summary", "login", summary.Login, "error", err)
				return nil
			}
			items[i] = full
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{
		TotalCount:        raw.TotalCount,
		IncompleteResults: raw.IncompleteResults,
		Items:             items,
		Page:              page,
		PerPage:           perPage,
		HasMore:           page*perPage < raw.TotalCount,
	}, nil
}

// GetUser fetches a single user profile.
func (g *GitHub) GetUser(ctx context.Context, login string) (User, error) {
	var u User
	if err := g.c.getJSON(ctx, "get user", "/users/"+url.PathEscape(login), nil, &u); err != nil {
		return User{}, err
	}
	return u, nil
}

// GetUserRepos lists a user's repositories, most recently updated first.
func (g *GitHub) GetUserRepos(ctx context.Context, login string, page, perPage int) ([]Repo, error) {
	q := pageQuery(page, perPage)
	q.Set("sort", "updated")
	q.Set("direction", "desc")
	var repos []Repo
	if err := g.c.getJSON(ctx, "get user repositories", "/users/"+url.PathEscape(login)+"/repos", q, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetUserFollowers lists users following login.
func (g *GitHub) GetUserFollowers(ctx context.Context, login string, page, perPage int) ([]User, error) {
	var users []User
	if err := g.c.getJSON(ctx, "get user followers", "/users/"+url.PathEscape(login)+"/followers", pageQuery(page, perPage), &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUserFollowing lists users login follows.
func (g *GitHub) GetUserFollowing(ctx context.Context, login string, page, perPage int) ([]User, error) {
	var users []User
	if err := g.c.getJSON(ctx, "get user following", "/users/"+url.PathEscape(login)+"/following", pageQuery(page, perPage), &users); err != nil {
		return nil, err
	}
	return users, nil
}

func pageQuery(page, perPage int) url.Values {
	p := SearchParams{Page: page, PerPage: perPage}
	pg, pp := p.pagination()
	q := url.Values{}
	q.Set("page", strconv.Itoa(pg))
	q.Set("per_page", strconv.Itoa(pp))
	return q
}
