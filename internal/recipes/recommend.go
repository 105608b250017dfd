package recipes

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// DefaultRecommendLimit is used when Recommend is called with a non-positive limit.
const DefaultRecommendLimit = 5

// MaxRecommendLimit caps the limit accepted from API callers.
const MaxRecommendLimit = 50

// minKeywordLen is exclusive: only tokens longer than this count as keywords.
const minKeywordLen = 3

// Keywords splits a title into lower-cased whitespace-separated tokens longer
// than three runes. Repeated tokens are kept.
func Keywords(title string) []string {
	fields := strings.Fields(strings.ToLower(title))
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > minKeywordLen {
			out = append(out, f)
		}
	}
	return out
}

// Recommend ranks non-favorite recipes by keyword overlap with the titles of
// favorites and returns at most limit of them. With no favorites it returns the
// newest recipes by id. The result depends only on its arguments.
func Recommend(records []Recipe, favorites map[int64]bool, limit int) []Recipe {
	if limit <= 0 {
		limit = DefaultRecommendLimit
	}

	if len(favorites) == 0 {
		newest := append([]Recipe(nil), records...)
		sort.SliceStable(newest, func(i, j int) bool { return newest[i].ID > newest[j].ID })
		if len(newest) > limit {
			newest = newest[:limit]
		}
		return newest
	}

	weights := make(map[string]int)
	for _, r := range records {
		if !favorites[r.ID] {
			continue
		}
		for _, kw := range Keywords(r.Title) {
			weights[kw]++
		}
	}

	type scored struct {
		recipe Recipe
		score  int
	}
	var candidates []scored
	for _, r := range records {
		if favorites[r.ID] {
			continue
		}
		score := 0
		for _, kw := range Keywords(r.Title) {
			score += weights[kw]
		}
		if score > 0 {
			candidates = append(candidates, scored{recipe: r, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })

	n := min(limit, len(records))
	out := make([]Recipe, 0, n)
	picked := make(map[int64]bool, n)
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.recipe)
		picked[c.recipe.ID] = true
	}

	// Pad with the remaining non-favorites in collection order.
	for _, r := range records {
		if len(out) == limit {
			break
		}
		if favorites[r.ID] || picked[r.ID] {
			continue
		}
		out = append(out, r)
		picked[r.ID] = true
	}
	return out
}
