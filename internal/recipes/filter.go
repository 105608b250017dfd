package recipes

import "strings"

// Filter returns the recipes whose title contains query, case-insensitively,
// in collection order. A blank query returns every recipe.
func Filter(records []Recipe, query string) []Recipe {
	out := make([]Recipe, 0, len(records))
	if strings.TrimSpace(query) == "" {
		return append(out, records...)
	}
	q := strings.ToLower(query)
	for _, r := range records {
		if strings.Contains(strings.ToLower(r.Title), q) {
			out = append(out, r)
		}
	}
	return out
}
