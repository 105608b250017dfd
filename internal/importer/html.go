package importer

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/kalambet/larder/internal/recipes"
)

// ParseHTML extracts a recipe from a web page. A schema.org Recipe in a
// JSON-LD block wins; otherwise the page title, meta description, Open Graph
// image and any list under an "ingredient" container are used.
func ParseHTML(r io.Reader) (recipes.Recipe, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return recipes.Recipe{}, fmt.Errorf("parsing html: %w", err)
	}

	p := &page{meta: make(map[string]string)}
	p.walk(doc, false, false)

	var rec recipes.Recipe
	for _, block := range p.ldJSON {
		if ld, ok := findLDRecipe(block); ok {
			rec = ld
			break
		}
	}

	if rec.Title == "" {
		rec.Title = firstNonEmpty(p.meta["og:title"], p.title, p.h1)
	}
	if rec.Description == "" {
		rec.Description = firstNonEmpty(p.meta["og:description"], p.meta["description"])
	}
	if rec.Image == "" {
		rec.Image = p.meta["og:image"]
	}
	if len(rec.Ingredients) == 0 {
		rec.Ingredients = p.ingredients
	}
	if rec.Instructions == "" {
		rec.Instructions = strings.Join(p.steps, "\n")
	}

	rec.Title = collapse(rec.Title)
	if rec.Title == "" {
		return recipes.Recipe{}, fmt.Errorf("page has no title: %w", ErrNoRecipe)
	}
	return rec, nil
}

type page struct {
	title       string
	h1          string
	meta        map[string]string
	ldJSON      []string
	ingredients []string
	steps       []string
}

func (p *page) walk(n *html.Node, inIngredients, inSteps bool) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "style", "noscript":
			return
		case "script":
			if attr(n, "type") == "application/ld+json" {
				p.ldJSON = append(p.ldJSON, text(n))
			}
			return
		case "title":
			if p.title == "" {
				p.title = collapse(text(n))
			}
		case "h1":
			if p.h1 == "" {
				p.h1 = collapse(text(n))
			}
		case "meta":
			key := firstNonEmpty(attr(n, "property"), attr(n, "name"))
			if key != "" {
				p.meta[strings.ToLower(key)] = strings.TrimSpace(attr(n, "content"))
			}
		case "li":
			item := collapse(text(n))
			switch {
			case item == "":
			case inIngredients || attr(n, "itemprop") == "recipeIngredient":
				p.ingredients = append(p.ingredients, item)
				return
			case inSteps || attr(n, "itemprop") == "recipeInstructions":
				p.steps = append(p.steps, item)
				return
			}
		}
		marker := strings.ToLower(attr(n, "class") + " " + attr(n, "id"))
		if strings.Contains(marker, "ingredient") {
			inIngredients = true
		}
		if strings.Contains(marker, "instruction") || strings.Contains(marker, "direction") {
			inSteps = true
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, inIngredients, inSteps)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// --- JSON-LD ---

type ldRecipe struct {
	Type         any               `json:"@type"`
	Name         string            `json:"name"`
	Description  string            `json:"description"`
	Image        json.RawMessage   `json:"image"`
	Ingredients  []string          `json:"recipeIngredient"`
	Instructions json.RawMessage   `json:"recipeInstructions"`
	Graph        []json.RawMessage `json:"@graph"`
}

// findLDRecipe looks for a Recipe node in a JSON-LD document, which may be a
// single object, an array, or an object with an @graph.
func findLDRecipe(raw string) (recipes.Recipe, bool) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var nodes []json.RawMessage
		if json.Unmarshal([]byte(raw), &nodes) != nil {
			return recipes.Recipe{}, false
		}
		for _, n := range nodes {
			if r, ok := findLDRecipe(string(n)); ok {
				return r, true
			}
		}
		return recipes.Recipe{}, false
	}

	var node ldRecipe
	if json.Unmarshal([]byte(raw), &node) != nil {
		return recipes.Recipe{}, false
	}
	if isRecipeType(node.Type) {
		return recipes.Recipe{
			Title:        node.Name,
			Description:  node.Description,
			Image:        ldImage(node.Image),
			Ingredients:  node.Ingredients,
			Instructions: ldInstructions(node.Instructions),
		}, true
	}
	for _, g := range node.Graph {
		if r, ok := findLDRecipe(string(g)); ok {
			return r, true
		}
	}
	return recipes.Recipe{}, false
}

func isRecipeType(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "Recipe"
	case []any:
		for _, s := range v {
			if s == "Recipe" {
				return true
			}
		}
	}
	return false
}

func ldImage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) == nil && len(list) > 0 {
		return ldImage(list[0])
	}
	var obj struct {
		URL string `json:"url"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.URL
	}
	return ""
}

func ldInstructions(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return strings.TrimSpace(s)
	}
	var list []json.RawMessage
	if json.Unmarshal(raw, &list) != nil {
		return ""
	}
	steps := make([]string, 0, len(list))
	for _, item := range list {
		var step string
		if json.Unmarshal(item, &step) == nil {
			steps = append(steps, strings.TrimSpace(step))
			continue
		}
		var howTo struct {
			Text string `json:"text"`
		}
		if json.Unmarshal(item, &howTo) == nil && howTo.Text != "" {
			steps = append(steps, strings.TrimSpace(howTo.Text))
		}
	}
	return strings.Join(steps, "\n")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
