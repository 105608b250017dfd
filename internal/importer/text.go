package importer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kalambet/larder/internal/recipes"
)

var (
	ingredientHeadings  = []string{"ingredients"}
	instructionHeadings = []string{"instructions", "directions", "method", "steps", "preparation"}
)

// ParseText splits plain recipe text into fields. The first non-empty line is
// the title. Lines under an "Ingredients" heading are ingredients and lines
// under an "Instructions" (or "Directions", "Method", ...) heading are the
// instructions. Anything else is the description.
func ParseText(s string) (recipes.Recipe, error) {
	const (
		inDescription = iota
		inIngredients
		inInstructions
	)

	var rec recipes.Recipe
	var desc, steps []string
	section := inDescription

	for _, line := range strings.Split(s, "\n") {
		line = collapse(line)
		if line == "" {
			continue
		}
		if rec.Title == "" {
			rec.Title = line
			continue
		}
		switch heading(line) {
		case "ingredients":
			section = inIngredients
			continue
		case "instructions":
			section = inInstructions
			continue
		}
		switch section {
		case inIngredients:
			rec.Ingredients = append(rec.Ingredients, strings.TrimLeft(line, "-*• "))
		case inInstructions:
			steps = append(steps, line)
		default:
			desc = append(desc, line)
		}
	}

	if rec.Title == "" {
		return recipes.Recipe{}, fmt.Errorf("text is empty: %w", ErrNoRecipe)
	}
	rec.Description = strings.Join(desc, " ")
	rec.Instructions = strings.Join(steps, "\n")
	return rec, nil
}

func heading(line string) string {
	h := strings.ToLower(strings.TrimRight(line, ":"))
	for _, w := range ingredientHeadings {
		if h == w {
			return "ingredients"
		}
	}
	for _, w := range instructionHeadings {
		if h == w {
			return "instructions"
		}
	}
	return ""
}

// ParsePDF extracts the text of a PDF and parses it with ParseText.
func ParsePDF(data []byte) (recipes.Recipe, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return recipes.Recipe{}, fmt.Errorf("opening pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return recipes.Recipe{}, fmt.Errorf("reading pdf page %d: %w", i, err)
		}
		for _, row := range rows {
			for _, word := range row.Content {
				b.WriteString(word.S)
			}
			b.WriteByte('\n')
		}
	}
	return ParseText(b.String())
}
