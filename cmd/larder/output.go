package main

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

// printRecipeLine writes "<id>  <title>" with a star for favorites.
func printRecipeLine(w io.Writer, r recipeView) {
	star := ""
	if r.Favorite {
		star = " " + colorize(colorYellow, "★")
	}
	fmt.Fprintf(w, "%s  %s%s\n", colorize(colorCyan, fmt.Sprintf("%d", r.ID)), r.Title, star)
}

func printRecipe(w io.Writer, r recipeView) {
	printRecipeLine(w, r)
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}
	if len(r.Ingredients) > 0 {
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Ingredients"))
		for _, ing := range r.Ingredients {
			fmt.Fprintf(w, "  - %s\n", ing)
		}
	}
	if r.Instructions != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", colorize(colorBold, "Instructions"), r.Instructions)
	}
	if r.Image != "" {
		fmt.Fprintf(w, "\nImage: %s\n", r.Image)
	}
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
