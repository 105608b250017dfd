package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/larder/internal/config"
	"github.com/kalambet/larder/internal/importer"
	"github.com/kalambet/larder/internal/recipes"
	"github.com/kalambet/larder/internal/remote"
	"github.com/kalambet/larder/internal/todos"
)

// --- recipe ---

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage the recipe collection",
}

var recipeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recipe",
	Long: `Add a recipe to the collection.

Examples:
  larder recipe add --title "Chicken Curry" --description "Spicy and rich"
  larder recipe add --title "Pancakes" --ingredient flour --ingredient milk --ingredient eggs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		title, _ := cmd.Flags().GetString("title")
		if strings.TrimSpace(title) == "" {
			return fmt.Errorf("--title is required")
		}
		description, _ := cmd.Flags().GetString("description")
		ingredients, _ := cmd.Flags().GetStringArray("ingredient")
		instructions, _ := cmd.Flags().GetString("instructions")
		image, _ := cmd.Flags().GetString("image")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/recipes", recipes.Recipe{
			Title:        title,
			Description:  description,
			Ingredients:  ingredients,
			Instructions: instructions,
			Image:        image,
		})
		if err != nil {
			return err
		}

		var added recipeView
		if err := decodeJSON(resp, &added); err != nil {
			return err
		}

		printSuccess("Added recipe %d", added.ID)
		return nil
	},
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes",
	RunE: func(cmd *cobra.Command, args []string) error {
		visible, _ := cmd.Flags().GetBool("visible")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var list []recipeView
		if visible {
			resp, err := client.get(cmd.Context(), "/recipes/visible")
			if err != nil {
				return err
			}
			var v struct {
				Query   string       `json:"query"`
				Recipes []recipeView `json:"recipes"`
			}
			if err := decodeJSON(resp, &v); err != nil {
				return err
			}
			if v.Query != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Filter: %q\n", v.Query)
			}
			list = v.Recipes
		} else {
			resp, err := client.get(cmd.Context(), "/recipes")
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &list); err != nil {
				return err
			}
		}

		printRecipeList(cmd, list, "No recipes found.")
		return nil
	},
}

var recipeShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a single recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/recipes/%d", id))
		if err != nil {
			return err
		}

		var r recipeView
		if err := decodeJSON(resp, &r); err != nil {
			return err
		}
		printRecipe(cmd.OutOrStdout(), r)
		return nil
	},
}

var recipeEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a recipe with flags, or in $EDITOR when no flags are given",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		patch := patchFromFlags(cmd)
		if patch.IsEmpty() {
			patch, err = patchFromEditor(cmd, client, id)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				printWarning("No changes")
				return nil
			}
		}

		resp, err := client.patch(cmd.Context(), fmt.Sprintf("/recipes/%d", id), patch)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Updated recipe %d", id)
		return nil
	},
}

// patchFromFlags collects the edit flags that were set explicitly.
func patchFromFlags(cmd *cobra.Command) recipes.Patch {
	var p recipes.Patch
	flags := cmd.Flags()
	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		p.Description = &v
	}
	if flags.Changed("ingredient") {
		v, _ := flags.GetStringArray("ingredient")
		p.Ingredients = &v
	}
	if flags.Changed("instructions") {
		v, _ := flags.GetString("instructions")
		p.Instructions = &v
	}
	if flags.Changed("image") {
		v, _ := flags.GetString("image")
		p.Image = &v
	}
	return p
}

func patchFromEditor(cmd *cobra.Command, client *apiClient, id int64) (recipes.Patch, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	resp, err := client.get(cmd.Context(), fmt.Sprintf("/recipes/%d", id))
	if err != nil {
		return recipes.Patch{}, err
	}
	var current recipeView
	if err := decodeJSON(resp, &current); err != nil {
		return recipes.Patch{}, err
	}

	editable := recipes.Patch{
		Title:        &current.Title,
		Description:  &current.Description,
		Ingredients:  &current.Ingredients,
		Instructions: &current.Instructions,
		Image:        &current.Image,
	}
	data, err := json.MarshalIndent(editable, "", "  ")
	if err != nil {
		return recipes.Patch{}, err
	}

	tmpFile, err := os.CreateTemp("", "larder-recipe-*.json")
	if err != nil {
		return recipes.Patch{}, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer os.Remove(tmpPath)

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return recipes.Patch{}, err
	}
	tmpFile.Close()

	editorCmd := exec.Command(editor, tmpPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return recipes.Patch{}, fmt.Errorf("editor exited with error: %w", err)
	}

	edited, err := os.ReadFile(tmpPath)
	if err != nil {
		return recipes.Patch{}, err
	}
	var p recipes.Patch
	if err := json.Unmarshal(edited, &p); err != nil {
		return recipes.Patch{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return diffPatch(current.Recipe, p), nil
}

// diffPatch drops fields of p that equal r.
func diffPatch(r recipes.Recipe, p recipes.Patch) recipes.Patch {
	if p.Title != nil && *p.Title == r.Title {
		p.Title = nil
	}
	if p.Description != nil && *p.Description == r.Description {
		p.Description = nil
	}
	if p.Ingredients != nil && strings.Join(*p.Ingredients, "\x00") == strings.Join(r.Ingredients, "\x00") {
		p.Ingredients = nil
	}
	if p.Instructions != nil && *p.Instructions == r.Instructions {
		p.Instructions = nil
	}
	if p.Image != nil && *p.Image == r.Image {
		p.Image = nil
	}
	return p
}

var recipeDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a recipe",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/recipes/%d", id))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted recipe %d", id)
		return nil
	},
}

var recipeSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Set the collection filter and show matching recipes",
	Long: `Set the collection filter and show matching recipes. Titles are matched
case-insensitively. Run without a query to clear the filter.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/search", map[string]string{"query": query})
		if err != nil {
			return err
		}

		var v struct {
			Recipes []recipeView `json:"recipes"`
		}
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}

		printRecipeList(cmd, v.Recipes, "No matching recipes.")
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{recipeAddCmd, recipeEditCmd} {
		c.Flags().String("title", "", "recipe title")
		c.Flags().String("description", "", "short description")
		c.Flags().StringArray("ingredient", nil, "ingredient (repeatable)")
		c.Flags().String("instructions", "", "preparation steps")
		c.Flags().String("image", "", "image URL")
	}
	recipeListCmd.Flags().Bool("visible", false, "only recipes matching the current filter")

	recipeCmd.AddCommand(recipeAddCmd)
	recipeCmd.AddCommand(recipeListCmd)
	recipeCmd.AddCommand(recipeShowCmd)
	recipeCmd.AddCommand(recipeEditCmd)
	recipeCmd.AddCommand(recipeDeleteCmd)
	recipeCmd.AddCommand(recipeSearchCmd)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid recipe id %q", s)
	}
	return id, nil
}

func printRecipeList(cmd *cobra.Command, list []recipeView, empty string) {
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, empty)
		return
	}
	for _, r := range list {
		printRecipeLine(out, r)
	}
}

// --- favorites ---

var favoriteCmd = &cobra.Command{
	Use:   "favorite <id>",
	Short: "Toggle a recipe's favorite mark",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), fmt.Sprintf("/recipes/%d/favorite", id), nil)
		if err != nil {
			return err
		}

		var result struct {
			Favorite bool `json:"favorite"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if result.Favorite {
			printSuccess("Recipe %d added to favorites", id)
		} else {
			printSuccess("Recipe %d removed from favorites", id)
		}
		return nil
	},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Suggest recipes similar to your favorites",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		path := "/recommendations"
		if limit > 0 {
			path += "?limit=" + strconv.Itoa(limit)
		}
		resp, err := client.get(cmd.Context(), path)
		if err != nil {
			return err
		}

		var list []recipeView
		if err := decodeJSON(resp, &list); err != nil {
			return err
		}

		printRecipeList(cmd, list, "No recommendations.")
		return nil
	},
}

func init() {
	recommendCmd.Flags().Int("limit", 0, "maximum number of recommendations (default from config)")
}

// --- github ---

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "Look up GitHub users",
}

var githubSearchCmd = &cobra.Command{
	Use:   "search",
	Short: "Advanced GitHub user search",
	Long: `Advanced GitHub user search.

Examples:
  larder github search --location Berlin --language go --min-followers 100
  larder github search --username octo --sort followers --page 2`,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := searchQuery(cmd)

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/github/search?"+q.Encode())
		if err != nil {
			return err
		}

		var env remoteEnvelope[remote.SearchResult]
		if err := decodeJSON(resp, &env); err != nil {
			return err
		}
		env.warn()

		out := cmd.OutOrStdout()
		res := env.Data
		fmt.Fprintf(out, "%d users found (page %d)\n", res.TotalCount, res.Page)
		for _, u := range res.Items {
			printUserLine(out, u)
		}
		if res.HasMore {
			fmt.Fprintf(out, "More results: --page %d\n", res.Page+1)
		}
		return nil
	},
}

// searchQuery turns the search flags into API query parameters, skipping
// unset ones.
func searchQuery(cmd *cobra.Command) url.Values {
	q := url.Values{}
	for _, name := range []string{"username", "location", "language", "created-after", "sort", "order"} {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			q.Set(strings.ReplaceAll(name, "-", "_"), v)
		}
	}
	for _, name := range []string{"min-repos", "min-followers", "page", "per-page"} {
		if v, _ := cmd.Flags().GetInt(name); v > 0 {
			q.Set(strings.ReplaceAll(name, "-", "_"), strconv.Itoa(v))
		}
	}
	return q
}

var githubUserCmd = &cobra.Command{
	Use:   "user <login>",
	Short: "Show a GitHub user, or their repos, followers or following",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		login := args[0]
		repos, _ := cmd.Flags().GetBool("repos")
		followers, _ := cmd.Flags().GetBool("followers")
		following, _ := cmd.Flags().GetBool("following")
		page, _ := cmd.Flags().GetInt("page")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		base := "/github/users/" + url.PathEscape(login)
		pageQ := fmt.Sprintf("?page=%d", max(page, 1))
		out := cmd.OutOrStdout()

		switch {
		case repos:
			resp, err := client.get(cmd.Context(), base+"/repos"+pageQ)
			if err != nil {
				return err
			}
			var env remoteEnvelope[[]remote.Repo]
			if err := decodeJSON(resp, &env); err != nil {
				return err
			}
			env.warn()
			if len(env.Data) == 0 {
				fmt.Fprintln(out, "No repositories.")
			}
			for _, r := range env.Data {
				fmt.Fprintf(out, "%s  ★%d  %s\n", colorize(colorCyan, r.FullName), r.StargazersCount, truncate(r.Description, 80))
			}
		case followers, following:
			rel := "followers"
			if following {
				rel = "following"
			}
			resp, err := client.get(cmd.Context(), base+"/"+rel+pageQ)
			if err != nil {
				return err
			}
			var env remoteEnvelope[[]remote.User]
			if err := decodeJSON(resp, &env); err != nil {
				return err
			}
			env.warn()
			if len(env.Data) == 0 {
				fmt.Fprintln(out, "No users.")
			}
			for _, u := range env.Data {
				printUserLine(out, u)
			}
		default:
			resp, err := client.get(cmd.Context(), base)
			if err != nil {
				return err
			}
			var env remoteEnvelope[remote.User]
			if err := decodeJSON(resp, &env); err != nil {
				return err
			}
			env.warn()
			u := env.Data
			printUserLine(out, u)
			if u.Bio != "" {
				fmt.Fprintf(out, "  %s\n", u.Bio)
			}
			fmt.Fprintf(out, "  repos %d · followers %d · following %d\n", u.PublicRepos, u.Followers, u.Following)
			if u.Location != "" {
				fmt.Fprintf(out, "  %s\n", u.Location)
			}
			fmt.Fprintf(out, "  %s\n", u.HTMLURL)
		}
		return nil
	},
}

func printUserLine(w io.Writer, u remote.User) {
	name := ""
	if u.Name != "" {
		name = " (" + u.Name + ")"
	}
	fmt.Fprintf(w, "%s%s\n", colorize(colorBold, u.Login), name)
}

func init() {
	f := githubSearchCmd.Flags()
	f.String("username", "", "match in login")
	f.String("location", "", "user location")
	f.String("language", "", "primary repository language")
	f.Int("min-repos", 0, "minimum public repositories")
	f.Int("min-followers", 0, "minimum followers")
	f.String("created-after", "", "joined on or after (YYYY-MM-DD)")
	f.String("sort", "", "followers, repositories or joined")
	f.String("order", "", "asc or desc")
	f.Int("page", 1, "result page")
	f.Int("per-page", 0, "results per page")

	githubUserCmd.Flags().Bool("repos", false, "list repositories")
	githubUserCmd.Flags().Bool("followers", false, "list followers")
	githubUserCmd.Flags().Bool("following", false, "list followed users")
	githubUserCmd.Flags().Int("page", 1, "result page")
	githubUserCmd.MarkFlagsMutuallyExclusive("repos", "followers", "following")

	githubCmd.AddCommand(githubSearchCmd)
	githubCmd.AddCommand(githubUserCmd)
	githubCmd.AddCommand(githubRefetchCmd)
}

var githubRefetchCmd = &cobra.Command{
	Use:   "refetch",
	Short: "Drop every cached GitHub response",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/github/refetch", nil)
		if err != nil {
			return err
		}
		var result struct {
			Invalidated int `json:"invalidated"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Dropped %d cached GitHub responses", result.Invalidated)
		return nil
	},
}

// --- posts ---

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Show the post feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		refetch, _ := cmd.Flags().GetBool("refetch")
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		var env remoteEnvelope[[]remote.Post]
		if refetch {
			resp, err := client.post(cmd.Context(), "/posts/refetch", nil)
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &env); err != nil {
				return err
			}
		} else {
			resp, err := client.get(cmd.Context(), "/posts")
			if err != nil {
				return err
			}
			if err := decodeJSON(resp, &env); err != nil {
				return err
			}
		}
		env.warn()

		out := cmd.OutOrStdout()
		if len(env.Data) == 0 {
			fmt.Fprintln(out, "No posts.")
			return nil
		}
		for i, p := range env.Data {
			if limit > 0 && i >= limit {
				fmt.Fprintf(out, "... %d more\n", len(env.Data)-limit)
				break
			}
			fmt.Fprintf(out, "%s  %s\n", colorize(colorCyan, strconv.FormatInt(p.ID, 10)), truncate(p.Title, 70))
		}
		return nil
	},
}

func init() {
	postsCmd.Flags().Bool("refetch", false, "discard the cached feed and load it again")
	postsCmd.Flags().Int("limit", 20, "maximum number of posts to print (0 for all)")
}

// --- todos ---

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage the kitchen to-do list",
}

var todoAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Add a to-do item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := strings.TrimSpace(strings.Join(args, " "))
		if text == "" {
			return fmt.Errorf("todo text is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/todos", map[string]string{"text": text})
		if err != nil {
			return err
		}
		var t todos.Todo
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}

		printSuccess("Added todo %d: %s", t.ID, t.Text)
		return nil
	},
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List to-do items",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/todos")
		if err != nil {
			return err
		}
		var v struct {
			Todos     []todos.Todo `json:"todos"`
			Remaining int          `json:"remaining"`
		}
		if err := decodeJSON(resp, &v); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(v.Todos) == 0 {
			fmt.Fprintln(out, "Nothing to do.")
			return nil
		}
		for _, t := range v.Todos {
			mark := "[ ]"
			if t.Completed {
				mark = colorize(colorGreen, "[x]")
			}
			fmt.Fprintf(out, "%s %s  %s\n", mark, colorize(colorCyan, strconv.FormatInt(t.ID, 10)), t.Text)
		}
		fmt.Fprintf(out, "%d of %d left\n", v.Remaining, len(v.Todos))
		return nil
	},
}

var todoToggleCmd = &cobra.Command{
	Use:   "toggle <id>",
	Short: "Mark a to-do item done or not done",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTodoID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), fmt.Sprintf("/todos/%d/toggle", id), nil)
		if err != nil {
			return err
		}
		var t todos.Todo
		if err := decodeJSON(resp, &t); err != nil {
			return err
		}

		if t.Completed {
			printSuccess("Done: %s", t.Text)
		} else {
			printSuccess("Reopened: %s", t.Text)
		}
		return nil
	},
}

var todoDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a to-do item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseTodoID(args[0])
		if err != nil {
			return err
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete(cmd.Context(), fmt.Sprintf("/todos/%d", id))
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			return err
		}

		printSuccess("Deleted todo %d", id)
		return nil
	},
}

func parseTodoID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", s)
	}
	return id, nil
}

func init() {
	todoCmd.AddCommand(todoAddCmd)
	todoCmd.AddCommand(todoListCmd)
	todoCmd.AddCommand(todoToggleCmd)
	todoCmd.AddCommand(todoDeleteCmd)
}

// --- import ---

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import recipes from a web page, a local file or the catalog",
	Long: `Import recipes from a web page, a local file or the catalog.

Examples:
  larder import --url https://example.com/pancakes
  larder import --file ./curry.pdf
  larder import --catalog
  larder import --catalog --source https://example.com/data.json --replace`,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, _ := cmd.Flags().GetString("url")
		file, _ := cmd.Flags().GetString("file")
		catalog, _ := cmd.Flags().GetBool("catalog")
		source, _ := cmd.Flags().GetString("source")
		replace, _ := cmd.Flags().GetBool("replace")

		if u == "" && file == "" && !catalog {
			return fmt.Errorf("one of --url, --file, or --catalog is required")
		}
		if source != "" && !catalog {
			return fmt.Errorf("--source only applies to --catalog")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		if file != "" {
			return importFile(cmd, client, file, replace)
		}

		req := map[string]any{"replace": replace}
		if u != "" {
			req["url"] = u
		} else {
			req["catalog"] = source
		}

		resp, err := client.post(cmd.Context(), "/import", req)
		if err != nil {
			return err
		}
		var result struct {
			Imported []recipes.Recipe `json:"imported"`
			Skipped  []string         `json:"skipped"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		reportImport(len(result.Imported), result.Skipped)
		return nil
	},
}

// importFile parses a local document and adds its recipes one by one.
func importFile(cmd *cobra.Command, client *apiClient, path string, replace bool) error {
	if replace {
		return fmt.Errorf("--replace is not supported with --file")
	}
	rs, err := importer.New(nil).ReadFile(path)
	if err != nil {
		return err
	}

	imported := 0
	var skipped []string
	for _, r := range rs {
		resp, err := client.post(cmd.Context(), "/recipes", r)
		if err != nil {
			return err
		}
		if err := decodeJSON(resp, nil); err != nil {
			skipped = append(skipped, fmt.Sprintf("%s: %v", r.Title, err))
			continue
		}
		imported++
	}
	reportImport(imported, skipped)
	return nil
}

func reportImport(imported int, skipped []string) {
	for _, s := range skipped {
		printWarning("Skipped %s", s)
	}
	printSuccess("Imported %d recipe(s)", imported)
}

func init() {
	importCmd.Flags().String("url", "", "web page or document URL")
	importCmd.Flags().String("file", "", "local HTML, text, PDF or JSON catalog file")
	importCmd.Flags().Bool("catalog", false, "import the recipe catalog")
	importCmd.Flags().String("source", "", "catalog URL (default: catalog.url)")
	importCmd.Flags().Bool("replace", false, "replace the whole collection")
	importCmd.MarkFlagsMutuallyExclusive("url", "file", "catalog")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value. Valid keys:\n  " + strings.Join(config.ValidKeys(), "\n  "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
