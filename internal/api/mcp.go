package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/larder/internal/recipes"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Recipes        *recipes.Store
	RecommendLimit int
}

// NewMCPServer creates an MCP server exposing the recipe collection as tools
// and the favorites list as a resource.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	if deps.RecommendLimit <= 0 {
		deps.RecommendLimit = recipes.DefaultRecommendLimit
	}

	s := server.NewMCPServer(
		"larder",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("larder: a local recipe collection with search, favorites and recommendations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("search_recipes",
			mcp.WithDescription("Find recipes whose title contains the query (case-insensitive). An empty query lists every recipe."),
			mcp.WithString("query", mcp.Description("Title substring to search for")),
		),
		mcpSearchRecipes(deps),
	)

	s.AddTool(
		mcp.NewTool("add_recipe",
			mcp.WithDescription("Add a recipe to the collection."),
			mcp.WithString("title", mcp.Description("Recipe title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Short description")),
			mcp.WithArray("ingredients", mcp.Description("Ingredient lines")),
			mcp.WithString("instructions", mcp.Description("Preparation steps")),
		),
		mcpAddRecipe(deps),
	)

	s.AddTool(
		mcp.NewTool("toggle_favorite",
			mcp.WithDescription("Mark a recipe as favorite, or unmark it if it already is one."),
			mcp.WithNumber("id", mcp.Description("Recipe id"), mcp.Required()),
		),
		mcpToggleFavorite(deps),
	)

	s.AddTool(
		mcp.NewTool("recommend_recipes",
			mcp.WithDescription("Suggest recipes related to the favorites by shared title keywords."),
			mcp.WithNumber("limit", mcp.Description(fmt.Sprintf("Maximum number of recipes (default %d)", deps.RecommendLimit))),
		),
		mcpRecommendRecipes(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"recipes://favorites",
			"Favorite Recipes",
			mcp.WithResourceDescription("Favorite recipes in collection order, as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceFavorites(deps),
	)

	return s
}

func mcpSearchRecipes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := req.GetString("query", "")
		return mcpJSON(recipes.Filter(deps.Recipes.All(), query))
	}
}

func mcpAddRecipe(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title, err := req.RequireString("title")
		if err != nil {
			return mcpError("title is required"), nil
		}

		added, err := deps.Recipes.Add(recipes.Recipe{
			Title:        title,
			Description:  req.GetString("description", ""),
			Ingredients:  req.GetStringSlice("ingredients", nil),
			Instructions: req.GetString("instructions", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to add recipe: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Added recipe %d: %s", added.ID, added.Title)), nil
	}
}

func mcpToggleFavorite(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		n, err := req.RequireInt("id")
		if err != nil {
			return mcpError("id is required"), nil
		}
		id := int64(n)

		fav, err := deps.Recipes.ToggleFavorite(id)
		if errors.Is(err, recipes.ErrNotFound) {
			return mcpError(fmt.Sprintf("no recipe with id %d", id)), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to toggle favorite: %v", err)), nil
		}
		if fav {
			return mcpText(fmt.Sprintf("Recipe %d is now a favorite", id)), nil
		}
		return mcpText(fmt.Sprintf("Recipe %d is no longer a favorite", id)), nil
	}
}

func mcpRecommendRecipes(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", deps.RecommendLimit)
		if limit <= 0 {
			limit = deps.RecommendLimit
		}
		if limit > recipes.MaxRecommendLimit {
			limit = recipes.MaxRecommendLimit
		}
		return mcpJSON(deps.Recipes.Recommendations(limit))
	}
}

func mcpResourceFavorites(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		b, err := json.Marshal(deps.Recipes.FavoriteRecipes())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal favorites: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcpText(string(b)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
