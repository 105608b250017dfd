package remote

import (
	"context"
)

const DefaultPostsURL = "https://jsonplaceholder.typicode.com"

// Post is a JSONPlaceholder post.
type Post struct {
	UserID int64  `json:"userId"`
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Posts reads the public post feed.
type Posts struct {
	c *Client
}

// NewPosts creates a feed client. An empty baseURL uses jsonplaceholder.typicode.com.
func NewPosts(baseURL string, opts ...ClientOption) *Posts {
	if baseURL == "" {
		baseURL = DefaultPostsURL
	}
	return &Posts{c: NewClient(baseURL, opts...)}
}

// List fetches every post.
func (p *Posts) List(ctx context.Context) ([]Post, error) {
	var posts []Post
	if err := p.c.getJSON(ctx, "fetch posts", "/posts", nil, &posts); err != nil {
		return nil, err
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}
