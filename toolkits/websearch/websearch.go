// Package websearch exposes a Tavily-backed web search tool the model uses
// to research a customer's publications, affiliations, and public record.
package websearch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rosescout/rosescout"
)

const defaultBaseURL = "https://api.tavily.com"

// Client calls the Tavily Search API.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used in tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// NewClient creates a Tavily search client.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: resty.New().SetTimeout(30 * time.Second),
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchArgs are the arguments to the web_search tool.
type SearchArgs struct {
	Query string `json:"query" description:"The search query"`
}

// Validate implements rosescout.Validatable.
func (a SearchArgs) Validate() error {
	if a.Query == "" {
		return fmt.Errorf("query must not be empty")
	}
	return nil
}

// SearchHit is one web search result.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchResult is the web_search tool output.
type SearchResult struct {
	Query      string      `json:"query"`
	Answer     string      `json:"answer"`
	Results    []SearchHit `json:"results"`
	SearchTime float64     `json:"search_time"`
}

type tavilyResponse struct {
	Answer       string      `json:"answer"`
	Results      []SearchHit `json:"results"`
	ResponseTime float64     `json:"response_time"`
}

// Search queries the web.
func (c *Client) Search(ctx context.Context, query string) (*SearchResult, error) {
	body := map[string]any{
		"api_key":             c.apiKey,
		"query":               query,
		"max_results":         20,
		"search_depth":        "advanced",
		"include_answer":      false,
		"include_images":      false,
		"include_raw_content": false,
	}

	var result tavilyResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(&result).
		Post(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("failed to query search API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	return &SearchResult{
		Query:      query,
		Answer:     result.Answer,
		Results:    result.Results,
		SearchTime: result.ResponseTime,
	}, nil
}

// Tool returns the web_search tool backed by this client.
func (c *Client) Tool() (rosescout.Tool, error) {
	return rosescout.NewTool(
		"web_search",
		"Search the web. Returns result snippets with titles and URLs.",
		func(ctx context.Context, args SearchArgs) (*SearchResult, error) {
			return c.Search(ctx, args.Query)
		},
	)
}
