// Package screeninglist exposes a tool over the U.S. Consolidated Screening
// List, the combined export-restriction and sanctions lists maintained by the
// Departments of Commerce, State, and Treasury.
package screeninglist

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rosescout/rosescout"
)

const defaultBaseURL = "https://data.trade.gov/consolidated_screening_list/v1"

// toolDescription guides the model: the API does substring matching on
// names, so distinctive proper nouns search well and generic terms do not.
const toolDescription = `Search the Consolidated Screening List for sanctioned entities and individuals.

The list consolidates export restrictions and sanctions from the Departments of Commerce, State, and Treasury, including the SDN list, the Entity List, and the Denied Persons List.

IMPORTANT SEARCH BEHAVIOR:
- Name matching uses SUBSTRING search: the provided name matches if it appears anywhere within an entity's name or alternate names.
- Search with key proper nouns (company or person names), not common words. Good: "Huawei", "Rosneft". Poor: "technology", "company".
- Multiple results may be returned for partial matches.`

// Client calls the Consolidated Screening List API.
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

// NewClient creates a screening list client.
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

// SearchArgs are the arguments to the screening_list_search tool. All fields
// are optional but at least one must be set.
type SearchArgs struct {
	Name      string `json:"name,omitempty" description:"Company, person, or entity name to search for (substring match). Use distinctive proper nouns."`
	Countries string `json:"countries,omitempty" description:"ISO alpha-2 country code(s) to filter results (e.g. \"CN\", \"RU\", \"IR\")"`
	City      string `json:"city,omitempty" description:"City name to filter results"`
	State     string `json:"state,omitempty" description:"State or province name to filter results"`
}

// Validate implements rosescout.Validatable.
func (a SearchArgs) Validate() error {
	if a.Name == "" && a.Countries == "" && a.City == "" && a.State == "" {
		return fmt.Errorf("at least one of name, countries, city, state is required")
	}
	return nil
}

// Search queries the list and returns the raw API response. The payload is
// passed through untouched so the model sees the source lists and listing
// reasons exactly as published.
func (c *Client) Search(ctx context.Context, args SearchArgs) (json.RawMessage, error) {
	req := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("subscription-key", c.apiKey)
	if args.Name != "" {
		req.SetQueryParam("name", args.Name)
	}
	if args.Countries != "" {
		req.SetQueryParam("countries", args.Countries)
	}
	if args.City != "" {
		req.SetQueryParam("city", args.City)
	}
	if args.State != "" {
		req.SetQueryParam("state", args.State)
	}

	resp, err := req.Get(c.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("failed to query screening list API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("screening list API error (status %d): %s", resp.StatusCode(), resp.String())
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, fmt.Errorf("screening list API returned invalid JSON")
	}
	return json.RawMessage(body), nil
}

// Tool returns the screening_list_search tool backed by this client.
func (c *Client) Tool() (rosescout.Tool, error) {
	return rosescout.NewTool(
		"screening_list_search",
		toolDescription,
		func(ctx context.Context, args SearchArgs) (json.RawMessage, error) {
			return c.Search(ctx, args)
		},
	)
}
