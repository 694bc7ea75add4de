// Package maps exposes Google Maps geocoding and distance tools the model
// uses to verify a customer's stated address and its proximity to known
// institutions.
package maps

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/rosescout/rosescout"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api"

// Client calls the Google Maps web APIs.
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

// NewClient creates a Google Maps client.
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

// GeocodeArgs are the arguments to the get_coordinates tool.
type GeocodeArgs struct {
	Address string `json:"address" description:"The address to geocode (e.g. \"1600 Amphitheatre Parkway, Mountain View, CA\")"`
}

// Validate implements rosescout.Validatable.
func (a GeocodeArgs) Validate() error {
	if a.Address == "" {
		return fmt.Errorf("address must not be empty")
	}
	return nil
}

// GeocodeResult is the get_coordinates tool output.
type GeocodeResult struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	FormattedAddress string  `json:"formatted_address"`
	Address          string  `json:"address"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Geocode resolves an address to coordinates.
func (c *Client) Geocode(ctx context.Context, address string) (*GeocodeResult, error) {
	var result geocodeResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("address", address).
		SetQueryParam("key", c.apiKey).
		SetResult(&result).
		Get(c.baseURL + "/geocode/json")
	if err != nil {
		return nil, fmt.Errorf("failed to query geocoding API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoding API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if result.Status != "OK" || len(result.Results) == 0 {
		return nil, rosescout.NewClientError(fmt.Sprintf("no results found for address: %s", address), false)
	}

	first := result.Results[0]
	return &GeocodeResult{
		Latitude:         first.Geometry.Location.Lat,
		Longitude:        first.Geometry.Location.Lng,
		FormattedAddress: first.FormattedAddress,
		Address:          address,
	}, nil
}

// DistanceArgs are the arguments to the calculate_distance tool.
type DistanceArgs struct {
	OriginAddress      string `json:"origin_address" description:"Starting address"`
	DestinationAddress string `json:"destination_address" description:"Destination address"`
}

// Validate implements rosescout.Validatable.
func (a DistanceArgs) Validate() error {
	if a.OriginAddress == "" || a.DestinationAddress == "" {
		return fmt.Errorf("both origin_address and destination_address are required")
	}
	return nil
}

// DistanceResult is the calculate_distance tool output.
type DistanceResult struct {
	OriginAddress      string  `json:"origin_address"`
	DestinationAddress string  `json:"destination_address"`
	DistanceKm         float64 `json:"distance_km"`
	DistanceText       string  `json:"distance_text"`
	Duration           string  `json:"duration"`
	DurationSeconds    int     `json:"duration_seconds"`
}

type distanceResponse struct {
	Status               string   `json:"status"`
	OriginAddresses      []string `json:"origin_addresses"`
	DestinationAddresses []string `json:"destination_addresses"`
	Rows                 []struct {
		Elements []struct {
			Status   string `json:"status"`
			Distance struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"distance"`
			Duration struct {
				Value int    `json:"value"`
				Text  string `json:"text"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

// Distance computes the road distance between two addresses.
func (c *Client) Distance(ctx context.Context, origin, destination string) (*DistanceResult, error) {
	var result distanceResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("origins", origin).
		SetQueryParam("destinations", destination).
		SetQueryParam("units", "metric").
		SetQueryParam("key", c.apiKey).
		SetResult(&result).
		Get(c.baseURL + "/distancematrix/json")
	if err != nil {
		return nil, fmt.Errorf("failed to query distance matrix API: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("distance matrix API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	if len(result.Rows) == 0 || len(result.Rows[0].Elements) == 0 || result.Rows[0].Elements[0].Status != "OK" {
		return nil, rosescout.NewClientError(
			fmt.Sprintf("could not calculate distance between %q and %q", origin, destination), false)
	}

	element := result.Rows[0].Elements[0]
	out := &DistanceResult{
		DistanceKm:      float64(element.Distance.Value) / 1000,
		DistanceText:    element.Distance.Text,
		Duration:        element.Duration.Text,
		DurationSeconds: element.Duration.Value,
	}
	if len(result.OriginAddresses) > 0 {
		out.OriginAddress = result.OriginAddresses[0]
	}
	if len(result.DestinationAddresses) > 0 {
		out.DestinationAddress = result.DestinationAddresses[0]
	}
	return out, nil
}

// GeocodeTool returns the get_coordinates tool backed by this client.
func (c *Client) GeocodeTool() (rosescout.Tool, error) {
	return rosescout.NewTool(
		"get_coordinates",
		"Get latitude and longitude coordinates for an address.",
		func(ctx context.Context, args GeocodeArgs) (*GeocodeResult, error) {
			return c.Geocode(ctx, args.Address)
		},
	)
}

// DistanceTool returns the calculate_distance tool backed by this client.
func (c *Client) DistanceTool() (rosescout.Tool, error) {
	return rosescout.NewTool(
		"calculate_distance",
		"Calculate the road distance between two addresses in kilometers.",
		func(ctx context.Context, args DistanceArgs) (*DistanceResult, error) {
			return c.Distance(ctx, args.OriginAddress, args.DestinationAddress)
		},
	)
}
