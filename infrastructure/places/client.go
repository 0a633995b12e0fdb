// Package places talks to the remote places provider and enriches venues
// with authoritative location data.
package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gigradar/gigradar/domain/venue"
)

const (
	defaultBaseURL = "https://maps.googleapis.com/maps/api"

	// detailFields is the field mask requested from the details endpoint.
	detailFields = "name,formatted_address,geometry,address_component," +
		"formatted_phone_number,website,rating,user_ratings_total," +
		"price_level,type,photo,review,opening_hours"

	// maxPhotoReferenceLength bounds the stored photo reference to the
	// database column size.
	maxPhotoReferenceLength = 1990
)

// ErrTransient marks provider failures worth retrying: network errors,
// 5xx responses and rate limiting.
var ErrTransient = errors.New("transient places failure")

// ErrPermanent marks provider failures that must not be retried: bad
// requests, denied keys, exhausted quota.
var ErrPermanent = errors.New("permanent places failure")

// Client is a places provider HTTP client. It speaks the text-search and
// details endpoints and classifies failures as transient or permanent.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// ClientOption is a functional option for Client.
type ClientOption func(*Client)

// WithBaseURL overrides the provider base URL (used in tests).
func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a places Client authenticated by API key.
func NewClient(apiKey string, logger *slog.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type textSearchResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		PlaceID string `json:"place_id"`
		Name    string `json:"name"`
	} `json:"results"`
}

// TextSearch resolves a place name plus location hint to a provider place
// ID. It returns "" without error when the provider has no match.
func (c *Client) TextSearch(ctx context.Context, placeName, locationHint string) (string, error) {
	query := strings.TrimSpace(placeName + " " + locationHint)

	params := url.Values{}
	params.Set("query", query)
	params.Set("key", c.apiKey)

	var resp textSearchResponse
	if err := c.get(ctx, "/place/textsearch/json", params, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case "OK":
	case "ZERO_RESULTS":
		c.logger.Debug("no places results", "query", query)
		return "", nil
	default:
		return "", statusError("text search", resp.Status, resp.ErrorMessage)
	}

	if len(resp.Results) == 0 {
		return "", nil
	}

	c.logger.Debug("places result",
		"query", query,
		"name", resp.Results[0].Name,
		"place_id", resp.Results[0].PlaceID,
	)
	return resp.Results[0].PlaceID, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		Name             string   `json:"name"`
		FormattedAddress string   `json:"formatted_address"`
		Website          string   `json:"website"`
		Phone            string   `json:"formatted_phone_number"`
		Rating           *float64 `json:"rating"`
		UserRatingsTotal int      `json:"user_ratings_total"`
		PriceLevel       *int     `json:"price_level"`
		Types            []string `json:"types"`
		Geometry         struct {
			Location struct {
				Lat *float64 `json:"lat"`
				Lng *float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
		Photos []struct {
			PhotoReference string `json:"photo_reference"`
		} `json:"photos"`
		Reviews []struct {
			Rating int `json:"rating"`
		} `json:"reviews"`
		AddressComponents []struct {
			LongName string   `json:"long_name"`
			Types    []string `json:"types"`
		} `json:"address_components"`
	} `json:"result"`
}

// Details fetches venue attributes for a place ID.
func (c *Client) Details(ctx context.Context, placeID string) (venue.Attrs, error) {
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("fields", detailFields)
	params.Set("key", c.apiKey)

	var resp detailsResponse
	if err := c.get(ctx, "/place/details/json", params, &resp); err != nil {
		return venue.Attrs{}, err
	}

	if resp.Status != "OK" {
		return venue.Attrs{}, statusError("details", resp.Status, resp.ErrorMessage)
	}

	result := resp.Result
	attrs := venue.Attrs{
		CanonicalName:    result.Name,
		Address:          result.FormattedAddress,
		Website:          result.Website,
		Phone:            result.Phone,
		Rating:           result.Rating,
		UserRatingsTotal: result.UserRatingsTotal,
		PriceLevel:       result.PriceLevel,
		Types:            result.Types,
		Latitude:         result.Geometry.Location.Lat,
		Longitude:        result.Geometry.Location.Lng,
		ReviewCount:      len(result.Reviews),
	}

	if len(result.Photos) > 0 {
		ref := result.Photos[0].PhotoReference
		if len(ref) > maxPhotoReferenceLength {
			ref = ref[:maxPhotoReferenceLength]
		}
		attrs.PhotoReference = ref
	}

	for _, component := range result.AddressComponents {
		if len(component.Types) == 0 {
			continue
		}
		switch component.Types[0] {
		case "locality":
			attrs.City = component.LongName
		case "country":
			attrs.Country = component.LongName
		case "postal_code":
			attrs.PostalCode = component.LongName
		case "administrative_area_level_1":
			attrs.State = component.LongName
		case "sublocality", "sublocality_level_1":
			attrs.Neighborhood = component.LongName
		case "route":
			attrs.Street = component.LongName
		case "street_number":
			attrs.StreetNumber = component.LongName
		}
	}

	return attrs, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		kind := ErrPermanent
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = ErrTransient
		}
		return fmt.Errorf("%w: http status %d", kind, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrTransient, err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrPermanent, err)
	}

	return nil
}

// statusError classifies an API-level status string. Rate limiting is
// transient; denied or malformed requests are permanent.
func statusError(operation, status, message string) error {
	kind := ErrPermanent
	switch status {
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		kind = ErrTransient
	}
	if message != "" {
		return fmt.Errorf("%w: %s status %s: %s", kind, operation, status, message)
	}
	return fmt.Errorf("%w: %s status %s", kind, operation, status)
}
