package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetries bounds the transient-failure retry loop per request.
const maxRetries = 3

// ErrNoResults means the provider answered but found nothing for the
// query.
var ErrNoResults = errors.New("geocode: no results")

// TransientError marks a failure worth retrying: no response at all, or
// a 5xx from the provider. Client errors (4xx) are never wrapped in it.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("geocode: transient: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable transport failure.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// Components are the structured parts of a geocoded address.
type Components struct {
	Road        string `json:"road"`
	HouseNumber string `json:"house_number"`
	City        string `json:"city"`
	Town        string `json:"town"`
	Village     string `json:"village"`
	Postcode    string `json:"postcode"`
	Country     string `json:"country"`
}

// Locality returns the most specific populated-place name present.
func (c Components) Locality() string {
	switch {
	case c.City != "":
		return c.City
	case c.Town != "":
		return c.Town
	default:
		return c.Village
	}
}

// Result is one geocoding hit.
type Result struct {
	DisplayName string
	Components  Components
	Lat         float64
	Lon         float64
}

// Client talks to a Nominatim-compatible geocoding provider.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a geocoding client for the given provider base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// nominatimPlace is the provider's wire format.
type nominatimPlace struct {
	DisplayName string     `json:"display_name"`
	Lat         string     `json:"lat"`
	Lon         string     `json:"lon"`
	Address     Components `json:"address"`
}

func (p nominatimPlace) toResult() (Result, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lat %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return Result{}, fmt.Errorf("parse lon %q: %w", p.Lon, err)
	}
	return Result{
		DisplayName: p.DisplayName,
		Components:  p.Address,
		Lat:         lat,
		Lon:         lon,
	}, nil
}

// Search geocodes free-text input into candidate addresses, best match
// first.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")
	q.Set("limit", "5")

	body, err := c.get(ctx, "/search", q)
	if err != nil {
		return nil, err
	}

	var places []nominatimPlace
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("geocode: decode search response: %w", err)
	}
	if len(places) == 0 {
		return nil, ErrNoResults
	}

	results := make([]Result, 0, len(places))
	for _, p := range places {
		r, err := p.toResult()
		if err != nil {
			continue
		}
		results = append(results, r)
	}
	if len(results) == 0 {
		return nil, ErrNoResults
	}
	return results, nil
}

// Reverse resolves coordinates into a display address.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (Result, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("format", "jsonv2")
	q.Set("addressdetails", "1")

	body, err := c.get(ctx, "/reverse", q)
	if err != nil {
		return Result{}, err
	}

	var place nominatimPlace
	if err := json.Unmarshal(body, &place); err != nil {
		return Result{}, fmt.Errorf("geocode: decode reverse response: %w", err)
	}
	if place.DisplayName == "" {
		return Result{}, ErrNoResults
	}
	return place.toResult()
}

// get performs a GET against the provider with bounded exponential
// backoff. Only transport failures and 5xx responses are retried; a 4xx
// is terminal.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	reqURL := c.baseURL + path + "?" + query.Encode()

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &TransientError{Err: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return &TransientError{Err: fmt.Errorf("provider returned %d", resp.StatusCode)}
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("geocode: provider returned %d", resp.StatusCode))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return &TransientError{Err: err}
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxInterval = 2 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return nil, perm.Err
		}
		return nil, err
	}
	return body, nil
}
