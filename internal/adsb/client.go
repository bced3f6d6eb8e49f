package adsb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/yegors/radar-pi/pkg/logger"
)

// Responses larger than this are treated as malformed
const maxBodyBytes = 8 << 20

// DefaultSourceURL is the adsb.lol point query. The three verbs receive the
// latitude, longitude and radius in nautical miles. The radius is rounded up
// to a whole mile before formatting.
const DefaultSourceURL = "https://api.adsb.lol/v2/point/%.4f/%.4f/%.0f"

// FetchError reports a failed telemetry request. Op is "request" for
// transport failures, "status" for non-2xx responses and "decode" for bodies
// that could not be read or parsed.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.Op == "status" {
		return fmt.Sprintf("adsb %s %s: unexpected status code: %d", e.Op, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("adsb %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError checks if an error is a telemetry fetch error
func IsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// Client is responsible for fetching ADS-B data from the source
type Client struct {
	httpClient *http.Client
	sourceURL  string
	userAgent  string
	logger     *logger.Logger
}

// NewClient creates a new ADS-B client. sourceURL is a format string taking
// latitude, longitude and radius; an empty string selects DefaultSourceURL.
func NewClient(sourceURL string, userAgent string, timeout time.Duration, logger *logger.Logger) *Client {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		sourceURL: sourceURL,
		userAgent: userAgent,
		logger:    logger.Named("adsb-client"),
	}
}

// Fetch returns every aircraft the feed reports around the waypoint. Records
// without an id or position are dropped. The call is made once; retrying is
// up to the caller.
func (c *Client) Fetch(ctx context.Context, wp Waypoint) ([]AircraftRecord, error) {
	url := fmt.Sprintf(c.sourceURL, wp.Latitude, wp.Longitude, queryRadius(wp.RadiusNM))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Op: "request", URL: url, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	c.logger.Debug("Fetching ADS-B data",
		logger.String("url", url),
		logger.String("waypoint", wp.String()),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Op: "request", URL: url, Err: fmt.Errorf("failed to execute request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Op: "status", URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, &FetchError{Op: "decode", URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}
	if len(body) > maxBodyBytes {
		return nil, &FetchError{Op: "decode", URL: url, Err: fmt.Errorf("response body exceeds %d bytes", maxBodyBytes)}
	}

	items, total, err := splitPayload(body)
	if err != nil {
		return nil, &FetchError{Op: "decode", URL: url, Err: err}
	}

	records := make([]AircraftRecord, 0, len(items))
	dropped := 0
	for _, item := range items {
		var ac feedAircraft
		if err := json.Unmarshal(item, &ac); err != nil {
			dropped++
			continue
		}
		rec, ok := ac.toRecord()
		if !ok {
			dropped++
			continue
		}
		records = append(records, rec)
	}

	c.logger.Debug("Successfully fetched ADS-B data",
		logger.Int("aircraft_count", len(records)),
		logger.Int("reported_total", total),
		logger.Int("dropped", dropped),
		logger.Duration("elapsed", time.Since(start)),
	)

	return records, nil
}

// queryRadius rounds the search radius up so the feed never returns a
// smaller area than the one selected from
func queryRadius(nm float64) float64 {
	return math.Ceil(nm)
}

// splitPayload returns the raw aircraft objects of a feed body together with
// the aircraft count the feed reports. Both the object form ({"ac": [...]})
// and a bare array are accepted; a bare array reports its length.
func splitPayload(body []byte) ([]json.RawMessage, int, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, 0, errors.New("empty response body")
	}

	switch body[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, 0, fmt.Errorf("failed to parse JSON: %w", err)
		}
		return items, len(items), nil
	case '{':
		var resp feedResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, 0, fmt.Errorf("failed to parse JSON: %w", err)
		}
		items := resp.AC
		if items == nil {
			items = resp.Aircraft
		}
		if items == nil {
			return nil, 0, errors.New("payload has no aircraft list")
		}
		total := len(items)
		if resp.Total != nil {
			total = *resp.Total
		}
		return items, total, nil
	default:
		return nil, 0, fmt.Errorf("unexpected payload starting with %q", body[0])
	}
}
