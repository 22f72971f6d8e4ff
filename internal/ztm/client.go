// Package ztm is a client for the Warsaw public transport (ZTM) datasets of
// the api.um.warszawa.pl open data API.
package ztm

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/Fakelatency/ztm-schedule/internal/config"
	"github.com/Fakelatency/ztm-schedule/internal/stops"
)

// Client talks to the ZTM datasets. Every call carries the static API key.
type Client struct {
	logger *zap.Logger
	http   *http.Client

	baseURL     string
	apiKey      string
	stopsID     string
	linesID     string
	timetableID string
}

// NewClient creates a client for the API described by cfg
func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	return &Client{
		logger: logger,
		http: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		stopsID:     cfg.StopsResourceID,
		linesID:     cfg.LinesResourceID,
		timetableID: cfg.TimetableResourceID,
	}
}

// FetchStops downloads the full stop directory. Rows without a group id or a
// pole number cannot be queried later and are dropped.
func (c *Client) FetchStops(ctx context.Context) ([]stops.Stop, error) {
	body, err := c.get(ctx, "dbstore_get", url.Values{"id": {c.stopsID}})
	if err != nil {
		return nil, err
	}

	var rows []valuesRow
	if err := decodeResult(body, &rows); err != nil {
		return nil, err
	}

	all := make([]stops.Stop, 0, len(rows))
	for i, raw := range rows {
		r := newRow(raw.Values)
		stop := stops.Stop{
			ID:        r[keyGroupID],
			Number:    r[keyPole],
			Name:      r[keyGroupName],
			Direction: r[keyDirection],
		}
		if stop.ID == "" || stop.Number == "" {
			c.logger.Warn("skipping stop row without id or number",
				zap.Int("row", i),
				zap.String("name", stop.Name),
			)
			continue
		}
		all = append(all, stop)
	}
	return all, nil
}

// LinesForStop returns the lines serving a stop pole. Null entries reported by
// the API come back as empty strings for the caller to discard.
func (c *Client) LinesForStop(ctx context.Context, stopID, stopNumber string) ([]string, error) {
	body, err := c.get(ctx, "dbtimetable_get", url.Values{
		"id":        {c.linesID},
		"busstopId": {stopID},
		"busstopNr": {stopNumber},
	})
	if err != nil {
		return nil, err
	}

	var rows []valuesRow
	if err := decodeResult(body, &rows); err != nil {
		return nil, err
	}

	lines := make([]string, 0, len(rows))
	for _, raw := range rows {
		lines = append(lines, newRow(raw.Values)[keyLine])
	}
	return lines, nil
}

// Timetable returns today's scheduled departures of line from a stop pole,
// in the order the API lists them.
func (c *Client) Timetable(ctx context.Context, stopID, stopNumber, line string) ([]Departure, error) {
	body, err := c.get(ctx, "dbtimetable_get", url.Values{
		"id":        {c.timetableID},
		"busstopId": {stopID},
		"busstopNr": {stopNumber},
		"line":      {line},
	})
	if err != nil {
		return nil, err
	}

	var rows [][]keyValue
	if err := decodeResult(body, &rows); err != nil {
		return nil, err
	}

	var departures []Departure
	for _, cells := range rows {
		r := newRow(cells)
		if r[keyTime] == "" {
			continue
		}
		departures = append(departures, Departure{
			Time:      r[keyTime],
			Direction: r[keyDirection],
			Route:     r[keyRoute],
			Brigade:   r[keyBrigade],
		})
	}
	return departures, nil
}

func (c *Client) get(ctx context.Context, action string, params url.Values) ([]byte, error) {
	params.Set("apikey", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, action, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", action, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", action, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	c.logger.Debug("ztm request",
		zap.String("action", action),
		zap.String("dataset", params.Get("id")),
		zap.Duration("took", time.Since(start)),
	)
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
