package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andeantrade/cotiza-api/internal/resilience"
)

// Client fetches exchange rates from the configured HTTP conversion API.
// The upstream contract is a convert endpoint taking (from, to, amount) and
// answering with the converted amount plus a last-updated timestamp.
type Client struct {
	Endpoint string
	APIKey   string
	HTTP     *resilience.HTTPClient
}

type convertResponse struct {
	ConvertedAmount json.Number `json:"convertedAmount"`
	LastUpdated     string      `json:"lastUpdated"`
}

// FetchRate requests the conversion of one target-currency unit into the
// source currency, yielding the rate as source units per target unit.
func (c *Client) FetchRate(ctx context.Context, source, target string) (Rate, error) {
	if c == nil || c.HTTP == nil {
		return Rate{}, errors.New("fx: client not configured")
	}
	if c.Endpoint == "" {
		return Rate{}, errors.New("fx: endpoint not configured")
	}

	query := url.Values{}
	query.Set("from", target)
	query.Set("to", source)
	query.Set("amount", "1")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return Rate{}, fmt.Errorf("fx: build request: %w", err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		return Rate{}, fmt.Errorf("fx: fetch rate: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Rate{}, fmt.Errorf("fx: unexpected status %s", resp.Status)
	}

	var payload convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Rate{}, fmt.Errorf("fx: decode response: %w", err)
	}
	value, err := decimal.NewFromString(payload.ConvertedAmount.String())
	if err != nil {
		return Rate{}, fmt.Errorf("fx: parse converted amount: %w", err)
	}
	if value.Sign() <= 0 {
		return Rate{}, fmt.Errorf("fx: non-positive rate %s", value)
	}

	fetchedAt := time.Now()
	if ts, err := time.Parse(time.RFC3339, payload.LastUpdated); err == nil {
		fetchedAt = ts
	}
	return Rate{
		Source:    source,
		Target:    target,
		Value:     value,
		FetchedAt: fetchedAt,
	}, nil
}
