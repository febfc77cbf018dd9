package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitos/trade_journal/internal/domain"
)

const DefaultBaseURL = "https://eodhd.com/api"

// Client talks to the EODHD-style quote API: single real-time quote, batch
// quote via the s= query parameter, and free-text symbol search.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewClient(baseURL, apiToken string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiToken: apiToken,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type quotePayload struct {
	Code  string  `json:"code"`
	Close float64 `json:"close"`
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	query.Set("fmt", "json")
	query.Set("api_token", c.apiToken)

	addr := fmt.Sprintf("%s/%s?%s", c.baseURL, path, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("quote API status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func (c *Client) Quote(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, "real-time/"+url.PathEscape(symbol), url.Values{})
	if err != nil {
		return 0, err
	}

	var payload quotePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, fmt.Errorf("quote for %s: %w", symbol, err)
	}
	if payload.Close <= 0 {
		return 0, fmt.Errorf("no tradable quote for %s", symbol)
	}
	return payload.Close, nil
}

// BatchQuotes fetches several symbols in one call. The API takes the first
// symbol in the path and the rest in the s= parameter; a single symbol comes
// back as an object instead of an array.
func (c *Client) BatchQuotes(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}

	query := url.Values{}
	if len(symbols) > 1 {
		query.Set("s", strings.Join(symbols[1:], ","))
	}
	body, err := c.get(ctx, "real-time/"+url.PathEscape(symbols[0]), query)
	if err != nil {
		return nil, err
	}

	var payloads []quotePayload
	if err := json.Unmarshal(body, &payloads); err != nil {
		var single quotePayload
		if err := json.Unmarshal(body, &single); err != nil {
			return nil, fmt.Errorf("batch quote: %w", err)
		}
		payloads = []quotePayload{single}
	}

	prices := make(map[string]float64, len(payloads))
	for _, p := range payloads {
		if p.Close > 0 {
			prices[strings.ToUpper(p.Code)] = p.Close
		}
	}
	return prices, nil
}

func (c *Client) Search(ctx context.Context, queryText string, limit int) ([]domain.SymbolMatch, error) {
	body, err := c.get(ctx, "search/"+url.PathEscape(queryText), url.Values{})
	if err != nil {
		return nil, err
	}

	var payload []struct {
		Code     string `json:"Code"`
		Exchange string `json:"Exchange"`
		Name     string `json:"Name"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("symbol search: %w", err)
	}

	matches := make([]domain.SymbolMatch, 0, limit)
	for _, p := range payload {
		if len(matches) >= limit {
			break
		}
		matches = append(matches, domain.SymbolMatch{
			Symbol:         p.Code,
			ResolvedSymbol: p.Code + "." + p.Exchange,
			Name:           p.Name,
			Exchange:       p.Exchange,
		})
	}
	return matches, nil
}
