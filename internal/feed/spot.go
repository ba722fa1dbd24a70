package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// SpotClient fetches the current spot price of the traded coin from a
// Binance-compatible ticker endpoint. The delta handed to the engine is the
// spot price relative to the window's reference price.
type SpotClient struct {
	baseURL    string
	symbol     string
	httpClient *http.Client
}

// NewSpotClient creates a spot price client for the given coin, e.g. "BTC"
// maps to the BTCUSDT ticker.
func NewSpotClient(baseURL, coin string) *SpotClient {
	return &SpotClient{
		baseURL: baseURL,
		symbol:  strings.ToUpper(coin) + "USDT",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Price returns the latest spot price for the configured symbol.
func (s *SpotClient) Price(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/api/v3/ticker/price?symbol=%s", s.baseURL, s.symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("feed: create spot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("feed: spot request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, fmt.Errorf("feed: read spot response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("feed: spot ticker returned %d: %s", resp.StatusCode, string(body))
	}

	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}
	if err := json.Unmarshal(body, &ticker); err != nil {
		return 0, fmt.Errorf("feed: decode spot ticker: %w", err)
	}

	price, err := strconv.ParseFloat(ticker.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("feed: parse spot price %q: %w", ticker.Price, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("feed: non-positive spot price %v", price)
	}
	return price, nil
}
