package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, used here for
// recurring-window market discovery.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CurrentWindow returns the live market of the given recurring series whose
// window ends soonest after now. The series slug identifies the recurring
// up-or-down market family, e.g. "btc-up-or-down-15m".
func (g *GammaClient) CurrentWindow(ctx context.Context, series string, now time.Time) (WindowMarket, error) {
	params := url.Values{}
	params.Set("series_slug", series)
	params.Set("active", "true")
	params.Set("closed", "false")
	params.Set("limit", "20")

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: list series markets: %w", err)
	}

	var apiMarkets []apiMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	windows := make([]WindowMarket, 0, len(apiMarkets))
	for i := range apiMarkets {
		m := &apiMarkets[i]
		if m.Closed || !bool(m.Active) {
			continue
		}
		w, err := m.toWindowMarket()
		if err != nil {
			continue
		}
		if !w.EndAt.After(now) {
			continue
		}
		windows = append(windows, w)
	}
	if len(windows) == 0 {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: %w: no open window for series %s", domain.ErrNotFound, series)
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].EndAt.Before(windows[j].EndAt) })
	return windows[0], nil
}

// GetWindowBySlug returns a single window market looked up by its slug.
func (g *GammaClient) GetWindowBySlug(ctx context.Context, slug string) (WindowMarket, error) {
	params := url.Values{}
	params.Set("slug", slug)

	body, err := g.doGet(ctx, "/markets?"+params.Encode())
	if err != nil {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: get market by slug %s: %w", slug, err)
	}

	var apiMarkets []apiMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}
	if len(apiMarkets) == 0 {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: %w: slug=%s", domain.ErrNotFound, slug)
	}

	w, err := apiMarkets[0].toWindowMarket()
	if err != nil {
		return WindowMarket{}, fmt.Errorf("polymarket/gamma: market %s: %w", slug, err)
	}
	return w, nil
}

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}
