// Package polymarket holds the HTTP and WebSocket clients for the Polymarket
// Gamma and CLOB APIs: recurring-window market discovery, live best bid/ask
// quotes, and authenticated order submission for the real variant.
package polymarket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false") so Gamma API
// responses work whether "active" is sent as bool or string.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// apiMarket is the subset of the Gamma market response the assistant needs.
// Outcomes, OutcomePrices and ClobTokenIDs arrive JSON-encoded inside strings.
type apiMarket struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug"`
	Active        flexBool `json:"active"`
	Closed        bool     `json:"closed"`
	Outcomes      string   `json:"outcomes"`
	OutcomePrices string   `json:"outcomePrices"`
	ClobTokenIDs  string   `json:"clobTokenIds"`
	EndDate       string   `json:"endDate"`
	EndDateISO    string   `json:"end_date_iso"`
}

// WindowMarket is one recurring up-or-down window market, reduced to the
// fields the tick loop consumes.
type WindowMarket struct {
	Slug      string
	Question  string
	UpToken   string
	DownToken string
	UpPrice   float64
	DownPrice float64
	EndAt     time.Time
}

// toWindowMarket resolves the UP and DOWN outcome indexes and flattens the
// string-encoded arrays. Markets whose outcomes are not an up/down pair are
// rejected.
func (m *apiMarket) toWindowMarket() (WindowMarket, error) {
	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err != nil {
		return WindowMarket{}, fmt.Errorf("decode outcomes: %w", err)
	}
	upIdx, downIdx := -1, -1
	for i, o := range outcomes {
		switch strings.ToLower(strings.TrimSpace(o)) {
		case "up", "yes":
			upIdx = i
		case "down", "no":
			downIdx = i
		}
	}
	if upIdx < 0 || downIdx < 0 {
		return WindowMarket{}, fmt.Errorf("market %s: outcomes %q are not an up/down pair", m.Slug, m.Outcomes)
	}

	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err != nil {
		return WindowMarket{}, fmt.Errorf("decode outcome prices: %w", err)
	}
	var tokens []string
	if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokens); err != nil {
		return WindowMarket{}, fmt.Errorf("decode token ids: %w", err)
	}
	if len(prices) <= upIdx || len(prices) <= downIdx || len(tokens) <= upIdx || len(tokens) <= downIdx {
		return WindowMarket{}, fmt.Errorf("market %s: outcome arrays are inconsistent", m.Slug)
	}

	w := WindowMarket{
		Slug:      m.Slug,
		Question:  m.Question,
		UpToken:   tokens[upIdx],
		DownToken: tokens[downIdx],
	}
	w.UpPrice, _ = strconv.ParseFloat(prices[upIdx], 64)
	w.DownPrice, _ = strconv.ParseFloat(prices[downIdx], 64)

	end := m.EndDate
	if end == "" {
		end = m.EndDateISO
	}
	t, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return WindowMarket{}, fmt.Errorf("market %s: parse end date %q: %w", m.Slug, end, err)
	}
	w.EndAt = t
	return w, nil
}

// Quote is the live best bid/ask for one outcome token, as maintained from
// the CLOB WebSocket book channel.
type Quote struct {
	AssetID string
	BestBid float64
	BestAsk float64
	Mid     float64
}

// wsCommand is the JSON payload sent to the WebSocket to subscribe or
// unsubscribe.
type wsCommand struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel,omitempty"`
	Assets  []string `json:"assets_ids,omitempty"`
}

// wsBookMessage is a full orderbook snapshot delivered over the WebSocket.
type wsBookMessage struct {
	AssetID string         `json:"asset_id"`
	Bids    []wsPriceLevel `json:"bids"`
	Asks    []wsPriceLevel `json:"asks"`
}

type wsPriceLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// toQuote reduces the book snapshot to best bid/ask and mid.
func (b *wsBookMessage) toQuote() Quote {
	q := Quote{AssetID: b.AssetID}
	for _, lvl := range b.Bids {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		if p > q.BestBid {
			q.BestBid = p
		}
	}
	for _, lvl := range b.Asks {
		p, _ := strconv.ParseFloat(lvl.Price, 64)
		if p > 0 && (q.BestAsk == 0 || p < q.BestAsk) {
			q.BestAsk = p
		}
	}
	if q.BestBid > 0 && q.BestAsk > 0 {
		q.Mid = (q.BestBid + q.BestAsk) / 2
	}
	return q
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
