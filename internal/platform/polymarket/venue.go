package polymarket

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// Credentials holds the API credentials for HMAC-authenticated requests
// against the Polymarket CLOB API.
type Credentials struct {
	Key        string // API key
	Secret     string // API secret, base64-encoded
	Passphrase string // API passphrase
}

// headers returns the authentication headers for a CLOB request. The
// signature is HMAC-SHA256(base64-decoded secret, timestamp+method+path+body)
// encoded as base64.
func (c Credentials) headers(method, path, body string, now time.Time) map[string]string {
	ts := strconv.FormatInt(now.Unix(), 10)

	secretBytes, err := base64.StdEncoding.DecodeString(c.Secret)
	if err != nil {
		// If decoding fails, fall back to raw bytes so the caller gets an
		// obviously-wrong signature rather than a panic.
		secretBytes = []byte(c.Secret)
	}

	mac := hmac.New(sha256.New, secretBytes)
	mac.Write([]byte(ts + method + path + body))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return map[string]string{
		"POLY_API_KEY":    c.Key,
		"POLY_TIMESTAMP":  ts,
		"POLY_PASSPHRASE": c.Passphrase,
		"POLY_SIGNATURE":  sig,
	}
}

// TokenResolver maps a trade side onto the outcome token of the current
// window. The market feed owns the mapping; the venue only submits.
type TokenResolver func(side domain.Side) (string, error)

// Venue submits orders to the Polymarket CLOB API. It implements
// domain.OrderVenue for the real variant.
type Venue struct {
	baseURL    string
	creds      Credentials
	resolve    TokenResolver
	httpClient *http.Client
	now        func() time.Time
}

// NewVenue creates a CLOB order venue.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewVenue(baseURL string, creds Credentials, resolve TokenResolver) *Venue {
	return &Venue{
		baseURL: baseURL,
		creds:   creds,
		resolve: resolve,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		now: time.Now,
	}
}

// orderResult is the CLOB response to an order submission.
type orderResult struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	OrderID  string `json:"orderID,omitempty"`
	Status   string `json:"status,omitempty"`
}

// SubmitBuy posts a fill-and-kill buy of size shares of the side's outcome
// token at the given limit price. It blocks until the venue acknowledges;
// a response without success is an ErrOrderRejected.
func (v *Venue) SubmitBuy(ctx context.Context, side domain.Side, price, size float64) (domain.OrderAck, error) {
	token, err := v.resolve(side)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/venue: resolve token: %w", err)
	}

	payload := map[string]any{
		"tokenID":   token,
		"side":      "BUY",
		"price":     strconv.FormatFloat(price, 'f', -1, 64),
		"size":      strconv.FormatFloat(size, 'f', -1, 64),
		"orderType": "FAK",
	}

	body, err := v.doRequest(ctx, http.MethodPost, "/order", payload)
	if err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/venue: post order: %w", err)
	}

	var result orderResult
	if err := json.Unmarshal(body, &result); err != nil {
		return domain.OrderAck{}, fmt.Errorf("polymarket/venue: decode order result: %w", err)
	}
	if !result.Success || result.OrderID == "" {
		return domain.OrderAck{}, fmt.Errorf("polymarket/venue: %w: %s", domain.ErrOrderRejected, result.ErrorMsg)
	}

	return domain.OrderAck{OrderID: result.OrderID, Filled: size}, nil
}

// CancelAll cancels every open order for the authenticated account.
// Best-effort: used by the kill switch.
func (v *Venue) CancelAll(ctx context.Context) error {
	if _, err := v.doRequest(ctx, http.MethodDelete, "/cancel-all", nil); err != nil {
		return fmt.Errorf("polymarket/venue: cancel all: %w", err)
	}
	return nil
}

// doRequest sends an authenticated request to the CLOB API.
func (v *Venue) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var bodyStr string
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		bodyStr = string(raw)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, val := range v.creds.headers(method, path, bodyStr, v.now()) {
		req.Header.Set(k, val)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	return respBody, nil
}

var _ domain.OrderVenue = (*Venue)(nil)
