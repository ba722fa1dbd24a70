package signal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// HTTPSource calls an external prediction service over HTTP. The service
// receives the market tick plus the rendered learning context and responds
// with a Prediction document; how it arrives at the call is its business.
type HTTPSource struct {
	endpoint   string
	apiKey     string
	provider   string
	httpClient *http.Client
}

// HTTPSourceConfig configures an HTTPSource.
type HTTPSourceConfig struct {
	Endpoint string
	ApiKey   string
	Provider string
	Timeout  time.Duration
}

// NewHTTPSource creates a prediction client for the given endpoint.
func NewHTTPSource(cfg HTTPSourceConfig) *HTTPSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPSource{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.ApiKey,
		provider: cfg.Provider,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// predictRequest is the wire format sent to the prediction service.
type predictRequest struct {
	Tick    domain.MarketTick `json:"tick"`
	Context string            `json:"context,omitempty"`
}

// Predict implements domain.SignalSource.
func (s *HTTPSource) Predict(ctx context.Context, tick domain.MarketTick, learningContext string) (domain.Prediction, error) {
	if s.endpoint == "" {
		return domain.Prediction{}, fmt.Errorf("signal: predict %s: no endpoint configured: %w", tick.WindowID, domain.ErrNoPrediction)
	}

	body, err := json.Marshal(predictRequest{Tick: tick, Context: learningContext})
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("signal: marshal predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("signal: build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("signal: predict %s: %w", tick.WindowID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("signal: read predict response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Prediction{}, fmt.Errorf("signal: predict %s: status %d: %s", tick.WindowID, resp.StatusCode, truncate(data, 200))
	}

	var p domain.Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.Prediction{}, fmt.Errorf("signal: decode prediction: %w", err)
	}
	if p.Provenance == "" {
		p.Provenance = s.provider
	}
	if p.Direction == "" {
		p.Direction = domain.DirectionUnknown
	}
	return p, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// Compile-time interface check.
var _ domain.SignalSource = (*HTTPSource)(nil)
