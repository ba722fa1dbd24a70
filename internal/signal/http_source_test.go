package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

func TestHTTPSource_NoEndpointConfigured(t *testing.T) {
	s := NewHTTPSource(HTTPSourceConfig{Provider: "composite"})

	_, err := s.Predict(context.Background(), domain.MarketTick{WindowID: "w1"}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoPrediction)
}

func TestHTTPSource_DecodesPredictionAndFillsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req predictRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "w1", req.Tick.WindowID)
		assert.Equal(t, "lessons", req.Context)

		json.NewEncoder(w).Encode(domain.Prediction{
			Direction:  domain.DirectionLong,
			Confidence: 81,
		})
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPSourceConfig{Endpoint: srv.URL, Provider: "composite"})

	p, err := s.Predict(context.Background(), domain.MarketTick{WindowID: "w1"}, "lessons")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionLong, p.Direction)
	assert.InDelta(t, 81, p.Confidence, 1e-9)
	assert.Equal(t, "composite", p.Provenance, "missing provenance falls back to the configured provider")
}

func TestHTTPSource_NonOKStatusIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := NewHTTPSource(HTTPSourceConfig{Endpoint: srv.URL})

	_, err := s.Predict(context.Background(), domain.MarketTick{WindowID: "w1"}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
