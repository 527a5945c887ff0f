package services

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/pricing"
)

func TestParsePricingFormSources(t *testing.T) {
	want := pricing.Request{SpotPrice: 100, StrikePrice: 95, TimeToExpiry: 0.5, RiskFreeRate: 0.05, Volatility: 0.2}
	values := url.Values{
		"stock_price":    {"100"},
		"strike_price":   {"95"},
		"time_to_expiry": {"0.5"},
		"risk_free_rate": {"0.05"},
		"volatility":     {"0.2"},
		"ignored":        {"x"},
	}

	form := httptest.NewRequest(http.MethodPost, "/calculate", strings.NewReader(values.Encode()))
	form.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	query := httptest.NewRequest(http.MethodGet, "/api/quote?"+values.Encode(), nil)

	body := `{"stock_price":100,"strike_price":95,"time_to_expiry":0.5,"risk_free_rate":0.05,"volatility":0.2}`
	jsonReq := httptest.NewRequest(http.MethodPost, "/api/heatmap", strings.NewReader(body))
	jsonReq.Header.Set("Content-Type", "application/json; charset=utf-8")

	svc := NewRequestService()
	for name, r := range map[string]*http.Request{"form": form, "query": query, "json": jsonReq} {
		t.Run(name, func(t *testing.T) {
			_, req, err := svc.ParsePricingForm(r)
			require.NoError(t, err)
			assert.Equal(t, want, req)
		})
	}
}

func TestParsePricingFormInvalid(t *testing.T) {
	svc := NewRequestService()

	tests := []struct {
		name  string
		query string
	}{
		{"missing fields", "stock_price=100"},
		{"not a number", "stock_price=abc&strike_price=100&time_to_expiry=1&volatility=0.2"},
		{"negative volatility", "stock_price=100&strike_price=100&time_to_expiry=1&volatility=-0.1"},
		{"nan stock price", "stock_price=NaN&strike_price=100&time_to_expiry=1&volatility=0.2"},
		{"inf stock price", "stock_price=Inf&strike_price=100&time_to_expiry=1&volatility=0.2"},
		{"plus inf stock price", "stock_price=%2BInf&strike_price=100&time_to_expiry=1&volatility=0.2"},
		{"nan volatility", "stock_price=100&strike_price=100&time_to_expiry=1&volatility=NaN"},
		{"inf risk free rate", "stock_price=100&strike_price=100&time_to_expiry=1&risk_free_rate=-Inf&volatility=0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/quote?"+tt.query, nil)
			_, _, err := svc.ParsePricingForm(r)
			assert.ErrorIs(t, err, pricing.ErrInvalidRequest)
		})
	}
}

func TestParseSeries(t *testing.T) {
	svc := NewRequestService()

	r := httptest.NewRequest(http.MethodPost, "/api/heatmap/series", strings.NewReader(`{"series":"put"}`))
	r.Header.Set("Content-Type", "application/json")
	series, err := svc.ParseSeries(r)
	require.NoError(t, err)
	assert.Equal(t, heatmap.SeriesPut, series)

	r = httptest.NewRequest(http.MethodPost, "/api/heatmap/series?series=iron-condor", nil)
	_, err = svc.ParseSeries(r)
	assert.Error(t, err)
}
