package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/strikemap/internal/pricing"
)

// pricingStub answers like the pricing service with call = spot*vol and
// put = half of that.
func pricingStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		spot, _ := strconv.ParseFloat(q.Get("stock_price"), 64)
		vol, _ := strconv.ParseFloat(q.Get("volatility"), 64)

		switch r.URL.Path {
		case "/api/blackscholes/callprice":
			json.NewEncoder(w).Encode(map[string]float64{"call_price": spot * vol})
		case "/api/blackscholes/putprice":
			json.NewEncoder(w).Encode(map[string]float64{"put_price": spot * vol / 2})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOptions(url string) *options {
	return &options{
		pricingURL:  url,
		timeout:     time.Second,
		concurrency: 4,
		warnRatio:   0.5,
		series:      "both",
		inputs: pricing.Request{
			SpotPrice:    1000,
			StrikePrice:  1000,
			TimeToExpiry: 1,
			RiskFreeRate: 0.05,
			Volatility:   2,
		},
	}
}

func TestRunQuote(t *testing.T) {
	srv := pricingStub(t)

	var out bytes.Buffer
	require.NoError(t, runQuote(context.Background(), &out, testOptions(srv.URL)))

	assert.Contains(t, out.String(), "$2,000.00")
	assert.Contains(t, out.String(), "$1,000.00")
}

func TestRunQuoteFailure(t *testing.T) {
	srv := pricingStub(t)
	opts := testOptions(srv.URL + "/missing")

	err := runQuote(context.Background(), &bytes.Buffer{}, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to calculate option prices")
}

func TestRunGrid(t *testing.T) {
	srv := pricingStub(t)
	opts := testOptions(srv.URL)
	opts.series = "put"

	var out bytes.Buffer
	require.NoError(t, runGrid(context.Background(), &out, opts))

	assert.Contains(t, out.String(), "put options")
	assert.NotContains(t, out.String(), "call options")
	assert.Contains(t, out.String(), "128 requests, 0 failed")
}

func TestRunGridRejectsUnknownSeries(t *testing.T) {
	opts := testOptions("http://127.0.0.1:1")
	opts.series = "straddle"

	assert.Error(t, runGrid(context.Background(), &bytes.Buffer{}, opts))
}

func TestRejectsNonFiniteInputs(t *testing.T) {
	for _, value := range []string{"NaN", "Inf", "-Inf"} {
		cmd := newRootCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"grid", "--pricing-url", "http://127.0.0.1:1", "--stock-price=" + value})

		err := cmd.Execute()
		assert.ErrorIs(t, err, pricing.ErrInvalidRequest, value)
	}
}

func TestRootCommand(t *testing.T) {
	srv := pricingStub(t)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"quote", "--pricing-url", srv.URL, "--stock-price", "50", "--volatility", "0.5"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "$25.00")
}
