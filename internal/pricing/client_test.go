package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseRequest = Request{
	SpotPrice:    100,
	StrikePrice:  100,
	TimeToExpiry: 1,
	RiskFreeRate: 0.05,
	Volatility:   0.2,
}

// stubService prices call = spot*vol and put = spot*vol/2.
func stubService(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	handler := func(field string, factor float64) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			for _, key := range []string{"stock_price", "strike_price", "time_to_expiry", "risk_free_rate", "volatility"} {
				if q.Get(key) == "" {
					http.Error(w, `{"error":"missing `+key+`"}`, http.StatusBadRequest)
					return
				}
			}
			spot, _ := strconv.ParseFloat(q.Get("stock_price"), 64)
			vol, _ := strconv.ParseFloat(q.Get("volatility"), 64)
			json.NewEncoder(w).Encode(map[string]float64{field: spot * vol * factor})
		}
	}
	mux.HandleFunc(callPath, handler("call_price", 1))
	mux.HandleFunc(putPath, handler("put_price", 0.5))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPrice(t *testing.T) {
	srv := stubService(t)
	client := NewClient(srv.URL+"/", time.Second)

	call, err := client.Price(context.Background(), baseRequest, Call)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, call, 1e-9)

	put, err := client.Price(context.Background(), baseRequest.With(70, 0.1), Put)
	require.NoError(t, err)
	assert.InDelta(t, 3.5, put, 1e-9)
}

func TestFetchQuote(t *testing.T) {
	srv := stubService(t)
	client := NewClient(srv.URL, time.Second)

	quote, err := FetchQuote(context.Background(), client, baseRequest)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, quote.Call, 1e-9)
	assert.InDelta(t, 10.0, quote.Put, 1e-9)
}

func TestQueryEncoding(t *testing.T) {
	q := Query(Request{SpotPrice: 78, StrikePrice: 100.5, TimeToExpiry: 0.25, RiskFreeRate: 0.05, Volatility: 0.16})

	assert.Equal(t, "78", q.Get("stock_price"))
	assert.Equal(t, "100.5", q.Get("strike_price"))
	assert.Equal(t, "0.25", q.Get("time_to_expiry"))
	assert.Equal(t, "0.05", q.Get("risk_free_rate"))
	assert.Equal(t, "0.16", q.Get("volatility"))
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"boom"}`))
			},
			want: ErrUnexpectedResponse,
		},
		{
			name: "not json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			want: ErrMalformedResponse,
		},
		{
			name: "missing field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"put_price": 1.5}`))
			},
			want: ErrMalformedResponse,
		},
		{
			name: "negative price",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"call_price": -1}`))
			},
			want: ErrMalformedResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewClient(srv.URL, time.Second).Price(context.Background(), baseRequest, Call)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	_, err := NewClient(srv.URL, 50*time.Millisecond).Price(context.Background(), baseRequest, Call)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientUnknownType(t *testing.T) {
	_, err := NewClient("http://unused", time.Second).Price(context.Background(), baseRequest, OptionType("straddle"))
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRequestValidate(t *testing.T) {
	assert.NoError(t, baseRequest.Validate())
	assert.NoError(t, baseRequest.With(100, 0).Validate())

	bad := []Request{
		baseRequest.With(0, 0.2),
		baseRequest.With(100, -0.1),
		{SpotPrice: 100, StrikePrice: 0, TimeToExpiry: 1, Volatility: 0.2},
		{SpotPrice: 100, StrikePrice: 100, TimeToExpiry: 0, Volatility: 0.2},
		baseRequest.With(math.NaN(), 0.2),
		baseRequest.With(math.Inf(1), 0.2),
		baseRequest.With(100, math.NaN()),
		baseRequest.With(100, math.Inf(1)),
		{SpotPrice: 100, StrikePrice: math.NaN(), TimeToExpiry: 1, Volatility: 0.2},
		{SpotPrice: 100, StrikePrice: 100, TimeToExpiry: math.Inf(1), Volatility: 0.2},
		{SpotPrice: 100, StrikePrice: 100, TimeToExpiry: 1, RiskFreeRate: math.NaN(), Volatility: 0.2},
		{SpotPrice: 100, StrikePrice: 100, TimeToExpiry: 1, RiskFreeRate: math.Inf(-1), Volatility: 0.2},
	}
	for _, req := range bad {
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest, "%+v", req)
	}
}
