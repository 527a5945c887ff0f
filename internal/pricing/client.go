package pricing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/jwaldner/strikemap/internal/logger"
)

const (
	// DefaultTimeout bounds a single pricing request
	DefaultTimeout = 5 * time.Second

	callPath = "/api/blackscholes/callprice"
	putPath  = "/api/blackscholes/putprice"

	maxErrorBody = 512
)

// Client talks to the external Black-Scholes pricing service.
type Client struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type priceResponse struct {
	CallPrice *float64 `json:"call_price"`
	PutPrice  *float64 `json:"put_price"`
	Error     string   `json:"error"`
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Price issues one GET for the given option type and returns the decoded price.
func (c *Client) Price(ctx context.Context, req Request, kind OptionType) (float64, error) {
	endpoint, field, err := c.endpoint(req, kind)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Accept", "application/json")

	logger.Verbose.Printf("PRICING API CALL: %s", endpoint)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return 0, fmt.Errorf("%s price request failed: %w", kind, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%s price read failed: %w", kind, err)
	}

	var decoded priceResponse
	jsonErr := json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := decoded.Error
		if jsonErr != nil || msg == "" {
			msg = truncate(string(body), maxErrorBody)
		}
		return 0, fmt.Errorf("%w: %d: %s", ErrUnexpectedResponse, resp.StatusCode, msg)
	}
	if jsonErr != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedResponse, jsonErr)
	}

	value := decoded.CallPrice
	if kind == Put {
		value = decoded.PutPrice
	}
	if value == nil {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedResponse, field)
	}
	if math.IsNaN(*value) || math.IsInf(*value, 0) || *value < 0 {
		return 0, fmt.Errorf("%w: %s=%v", ErrMalformedResponse, field, *value)
	}

	return *value, nil
}

func (c *Client) endpoint(req Request, kind OptionType) (string, string, error) {
	var path, field string
	switch kind {
	case Call:
		path, field = callPath, "call_price"
	case Put:
		path, field = putPath, "put_price"
	default:
		return "", "", fmt.Errorf("%w: unknown option type %q", ErrInvalidRequest, kind)
	}

	return c.BaseURL + path + "?" + Query(req).Encode(), field, nil
}

// Query encodes the request with the pricing service's parameter names.
func Query(req Request) url.Values {
	q := url.Values{}
	q.Set("stock_price", formatFloat(req.SpotPrice))
	q.Set("strike_price", formatFloat(req.StrikePrice))
	q.Set("time_to_expiry", formatFloat(req.TimeToExpiry))
	q.Set("risk_free_rate", formatFloat(req.RiskFreeRate))
	q.Set("volatility", formatFloat(req.Volatility))
	return q
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
