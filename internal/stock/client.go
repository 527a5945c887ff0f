package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jwaldner/strikemap/internal/logger"
)

var ErrLookupFailed = errors.New("stock lookup failed")

// Figure is a numeric field that the lookup service reports as "N/A" when
// unknown.
type Figure struct {
	Value float64
	Known bool
	Raw   string
}

func (f *Figure) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = Figure{Value: n, Known: true}
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*f = Figure{Value: n, Known: true}
		return nil
	}
	*f = Figure{Raw: s}
	return nil
}

func (f Figure) MarshalJSON() ([]byte, error) {
	if f.Known {
		return json.Marshal(f.Value)
	}
	return json.Marshal(f.String())
}

func (f Figure) String() string {
	if f.Known {
		return strconv.FormatFloat(f.Value, 'f', -1, 64)
	}
	if f.Raw != "" {
		return f.Raw
	}
	return "N/A"
}

// Info is the company and market snapshot for one ticker.
type Info struct {
	Ticker           string `json:"ticker"`
	Name             string `json:"name"`
	Sector           string `json:"sector"`
	Industry         string `json:"industry"`
	CurrentPrice     Figure `json:"currentPrice"`
	MarketCap        Figure `json:"marketCap"`
	PERatio          Figure `json:"peRatio"`
	DividendYield    Figure `json:"dividendYield"`
	FiftyTwoWeekHigh Figure `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow  Figure `json:"fiftyTwoWeekLow"`
	Description      string `json:"description"`
}

// DisplayMarketCap formats the market cap; preformatted strings pass through.
func (i Info) DisplayMarketCap() string {
	if i.MarketCap.Known {
		return FormatMarketCap(i.MarketCap.Value)
	}
	return i.MarketCap.String()
}

type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Lookup fetches info for ticker. The service reports failures as
// {"error": "..."}, which become ErrLookupFailed.
func (c *Client) Lookup(ctx context.Context, ticker string) (*Info, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrLookupFailed)
	}

	endpoint := fmt.Sprintf("%s/api/stock/%s", c.baseURL, url.PathEscape(ticker))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	var body struct {
		Info
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode stock response for %s: %w", ticker, err)
	}

	if body.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrLookupFailed, body.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}

	logger.Debug.Printf("stock lookup %s: %s", ticker, body.Info.Name)
	return &body.Info, nil
}

// FormatMarketCap renders large values with T/B/M suffixes.
func FormatMarketCap(marketCap float64) string {
	switch {
	case marketCap >= 1e12:
		return fmt.Sprintf("$%.2fT", marketCap/1e12)
	case marketCap >= 1e9:
		return fmt.Sprintf("$%.2fB", marketCap/1e9)
	case marketCap >= 1e6:
		return fmt.Sprintf("$%.2fM", marketCap/1e6)
	default:
		return "$" + message.NewPrinter(language.English).Sprintf("%.2f", marketCap)
	}
}
