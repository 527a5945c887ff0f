package sec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"

	"github.com/jwaldner/strikemap/internal/logger"
)

var (
	ErrNotFound = errors.New("company not found")
	ErrUpstream = errors.New("sec request failed")
)

// MaxFilings caps the filings returned per company, newest first.
const MaxFilings = 10

// directoryTTL is how long the ticker directory is reused before a reload.
const directoryTTL = 12 * time.Hour

// Company is one entry of the EDGAR ticker directory.
type Company struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

type Filing struct {
	Form            string `json:"form"`
	FilingDate      string `json:"filingDate"`
	AccessionNumber string `json:"accessionNumber"`
	PrimaryDocument string `json:"primaryDocument,omitempty"`
}

// CompanyData is a directory entry together with its recent filings.
type CompanyData struct {
	Company Company  `json:"company"`
	Filings []Filing `json:"filings"`
}

type Client struct {
	httpClient     *http.Client
	tickersURL     string
	submissionsURL string
	userAgent      string

	loads    singleflight.Group
	mu       sync.RWMutex
	byTicker map[string]Company
	loadedAt time.Time
}

func NewClient(tickersURL, submissionsURL, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		tickersURL:     tickersURL,
		submissionsURL: strings.TrimRight(submissionsURL, "/"),
		userAgent:      userAgent,
	}
}

// Company returns the directory entry for ticker and its recent filings.
func (c *Client) Company(ctx context.Context, ticker string) (*CompanyData, error) {
	company, err := c.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}

	filings, err := c.filings(ctx, company)
	if err != nil {
		return nil, err
	}
	return &CompanyData{Company: company, Filings: filings}, nil
}

// Filings returns up to MaxFilings recent filings for ticker.
func (c *Client) Filings(ctx context.Context, ticker string) ([]Filing, error) {
	company, err := c.lookup(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return c.filings(ctx, company)
}

func (c *Client) lookup(ctx context.Context, ticker string) (Company, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return Company{}, fmt.Errorf("%w: ticker is required", ErrNotFound)
	}

	directory, err := c.directory(ctx)
	if err != nil {
		return Company{}, err
	}

	company, ok := directory[ticker]
	if !ok {
		return Company{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return company, nil
}

// directory returns the cached ticker map, reloading it once it is older
// than directoryTTL. Concurrent reloads share one request.
func (c *Client) directory(ctx context.Context) (map[string]Company, error) {
	c.mu.RLock()
	directory, loadedAt := c.byTicker, c.loadedAt
	c.mu.RUnlock()
	if directory != nil && time.Since(loadedAt) < directoryTTL {
		return directory, nil
	}

	v, err, _ := c.loads.Do("directory", func() (interface{}, error) {
		c.mu.RLock()
		fresh := c.byTicker != nil && time.Since(c.loadedAt) < directoryTTL
		cached := c.byTicker
		c.mu.RUnlock()
		if fresh {
			return cached, nil
		}

		var raw map[string]Company
		if err := c.getJSON(ctx, c.tickersURL, &raw); err != nil {
			return nil, err
		}

		byTicker := make(map[string]Company, len(raw))
		for _, company := range raw {
			byTicker[strings.ToUpper(company.Ticker)] = company
		}

		c.mu.Lock()
		c.byTicker, c.loadedAt = byTicker, time.Now()
		c.mu.Unlock()

		logger.Info.Printf("loaded SEC ticker directory: %d companies", len(byTicker))
		return byTicker, nil
	})
	if err != nil {
		if directory != nil {
			logger.Warn.Printf("SEC ticker directory reload failed, serving cached copy: %v", err)
			return directory, nil
		}
		return nil, err
	}
	return v.(map[string]Company), nil
}

func (c *Client) filings(ctx context.Context, company Company) ([]Filing, error) {
	var body struct {
		Filings struct {
			Recent struct {
				Form            []string `json:"form"`
				FilingDate      []string `json:"filingDate"`
				AccessionNumber []string `json:"accessionNumber"`
				PrimaryDocument []string `json:"primaryDocument"`
			} `json:"recent"`
		} `json:"filings"`
	}

	endpoint := fmt.Sprintf("%s/CIK%010d.json", c.submissionsURL, company.CIK)
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}

	recent := body.Filings.Recent
	n := len(recent.Form)
	if n > MaxFilings {
		n = MaxFilings
	}

	filings := make([]Filing, 0, n)
	for i := 0; i < n; i++ {
		filings = append(filings, Filing{
			Form:            recent.Form[i],
			FilingDate:      at(recent.FilingDate, i),
			AccessionNumber: at(recent.AccessionNumber, i),
			PrimaryDocument: at(recent.PrimaryDocument, i),
		})
	}

	logger.Debug.Printf("SEC filings %s (CIK %d): %d", company.Ticker, company.CIK, len(filings))
	return filings, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d", ErrUpstream, endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, endpoint, err)
	}
	return nil
}

// at tolerates the parallel arrays in a submissions document being ragged.
func at(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
