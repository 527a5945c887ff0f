package dto

import (
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/pricing"
	"github.com/jwaldner/strikemap/internal/stock"
)

// CalculateErrorMessage is shown whenever the headline prices cannot be fetched.
const CalculateErrorMessage = "Failed to calculate option prices. Please check your inputs."

// PricingForm carries the calculator fields under their wire names.
type PricingForm struct {
	StockPrice   float64 `schema:"stock_price" json:"stock_price"`
	StrikePrice  float64 `schema:"strike_price" json:"strike_price"`
	TimeToExpiry float64 `schema:"time_to_expiry" json:"time_to_expiry"`
	RiskFreeRate float64 `schema:"risk_free_rate" json:"risk_free_rate"`
	Volatility   float64 `schema:"volatility" json:"volatility"`
}

func (f PricingForm) Request() pricing.Request {
	return pricing.Request{
		SpotPrice:    f.StockPrice,
		StrikePrice:  f.StrikePrice,
		TimeToExpiry: f.TimeToExpiry,
		RiskFreeRate: f.RiskFreeRate,
		Volatility:   f.Volatility,
	}
}

// DefaultForm is what the calculator shows on first load.
func DefaultForm() PricingForm {
	return PricingForm{
		StockPrice:   100,
		StrikePrice:  100,
		TimeToExpiry: 1,
		RiskFreeRate: 0.05,
		Volatility:   0.2,
	}
}

// TemplateData represents data passed to the calculator page
type TemplateData struct {
	Title   string
	Form    PricingForm
	Quote   *pricing.Quote
	Error   string
	HeatMap bool
	Ticker  string
	Stock   *stock.Info
}

// HeatMapData feeds the heat map fragment.
type HeatMapData struct {
	Status heatmap.Status
	Series heatmap.Series
	Table  *heatmap.Table
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type SeriesRequest struct {
	Series string `schema:"series" json:"series"`
}

// HeatMapResponse is the session state plus the render model of the
// selected series once ready.
type HeatMapResponse struct {
	heatmap.State
	Table *heatmap.Table `json:"table,omitempty"`
}

type StockResponse struct {
	*stock.Info
	MarketCapDisplay string `json:"marketCapDisplay"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	Sessions  int    `json:"sessions"`
	Timestamp string `json:"timestamp"`
}
