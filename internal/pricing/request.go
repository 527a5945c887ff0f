package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidRequest     = errors.New("invalid pricing request")
	ErrMalformedResponse  = errors.New("malformed pricing response")
	ErrUnexpectedResponse = errors.New("unexpected pricing response status")
)

// OptionType selects which side of the contract is priced
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// Request holds the five Black-Scholes inputs for one priced instrument.
type Request struct {
	SpotPrice    float64 `json:"stock_price"`
	StrikePrice  float64 `json:"strike_price"`
	TimeToExpiry float64 `json:"time_to_expiry"` // years
	RiskFreeRate float64 `json:"risk_free_rate"`
	Volatility   float64 `json:"volatility"`
}

// Validate checks the ranges the pricing service expects. NaN and the
// infinities are rejected for every field.
func (r Request) Validate() error {
	for _, v := range []float64{r.SpotPrice, r.StrikePrice, r.TimeToExpiry, r.RiskFreeRate, r.Volatility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: inputs must be finite numbers", ErrInvalidRequest)
		}
	}

	switch {
	case r.SpotPrice <= 0:
		return fmt.Errorf("%w: stock price must be positive", ErrInvalidRequest)
	case r.StrikePrice <= 0:
		return fmt.Errorf("%w: strike price must be positive", ErrInvalidRequest)
	case r.TimeToExpiry <= 0:
		return fmt.Errorf("%w: time to expiry must be positive", ErrInvalidRequest)
	case r.Volatility < 0:
		return fmt.Errorf("%w: volatility cannot be negative", ErrInvalidRequest)
	}
	return nil
}

// With returns a copy of r priced at a different spot and volatility.
func (r Request) With(spot, vol float64) Request {
	r.SpotPrice = spot
	r.Volatility = vol
	return r
}

// Pricer prices a single option. Implementations must be safe for concurrent use.
type Pricer interface {
	Price(ctx context.Context, req Request, kind OptionType) (float64, error)
}

// Quote is the headline call/put pair for one set of inputs.
type Quote struct {
	Call float64 `json:"call_price"`
	Put  float64 `json:"put_price"`
}

// FetchQuote prices the call then the put. Either failure fails the quote.
func FetchQuote(ctx context.Context, p Pricer, req Request) (*Quote, error) {
	call, err := p.Price(ctx, req, Call)
	if err != nil {
		return nil, fmt.Errorf("call price: %w", err)
	}

	put, err := p.Price(ctx, req, Put)
	if err != nil {
		return nil, fmt.Errorf("put price: %w", err)
	}

	return &Quote{Call: call, Put: put}, nil
}
