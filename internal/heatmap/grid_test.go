package heatmap

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwaldner/strikemap/internal/pricing"
)

var baseInputs = Inputs{
	SpotPrice:    100,
	StrikePrice:  100,
	TimeToExpiry: 1,
	RiskFreeRate: 0.05,
	Volatility:   0.2,
}

type stubPricer func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error)

func (f stubPricer) Price(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
	return f(ctx, req, kind)
}

// spotTimesVol prices calls at spot*vol and puts at twice that, with random
// latency so completion order differs from issue order.
func spotTimesVol(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
	time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond)
	if kind == pricing.Put {
		return 2 * req.SpotPrice * req.Volatility, nil
	}
	return req.SpotPrice * req.Volatility, nil
}

func TestBuildDeterministic(t *testing.T) {
	for _, concurrency := range []int{1, 4, 64} {
		grid := NewBuilder(stubPricer(spotTimesVol), concurrency, 0.5).Build(context.Background(), baseInputs)

		require.NotNil(t, grid)
		assert.Equal(t, 2*Size*Size, grid.Requests)
		assert.Zero(t, grid.Failures)
		assert.Empty(t, grid.Warning)
		assert.NotEmpty(t, grid.BuildID)

		for row := 0; row < Size; row++ {
			for col := 0; col < Size; col++ {
				want := round(grid.Spots[col]*grid.Volatilities[row], 2)
				assert.Equal(t, want, grid.Call[row][col].Price, "call concurrency=%d row=%d col=%d", concurrency, row, col)
				assert.Equal(t, round(2*grid.Spots[col]*grid.Volatilities[row], 2), grid.Put[row][col].Price)
				assert.False(t, grid.Call[row][col].Failed)
			}
		}
	}
}

func TestBuildNeverMixesAxes(t *testing.T) {
	grid := NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		assert.Equal(t, baseInputs.StrikePrice, req.StrikePrice)
		assert.Equal(t, baseInputs.TimeToExpiry, req.TimeToExpiry)
		assert.Equal(t, baseInputs.RiskFreeRate, req.RiskFreeRate)
		return spotTimesVol(ctx, req, kind)
	}), 8, 0.5).Build(context.Background(), baseInputs)

	// column 0 is spot 70 in every row, row 0 is vol 0.10 in every column
	assert.Equal(t, 70.0, grid.Spots[0])
	assert.Equal(t, 0.10, grid.Volatilities[0])
	for row := 0; row < Size; row++ {
		assert.Equal(t, round(70*grid.Volatilities[row], 2), grid.Call[row][0].Price)
	}
	for col := 0; col < Size; col++ {
		assert.Equal(t, round(grid.Spots[col]*0.10, 2), grid.Call[0][col].Price)
	}
}

func TestBuildIgnoresBaseVolatility(t *testing.T) {
	high := baseInputs
	high.Volatility = 0.9

	grid := NewBuilder(stubPricer(spotTimesVol), 8, 0.5).Build(context.Background(), high)
	assert.Equal(t, VolatilityAxis(), grid.Volatilities)
}

func TestBuildSingleCellFailure(t *testing.T) {
	failSpot, failVol := SpotAxis(100)[3], VolatilityAxis()[5]

	grid := NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		if req.SpotPrice == failSpot && req.Volatility == failVol {
			return 0, errors.New("connection refused")
		}
		return spotTimesVol(ctx, req, kind)
	}), 8, 0.5).Build(context.Background(), baseInputs)

	assert.Equal(t, 2, grid.Failures)
	assert.Empty(t, grid.Warning)

	for row := 0; row < Size; row++ {
		for col := 0; col < Size; col++ {
			cell := grid.Call[row][col]
			if row == 5 && col == 3 {
				assert.Equal(t, Cell{Failed: true}, cell)
				assert.Equal(t, Cell{Failed: true}, grid.Put[row][col])
				continue
			}
			assert.False(t, cell.Failed)
			assert.Equal(t, round(grid.Spots[col]*grid.Volatilities[row], 2), cell.Price)
		}
	}
}

func TestBuildAllFailedWarns(t *testing.T) {
	grid := NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		return 0, errors.New("service down")
	}), 8, 0.5).Build(context.Background(), baseInputs)

	assert.Equal(t, 128, grid.Failures)
	assert.Contains(t, grid.Warning, "128 of 128")
	assert.Zero(t, grid.Call.Max())
	assert.Zero(t, grid.Put.Max())
}

func TestBuildSequentialOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string

	NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		mu.Lock()
		order = append(order, string(kind))
		mu.Unlock()
		return 1, nil
	}), 1, 0.5).Build(context.Background(), baseInputs)

	require.Len(t, order, 128)
	for i, kind := range order {
		if i%2 == 0 {
			assert.Equal(t, "call", kind)
		} else {
			assert.Equal(t, "put", kind)
		}
	}
}

func TestBuildBoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64

	NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		return 1, nil
	}), 3, 0.5).Build(context.Background(), baseInputs)

	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(0))
}

func TestBuildCancelledContext(t *testing.T) {
	var calls atomic.Int64
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grid := NewBuilder(stubPricer(func(ctx context.Context, req pricing.Request, kind pricing.OptionType) (float64, error) {
		calls.Add(1)
		return 1, nil
	}), 4, 0.5).Build(ctx, baseInputs)

	assert.Zero(t, calls.Load())
	assert.Equal(t, 128, grid.Failures)
}

func TestMatrixMax(t *testing.T) {
	var m Matrix
	assert.Zero(t, m.Max())
	m[2][3] = Cell{Price: 4.5}
	m[7][0] = Cell{Price: 1.25}
	assert.Equal(t, 4.5, m.Max())
}
