package heatmap

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/pricing"
)

// Inputs are the five base values a grid is derived from.
type Inputs = pricing.Request

// Cell is one priced grid slot. A failed cell has Price 0.
type Cell struct {
	Price  float64 `json:"price"`
	Failed bool    `json:"failed,omitempty"`
}

// Matrix is indexed [volatility row][spot column].
type Matrix [Size][Size]Cell

// Max returns the largest price in the matrix, 0 for an all-zero matrix.
func (m *Matrix) Max() float64 {
	max := 0.0
	for _, row := range m {
		for _, cell := range row {
			if cell.Price > max {
				max = cell.Price
			}
		}
	}
	return max
}

// Grid is a fully populated pair of call and put matrices.
type Grid struct {
	BuildID      string        `json:"build_id"`
	Inputs       Inputs        `json:"inputs"`
	Spots        Axis          `json:"stock_prices"`
	Volatilities Axis          `json:"volatilities"`
	Call         Matrix        `json:"calls"`
	Put          Matrix        `json:"puts"`
	Requests     int           `json:"requests"`
	Failures     int           `json:"failures"`
	Warning      string        `json:"warning,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Series returns the matrix for the given option type.
func (g *Grid) Series(series Series) *Matrix {
	if series == SeriesPut {
		return &g.Put
	}
	return &g.Call
}

// GridBuilder produces a fresh grid per call and never fails.
type GridBuilder interface {
	Build(ctx context.Context, inputs Inputs) *Grid
}

// Builder fans pricing requests out over the spot x volatility product.
type Builder struct {
	pricer           pricing.Pricer
	maxConcurrency   int
	failureWarnRatio float64
}

// NewBuilder creates a builder. maxConcurrency 1 issues requests strictly in
// row-major order, call then put per cell.
func NewBuilder(pricer pricing.Pricer, maxConcurrency int, failureWarnRatio float64) *Builder {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Builder{
		pricer:           pricer,
		maxConcurrency:   maxConcurrency,
		failureWarnRatio: failureWarnRatio,
	}
}

// Build prices every cell. Failed requests become zeroed, tagged cells.
func (b *Builder) Build(ctx context.Context, inputs Inputs) *Grid {
	start := time.Now()
	grid := &Grid{
		BuildID:      uuid.NewString(),
		Inputs:       inputs,
		Spots:        SpotAxis(inputs.SpotPrice),
		Volatilities: VolatilityAxis(),
		Requests:     2 * Size * Size,
	}

	var failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(b.maxConcurrency)

	for row, vol := range grid.Volatilities {
		for col, spot := range grid.Spots {
			req := inputs.With(spot, vol)
			for _, series := range []Series{SeriesCall, SeriesPut} {
				cell := &grid.Series(series)[row][col]
				kind := series.OptionType()
				g.Go(func() error {
					if !b.fill(ctx, cell, req, kind) {
						failures.Add(1)
					}
					return nil
				})
			}
		}
	}
	g.Wait()

	grid.Failures = int(failures.Load())
	grid.Duration = time.Since(start)
	if grid.Failures > 0 && float64(grid.Failures)/float64(grid.Requests) >= b.failureWarnRatio {
		grid.Warning = fmt.Sprintf("pricing service failed for %d of %d requests; failed cells are shown as 0", grid.Failures, grid.Requests)
		logger.Warn.Printf("heat map build %s: %s", grid.BuildID, grid.Warning)
	}

	logger.Info.Printf("heat map build %s: %d requests, %d failed, took %v", grid.BuildID, grid.Requests, grid.Failures, grid.Duration)
	return grid
}

func (b *Builder) fill(ctx context.Context, cell *Cell, req pricing.Request, kind pricing.OptionType) bool {
	if ctx.Err() != nil {
		// superseded build, don't hit the service
		*cell = Cell{Failed: true}
		return false
	}

	price, err := b.pricer.Price(ctx, req, kind)
	if err != nil {
		logger.Warn.Printf("error fetching %s price (S=%v, σ=%v): %v", kind, req.SpotPrice, req.Volatility, err)
		*cell = Cell{Failed: true}
		return false
	}
	*cell = Cell{Price: round(price, 2)}
	return true
}
