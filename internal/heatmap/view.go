package heatmap

import (
	"context"
	"sync"

	"github.com/jwaldner/strikemap/internal/logger"
)

// View owns one heat map's state: idle -> loading -> ready, back to loading
// whenever the inputs change. Only the build of the latest generation is
// ever published.
type View struct {
	builder GridBuilder

	// OnSettled, if set, is called once per finished build. stale is true
	// when the result was discarded because newer inputs arrived.
	OnSettled func(grid *Grid, stale bool)

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	settled chan struct{} // closed when the current generation is ready
	closed  bool
}

func NewView(builder GridBuilder) *View {
	return &View{
		builder: builder,
		state:   State{Status: StatusIdle, Series: SeriesCall},
		settled: make(chan struct{}),
	}
}

// Update starts a build for inputs unless they match the current ones.
// It returns the generation that will be displayed.
func (v *View) Update(inputs Inputs) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed || (v.state.Status != StatusIdle && v.state.Inputs == inputs) {
		return v.state.Generation
	}

	if v.cancel != nil {
		v.cancel()
	}
	if v.state.Status != StatusReady {
		// wake anyone waiting on the superseded generation
		close(v.settled)
	}
	v.settled = make(chan struct{})

	v.state.Generation++
	v.state.Status = StatusLoading
	v.state.Inputs = inputs
	v.state.Grid = nil

	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel

	go v.run(ctx, v.state.Generation, inputs, v.settled)
	return v.state.Generation
}

func (v *View) run(ctx context.Context, generation uint64, inputs Inputs, settled chan struct{}) {
	grid := v.builder.Build(ctx, inputs)

	v.mu.Lock()
	stale := v.closed || generation != v.state.Generation
	if !stale {
		v.state.Status = StatusReady
		v.state.Grid = grid
		v.cancel()
		v.cancel = nil
		close(settled)
	}
	hook := v.OnSettled
	v.mu.Unlock()

	if stale {
		logger.Debug.Printf("discarding stale heat map build %s (generation %d)", grid.BuildID, generation)
	}
	if hook != nil {
		hook(grid, stale)
	}
}

// Select switches the displayed series without rebuilding.
func (v *View) Select(series Series) {
	v.mu.Lock()
	v.state.Series = series
	v.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Wait blocks until the current generation is ready, the view is idle or
// closed, or ctx is done.
func (v *View) Wait(ctx context.Context) (State, error) {
	for {
		v.mu.Lock()
		state, settled, closed := v.state, v.settled, v.closed
		v.mu.Unlock()

		if closed || state.Status != StatusLoading {
			return state, nil
		}

		select {
		case <-settled:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close cancels any in-flight build. Later updates are ignored.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return
	}
	v.closed = true
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	if v.state.Status != StatusReady {
		close(v.settled)
	}
}
