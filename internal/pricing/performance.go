package pricing

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jwaldner/strikemap/internal/logger"
)

// SlowRequestThreshold marks a pricing call as slow in the stats
const SlowRequestThreshold = 2 * time.Second

// PerformanceWrapper wraps a Pricer with request counters. Safe for the
// concurrent fan-out of the grid builder.
type PerformanceWrapper struct {
	pricer           Pricer
	totalRequests    atomic.Int64
	failedRequests   atomic.Int64
	totalDuration    atomic.Int64 // nanoseconds
	slowRequestCount atomic.Int64
}

// Stats is a point-in-time copy of the wrapper counters
type Stats struct {
	TotalRequests   int64         `json:"total_requests"`
	FailedRequests  int64         `json:"failed_requests"`
	SlowRequests    int64         `json:"slow_requests"`
	TotalDuration   time.Duration `json:"total_duration_ns"`
	AverageDuration time.Duration `json:"average_duration_ns"`
}

// NewPerformanceWrapper creates a wrapper around a pricer
func NewPerformanceWrapper(pricer Pricer) *PerformanceWrapper {
	return &PerformanceWrapper{pricer: pricer}
}

// Price forwards to the wrapped pricer and records timing
func (pw *PerformanceWrapper) Price(ctx context.Context, req Request, kind OptionType) (float64, error) {
	start := time.Now()
	price, err := pw.pricer.Price(ctx, req, kind)
	duration := time.Since(start)

	pw.recordRequest(duration, err)

	logger.Debug.Printf("API CALL: %s price(S=%v, σ=%v) took %v", kind, req.SpotPrice, req.Volatility, duration)
	if duration > SlowRequestThreshold {
		logger.Debug.Printf("SLOW API CALL: %s price(S=%v, σ=%v) took %v", kind, req.SpotPrice, req.Volatility, duration)
	}

	return price, err
}

func (pw *PerformanceWrapper) recordRequest(duration time.Duration, err error) {
	pw.totalRequests.Add(1)
	pw.totalDuration.Add(int64(duration))

	if err != nil {
		pw.failedRequests.Add(1)
	}
	if duration > SlowRequestThreshold {
		pw.slowRequestCount.Add(1)
	}
}

// Stats returns current counters
func (pw *PerformanceWrapper) Stats() Stats {
	s := Stats{
		TotalRequests:  pw.totalRequests.Load(),
		FailedRequests: pw.failedRequests.Load(),
		SlowRequests:   pw.slowRequestCount.Load(),
		TotalDuration:  time.Duration(pw.totalDuration.Load()),
	}
	if s.TotalRequests > 0 {
		s.AverageDuration = s.TotalDuration / time.Duration(s.TotalRequests)
	}
	return s
}

func (s Stats) String() string {
	failedPct := 0.0
	if s.TotalRequests > 0 {
		failedPct = float64(s.FailedRequests) / float64(s.TotalRequests) * 100
	}

	return fmt.Sprintf(`
Pricing Client Performance Stats
================================
Total Requests:    %d
Failed Requests:   %d (%.1f%%)
Average Duration:  %v
Total Time:        %v
Slow Requests:     %d (>%v)
`,
		s.TotalRequests,
		s.FailedRequests, failedPct,
		s.AverageDuration,
		s.TotalDuration,
		s.SlowRequests, SlowRequestThreshold,
	)
}

// Close logs the final report
func (pw *PerformanceWrapper) Close() {
	if stats := pw.Stats(); stats.TotalRequests > 0 {
		logger.Info.Printf("Pricing performance report:%s", stats)
	}
}
