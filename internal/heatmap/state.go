package heatmap

import (
	"fmt"

	"github.com/jwaldner/strikemap/internal/pricing"
)

// Series picks which matrix is displayed.
type Series string

const (
	SeriesCall Series = "call"
	SeriesPut  Series = "put"
)

// ParseSeries accepts "call" or "put".
func ParseSeries(s string) (Series, error) {
	switch Series(s) {
	case SeriesCall, SeriesPut:
		return Series(s), nil
	}
	return "", fmt.Errorf("unknown series %q", s)
}

func (s Series) OptionType() pricing.OptionType {
	if s == SeriesPut {
		return pricing.Put
	}
	return pricing.Call
}

// Status is the externally visible lifecycle of a view.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
)

// State is owned by a View; callers only ever see copies.
type State struct {
	Status     Status `json:"status"`
	Series     Series `json:"series"`
	Generation uint64 `json:"generation"`
	Inputs     Inputs `json:"inputs"`
	Grid       *Grid  `json:"grid,omitempty"`
}
