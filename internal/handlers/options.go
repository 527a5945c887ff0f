package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/jwaldner/strikemap/internal/config"
	"github.com/jwaldner/strikemap/internal/dto"
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/pricing"
	"github.com/jwaldner/strikemap/internal/services"
	"github.com/jwaldner/strikemap/internal/session"
	"github.com/jwaldner/strikemap/internal/stock"
)

//go:embed templates/*.html
var templateFS embed.FS

// StatsSource exposes pricer counters, see pricing.PerformanceWrapper.
type StatsSource interface {
	Stats() pricing.Stats
}

// OptionsHandler serves the calculator page and the heat map endpoints.
type OptionsHandler struct {
	config    *config.Config
	pricer    pricing.Pricer
	builder   heatmap.GridBuilder
	sessions  *session.Store
	stocks    StockLookup
	requests  *services.RequestService
	templates *template.Template
}

// NewOptionsHandler creates a new options handler. stocks may be nil.
func NewOptionsHandler(cfg *config.Config, pricer pricing.Pricer, builder heatmap.GridBuilder, sessions *session.Store, stocks StockLookup) *OptionsHandler {
	funcMap := template.FuncMap{
		"appTitle": func() string {
			return "Strikemap - Option Pricing Heat Map"
		},
		"money": func(v float64) string {
			return fmt.Sprintf("$%.2f", v)
		},
		"figure": func(f stock.Figure) string {
			if f.Known {
				return fmt.Sprintf("%.2f", f.Value)
			}
			return f.String()
		},
		"percent": func(f stock.Figure) string {
			if f.Known {
				return fmt.Sprintf("%.2f%%", f.Value*100)
			}
			return f.String()
		},
		"safeCSS": func(s string) template.CSS {
			return template.CSS(s)
		},
	}

	tmpl := template.Must(template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html"))

	return &OptionsHandler{
		config:    cfg,
		pricer:    pricer,
		builder:   builder,
		sessions:  sessions,
		stocks:    stocks,
		requests:  services.NewRequestService(),
		templates: tmpl,
	}
}

// Register mounts the handler's routes on r.
func (h *OptionsHandler) Register(r *mux.Router) {
	r.HandleFunc("/", h.HomeHandler).Methods(http.MethodGet)
	r.HandleFunc("/calculate", h.CalculateHandler).Methods(http.MethodPost)
	r.HandleFunc("/heatmap", h.HeatMapFragmentHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/heatmap", h.HeatMapStateHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/heatmap", h.HeatMapUpdateHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/heatmap/series", h.SeriesHandler).Methods(http.MethodPost)
	r.HandleFunc("/api/quote", h.QuoteHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/grid", h.GridHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/pricing/stats", h.StatsHandler).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
}

// HomeHandler serves the calculator. A ticker query adds the stock panel.
func (h *OptionsHandler) HomeHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	data := dto.TemplateData{Form: dto.DefaultForm()}

	// keep showing the current heat map across reloads
	if state := sess.View.Snapshot(); state.Status != heatmap.StatusIdle {
		data.Form = formFromInputs(state.Inputs)
		data.HeatMap = true
	}

	if ticker := r.URL.Query().Get("ticker"); ticker != "" && h.stocks != nil {
		data.Ticker = ticker
		info, err := h.stocks.Lookup(r.Context(), ticker)
		if err != nil {
			logger.Warn.Printf("stock lookup %s failed: %v", ticker, err)
			data.Error = fmt.Sprintf("No data found for ticker %s", ticker)
		} else {
			data.Stock = info
			if info.CurrentPrice.Known && info.CurrentPrice.Value > 0 && !data.HeatMap {
				data.Form.StockPrice = info.CurrentPrice.Value
				data.Form.StrikePrice = info.CurrentPrice.Value
			}
		}
	}

	h.render(w, http.StatusOK, "index.html", data)
}

// CalculateHandler prices the headline call/put pair and, on success,
// points the session heat map at the submitted inputs.
func (h *OptionsHandler) CalculateHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	form, req, err := h.requests.ParsePricingForm(r)
	if err != nil {
		logger.Info.Printf("rejected calculator input: %v", err)
		h.render(w, http.StatusBadRequest, "index.html", dto.TemplateData{Form: form, Error: err.Error()})
		return
	}

	data := dto.TemplateData{Form: form}

	quote, err := pricing.FetchQuote(r.Context(), h.pricer, req)
	if err != nil {
		logger.Warn.Printf("headline quote failed: %v", err)
		data.Error = dto.CalculateErrorMessage
		h.render(w, http.StatusBadGateway, "index.html", data)
		return
	}

	data.Quote = quote
	data.HeatMap = true
	sess.View.Update(req)

	h.render(w, http.StatusOK, "index.html", data)
}

// HeatMapFragmentHandler renders the session heat map as an HTML fragment.
func (h *OptionsHandler) HeatMapFragmentHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	if s := r.URL.Query().Get("series"); s != "" {
		series, err := heatmap.ParseSeries(s)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		sess.View.Select(series)
	}

	state := sess.View.Snapshot()
	data := dto.HeatMapData{Status: state.Status, Series: state.Series, Table: tableFor(state)}

	h.render(w, http.StatusOK, "heatmap.html", data)
}

// HeatMapStateHandler returns the session state. wait=1 blocks until the
// current build is ready or the request is cancelled.
func (h *OptionsHandler) HeatMapStateHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	state := sess.View.Snapshot()
	if r.URL.Query().Get("wait") == "1" {
		var err error
		state, err = sess.View.Wait(r.Context())
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug.Printf("heat map wait ended early: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, dto.HeatMapResponse{State: state, Table: tableFor(state)})
}

// HeatMapUpdateHandler sets new inputs for the session heat map.
func (h *OptionsHandler) HeatMapUpdateHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	_, req, err := h.requests.ParsePricingForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	sess.View.Update(req)
	writeJSON(w, http.StatusAccepted, dto.HeatMapResponse{State: sess.View.Snapshot()})
}

// SeriesHandler switches between call and put without rebuilding.
func (h *OptionsHandler) SeriesHandler(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.FromRequest(w, r)

	series, err := h.requests.ParseSeries(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	sess.View.Select(series)
	state := sess.View.Snapshot()
	writeJSON(w, http.StatusOK, dto.HeatMapResponse{State: state, Table: tableFor(state)})
}

// QuoteHandler returns the headline prices for the query inputs.
func (h *OptionsHandler) QuoteHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.requests.ParsePricingForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	quote, err := pricing.FetchQuote(r.Context(), h.pricer, req)
	if err != nil {
		logger.Warn.Printf("headline quote failed: %v", err)
		writeJSON(w, http.StatusBadGateway, dto.ErrorResponse{Error: dto.CalculateErrorMessage})
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// GridHandler builds a grid synchronously, outside any session.
func (h *OptionsHandler) GridHandler(w http.ResponseWriter, r *http.Request) {
	_, req, err := h.requests.ParsePricingForm(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	grid := h.builder.Build(r.Context(), req)
	logger.Info.Printf("grid %s built in %s (%d/%d failed)", grid.BuildID, grid.Duration, grid.Failures, grid.Requests)
	writeJSON(w, http.StatusOK, grid)
}

func (h *OptionsHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	src, ok := h.pricer.(StatsSource)
	if !ok {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "pricing stats not available"})
		return
	}
	writeJSON(w, http.StatusOK, src.Stats())
}

func (h *OptionsHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, dto.HealthResponse{
		Status:    "ok",
		Sessions:  h.sessions.Len(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

func (h *OptionsHandler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error.Printf("template %s execution error: %v", name, err)
	}
}

func tableFor(state heatmap.State) *heatmap.Table {
	if state.Status != heatmap.StatusReady || state.Grid == nil {
		return nil
	}
	table := heatmap.NewTable(state.Grid, state.Series)
	return &table
}

func formFromInputs(in heatmap.Inputs) dto.PricingForm {
	return dto.PricingForm{
		StockPrice:   in.SpotPrice,
		StrikePrice:  in.StrikePrice,
		TimeToExpiry: in.TimeToExpiry,
		RiskFreeRate: in.RiskFreeRate,
		Volatility:   in.Volatility,
	}
}

// writeJSON encodes before writing the header so an encoding failure is
// reported as a 500 instead of a truncated success.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error.Printf("failed to encode response: %v", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}
