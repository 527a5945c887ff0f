package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jwaldner/strikemap/internal/dto"
	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/stock"
)

// StockLookup is satisfied by stock.Client.
type StockLookup interface {
	Lookup(ctx context.Context, ticker string) (*stock.Info, error)
}

// StockHandler proxies company lookups to the stock service.
type StockHandler struct {
	stocks StockLookup
}

func NewStockHandler(stocks StockLookup) *StockHandler {
	return &StockHandler{stocks: stocks}
}

func (h *StockHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/stock/{ticker}", h.LookupHandler).Methods(http.MethodGet)
}

// LookupHandler returns the stock snapshot for the path ticker.
func (h *StockHandler) LookupHandler(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	info, err := h.stocks.Lookup(r.Context(), ticker)
	if err != nil {
		logger.Warn.Printf("stock lookup %s failed: %v", ticker, err)
		status := http.StatusBadGateway
		if errors.Is(err, stock.ErrLookupFailed) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, dto.StockResponse{Info: info, MarketCapDisplay: info.DisplayMarketCap()})
}
