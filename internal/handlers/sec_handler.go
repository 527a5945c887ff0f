package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jwaldner/strikemap/internal/dto"
	"github.com/jwaldner/strikemap/internal/logger"
	"github.com/jwaldner/strikemap/internal/sec"
)

// FilingsLookup is satisfied by sec.Client.
type FilingsLookup interface {
	Company(ctx context.Context, ticker string) (*sec.CompanyData, error)
	Filings(ctx context.Context, ticker string) ([]sec.Filing, error)
}

// SECHandler serves company details and recent filings from EDGAR.
type SECHandler struct {
	filings FilingsLookup
}

func NewSECHandler(filings FilingsLookup) *SECHandler {
	return &SECHandler{filings: filings}
}

func (h *SECHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/sec/company/{ticker}", h.CompanyHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/sec/company/{ticker}/filings", h.FilingsHandler).Methods(http.MethodGet)
}

func (h *SECHandler) CompanyHandler(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	data, err := h.filings.Company(r.Context(), ticker)
	if err != nil {
		writeSECError(w, ticker, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// FilingsHandler returns the recent filings list on its own. An empty list
// encodes as [], never null.
func (h *SECHandler) FilingsHandler(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]

	filings, err := h.filings.Filings(r.Context(), ticker)
	if err != nil {
		writeSECError(w, ticker, err)
		return
	}
	if filings == nil {
		filings = []sec.Filing{}
	}
	writeJSON(w, http.StatusOK, filings)
}

func writeSECError(w http.ResponseWriter, ticker string, err error) {
	logger.Warn.Printf("SEC lookup %s failed: %v", ticker, err)
	status := http.StatusBadGateway
	if errors.Is(err, sec.ErrNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}
