package services

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"

	"github.com/gorilla/schema"

	"github.com/jwaldner/strikemap/internal/dto"
	"github.com/jwaldner/strikemap/internal/heatmap"
	"github.com/jwaldner/strikemap/internal/pricing"
)

// RequestService handles HTTP request parsing
type RequestService struct {
	decoder *schema.Decoder
}

// NewRequestService creates a new request service
func NewRequestService() *RequestService {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(true)
	return &RequestService{decoder: decoder}
}

// ParsePricingForm reads the five inputs from a JSON body, a form post or
// the query string. The returned form is filled as far as parsing got, so a
// page can be re-rendered with what the user typed.
func (s *RequestService) ParsePricingForm(r *http.Request) (dto.PricingForm, pricing.Request, error) {
	var form dto.PricingForm

	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, pricing.Request{}, fmt.Errorf("%w: failed to decode request: %v", pricing.ErrInvalidRequest, err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return form, pricing.Request{}, fmt.Errorf("%w: failed to parse form: %v", pricing.ErrInvalidRequest, err)
		}
		if err := s.decoder.Decode(&form, r.Form); err != nil {
			return form, pricing.Request{}, fmt.Errorf("%w: %v", pricing.ErrInvalidRequest, err)
		}
	}

	req := form.Request()
	if err := req.Validate(); err != nil {
		return form, req, err
	}
	return form, req, nil
}

// ParseSeries reads the series toggle from JSON, form or query.
func (s *RequestService) ParseSeries(r *http.Request) (heatmap.Series, error) {
	var body dto.SeriesRequest

	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("failed to decode request: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return "", fmt.Errorf("failed to parse form: %w", err)
		}
		if err := s.decoder.Decode(&body, r.Form); err != nil {
			return "", err
		}
	}

	return heatmap.ParseSeries(body.Series)
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}
