package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/geocode"
)

// Quoter resolves a delivery request into a zone quote. Implemented by
// DeliveryHandler and mocked in order handler tests.
type Quoter interface {
	Quote(ctx context.Context, req delivery.Request) (*delivery.Quote, error)
}

// DeliveryHandler resolves addresses into delivery quotes. Zones are
// loaded fresh per request so admin edits take effect immediately.
type DeliveryHandler struct {
	store    ZoneStore
	geocoder delivery.Geocoder
	origin   delivery.Coordinates
}

// NewDeliveryHandler creates a new DeliveryHandler.
func NewDeliveryHandler(store ZoneStore, geocoder delivery.Geocoder, origin delivery.Coordinates) *DeliveryHandler {
	return &DeliveryHandler{store: store, geocoder: geocoder, origin: origin}
}

// RegisterRoutes registers the quote endpoint.
func (h *DeliveryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quote", h.QuoteAddress)
}

// --- Request / Response types ---

type quoteRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

type quoteResponse struct {
	Zone             string  `json:"zone"`
	DeliveryFee      string  `json:"delivery_fee"`
	MinOrder         string  `json:"min_order"`
	EstimatedMinutes int32   `json:"estimated_minutes"`
	DistanceKm       float64 `json:"distance_km"`
	Address          string  `json:"address"`
	Lat              float64 `json:"lat"`
	Lon              float64 `json:"lon"`
}

func toQuoteResponse(q *delivery.Quote) quoteResponse {
	return quoteResponse{
		Zone:             q.Zone.Name,
		DeliveryFee:      q.Zone.DeliveryFee.StringFixed(2),
		MinOrder:         q.Zone.MinOrder.StringFixed(2),
		EstimatedMinutes: q.Zone.EstimatedMinutes,
		DistanceKm:       q.DistanceKm,
		Address:          q.Address,
		Lat:              q.Coordinates.Lat,
		Lon:              q.Coordinates.Lon,
	}
}

// --- Handlers ---

// QuoteAddress resolves an address or coordinate pair into a delivery
// quote.
func (h *DeliveryHandler) QuoteAddress(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	dreq := delivery.Request{Address: req.Address}
	if req.Lat != nil && req.Lon != nil {
		dreq.Coordinates = &delivery.Coordinates{Lat: *req.Lat, Lon: *req.Lon}
	}
	if dreq.Address == "" && dreq.Coordinates == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "address or coordinates required"})
		return
	}

	quote, err := h.Quote(r.Context(), dreq)
	if err != nil {
		if errors.Is(err, geocode.ErrNoResults) {
			writeJSON(w, http.StatusUnprocessableEntity, validationErrorBody{
				Error: "address could not be found",
				Code:  "delivery.address_not_found",
				Field: "address",
			})
			return
		}
		writeServiceError(w, "delivery quote", err)
		return
	}

	writeJSON(w, http.StatusOK, toQuoteResponse(quote))
}

// Quote implements Quoter.
func (h *DeliveryHandler) Quote(ctx context.Context, req delivery.Request) (*delivery.Quote, error) {
	rows, err := h.store.ListActiveZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	zones := make([]delivery.Zone, 0, len(rows))
	for _, z := range rows {
		zones = append(zones, toDeliveryZone(z))
	}

	resolver := delivery.NewResolver(h.geocoder, h.origin, zones)
	return resolver.Calculate(ctx, req)
}

func toDeliveryZone(z database.DeliveryZone) delivery.Zone {
	return delivery.Zone{
		Name:             z.Name,
		RadiusKm:         z.RadiusKm,
		DeliveryFee:      database.NumericToDecimal(z.DeliveryFee),
		MinOrder:         database.NumericToDecimal(z.MinOrder),
		EstimatedMinutes: z.EstimatedMinutes,
		Color:            z.Color.String,
	}
}
