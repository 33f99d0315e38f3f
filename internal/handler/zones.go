package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/bellavista-eats/api/internal/database"
)

// ZoneStore defines the database methods needed by zone handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ZoneStore interface {
	ListActiveZones(ctx context.Context) ([]database.DeliveryZone, error)
	CreateZone(ctx context.Context, arg database.CreateZoneParams) (database.DeliveryZone, error)
	UpdateZone(ctx context.Context, arg database.UpdateZoneParams) (database.DeliveryZone, error)
	SoftDeleteZone(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// ZoneHandler handles delivery zone endpoints.
type ZoneHandler struct {
	store ZoneStore
}

// NewZoneHandler creates a new ZoneHandler.
func NewZoneHandler(store ZoneStore) *ZoneHandler {
	return &ZoneHandler{store: store}
}

// RegisterPublicRoutes registers the storefront zone listing.
func (h *ZoneHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.List)
}

// RegisterAdminRoutes registers zone management endpoints.
func (h *ZoneHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type zoneRequest struct {
	Name             string  `json:"name"`
	RadiusKm         float64 `json:"radius_km"`
	DeliveryFee      string  `json:"delivery_fee"`
	MinOrder         string  `json:"min_order"`
	EstimatedMinutes int32   `json:"estimated_minutes"`
	Color            string  `json:"color"`
}

type zoneResponse struct {
	ID               uuid.UUID `json:"id"`
	Name             string    `json:"name"`
	RadiusKm         float64   `json:"radius_km"`
	DeliveryFee      string    `json:"delivery_fee"`
	MinOrder         string    `json:"min_order"`
	EstimatedMinutes int32     `json:"estimated_minutes"`
	Color            string    `json:"color,omitempty"`
}

func toZoneResponse(z database.DeliveryZone) zoneResponse {
	return zoneResponse{
		ID:               z.ID,
		Name:             z.Name,
		RadiusKm:         z.RadiusKm,
		DeliveryFee:      database.NumericToDecimal(z.DeliveryFee).StringFixed(2),
		MinOrder:         database.NumericToDecimal(z.MinOrder).StringFixed(2),
		EstimatedMinutes: z.EstimatedMinutes,
		Color:            z.Color.String,
	}
}

// --- Handlers ---

// List returns active zones in ascending radius order.
func (h *ZoneHandler) List(w http.ResponseWriter, r *http.Request) {
	zones, err := h.store.ListActiveZones(r.Context())
	if err != nil {
		log.Printf("ERROR: list zones: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]zoneResponse, 0, len(zones))
	for _, z := range zones {
		resp = append(resp, toZoneResponse(z))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a delivery zone.
func (h *ZoneHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.zoneParams(w, req)
	if !ok {
		return
	}

	z, err := h.store.CreateZone(r.Context(), database.CreateZoneParams{
		Name:             req.Name,
		RadiusKm:         req.RadiusKm,
		DeliveryFee:      params.deliveryFee,
		MinOrder:         params.minOrder,
		EstimatedMinutes: req.EstimatedMinutes,
		Color:            textOrNull(req.Color),
	})
	if err != nil {
		log.Printf("ERROR: create zone: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toZoneResponse(z))
}

// Update modifies a delivery zone.
func (h *ZoneHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid zone ID"})
		return
	}

	var req zoneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.zoneParams(w, req)
	if !ok {
		return
	}

	z, err := h.store.UpdateZone(r.Context(), database.UpdateZoneParams{
		ID:               id,
		Name:             req.Name,
		RadiusKm:         req.RadiusKm,
		DeliveryFee:      params.deliveryFee,
		MinOrder:         params.minOrder,
		EstimatedMinutes: req.EstimatedMinutes,
		Color:            textOrNull(req.Color),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "zone not found"})
			return
		}
		log.Printf("ERROR: update zone: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toZoneResponse(z))
}

// Delete soft-deletes a zone.
func (h *ZoneHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid zone ID"})
		return
	}

	if _, err := h.store.SoftDeleteZone(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "zone not found"})
			return
		}
		log.Printf("ERROR: delete zone: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type parsedZoneFees struct {
	deliveryFee pgtype.Numeric
	minOrder    pgtype.Numeric
}

func (h *ZoneHandler) zoneParams(w http.ResponseWriter, req zoneRequest) (parsedZoneFees, bool) {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return parsedZoneFees{}, false
	}
	if req.RadiusKm <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "radius_km must be positive"})
		return parsedZoneFees{}, false
	}

	deliveryFee, err := parsePrice(req.DeliveryFee)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid delivery_fee"})
		return parsedZoneFees{}, false
	}
	minOrder, err := parsePrice(req.MinOrder)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid min_order"})
		return parsedZoneFees{}, false
	}

	return parsedZoneFees{deliveryFee: deliveryFee, minOrder: minOrder}, true
}
