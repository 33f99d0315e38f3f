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

	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/enum"
)

// OptionStore defines the database methods needed by option handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OptionStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	ListOptionsByProduct(ctx context.Context, productID uuid.UUID) ([]database.ProductOption, error)
	GetOption(ctx context.Context, arg database.GetOptionParams) (database.ProductOption, error)
	CreateOption(ctx context.Context, arg database.CreateOptionParams) (database.ProductOption, error)
	UpdateOption(ctx context.Context, arg database.UpdateOptionParams) (database.ProductOption, error)
	SoftDeleteOption(ctx context.Context, arg database.SoftDeleteOptionParams) (uuid.UUID, error)
	ListChoicesByOption(ctx context.Context, optionID uuid.UUID) ([]database.OptionChoice, error)
	CreateChoice(ctx context.Context, arg database.CreateChoiceParams) (database.OptionChoice, error)
	UpdateChoice(ctx context.Context, arg database.UpdateChoiceParams) (database.OptionChoice, error)
	SoftDeleteChoice(ctx context.Context, arg database.SoftDeleteChoiceParams) (uuid.UUID, error)
}

// OptionHandler manages product options and their choices. Routes are
// nested under a product so every operation verifies ownership first.
type OptionHandler struct {
	store OptionStore
}

// NewOptionHandler creates a new OptionHandler.
func NewOptionHandler(store OptionStore) *OptionHandler {
	return &OptionHandler{store: store}
}

// RegisterRoutes registers option endpoints under /products/{productID}.
func (h *OptionHandler) RegisterRoutes(r chi.Router) {
	r.Route("/{productID}/options", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Put("/{optionID}", h.Update)
		r.Delete("/{optionID}", h.Delete)

		r.Route("/{optionID}/choices", func(r chi.Router) {
			r.Get("/", h.ListChoices)
			r.Post("/", h.CreateChoice)
			r.Put("/{choiceID}", h.UpdateChoice)
			r.Delete("/{choiceID}", h.DeleteChoice)
		})
	})
}

// --- Request / Response types ---

type optionRequest struct {
	Name              string `json:"name"`
	PricingMode       string `json:"pricing_mode"`
	DefaultChoiceCode string `json:"default_choice_code"`
	SortOrder         int32  `json:"sort_order"`
}

type optionDetailResponse struct {
	ID                uuid.UUID `json:"id"`
	ProductID         uuid.UUID `json:"product_id"`
	Name              string    `json:"name"`
	PricingMode       string    `json:"pricing_mode"`
	DefaultChoiceCode string    `json:"default_choice_code,omitempty"`
	SortOrder         int32     `json:"sort_order"`
}

func toOptionDetailResponse(o database.ProductOption) optionDetailResponse {
	return optionDetailResponse{
		ID:                o.ID,
		ProductID:         o.ProductID,
		Name:              o.Name,
		PricingMode:       o.PricingMode,
		DefaultChoiceCode: o.DefaultChoiceCode.String,
		SortOrder:         o.SortOrder,
	}
}

type choiceRequest struct {
	Code      string `json:"code"`
	Label     string `json:"label"`
	Price     string `json:"price"`
	ImageUrl  string `json:"image_url"`
	SortOrder int32  `json:"sort_order"`
}

type choiceDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	OptionID  uuid.UUID `json:"option_id"`
	Code      string    `json:"code"`
	Label     string    `json:"label"`
	Price     string    `json:"price"`
	ImageUrl  string    `json:"image_url,omitempty"`
	SortOrder int32     `json:"sort_order"`
}

func toChoiceDetailResponse(c database.OptionChoice) choiceDetailResponse {
	return choiceDetailResponse{
		ID:        c.ID,
		OptionID:  c.OptionID,
		Code:      c.Code,
		Label:     c.Label,
		Price:     database.NumericToDecimal(c.Price).StringFixed(2),
		ImageUrl:  c.ImageUrl.String,
		SortOrder: c.SortOrder,
	}
}

// --- Option handlers ---

// List returns every active option for a product.
func (h *OptionHandler) List(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.verifyProduct(w, r)
	if !ok {
		return
	}

	options, err := h.store.ListOptionsByProduct(r.Context(), productID)
	if err != nil {
		log.Printf("ERROR: list options: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]optionDetailResponse, 0, len(options))
	for _, o := range options {
		resp = append(resp, toOptionDetailResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds an option to a product.
func (h *OptionHandler) Create(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.verifyProduct(w, r)
	if !ok {
		return
	}

	var req optionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validOptionRequest(w, req) {
		return
	}

	o, err := h.store.CreateOption(r.Context(), database.CreateOptionParams{
		ProductID:         productID,
		Name:              req.Name,
		PricingMode:       req.PricingMode,
		DefaultChoiceCode: textOrNull(req.DefaultChoiceCode),
		SortOrder:         req.SortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: create option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOptionDetailResponse(o))
}

// Update modifies an option.
func (h *OptionHandler) Update(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.verifyProduct(w, r)
	if !ok {
		return
	}
	optionID, err := uuid.Parse(chi.URLParam(r, "optionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid option ID"})
		return
	}

	var req optionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validOptionRequest(w, req) {
		return
	}

	o, err := h.store.UpdateOption(r.Context(), database.UpdateOptionParams{
		ID:                optionID,
		ProductID:         productID,
		Name:              req.Name,
		PricingMode:       req.PricingMode,
		DefaultChoiceCode: textOrNull(req.DefaultChoiceCode),
		SortOrder:         req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return
		}
		log.Printf("ERROR: update option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOptionDetailResponse(o))
}

// Delete soft-deletes an option.
func (h *OptionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	productID, ok := h.verifyProduct(w, r)
	if !ok {
		return
	}
	optionID, err := uuid.Parse(chi.URLParam(r, "optionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid option ID"})
		return
	}

	if _, err := h.store.SoftDeleteOption(r.Context(), database.SoftDeleteOptionParams{
		ID:        optionID,
		ProductID: productID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return
		}
		log.Printf("ERROR: delete option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Choice handlers ---

// ListChoices returns every active choice for an option.
func (h *OptionHandler) ListChoices(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.verifyOption(w, r)
	if !ok {
		return
	}

	choices, err := h.store.ListChoicesByOption(r.Context(), optionID)
	if err != nil {
		log.Printf("ERROR: list choices: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]choiceDetailResponse, 0, len(choices))
	for _, c := range choices {
		resp = append(resp, toChoiceDetailResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateChoice adds a choice to an option.
func (h *OptionHandler) CreateChoice(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.verifyOption(w, r)
	if !ok {
		return
	}

	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and label are required"})
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	c, err := h.store.CreateChoice(r.Context(), database.CreateChoiceParams{
		OptionID:  optionID,
		Code:      req.Code,
		Label:     req.Label,
		Price:     price,
		ImageUrl:  textOrNull(req.ImageUrl),
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return
		}
		log.Printf("ERROR: create choice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toChoiceDetailResponse(c))
}

// UpdateChoice modifies a choice.
func (h *OptionHandler) UpdateChoice(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.verifyOption(w, r)
	if !ok {
		return
	}
	choiceID, err := uuid.Parse(chi.URLParam(r, "choiceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid choice ID"})
		return
	}

	var req choiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" || req.Label == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and label are required"})
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}

	c, err := h.store.UpdateChoice(r.Context(), database.UpdateChoiceParams{
		ID:        choiceID,
		OptionID:  optionID,
		Code:      req.Code,
		Label:     req.Label,
		Price:     price,
		ImageUrl:  textOrNull(req.ImageUrl),
		SortOrder: req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "choice not found"})
			return
		}
		log.Printf("ERROR: update choice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toChoiceDetailResponse(c))
}

// DeleteChoice soft-deletes a choice.
func (h *OptionHandler) DeleteChoice(w http.ResponseWriter, r *http.Request) {
	optionID, ok := h.verifyOption(w, r)
	if !ok {
		return
	}
	choiceID, err := uuid.Parse(chi.URLParam(r, "choiceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid choice ID"})
		return
	}

	if _, err := h.store.SoftDeleteChoice(r.Context(), database.SoftDeleteChoiceParams{
		ID:       choiceID,
		OptionID: optionID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "choice not found"})
			return
		}
		log.Printf("ERROR: delete choice: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

// verifyProduct parses the product ID and confirms the product exists.
func (h *OptionHandler) verifyProduct(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return uuid.Nil, false
	}

	if _, err := h.store.GetProduct(r.Context(), productID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return uuid.Nil, false
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return uuid.Nil, false
	}

	return productID, true
}

// verifyOption confirms the option exists and belongs to the product in
// the URL, so a choice can never be attached across products.
func (h *OptionHandler) verifyOption(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	productID, ok := h.verifyProduct(w, r)
	if !ok {
		return uuid.Nil, false
	}

	optionID, err := uuid.Parse(chi.URLParam(r, "optionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid option ID"})
		return uuid.Nil, false
	}

	if _, err := h.store.GetOption(r.Context(), database.GetOptionParams{
		ID:        optionID,
		ProductID: productID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "option not found"})
			return uuid.Nil, false
		}
		log.Printf("ERROR: get option: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return uuid.Nil, false
	}

	return optionID, true
}

func validOptionRequest(w http.ResponseWriter, req optionRequest) bool {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return false
	}
	if req.PricingMode != enum.PricingModeOverride && req.PricingMode != enum.PricingModeAdd {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pricing_mode must be OVERRIDE or ADD"})
		return false
	}
	return true
}
