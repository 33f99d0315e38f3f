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

	"github.com/bellavista-eats/api/internal/catalog"
	"github.com/bellavista-eats/api/internal/database"
)

// CatalogStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type CatalogStore interface {
	ListActiveProducts(ctx context.Context) ([]database.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (database.Product, error)
	GetCatalogProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// CatalogHandler handles menu read endpoints and admin product CRUD.
type CatalogHandler struct {
	store CatalogStore
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(store CatalogStore) *CatalogHandler {
	return &CatalogHandler{store: store}
}

// RegisterPublicRoutes registers the storefront menu endpoints.
func (h *CatalogHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/", h.ListMenu)
	r.Get("/{id}", h.GetMenuItem)
}

// RegisterAdminRoutes registers product management endpoints.
func (h *CatalogHandler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/", h.Create)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

// --- Request / Response types ---

type createProductRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	BasePrice      string `json:"base_price"`
	ImageUrl       string `json:"image_url"`
	DisableBoxFee  bool   `json:"disable_box_fee"`
	IsPromotion    bool   `json:"is_promotion"`
	OriginalPrice  string `json:"original_price"`
	PromotionPrice string `json:"promotion_price"`
	SortOrder      int32  `json:"sort_order"`
}

type choiceResponse struct {
	Code     string `json:"code"`
	Label    string `json:"label"`
	Price    string `json:"price"`
	ImageUrl string `json:"image_url,omitempty"`
}

type optionResponse struct {
	Name              string           `json:"name"`
	PricingMode       string           `json:"pricing_mode"`
	DefaultChoiceCode string           `json:"default_choice_code,omitempty"`
	Choices           []choiceResponse `json:"choices"`
}

type menuItemResponse struct {
	ID            uuid.UUID        `json:"id"`
	Name          string           `json:"name"`
	Description   string           `json:"description,omitempty"`
	ImageUrl      string           `json:"image_url,omitempty"`
	DisableBoxFee bool             `json:"disable_box_fee"`
	IsPromotion   bool             `json:"is_promotion"`
	OriginalPrice string           `json:"original_price,omitempty"`
	PriceMin      string           `json:"price_min"`
	PriceMax      string           `json:"price_max"`
	Options       []optionResponse `json:"options"`
}

func toMenuItemResponse(row database.Product, p catalog.Product) menuItemResponse {
	min, max := catalog.PriceRange(p)

	resp := menuItemResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   row.Description.String,
		ImageUrl:      row.ImageUrl.String,
		DisableBoxFee: p.DisableBoxFee,
		IsPromotion:   p.IsPromotion,
		PriceMin:      min.StringFixed(2),
		PriceMax:      max.StringFixed(2),
		Options:       []optionResponse{},
	}
	if p.IsPromotion {
		resp.OriginalPrice = p.OriginalPrice.StringFixed(2)
	}

	for _, o := range p.Options {
		opt := optionResponse{
			Name:              o.Name,
			PricingMode:       o.PricingMode,
			DefaultChoiceCode: o.DefaultChoiceCode,
			Choices:           []choiceResponse{},
		}
		for _, c := range o.Choices {
			opt.Choices = append(opt.Choices, choiceResponse{
				Code:     c.Code,
				Label:    c.Label,
				Price:    c.Price.StringFixed(2),
				ImageUrl: c.ImageURL,
			})
		}
		resp.Options = append(resp.Options, opt)
	}
	return resp
}

type productResponse struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description"`
	BasePrice      string    `json:"base_price"`
	ImageUrl       *string   `json:"image_url"`
	DisableBoxFee  bool      `json:"disable_box_fee"`
	IsPromotion    bool      `json:"is_promotion"`
	OriginalPrice  string    `json:"original_price"`
	PromotionPrice string    `json:"promotion_price"`
	SortOrder      int32     `json:"sort_order"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:             p.ID,
		Name:           p.Name,
		BasePrice:      database.NumericToDecimal(p.BasePrice).StringFixed(2),
		DisableBoxFee:  p.DisableBoxFee,
		IsPromotion:    p.IsPromotion,
		OriginalPrice:  database.NumericToDecimal(p.OriginalPrice).StringFixed(2),
		PromotionPrice: database.NumericToDecimal(p.PromotionPrice).StringFixed(2),
		SortOrder:      p.SortOrder,
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageUrl = &p.ImageUrl.String
	}
	return resp
}

// --- Public handlers ---

// ListMenu returns every active product with its options and display
// price range.
func (h *CatalogHandler) ListMenu(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.ListActiveProducts(r.Context())
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]menuItemResponse, 0, len(products))
	for _, row := range products {
		p, err := h.store.GetCatalogProduct(r.Context(), row.ID)
		if err != nil {
			log.Printf("ERROR: assemble product %s: %v", row.ID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp = append(resp, toMenuItemResponse(row, p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetMenuItem returns one product with options and price range.
func (h *CatalogHandler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	row, err := h.store.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	p, err := h.store.GetCatalogProduct(r.Context(), id)
	if err != nil {
		log.Printf("ERROR: assemble product %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toMenuItemResponse(row, p))
}

// --- Admin handlers ---

// Create adds a new product to the menu.
func (h *CatalogHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.productParams(w, req)
	if !ok {
		return
	}

	p, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		Name:           req.Name,
		Description:    textOrNull(req.Description),
		BasePrice:      params.basePrice,
		ImageUrl:       textOrNull(req.ImageUrl),
		DisableBoxFee:  req.DisableBoxFee,
		IsPromotion:    req.IsPromotion,
		OriginalPrice:  params.originalPrice,
		PromotionPrice: params.promotionPrice,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

// Update modifies an existing product.
func (h *CatalogHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params, ok := h.productParams(w, req)
	if !ok {
		return
	}

	p, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:             id,
		Name:           req.Name,
		Description:    textOrNull(req.Description),
		BasePrice:      params.basePrice,
		ImageUrl:       textOrNull(req.ImageUrl),
		DisableBoxFee:  req.DisableBoxFee,
		IsPromotion:    req.IsPromotion,
		OriginalPrice:  params.originalPrice,
		PromotionPrice: params.promotionPrice,
		SortOrder:      req.SortOrder,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(p))
}

// Delete soft-deletes a product by setting is_active=false.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product ID"})
		return
	}

	if _, err := h.store.SoftDeleteProduct(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type parsedProductPrices struct {
	basePrice      pgtype.Numeric
	originalPrice  pgtype.Numeric
	promotionPrice pgtype.Numeric
}

// productParams validates shared create/update fields, including the
// promotion invariant (promotion price strictly below original).
func (h *CatalogHandler) productParams(w http.ResponseWriter, req createProductRequest) (parsedProductPrices, bool) {
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return parsedProductPrices{}, false
	}

	basePrice, err := parsePrice(req.BasePrice)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid base_price"})
		return parsedProductPrices{}, false
	}

	originalPrice := pgtype.Numeric{}
	promotionPrice := pgtype.Numeric{}
	if req.IsPromotion {
		if originalPrice, err = parsePrice(req.OriginalPrice); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid original_price"})
			return parsedProductPrices{}, false
		}
		if promotionPrice, err = parsePrice(req.PromotionPrice); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid promotion_price"})
			return parsedProductPrices{}, false
		}
		if !database.NumericToDecimal(promotionPrice).LessThan(database.NumericToDecimal(originalPrice)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "promotion_price must be below original_price"})
			return parsedProductPrices{}, false
		}
	}

	return parsedProductPrices{
		basePrice:      basePrice,
		originalPrice:  originalPrice,
		promotionPrice: promotionPrice,
	}, true
}
