package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/enum"
	"github.com/bellavista-eats/api/internal/middleware"
	"github.com/bellavista-eats/api/internal/service"
)

// AdminOrderStore defines the database methods needed by the admin
// order board. Satisfied by *database.Queries.
type AdminOrderStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// OrderNotifier pushes order status changes to connected clients.
// Implemented by the websocket hub.
type OrderNotifier interface {
	NotifyStatusChanged(order database.Order)
}

// OrderHandler handles checkout, tracking, order history, and the admin
// order board.
type OrderHandler struct {
	svc      *service.OrderService
	store    service.OrderStore
	admin    AdminOrderStore
	quoter   Quoter
	notifier OrderNotifier
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc *service.OrderService, store service.OrderStore, admin AdminOrderStore, quoter Quoter, notifier OrderNotifier) *OrderHandler {
	return &OrderHandler{svc: svc, store: store, admin: admin, quoter: quoter, notifier: notifier}
}

// RegisterPublicRoutes registers checkout and tracking endpoints.
// Submit expects OptionalAuthenticate upstream so guest and registered
// checkout share it.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/", h.Submit)
	r.Post("/quote", h.CartQuote)
	r.Get("/track", h.Track)
}

// RegisterAccountRoutes registers the authenticated order history.
func (h *OrderHandler) RegisterAccountRoutes(r chi.Router) {
	r.Get("/orders", h.MyOrders)
}

// RegisterAdminRoutes registers the order board endpoints.
func (h *OrderHandler) RegisterAdminRoutes(r chi.Router) {
	r.Get("/", h.AdminList)
	r.Patch("/{id}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type submitLineRequest struct {
	ProductID  uuid.UUID         `json:"product_id"`
	Selections map[string]string `json:"selections"`
	Quantity   int32             `json:"quantity"`
}

type submitAddressRequest struct {
	Raw         string   `json:"raw"`
	Street      string   `json:"street"`
	HouseNumber string   `json:"house_number"`
	City        string   `json:"city"`
	PostalCode  string   `json:"postal_code"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
}

type submitOrderRequest struct {
	FirstName     string               `json:"first_name"`
	LastName      string               `json:"last_name"`
	Phone         string               `json:"phone"`
	Email         string               `json:"email"`
	Address       submitAddressRequest `json:"address"`
	Lines         []submitLineRequest  `json:"lines"`
	DeclaredTotal string               `json:"declared_total"`
	Notes         string               `json:"notes"`
}

type orderItemResponse struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  string          `json:"unit_price"`
	Quantity   int32           `json:"quantity"`
	Selections json.RawMessage `json:"selections,omitempty"`
}

type orderResponse struct {
	ID           uuid.UUID           `json:"id"`
	TrackingCode string              `json:"tracking_code"`
	Status       string              `json:"status"`
	OrderType    string              `json:"order_type"`
	FirstName    string              `json:"first_name"`
	LastName     string              `json:"last_name"`
	Phone        string              `json:"phone"`
	Address      string              `json:"address"`
	ZoneName     string              `json:"zone_name"`
	DeliveryFee  string              `json:"delivery_fee"`
	BoxFee       string              `json:"box_fee"`
	Subtotal     string              `json:"subtotal"`
	TotalAmount  string              `json:"total_amount"`
	Notes        string              `json:"notes,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	Items        []orderItemResponse `json:"items"`
}

func toOrderResponse(s *service.Snapshot) orderResponse {
	o := s.Order
	resp := orderResponse{
		ID:           o.ID,
		TrackingCode: o.TrackingCode,
		Status:       o.Status,
		OrderType:    o.OrderType,
		FirstName:    o.FirstName,
		LastName:     o.LastName,
		Phone:        o.Phone,
		Address:      o.AddressRaw,
		ZoneName:     o.ZoneName,
		DeliveryFee:  database.NumericToDecimal(o.DeliveryFee).StringFixed(2),
		BoxFee:       database.NumericToDecimal(o.BoxFee).StringFixed(2),
		Subtotal:     database.NumericToDecimal(o.Subtotal).StringFixed(2),
		TotalAmount:  database.NumericToDecimal(o.TotalAmount).StringFixed(2),
		Notes:        o.Notes.String,
		CreatedAt:    o.CreatedAt,
		Items:        []orderItemResponse{},
	}
	for _, it := range s.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:  it.ProductID,
			Name:       it.Name,
			UnitPrice:  database.NumericToDecimal(it.UnitPrice).StringFixed(2),
			Quantity:   it.Quantity,
			Selections: json.RawMessage(it.Selections),
		})
	}
	return resp
}

type cartQuoteResponse struct {
	Subtotal string `json:"subtotal"`
	BoxFee   string `json:"box_fee"`
	Total    string `json:"total"`
}

// --- Handlers ---

// Submit is the checkout endpoint. The delivery quote and every price
// are recomputed server side; the client's declared total is only
// cross-checked.
func (h *OrderHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	declaredTotal := decimal.Zero
	if req.DeclaredTotal != "" {
		var err error
		if declaredTotal, err = decimal.NewFromString(req.DeclaredTotal); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid declared_total"})
			return
		}
	}

	lines := make([]service.SubmitLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.SubmitLine{
			ProductID:  l.ProductID,
			Selections: l.Selections,
			Quantity:   l.Quantity,
		})
	}

	sub := service.SubmitOrderRequest{
		Contact: service.Contact{
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Phone:     req.Phone,
			Email:     req.Email,
		},
		Address: service.Address{
			Raw:         req.Address.Raw,
			Street:      req.Address.Street,
			HouseNumber: req.Address.HouseNumber,
			City:        req.Address.City,
			PostalCode:  req.Address.PostalCode,
		},
		Lines:         lines,
		DeclaredTotal: declaredTotal,
		Notes:         req.Notes,
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		sub.CustomerID = claims.CustomerID
	}

	// Resolve the delivery zone before touching the order service; an
	// unresolvable address is a checkout-blocking validation failure.
	if req.Address.Raw != "" || (req.Address.Lat != nil && req.Address.Lon != nil) {
		dreq := delivery.Request{Address: req.Address.Raw}
		if req.Address.Lat != nil && req.Address.Lon != nil {
			dreq.Coordinates = &delivery.Coordinates{Lat: *req.Address.Lat, Lon: *req.Address.Lon}
		}
		quote, err := h.quoter.Quote(r.Context(), dreq)
		if err != nil {
			writeServiceError(w, "submit order: quote", err)
			return
		}
		sub.Quote = quote
	}

	snap, err := h.svc.SubmitOrder(r.Context(), sub)
	if err != nil {
		writeServiceError(w, "submit order", err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(snap))
}

// CartQuote recomputes a cart's totals without creating anything, for
// pre-checkout display.
func (h *OrderHandler) CartQuote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Lines []submitLineRequest `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	lines := make([]service.SubmitLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, service.SubmitLine{
			ProductID:  l.ProductID,
			Selections: l.Selections,
			Quantity:   l.Quantity,
		})
	}

	totals, err := h.svc.AggregateForQuote(r.Context(), h.store, lines)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnprocessableEntity, validationErrorBody{
				Error: "product is no longer available",
				Code:  "order.product_unavailable",
				Field: "lines",
			})
			return
		}
		log.Printf("ERROR: cart quote: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, cartQuoteResponse{
		Subtotal: totals.Subtotal.StringFixed(2),
		BoxFee:   totals.BoxFee.StringFixed(2),
		Total:    totals.Total().StringFixed(2),
	})
}

// Track looks an order up by tracking code and phone. Both must match;
// any mismatch reads as not found.
func (h *OrderHandler) Track(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	phone := r.URL.Query().Get("phone")
	if code == "" || phone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "code and phone are required"})
		return
	}

	snap, err := h.svc.TrackOrder(r.Context(), code, phone)
	if err != nil {
		writeServiceError(w, "track order", err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}

// MyOrders returns the authenticated customer's order history, newest
// first.
func (h *OrderHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	snaps, err := h.svc.ListOrdersForAccount(r.Context(), claims.CustomerID)
	if err != nil {
		log.Printf("ERROR: list my orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(snaps))
	for i := range snaps {
		resp = append(resp, toOrderResponse(&snaps[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AdminList returns orders for the board, optionally filtered by
// status.
func (h *OrderHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	status := pgtype.Text{}
	if s := r.URL.Query().Get("status"); s != "" {
		if !validOrderStatus(s) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
		status = pgtype.Text{String: s, Valid: true}
	}

	limit := int32(50)
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 200 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = int32(n)
	}

	offset := int32(0)
	if s := r.URL.Query().Get("offset"); s != "" {
		n, err := strconv.ParseInt(s, 10, 32)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
			return
		}
		offset = int32(n)
	}

	orders, err := h.admin.ListOrders(r.Context(), database.ListOrdersParams{
		Status: status,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		items, err := h.admin.ListOrderItemsByOrder(r.Context(), o.ID)
		if err != nil {
			log.Printf("ERROR: list order items: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		resp = append(resp, toOrderResponse(&service.Snapshot{Order: o, Items: items}))
	}
	writeJSON(w, http.StatusOK, resp)
}

// UpdateStatus moves an order along its lifecycle and notifies
// connected trackers.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if !validOrderStatus(req.Status) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	snap, err := h.svc.TransitionOrder(r.Context(), id, req.Status)
	if err != nil {
		writeServiceError(w, "update order status", err)
		return
	}

	if h.notifier != nil {
		h.notifier.NotifyStatusChanged(snap.Order)
	}

	writeJSON(w, http.StatusOK, toOrderResponse(snap))
}

func validOrderStatus(s string) bool {
	switch s {
	case enum.OrderStatusPending, enum.OrderStatusOutForDelivery,
		enum.OrderStatusDelivered, enum.OrderStatusCancelled:
		return true
	}
	return false
}
