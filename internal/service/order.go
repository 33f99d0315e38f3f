package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/cart"
	"github.com/bellavista-eats/api/internal/catalog"
	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/enum"
)

const maxTrackingCodeRetries = 3

// amountTolerance is the maximum the client-declared total may diverge
// from the server-recomputed total before the submission is rejected.
var amountTolerance = decimal.RequireFromString("0.01")

// hasDigit is the house-number heuristic: a deliverable street address
// almost always carries a number token. Best-effort advisory gate, not
// a geocoding guarantee.
var hasDigit = regexp.MustCompile(`\d`)

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetCatalogProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error)
}

// LifecycleStore defines the DB methods needed for order lookups and
// status transitions. Satisfied by *database.Queries.
type LifecycleStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	GetOrderByTrackingCode(ctx context.Context, trackingCode string) (database.Order, error)
	ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx), so the
// service can bind store instances to transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// Contact is the customer contact block required on every order.
type Contact struct {
	FirstName string
	LastName  string
	Phone     string
	Email     string
}

// Address is the delivery address as submitted, structured fields
// optional.
type Address struct {
	Raw         string
	Street      string
	HouseNumber string
	City        string
	PostalCode  string
}

// SubmitLine is one cart line as submitted by the client. Prices are
// deliberately absent: the service recomputes them from the catalog.
type SubmitLine struct {
	ProductID  uuid.UUID
	Selections map[string]string
	Quantity   int32
}

// SubmitOrderRequest is the validated input for creating an order.
type SubmitOrderRequest struct {
	CustomerID uuid.UUID // uuid.Nil for guest checkout
	Contact    Contact
	Address    Address
	Lines      []SubmitLine

	// Quote must come from a Resolved delivery calculation; nil means
	// the address never resolved to a zone.
	Quote *delivery.Quote

	// DeclaredTotal is the client-computed amount, untrusted. Zero
	// skips the divergence check (older clients don't send it).
	DeclaredTotal decimal.Decimal

	Notes string
}

// Snapshot is an order with its frozen line items.
type Snapshot struct {
	Order database.Order
	Items []database.OrderItem
}

// OrderService implements order submission, tracking, and lifecycle
// transitions.
type OrderService struct {
	pool      TxBeginner
	newStore  NewOrderStore
	lifecycle LifecycleStore
	boxFee    decimal.Decimal
}

// NewOrderService creates a new OrderService. boxFee is the
// restaurant's per-order packaging surcharge (zero disables it).
func NewOrderService(pool TxBeginner, newStore NewOrderStore, lifecycle LifecycleStore, boxFee decimal.Decimal) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, lifecycle: lifecycle, boxFee: boxFee}
}

// --- Submission ---

// SubmitOrder validates the checkout, recomputes all prices from the
// catalog, and persists the order with a fresh tracking code. Retries
// a bounded number of times when the generated code collides.
func (s *OrderService) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*Snapshot, error) {
	if err := validateSubmission(req); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < maxTrackingCodeRetries; attempt++ {
		result, err := s.submitTx(ctx, req)
		if err == nil {
			return result, nil
		}
		if isTrackingCodeConflict(err) {
			lastErr = err
			continue
		}
		return nil, err
	}
	return nil, lastErr
}

// validateSubmission runs every synchronous gate that needs no catalog
// access. Price-dependent checks happen inside the transaction.
func validateSubmission(req SubmitOrderRequest) error {
	hasLine := false
	for _, l := range req.Lines {
		if l.Quantity > 0 {
			hasLine = true
		}
		if l.Quantity < 0 {
			return &ValidationError{Code: "order.invalid_quantity", Field: "lines", Message: "quantity must not be negative"}
		}
	}
	if !hasLine {
		return &ValidationError{Code: "order.cart_empty", Field: "lines", Message: "cart is empty"}
	}

	if req.Address.Raw == "" {
		return &ValidationError{Code: "order.address_required", Field: "address", Message: "delivery address is required"}
	}

	if req.Quote == nil {
		return &ValidationError{Code: "order.zone_unresolved", Field: "address", Message: "delivery zone could not be resolved for this address"}
	}

	// House-number heuristic: a digit anywhere in the typed address,
	// or an explicit house-number field.
	if !hasDigit.MatchString(req.Address.Raw) &&
		!hasDigit.MatchString(req.Address.Street) &&
		req.Address.HouseNumber == "" {
		return &ValidationError{Code: "order.house_number_missing", Field: "house_number", Message: "address appears to be missing a house number"}
	}

	if req.Contact.FirstName == "" || req.Contact.LastName == "" || req.Contact.Phone == "" {
		return &ValidationError{Code: "order.contact_required", Field: "contact", Message: "first name, last name and phone are required"}
	}

	return nil
}

func (s *OrderService) submitTx(ctx context.Context, req SubmitOrderRequest) (*Snapshot, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Recompute prices from the catalog (client input is untrusted) ---
	subtotal := decimal.Zero
	boxFeeEligible := false
	type frozenLine struct {
		params database.CreateOrderItemParams
	}
	var lines []frozenLine

	for i, line := range req.Lines {
		if line.Quantity <= 0 {
			continue
		}

		product, err := store.GetCatalogProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, &ValidationError{Code: "order.product_unavailable", Field: fmt.Sprintf("lines[%d]", i), Message: "product is no longer available"}
			}
			return nil, fmt.Errorf("lines[%d]: get product: %w", i, err)
		}

		unitPrice := catalog.ResolvePrice(product, line.Selections)
		subtotal = subtotal.Add(unitPrice.Mul(decimal.NewFromInt32(line.Quantity)))
		if !product.DisableBoxFee {
			boxFeeEligible = true
		}

		selections, err := json.Marshal(selectionLabels(product, line.Selections))
		if err != nil {
			return nil, fmt.Errorf("lines[%d]: marshal selections: %w", i, err)
		}

		lines = append(lines, frozenLine{params: database.CreateOrderItemParams{
			ProductID:  product.ID,
			Name:       product.Name,
			UnitPrice:  database.DecimalToNumeric(unitPrice),
			Quantity:   line.Quantity,
			Selections: selections,
		}})
	}

	if len(lines) == 0 {
		return nil, &ValidationError{Code: "order.cart_empty", Field: "lines", Message: "cart is empty"}
	}

	subtotal = subtotal.Round(2)

	// --- Minimum order per zone (pre-fee subtotal) ---
	if subtotal.LessThan(req.Quote.Zone.MinOrder) {
		shortfall := req.Quote.Zone.MinOrder.Sub(subtotal)
		return nil, &ValidationError{
			Code:      "order.minimum_not_met",
			Field:     "subtotal",
			Message:   fmt.Sprintf("order is %s below the %s zone minimum", shortfall.StringFixed(2), req.Quote.Zone.Name),
			Shortfall: shortfall,
		}
	}

	// --- Totals ---
	boxFee := decimal.Zero
	if boxFeeEligible && s.boxFee.IsPositive() {
		boxFee = s.boxFee.Round(2)
	}
	total := subtotal.Add(boxFee).Add(req.Quote.Zone.DeliveryFee).Round(2)

	if !req.DeclaredTotal.IsZero() && req.DeclaredTotal.Sub(total).Abs().GreaterThan(amountTolerance) {
		return nil, &ValidationError{
			Code:    "order.amount_mismatch",
			Field:   "amount",
			Message: fmt.Sprintf("declared amount %s does not match computed amount %s", req.DeclaredTotal.StringFixed(2), total.StringFixed(2)),
		}
	}

	// --- Persist ---
	orderType := enum.OrderTypeGuest
	customerID := pgtype.UUID{}
	if req.CustomerID != uuid.Nil {
		orderType = enum.OrderTypeRegistered
		customerID = pgtype.UUID{Bytes: req.CustomerID, Valid: true}
	}

	code, err := newTrackingCode()
	if err != nil {
		return nil, fmt.Errorf("generate tracking code: %w", err)
	}

	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		TrackingCode: code,
		CustomerID:   customerID,
		OrderType:    orderType,
		FirstName:    req.Contact.FirstName,
		LastName:     req.Contact.LastName,
		Phone:        req.Contact.Phone,
		Email:        textOrNull(req.Contact.Email),
		AddressRaw:   req.Address.Raw,
		Street:       textOrNull(req.Address.Street),
		HouseNumber:  textOrNull(req.Address.HouseNumber),
		City:         textOrNull(req.Address.City),
		PostalCode:   textOrNull(req.Address.PostalCode),
		Lat:          pgtype.Float8{Float64: req.Quote.Coordinates.Lat, Valid: true},
		Lon:          pgtype.Float8{Float64: req.Quote.Coordinates.Lon, Valid: true},
		ZoneName:     req.Quote.Zone.Name,
		DeliveryFee:  database.DecimalToNumeric(req.Quote.Zone.DeliveryFee),
		BoxFee:       database.DecimalToNumeric(boxFee),
		Subtotal:     database.DecimalToNumeric(subtotal),
		TotalAmount:  database.DecimalToNumeric(total),
		Notes:        textOrNull(req.Notes),
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	var items []database.OrderItem
	for _, l := range lines {
		l.params.OrderID = order.ID
		item, err := store.CreateOrderItem(ctx, l.params)
		if err != nil {
			return nil, fmt.Errorf("create order item: %w", err)
		}
		items = append(items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	return &Snapshot{Order: order, Items: items}, nil
}

// selectionLabels resolves selected choice codes into display labels
// for the frozen snapshot, so later catalog edits cannot change what
// the customer ordered.
func selectionLabels(p catalog.Product, selections map[string]string) map[string]string {
	labels := make(map[string]string)
	for _, opt := range p.Options {
		code, ok := selections[opt.Name]
		if !ok {
			code = opt.DefaultChoiceCode
		}
		for _, c := range opt.Choices {
			if c.Code == code {
				labels[opt.Name] = c.Label
				break
			}
		}
	}
	return labels
}

// AggregateForQuote recomputes a submission's totals without persisting
// anything, for pre-checkout display.
func (s *OrderService) AggregateForQuote(ctx context.Context, store OrderStore, lines []SubmitLine) (cart.Totals, error) {
	var cartLines []cart.Line
	for i, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		product, err := store.GetCatalogProduct(ctx, line.ProductID)
		if err != nil {
			return cart.Totals{}, fmt.Errorf("lines[%d]: get product: %w", i, err)
		}
		cartLines = append(cartLines, cart.Line{
			ProductID:     product.ID,
			ProductName:   product.Name,
			Selections:    line.Selections,
			UnitPrice:     catalog.ResolvePrice(product, line.Selections),
			Quantity:      line.Quantity,
			DisableBoxFee: product.DisableBoxFee,
		})
	}
	return cart.Aggregate(cartLines, s.boxFee), nil
}

// --- Lookup paths ---

// Requester identifies who is asking for an order: an authenticated
// account, an anonymous tracking-code + phone pair, or an admin.
type Requester struct {
	AccountID    uuid.UUID
	IsAdmin      bool
	TrackingCode string
	Phone        string
}

// CanAccess is the single capability check for order visibility.
func CanAccess(req Requester, o database.Order) bool {
	if req.IsAdmin {
		return true
	}
	if req.AccountID != uuid.Nil && o.CustomerID.Valid && uuid.UUID(o.CustomerID.Bytes) == req.AccountID {
		return true
	}
	return req.TrackingCode != "" && req.TrackingCode == o.TrackingCode &&
		req.Phone != "" && req.Phone == o.Phone
}

// TrackOrder looks an order up by tracking code and phone. Both parts
// must match exactly; any mismatch yields the same ErrNotFound.
func (s *OrderService) TrackOrder(ctx context.Context, trackingCode, phone string) (*Snapshot, error) {
	if trackingCode == "" || phone == "" {
		return nil, ErrNotFound
	}

	order, err := s.lifecycle.GetOrderByTrackingCode(ctx, trackingCode)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order by tracking code: %w", err)
	}

	if !CanAccess(Requester{TrackingCode: trackingCode, Phone: phone}, order) {
		return nil, ErrNotFound
	}

	items, err := s.lifecycle.ListOrderItemsByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &Snapshot{Order: order, Items: items}, nil
}

// ListOrdersForAccount returns all of an account's orders, newest
// first.
func (s *OrderService) ListOrdersForAccount(ctx context.Context, accountID uuid.UUID) ([]Snapshot, error) {
	orders, err := s.lifecycle.ListOrdersByCustomer(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	snapshots := make([]Snapshot, 0, len(orders))
	for _, o := range orders {
		items, err := s.lifecycle.ListOrderItemsByOrder(ctx, o.ID)
		if err != nil {
			return nil, fmt.Errorf("list order items: %w", err)
		}
		snapshots = append(snapshots, Snapshot{Order: o, Items: items})
	}
	return snapshots, nil
}

// --- Lifecycle ---

// transitions enumerates the allowed status edges. DELIVERED and
// CANCELLED are terminal.
var transitions = map[string][]string{
	enum.OrderStatusPending:        {enum.OrderStatusOutForDelivery, enum.OrderStatusCancelled},
	enum.OrderStatusOutForDelivery: {enum.OrderStatusDelivered},
}

func canTransition(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionOrder applies a status change, rejecting edges outside the
// lifecycle. Transitions out of a terminal state are an error, never a
// silent no-op.
func (s *OrderService) TransitionOrder(ctx context.Context, orderID uuid.UUID, newStatus string) (*Snapshot, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	if !canTransition(order.Status, newStatus) {
		return nil, &InvalidTransitionError{From: order.Status, To: newStatus}
	}

	updated, err := s.lifecycle.UpdateOrderStatus(ctx, database.UpdateOrderStatusParams{
		ID:     orderID,
		Status: newStatus,
	})
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}

	items, err := s.lifecycle.ListOrderItemsByOrder(ctx, updated.ID)
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	return &Snapshot{Order: updated, Items: items}, nil
}

// --- Helpers ---

// trackingAlphabet omits 0/O/1/I so codes read unambiguously over the
// phone.
const trackingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// newTrackingCode generates a short human-enterable code like
// "BV-7KQ4F2".
func newTrackingCode() (string, error) {
	buf := make([]byte, 6)
	size := big.NewInt(int64(len(trackingAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = trackingAlphabet[n.Int64()]
	}
	return "BV-" + string(buf), nil
}

// isTrackingCodeConflict checks for a unique constraint violation on
// the tracking code (pgconn error code 23505).
func isTrackingCodeConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" && pgErr.ConstraintName == "orders_tracking_code_key"
	}
	return false
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
