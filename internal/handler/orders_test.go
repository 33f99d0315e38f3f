package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/auth"
	"github.com/bellavista-eats/api/internal/catalog"
	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/enum"
	"github.com/bellavista-eats/api/internal/middleware"
	"github.com/bellavista-eats/api/internal/service"
)

const testJWTSecret = "test-secret"

// --- Mock implementations ---

// mockTx implements pgx.Tx with only the methods the service uses.
type mockTx struct{}

func (m *mockTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (m *mockTx) Commit(ctx context.Context) error          { return nil }
func (m *mockTx) Rollback(ctx context.Context) error        { return nil }
func (m *mockTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (m *mockTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (m *mockTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (m *mockTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (m *mockTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("not implemented")
}
func (m *mockTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}
func (m *mockTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}
func (m *mockTx) Conn() *pgx.Conn { panic("not implemented") }

type mockTxBeginner struct{}

func (m *mockTxBeginner) Begin(ctx context.Context) (pgx.Tx, error) {
	return &mockTx{}, nil
}

// mockOrderStore implements service.OrderStore over an in-memory
// catalog, recording what gets persisted.
type mockOrderStore struct {
	products map[uuid.UUID]catalog.Product
	orders   map[uuid.UUID]database.Order
	items    map[uuid.UUID][]database.OrderItem
}

func newMockOrderStore() *mockOrderStore {
	return &mockOrderStore{
		products: make(map[uuid.UUID]catalog.Product),
		orders:   make(map[uuid.UUID]database.Order),
		items:    make(map[uuid.UUID][]database.OrderItem),
	}
}

func (m *mockOrderStore) GetCatalogProduct(_ context.Context, id uuid.UUID) (catalog.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return catalog.Product{}, pgx.ErrNoRows
	}
	return p, nil
}

func (m *mockOrderStore) CreateOrder(_ context.Context, arg database.CreateOrderParams) (database.Order, error) {
	o := database.Order{
		ID:           uuid.New(),
		CreatedAt:    time.Now().Add(time.Duration(len(m.orders)) * time.Second),
		TrackingCode: arg.TrackingCode,
		CustomerID:   arg.CustomerID,
		OrderType:    arg.OrderType,
		Status:       enum.OrderStatusPending,
		FirstName:    arg.FirstName,
		LastName:     arg.LastName,
		Phone:        arg.Phone,
		AddressRaw:   arg.AddressRaw,
		ZoneName:     arg.ZoneName,
		DeliveryFee:  arg.DeliveryFee,
		BoxFee:       arg.BoxFee,
		Subtotal:     arg.Subtotal,
		TotalAmount:  arg.TotalAmount,
	}
	m.orders[o.ID] = o
	return o, nil
}

func (m *mockOrderStore) CreateOrderItem(_ context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	item := database.OrderItem{
		ID:         uuid.New(),
		OrderID:    arg.OrderID,
		ProductID:  arg.ProductID,
		Name:       arg.Name,
		UnitPrice:  arg.UnitPrice,
		Quantity:   arg.Quantity,
		Selections: arg.Selections,
	}
	m.items[arg.OrderID] = append(m.items[arg.OrderID], item)
	return item, nil
}

// mockLifecycleStore implements service.LifecycleStore over the same
// maps as the order store.
type mockLifecycleStore struct {
	store *mockOrderStore
}

func (m *mockLifecycleStore) GetOrder(_ context.Context, id uuid.UUID) (database.Order, error) {
	o, ok := m.store.orders[id]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	return o, nil
}

func (m *mockLifecycleStore) GetOrderByTrackingCode(_ context.Context, code string) (database.Order, error) {
	for _, o := range m.store.orders {
		if o.TrackingCode == code {
			return o, nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockLifecycleStore) ListOrdersByCustomer(_ context.Context, customerID uuid.UUID) ([]database.Order, error) {
	var result []database.Order
	for _, o := range m.store.orders {
		if o.CustomerID.Valid && uuid.UUID(o.CustomerID.Bytes) == customerID {
			result = append(result, o)
		}
	}
	// Newest first, like the SQL query
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (m *mockLifecycleStore) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.store.items[orderID], nil
}

func (m *mockLifecycleStore) UpdateOrderStatus(_ context.Context, arg database.UpdateOrderStatusParams) (database.Order, error) {
	o, ok := m.store.orders[arg.ID]
	if !ok {
		return database.Order{}, pgx.ErrNoRows
	}
	o.Status = arg.Status
	m.store.orders[arg.ID] = o
	return o, nil
}

// mockQuoter returns a configurable quote.
type mockQuoter struct {
	quoteFn func(ctx context.Context, req delivery.Request) (*delivery.Quote, error)
}

func (m *mockQuoter) Quote(ctx context.Context, req delivery.Request) (*delivery.Quote, error) {
	return m.quoteFn(ctx, req)
}

// mockNotifier records status change notifications.
type mockNotifier struct {
	notified []database.Order
}

func (m *mockNotifier) NotifyStatusChanged(order database.Order) {
	m.notified = append(m.notified, order)
}

// mockAdminStore implements AdminOrderStore over the shared maps.
type mockAdminStore struct {
	store *mockOrderStore
}

func (m *mockAdminStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	var result []database.Order
	for _, o := range m.store.orders {
		if arg.Status.Valid && o.Status != arg.Status.String {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

func (m *mockAdminStore) ListOrderItemsByOrder(_ context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.store.items[orderID], nil
}

// --- Test fixtures ---

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testPizza(id uuid.UUID) catalog.Product {
	return catalog.Product{
		ID:        id,
		Name:      "Margherita",
		BasePrice: dec("8.00"),
		Options: []catalog.Option{
			{
				Name:              "Size",
				PricingMode:       enum.PricingModeOverride,
				DefaultChoiceCode: "M",
				Choices: []catalog.Choice{
					{Code: "M", Label: "Medium", Price: dec("8.00")},
					{Code: "L", Label: "Large", Price: dec("10.00")},
				},
			},
		},
	}
}

func goodQuote() *delivery.Quote {
	return &delivery.Quote{
		Zone: delivery.Zone{
			Name:             "Far",
			RadiusKm:         7,
			DeliveryFee:      dec("2.50"),
			MinOrder:         dec("12.00"),
			EstimatedMinutes: 45,
		},
		DistanceKm:  5.2,
		Address:     "Pekná 4, Bratislava",
		Coordinates: delivery.Coordinates{Lat: 48.19, Lon: 17.10},
	}
}

type orderTestEnv struct {
	handler  *OrderHandler
	store    *mockOrderStore
	notifier *mockNotifier
	quoter   *mockQuoter
	router   chi.Router
}

func newOrderTestEnv(t *testing.T) *orderTestEnv {
	t.Helper()

	store := newMockOrderStore()
	lifecycle := &mockLifecycleStore{store: store}
	quoter := &mockQuoter{
		quoteFn: func(ctx context.Context, req delivery.Request) (*delivery.Quote, error) {
			return goodQuote(), nil
		},
	}
	notifier := &mockNotifier{}

	svc := service.NewOrderService(
		&mockTxBeginner{},
		func(db database.DBTX) service.OrderStore { return store },
		lifecycle,
		dec("0.50"),
	)
	h := NewOrderHandler(svc, store, &mockAdminStore{store: store}, quoter, notifier)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.OptionalAuthenticate(testJWTSecret))
		r.Route("/orders", h.RegisterPublicRoutes)
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testJWTSecret))
		r.Route("/me", h.RegisterAccountRoutes)
	})
	r.Route("/admin/orders", h.RegisterAdminRoutes)

	return &orderTestEnv{handler: h, store: store, notifier: notifier, quoter: quoter, router: r}
}

func submitBody(productID uuid.UUID, quantity int32) map[string]any {
	return map[string]any{
		"first_name": "Jana",
		"last_name":  "Nováková",
		"phone":      "+421900111222",
		"address":    map[string]any{"raw": "Pekná 4, Bratislava"},
		"lines": []map[string]any{
			{
				"product_id": productID,
				"selections": map[string]string{"Size": "L"},
				"quantity":   quantity,
			},
		},
	}
}

func doJSON(t *testing.T, router chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return doJSONAs(t, router, method, path, "", body)
}

func doJSONAs(t *testing.T, router chi.Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// --- Tests ---

func TestSubmitGuestOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	rec := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !strings.HasPrefix(resp.TrackingCode, "BV-") {
		t.Errorf("tracking code %q missing BV- prefix", resp.TrackingCode)
	}
	if resp.Status != enum.OrderStatusPending {
		t.Errorf("expected PENDING, got %s", resp.Status)
	}
	if resp.OrderType != enum.OrderTypeGuest {
		t.Errorf("expected GUEST, got %s", resp.OrderType)
	}
	// 2 x Large 10.00 = 20.00, box fee 0.50, delivery 2.50
	if resp.Subtotal != "20.00" || resp.BoxFee != "0.50" || resp.TotalAmount != "23.00" {
		t.Errorf("wrong totals: subtotal=%s box=%s total=%s", resp.Subtotal, resp.BoxFee, resp.TotalAmount)
	}
	if len(resp.Items) != 1 || resp.Items[0].UnitPrice != "10.00" {
		t.Errorf("wrong items: %+v", resp.Items)
	}
}

func TestSubmitEmptyCart(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	body := submitBody(productID, 0)
	rec := doJSON(t, env.router, http.MethodPost, "/orders", body)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp validationErrorBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "order.cart_empty" {
		t.Errorf("expected code order.cart_empty, got %s", resp.Code)
	}
	if len(env.store.orders) != 0 {
		t.Error("no order should have been persisted")
	}
}

func TestSubmitOutOfRangeAddress(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)
	env.quoter.quoteFn = func(ctx context.Context, req delivery.Request) (*delivery.Quote, error) {
		return nil, &delivery.OutOfRangeError{Address: req.Address, DistanceKm: 25}
	}

	rec := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp outOfRangeBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "delivery.out_of_range" {
		t.Errorf("expected code delivery.out_of_range, got %s", resp.Code)
	}
	if resp.Address != "Pekná 4, Bratislava" {
		t.Errorf("expected the address echoed back, got %q", resp.Address)
	}
}

func TestSubmitBelowZoneMinimum(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	// 1 x Large = 10.00, zone minimum 12.00
	rec := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 1))

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp validationErrorBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "order.minimum_not_met" {
		t.Errorf("expected code order.minimum_not_met, got %s", resp.Code)
	}
	if resp.Shortfall != "2.00" {
		t.Errorf("expected shortfall 2.00, got %s", resp.Shortfall)
	}
}

func TestCartQuote(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	body := map[string]any{
		"lines": []map[string]any{
			{"product_id": productID, "selections": map[string]string{"Size": "L"}, "quantity": 2},
		},
	}
	rec := doJSON(t, env.router, http.MethodPost, "/orders/quote", body)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp cartQuoteResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Subtotal != "20.00" || resp.BoxFee != "0.50" || resp.Total != "20.50" {
		t.Errorf("wrong totals: %+v", resp)
	}
}

func TestCartQuoteProductGone(t *testing.T) {
	env := newOrderTestEnv(t)

	body := map[string]any{
		"lines": []map[string]any{
			{"product_id": uuid.New(), "quantity": 1},
		},
	}
	rec := doJSON(t, env.router, http.MethodPost, "/orders/quote", body)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var resp validationErrorBody
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Code != "order.product_unavailable" {
		t.Errorf("expected code order.product_unavailable, got %s", resp.Code)
	}
}

func TestTrackOrder(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	created := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))
	var order orderResponse
	json.Unmarshal(created.Body.Bytes(), &order)

	rec := doJSON(t, env.router, http.MethodGet,
		fmt.Sprintf("/orders/track?code=%s&phone=%s", order.TrackingCode, "%2B421900111222"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Wrong phone reads as not found, indistinguishable from a wrong code
	rec = doJSON(t, env.router, http.MethodGet,
		fmt.Sprintf("/orders/track?code=%s&phone=%s", order.TrackingCode, "%2B421999999999"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for wrong phone, got %d", rec.Code)
	}
}

func TestMyOrdersNewestFirst(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	customerID := uuid.New()
	token, err := auth.GenerateToken(testJWTSecret, customerID, enum.RoleCustomer)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	// Two orders on the account, one guest order that must not appear
	first := doJSONAs(t, env.router, http.MethodPost, "/orders", token, submitBody(productID, 2))
	second := doJSONAs(t, env.router, http.MethodPost, "/orders", token, submitBody(productID, 3))
	doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))

	var firstOrder, secondOrder orderResponse
	json.Unmarshal(first.Body.Bytes(), &firstOrder)
	json.Unmarshal(second.Body.Bytes(), &secondOrder)

	rec := doJSONAs(t, env.router, http.MethodGet, "/me/orders", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp []orderResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp) != 2 {
		t.Fatalf("expected 2 orders on the account, got %d", len(resp))
	}
	if resp[0].TrackingCode != secondOrder.TrackingCode || resp[1].TrackingCode != firstOrder.TrackingCode {
		t.Errorf("expected newest first (%s, %s), got (%s, %s)",
			secondOrder.TrackingCode, firstOrder.TrackingCode,
			resp[0].TrackingCode, resp[1].TrackingCode)
	}
	for _, o := range resp {
		if o.OrderType != enum.OrderTypeRegistered {
			t.Errorf("expected REGISTERED order, got %s", o.OrderType)
		}
		if len(o.Items) != 1 {
			t.Errorf("expected items on order %s, got %d", o.TrackingCode, len(o.Items))
		}
	}

	// No token means no history
	rec = doJSON(t, env.router, http.MethodGet, "/me/orders", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestUpdateStatusNotifies(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	created := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))
	var order orderResponse
	json.Unmarshal(created.Body.Bytes(), &order)

	rec := doJSON(t, env.router, http.MethodPatch,
		"/admin/orders/"+order.ID.String()+"/status",
		map[string]string{"status": enum.OrderStatusOutForDelivery})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated orderResponse
	json.Unmarshal(rec.Body.Bytes(), &updated)
	if updated.Status != enum.OrderStatusOutForDelivery {
		t.Errorf("expected OUT_FOR_DELIVERY, got %s", updated.Status)
	}
	if len(env.notifier.notified) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(env.notifier.notified))
	}
	if env.notifier.notified[0].Status != enum.OrderStatusOutForDelivery {
		t.Errorf("notification carries wrong status: %s", env.notifier.notified[0].Status)
	}
}

func TestUpdateStatusInvalidTransition(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	created := doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))
	var order orderResponse
	json.Unmarshal(created.Body.Bytes(), &order)

	// PENDING -> DELIVERED skips OUT_FOR_DELIVERY
	rec := doJSON(t, env.router, http.MethodPatch,
		"/admin/orders/"+order.ID.String()+"/status",
		map[string]string{"status": enum.OrderStatusDelivered})

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	if len(env.notifier.notified) != 0 {
		t.Error("rejected transition must not notify")
	}
}

func TestAdminListFiltersByStatus(t *testing.T) {
	env := newOrderTestEnv(t)
	productID := uuid.New()
	env.store.products[productID] = testPizza(productID)

	for i := 0; i < 3; i++ {
		doJSON(t, env.router, http.MethodPost, "/orders", submitBody(productID, 2))
	}
	// Move one along
	var anyID uuid.UUID
	for id := range env.store.orders {
		anyID = id
		break
	}
	doJSON(t, env.router, http.MethodPatch,
		"/admin/orders/"+anyID.String()+"/status",
		map[string]string{"status": enum.OrderStatusOutForDelivery})

	rec := doJSON(t, env.router, http.MethodGet, "/admin/orders?status=PENDING", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp []orderResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if len(resp) != 2 {
		t.Errorf("expected 2 pending orders, got %d", len(resp))
	}

	rec = doJSON(t, env.router, http.MethodGet, "/admin/orders?status=BOGUS", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad status filter, got %d", rec.Code)
	}
}

func TestAdminListRejectsBadPagination(t *testing.T) {
	env := newOrderTestEnv(t)

	cases := []string{
		"/admin/orders?limit=0",
		"/admin/orders?limit=201",
		"/admin/orders?offset=-1",
		"/admin/orders?offset=abc",
		// Larger than int32; must not wrap into a negative offset
		"/admin/orders?offset=2147483648",
	}
	for _, path := range cases {
		rec := doJSON(t, env.router, http.MethodGet, path, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	rec := doJSON(t, env.router, http.MethodGet, "/admin/orders?limit=200&offset=2147483647", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for in-range pagination, got %d", rec.Code)
	}
}
