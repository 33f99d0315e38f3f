package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, tracking_code, customer_id, order_type, status,
       first_name, last_name, phone, email, address_raw, street,
       house_number, city, postal_code, lat, lon, zone_name,
       delivery_fee, box_fee, subtotal, total_amount, notes,
       created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID, &o.TrackingCode, &o.CustomerID, &o.OrderType, &o.Status,
		&o.FirstName, &o.LastName, &o.Phone, &o.Email, &o.AddressRaw,
		&o.Street, &o.HouseNumber, &o.City, &o.PostalCode, &o.Lat, &o.Lon,
		&o.ZoneName, &o.DeliveryFee, &o.BoxFee, &o.Subtotal, &o.TotalAmount,
		&o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}

type CreateOrderParams struct {
	TrackingCode string
	CustomerID   pgtype.UUID
	OrderType    string
	FirstName    string
	LastName     string
	Phone        string
	Email        pgtype.Text
	AddressRaw   string
	Street       pgtype.Text
	HouseNumber  pgtype.Text
	City         pgtype.Text
	PostalCode   pgtype.Text
	Lat          pgtype.Float8
	Lon          pgtype.Float8
	ZoneName     string
	DeliveryFee  pgtype.Numeric
	BoxFee       pgtype.Numeric
	Subtotal     pgtype.Numeric
	TotalAmount  pgtype.Numeric
	Notes        pgtype.Text
}

const createOrder = `
INSERT INTO orders (tracking_code, customer_id, order_type,
                    first_name, last_name, phone, email, address_raw,
                    street, house_number, city, postal_code, lat, lon,
                    zone_name, delivery_fee, box_fee, subtotal,
                    total_amount, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.TrackingCode, arg.CustomerID, arg.OrderType,
		arg.FirstName, arg.LastName, arg.Phone, arg.Email, arg.AddressRaw,
		arg.Street, arg.HouseNumber, arg.City, arg.PostalCode, arg.Lat, arg.Lon,
		arg.ZoneName, arg.DeliveryFee, arg.BoxFee, arg.Subtotal,
		arg.TotalAmount, arg.Notes,
	))
}

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Selections []byte
}

const createOrderItem = `
INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, selections)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, order_id, product_id, name, unit_price, quantity, selections
`

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	var it OrderItem
	err := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.ProductID, arg.Name, arg.UnitPrice, arg.Quantity, arg.Selections,
	).Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name,
		&it.UnitPrice, &it.Quantity, &it.Selections)
	return it, err
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderByTrackingCode = `SELECT ` + orderColumns + ` FROM orders WHERE tracking_code = $1`

func (q *Queries) GetOrderByTrackingCode(ctx context.Context, trackingCode string) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderByTrackingCode, trackingCode))
}

const listOrdersByCustomer = `
SELECT ` + orderColumns + `
FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListOrdersByCustomer(ctx context.Context, customerID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByCustomer, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type ListOrdersParams struct {
	Status pgtype.Text
	Limit  int32
	Offset int32
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE ($1::text IS NULL OR status = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, product_id, name, unit_price, quantity, selections
FROM order_items
WHERE order_id = $1
ORDER BY id
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name,
			&it.UnitPrice, &it.Quantity, &it.Selections); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type UpdateOrderStatusParams struct {
	ID     uuid.UUID
	Status string
}

const updateOrderStatus = `
UPDATE orders SET status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status))
}
