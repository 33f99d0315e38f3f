package database

import (
	"context"

	"github.com/google/uuid"
)

const customerColumns = `id, email, hashed_password, first_name, last_name, phone, role, created_at`

type CreateCustomerParams struct {
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Phone          string
	Role           string
}

const createCustomer = `
INSERT INTO customers (email, hashed_password, first_name, last_name, phone, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + customerColumns

func (q *Queries) CreateCustomer(ctx context.Context, arg CreateCustomerParams) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, createCustomer,
		arg.Email, arg.HashedPassword, arg.FirstName, arg.LastName, arg.Phone, arg.Role,
	).Scan(&c.ID, &c.Email, &c.HashedPassword, &c.FirstName,
		&c.LastName, &c.Phone, &c.Role, &c.CreatedAt)
	return c, err
}

const getCustomerByEmail = `SELECT ` + customerColumns + ` FROM customers WHERE email = $1`

func (q *Queries) GetCustomerByEmail(ctx context.Context, email string) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, getCustomerByEmail, email).Scan(
		&c.ID, &c.Email, &c.HashedPassword, &c.FirstName,
		&c.LastName, &c.Phone, &c.Role, &c.CreatedAt,
	)
	return c, err
}

const getCustomerByID = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`

func (q *Queries) GetCustomerByID(ctx context.Context, id uuid.UUID) (Customer, error) {
	var c Customer
	err := q.db.QueryRow(ctx, getCustomerByID, id).Scan(
		&c.ID, &c.Email, &c.HashedPassword, &c.FirstName,
		&c.LastName, &c.Phone, &c.Role, &c.CreatedAt,
	)
	return c, err
}
