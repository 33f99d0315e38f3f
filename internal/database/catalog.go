package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/catalog"
)

const listActiveProducts = `
SELECT id, name, description, base_price, image_url, disable_box_fee,
       is_promotion, original_price, promotion_price, is_active,
       sort_order, created_at, updated_at
FROM products
WHERE is_active = true
ORDER BY sort_order, name
`

func (q *Queries) ListActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := q.db.Query(ctx, listActiveProducts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.ImageUrl,
			&p.DisableBoxFee, &p.IsPromotion, &p.OriginalPrice, &p.PromotionPrice,
			&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

const getProduct = `
SELECT id, name, description, base_price, image_url, disable_box_fee,
       is_promotion, original_price, promotion_price, is_active,
       sort_order, created_at, updated_at
FROM products
WHERE id = $1 AND is_active = true
`

func (q *Queries) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, getProduct, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.ImageUrl,
		&p.DisableBoxFee, &p.IsPromotion, &p.OriginalPrice, &p.PromotionPrice,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type CreateProductParams struct {
	Name           string
	Description    pgtype.Text
	BasePrice      pgtype.Numeric
	ImageUrl       pgtype.Text
	DisableBoxFee  bool
	IsPromotion    bool
	OriginalPrice  pgtype.Numeric
	PromotionPrice pgtype.Numeric
	SortOrder      int32
}

const createProduct = `
INSERT INTO products (name, description, base_price, image_url,
                      disable_box_fee, is_promotion, original_price,
                      promotion_price, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, name, description, base_price, image_url, disable_box_fee,
          is_promotion, original_price, promotion_price, is_active,
          sort_order, created_at, updated_at
`

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, createProduct,
		arg.Name, arg.Description, arg.BasePrice, arg.ImageUrl,
		arg.DisableBoxFee, arg.IsPromotion, arg.OriginalPrice,
		arg.PromotionPrice, arg.SortOrder,
	).Scan(
		&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.ImageUrl,
		&p.DisableBoxFee, &p.IsPromotion, &p.OriginalPrice, &p.PromotionPrice,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

type UpdateProductParams struct {
	ID             uuid.UUID
	Name           string
	Description    pgtype.Text
	BasePrice      pgtype.Numeric
	ImageUrl       pgtype.Text
	DisableBoxFee  bool
	IsPromotion    bool
	OriginalPrice  pgtype.Numeric
	PromotionPrice pgtype.Numeric
	SortOrder      int32
}

const updateProduct = `
UPDATE products
SET name = $2, description = $3, base_price = $4, image_url = $5,
    disable_box_fee = $6, is_promotion = $7, original_price = $8,
    promotion_price = $9, sort_order = $10, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id, name, description, base_price, image_url, disable_box_fee,
          is_promotion, original_price, promotion_price, is_active,
          sort_order, created_at, updated_at
`

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	var p Product
	err := q.db.QueryRow(ctx, updateProduct,
		arg.ID, arg.Name, arg.Description, arg.BasePrice, arg.ImageUrl,
		arg.DisableBoxFee, arg.IsPromotion, arg.OriginalPrice,
		arg.PromotionPrice, arg.SortOrder,
	).Scan(
		&p.ID, &p.Name, &p.Description, &p.BasePrice, &p.ImageUrl,
		&p.DisableBoxFee, &p.IsPromotion, &p.OriginalPrice, &p.PromotionPrice,
		&p.IsActive, &p.SortOrder, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

const softDeleteProduct = `
UPDATE products SET is_active = false, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteProduct, id).Scan(&out)
	return out, err
}

const listOptionsByProduct = `
SELECT id, product_id, name, pricing_mode, default_choice_code, sort_order, is_active
FROM product_options
WHERE product_id = $1 AND is_active = true
ORDER BY sort_order, name
`

func (q *Queries) ListOptionsByProduct(ctx context.Context, productID uuid.UUID) ([]ProductOption, error) {
	rows, err := q.db.Query(ctx, listOptionsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ProductOption
	for rows.Next() {
		var o ProductOption
		if err := rows.Scan(&o.ID, &o.ProductID, &o.Name, &o.PricingMode,
			&o.DefaultChoiceCode, &o.SortOrder, &o.IsActive); err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

type GetOptionParams struct {
	ID        uuid.UUID
	ProductID uuid.UUID
}

const getOption = `
SELECT id, product_id, name, pricing_mode, default_choice_code, sort_order, is_active
FROM product_options
WHERE id = $1 AND product_id = $2 AND is_active = true
`

func (q *Queries) GetOption(ctx context.Context, arg GetOptionParams) (ProductOption, error) {
	var o ProductOption
	err := q.db.QueryRow(ctx, getOption, arg.ID, arg.ProductID).Scan(
		&o.ID, &o.ProductID, &o.Name, &o.PricingMode,
		&o.DefaultChoiceCode, &o.SortOrder, &o.IsActive,
	)
	return o, err
}

type CreateOptionParams struct {
	ProductID         uuid.UUID
	Name              string
	PricingMode       string
	DefaultChoiceCode pgtype.Text
	SortOrder         int32
}

const createOption = `
INSERT INTO product_options (product_id, name, pricing_mode, default_choice_code, sort_order)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, product_id, name, pricing_mode, default_choice_code, sort_order, is_active
`

func (q *Queries) CreateOption(ctx context.Context, arg CreateOptionParams) (ProductOption, error) {
	var o ProductOption
	err := q.db.QueryRow(ctx, createOption,
		arg.ProductID, arg.Name, arg.PricingMode, arg.DefaultChoiceCode, arg.SortOrder,
	).Scan(&o.ID, &o.ProductID, &o.Name, &o.PricingMode,
		&o.DefaultChoiceCode, &o.SortOrder, &o.IsActive)
	return o, err
}

type UpdateOptionParams struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	Name              string
	PricingMode       string
	DefaultChoiceCode pgtype.Text
	SortOrder         int32
}

const updateOption = `
UPDATE product_options
SET name = $3, pricing_mode = $4, default_choice_code = $5, sort_order = $6
WHERE id = $1 AND product_id = $2 AND is_active = true
RETURNING id, product_id, name, pricing_mode, default_choice_code, sort_order, is_active
`

func (q *Queries) UpdateOption(ctx context.Context, arg UpdateOptionParams) (ProductOption, error) {
	var o ProductOption
	err := q.db.QueryRow(ctx, updateOption,
		arg.ID, arg.ProductID, arg.Name, arg.PricingMode,
		arg.DefaultChoiceCode, arg.SortOrder,
	).Scan(&o.ID, &o.ProductID, &o.Name, &o.PricingMode,
		&o.DefaultChoiceCode, &o.SortOrder, &o.IsActive)
	return o, err
}

type SoftDeleteOptionParams struct {
	ID        uuid.UUID
	ProductID uuid.UUID
}

const softDeleteOption = `
UPDATE product_options SET is_active = false
WHERE id = $1 AND product_id = $2 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteOption(ctx context.Context, arg SoftDeleteOptionParams) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteOption, arg.ID, arg.ProductID).Scan(&out)
	return out, err
}

const listChoicesByOption = `
SELECT id, option_id, code, label, price, image_url, sort_order, is_active
FROM option_choices
WHERE option_id = $1 AND is_active = true
ORDER BY sort_order, code
`

func (q *Queries) ListChoicesByOption(ctx context.Context, optionID uuid.UUID) ([]OptionChoice, error) {
	rows, err := q.db.Query(ctx, listChoicesByOption, optionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OptionChoice
	for rows.Next() {
		var c OptionChoice
		if err := rows.Scan(&c.ID, &c.OptionID, &c.Code, &c.Label,
			&c.Price, &c.ImageUrl, &c.SortOrder, &c.IsActive); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

type CreateChoiceParams struct {
	OptionID  uuid.UUID
	Code      string
	Label     string
	Price     pgtype.Numeric
	ImageUrl  pgtype.Text
	SortOrder int32
}

const createChoice = `
INSERT INTO option_choices (option_id, code, label, price, image_url, sort_order)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, option_id, code, label, price, image_url, sort_order, is_active
`

func (q *Queries) CreateChoice(ctx context.Context, arg CreateChoiceParams) (OptionChoice, error) {
	var c OptionChoice
	err := q.db.QueryRow(ctx, createChoice,
		arg.OptionID, arg.Code, arg.Label, arg.Price, arg.ImageUrl, arg.SortOrder,
	).Scan(&c.ID, &c.OptionID, &c.Code, &c.Label,
		&c.Price, &c.ImageUrl, &c.SortOrder, &c.IsActive)
	return c, err
}

type UpdateChoiceParams struct {
	ID        uuid.UUID
	OptionID  uuid.UUID
	Code      string
	Label     string
	Price     pgtype.Numeric
	ImageUrl  pgtype.Text
	SortOrder int32
}

const updateChoice = `
UPDATE option_choices
SET code = $3, label = $4, price = $5, image_url = $6, sort_order = $7
WHERE id = $1 AND option_id = $2 AND is_active = true
RETURNING id, option_id, code, label, price, image_url, sort_order, is_active
`

func (q *Queries) UpdateChoice(ctx context.Context, arg UpdateChoiceParams) (OptionChoice, error) {
	var c OptionChoice
	err := q.db.QueryRow(ctx, updateChoice,
		arg.ID, arg.OptionID, arg.Code, arg.Label, arg.Price, arg.ImageUrl, arg.SortOrder,
	).Scan(&c.ID, &c.OptionID, &c.Code, &c.Label,
		&c.Price, &c.ImageUrl, &c.SortOrder, &c.IsActive)
	return c, err
}

type SoftDeleteChoiceParams struct {
	ID       uuid.UUID
	OptionID uuid.UUID
}

const softDeleteChoice = `
UPDATE option_choices SET is_active = false
WHERE id = $1 AND option_id = $2 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteChoice(ctx context.Context, arg SoftDeleteChoiceParams) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteChoice, arg.ID, arg.OptionID).Scan(&out)
	return out, err
}

// GetCatalogProduct assembles a product row and its active options and
// choices into the pricing aggregate.
func (q *Queries) GetCatalogProduct(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	row, err := q.GetProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}

	options, err := q.ListOptionsByProduct(ctx, id)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("list options: %w", err)
	}

	p := catalog.Product{
		ID:             row.ID,
		Name:           row.Name,
		BasePrice:      NumericToDecimal(row.BasePrice),
		DisableBoxFee:  row.DisableBoxFee,
		IsPromotion:    row.IsPromotion,
		OriginalPrice:  NumericToDecimal(row.OriginalPrice),
		PromotionPrice: NumericToDecimal(row.PromotionPrice),
	}

	for _, o := range options {
		choices, err := q.ListChoicesByOption(ctx, o.ID)
		if err != nil {
			return catalog.Product{}, fmt.Errorf("list choices: %w", err)
		}
		opt := catalog.Option{
			ID:                o.ID,
			Name:              o.Name,
			PricingMode:       o.PricingMode,
			DefaultChoiceCode: o.DefaultChoiceCode.String,
		}
		for _, c := range choices {
			opt.Choices = append(opt.Choices, catalog.Choice{
				Code:     c.Code,
				Label:    c.Label,
				Price:    NumericToDecimal(c.Price),
				ImageURL: c.ImageUrl.String,
			})
		}
		p.Options = append(p.Options, opt)
	}

	return p, nil
}

// NumericToDecimal converts a pgtype.Numeric into a decimal, treating
// NULL or malformed values as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal into a pgtype.Numeric rounded to
// 2 decimal places.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
