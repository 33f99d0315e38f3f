package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type Customer struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string
	Phone          string
	Role           string
	CreatedAt      time.Time
}

type Product struct {
	ID             uuid.UUID
	Name           string
	Description    pgtype.Text
	BasePrice      pgtype.Numeric
	ImageUrl       pgtype.Text
	DisableBoxFee  bool
	IsPromotion    bool
	OriginalPrice  pgtype.Numeric
	PromotionPrice pgtype.Numeric
	IsActive       bool
	SortOrder      int32
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type ProductOption struct {
	ID                uuid.UUID
	ProductID         uuid.UUID
	Name              string
	PricingMode       string
	DefaultChoiceCode pgtype.Text
	SortOrder         int32
	IsActive          bool
}

type OptionChoice struct {
	ID        uuid.UUID
	OptionID  uuid.UUID
	Code      string
	Label     string
	Price     pgtype.Numeric
	ImageUrl  pgtype.Text
	SortOrder int32
	IsActive  bool
}

type DeliveryZone struct {
	ID               uuid.UUID
	Name             string
	RadiusKm         float64
	DeliveryFee      pgtype.Numeric
	MinOrder         pgtype.Numeric
	EstimatedMinutes int32
	Color            pgtype.Text
	IsActive         bool
}

type Order struct {
	ID           uuid.UUID
	TrackingCode string
	CustomerID   pgtype.UUID
	OrderType    string
	Status       string
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
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem is a frozen line snapshot: name, price, and selections are
// captured at order time and do not follow later catalog edits.
type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	ProductID  uuid.UUID
	Name       string
	UnitPrice  pgtype.Numeric
	Quantity   int32
	Selections []byte // jsonb map of option name -> choice label
}
