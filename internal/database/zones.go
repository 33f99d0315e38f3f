package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const listActiveZones = `
SELECT id, name, radius_km, delivery_fee, min_order, estimated_minutes, color, is_active
FROM delivery_zones
WHERE is_active = true
ORDER BY radius_km
`

// ListActiveZones returns zones in ascending radius order, the order
// zone selection scans them in.
func (q *Queries) ListActiveZones(ctx context.Context) ([]DeliveryZone, error) {
	rows, err := q.db.Query(ctx, listActiveZones)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []DeliveryZone
	for rows.Next() {
		var z DeliveryZone
		if err := rows.Scan(&z.ID, &z.Name, &z.RadiusKm, &z.DeliveryFee,
			&z.MinOrder, &z.EstimatedMinutes, &z.Color, &z.IsActive); err != nil {
			return nil, err
		}
		items = append(items, z)
	}
	return items, rows.Err()
}

type CreateZoneParams struct {
	Name             string
	RadiusKm         float64
	DeliveryFee      pgtype.Numeric
	MinOrder         pgtype.Numeric
	EstimatedMinutes int32
	Color            pgtype.Text
}

const createZone = `
INSERT INTO delivery_zones (name, radius_km, delivery_fee, min_order, estimated_minutes, color)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, name, radius_km, delivery_fee, min_order, estimated_minutes, color, is_active
`

func (q *Queries) CreateZone(ctx context.Context, arg CreateZoneParams) (DeliveryZone, error) {
	var z DeliveryZone
	err := q.db.QueryRow(ctx, createZone,
		arg.Name, arg.RadiusKm, arg.DeliveryFee, arg.MinOrder,
		arg.EstimatedMinutes, arg.Color,
	).Scan(&z.ID, &z.Name, &z.RadiusKm, &z.DeliveryFee,
		&z.MinOrder, &z.EstimatedMinutes, &z.Color, &z.IsActive)
	return z, err
}

type UpdateZoneParams struct {
	ID               uuid.UUID
	Name             string
	RadiusKm         float64
	DeliveryFee      pgtype.Numeric
	MinOrder         pgtype.Numeric
	EstimatedMinutes int32
	Color            pgtype.Text
}

const updateZone = `
UPDATE delivery_zones
SET name = $2, radius_km = $3, delivery_fee = $4, min_order = $5,
    estimated_minutes = $6, color = $7
WHERE id = $1 AND is_active = true
RETURNING id, name, radius_km, delivery_fee, min_order, estimated_minutes, color, is_active
`

func (q *Queries) UpdateZone(ctx context.Context, arg UpdateZoneParams) (DeliveryZone, error) {
	var z DeliveryZone
	err := q.db.QueryRow(ctx, updateZone,
		arg.ID, arg.Name, arg.RadiusKm, arg.DeliveryFee, arg.MinOrder,
		arg.EstimatedMinutes, arg.Color,
	).Scan(&z.ID, &z.Name, &z.RadiusKm, &z.DeliveryFee,
		&z.MinOrder, &z.EstimatedMinutes, &z.Color, &z.IsActive)
	return z, err
}

const softDeleteZone = `
UPDATE delivery_zones SET is_active = false
WHERE id = $1 AND is_active = true
RETURNING id
`

func (q *Queries) SoftDeleteZone(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteZone, id).Scan(&out)
	return out, err
}
