package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/geocode"
	"github.com/bellavista-eats/api/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

var errNegativePrice = errors.New("negative price")

func parsePrice(s string) (pgtype.Numeric, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Numeric{}, err
	}
	if d.IsNegative() {
		return pgtype.Numeric{}, errNegativePrice
	}
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

func textOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}

// validationErrorBody is the JSON shape for user-correctable failures.
// Code is a stable key the storefront maps to a localized message.
type validationErrorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Field     string `json:"field,omitempty"`
	Shortfall string `json:"shortfall,omitempty"`
}

// outOfRangeBody echoes the best-known address back so the storefront
// can show what it actually resolved, not just what the user typed.
type outOfRangeBody struct {
	Error      string  `json:"error"`
	Code       string  `json:"code"`
	Field      string  `json:"field"`
	Address    string  `json:"address"`
	DistanceKm float64 `json:"distance_km"`
}

// writeServiceError maps the service/delivery error taxonomy onto HTTP
// responses. Internal details are logged, never sent to the client.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		body := validationErrorBody{Error: ve.Message, Code: ve.Code, Field: ve.Field}
		if !ve.Shortfall.IsZero() {
			body.Shortfall = ve.Shortfall.StringFixed(2)
		}
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}

	var oor *delivery.OutOfRangeError
	if errors.As(err, &oor) {
		writeJSON(w, http.StatusUnprocessableEntity, outOfRangeBody{
			Error:      "address is outside our delivery area",
			Code:       "delivery.out_of_range",
			Field:      "address",
			Address:    oor.Address,
			DistanceKm: oor.DistanceKm,
		})
		return
	}

	var ite *service.InvalidTransitionError
	if errors.As(err, &ite) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": "invalid status transition",
			"code":  "order.invalid_transition",
		})
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "order not found",
			"code":  "order.not_found",
		})
		return
	}

	if geocode.IsTransient(err) {
		log.Printf("ERROR: %s: geocoding unavailable: %v", op, err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "address lookup is temporarily unavailable",
			"code":  "delivery.lookup_unavailable",
		})
		return
	}

	log.Printf("ERROR: %s: %v", op, err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
