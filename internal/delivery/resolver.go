package delivery

import (
	"context"
	"errors"
	"sync"

	"github.com/bellavista-eats/api/internal/geocode"
)

// Status is the lifecycle of one delivery calculation.
type Status string

const (
	StatusIdle       Status = "IDLE"
	StatusGeocoding  Status = "GEOCODING"
	StatusResolved   Status = "RESOLVED"
	StatusOutOfRange Status = "OUT_OF_RANGE"
	StatusFailed     Status = "FAILED"
)

// Geocoder is the external provider collaborator.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
	Reverse(ctx context.Context, lat, lon float64) (geocode.Result, error)
}

// Request is either a free-text address, explicit coordinates, or
// both. Coordinates win when present (no forward geocoding needed).
type Request struct {
	Address     string
	Coordinates *Coordinates
}

// Quote is a successful delivery resolution.
type Quote struct {
	Zone        Zone
	DistanceKm  float64
	Address     string
	Components  geocode.Components
	Coordinates Coordinates
}

// State is a snapshot of the resolver for UI consumption. LastQuote
// survives a Failed calculation so the caller can keep showing the
// previous good result next to a recoverable error.
type State struct {
	Status    Status
	LastQuote *Quote
	Err       error
}

// Resolver turns an address or coordinate pair into a delivery quote.
// Concurrent calculations follow last-request-wins: a slow earlier
// geocoding call may finish after a newer one but must not overwrite
// its result.
type Resolver struct {
	geocoder Geocoder
	origin   Coordinates
	zones    []Zone

	mu    sync.Mutex
	gen   uint64
	state State
}

// NewResolver creates a resolver for the given restaurant origin and
// zone table. Zones are sorted by radius once up front.
func NewResolver(geocoder Geocoder, origin Coordinates, zones []Zone) *Resolver {
	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	SortZones(sorted)
	return &Resolver{
		geocoder: geocoder,
		origin:   origin,
		zones:    sorted,
		state:    State{Status: StatusIdle},
	}
}

// State returns the current snapshot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Calculate resolves a delivery request. It returns the quote or an
// error; the resolver's state only reflects the outcome if no newer
// request started in the meantime.
func (r *Resolver) Calculate(ctx context.Context, req Request) (*Quote, error) {
	r.mu.Lock()
	r.gen++
	gen := r.gen
	r.state.Status = StatusGeocoding
	r.state.Err = nil
	r.mu.Unlock()

	quote, err := r.resolve(ctx, req)
	r.commit(gen, quote, err)
	return quote, err
}

// commit records a calculation's outcome, discarding it when a newer
// request has started since.
func (r *Resolver) commit(gen uint64, quote *Quote, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.gen {
		return // superseded
	}

	switch {
	case err == nil:
		r.state = State{Status: StatusResolved, LastQuote: quote}
	case isOutOfRange(err):
		r.state = State{Status: StatusOutOfRange, Err: err}
	default:
		// Keep the previous good quote through a transient failure.
		r.state = State{Status: StatusFailed, LastQuote: r.state.LastQuote, Err: err}
	}
}

func isOutOfRange(err error) bool {
	var oor *OutOfRangeError
	return errors.As(err, &oor)
}

// resolve does the actual geocoding, distance, and zone selection.
func (r *Resolver) resolve(ctx context.Context, req Request) (*Quote, error) {
	var (
		coords     Coordinates
		address    string
		components geocode.Components
	)

	switch {
	case req.Coordinates != nil:
		coords = *req.Coordinates
		address = req.Address
		// Reverse geocoding only improves the display address; its
		// failure must not fail the calculation.
		if rev, err := r.geocoder.Reverse(ctx, coords.Lat, coords.Lon); err == nil {
			address = rev.DisplayName
			components = rev.Components
		}

	case req.Address != "":
		results, err := r.geocoder.Search(ctx, req.Address)
		if err != nil {
			return nil, err
		}
		best := results[0]
		coords = Coordinates{Lat: best.Lat, Lon: best.Lon}
		address = best.DisplayName
		components = best.Components

	default:
		return nil, errors.New("delivery: address or coordinates required")
	}

	distance := HaversineKm(r.origin, coords)
	zone, ok := SelectZone(r.zones, distance)
	if !ok {
		return nil, &OutOfRangeError{Address: address, DistanceKm: distance}
	}

	return &Quote{
		Zone:        zone,
		DistanceKm:  distance,
		Address:     address,
		Components:  components,
		Coordinates: coords,
	}, nil
}
