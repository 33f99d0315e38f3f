package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bellavista-eats/api/internal/geocode"
)

// --- Mock geocoder ---

type mockGeocoder struct {
	searchFn  func(ctx context.Context, query string) ([]geocode.Result, error)
	reverseFn func(ctx context.Context, lat, lon float64) (geocode.Result, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string) ([]geocode.Result, error) {
	return m.searchFn(ctx, query)
}

func (m *mockGeocoder) Reverse(ctx context.Context, lat, lon float64) (geocode.Result, error) {
	if m.reverseFn == nil {
		return geocode.Result{}, errors.New("reverse unavailable")
	}
	return m.reverseFn(ctx, lat, lon)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// bratislava is the test restaurant origin.
var bratislava = Coordinates{Lat: 48.1486, Lon: 17.1077}

func testZones() []Zone {
	return []Zone{
		{Name: "Near", RadiusKm: 3, DeliveryFee: dec("1.00"), MinOrder: dec("10.00"), EstimatedMinutes: 30},
		{Name: "Far", RadiusKm: 7, DeliveryFee: dec("2.50"), MinOrder: dec("15.00"), EstimatedMinutes: 45},
	}
}

// pointAtKm returns coordinates roughly the given distance north of the
// origin. One degree of latitude is ~111.19 km on the sphere used by
// HaversineKm.
func pointAtKm(km float64) Coordinates {
	return Coordinates{Lat: bratislava.Lat + km/111.19, Lon: bratislava.Lon}
}

// --- Zone selection ---

func TestSelectZone_PicksSmallestCoveringRadius(t *testing.T) {
	zones := testZones()

	zone, ok := SelectZone(zones, 5.2)
	if !ok {
		t.Fatal("expected a zone")
	}
	if zone.Name != "Far" || !zone.DeliveryFee.Equal(dec("2.50")) {
		t.Fatalf("expected Far zone at 2.50, got %s at %s", zone.Name, zone.DeliveryFee)
	}
}

func TestSelectZone_OutOfRange(t *testing.T) {
	if _, ok := SelectZone(testZones(), 7.01); ok {
		t.Fatal("expected no zone beyond the largest radius")
	}
}

func TestSelectZone_Monotonic(t *testing.T) {
	zones := testZones()
	prevRadius := 0.0
	for _, d := range []float64{0.5, 1.0, 2.9, 3.0, 3.1, 5.0, 6.9, 7.0} {
		zone, ok := SelectZone(zones, d)
		if !ok {
			t.Fatalf("distance %.1f unexpectedly out of range", d)
		}
		if zone.RadiusKm < prevRadius {
			t.Fatalf("zone radius decreased at distance %.1f", d)
		}
		prevRadius = zone.RadiusKm
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	got := HaversineKm(bratislava, pointAtKm(5.2))
	if got < 5.1 || got > 5.3 {
		t.Fatalf("expected ~5.2 km, got %.3f", got)
	}
}

// --- Resolver ---

func TestCalculate_FreeTextAddress(t *testing.T) {
	target := pointAtKm(5.2)
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string) ([]geocode.Result, error) {
			return []geocode.Result{{
				DisplayName: "Pekná 4, Bratislava",
				Lat:         target.Lat,
				Lon:         target.Lon,
				Components:  geocode.Components{Road: "Pekná", HouseNumber: "4"},
			}}, nil
		},
	}
	r := NewResolver(geo, bratislava, testZones())

	quote, err := r.Calculate(context.Background(), Request{Address: "Pekná 4"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if quote.Zone.Name != "Far" {
		t.Fatalf("expected Far zone, got %s", quote.Zone.Name)
	}
	if quote.Address != "Pekná 4, Bratislava" {
		t.Fatalf("unexpected canonical address %q", quote.Address)
	}
	if st := r.State(); st.Status != StatusResolved || st.LastQuote == nil {
		t.Fatalf("expected Resolved state with quote, got %+v", st)
	}
}

func TestCalculate_Idempotent(t *testing.T) {
	target := pointAtKm(2.0)
	geo := &mockGeocoder{
		reverseFn: func(ctx context.Context, lat, lon float64) (geocode.Result, error) {
			return geocode.Result{DisplayName: "Somewhere", Lat: lat, Lon: lon}, nil
		},
	}
	r := NewResolver(geo, bratislava, testZones())

	first, err := r.Calculate(context.Background(), Request{Coordinates: &target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := r.Calculate(context.Background(), Request{Coordinates: &target})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Zone.Name != second.Zone.Name || !first.Zone.DeliveryFee.Equal(second.Zone.DeliveryFee) {
		t.Fatalf("same coordinates produced different zones: %+v vs %+v", first.Zone, second.Zone)
	}
}

func TestCalculate_OutOfRangeKeepsAddress(t *testing.T) {
	target := pointAtKm(12)
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string) ([]geocode.Result, error) {
			return []geocode.Result{{DisplayName: "Ďaleká 99, Senec", Lat: target.Lat, Lon: target.Lon}}, nil
		},
	}
	r := NewResolver(geo, bratislava, testZones())

	_, err := r.Calculate(context.Background(), Request{Address: "Ďaleká 99"})
	var oor *OutOfRangeError
	if !errors.As(err, &oor) {
		t.Fatalf("expected OutOfRangeError, got %v", err)
	}
	if oor.Address != "Ďaleká 99, Senec" {
		t.Fatalf("expected the geocoded address to survive, got %q", oor.Address)
	}
	if st := r.State(); st.Status != StatusOutOfRange {
		t.Fatalf("expected OutOfRange state, got %s", st.Status)
	}
}

func TestCalculate_FailureKeepsLastGoodQuote(t *testing.T) {
	target := pointAtKm(2.0)
	failing := false
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string) ([]geocode.Result, error) {
			if failing {
				return nil, &geocode.TransientError{Err: errors.New("timeout")}
			}
			return []geocode.Result{{DisplayName: "Pekná 4", Lat: target.Lat, Lon: target.Lon}}, nil
		},
	}
	r := NewResolver(geo, bratislava, testZones())

	if _, err := r.Calculate(context.Background(), Request{Address: "Pekná 4"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	failing = true
	if _, err := r.Calculate(context.Background(), Request{Address: "Pekná 4 again"}); err == nil {
		t.Fatal("expected transient failure")
	}

	st := r.State()
	if st.Status != StatusFailed {
		t.Fatalf("expected Failed state, got %s", st.Status)
	}
	if st.LastQuote == nil || st.LastQuote.Zone.Name != "Near" {
		t.Fatal("previous resolved quote must survive a failed calculation")
	}
}

func TestCalculate_StaleResponseDiscarded(t *testing.T) {
	near := pointAtKm(1.0)
	far := pointAtKm(5.0)

	release := make(chan struct{})
	geo := &mockGeocoder{
		searchFn: func(ctx context.Context, query string) ([]geocode.Result, error) {
			if query == "slow" {
				<-release
				return []geocode.Result{{DisplayName: "Slow result", Lat: far.Lat, Lon: far.Lon}}, nil
			}
			return []geocode.Result{{DisplayName: "Fast result", Lat: near.Lat, Lon: near.Lon}}, nil
		},
	}
	r := NewResolver(geo, bratislava, testZones())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Calculate(context.Background(), Request{Address: "slow"})
	}()

	// The user edited the address again; this newer request resolves
	// first.
	time.Sleep(20 * time.Millisecond)
	if _, err := r.Calculate(context.Background(), Request{Address: "fast"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Let the earlier call finish late.
	close(release)
	wg.Wait()

	st := r.State()
	if st.Status != StatusResolved {
		t.Fatalf("expected Resolved state, got %s", st.Status)
	}
	if st.LastQuote.Address != "Fast result" {
		t.Fatalf("stale geocoding result overwrote the newer one: %q", st.LastQuote.Address)
	}
}

// --- Debouncer ---

func TestDebouncer_CoalescesRapidTriggers(t *testing.T) {
	var mu sync.Mutex
	fired := 0

	d := NewDebouncer(30 * time.Millisecond)
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			mu.Lock()
			fired++
			mu.Unlock()
		})
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("expected exactly one invocation, got %d", fired)
	}
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	var mu sync.Mutex
	fired := 0

	d := NewDebouncer(20 * time.Millisecond)
	d.Trigger(func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})
	d.Stop()

	time.Sleep(60 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatalf("expected no invocation after Stop, got %d", fired)
	}
}
