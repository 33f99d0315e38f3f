package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `[
	{
		"display_name": "Hlavná 12, Bratislava, Slovakia",
		"lat": "48.1450",
		"lon": "17.1070",
		"address": {
			"road": "Hlavná",
			"house_number": "12",
			"city": "Bratislava",
			"postcode": "81101",
			"country": "Slovakia"
		}
	}
]`

func TestSearch_ParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search", r.URL.Path)
		require.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "Hlavná 12, Bratislava")
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, "Hlavná 12, Bratislava, Slovakia", results[0].DisplayName)
	assert.Equal(t, "12", results[0].Components.HouseNumber)
	assert.Equal(t, "Bratislava", results[0].Components.Locality())
	assert.InDelta(t, 48.1450, results[0].Lat, 1e-6)
	assert.InDelta(t, 17.1070, results[0].Lon, 1e-6)
}

func TestSearch_EmptyResultSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), "nowhere at all")
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	results, err := c.Search(context.Background(), "Hlavná 12")
	require.NoError(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Search(context.Background(), "Hlavná 12")
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestReverse_ParsesSingleResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse", r.URL.Path)
		w.Write([]byte(`{
			"display_name": "Obchodná 5, Bratislava, Slovakia",
			"lat": "48.1460",
			"lon": "17.1090",
			"address": {"road": "Obchodná", "house_number": "5", "city": "Bratislava"}
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	result, err := c.Reverse(context.Background(), 48.1460, 17.1090)
	require.NoError(t, err)
	assert.Equal(t, "Obchodná 5, Bratislava, Slovakia", result.DisplayName)
}
