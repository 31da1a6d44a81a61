package regrid

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/resilience"
)

const parcelBody = `{"parcels":{"type":"FeatureCollection","features":[]}}`

func newTestClient(t *testing.T, h http.HandlerFunc) *client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c := NewClient("test-token",
		WithBaseURL(srv.URL+"/"),
		WithHTTPClient(srv.Client()),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}),
	).(*client)
	c.limiter = rate.NewLimiter(rate.Inf, 1)
	return c
}

func TestByNumber_SendsCleanedNumberAndScope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/apn", r.URL.Path)
		assert.Equal(t, "0504001504", r.URL.Query().Get("parcelnumb"))
		assert.Equal(t, "Skamania", r.URL.Query().Get("county"))
		assert.Equal(t, "WA", r.URL.Query().Get("state"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, parcelBody)
	})

	body, err := c.ByNumber(context.Background(), "05-04-00-15-04", NewScope("Skamania County", " WA "))
	require.NoError(t, err)
	assert.JSONEq(t, parcelBody, string(body))
}

func TestByAddress_OmitsEmptyScope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/parcels/address", r.URL.Path)
		assert.Equal(t, "324 Dolan Rd", r.URL.Query().Get("query"))
		assert.False(t, r.URL.Query().Has("county"))
		assert.False(t, r.URL.Query().Has("state"))
		_, _ = io.WriteString(w, parcelBody)
	})

	body, err := c.ByAddress(context.Background(), " 324 Dolan Rd ", Scope{})
	require.NoError(t, err)
	assert.NotEmpty(t, body)
}

func TestLookup_NotFoundIsNoMatch(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	})

	body, err := c.ByNumber(context.Background(), "123", Scope{})
	require.NoError(t, err)
	assert.Nil(t, body)
	assert.Equal(t, int32(1), calls.Load(), "404 must not be retried")
}

func TestLookup_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, parcelBody)
	})

	body, err := c.ByAddress(context.Background(), "324 Dolan Rd", Scope{})
	require.NoError(t, err)
	assert.NotNil(t, body)
	assert.Equal(t, int32(3), calls.Load())
}

func TestLookup_PermanentStatusIsError(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	})

	body, err := c.ByNumber(context.Background(), "123", Scope{})
	require.Error(t, err)
	assert.Nil(t, body)
	assert.Equal(t, http.StatusUnauthorized, resilience.StatusCode(err))
	assert.Contains(t, err.Error(), "bad token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestLookup_ExhaustedRetriesSurfaceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.ByAddress(context.Background(), "324 Dolan Rd", Scope{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, resilience.StatusCode(err))
}

func TestLookup_ContextCancelled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, parcelBody)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ByNumber(ctx, "123", Scope{})
	assert.Error(t, err)
}

func TestNewScope(t *testing.T) {
	tests := []struct {
		county, state string
		want          Scope
	}{
		{"Skamania County", "WA", Scope{County: "Skamania", State: "WA"}},
		{"  Cowlitz county ", " wa ", Scope{County: "Cowlitz", State: "wa"}},
		{"Clark", "", Scope{County: "Clark"}},
		{"", "", Scope{}},
		{"County", "OR", Scope{County: "County", State: "OR"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NewScope(tt.county, tt.state), "county=%q", tt.county)
	}
}

func TestCleanNumber(t *testing.T) {
	assert.Equal(t, "2006161255", CleanNumber("20-0616-1255"))
	assert.Equal(t, "05040015A", CleanNumber(" 05 04 00 15 A "))
	assert.Equal(t, "", CleanNumber("--"))
}
