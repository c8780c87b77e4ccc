package distance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEstimator(t *testing.T, h http.HandlerFunc) *GoogleEstimator {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	g, err := NewGoogleEstimator(GoogleOptions{
		APIKey:  "AIza-test",
		BaseURL: srv.URL,
		Timeout: time.Second,
	})
	require.NoError(t, err)
	return g
}

func TestGoogleEstimator_ReturnsMeters(t *testing.T) {
	g := newTestEstimator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/maps/api/distancematrix/json", r.URL.Path)
		assert.Equal(t, "10001", r.URL.Query().Get("origins"))
		assert.Equal(t, "10002", r.URL.Query().Get("destinations"))
		assert.Equal(t, "driving", r.URL.Query().Get("mode"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"status": "OK",
			"origin_addresses": ["a"],
			"destination_addresses": ["b"],
			"rows": [{"elements": [{"status": "OK", "distance": {"text": "2 km", "value": 2000}, "duration": {"text": "5 mins", "value": 300}}]}]
		}`))
	})

	m, ok := g.Distance(context.Background(), "10001", "10002")
	require.True(t, ok)
	assert.Equal(t, 2000, m)
}

func TestGoogleEstimator_ElementNotFoundIsUnknown(t *testing.T) {
	g := newTestEstimator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"ZERO_RESULTS"}]}]}`))
	})

	_, ok := g.Distance(context.Background(), "10001", "99999")
	assert.False(t, ok)
}

func TestGoogleEstimator_UpstreamErrorIsUnknown(t *testing.T) {
	g := newTestEstimator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key","rows":[]}`))
	})

	_, ok := g.Distance(context.Background(), "10001", "10002")
	assert.False(t, ok)
}

func TestGoogleEstimator_EmptyInputIsUnknown(t *testing.T) {
	g := &GoogleEstimator{}
	_, ok := g.Distance(context.Background(), "", "10002")
	assert.False(t, ok)
}

func TestNewGoogleEstimator_RequiresKey(t *testing.T) {
	_, err := NewGoogleEstimator(GoogleOptions{})
	require.Error(t, err)
}

func TestStatic(t *testing.T) {
	s := Static{"a|b": 10}
	m, ok := s.Distance(context.Background(), "a", "b")
	assert.True(t, ok)
	assert.Equal(t, 10, m)
	_, ok = s.Distance(context.Background(), "b", "a")
	assert.False(t, ok)
}
