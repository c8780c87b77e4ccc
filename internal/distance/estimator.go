package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"googlemaps.github.io/maps"

	"voice-routing/pkg/logger"
)

// Estimator returns the travel distance in meters between two location identifiers
// (zip codes, addresses). ok is false when the distance is unknown; callers must
// exclude the candidate rather than treat it as zero.
type Estimator interface {
	Distance(ctx context.Context, origin, destination string) (meters int, ok bool)
}

// Observer receives the outcome of every upstream call. It may be nil.
type Observer interface {
	ObserveUpstream(service, operation string, err error, elapsed time.Duration)
}

var errNoRoute = errors.New("distance: no route")

// matrixClient is the subset of *maps.Client used here.
type matrixClient interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
}

// GoogleEstimator computes driving distance with the Distance Matrix API.
type GoogleEstimator struct {
	client  matrixClient
	Timeout time.Duration

	Observer Observer
}

type GoogleOptions struct {
	APIKey string
	// BaseURL overrides the API host; empty uses Google's.
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

func NewGoogleEstimator(opts GoogleOptions) (*GoogleEstimator, error) {
	if opts.APIKey == "" {
		return nil, errors.New("distance: api key required")
	}
	clientOpts := []maps.ClientOption{maps.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(opts.HTTPClient))
	}
	c, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("distance: maps client: %w", err)
	}
	return &GoogleEstimator{client: c, Timeout: opts.Timeout}, nil
}

// Distance never returns an error. Upstream failures and timeouts are logged and
// reported as unknown.
func (g *GoogleEstimator) Distance(ctx context.Context, origin, destination string) (int, bool) {
	log := logger.From(ctx).With("origin", origin, "destination", destination)
	if origin == "" || destination == "" {
		log.Warn("distance: origin and destination required")
		return 0, false
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	began := time.Now()
	meters, err := g.query(ctx, origin, destination)
	if g.Observer != nil {
		g.Observer.ObserveUpstream("maps", "distance_matrix", err, time.Since(began))
	}
	if err != nil {
		log.Warn("distance: lookup failed", "err", err)
		return 0, false
	}
	return meters, true
}

func (g *GoogleEstimator) query(ctx context.Context, origin, destination string) (int, error) {
	resp, err := g.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{origin},
		Destinations: []string{destination},
		Mode:         maps.TravelModeDriving,
	})
	if err != nil {
		return 0, err
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 || resp.Rows[0].Elements[0] == nil {
		return 0, errNoRoute
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return 0, fmt.Errorf("%w: element status %s", errNoRoute, el.Status)
	}
	return el.Distance.Meters, nil
}

// Static is a fixed distance table, used in tests and local development.
// Keys are "origin|destination"; missing pairs are unknown.
type Static map[string]int

func (s Static) Distance(ctx context.Context, origin, destination string) (int, bool) {
	m, ok := s[origin+"|"+destination]
	return m, ok
}
