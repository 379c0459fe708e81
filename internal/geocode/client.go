// Package geocode resolves free-text addresses to coordinates through the
// Google Geocoding API.
package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"backend-travelplanner/internal/logging"
	"backend-travelplanner/internal/metrics"
	"backend-travelplanner/internal/shared/apperr"
	"backend-travelplanner/internal/shared/geo"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// Geocoder is what the itinerary needs from a geocoding backend.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, error)
}

type Options struct {
	APIKey  string
	BaseURL string
	// RPS caps outbound requests per second. Zero disables the limiter.
	RPS        float64
	HTTPClient *http.Client
}

type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[geo.Point]
}

// errUnresolved marks answers where Google worked but found nothing. The
// breaker counts them as successes.
var errUnresolved = errors.New("no geocoding results")

type response struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	var limiter *rate.Limiter
	if opts.RPS > 0 {
		burst := int(opts.RPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RPS), burst)
	}

	cb := gobreaker.NewCircuitBreaker[geo.Point](gobreaker.Settings{
		Name:        "google-geocode",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errUnresolved)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("geocode circuit state change")
		},
	})

	return &Client{
		apiKey:  opts.APIKey,
		baseURL: opts.BaseURL,
		http:    httpClient,
		limiter: limiter,
		cb:      cb,
	}
}

func (c *Client) Geocode(ctx context.Context, address string) (geo.Point, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return geo.Point{}, apperr.Validation("address", "is required")
	}
	if c.apiKey == "" {
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return geo.Point{}, apperr.Geocode("geocoding is not configured", nil)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			metrics.GeocodeRequests.WithLabelValues("rejected").Inc()
			return geo.Point{}, apperr.Geocode("geocoding unavailable", err)
		}
	}

	point, err := c.cb.Execute(func() (geo.Point, error) {
		return c.lookup(ctx, address)
	})
	switch {
	case err == nil:
		metrics.GeocodeRequests.WithLabelValues("ok").Inc()
		return point, nil
	case errors.Is(err, errUnresolved):
		metrics.GeocodeRequests.WithLabelValues("not_found").Inc()
		return geo.Point{}, apperr.Geocode("address could not be resolved", err)
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.GeocodeRequests.WithLabelValues("rejected").Inc()
		return geo.Point{}, apperr.Geocode("geocoding unavailable", err)
	default:
		metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return geo.Point{}, apperr.Geocode("geocoding failed", err)
	}
}

func (c *Client) lookup(ctx context.Context, address string) (geo.Point, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return geo.Point{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return geo.Point{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return geo.Point{}, fmt.Errorf("geocode http status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return geo.Point{}, fmt.Errorf("decode geocode response: %w", err)
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return geo.Point{}, errUnresolved
	default:
		return geo.Point{}, fmt.Errorf("geocode status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 {
		return geo.Point{}, errUnresolved
	}
	loc := body.Results[0].Geometry.Location
	return geo.Point{Lat: loc.Lat, Lng: loc.Lng}, nil
}
