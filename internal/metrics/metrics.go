package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Reorders counts reorder submissions by result: ok, noop, invalid, forbidden, error.
	Reorders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelplanner_reorders_total",
		Help: "Itinerary reorder submissions by result.",
	}, []string{"result"})

	LocationsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "travelplanner_locations_created_total",
		Help: "Locations appended to trip itineraries.",
	})

	// GeocodeRequests counts geocode lookups by result: ok, cache_hit, not_found, rejected, error.
	GeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelplanner_geocode_requests_total",
		Help: "Geocode lookups by result.",
	}, []string{"result"})
)

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
