package server

import (
	"context"
	"errors"

	"backend-travelplanner/internal/auth"
	"backend-travelplanner/internal/config"
	"backend-travelplanner/internal/geocode"
	"backend-travelplanner/internal/itinerary"
	"backend-travelplanner/internal/logging"
	"backend-travelplanner/internal/metrics"
	"backend-travelplanner/internal/storage"
	"backend-travelplanner/internal/stream"
	"backend-travelplanner/internal/trip"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App    *fiber.App
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Stream *stream.Hub
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New(fiber.Config{
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(logging.Middleware())

	s := &Server{
		App:    app,
		Cfg:    cfg,
		DB:     db,
		Redis:  redisClient,
		Stream: stream.NewHub(context.Background(), redisClient),
	}

	registerRoutes(s)
	return s
}

// Close releases the stream subscription. The pools belong to the caller.
func (s *Server) Close() error {
	return s.Stream.Close()
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.App.Get("/metrics", metrics.Handler())

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	var geocoder geocode.Geocoder = geocode.NewClient(geocode.Options{
		APIKey:  s.Cfg.GoogleMapsKey,
		BaseURL: s.Cfg.GeocodeBaseURL,
		RPS:     s.Cfg.GeocodeRPS,
	})
	geocoder = geocode.NewCache(geocoder, s.Redis, s.Cfg.GeocodeCacheTTL)

	itineraries := itinerary.NewService(itinerary.NewPGStore(s.DB), geocoder, s.Stream)
	trips := s.App.Group("/trips")

	auth.RegisterRoutes(s.App.Group("/auth"), auth.NewService(s.Cfg.JWTSecret, s.DB))
	trip.RegisterRoutes(trips, trip.NewService(s.DB, itineraries), jwtMiddleware)
	itinerary.RegisterRoutes(trips, itineraries, jwtMiddleware)
	storage.RegisterRoutes(s.App.Group("/storage"), storage.NewService(s.DB, s.Cfg.StorageBaseURL), jwtMiddleware)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream, jwtMiddleware, itineraries.Authorize)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "internal error"
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}
	if code >= fiber.StatusInternalServerError {
		logging.Error().Err(err).Str("path", c.Path()).Int("status", code).Msg("request failed")
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
