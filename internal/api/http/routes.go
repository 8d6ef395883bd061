package httpapi

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-api-wrapper/internal/scheduler"
	"github.com/i474232898/weather-api-wrapper/internal/weather"
)

const serviceName = "weather-api-wrapper"

var validate = validator.New()

// WeatherService is the read-through lookup the routes expose.
type WeatherService interface {
	Lookup(ctx context.Context, location string) (weather.LookupResult, error)
}

// HealthReporter reports the last cache store probe.
type HealthReporter interface {
	Status() scheduler.Status
}

// NewApp builds the Fiber app with middleware, error handling and routes.
// health may be nil.
func NewApp(service WeatherService, health HealthReporter, log zerolog.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          errorHandler(log.With().Str("component", "HTTP").Logger()),
	})

	// Global middleware
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(recover.New())

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to the weather API wrapper service",
		})
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		resp := fiber.Map{
			"status":  "ok",
			"service": serviceName,
		}
		if health != nil {
			st := health.Status()
			if !st.Healthy {
				resp["status"] = "degraded"
			}
			resp["cache"] = st
		}
		return c.JSON(resp)
	})

	RegisterRoutes(app, service)
	return app
}

// RegisterRoutes wires the weather handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService) {
	v1 := app.Group("/api/v1/weather")

	v1.Get("/:location?", func(c *fiber.Ctx) error {
		req, err := parseLocationParam(c)
		if err != nil {
			return err
		}

		result, err := service.Lookup(c.UserContext(), req.Location)
		if err != nil {
			return err
		}

		return c.JSON(lookupResponse{
			Cached: result.Cached(),
			Data:   result.Snapshot,
		})
	})
}

type lookupResponse struct {
	Cached bool             `json:"cached"`
	Data   weather.Snapshot `json:"data"`
}

// locationParam holds the location path parameter.
type locationParam struct {
	Location string `validate:"max=256"`
}

func parseLocationParam(c *fiber.Ctx) (locationParam, error) {
	var p locationParam

	raw, err := url.PathUnescape(c.Params("location"))
	if err != nil {
		return p, fiber.NewError(fiber.StatusBadRequest, "location is not a valid path segment")
	}
	// Params are only valid for the lifetime of the handler.
	p.Location = utils.CopyString(raw)

	if err := validate.Struct(p); err != nil {
		return p, fiber.NewError(fiber.StatusBadRequest, "location must be at most 256 characters")
	}
	return p, nil
}

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// errorHandler maps lookup failures onto status codes and a uniform body.
func errorHandler(log zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code, message := classify(err)

		evt := log.Warn()
		if status >= fiber.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Err(err).
			Int("status", status).
			Str("path", c.Path()).
			Interface("request_id", c.Locals("requestid")).
			Msg("Request failed.")

		return c.Status(status).JSON(errorResponse{Error: code, Message: message})
	}
}

func classify(err error) (status int, code, message string) {
	var upErr *weather.UpstreamError
	var fe *fiber.Error

	switch {
	case errors.Is(err, weather.ErrInvalidLocation):
		return fiber.StatusBadRequest, "invalid_location", err.Error()
	case errors.Is(err, weather.ErrUpstreamEmptyResult):
		return fiber.StatusNotFound, "data_unavailable", err.Error()
	case errors.As(err, &upErr):
		if upErr.ClientFault() {
			return fiber.StatusNotFound, "data_unavailable", upErr.Error()
		}
		return fiber.StatusBadGateway, "upstream_error", upErr.Error()
	case errors.Is(err, weather.ErrStoreUnavailable):
		return fiber.StatusServiceUnavailable, "cache_unavailable", "weather cache is unavailable"
	case errors.As(err, &fe):
		return fe.Code, codeForStatus(fe.Code), fe.Message
	default:
		return fiber.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "invalid_location"
	case fiber.StatusNotFound:
		return "not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return "error"
	}
}
