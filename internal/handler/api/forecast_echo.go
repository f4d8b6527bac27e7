package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	models "PriceCast/internal/domain/models"
	"PriceCast/internal/service/metrics"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/usecase"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

// ForecastService is the use case surface served over HTTP.
type ForecastService interface {
	Forecast(ctx context.Context, req models.ForecastRequest) (*models.ForecastReport, error)
	Indicators(ctx context.Context, req models.IndicatorsRequest) (*usecase.IndicatorsResult, error)
	Risk(ctx context.Context, req models.RiskRequest) (*usecase.RiskResult, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// ForecastEchoHandler serves forecasts, indicator snapshots and risk profiles.
type ForecastEchoHandler struct {
	logger *xlogger.Logger
	svc    ForecastService
	rl     *ratelimit.Limiter
	checks map[string]HealthCheck
}

// HandlerOption configures ForecastEchoHandler.
type HandlerOption func(*ForecastEchoHandler)

// WithRateLimiter limits /api requests per client IP.
func WithRateLimiter(rl *ratelimit.Limiter) HandlerOption {
	return func(h *ForecastEchoHandler) { h.rl = rl }
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *ForecastEchoHandler) {
		if check != nil {
			h.checks[name] = check
		}
	}
}

func NewForecastEchoHandler(logger *xlogger.Logger, svc ForecastService, opts ...HandlerOption) *ForecastEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	metrics.Register()
	h := &ForecastEchoHandler{logger: logger, svc: svc, checks: make(map[string]HealthCheck)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	if h.rl != nil {
		g.Use(h.rateLimit)
	}
	g.GET("/forecast", h.Forecast)
	g.GET("/indicators", h.Indicators)
	g.GET("/risk", h.Risk)
}

func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	start := time.Now()
	defer observe("forecast", start)

	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.badRequest(c, "forecast", verr)
	}

	report, err := h.svc.Forecast(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "forecast", req.Symbol, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, report)
}

func (h *ForecastEchoHandler) Indicators(c echo.Context) error {
	start := time.Now()
	defer observe("indicators", start)

	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.badRequest(c, "indicators", verr)
	}

	res, err := h.svc.Indicators(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "indicators", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *ForecastEchoHandler) Risk(c echo.Context) error {
	start := time.Now()
	defer observe("risk", start)

	req := &models.RiskRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return h.badRequest(c, "risk", verr)
	}

	res, err := h.svc.Risk(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "risk", req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Health runs every registered check; any failure answers 503.
func (h *ForecastEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[name] = err.Error()
			continue
		}
		out[name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}

func (h *ForecastEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !h.rl.Allow(c.RealIP()) {
			metrics.APIErrors.WithLabelValues(c.Path(), strconv.Itoa(http.StatusTooManyRequests)).Inc()
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
		}
		return next(c)
	}
}

func (h *ForecastEchoHandler) badRequest(c echo.Context, endpoint string, verr []xhttp.ValidationError) error {
	metrics.APIErrors.WithLabelValues(endpoint, strconv.Itoa(http.StatusBadRequest)).Inc()
	return xhttp.BadRequestResponse(c, verr)
}

func (h *ForecastEchoHandler) fail(c echo.Context, endpoint, symbol string, err error) error {
	appErr := toAppError(err)
	metrics.APIErrors.WithLabelValues(endpoint, strconv.Itoa(appErr.Status)).Inc()
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(endpoint+" usecase error", xlogger.String("symbol", symbol), xlogger.Error(err))
	} else {
		h.logger.Warn(endpoint+" rejected", xlogger.String("symbol", symbol), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors to HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var ide *models.InsufficientDataError
	switch {
	case errors.As(err, &ide):
		return xhttp.UnprocessableError(err.Error()).
			WithParam("required", ide.Required).
			WithParam("got", ide.Got).
			WithError(err)
	case errors.Is(err, models.ErrInsufficientData):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, models.ErrDataUnavailable):
		return xhttp.BadGatewayError(err.Error()).WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", err.Error(), http.StatusGatewayTimeout).WithError(err)
	case errors.Is(err, models.ErrComputation):
		return xhttp.InternalError(err.Error()).WithError(err)
	default:
		return xhttp.InternalErrorf("forecast failed: %v", err).WithError(err)
	}
}

func observe(endpoint string, start time.Time) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
