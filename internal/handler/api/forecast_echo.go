package api

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"PriceCast/internal/domain/models"
	"PriceCast/internal/service/ratelimit"
	"PriceCast/internal/services/chart"
	"PriceCast/pkg/cache"
	xhttp "PriceCast/pkg/http"
	xlogger "PriceCast/pkg/logger"
)

// ForecastService produces forecast results for a symbol.
type ForecastService interface {
	ForecastSymbol(ctx context.Context, symbol string, days int) models.ForecastResult
}

// ModelAdmin exposes model lifecycle operations.
type ModelAdmin interface {
	StartTraining(reason string, force bool) bool
	Status() models.ModelStatus
}

// ForecastEchoHandler serves the forecast and model endpoints.
type ForecastEchoHandler struct {
	logger   *xlogger.Logger
	svc      ForecastService
	admin    ModelAdmin
	cache    cache.Service
	cacheTTL time.Duration
	limiter  *ratelimit.Limiter
}

func NewForecastEchoHandler(
	logger *xlogger.Logger,
	svc ForecastService,
	admin ModelAdmin,
	c cache.Service,
	cacheTTL time.Duration,
	limiter *ratelimit.Limiter,
) *ForecastEchoHandler {
	return &ForecastEchoHandler{logger: logger, svc: svc, admin: admin, cache: c, cacheTTL: cacheTTL, limiter: limiter}
}

func (h *ForecastEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	if h.limiter != nil && h.limiter.Enabled() {
		g.Use(h.rateLimit)
	}
	g.GET("/forecast", h.Forecast)
	g.POST("/forecast", h.Forecast)
	g.GET("/forecast/chart", h.Chart)
	g.GET("/model/status", h.ModelStatus)
	g.POST("/model/retrain", h.Retrain)
}

// Forecast answers with the bare forecast result; its status code follows the outcome.
func (h *ForecastEchoHandler) Forecast(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.forecast(c.Request().Context(), req)
	if res.Status == models.StatusTraining {
		c.Response().Header().Set("Retry-After", "30")
	}
	return c.JSON(statusFor(res), res)
}

func (h *ForecastEchoHandler) Chart(c echo.Context) error {
	req := &models.ForecastRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res := h.forecast(c.Request().Context(), req)
	if !res.Success {
		return xhttp.AppErrorResponse(c, appErrorFor(res))
	}
	img, err := chart.RenderPNG(res)
	if err != nil {
		h.logger.Error("render chart", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not render chart").WithError(err))
	}
	return xhttp.PNGResponse(c, img)
}

func (h *ForecastEchoHandler) ModelStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.admin.Status())
}

func (h *ForecastEchoHandler) Retrain(c echo.Context) error {
	req := &models.RetrainRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.admin.StartTraining(req.Reason, true) {
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("training already in progress"))
	}
	h.logger.Info("retrain requested", xlogger.String("reason", req.Reason), xlogger.String("ip", c.RealIP()))
	return xhttp.AcceptedResponse(c, h.admin.Status())
}

// forecast serves from the response cache when the same model already
// answered the same request.
func (h *ForecastEchoHandler) forecast(ctx context.Context, req *models.ForecastRequest) models.ForecastResult {
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))
	key := ""
	if h.cache != nil {
		if version := h.admin.Status().Version; version != "" {
			key = cache.GenerateKeyWithParams("forecast", symbol, req.Days, version)
			var cached models.ForecastResult
			if err := h.cache.Get(ctx, key, &cached); err == nil {
				return cached
			} else if !errors.Is(err, cache.ErrCacheMiss) {
				h.logger.Warn("forecast cache read", xlogger.String("key", key), xlogger.Error(err))
			}
		}
	}

	res := h.svc.ForecastSymbol(ctx, symbol, req.Days)
	if key != "" && res.Success {
		if err := h.cache.Set(ctx, key, res, h.cacheTTL); err != nil {
			h.logger.Warn("forecast cache write", xlogger.String("key", key), xlogger.Error(err))
		}
	}
	return res
}

func (h *ForecastEchoHandler) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ok, wait := h.limiter.Allow(c.RealIP())
		if !ok {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError(fmt.Sprintf("rate limit exceeded, retry in %s", wait.Round(time.Second))))
		}
		return next(c)
	}
}

// appErrorFor renders a failed result in the error envelope, for endpoints
// whose success body is not JSON.
func appErrorFor(res models.ForecastResult) *xhttp.AppError {
	switch statusFor(res) {
	case http.StatusServiceUnavailable:
		return xhttp.ServiceUnavailableError(res.Error)
	case http.StatusNotFound:
		return xhttp.NotFoundError(res.Error).WithParam("symbol", res.Symbol)
	case http.StatusBadRequest:
		return xhttp.BadRequestError(res.Error)
	case http.StatusUnprocessableEntity:
		return xhttp.UnprocessableError(res.Error).WithParam("symbol", res.Symbol)
	default:
		return xhttp.InternalError(res.Error).WithError(res.Err)
	}
}

func statusFor(res models.ForecastResult) int {
	if res.Success {
		return http.StatusOK
	}
	err := res.Err
	switch {
	case models.IsTraining(err), errors.Is(err, models.ErrModelUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, models.ErrSymbolNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidHorizon):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInsufficientData), errors.Is(err, models.ErrEmptySeries),
		errors.Is(err, models.ErrUnorderedSeries):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
