// Package server exposes the report archive and conversational predictions
// over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/mohammad-safakhou/conflictcast/internal/orchestrator"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"go.uber.org/zap"
)

// Catalog lists and loads persisted reports.
type Catalog interface {
	ListReports(ctx context.Context, limit int) ([]report.Entry, error)
	GetReport(ctx context.Context, name string) (report.Report, error)
}

// Predictor runs one conversational turn.
type Predictor interface {
	Turn(ctx context.Context, sessionID, message string) (orchestrator.Reply, error)
}

type Options struct {
	Catalog   Catalog
	Predictor Predictor
	// Metrics serves /metrics when set.
	Metrics   http.Handler
	JWTSecret string
	Logger    *zap.Logger
}

// New builds the echo instance with every route registered.
func New(opts Options) *echo.Echo {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		logger.Info("request failed",
			zap.Int("status", code),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.String("remote", c.RealIP()),
			zap.Error(err),
		)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}

	e.GET("/healthz", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if opts.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(opts.Metrics))
	}

	api := e.Group("/api")
	if opts.JWTSecret != "" {
		api.Use(AuthMiddleware([]byte(opts.JWTSecret)))
	}
	h := &handlers{catalog: opts.Catalog, predictor: opts.Predictor, logger: logger}
	api.GET("/reports", h.listReports)
	api.GET("/reports/:name", h.getReport)
	api.POST("/predictions", h.predict)
	return e
}

type handlers struct {
	catalog   Catalog
	predictor Predictor
	logger    *zap.Logger
}

func (h *handlers) listReports(c echo.Context) error {
	if h.catalog == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "reports unavailable")
	}
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = n
	}
	entries, err := h.catalog.ListReports(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []report.Entry{}
	}
	return c.JSON(http.StatusOK, entries)
}

func (h *handlers) getReport(c echo.Context) error {
	if h.catalog == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "reports unavailable")
	}
	r, err := h.catalog.GetReport(c.Request().Context(), c.Param("name"))
	if errors.Is(err, report.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "report not found")
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, r)
}

type predictionRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (h *handlers) predict(c echo.Context) error {
	if h.predictor == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "predictions unavailable")
	}
	var req predictionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	reply, err := h.predictor.Turn(c.Request().Context(), req.SessionID, req.Message)
	if errors.Is(err, orchestrator.ErrEmptyMessage) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err != nil {
		h.logger.Error("prediction turn failed", zap.String("session", reply.SessionID), zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, reply)
}
