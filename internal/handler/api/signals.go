package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"GoldPulse/internal/domain/models"
	domrepo "GoldPulse/internal/domain/repository"
	"GoldPulse/internal/pipeline"
	"GoldPulse/internal/risk"
	xhttp "GoldPulse/pkg/http"
	xlogger "GoldPulse/pkg/logger"
)

// StatsSource exposes the pipeline counters without dragging the whole
// pipeline into the handler.
type StatsSource interface {
	Stats() pipeline.Stats
}

// SignalsHandler serves the read-only HTTP surface: recent signals, a
// single signal by ID, the risk ledger snapshot, pipeline counters and
// component status.
type SignalsHandler struct {
	logger *xlogger.Logger
	store  domrepo.SignalStore
	gate   *risk.Gate
	broker domrepo.Broker
	stream domrepo.MarketStream
	stats  StatsSource
	symbol string
}

func NewSignalsHandler(logger *xlogger.Logger, store domrepo.SignalStore, gate *risk.Gate,
	broker domrepo.Broker, stream domrepo.MarketStream, stats StatsSource, symbol string,
) *SignalsHandler {
	return &SignalsHandler{
		logger: logger,
		store:  store,
		gate:   gate,
		broker: broker,
		stream: stream,
		stats:  stats,
		symbol: symbol,
	}
}

func (h *SignalsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/signals", h.Recent)
	g.GET("/signals/:id", h.ByID)
	g.GET("/risk", h.Risk)
	g.GET("/stats", h.PipelineStats)
	g.GET("/status", h.Status)
}

type recentRequest struct {
	Limit int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
	Since string `query:"since"`
}

// Recent lists the latest signals. An optional since parameter (RFC3339
// or unix seconds) narrows the result to signals published after it.
func (h *SignalsHandler) Recent(c echo.Context) error {
	req := &recentRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	ctx := c.Request().Context()
	var (
		signals []*models.Signal
		err     error
	)
	if since := xhttp.ParseTimeDefault(req.Since, time.Time{}); !since.IsZero() {
		signals, err = h.store.PublishedSince(ctx, since)
		if err == nil && len(signals) > req.Limit {
			signals = signals[:req.Limit]
		}
	} else {
		signals, err = h.store.Recent(ctx, h.symbol, req.Limit)
	}
	if err != nil {
		h.logger.Error("recent signals query failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.ListResponse(c, signals, int64(len(signals)))
}

func (h *SignalsHandler) ByID(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return xhttp.BadRequestResponse(c, "missing signal id")
	}

	s, err := h.store.ByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return xhttp.NotFoundResponse(c, "signal not found")
		}
		h.logger.Error("signal lookup failed", xlogger.String("id", id), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, s)
}

func (h *SignalsHandler) Risk(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.gate.Summary())
}

func (h *SignalsHandler) PipelineStats(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.stats.Stats())
}

// componentStatus reports one dependency's health.
type componentStatus struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

type statusResponse struct {
	Store     componentStatus `json:"store"`
	Broker    componentStatus `json:"broker"`
	Feed      componentStatus `json:"feed"`
	CheckedAt time.Time       `json:"checked_at"`
}

func (h *SignalsHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()
	resp := statusResponse{CheckedAt: time.Now().UTC()}

	if err := h.store.Health(ctx); err != nil {
		resp.Store.Detail = err.Error()
	} else {
		resp.Store.Healthy = true
	}
	if err := h.broker.Health(ctx); err != nil {
		resp.Broker.Detail = err.Error()
	} else {
		resp.Broker.Healthy = true
	}
	if h.stream != nil && h.stream.IsConnected() {
		resp.Feed.Healthy = true
	} else {
		resp.Feed.Detail = "stream disconnected"
	}

	code := http.StatusOK
	if !resp.Store.Healthy || !resp.Broker.Healthy {
		code = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, code, resp)
}
