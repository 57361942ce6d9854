package api

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	models "QuantPulse/internal/domain/models"
	domrepo "QuantPulse/internal/domain/repository"
	"QuantPulse/internal/repository"
	"QuantPulse/internal/service/cache"
	"QuantPulse/internal/strategy"
	xhttp "QuantPulse/pkg/http"
	xlogger "QuantPulse/pkg/logger"
	xutil "QuantPulse/pkg/util"
	"QuantPulse/pkg/queue"
)

// PipelineEchoHandler exposes the operational API: dispatch pipeline runs,
// inspect jobs, read latest signals and resolved policies.
type PipelineEchoHandler struct {
	logger   *xlogger.Logger
	queue    domrepo.JobQueue
	registry *strategy.Registry
	signals  cache.BytesCache
	source   domrepo.MarketDataSource
}

func NewPipelineEchoHandler(logger *xlogger.Logger, q domrepo.JobQueue, registry *strategy.Registry, signals cache.BytesCache, source domrepo.MarketDataSource) *PipelineEchoHandler {
	return &PipelineEchoHandler{logger: logger, queue: q, registry: registry, signals: signals, source: source}
}

func (h *PipelineEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/pipeline/run", h.RunPipeline)
	g.GET("/jobs/:id", h.JobStatus)
	g.GET("/signals/latest", h.LatestSignal)
	g.GET("/policies/:id", h.Policy)
	g.GET("/candles", h.Candles)
}

func (h *PipelineEchoHandler) RunPipeline(c echo.Context) error {
	req := &models.RunPipelineRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if _, err := h.registry.ResolvePolicy(req.PolicyID); err != nil {
		return xhttp.NotFoundResponse(c, map[string]string{"policy_id": req.PolicyID})
	}

	job := &models.PipelineJob{
		ID:          uuid.NewString(),
		PolicyID:    req.PolicyID,
		Instruments: req.Instruments,
		Mode:        models.RunMode(req.Mode),
		DedupeKey:   req.DedupeKey,
		Timeout:     time.Duration(req.TimeoutSeconds) * time.Second,
		HighPrio:    req.HighPriority,
	}

	admitted, err := h.queue.Dispatch(c.Request().Context(), job)
	if err != nil && !errors.Is(err, models.ErrDuplicateJob) {
		h.logger.Error("dispatch failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !admitted {
		return xhttp.SuccessResponse(c, models.RunPipelineResponse{
			JobID:    job.ID,
			Admitted: false,
			Reason:   "skip: duplicate",
		})
	}
	return xhttp.CreatedResponse(c, models.RunPipelineResponse{JobID: job.ID, Admitted: true})
}

func (h *PipelineEchoHandler) JobStatus(c echo.Context) error {
	req := &models.JobStatusRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	status, err := h.queue.Status(c.Request().Context(), req.ID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			return xhttp.NotFoundResponse(c, map[string]string{"id": req.ID})
		}
		h.logger.Error("job status failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}

	resp := models.JobStatusResponse{ID: req.ID, Status: status}
	if status == models.JobDone {
		if summary, err := h.queue.Result(c.Request().Context(), req.ID); err == nil {
			resp.Summary = summary
		}
	}
	return xhttp.SuccessResponse(c, resp)
}

func (h *PipelineEchoHandler) LatestSignal(c echo.Context) error {
	req := &models.LatestSignalRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	sig, ok, err := repository.LatestSignal(h.signals, req.Symbol)
	if err != nil {
		h.logger.Error("latest signal read failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !ok {
		return xhttp.NotFoundResponse(c, map[string]string{"symbol": req.Symbol})
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, sig)
}

func (h *PipelineEchoHandler) Policy(c echo.Context) error {
	req := &models.PolicyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	policy, err := h.registry.ResolvePolicy(req.ID)
	if err != nil {
		return xhttp.NotFoundResponse(c, map[string]string{"id": req.ID})
	}
	return xhttp.SuccessResponse(c, policy)
}

// Candles serves stored candles over a time range. The range is aligned down
// to bucket boundaries so callers always receive whole buckets.
func (h *PipelineEchoHandler) Candles(c echo.Context) error {
	symbol := c.QueryParam("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, map[string]string{"symbol": "required"})
	}
	tf := domrepo.NormalizeTimeframe(c.QueryParam("tf"))

	now := time.Now().UTC()
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), now)
	from, to = xutil.AlignRange(from, to, tf.Seconds())
	if !from.Before(to) {
		return xhttp.BadRequestResponse(c, map[string]string{"from": "must precede to"})
	}
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 500)

	candles, err := h.source.FetchCandles(c.Request().Context(), symbol, tf, from, to)
	if err != nil {
		h.logger.Error("candle fetch failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return xhttp.SuccessResponse(c, candles)
}
