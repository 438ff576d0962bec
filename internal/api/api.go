// Package api serves analyses over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/noface-00/prims/internal/analysis"
	"github.com/noface-00/prims/internal/model"
	"github.com/noface-00/prims/internal/report"
)

const (
	defaultExportLimit = 100
	maxExportLimit     = 1000
)

// Service is the analysis surface exposed by the API.
type Service interface {
	Analyze(ctx context.Context, productID string) (*model.Snapshot, error)
	Latest(ctx context.Context, productID string) (*model.Snapshot, error)
	GeneralStats(ctx context.Context) (model.GeneralStats, error)
	SimilarListings(ctx context.Context, name string) (*analysis.Similar, error)
}

// RecentSource lists the most recent snapshots for export.
type RecentSource interface {
	Recent(ctx context.Context, limit int) ([]*model.Snapshot, error)
}

type Handler struct {
	svc    Service
	recent RecentSource
	log    zerolog.Logger
}

// SetupRoutes registers the analysis routes on r. recent may be nil, the
// export route then answers 503.
func SetupRoutes(r *gin.RouterGroup, svc Service, recent RecentSource, log zerolog.Logger) *Handler {
	h := &Handler{svc: svc, recent: recent, log: log}

	analysisGroup := r.Group("/analysis")
	{
		analysisGroup.POST("/:id", h.Analyze)
		analysisGroup.GET("/:id", h.Latest)
	}
	r.GET("/stats", h.Stats)
	r.GET("/similar", h.Similar)
	r.GET("/export", h.Export)

	return h
}

// NewRouter builds the engine with health, metrics and /api routes.
// metrics may be nil.
func NewRouter(svc Service, recent RecentSource, metrics http.Handler, log zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	log = log.With().Str("component", "api").Logger()

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	SetupRoutes(r.Group("/api"), svc, recent, log)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})
	return r
}

// Analyze runs a fresh analysis.
func (h *Handler) Analyze(c *gin.Context) {
	snap, err := h.svc.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Latest returns the stored analysis without fetching anything.
func (h *Handler) Latest(c *gin.Context) {
	snap, err := h.svc.Latest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *Handler) Stats(c *gin.Context) {
	gs, err := h.svc.GeneralStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gs)
}

func (h *Handler) Similar(c *gin.Context) {
	res, err := h.svc.SimilarListings(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Export streams recent snapshots as CSV, or XLSX with format=xlsx.
func (h *Handler) Export(c *gin.Context) {
	if h.recent == nil {
		h.fail(c, model.ErrUnavailable)
		return
	}

	limit := defaultExportLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxExportLimit {
			h.fail(c, &model.ValidationError{Field: "limit", Message: "must be between 1 and " + strconv.Itoa(maxExportLimit)})
			return
		}
		limit = n
	}

	snaps, err := h.recent.Recent(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	var buf bytes.Buffer
	switch c.DefaultQuery("format", "csv") {
	case "csv":
		if err := report.WriteCSV(&buf, snaps); err != nil {
			h.fail(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="analisis.csv"`)
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	case "xlsx":
		if err := report.WriteXLSX(&buf, snaps); err != nil {
			h.fail(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="analisis.xlsx"`)
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	default:
		h.fail(c, &model.ValidationError{Field: "format", Message: "must be csv or xlsx"})
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// StatusFor maps domain errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}
