package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/webharvest/internal/domain/container"
	"github.com/GriffinCanCode/webharvest/internal/domain/operation"
	"github.com/GriffinCanCode/webharvest/internal/domain/session"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/logging"
	"github.com/GriffinCanCode/webharvest/internal/infrastructure/monitoring"
)

// Options wires the handlers to the runtime
type Options struct {
	Sessions   *session.Manager
	Operations *operation.Registry
	Catalogs   *container.Registry
	Metrics    *monitoring.Metrics
	// Gatherer backs /metrics; nil uses the default prometheus registry
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// Handlers contains HTTP request handlers
type Handlers struct {
	sessions   *session.Manager
	operations *operation.Registry
	catalogs   *container.Registry
	metrics    *monitoring.Metrics
	gatherer   prometheus.Gatherer
	logger     *zap.Logger
	startedAt  time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(opts Options) *Handlers {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		sessions:   opts.Sessions,
		operations: opts.Operations,
		catalogs:   opts.Catalogs,
		metrics:    opts.Metrics,
		gatherer:   opts.Gatherer,
		logger:     logging.OrNop(opts.Logger),
		startedAt:  time.Now(),
	}
}

// Register mounts every route on r
func (h *Handlers) Register(r gin.IRouter) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	r.GET("/metrics/json", h.MetricsJSON)

	r.GET("/operations", h.ListOperations)
	r.GET("/catalogs", h.ListCatalogs)
	r.GET("/catalogs/:site", h.GetCatalog)

	sessions := r.Group("/sessions")
	sessions.POST("", h.CreateSession)
	sessions.GET("", h.ListSessions)
	sessions.GET("/:id", h.GetSession)
	sessions.DELETE("/:id", h.CloseSession)

	sessions.POST("/:id/snapshot", h.IngestSnapshot)
	sessions.POST("/:id/refresh", h.Refresh)
	sessions.GET("/:id/graph", h.GetGraph)
	sessions.GET("/:id/focus", h.GetFocus)

	sessions.POST("/:id/messages", h.HandleMessage)
	sessions.POST("/:id/operations", h.ExecuteOperation)
	sessions.POST("/:id/operations/batch", h.ExecuteBatch)

	sessions.GET("/:id/rules", h.ListRules)
	sessions.POST("/:id/rules", h.AddRule)
	sessions.DELETE("/:id/rules/:ruleId", h.RemoveRule)

	sessions.GET("/:id/events", h.ListEvents)
	sessions.GET("/:id/events/stats", h.EventStats)
}

// Root returns service info
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "webharvest",
		"status":  "running",
		"version": "1.0.0",
	})
}

// Health returns health status
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"uptime":     time.Since(h.startedAt).Round(time.Second).String(),
		"sessions":   h.sessions.Count(),
		"sites":      len(h.catalogs.Sites()),
		"operations": len(h.operations.List()),
	})
}

// MetricsJSON returns a JSON view of the runtime counters
func (h *Handlers) MetricsJSON(c *gin.Context) {
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

// ListOperations returns the registered operations
func (h *Handlers) ListOperations(c *gin.Context) {
	ops := h.operations.List()
	c.JSON(http.StatusOK, gin.H{
		"operations": ops,
		"count":      len(ops),
	})
}

type catalogSummary struct {
	Site    string   `json:"site"`
	Version string   `json:"version"`
	Pages   []string `json:"pages"`
	Source  string   `json:"source,omitempty"`
}

// ListCatalogs returns every loaded catalog version
func (h *Handlers) ListCatalogs(c *gin.Context) {
	all := h.catalogs.Catalogs()
	out := make([]catalogSummary, 0, len(all))
	for _, cat := range all {
		pages := make([]string, 0, len(cat.Pages))
		for _, p := range cat.Pages {
			pages = append(pages, p.ID)
		}
		out = append(out, catalogSummary{
			Site:    cat.Site,
			Version: container.CanonicalVersion(cat.Version),
			Pages:   pages,
			Source:  cat.Source,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"catalogs": out,
		"count":    len(out),
	})
}

// GetCatalog returns the newest catalog of a site, or the one named by ?version=
func (h *Handlers) GetCatalog(c *gin.Context) {
	site := c.Param("site")
	version := c.Query("version")

	var (
		cat *container.Catalog
		ok  bool
	)
	if version != "" {
		cat, ok = h.catalogs.Version(site, version)
	} else {
		cat, ok = h.catalogs.Site(site)
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
		return
	}
	c.JSON(http.StatusOK, cat)
}
