package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/application/usecase"
	"github.com/dreschagin/staticserve/internal/interfaces/http/handler"
	"github.com/dreschagin/staticserve/internal/interfaces/http/middleware"
	"github.com/dreschagin/staticserve/internal/metrics"
	"github.com/dreschagin/staticserve/pkg/config"
	"github.com/dreschagin/staticserve/pkg/logger"
)

// Router wires handlers and middleware into the served http.Handler.
type Router struct {
	mux               *http.ServeMux
	assetHandler      *handler.AssetHandler
	statusHandler     *handler.StatusHandler
	liveReloadHandler *handler.LiveReloadHandler
	source            port.ContentSource
	recorder          *usecase.AccessRecorder
	metrics           *metrics.Metrics
	registry          *prometheus.Registry
	cfg               *config.Config
	logger            *logger.Logger
}

// NewRouter creates a new router. liveReloadHandler may be nil when
// live reload is disabled.
func NewRouter(
	assetHandler *handler.AssetHandler,
	statusHandler *handler.StatusHandler,
	liveReloadHandler *handler.LiveReloadHandler,
	source port.ContentSource,
	recorder *usecase.AccessRecorder,
	m *metrics.Metrics,
	registry *prometheus.Registry,
	cfg *config.Config,
	logger *logger.Logger,
) *Router {
	return &Router{
		mux:               http.NewServeMux(),
		assetHandler:      assetHandler,
		statusHandler:     statusHandler,
		liveReloadHandler: liveReloadHandler,
		source:            source,
		recorder:          recorder,
		metrics:           m,
		registry:          registry,
		cfg:               cfg,
		logger:            logger,
	}
}

// Setup registers all routes and returns the composed handler.
func (rt *Router) Setup() http.Handler {
	// Health endpoints stay unauthenticated and un-promoted for probes.
	rt.mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rt.mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := rt.source.Ping(r.Context()); err != nil {
			rt.logger.Warn("Readiness probe failed", "error", err.Error())
			http.Error(w, "content source unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	rt.mux.Handle("/statusz", rt.statusHandler)
	rt.mux.Handle("/metrics", promhttp.HandlerFor(rt.registry, promhttp.HandlerOpts{}))

	if rt.liveReloadHandler != nil {
		rt.mux.Handle("/__livereload", rt.liveReloadHandler)
	}

	// Everything else is content.
	var assets http.Handler = rt.assetHandler
	assets = middleware.Compression(assets)
	if rt.cfg.RateLimit.Enabled {
		limiter := middleware.NewIPRateLimiter(rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst)
		assets = middleware.RateLimit(limiter, rt.metrics.RateLimitDropped.Inc)(assets)
	}
	rt.mux.Handle("/", assets)

	var h http.Handler = rt.mux
	h = rt.metrics.Middleware(h)
	if rt.cfg.HTTPSPromote {
		h = middleware.HTTPSPromote(rt.metrics.PromotedRedirects.Inc)(h)
	}
	h = middleware.AccessLog(rt.recorder, rt.cfg.AccessLogging, rt.logger)(h)
	h = middleware.RequestID(h)
	h = middleware.Recovery(rt.logger)(h)

	return h
}
