package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-checkout/internal/catalog"
	"github.com/noah-isme/toko-checkout/internal/checkout"
	"github.com/noah-isme/toko-checkout/internal/health"
	"github.com/noah-isme/toko-checkout/internal/obs"
	"github.com/noah-isme/toko-checkout/internal/ratelimit"
	"github.com/noah-isme/toko-checkout/internal/security"
)

// RouterConfig carries the handlers and cross-cutting settings for NewRouter.
type RouterConfig struct {
	Logger          zerolog.Logger
	Checkout        *checkout.Handler
	Catalog         *catalog.Handler
	Health          health.Handler
	Limiter         ratelimit.Limiter
	HTTPMetrics     *obs.HTTPMetrics
	MetricsGatherer prometheus.Gatherer
	Tracing         bool
	AllowedOrigins  []string
	MaxBodyBytes    int64
	SecurityHeaders bool
	RequestTimeout  time.Duration
}

// NewRouter assembles the chi router and its middleware stack.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if cfg.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: cfg.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: cfg.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: true}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:         300,
	}))
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	if cfg.MetricsGatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/health/live", cfg.Health.Live)
	r.Get("/health/ready", cfg.Health.Ready)

	r.Get("/", cfg.Checkout.Root)
	r.Route("/checkout", func(c chi.Router) {
		c.Get("/checkhealth", cfg.Checkout.CheckHealth)
		c.Get("/prices", cfg.Catalog.Prices)
		c.Get("/offers", cfg.Catalog.Offers)
		c.Group(func(g chi.Router) {
			g.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
			g.Use(ratelimit.Handler{
				Limiter: cfg.Limiter,
				OnError: func(err error) { cfg.Logger.Warn().Err(err).Msg("rate_limit_unavailable") },
			}.Middleware)
			g.Post("/", cfg.Checkout.Checkout)
		})
	})

	if !cfg.Tracing {
		return r
	}
	return obs.TracingHandler(r, "http.server")
}

func allowedOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
