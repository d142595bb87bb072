package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/romariotrain/reelwork/internal/metrics"
)

type RouterConfig struct {
	// CredentialRatePerMinute limits create-upload-url per client IP. 0 disables the limit.
	CredentialRatePerMinute int
}

func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(observe)

	r.Get("/health", h.Health)
	r.Get("/health/ready", h.Ready)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/videos", func(r chi.Router) {
		r.With(credentialLimit(cfg.CredentialRatePerMinute)).Post("/create-upload-url", h.CreateUploadURL)
		r.Post("/register", h.Register)
	})

	r.Route("/api/admin/videos", func(r chi.Router) {
		r.Get("/", h.ListVideos)
		r.Patch("/{uploadId}/status", h.ChangeStatus)
	})

	return r
}

func credentialLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := time.Minute
	return httprate.Limit(
		perMinute,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			writeErrorJSON(w, http.StatusTooManyRequests, "Too many upload requests. Please try again later.", nil)
		}),
	)
}

// observe records request latency labelled by route pattern.
func observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.ObserveHTTPRequest(r.Method, route, ww.Status(), time.Since(start))
	})
}
