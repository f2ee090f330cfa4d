package api

import (
	"log"
	"net/http"
	"time"

	"github.com/example/cart-sync/internal/api/middleware"
	"github.com/example/cart-sync/internal/auth"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Handlers   *Handlers
	JWTService *auth.JWTService
	// Timeout bounds a request, including catalog validation
	Timeout time.Duration
}

func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	h := cfg.Handlers

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(withLogging)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(timeout))

	r.Get("/health", Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.DeviceMiddleware)
		r.Use(middleware.OptionalAuthMiddleware(cfg.JWTService))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.GetCart)
			r.Delete("/", h.ClearCart)
			r.Post("/items", h.AddItem)
			r.Put("/items", h.UpdateItem)
			r.Delete("/items", h.RemoveItem)
			r.Post("/validate", h.Validate)
			r.Delete("/removals", h.AcknowledgeRemovals)
		})

		r.Route("/session", func(r chi.Router) {
			r.With(middleware.AuthMiddleware(cfg.JWTService)).Post("/login", h.Login)
			r.Post("/logout", h.Logout)
		})
	})

	return otelhttp.NewHandler(r, "cart-sync")
}

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.Printf("[API] %s %s %d %s", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}
