package router

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/auth"
	"github.com/fitcompany/console/internal/catalog"
	"github.com/fitcompany/console/internal/config"
	"github.com/fitcompany/console/internal/enum"
	"github.com/fitcompany/console/internal/handler"
	"github.com/fitcompany/console/internal/mask"
	"github.com/fitcompany/console/internal/metrics"
	mw "github.com/fitcompany/console/internal/middleware"
	"github.com/fitcompany/console/internal/session"
	"github.com/fitcompany/console/internal/upstream"
	"github.com/fitcompany/console/internal/ws"
)

// Deps are the long-lived services the handlers share.
type Deps struct {
	Backend  *upstream.Client
	Catalog  catalog.Source
	Fields   mask.Fields
	Sessions *session.Store
	Alerts   handler.AlertSource
	Hub      *ws.Hub
	Limiter  *mw.RateLimiter
	Logger   *zap.Logger
}

// New creates a Chi router with all application routes wired up.
// Form permissions are checked only for forms with a configured code.
func New(cfg *config.Config, d Deps) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	authHandler := handler.NewAuthHandler(d.Backend, cfg.TokenSecret)
	alertHandler := handler.NewAlertHandler(d.Alerts, d.Hub, cfg.TokenSecret, d.Logger)

	// WebSocket route (handles auth internally via query param)
	alertHandler.RegisterFeedRoutes(r)

	limit := d.Limiter.Handler
	code := cfg.Console.FormCode

	r.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r)

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.TokenSecret))

			authHandler.RegisterSessionRoutes(r)
			handler.NewMaskHandler(d.Fields).RegisterRoutes(r)

			r.Group(func(r chi.Router) {
				r.Use(mw.RequireFormAccess(code(enum.FormProducto)))
				alertHandler.RegisterRoutes(r)
			})

			ventaHandler := handler.NewVentaHandler(d.Backend, d.Catalog, d.Sessions, cfg.Console.Limits, limit)
			r.Route("/ventas", func(r chi.Router) {
				r.Use(saleAccess(code(enum.FormVenta)))
				ventaHandler.RegisterRoutes(r)
			})

			compraHandler := handler.NewCompraHandler(d.Backend, d.Fields, limit)
			r.Route("/compras", func(r chi.Router) {
				r.Use(mw.RequireFormAccess(code(enum.FormCompra)))
				compraHandler.RegisterRoutes(r)
			})

			formsHandler := handler.NewFormsHandler(d.Backend, d.Fields, limit)
			formsHandler.Guard(func(form string) func(http.Handler) http.Handler {
				return mw.RequireFormAccess(code(form))
			})
			formsHandler.RegisterRoutes(r)
		})
	})

	d.Logger.Info("router initialized", zap.Int("form_codes", len(cfg.Console.FormCodes)))
	return r
}

// saleAccess checks sale permissions. Every request on a draft form counts
// as creating a sale; the backend authorizes the final write itself.
func saleAccess(code int64) func(http.Handler) http.Handler {
	if code <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	stored := mw.RequireFormAccess(code)
	draft := mw.RequirePermission(code, auth.ActionCrear)
	return func(next http.Handler) http.Handler {
		s, d := stored(next), draft(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "/ventas/forms") {
				d.ServeHTTP(w, r)
				return
			}
			s.ServeHTTP(w, r)
		})
	}
}
