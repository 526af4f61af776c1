package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dentacare/clinic-portal/internal/appointments"
	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/availability"
	"github.com/dentacare/clinic-portal/internal/blog"
	"github.com/dentacare/clinic-portal/internal/booking"
	"github.com/dentacare/clinic-portal/internal/catalog"
	"github.com/dentacare/clinic-portal/internal/changefeed"
	"github.com/dentacare/clinic-portal/internal/dentists"
	"github.com/dentacare/clinic-portal/internal/gallery"
	httpmiddleware "github.com/dentacare/clinic-portal/internal/http/middleware"
	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/internal/schedule"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	DentistsHandler     *dentists.Handler
	AvailabilityHandler *availability.Handler
	BookingHandler      *booking.Handler
	AppointmentsHandler *appointments.Handler
	ScheduleHandler     *schedule.Handler
	BlogHandler         *blog.Handler
	GalleryHandler      *gallery.Handler
	RealtimeHandler     *changefeed.Handler
	AuthHandler         *auth.Handler
	Admin               httpmiddleware.AdminAuthorizer
	RateLimiter         *httpmiddleware.RateLimiter
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
}

// CatalogResponse lists the fixed clinic enumerations for the public pages.
type CatalogResponse struct {
	Services       []string `json:"services"`
	Slots          []string `json:"slots"`
	BlogCategories []string `json:"blog_categories"`
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// Public site
	r.Route("/api", func(api chi.Router) {
		api.Get("/catalog", func(w http.ResponseWriter, r *http.Request) {
			respond.JSON(w, http.StatusOK, CatalogResponse{
				Services:       catalog.Services(),
				Slots:          catalog.Slots(),
				BlogCategories: catalog.BlogCategories(),
			})
		})
		if cfg.DentistsHandler != nil {
			api.Get("/dentists", cfg.DentistsHandler.List)
			api.Get("/dentists/{dentistID}", cfg.DentistsHandler.Get)
		}
		if cfg.AvailabilityHandler != nil {
			api.Get("/dentists/{dentistID}/availability", cfg.AvailabilityHandler.Get)
		}
		if cfg.BookingHandler != nil {
			api.Route("/booking/sessions", func(b chi.Router) {
				// Session creation and submission are the writes worth throttling.
				if cfg.RateLimiter != nil {
					b.Use(throttleWrites(cfg.RateLimiter))
				}
				cfg.BookingHandler.Routes(b)
			})
		}
		if cfg.BlogHandler != nil {
			api.Get("/blog", cfg.BlogHandler.ListPublished)
			api.Get("/blog/{postID}", cfg.BlogHandler.GetPublished)
		}
		if cfg.GalleryHandler != nil {
			api.Get("/gallery", cfg.GalleryHandler.List)
		}
		if cfg.RealtimeHandler != nil {
			api.Get("/realtime/{collection}", cfg.RealtimeHandler.Stream)
		}
	})

	if cfg.AuthHandler != nil {
		r.Route("/auth", func(a chi.Router) {
			if cfg.RateLimiter != nil {
				a.With(httpmiddleware.RateLimit(cfg.RateLimiter)).Post("/sign-in", cfg.AuthHandler.SignIn)
			} else {
				a.Post("/sign-in", cfg.AuthHandler.SignIn)
			}
			a.Post("/sign-out", cfg.AuthHandler.SignOut)
			a.Get("/session", cfg.AuthHandler.Session)
		})
	}

	// Admin area
	if cfg.Admin != nil {
		r.Route("/admin", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminSession(cfg.Admin, cfg.Logger))
			if cfg.AppointmentsHandler != nil {
				admin.Get("/dashboard", cfg.AppointmentsHandler.Dashboard)
				admin.Get("/appointments", cfg.AppointmentsHandler.List)
				admin.Post("/appointments/{appointmentID}/confirm", cfg.AppointmentsHandler.Confirm)
				admin.Post("/appointments/{appointmentID}/cancel", cfg.AppointmentsHandler.Cancel)
			}
			if cfg.ScheduleHandler != nil {
				admin.Get("/dentists/{dentistID}/blocked-slots", cfg.ScheduleHandler.GetGrid)
				admin.Post("/dentists/{dentistID}/blocked-slots/toggle", cfg.ScheduleHandler.Toggle)
			}
			if cfg.BlogHandler != nil {
				admin.Get("/blog", cfg.BlogHandler.ListAll)
				admin.Post("/blog", cfg.BlogHandler.Create)
				admin.Post("/blog/{postID}/publish", cfg.BlogHandler.Publish)
				admin.Post("/blog/{postID}/unpublish", cfg.BlogHandler.Unpublish)
				admin.Delete("/blog/{postID}", cfg.BlogHandler.Delete)
			}
			if cfg.GalleryHandler != nil {
				admin.Post("/gallery", cfg.GalleryHandler.Upload)
				admin.Delete("/gallery/{imageID}", cfg.GalleryHandler.Delete)
			}
		})
	}

	return r
}

// throttleWrites rate limits non-GET requests only.
func throttleWrites(rl *httpmiddleware.RateLimiter) func(http.Handler) http.Handler {
	limited := httpmiddleware.RateLimit(rl)
	return func(next http.Handler) http.Handler {
		throttled := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			throttled.ServeHTTP(w, r)
		})
	}
}
