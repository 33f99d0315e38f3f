package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bellavista-eats/api/internal/auth"
	"github.com/bellavista-eats/api/internal/config"
	"github.com/bellavista-eats/api/internal/database"
	"github.com/bellavista-eats/api/internal/delivery"
	"github.com/bellavista-eats/api/internal/enum"
	"github.com/bellavista-eats/api/internal/geocode"
	"github.com/bellavista-eats/api/internal/handler"
	mw "github.com/bellavista-eats/api/internal/middleware"
	"github.com/bellavista-eats/api/internal/service"
	"github.com/bellavista-eats/api/internal/ws"
)

// New creates a Chi router with all application routes wired up.
// Storefront routes are public, checkout accepts an optional token, and
// the admin surface sits behind authentication plus the admin role.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration. Origins are the SvelteKit dev server plus the
	// production storefront and admin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"https://bellavista-eats.sk",
			"https://admin.bellavista-eats.sk",
		},
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

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// Services shared across handlers
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, queries, cfg.BoxFee)

	geocoder := geocode.NewClient(cfg.GeocoderURL)
	origin := delivery.Coordinates{Lat: cfg.RestaurantLat, Lon: cfg.RestaurantLon}
	deliveryHandler := handler.NewDeliveryHandler(queries, geocoder, origin)

	catalogHandler := handler.NewCatalogHandler(queries)
	zoneHandler := handler.NewZoneHandler(queries)
	orderHandler := handler.NewOrderHandler(orderService, queries, queries, deliveryHandler, hub)

	// Storefront routes (no auth)
	r.Route("/menu", catalogHandler.RegisterPublicRoutes)
	r.Route("/zones", zoneHandler.RegisterPublicRoutes)
	r.Route("/delivery", deliveryHandler.RegisterRoutes)

	// Checkout and tracking: a valid token attaches the order to the
	// account, its absence means guest checkout.
	r.Group(func(r chi.Router) {
		r.Use(mw.OptionalAuthenticate(cfg.JWTSecret))
		r.Route("/orders", orderHandler.RegisterPublicRoutes)
	})

	// WebSocket: admins join the board room via token, customers join
	// their order's room via tracking code + phone.
	r.Get("/ws/orders", func(w http.ResponseWriter, r *http.Request) {
		if token := r.URL.Query().Get("token"); token != "" {
			claims, err := auth.ValidateToken(cfg.JWTSecret, token)
			if err != nil || claims.Role != enum.RoleAdmin {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			ws.ServeWS(hub, ws.AdminRoom, w, r)
			return
		}

		code := r.URL.Query().Get("code")
		phone := r.URL.Query().Get("phone")
		if _, err := orderService.TrackOrder(r.Context(), code, phone); err != nil {
			http.Error(w, "order not found", http.StatusNotFound)
			return
		}
		ws.ServeWS(hub, code, w, r)
	})

	// Account routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Route("/me", func(r chi.Router) {
			r.Get("/", authHandler.Me)
			orderHandler.RegisterAccountRoutes(r)
		})
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))
		r.Use(mw.RequireAdmin)

		r.Route("/admin", func(r chi.Router) {
			optionHandler := handler.NewOptionHandler(queries)
			r.Route("/products", func(r chi.Router) {
				catalogHandler.RegisterAdminRoutes(r)
				optionHandler.RegisterRoutes(r)
			})

			r.Route("/zones", zoneHandler.RegisterAdminRoutes)
			r.Route("/orders", orderHandler.RegisterAdminRoutes)
		})
	})

	return r
}
