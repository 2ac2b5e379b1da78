package handlers

import (
	"net/http"
	"time"

	"github.com/ecovend/backend/internal/catalog"
	"github.com/ecovend/backend/internal/config"
	"github.com/ecovend/backend/internal/database"
	"github.com/ecovend/backend/internal/metrics"
	mW "github.com/ecovend/backend/internal/middleware"
	"github.com/ecovend/backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

// Dependencies is everything the HTTP layer needs.
type Dependencies struct {
	Accounts   *services.AccountService
	Tokens     *services.TokenService
	Sessions   database.SessionStore
	Classifier Classifier
	Catalog    *catalog.Catalog
	Rewards    *config.RewardsConfig
	Ledger     *config.LedgerConfig
	StaticDir  string
	Log        zerolog.Logger
}

// NewRouter wires the API routes.
func NewRouter(deps Dependencies) http.Handler {
	recent := deps.Ledger.RecentActivityCount

	authHandler := NewAuthHandler(deps.Accounts, deps.Tokens, deps.Sessions, recent, deps.Rewards.DefaultMachineID, deps.Log)
	catalogHandler := NewCatalogHandler(deps.Catalog)
	accountHandler := NewAccountHandler(deps.Accounts, recent, deps.Log)
	recycleHandler := NewRecycleHandler(deps.Accounts, deps.Classifier, deps.Sessions, deps.Rewards, recent, deps.Log)
	rewardsHandler := NewRewardsHandler(deps.Accounts, deps.Catalog, recent, deps.Log)
	walletHandler := NewWalletHandler(deps.Accounts, deps.Catalog, recent, deps.Log)
	shopHandler := NewShopHandler(deps.Accounts, deps.Catalog, recent, deps.Log)

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mW.SecurityHeaders)
	r.Use(mW.RequestLogger(deps.Log))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		services.SendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// Catalog images
	r.Handle("/static/catalog/*", http.StripPrefix("/static/catalog/", mW.StaticFileServer(deps.StaticDir)))

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/quick-login", authHandler.QuickLogin)
		r.Get("/sessions/{machineId}", authHandler.ActiveSession)

		r.Get("/catalog/products", catalogHandler.Products)
		r.Get("/catalog/vouchers", catalogHandler.Vouchers)
		r.Get("/catalog/transfer-methods", catalogHandler.TransferMethods)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.Auth(deps.Tokens, deps.Sessions, deps.Log))

			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/account", accountHandler.Account)
			r.Get("/activities", accountHandler.Activities)

			r.Post("/recycle/scan", recycleHandler.Scan)
			r.Post("/recycle/confirm", recycleHandler.Confirm)

			r.Post("/rewards/redeem", rewardsHandler.Redeem)
			r.Get("/rewards/vault", rewardsHandler.Vault)
			r.Get("/rewards/vault/{activityId}/qr", rewardsHandler.QR)

			r.Post("/wallet/cash-out", walletHandler.CashOut)

			r.Post("/shop/purchase", shopHandler.Purchase)
		})
	})

	return r
}
