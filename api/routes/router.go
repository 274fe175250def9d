package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blueoakmerch/merchops-backend/api/controllers"
	"github.com/blueoakmerch/merchops-backend/api/middleware"
	"github.com/blueoakmerch/merchops-backend/internal/automap"
	"github.com/blueoakmerch/merchops-backend/internal/links"
	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/config"
	"github.com/blueoakmerch/merchops-backend/pkg/db"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	linkService links.Service,
	autoMapService automap.Service,
	orderRepo orderstore.Repository,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/reconciliation", func(r chi.Router) {
		r.Route("/mappings", func(r chi.Router) {
			r.Get("/", controllers.ListMappings(linkService, logg))
			r.Post("/", controllers.CreateMapping(linkService, logg))
			r.Get("/stats", controllers.MappingStats(linkService, logg))
			r.Patch("/{linkId}", controllers.CorrectMapping(linkService, logg))
			r.Delete("/{linkId}", controllers.RemoveMapping(linkService, logg))
		})

		r.Get("/storefront-orders/{orderId}/links", controllers.StorefrontOrderLinks(linkService, logg))
		r.Get("/unmapped", controllers.ListUnmapped(autoMapService, logg))
		r.Post("/auto-map", controllers.RunAutoMap(autoMapService, cfg.AutoMap, logg))
		r.Get("/provider-orders/search", controllers.SearchProviderOrders(orderRepo, logg))
	})

	return r
}
