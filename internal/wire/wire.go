package wire

import (
	"context"
	"net/http"
	"time"

	"clinic-booking/internal/adaptor"
	"clinic-booking/internal/data/repository"
	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/middleware"
	"clinic-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Check reports whether a backing service is reachable.
type Check func(ctx context.Context) error

// Options carries what the router needs beyond the repositories.
type Options struct {
	Deps     usecase.Dependencies
	Gatherer prometheus.Gatherer
	Checks   map[string]Check
}

// App holds the router and the services behind it. The retry worker drives
// Service.Booking directly.
type App struct {
	Router  *chi.Mux
	Service *usecase.Service
}

// guards are the route middlewares shared by the wire files.
type guards struct {
	auth      func(http.Handler) http.Handler
	admin     func(http.Handler) http.Handler
	rateLimit func(http.Handler) http.Handler
}

// Wiring builds the services, handlers and router.
func Wiring(repo *repository.Repository, config *utils.Config, opts Options, logger *zap.Logger) *App {
	service := usecase.NewService(repo, config, opts.Deps, logger)
	handler := adaptor.NewHandler(service, logger)

	router := setupRouter(handler, service, config, opts, logger)

	return &App{
		Router:  router,
		Service: service,
	}
}

func setupRouter(
	handler *adaptor.Handler,
	service *usecase.Service,
	config *utils.Config,
	opts Options,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger(logger, opts.Deps.Metrics))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))

	g := guards{
		auth:      middleware.AuthSession(service.Auth, logger),
		admin:     middleware.Admin(logger),
		rateLimit: middleware.NewRateLimiter(config.RateLimit, logger).Limit,
	}

	wireAuth(r, handler.Auth, g)
	wireUser(r, handler.User, g)
	wireProvider(r, handler.Provider, g)
	wireSlot(r, handler.Slot, g)
	wireBooking(r, handler.Booking, g)
	wireWallet(r, handler.Wallet, g)
	wireActivity(r, handler.Activity, g)

	// Liveness
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Readiness pings every backing service
	r.Get("/ready", readyHandler(opts.Checks, logger))

	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func readyHandler(checks map[string]Check, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		failed := make(map[string]string)
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
				failed[name] = err.Error()
			}
		}

		if len(failed) > 0 {
			utils.ResponseJSON(w, http.StatusServiceUnavailable, false, "Not ready", nil, failed)
			return
		}
		utils.ResponseSuccess(w, "Ready", nil)
	}
}
