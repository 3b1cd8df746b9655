package main

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"

	"exboard/internal/config"
	"exboard/internal/constants"
	"exboard/internal/dashboard"
	"exboard/internal/exceptions"
	"exboard/internal/filters"
	"exboard/internal/fleet"
	"exboard/internal/logger"
	"exboard/internal/session"
	"exboard/internal/terminal"
	"exboard/pkg/bootstrap"
	"exboard/pkg/circuitbreaker"
	"exboard/pkg/health"
	"exboard/pkg/logging"
	"exboard/pkg/metrics"
	"exboard/pkg/middleware"
	"exboard/pkg/ratelimit"
	"exboard/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	api            fleet.API
	breaker        *fleet.BreakerAPI
	store          session.Store
	memoryStore    *session.MemoryStore
	manager        *session.Manager
	tracerProvider *tracing.TracerProvider
	router         *gin.Engine
	server         *http.Server
	stopLimiter    context.CancelFunc
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base: bootstrap.NewBase(cfg, log),
	}
}

// Initialize wires everything a session needs: fleet client, session store,
// tracing and metrics.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.InitRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.Register()

	a.initFleet()

	if err := a.initStore(); err != nil {
		return fmt.Errorf("failed to initialize session store: %w", err)
	}

	if err := a.initManager(); err != nil {
		return fmt.Errorf("failed to initialize session manager: %w", err)
	}

	return nil
}

func (a *App) initFleet() {
	client := fleet.NewClient(a.Config.Fleet, a.Logger)
	a.api = client

	if a.Config.CircuitBreaker.Enabled {
		cbConfig := circuitbreaker.FromSettings("fleet-api", a.Config.CircuitBreaker)
		cbConfig.OnStateChange = func(name string, from, to gobreaker.State) {
			a.Logger.WarnwCtx(logging.WithServiceName(context.Background(), constants.ServiceName),
				"Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		}
		a.breaker = fleet.NewBreakerAPI(client, cbConfig)
		a.api = a.breaker
	}
}

func (a *App) initStore() error {
	switch a.Config.Session.Store {
	case constants.StoreTypeRedis:
		a.store = session.NewRedisStore(a.Redis, a.Config.Session.TTL())
	default:
		mem, err := session.NewMemoryStore(session.MemoryStoreConfig{
			MaxSessions: a.Config.Session.MaxSessions,
			TTL:         a.Config.Session.TTL(),
		})
		if err != nil {
			return err
		}
		a.memoryStore = mem
		a.store = mem
	}
	return nil
}

func (a *App) initManager() error {
	loc, err := a.Config.Display.Location()
	if err != nil {
		return fmt.Errorf("invalid display timezone: %w", err)
	}

	a.manager = session.NewManager(a.api, a.store, a.Logger, session.ManagerConfig{
		Collation: filters.ParseTag(a.Config.Display.Collation),
		Runner: exceptions.RunnerConfig{
			Location:       loc,
			DateTimeLayout: a.Config.Display.DateTimeLayout,
		},
	})
	return nil
}

// InitHTTP builds the gin router and server for the serve command.
func (a *App) InitHTTP(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))

	if a.Config.RateLimit.Enabled {
		limiterCtx, cancel := context.WithCancel(context.Background())
		a.stopLimiter = cancel
		router.Use(ratelimit.RateLimitMiddleware(limiterCtx, ratelimit.FromSettings(a.Config.RateLimit)))
	}

	healthRegistry := health.NewCheckerRegistry()
	if a.Redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.Redis))
	}
	if a.breaker != nil {
		healthRegistry.RegisterOptional(health.NewFuncChecker("fleet", a.breaker.Check))
	}
	router.GET("/health", healthRegistry.Handler())
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	dashboard.NewHandler(a.manager, a.Logger).RegisterRoutes(router)
	a.router = router

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.Config.Server.ReadTimeout(),
		WriteTimeout: a.Config.Server.WriteTimeout(),
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		a.Logger.InfowCtx(ctx, "Server listening", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Report opens one session preselected with the optional filters and prints
// the resulting table.
func (a *App) Report(ctx context.Context, w io.Writer, ruleID, deviceID string) error {
	results := exceptions.NewResults()
	sel := exceptions.Selection{RuleID: ruleID, DeviceID: deviceID}

	s, err := a.manager.OpenWith(ctx, results, sel)
	if err != nil {
		return err
	}
	if s.State() == session.StateReady {
		defer func() {
			if err := a.manager.Close(ctx, s.ID); err != nil {
				a.Logger.WarnwCtx(ctx, "Failed to close report session", "error", err)
			}
		}()
	}

	report := terminal.Report{
		Title:     "Exceptions, previous day",
		Rules:     s.RuleControl.Options(),
		Assets:    s.AssetControl.Options(),
		Selection: s.Selection(),
		View:      results.View(),
	}
	return report.Render(w, terminal.DefaultStyles())
}

func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.InfowCtx(logging.WithServiceName(ctx, constants.ServiceName), "Shutting down exboard")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.server.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("HTTP server shutdown error: %w", err))
			}
		}

		if a.stopLimiter != nil {
			a.stopLimiter()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		if a.memoryStore != nil {
			a.memoryStore.Close()
		}

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
