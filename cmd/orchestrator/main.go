package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"ai_orchestrator/internal/accounting"
	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/config"
	"ai_orchestrator/internal/httpapi"
	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/orchestrator"
	"ai_orchestrator/internal/orgconfig"
	"ai_orchestrator/internal/providers"
	"ai_orchestrator/internal/queue"
	"ai_orchestrator/internal/ratelimit"
	"ai_orchestrator/internal/routing"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// app holds what main has to shut down.
type app struct {
	db       *storage.DB
	redis    *redis.Client
	registry *providers.Registry
	workers  []interface{ Stop() error }
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	utils.SetDefaultLogLevel(utils.ParseLogLevel(os.Getenv("LOG_LEVEL")))

	defaults, err := config.LoadDefaults(cfg.DefaultsFile)
	if err != nil {
		logging.Fatalf("Failed to load defaults: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := &app{}
	deps, manager, err := a.build(ctx, cfg, defaults)
	if err != nil {
		logging.Fatalf("Failed to start: %v", err)
	}

	if n, err := manager.ReloadSystem(ctx); err != nil {
		logging.Fatalf("Failed to install system providers: %v", err)
	} else {
		logging.Infof("Installed %d system providers", n)
	}
	if n, err := manager.LoadAll(ctx); err != nil {
		logging.Errorf("Some organization configurations were not installed: %v", err)
	} else {
		logging.Infof("Installed %d organization configurations", n)
	}

	go reloadPeriodically(ctx, manager, cfg.Provider.ReloadInterval)

	addr := ":" + cfg.HTTPPort
	server := &http.Server{
		Addr:         addr,
		Handler:      httpapi.NewRouter(deps),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.Provider.RequestTimeout*3 + 30*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logging.Infof("AI orchestrator listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Infof("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Errorf("Server forced to shutdown: %v", err)
	}
	a.close()
	cancel()

	logging.Infof("Server exited")
}

// build wires storage, queues, the registry and the services behind the
// HTTP layer. Without DATABASE_URL everything lives in memory.
func (a *app) build(ctx context.Context, cfg *config.Config, defaults *config.Defaults) (*httpapi.Dependencies, *orgconfig.Manager, error) {
	rates, err := defaults.RateTable()
	if err != nil {
		return nil, nil, err
	}
	resolver, err := routing.NewTierResolver(defaults.Policies())
	if err != nil {
		return nil, nil, err
	}

	registry, err := providers.NewRegistry(providers.NewFactory(providers.Options{Timeout: cfg.Provider.RequestTimeout}))
	if err != nil {
		return nil, nil, err
	}
	a.registry = registry
	var prober orgconfig.Prober
	if adapter, ok := registry.Adapter(models.ProviderTypeLocalServer); ok {
		prober, _ = adapter.(orgconfig.Prober)
	}

	if cfg.Redis.Address != "" {
		a.redis, err = queue.Connect(ctx, cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		logging.Infof("Connected to Redis at %s", cfg.Redis.Address)
	}

	var (
		roles  auth.RoleLookup
		plans  auth.EntitlementLookup
		store  orgconfig.ConfigStore
		system orgconfig.SystemSource
		usage  accounting.UsageLog
		stats  accounting.UsageStats
		spend  billing.SpendTracker
	)

	var billingQueue accounting.Enqueuer[billing.BillingUpdate]
	if a.redis != nil {
		tracker := billing.NewRedisSpendTracker(a.redis)
		worker, err := startBillingWorker(ctx, a.redis, tracker, cfg.Queue)
		if err != nil {
			return nil, nil, err
		}
		a.workers = append(a.workers, worker)
		billingQueue = worker
		spend = tracker
	}

	if cfg.Database.URL != "" {
		a.db, err = storage.NewDB(storage.DBConfig{
			URL:                 cfg.Database.URL,
			MaxOpenConns:        cfg.Database.MaxOpenConns,
			MaxIdleConns:        cfg.Database.MaxIdleConns,
			ConnMaxLifetime:     cfg.Database.ConnMaxLifetime,
			ConnMaxIdleTime:     cfg.Database.ConnMaxIdleTime,
			MembershipCacheSize: cfg.Cache.MembershipCacheSize,
			MembershipCacheTTL:  cfg.Cache.MembershipCacheTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := a.db.Migrate(ctx); err != nil {
			return nil, nil, err
		}
		enc, err := storage.NewEncryptionFromBase64(cfg.EncryptionKey)
		if err != nil {
			return nil, nil, err
		}

		memberships := storage.NewMembershipRepository(a.db)
		usageRepo := storage.NewUsageRepository(a.db)
		roles, plans = memberships, memberships
		store = storage.NewOrgConfigRepository(a.db, enc)
		system = storage.NewProviderRepository(a.db, enc)
		stats = usageRepo

		worker, err := a.startUsageWorker(ctx, cfg, usageRepo)
		if err != nil {
			return nil, nil, err
		}
		usage = accounting.NewQueueUsageLog(worker, billingQueue)
		logging.Infof("Using Postgres storage")
	} else {
		dir := auth.NewStaticDirectory()
		memLog := accounting.NewMemoryUsageLog()
		roles, plans = dir, dir
		store = orgconfig.NewMemoryStore()
		system = defaults
		usage, stats = memLog, memLog
		logging.Warningf("DATABASE_URL not set: configuration and usage are kept in memory")
	}

	manager := orgconfig.NewManager(roles, plans, store, system, registry, prober, orgconfig.Options{
		MinimumPlan:  cfg.OrgConfig.MinimumPlan,
		ProbeTimeout: cfg.Provider.ProbeTimeout,
	})
	processor := orchestrator.NewProcessor(registry, resolver, rates, usage, nil, orchestrator.Config{
		AttemptTimeout: cfg.Provider.RequestTimeout,
	})

	deps := &httpapi.Dependencies{
		Processor:  processor,
		Status:     accounting.NewStatus(stats, registry),
		OrgConfigs: manager,
		JWTSecret:  cfg.JWTSecret,
		Plans:      plans,
		Spend:      spend,
		RateLimits: ratelimit.TierLimits(cfg.RateLimit.PerMinute),
	}
	if a.redis != nil {
		deps.RateLimiter = ratelimit.NewRateLimiter(a.redis)
	} else {
		logging.Warningf("REDIS_ADDRESS not set: analysis rate limits are disabled")
	}
	return deps, manager, nil
}

func (a *app) close() {
	for _, w := range a.workers {
		if err := w.Stop(); err != nil {
			logging.Errorf("Failed to stop worker: %v", err)
		}
	}
	if a.registry != nil {
		a.registry.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func reloadPeriodically(ctx context.Context, manager *orgconfig.Manager, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := manager.ReloadSystem(ctx); err != nil {
				logging.Errorf("Periodic system provider reload failed: %v", err)
			}
			if _, err := manager.LoadAll(ctx); err != nil {
				logging.Errorf("Periodic organization reload failed: %v", err)
			}
		}
	}
}
