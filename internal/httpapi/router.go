package httpapi

import (
	"context"
	"net/http"
	"time"

	"ai_orchestrator/internal/accounting"
	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/ratelimit"
)

// AnalysisProcessor runs analysis requests.
type AnalysisProcessor interface {
	ProcessAnalysis(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisOutcome, error)
}

// StatusReporter answers brain status queries.
type StatusReporter interface {
	BrainStatus(ctx context.Context, orgID string, since time.Time) (*accounting.BrainStatus, error)
}

// OrgConfigManager changes organization configurations and reloads the registry.
type OrgConfigManager interface {
	UpdateOrganizationConfig(ctx context.Context, orgID string, cfg models.OrganizationConfig, requestedBy string) (*models.OrganizationConfig, error)
	ClearOrganizationConfig(ctx context.Context, orgID, requestedBy string) error
	ReloadSystem(ctx context.Context) (int, error)
	LoadAll(ctx context.Context) (int, error)
}

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Processor  AnalysisProcessor
	Status     StatusReporter
	OrgConfigs OrgConfigManager
	JWTSecret  []byte

	// Plans overrides the tier claim for callers that belong to an
	// organization. Nil trusts the token.
	Plans auth.EntitlementLookup

	// Spend is optional; nil omits spend from status responses.
	Spend billing.SpendTracker

	// RateLimiter is optional; nil disables analysis rate limits.
	RateLimiter ratelimit.Limiter
	RateLimits  ratelimit.TierLimits
}

// NewRouter creates an HTTP router with all routes registered.
func NewRouter(deps *Dependencies) *http.ServeMux {
	mux := http.NewServeMux()
	registerRoutes(mux, deps)
	return mux
}

func registerRoutes(mux *http.ServeMux, deps *Dependencies) {
	callerJWT := middleware.CallerJWTMiddleware(deps.JWTSecret)

	// Health check endpoint - public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.Handle("POST /v1/analysis", callerJWT(http.HandlerFunc(deps.handleAnalysis)))
	mux.Handle("GET /v1/brain/status", callerJWT(http.HandlerFunc(deps.handleBrainStatus)))

	mux.Handle("PUT /v1/organizations/{orgID}/config", callerJWT(http.HandlerFunc(deps.handleUpdateOrgConfig)))
	mux.Handle("DELETE /v1/organizations/{orgID}/config", callerJWT(http.HandlerFunc(deps.handleClearOrgConfig)))

	// Platform operations
	mux.Handle("POST /admin/providers/reload", callerJWT(middleware.RequirePlatformAdmin(http.HandlerFunc(deps.handleReloadProviders))))
}
