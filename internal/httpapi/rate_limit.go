package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

const CodeRateLimited = "rate_limited"

// allowRequest applies the caller's per-tier limit and writes the 429
// response when it is exhausted. Limiter errors let the request through.
func (d *Dependencies) allowRequest(w http.ResponseWriter, r *http.Request, claims *auth.CallerClaims, tier models.Tier) bool {
	if d.RateLimiter == nil {
		return true
	}
	limit := d.RateLimits.For(tier)
	allowed, remaining, resetAt, err := d.RateLimiter.AllowWithDetails(r.Context(), "caller:"+claims.CallerID, limit)
	if err != nil {
		logging.Warningf("rate limiter unavailable, allowing %s: %v", claims.CallerID, err)
		return true
	}
	if limit <= 0 {
		return true
	}

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	if allowed {
		return true
	}

	retryAfter := int(time.Until(resetAt).Seconds()) + 1
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	utils.RespondWithErrorCode(w, http.StatusTooManyRequests, CodeRateLimited, "rate limit exceeded", map[string]any{
		"tier":  tier,
		"limit": limit,
	})
	return false
}
