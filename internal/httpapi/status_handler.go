package httpapi

import (
	"net/http"
	"time"

	"ai_orchestrator/internal/accounting"
	"ai_orchestrator/internal/billing"
	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/utils"
)

// maxStatusWindow bounds the window query parameter.
const maxStatusWindow = 31 * 24 * time.Hour

// BrainStatusResponse is the body of GET /v1/brain/status.
type BrainStatusResponse struct {
	*accounting.BrainStatus
	MonthlySpendUSD *float64 `json:"monthly_spend_usd,omitempty"`
}

func (d *Dependencies) handleBrainStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetCallerClaims(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	window := accounting.StatusWindow
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 || parsed > maxStatusWindow {
			utils.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, "window must be a positive duration of at most 744h", nil)
			return
		}
		window = parsed
	}

	status, err := d.Status.BrainStatus(ctx, claims.OrganizationID, time.Now().Add(-window))
	if err != nil {
		respondWithServiceError(w, err, nil)
		return
	}

	resp := BrainStatusResponse{BrainStatus: status}
	if d.Spend != nil {
		spend, err := d.Spend.MonthlySpend(ctx, billing.AccountFor(claims.OrganizationID, claims.CallerID))
		if err != nil {
			logging.Warningf("failed to read monthly spend for %s: %v", claims.CallerID, err)
		} else {
			resp.MonthlySpendUSD = &spend
		}
	}

	utils.RespondWithJSON(w, http.StatusOK, resp)
}
