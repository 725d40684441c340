package httpapi

import (
	"encoding/json"
	"net/http"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// AnalysisRequestBody is the JSON body of POST /v1/analysis. The caller,
// organization and tier come from the token.
type AnalysisRequestBody struct {
	Data         json.RawMessage `json:"data"`
	Context      json.RawMessage `json:"context,omitempty"`
	TimeFrame    string          `json:"time_frame,omitempty"`
	Requirements json.RawMessage `json:"requirements,omitempty"`
}

func (d *Dependencies) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetCallerClaims(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	var body AnalysisRequestBody
	if err := utils.DecodeJSON(r, &body); err != nil {
		utils.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	tier, err := d.callerTier(r, claims)
	if err != nil {
		respondWithServiceError(w, err, nil)
		return
	}

	if !d.allowRequest(w, r, claims, tier) {
		return
	}

	req, err := models.NewAnalysisRequest(claims.CallerID, claims.OrganizationID, tier, body.Data, body.Context, body.Requirements, body.TimeFrame)
	if err != nil {
		utils.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	outcome, err := d.Processor.ProcessAnalysis(ctx, req)
	if err != nil {
		if outcome == nil {
			// The request never reached a provider.
			utils.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
			return
		}
		respondWithServiceError(w, err, outcome)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, outcome)
}

// callerTier returns the organization's current plan for organization
// members and the token's tier otherwise.
func (d *Dependencies) callerTier(r *http.Request, claims *auth.CallerClaims) (models.Tier, error) {
	if claims.OrganizationID == "" || d.Plans == nil {
		return claims.Tier, nil
	}
	plan, err := d.Plans.PlanFor(r.Context(), claims.OrganizationID)
	if err != nil {
		return "", err
	}
	if plan != claims.Tier {
		logging.Debugf("caller %s: token tier %s differs from organization plan %s", claims.CallerID, claims.Tier, plan)
	}
	return plan, nil
}
