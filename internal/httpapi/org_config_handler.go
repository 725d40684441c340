package httpapi

import (
	"net/http"

	"ai_orchestrator/internal/middleware"
	"ai_orchestrator/internal/models"
	"ai_orchestrator/internal/utils"
)

// UpdateOrgConfigRequest is the body of PUT /v1/organizations/{orgID}/config.
// Version is the version the caller last read; zero overwrites.
type UpdateOrgConfigRequest struct {
	Version         int                    `json:"version"`
	Providers       []models.Provider      `json:"providers"`
	RoutingStrategy models.RoutingStrategy `json:"routing_strategy,omitempty"`
}

// OrgConfigResponse is a saved configuration with credentials removed.
type OrgConfigResponse struct {
	OrganizationID  string                 `json:"organization_id"`
	Version         int                    `json:"version"`
	Providers       []models.Provider      `json:"providers"`
	RoutingStrategy models.RoutingStrategy `json:"routing_strategy,omitempty"`
	UpdatedBy       string                 `json:"updated_by"`
}

func (d *Dependencies) handleUpdateOrgConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetCallerClaims(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}
	orgID := r.PathValue("orgID")

	var req UpdateOrgConfigRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondWithErrorCode(w, http.StatusBadRequest, CodeInvalidRequest, err.Error(), nil)
		return
	}

	saved, err := d.OrgConfigs.UpdateOrganizationConfig(ctx, orgID, models.OrganizationConfig{
		OrganizationID:  orgID,
		Version:         req.Version,
		Providers:       models.ProviderDocument(req.Providers),
		RoutingStrategy: req.RoutingStrategy,
	}, claims.CallerID)
	if err != nil {
		respondWithServiceError(w, err, nil)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, toOrgConfigResponse(saved))
}

func (d *Dependencies) handleClearOrgConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, ok := middleware.GetCallerClaims(ctx)
	if !ok {
		utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
		return
	}

	if err := d.OrgConfigs.ClearOrganizationConfig(ctx, r.PathValue("orgID"), claims.CallerID); err != nil {
		respondWithServiceError(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toOrgConfigResponse(cfg *models.OrganizationConfig) OrgConfigResponse {
	list := make([]models.Provider, len(cfg.Providers))
	for i, p := range cfg.Providers {
		p = p.Clone()
		p.Config.APIKey = ""
		p.Config.Headers = nil
		list[i] = p
	}
	return OrgConfigResponse{
		OrganizationID:  cfg.OrganizationID,
		Version:         cfg.Version,
		Providers:       list,
		RoutingStrategy: cfg.RoutingStrategy,
		UpdatedBy:       cfg.UpdatedBy,
	}
}
