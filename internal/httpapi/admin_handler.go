package httpapi

import (
	"net/http"

	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/utils"
)

// ReloadResponse reports what a registry reload installed.
type ReloadResponse struct {
	SystemProviders int    `json:"system_providers"`
	Organizations   int    `json:"organizations"`
	Error           string `json:"error,omitempty"`
}

// handleReloadProviders reinstalls the system providers and every stored
// organization configuration.
func (d *Dependencies) handleReloadProviders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	system, err := d.OrgConfigs.ReloadSystem(ctx)
	if err != nil {
		respondWithServiceError(w, err, nil)
		return
	}

	orgs, err := d.OrgConfigs.LoadAll(ctx)
	resp := ReloadResponse{SystemProviders: system, Organizations: orgs}
	if err != nil {
		// Organizations that loaded stay installed.
		logging.Warningf("provider reload incomplete: %v", err)
		resp.Error = err.Error()
		utils.RespondWithJSON(w, http.StatusMultiStatus, resp)
		return
	}

	logging.Infof("providers reloaded: %d system, %d organizations", system, orgs)
	utils.RespondWithJSON(w, http.StatusOK, resp)
}
