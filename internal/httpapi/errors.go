package httpapi

import (
	"errors"
	"net/http"

	"ai_orchestrator/internal/logging"
	"ai_orchestrator/internal/orchestrator"
	"ai_orchestrator/internal/orgconfig"
	"ai_orchestrator/internal/storage"
	"ai_orchestrator/internal/utils"
)

// Machine-readable error codes returned in the "code" field.
const (
	CodeInvalidRequest       = "invalid_request"
	CodeUpgradeRequired      = "upgrade_required"
	CodeProvidersUnavailable = "providers_unavailable"
	CodeForbidden            = "forbidden"
	CodePlanRequired         = "plan_required"
	CodeValidationFailed     = "validation_failed"
	CodeVersionConflict      = "version_conflict"
	CodeNotFound             = "not_found"
	CodeInternal             = "internal_error"
)

type validationDetails struct {
	ProviderID string `json:"provider_id,omitempty"`
	Reason     string `json:"reason"`
}

// respondWithServiceError maps domain errors onto HTTP responses.
// details is attached to terminal analysis failures.
func respondWithServiceError(w http.ResponseWriter, err error, details any) {
	var (
		permErr  *orgconfig.PermissionError
		entErr   *orgconfig.EntitlementError
		validErr *orgconfig.ValidationError
	)

	switch {
	case errors.Is(err, orchestrator.ErrNoEligibleProviders):
		utils.RespondWithErrorCode(w, http.StatusForbidden, CodeUpgradeRequired, err.Error(), details)
	case errors.Is(err, orchestrator.ErrAllProvidersFailed):
		utils.RespondWithErrorCode(w, http.StatusServiceUnavailable, CodeProvidersUnavailable, err.Error(), details)
	case errors.As(err, &permErr):
		utils.RespondWithErrorCode(w, http.StatusForbidden, CodeForbidden, permErr.Error(), nil)
	case errors.As(err, &entErr):
		utils.RespondWithErrorCode(w, http.StatusPaymentRequired, CodePlanRequired, entErr.Error(), map[string]any{
			"plan":     entErr.Plan,
			"required": entErr.Required,
		})
	case errors.As(err, &validErr):
		utils.RespondWithErrorCode(w, http.StatusUnprocessableEntity, CodeValidationFailed, validErr.Error(), validationDetails{
			ProviderID: validErr.ProviderID,
			Reason:     validErr.Reason,
		})
	case errors.Is(err, storage.ErrVersionConflict):
		utils.RespondWithErrorCode(w, http.StatusConflict, CodeVersionConflict, err.Error(), nil)
	case errors.Is(err, storage.ErrOrgConfigNotFound):
		utils.RespondWithErrorCode(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	default:
		logging.Errorf("request failed: %v", err)
		utils.RespondWithErrorCode(w, http.StatusInternalServerError, CodeInternal, "internal error", nil)
	}
}
