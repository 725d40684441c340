package orgconfig

import (
	"fmt"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/models"
)

// PermissionError means the requester may not change the organization's configuration.
type PermissionError struct {
	UserID         string
	OrganizationID string
	Role           auth.Role
}

func (e *PermissionError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("user %s is not a member of organization %s", e.UserID, e.OrganizationID)
	}
	return fmt.Sprintf("user %s has role %s in organization %s; admin or owner required", e.UserID, e.Role, e.OrganizationID)
}

// EntitlementError means the organization's plan does not include custom providers.
type EntitlementError struct {
	OrganizationID string
	Plan           models.Tier
	Required       models.Tier
}

func (e *EntitlementError) Error() string {
	return fmt.Sprintf("organization %s is on the %s plan; custom providers require %s or higher", e.OrganizationID, e.Plan, e.Required)
}

// ValidationError rejects a configuration. ProviderID is empty when the
// problem is not tied to one provider.
type ValidationError struct {
	ProviderID string
	Reason     string
	Err        error
}

func (e *ValidationError) Error() string {
	msg := e.Reason
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	if e.ProviderID == "" {
		return "invalid configuration: " + msg
	}
	return fmt.Sprintf("invalid provider %s: %s", e.ProviderID, msg)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
