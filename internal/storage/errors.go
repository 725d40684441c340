package storage

import "errors"

var (
	// ErrProviderNotFound is returned when a system provider is not found
	ErrProviderNotFound = errors.New("provider not found")

	// ErrOrgConfigNotFound is returned when an organization has no stored configuration
	ErrOrgConfigNotFound = errors.New("organization configuration not found")

	// ErrVersionConflict is returned when a configuration was changed concurrently
	ErrVersionConflict = errors.New("organization configuration version conflict")

	// ErrMembershipNotFound is returned when a user has no role in an organization
	ErrMembershipNotFound = errors.New("membership not found")
)
