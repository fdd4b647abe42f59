package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound - requested sample(s) or destination container absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict - destination container already exists when the caller asked to create it.
	ErrConflict = errors.New("container already exists")
	// ErrSecurity - destination equals source container; rejected before any side effect.
	ErrSecurity = errors.New("destination must not be the source container")
	// ErrNothingShared - every item in a multi-sample share failed to copy.
	ErrNothingShared = errors.New("no samples were copied, nothing was shared")
	// ErrCapability - the store cannot sign URLs with the current credentials.
	// Triggers the per-object grant fallback, nothing else.
	ErrCapability = errors.New("signed URL generation not supported by credentials")

	ErrMissingRequiredFields = errors.New("missing required fields")
	ErrInvalidEmail          = errors.New("invalid recipient email address")
	ErrInvalidContainerName  = errors.New("invalid container name")
	ErrRecordNotFound        = errors.New("share record not found")
)

// SampleNotFoundError formats a NotFound error carrying the sample id so an
// operator can retry manually.
func SampleNotFoundError(sampleID string) error {
	return fmt.Errorf("no files for sample %q: %w", sampleID, ErrNotFound)
}

// ContainerNotFoundError formats a NotFound error for a missing destination.
func ContainerNotFoundError(container string) error {
	return fmt.Errorf("container %q does not exist or is not accessible: %w", container, ErrNotFound)
}

// ContainerConflictError formats a Conflict error for an existing destination.
func ContainerConflictError(container string) error {
	return fmt.Errorf("container %q: %w", container, ErrConflict)
}

func ConfigNotSetError(config string) error {
	return fmt.Errorf("the %s configuration value must be set", config)
}
