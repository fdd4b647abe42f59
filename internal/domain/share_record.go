package domain

import (
	"time"

	apperrors "github.com/datatecnica/sampleshare/internal/errors"
)

// ShareKind distinguishes single-sample archive shares from multi-sample
// container shares.
type ShareKind string

const (
	KindSingle ShareKind = "single"
	KindMulti  ShareKind = "multi"
)

// ShareStatus tracks lifecycle progress. Distinct from Active, which tracks
// expiry and listing visibility.
type ShareStatus string

const (
	StatusProvisioning ShareStatus = "provisioning"
	StatusCopying      ShareStatus = "copying"
	StatusGranted      ShareStatus = "granted"
	StatusFailed       ShareStatus = "failed"
	StatusCompleted    ShareStatus = "completed"
)

// Destination addresses where shared data lives. Container is always set;
// Object is set only for single-sample shares, where it names the uploaded
// archive within the container. Kind on the owning record is the tag.
type Destination struct {
	Container string `json:"container" dynamodbav:"container"`
	Object    string `json:"object,omitempty" dynamodbav:"object,omitempty"`
}

// ShareRecord is the tracked metadata for one share.
//
// The id is immutable once assigned. Status and Active are the only fields
// mutated after creation.
type ShareRecord struct {
	ID              string      `json:"id" dynamodbav:"id"`
	Kind            ShareKind   `json:"kind" dynamodbav:"kind"`
	Subjects        []string    `json:"subjects" dynamodbav:"subjects"`
	Recipient       string      `json:"recipient" dynamodbav:"recipient"`
	SourceContainer string      `json:"source_container" dynamodbav:"source_container"`
	Destination     Destination `json:"destination" dynamodbav:"destination"`
	CreatedAt       time.Time   `json:"created_at" dynamodbav:"created_at"`
	ExpiresAt       time.Time   `json:"expires_at" dynamodbav:"expires_at"`
	Active          bool        `json:"active" dynamodbav:"active"`
	Status          ShareStatus `json:"status" dynamodbav:"status"`
}

// Validate checks the record invariants.
func (r *ShareRecord) Validate() error {
	if r.ID == "" || r.Recipient == "" || r.SourceContainer == "" {
		return apperrors.ErrMissingRequiredFields
	}
	if len(r.Subjects) == 0 {
		return apperrors.ErrMissingRequiredFields
	}
	if !r.ExpiresAt.After(r.CreatedAt) {
		return apperrors.ErrMissingRequiredFields
	}
	if r.Destination.Container == "" || r.Destination.Container == r.SourceContainer {
		return apperrors.ErrSecurity
	}
	return nil
}

// Expired reports whether the share has passed its expiry as of now.
func (r *ShareRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
