// Package objectstore provides the object store gateway contract and its
// GCS and S3 implementations.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/datatecnica/sampleshare/internal/config"
)

// ObjectRef describes one stored object returned by a listing.
type ObjectRef struct {
	Name       string
	Size       int64
	Generation int64
}

// RoleObjectViewer is the read role granted to share recipients.
const RoleObjectViewer = "roles/storage.objectViewer"

// ShareTagKey and ShareTagValue mark containers provisioned by this tool so
// operators can reconcile store-side state against tracking records.
const (
	ShareTagKey   = "purpose"
	ShareTagValue = "sample-share"
)

// Gateway is the canonical object store contract the share lifecycle needs.
//
// SignedURL may fail with errors.ErrCapability when the active credentials
// cannot sign; callers fall back to per-object grants only on that error.
type Gateway interface {
	Exists(ctx context.Context, container string) (bool, error)
	Create(ctx context.Context, container, region string) error
	List(ctx context.Context, container, prefix string) ([]ObjectRef, error)
	// ListSamplePrefixes returns the immediate sub-directories under prefix,
	// stripped of the prefix and trailing slash.
	ListSamplePrefixes(ctx context.Context, container, prefix string) ([]string, error)
	Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error
	Upload(ctx context.Context, container, name string, r io.Reader, quiet bool) error
	Download(ctx context.Context, container, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, container, name string) error
	SignedURL(ctx context.Context, container, name string, ttlDays int) (string, error)
	// ObjectURL returns the direct, authentication-required URL for an
	// object. Used when signed URLs are unavailable.
	ObjectURL(container, name string) string
	SetDeletionPolicy(ctx context.Context, container string, days int) error
	GrantContainerRole(ctx context.Context, container, principal, role string) error
	GrantObjectRole(ctx context.Context, container, name, principal, role string) error
	// FindShareContainers lists containers carrying the share tag.
	FindShareContainers(ctx context.Context) ([]string, error)
}

// NewGateway creates a gateway for the configured platform.
func NewGateway(cfg *config.Config) (Gateway, error) {
	switch cfg.Platform {
	case "gcs":
		if cfg.GcsClient == nil {
			return nil, fmt.Errorf("GCS client not configured")
		}
		return NewGCSGateway(cfg.GcsClient, cfg.GCPProject), nil
	case "s3":
		client := s3.NewFromConfig(cfg.AwsConfig)
		taggingClient := resourcegroupstaggingapi.NewFromConfig(cfg.AwsConfig)
		return NewS3Gateway(client, taggingClient, cfg.Region), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", cfg.Platform)
	}
}
