package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/iam"
	"cloud.google.com/go/storage"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"

	apperrors "github.com/datatecnica/sampleshare/internal/errors"
)

// GCSGateway implements Gateway for Google Cloud Storage.
type GCSGateway struct {
	client    *storage.Client
	projectID string
}

// NewGCSGateway creates a new GCS gateway.
func NewGCSGateway(client *storage.Client, projectID string) *GCSGateway {
	return &GCSGateway{
		client:    client,
		projectID: projectID,
	}
}

// Exists checks whether a bucket exists. Permission errors are logged and
// treated as "does not exist" so callers can attempt creation.
func (g *GCSGateway) Exists(ctx context.Context, container string) (bool, error) {
	_, err := g.client.Bucket(container).Attrs(ctx)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrBucketNotExist) {
		return false, nil
	}
	log.Warnf("Cannot check bucket existence for %s: %v", container, err)
	return false, nil
}

// Create creates a bucket in the given location and labels it as a share
// container.
func (g *GCSGateway) Create(ctx context.Context, container, region string) error {
	attrs := &storage.BucketAttrs{
		Location: region,
		Labels:   map[string]string{ShareTagKey: ShareTagValue},
	}
	if err := g.client.Bucket(container).Create(ctx, g.projectID, attrs); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", container, err)
	}
	log.Infof("Created bucket %s in %s", container, region)
	return nil
}

// List returns all objects under the prefix.
func (g *GCSGateway) List(ctx context.Context, container, prefix string) ([]ObjectRef, error) {
	it := g.client.Bucket(container).Objects(ctx, &storage.Query{Prefix: prefix})

	var refs []ObjectRef
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s/%s: %w", container, prefix, err)
		}
		refs = append(refs, ObjectRef{
			Name:       attrs.Name,
			Size:       attrs.Size,
			Generation: attrs.Generation,
		})
	}
	return refs, nil
}

// ListSamplePrefixes lists the immediate sub-directories under prefix.
func (g *GCSGateway) ListSamplePrefixes(ctx context.Context, container, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	it := g.client.Bucket(container).Objects(ctx, &storage.Query{
		Prefix:    prefix,
		Delimiter: "/",
	})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list prefixes under %s/%s: %w", container, prefix, err)
		}
		if attrs.Prefix == "" {
			continue
		}
		name := strings.TrimSuffix(strings.TrimPrefix(attrs.Prefix, prefix), "/")
		if name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// Copy copies one object between buckets.
func (g *GCSGateway) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	src := g.client.Bucket(srcContainer).Object(srcName)
	dst := g.client.Bucket(dstContainer).Object(dstName)

	if _, err := dst.CopierFrom(src).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s/%s: %w", srcContainer, srcName, dstContainer, dstName, err)
	}
	log.Debugf("Copied %s to %s/%s", srcName, dstContainer, dstName)
	return nil
}

// Upload writes an object to the bucket.
func (g *GCSGateway) Upload(ctx context.Context, container, name string, r io.Reader, quiet bool) error {
	obj := g.client.Bucket(container).Object(name)
	writer := obj.NewWriter(ctx)

	// Determine size for progress bar
	seeker, ok := r.(io.Seeker)
	var size int64 = -1
	if ok {
		if current, err := seeker.Seek(0, io.SeekCurrent); err == nil {
			if end, err := seeker.Seek(0, io.SeekEnd); err == nil {
				size = end - current
				seeker.Seek(current, io.SeekStart)
			}
		}
	}

	var proxyReader io.Reader = r
	if !quiet {
		log.Debugf("Uploading to GCS: gs://%s/%s", container, name)
		bar := progressbar.DefaultBytes(size, "uploading")
		pbReader := progressbar.NewReader(r, bar)
		proxyReader = &pbReader
	}

	if _, err := io.Copy(writer, proxyReader); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload to gs://%s/%s: %w", container, name, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload to gs://%s/%s: %w", container, name, err)
	}
	return nil
}

// Download opens an object for reading.
func (g *GCSGateway) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	reader, err := g.client.Bucket(container).Object(name).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download gs://%s/%s: %w", container, name, err)
	}
	return reader, nil
}

// Delete removes a single object.
func (g *GCSGateway) Delete(ctx context.Context, container, name string) error {
	if err := g.client.Bucket(container).Object(name).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", container, name, err)
	}
	return nil
}

// SignedURL generates a V4 signed GET URL valid for ttlDays.
//
// When the active credentials cannot sign (no private key, e.g. plain
// Compute Engine default credentials), the error is mapped to ErrCapability
// so the caller can fall back to an explicit access grant.
func (g *GCSGateway) SignedURL(ctx context.Context, container, name string, ttlDays int) (string, error) {
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}
	url, err := g.client.Bucket(container).SignedURL(name, opts)
	if err != nil {
		if isSigningCapabilityError(err) {
			return "", fmt.Errorf("cannot sign URL for gs://%s/%s: %w", container, name, apperrors.ErrCapability)
		}
		return "", fmt.Errorf("failed to sign URL for gs://%s/%s: %w", container, name, err)
	}
	return url, nil
}

// isSigningCapabilityError distinguishes missing-signing-capability errors
// from generic failures. The storage client surfaces these as credential
// errors rather than a dedicated type.
func isSigningCapabilityError(err error) bool {
	msg := err.Error()
	for _, marker := range []string{"private key", "credentials", "signBytes", "SignBlob", "iamcredentials"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ObjectURL returns the direct URL, which requires the caller to be
// authenticated and authorized.
func (g *GCSGateway) ObjectURL(container, name string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", container, url.PathEscape(name))
}

// SetDeletionPolicy sets a lifecycle rule deleting objects after the given
// number of days.
func (g *GCSGateway) SetDeletionPolicy(ctx context.Context, container string, days int) error {
	bucket := g.client.Bucket(container)
	update := storage.BucketAttrsToUpdate{
		Lifecycle: &storage.Lifecycle{
			Rules: []storage.LifecycleRule{
				{
					Action:    storage.LifecycleAction{Type: storage.DeleteAction},
					Condition: storage.LifecycleCondition{AgeInDays: int64(days)},
				},
			},
		},
	}
	if _, err := bucket.Update(ctx, update); err != nil {
		return fmt.Errorf("failed to set deletion policy on %s: %w", container, err)
	}
	log.Infof("Set deletion policy for %s: delete objects after %d days", container, days)
	return nil
}

// GrantContainerRole grants the role on the whole bucket to a user principal.
func (g *GCSGateway) GrantContainerRole(ctx context.Context, container, principal, role string) error {
	handle := g.client.Bucket(container).IAM()
	policy, err := handle.Policy(ctx)
	if err != nil {
		return fmt.Errorf("failed to read IAM policy of %s: %w", container, err)
	}
	policy.Add("user:"+principal, iam.RoleName(role))
	if err := handle.SetPolicy(ctx, policy); err != nil {
		return fmt.Errorf("failed to grant %s on %s to %s: %w", role, container, principal, err)
	}
	log.Infof("Granted %s access to %s for bucket %s", role, principal, container)
	return nil
}

// GrantObjectRole grants read access on a single object via its ACL.
func (g *GCSGateway) GrantObjectRole(ctx context.Context, container, name, principal, role string) error {
	acl := g.client.Bucket(container).Object(name).ACL()
	if err := acl.Set(ctx, storage.ACLEntity("user-"+principal), storage.RoleReader); err != nil {
		return fmt.Errorf("failed to grant object access on %s/%s to %s: %w", container, name, principal, err)
	}
	log.Infof("Granted %s access to %s for object %s/%s", role, principal, container, name)
	return nil
}

// FindShareContainers lists buckets in the project labeled as share
// containers.
func (g *GCSGateway) FindShareContainers(ctx context.Context) ([]string, error) {
	it := g.client.Buckets(ctx, g.projectID)

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list buckets: %w", err)
		}
		if attrs.Labels[ShareTagKey] == ShareTagValue {
			names = append(names, attrs.Name)
		}
	}
	return names, nil
}
