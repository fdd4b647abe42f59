package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi"
	taggingtypes "github.com/aws/aws-sdk-go-v2/service/resourcegroupstaggingapi/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	apperrors "github.com/datatecnica/sampleshare/internal/errors"
)

// presignMaxDays is the SigV4 presigned URL validity ceiling. Longer TTLs
// are a capability limitation of the store, handled by the grant fallback.
const presignMaxDays = 7

// S3Gateway implements Gateway for Amazon S3.
type S3Gateway struct {
	client        *s3.Client
	presignClient *s3.PresignClient
	uploader      *manager.Uploader
	taggingClient *resourcegroupstaggingapi.Client
	region        string
}

// NewS3Gateway creates a new S3 gateway.
func NewS3Gateway(client *s3.Client, taggingClient *resourcegroupstaggingapi.Client, region string) *S3Gateway {
	return &S3Gateway{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		uploader:      manager.NewUploader(client),
		taggingClient: taggingClient,
		region:        region,
	}
}

// Exists checks whether a bucket exists and is accessible.
func (g *S3Gateway) Exists(ctx context.Context, container string) (bool, error) {
	_, err := g.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(container),
	})
	if err == nil {
		return true, nil
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return false, nil
	}
	log.Warnf("Cannot check bucket existence for %s: %v", container, err)
	return false, nil
}

// Create creates a bucket in the given region and tags it as a share
// container.
func (g *S3Gateway) Create(ctx context.Context, container, region string) error {
	input := &s3.CreateBucketInput{
		Bucket: aws.String(container),
	}
	// us-east-1 rejects an explicit location constraint
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}
	if _, err := g.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create bucket %s: %w", container, err)
	}

	_, err := g.client.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket: aws.String(container),
		Tagging: &types.Tagging{
			TagSet: []types.Tag{
				{Key: aws.String(ShareTagKey), Value: aws.String(ShareTagValue)},
			},
		},
	})
	if err != nil {
		log.Warnf("Failed to tag bucket %s: %v", container, err)
	}

	log.Infof("Created bucket %s in %s", container, region)
	return nil
}

// List returns all objects under the prefix, following pagination.
func (g *S3Gateway) List(ctx context.Context, container, prefix string) ([]ObjectRef, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(container),
		Prefix: aws.String(prefix),
	}

	var refs []ObjectRef
	for {
		result, err := g.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects under %s/%s: %w", container, prefix, err)
		}
		for _, obj := range result.Contents {
			ref := ObjectRef{Name: aws.ToString(obj.Key)}
			if obj.Size != nil {
				ref.Size = *obj.Size
			}
			refs = append(refs, ref)
		}
		if result.IsTruncated == nil || !*result.IsTruncated {
			break
		}
		input.ContinuationToken = result.NextContinuationToken
	}
	return refs, nil
}

// ListSamplePrefixes lists the immediate sub-directories under prefix.
func (g *S3Gateway) ListSamplePrefixes(ctx context.Context, container, prefix string) ([]string, error) {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	input := &s3.ListObjectsV2Input{
		Bucket:    aws.String(container),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	}

	var names []string
	for {
		result, err := g.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to list prefixes under %s/%s: %w", container, prefix, err)
		}
		for _, cp := range result.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name != "" {
				names = append(names, name)
			}
		}
		if result.IsTruncated == nil || !*result.IsTruncated {
			break
		}
		input.ContinuationToken = result.NextContinuationToken
	}
	return names, nil
}

// Copy copies one object between buckets.
func (g *S3Gateway) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	_, err := g.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstContainer),
		Key:        aws.String(dstName),
		CopySource: aws.String(url.PathEscape(srcContainer + "/" + srcName)),
	})
	if err != nil {
		return fmt.Errorf("failed to copy %s/%s to %s/%s: %w", srcContainer, srcName, dstContainer, dstName, err)
	}
	log.Debugf("Copied %s to %s/%s", srcName, dstContainer, dstName)
	return nil
}

// Upload writes an object using the transfer manager.
func (g *S3Gateway) Upload(ctx context.Context, container, name string, r io.Reader, quiet bool) error {
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
		bar := progressbar.DefaultBytes(size, "uploading")
		pbReader := progressbar.NewReader(r, bar)
		proxyReader = &pbReader
	}

	_, err := g.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
		Body:   proxyReader,
	})
	if err != nil {
		return fmt.Errorf("failed to upload to s3://%s/%s: %w", container, name, err)
	}
	return nil
}

// Download opens an object for reading.
func (g *S3Gateway) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	result, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download s3://%s/%s: %w", container, name, err)
	}
	return result.Body, nil
}

// Delete removes a single object.
func (g *S3Gateway) Delete(ctx context.Context, container, name string) error {
	_, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to delete s3://%s/%s: %w", container, name, err)
	}
	return nil
}

// SignedURL generates a presigned GET URL valid for ttlDays. TTLs beyond the
// SigV4 ceiling are reported as a capability error so the caller can fall
// back to an explicit grant.
func (g *S3Gateway) SignedURL(ctx context.Context, container, name string, ttlDays int) (string, error) {
	if ttlDays > presignMaxDays {
		return "", fmt.Errorf("presigned URLs are limited to %d days, requested %d: %w",
			presignMaxDays, ttlDays, apperrors.ErrCapability)
	}

	req, err := g.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	}, s3.WithPresignExpires(time.Duration(ttlDays)*24*time.Hour))
	if err != nil {
		if strings.Contains(err.Error(), "credentials") || strings.Contains(err.Error(), "anonymous") {
			return "", fmt.Errorf("cannot sign URL for s3://%s/%s: %w", container, name, apperrors.ErrCapability)
		}
		return "", fmt.Errorf("failed to sign URL for s3://%s/%s: %w", container, name, err)
	}
	return req.URL, nil
}

// ObjectURL returns the direct URL, which requires the caller to be
// authenticated and authorized.
func (g *S3Gateway) ObjectURL(container, name string) string {
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", container, url.PathEscape(name))
}

// SetDeletionPolicy sets a lifecycle rule expiring objects after the given
// number of days.
func (g *S3Gateway) SetDeletionPolicy(ctx context.Context, container string, days int) error {
	_, err := g.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(container),
		LifecycleConfiguration: &types.BucketLifecycleConfiguration{
			Rules: []types.LifecycleRule{
				{
					ID:     aws.String("sample-share-expiry"),
					Status: types.ExpirationStatusEnabled,
					Filter: &types.LifecycleRuleFilter{Prefix: aws.String("")},
					Expiration: &types.LifecycleExpiration{
						Days: aws.Int32(int32(days)),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to set deletion policy on %s: %w", container, err)
	}
	log.Infof("Set deletion policy for %s: delete objects after %d days", container, days)
	return nil
}

// GrantContainerRole grants read access on the bucket to an email grantee.
func (g *S3Gateway) GrantContainerRole(ctx context.Context, container, principal, role string) error {
	current, err := g.client.GetBucketAcl(ctx, &s3.GetBucketAclInput{
		Bucket: aws.String(container),
	})
	if err != nil {
		return fmt.Errorf("failed to read ACL of %s: %w", container, err)
	}

	grants := append(current.Grants, types.Grant{
		Grantee: &types.Grantee{
			Type:         types.TypeAmazonCustomerByEmail,
			EmailAddress: aws.String(principal),
		},
		Permission: types.PermissionRead,
	})

	_, err = g.client.PutBucketAcl(ctx, &s3.PutBucketAclInput{
		Bucket: aws.String(container),
		AccessControlPolicy: &types.AccessControlPolicy{
			Owner:  current.Owner,
			Grants: grants,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to grant read on %s to %s: %w", container, principal, err)
	}
	log.Infof("Granted read access to %s for bucket %s", principal, container)
	return nil
}

// GrantObjectRole grants read access on a single object to an email grantee.
func (g *S3Gateway) GrantObjectRole(ctx context.Context, container, name, principal, role string) error {
	current, err := g.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("failed to read ACL of %s/%s: %w", container, name, err)
	}

	grants := append(current.Grants, types.Grant{
		Grantee: &types.Grantee{
			Type:         types.TypeAmazonCustomerByEmail,
			EmailAddress: aws.String(principal),
		},
		Permission: types.PermissionRead,
	})

	_, err = g.client.PutObjectAcl(ctx, &s3.PutObjectAclInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
		AccessControlPolicy: &types.AccessControlPolicy{
			Owner:  current.Owner,
			Grants: grants,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to grant read on %s/%s to %s: %w", container, name, principal, err)
	}
	log.Infof("Granted read access to %s for object %s/%s", principal, container, name)
	return nil
}

// FindShareContainers lists buckets carrying the share tag via the Resource
// Groups Tagging API.
func (g *S3Gateway) FindShareContainers(ctx context.Context) ([]string, error) {
	input := &resourcegroupstaggingapi.GetResourcesInput{
		ResourceTypeFilters: []string{"s3:bucket"},
		TagFilters: []taggingtypes.TagFilter{
			{Key: aws.String(ShareTagKey), Values: []string{ShareTagValue}},
		},
	}

	var names []string
	for {
		result, err := g.taggingClient.GetResources(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to query tagged buckets: %w", err)
		}
		for _, mapping := range result.ResourceTagMappingList {
			arn := aws.ToString(mapping.ResourceARN)
			if idx := strings.LastIndex(arn, ":"); idx >= 0 {
				names = append(names, arn[idx+1:])
			}
		}
		if result.PaginationToken == nil || *result.PaginationToken == "" {
			break
		}
		input.PaginationToken = result.PaginationToken
	}
	return names, nil
}
