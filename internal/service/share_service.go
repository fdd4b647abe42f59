// Package service implements the share lifecycle: provisioning a
// destination, copying sample data, granting time-limited access, notifying
// the recipient, and tracking the share until it expires or is deleted.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"

	"github.com/datatecnica/sampleshare/internal/domain"
	apperrors "github.com/datatecnica/sampleshare/internal/errors"
	"github.com/datatecnica/sampleshare/internal/notify"
	"github.com/datatecnica/sampleshare/internal/repository/objectstore"
	"github.com/datatecnica/sampleshare/internal/repository/recordstore"
)

// copyErrSentinel marks a sample whose copy failed partway, as opposed to 0
// which means no objects were found for it.
const copyErrSentinel = -1

// tempNameSampleLimit caps the sample portion of a temp container name so
// the name stays within the 63 character container limit, including the
// full-uuid collision retry suffix.
const tempNameSampleLimit = 19

var containerUnsafe = regexp.MustCompile(`[^a-z0-9-]+`)

// containerSafeSampleID lowercases the sample id and collapses characters
// not allowed in container names.
func containerSafeSampleID(sampleID string) string {
	part := containerUnsafe.ReplaceAllString(strings.ToLower(sampleID), "-")
	if len(part) > tempNameSampleLimit {
		part = part[:tempNameSampleLimit]
	}
	return strings.Trim(part, "-")
}

// ShareOutcome is the common part of a share result. A non-empty Warnings
// slice means the share succeeded but a secondary step (notification,
// tracking persistence) was degraded; callers must surface the distinction
// between clean success, degraded success, and failure.
type ShareOutcome struct {
	Record   domain.ShareRecord
	Warnings []string
}

// SingleShareResult is the outcome of a single-sample share.
type SingleShareResult struct {
	ShareOutcome
	DownloadURL string
	FileCount   int
}

// MultiShareResult is the outcome of a multi-sample share. Results holds the
// copied-file count per sample id: positive for copied samples, 0 when no
// objects were found, -1 when the copy errored partway.
type MultiShareResult struct {
	ShareOutcome
	Results    map[string]int
	Successful []string
}

// DeleteResult distinguishes record removal from object cleanup, which are
// reported independently so operators can reconcile failed cleanups.
type DeleteResult struct {
	RecordRemoved    bool
	CleanupSucceeded bool
}

// ShareService drives the share lifecycle against injected gateways.
type ShareService struct {
	store           objectstore.Gateway
	records         recordstore.Store
	notifier        notify.Notifier
	region          string
	sourcePrefix    string
	copyConcurrency int
	quiet           bool
}

// Option configures a ShareService.
type Option func(*ShareService)

// WithCopyConcurrency bounds the multi-sample copy pool.
func WithCopyConcurrency(n int) Option {
	return func(s *ShareService) {
		if n > 0 {
			s.copyConcurrency = n
		}
	}
}

// WithQuiet suppresses progress bars.
func WithQuiet(quiet bool) Option {
	return func(s *ShareService) { s.quiet = quiet }
}

// NewShareService creates a ShareService with injected collaborators.
func NewShareService(store objectstore.Gateway, records recordstore.Store, notifier notify.Notifier, region, sourcePrefix string, opts ...Option) *ShareService {
	s := &ShareService{
		store:           store,
		records:         records,
		notifier:        notifier,
		region:          region,
		sourcePrefix:    sourcePrefix,
		copyConcurrency: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// samplePrefix builds the listing prefix for one sample.
func (s *ShareService) samplePrefix(sampleID string) string {
	if s.sourcePrefix == "" {
		return sampleID
	}
	return strings.TrimSuffix(s.sourcePrefix, "/") + "/" + sampleID
}

// ShareSingle zips one sample's files, uploads the archive to a freshly
// provisioned temporary container with a deletion policy, obtains a
// time-limited download URL, notifies the recipient, and records the share.
//
// Notification and persistence failures are downgraded to warnings: the data
// is already shared at that point and must not be rolled back.
func (s *ShareService) ShareSingle(ctx context.Context, sourceContainer, sampleID, recipient string, ttlDays int) (*SingleShareResult, error) {
	if !domain.ValidSampleID(sampleID) {
		return nil, fmt.Errorf("sample id: %w", apperrors.ErrMissingRequiredFields)
	}
	if !domain.ValidEmail(recipient) {
		return nil, fmt.Errorf("recipient %q: %w", recipient, apperrors.ErrInvalidEmail)
	}
	if ttlDays <= 0 {
		return nil, fmt.Errorf("ttl days must be positive: %w", apperrors.ErrMissingRequiredFields)
	}

	refs, err := s.store.List(ctx, sourceContainer, s.samplePrefix(sampleID))
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, apperrors.SampleNotFoundError(sampleID)
	}

	log.Debugf("Archiving %d files for sample %s", len(refs), sampleID)
	archive, err := buildArchive(ctx, s.store, sourceContainer, refs, s.samplePrefix(sampleID))
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", sampleID, err)
	}

	destination, err := s.provisionTempContainer(ctx, sourceContainer, sampleID, ttlDays)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", sampleID, err)
	}

	archiveName := sampleID + ".zip"
	if err := s.store.Upload(ctx, destination, archiveName, bytes.NewReader(archive.Bytes()), s.quiet); err != nil {
		return nil, fmt.Errorf("sample %s: %w", sampleID, err)
	}

	var warnings []string
	downloadURL, err := s.store.SignedURL(ctx, destination, archiveName, ttlDays)
	if err != nil {
		if !errors.Is(err, apperrors.ErrCapability) {
			return nil, fmt.Errorf("sample %s: %w", sampleID, err)
		}
		// Credentials cannot sign; grant the recipient explicit read access
		// and hand out the authenticated direct URL instead.
		log.Warnf("Signed URL unavailable for %s, falling back to direct grant: %v", archiveName, err)
		if err := s.store.GrantObjectRole(ctx, destination, archiveName, recipient, objectstore.RoleObjectViewer); err != nil {
			return nil, fmt.Errorf("sample %s: signed URL unavailable and grant fallback failed: %w", sampleID, err)
		}
		downloadURL = s.store.ObjectURL(destination, archiveName)
		warnings = append(warnings, fmt.Sprintf(
			"signed URL unavailable; %s was granted direct read access instead (link requires sign-in)", recipient))
	}

	links := []notify.DownloadLink{{Filename: archiveName, URL: downloadURL}}
	if !s.notifier.SendSingleNotice(ctx, recipient, sampleID, links, ttlDays) {
		warnings = append(warnings, fmt.Sprintf(
			"failed to notify %s for sample %s; the sample is shared, send the link manually: %s",
			recipient, sampleID, downloadURL))
	}

	now := time.Now()
	record := domain.ShareRecord{
		ID:              uuid.NewString(),
		Kind:            domain.KindSingle,
		Subjects:        []string{sampleID},
		Recipient:       recipient,
		SourceContainer: sourceContainer,
		Destination:     domain.Destination{Container: destination, Object: archiveName},
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		Active:          true,
		Status:          domain.StatusCompleted,
	}
	if err := s.records.Append(ctx, record); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"sample %s was shared with %s, but the tracking record could not be saved: %v", sampleID, recipient, err))
	}

	return &SingleShareResult{
		ShareOutcome: ShareOutcome{Record: record, Warnings: warnings},
		DownloadURL:  downloadURL,
		FileCount:    len(refs),
	}, nil
}

// provisionTempContainer creates a container guaranteed not to collide with
// the source and applies the ttl deletion policy.
func (s *ShareService) provisionTempContainer(ctx context.Context, sourceContainer, sampleID string, ttlDays int) (string, error) {
	part := containerSafeSampleID(sampleID)
	name := fmt.Sprintf("temp-share-%s-%s", part, uuid.NewString()[:8])
	if part == "" || !domain.ValidContainerName(name) {
		return "", fmt.Errorf("sample %q: cannot derive a container name: %w", sampleID, apperrors.ErrInvalidContainerName)
	}

	exists, err := s.store.Exists(ctx, name)
	if err != nil {
		return "", err
	}
	if exists || name == sourceContainer {
		name = fmt.Sprintf("temp-share-%s-%s", part, strings.ReplaceAll(uuid.NewString(), "-", ""))
	}

	if err := s.store.Create(ctx, name, s.region); err != nil {
		return "", err
	}
	if err := s.store.SetDeletionPolicy(ctx, name, ttlDays); err != nil {
		return "", err
	}
	return name, nil
}

// ShareMultiple copies the given samples into a destination container and
// grants the recipient read access to it.
//
// The destination must never equal the source container: that would grant
// the recipient the entire source corpus, so it is rejected before any other
// work. Per-sample copy failures do not stop the remaining samples; the
// result carries a per-sample count so callers can report partial success.
func (s *ShareService) ShareMultiple(ctx context.Context, sourceContainer string, sampleIDs []string, recipient, destinationContainer string, ttlDays int, createNew bool) (*MultiShareResult, error) {
	if destinationContainer == sourceContainer {
		return nil, fmt.Errorf("destination %q: %w", destinationContainer, apperrors.ErrSecurity)
	}
	if len(sampleIDs) == 0 {
		return nil, fmt.Errorf("sample ids: %w", apperrors.ErrMissingRequiredFields)
	}
	if !domain.ValidEmail(recipient) {
		return nil, fmt.Errorf("recipient %q: %w", recipient, apperrors.ErrInvalidEmail)
	}
	if !domain.ValidContainerName(destinationContainer) {
		return nil, fmt.Errorf("destination %q: %w", destinationContainer, apperrors.ErrInvalidContainerName)
	}
	if ttlDays <= 0 {
		return nil, fmt.Errorf("ttl days must be positive: %w", apperrors.ErrMissingRequiredFields)
	}

	exists, err := s.store.Exists(ctx, destinationContainer)
	if err != nil {
		return nil, err
	}
	if createNew {
		if exists {
			return nil, apperrors.ContainerConflictError(destinationContainer)
		}
		if err := s.store.Create(ctx, destinationContainer, s.region); err != nil {
			return nil, err
		}
		if err := s.store.SetDeletionPolicy(ctx, destinationContainer, ttlDays); err != nil {
			return nil, err
		}
	} else if !exists {
		return nil, apperrors.ContainerNotFoundError(destinationContainer)
	}

	results := s.copySamples(ctx, sourceContainer, destinationContainer, sampleIDs)

	if err := s.store.GrantContainerRole(ctx, destinationContainer, recipient, objectstore.RoleObjectViewer); err != nil {
		return nil, fmt.Errorf("samples copied to %s but access grant failed for %s: %w",
			destinationContainer, recipient, err)
	}

	// Preserve the caller's ordering in the subjects list.
	var successful []string
	for _, sampleID := range sampleIDs {
		if results[sampleID] > 0 {
			successful = append(successful, sampleID)
		}
	}
	if len(successful) == 0 {
		return nil, fmt.Errorf("destination %s: %w", destinationContainer, apperrors.ErrNothingShared)
	}

	var warnings []string
	if !s.notifier.SendMultiNotice(ctx, recipient, successful, destinationContainer, ttlDays) {
		warnings = append(warnings, fmt.Sprintf(
			"failed to notify %s; the samples are shared in %s, notify them manually",
			recipient, destinationContainer))
	}

	now := time.Now()
	record := domain.ShareRecord{
		ID:              uuid.NewString(),
		Kind:            domain.KindMulti,
		Subjects:        successful,
		Recipient:       recipient,
		SourceContainer: sourceContainer,
		Destination:     domain.Destination{Container: destinationContainer},
		CreatedAt:       now,
		ExpiresAt:       now.Add(time.Duration(ttlDays) * 24 * time.Hour),
		Active:          true,
		Status:          domain.StatusCompleted,
	}
	if err := s.records.Append(ctx, record); err != nil {
		warnings = append(warnings, fmt.Sprintf(
			"%d samples were shared with %s, but the tracking record could not be saved: %v",
			len(successful), recipient, err))
	}

	return &MultiShareResult{
		ShareOutcome: ShareOutcome{Record: record, Warnings: warnings},
		Results:      results,
		Successful:   successful,
	}, nil
}

// copySamples copies each sample's objects to the destination with bounded
// concurrency. Results are keyed by sample id, so aggregation is
// order-independent.
func (s *ShareService) copySamples(ctx context.Context, sourceContainer, destinationContainer string, sampleIDs []string) map[string]int {
	var bar *progressbar.ProgressBar
	if !s.quiet {
		bar = progressbar.Default(int64(len(sampleIDs)), "copying samples")
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]int, len(sampleIDs))
	)
	sem := make(chan struct{}, s.copyConcurrency)

	for _, sampleID := range sampleIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(sampleID string) {
			defer wg.Done()
			defer func() { <-sem }()

			count := s.copyOneSample(ctx, sourceContainer, destinationContainer, sampleID)

			mu.Lock()
			results[sampleID] = count
			mu.Unlock()
			if bar != nil {
				bar.Add(1)
			}
		}(sampleID)
	}
	wg.Wait()

	return results
}

// copyOneSample copies all objects of one sample, preserving their relative
// paths. Returns the copied-file count, 0 when the sample has no objects, or
// the error sentinel when a copy failed.
func (s *ShareService) copyOneSample(ctx context.Context, sourceContainer, destinationContainer, sampleID string) int {
	refs, err := s.store.List(ctx, sourceContainer, s.samplePrefix(sampleID))
	if err != nil {
		log.Errorf("Error listing sample %s: %v", sampleID, err)
		return copyErrSentinel
	}
	if len(refs) == 0 {
		return 0
	}

	count := 0
	for _, ref := range refs {
		if err := s.store.Copy(ctx, sourceContainer, ref.Name, destinationContainer, ref.Name); err != nil {
			log.Errorf("Error copying sample %s: %v", sampleID, err)
			return copyErrSentinel
		}
		count++
	}
	return count
}

// Expire deactivates every active record whose expiry has passed as of now.
// It never deletes object store data: the deletion policies applied at
// provisioning time remove the bytes, this only updates bookkeeping. Calling
// it again with the same now is a no-op.
func (s *ShareService) Expire(ctx context.Context, now time.Time) ([]string, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var deactivated []string
	for _, record := range records {
		if !record.Active || !record.Expired(now) {
			continue
		}
		if err := s.records.UpdateStatus(ctx, record.ID, false); err != nil {
			return deactivated, fmt.Errorf("failed to deactivate record %s: %w", record.ID, err)
		}
		deactivated = append(deactivated, record.ID)
	}
	return deactivated, nil
}

// Deactivate flips one record's active flag off without touching stored data.
func (s *ShareService) Deactivate(ctx context.Context, id string) error {
	return s.records.UpdateStatus(ctx, id, false)
}

// DeleteShare removes a share record after a best-effort cleanup of its
// stored data. Single-sample destinations are purged; multi-sample
// destinations are never auto-deleted, since they may be operator-managed or
// serve several grants. Cleanup failure does not block record removal, but
// is reported separately so operators can reconcile manually.
func (s *ShareService) DeleteShare(ctx context.Context, id string) (DeleteResult, error) {
	record, err := s.records.Get(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}

	cleanupOK := true
	if record.Kind == domain.KindSingle {
		cleanupOK = s.cleanupSingleDestination(ctx, record)
	}

	if err := s.records.Delete(ctx, id); err != nil {
		return DeleteResult{RecordRemoved: false, CleanupSucceeded: cleanupOK}, err
	}
	return DeleteResult{RecordRemoved: true, CleanupSucceeded: cleanupOK}, nil
}

// cleanupSingleDestination deletes every object under the record's
// destination container. Errors are logged, not propagated: the record is
// removed regardless.
func (s *ShareService) cleanupSingleDestination(ctx context.Context, record domain.ShareRecord) bool {
	refs, err := s.store.List(ctx, record.Destination.Container, "")
	if err != nil {
		log.Errorf("Cleanup of share %s failed listing %s: %v", record.ID, record.Destination.Container, err)
		return false
	}
	if len(refs) == 0 {
		// Nothing left to delete; the store-side policy may have fired
		// already. Surface as failed cleanup so the operator can verify.
		log.Warnf("Cleanup of share %s found no objects under %s", record.ID, record.Destination.Container)
		return false
	}

	ok := true
	for _, ref := range refs {
		if err := s.store.Delete(ctx, record.Destination.Container, ref.Name); err != nil {
			log.Errorf("Cleanup of share %s failed deleting %s: %v", record.ID, ref.Name, err)
			ok = false
		}
	}
	return ok
}

// ListShares returns all records with derived view fields as of now.
func (s *ShareService) ListShares(ctx context.Context, now time.Time) ([]recordstore.RecordView, error) {
	records, err := s.records.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return recordstore.DeriveView(records, now), nil
}

// ListSamples discovers the sample ids available under the source prefix.
func (s *ShareService) ListSamples(ctx context.Context, sourceContainer string) ([]string, error) {
	return s.store.ListSamplePrefixes(ctx, sourceContainer, s.sourcePrefix)
}

// ReconcileContainers lists share-tagged containers on the store side so an
// operator can compare them against tracking records.
func (s *ShareService) ReconcileContainers(ctx context.Context) ([]string, error) {
	return s.store.FindShareContainers(ctx)
}
