package service

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/datatecnica/sampleshare/internal/domain"
	apperrors "github.com/datatecnica/sampleshare/internal/errors"
	"github.com/datatecnica/sampleshare/internal/notify"
	"github.com/datatecnica/sampleshare/internal/repository/objectstore"
)

// fakeGateway is an in-memory, call-recording object store.
type fakeGateway struct {
	mu      sync.Mutex
	objects map[string]map[string][]byte // container -> name -> data

	calls        []string
	created      []string
	policies     map[string]int
	objectGrants []string // "container/name -> principal"
	bucketGrants []string // "container -> principal"

	signedURLErr error
	copyErrNames map[string]bool // object names whose copy fails
	deleteErr    bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		objects:      make(map[string]map[string][]byte),
		policies:     make(map[string]int),
		copyErrNames: make(map[string]bool),
	}
}

func (g *fakeGateway) put(container, name string, data []byte) {
	if g.objects[container] == nil {
		g.objects[container] = make(map[string][]byte)
	}
	g.objects[container][name] = data
}

func (g *fakeGateway) record(call string) {
	g.mu.Lock()
	g.calls = append(g.calls, call)
	g.mu.Unlock()
}

func (g *fakeGateway) Exists(ctx context.Context, container string) (bool, error) {
	g.record("Exists")
	_, ok := g.objects[container]
	return ok, nil
}

func (g *fakeGateway) Create(ctx context.Context, container, region string) error {
	g.record("Create")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.objects[container] == nil {
		g.objects[container] = make(map[string][]byte)
	}
	g.created = append(g.created, container)
	return nil
}

func (g *fakeGateway) List(ctx context.Context, container, prefix string) ([]objectstore.ObjectRef, error) {
	g.record("List")
	g.mu.Lock()
	defer g.mu.Unlock()

	var refs []objectstore.ObjectRef
	for name, data := range g.objects[container] {
		if strings.HasPrefix(name, prefix) {
			refs = append(refs, objectstore.ObjectRef{Name: name, Size: int64(len(data))})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func (g *fakeGateway) ListSamplePrefixes(ctx context.Context, container, prefix string) ([]string, error) {
	g.record("ListSamplePrefixes")
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	seen := make(map[string]bool)
	var names []string
	for name := range g.objects[container] {
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		rest := strings.TrimPrefix(name, prefix)
		if idx := strings.Index(rest, "/"); idx > 0 && !seen[rest[:idx]] {
			seen[rest[:idx]] = true
			names = append(names, rest[:idx])
		}
	}
	sort.Strings(names)
	return names, nil
}

func (g *fakeGateway) Copy(ctx context.Context, srcContainer, srcName, dstContainer, dstName string) error {
	g.record("Copy")
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.copyErrNames[srcName] {
		return errors.New("copy failed")
	}
	data, ok := g.objects[srcContainer][srcName]
	if !ok {
		return errors.New("source object not found")
	}
	if g.objects[dstContainer] == nil {
		g.objects[dstContainer] = make(map[string][]byte)
	}
	g.objects[dstContainer][dstName] = data
	return nil
}

func (g *fakeGateway) Upload(ctx context.Context, container, name string, r io.Reader, quiet bool) error {
	g.record("Upload")
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.objects[container] == nil {
		g.objects[container] = make(map[string][]byte)
	}
	g.objects[container][name] = data
	return nil
}

func (g *fakeGateway) Download(ctx context.Context, container, name string) (io.ReadCloser, error) {
	g.record("Download")
	data, ok := g.objects[container][name]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (g *fakeGateway) Delete(ctx context.Context, container, name string) error {
	g.record("Delete")
	if g.deleteErr {
		return errors.New("delete failed")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.objects[container], name)
	return nil
}

func (g *fakeGateway) SignedURL(ctx context.Context, container, name string, ttlDays int) (string, error) {
	g.record("SignedURL")
	if g.signedURLErr != nil {
		return "", g.signedURLErr
	}
	return fmt.Sprintf("https://signed.example/%s/%s?ttl=%d", container, name, ttlDays), nil
}

func (g *fakeGateway) ObjectURL(container, name string) string {
	return fmt.Sprintf("https://store.example/%s/%s", container, name)
}

func (g *fakeGateway) SetDeletionPolicy(ctx context.Context, container string, days int) error {
	g.record("SetDeletionPolicy")
	g.policies[container] = days
	return nil
}

func (g *fakeGateway) GrantContainerRole(ctx context.Context, container, principal, role string) error {
	g.record("GrantContainerRole")
	g.bucketGrants = append(g.bucketGrants, container+" -> "+principal)
	return nil
}

func (g *fakeGateway) GrantObjectRole(ctx context.Context, container, name, principal, role string) error {
	g.record("GrantObjectRole")
	g.objectGrants = append(g.objectGrants, container+"/"+name+" -> "+principal)
	return nil
}

func (g *fakeGateway) FindShareContainers(ctx context.Context) ([]string, error) {
	g.record("FindShareContainers")
	return g.created, nil
}

// fakeNotifier records notification calls and can simulate delivery failure.
type fakeNotifier struct {
	fail        bool
	singleCalls []singleCall
	multiCalls  []multiCall
}

type singleCall struct {
	recipient string
	sampleID  string
	links     []notify.DownloadLink
	ttlDays   int
}

type multiCall struct {
	recipient string
	sampleIDs []string
	container string
	ttlDays   int
}

func (n *fakeNotifier) SendSingleNotice(ctx context.Context, recipient, sampleID string, links []notify.DownloadLink, ttlDays int) bool {
	n.singleCalls = append(n.singleCalls, singleCall{recipient, sampleID, links, ttlDays})
	return !n.fail
}

func (n *fakeNotifier) SendMultiNotice(ctx context.Context, recipient string, sampleIDs []string, container string, ttlDays int) bool {
	n.multiCalls = append(n.multiCalls, multiCall{recipient, sampleIDs, container, ttlDays})
	return !n.fail
}

// fakeRecordStore is an in-memory record store with failure switches and a
// write counter.
type fakeRecordStore struct {
	records    []domain.ShareRecord
	failAppend bool
	writes     int
}

func (s *fakeRecordStore) Append(ctx context.Context, record domain.ShareRecord) error {
	if s.failAppend {
		return errors.New("tracking store unavailable")
	}
	s.records = append(s.records, record)
	s.writes++
	return nil
}

func (s *fakeRecordStore) Get(ctx context.Context, id string) (domain.ShareRecord, error) {
	for _, record := range s.records {
		if record.ID == id {
			return record, nil
		}
	}
	return domain.ShareRecord{}, apperrors.ErrRecordNotFound
}

func (s *fakeRecordStore) UpdateStatus(ctx context.Context, id string, active bool) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records[i].Active = active
			s.writes++
			return nil
		}
	}
	return apperrors.ErrRecordNotFound
}

func (s *fakeRecordStore) Delete(ctx context.Context, id string) error {
	for i := range s.records {
		if s.records[i].ID == id {
			s.records = append(s.records[:i], s.records[i+1:]...)
			s.writes++
			return nil
		}
	}
	return apperrors.ErrRecordNotFound
}

func (s *fakeRecordStore) ListAll(ctx context.Context) ([]domain.ShareRecord, error) {
	out := make([]domain.ShareRecord, len(s.records))
	copy(out, s.records)
	return out, nil
}

func newTestService(gw *fakeGateway, records *fakeRecordStore, notifier *fakeNotifier) *ShareService {
	return NewShareService(gw, records, notifier, "us-central1", "FulgentTF", WithQuiet(true))
}

func TestShareSingle_EndToEnd(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/889-6625/reads.bam", []byte("bam data"))
	gw.put("lab-data", "FulgentTF/889-6625/report.pdf", []byte("pdf data"))

	records := &fakeRecordStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(gw, records, notifier)

	result, err := svc.ShareSingle(context.Background(), "lab-data", "889-6625", "user@example.com", 7)
	if err != nil {
		t.Fatalf("ShareSingle() failed: %v", err)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("Expected clean success, got warnings: %v", result.Warnings)
	}
	if result.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", result.FileCount)
	}

	record := result.Record
	if record.Kind != domain.KindSingle {
		t.Errorf("Kind = %s, want %s", record.Kind, domain.KindSingle)
	}
	if len(record.Subjects) != 1 || record.Subjects[0] != "889-6625" {
		t.Errorf("Subjects = %v, want [889-6625]", record.Subjects)
	}
	if record.Destination.Container == "lab-data" {
		t.Error("Destination must never equal the source container")
	}
	if got := record.ExpiresAt.Sub(record.CreatedAt); got != 7*24*time.Hour {
		t.Errorf("ExpiresAt - CreatedAt = %v, want 168h", got)
	}
	if record.Status != domain.StatusCompleted {
		t.Errorf("Status = %s, want %s", record.Status, domain.StatusCompleted)
	}
	if !record.Active {
		t.Error("New record should be active")
	}
	if err := record.Validate(); err != nil {
		t.Errorf("Persisted record fails validation: %v", err)
	}

	if len(records.records) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(records.records))
	}

	if len(notifier.singleCalls) != 1 {
		t.Fatalf("Expected exactly 1 notification, got %d", len(notifier.singleCalls))
	}
	call := notifier.singleCalls[0]
	if call.recipient != "user@example.com" || call.ttlDays != 7 {
		t.Errorf("Notification call = %+v, want recipient user@example.com ttl 7", call)
	}
	if len(call.links) != 1 || call.links[0].URL == "" {
		t.Errorf("Notification should carry one download link, got %v", call.links)
	}

	if gw.policies[record.Destination.Container] != 7 {
		t.Errorf("Deletion policy = %d days, want 7", gw.policies[record.Destination.Container])
	}

	// The uploaded archive must contain the sample files with the sample
	// prefix stripped.
	data := gw.objects[record.Destination.Container][record.Destination.Object]
	if data == nil {
		t.Fatal("Archive was not uploaded to the destination")
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Uploaded data is not a zip: %v", err)
	}
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	sort.Strings(entries)
	want := []string{"reads.bam", "report.pdf"}
	if len(entries) != 2 || entries[0] != want[0] || entries[1] != want[1] {
		t.Errorf("Archive entries = %v, want %v", entries, want)
	}
}

func TestShareSingle_NoFiles(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/other-sample/file.txt", []byte("x"))

	records := &fakeRecordStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(gw, records, notifier)

	_, err := svc.ShareSingle(context.Background(), "lab-data", "missing", "user@example.com", 7)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Expected NotFound, got %v", err)
	}

	if len(gw.created) != 0 {
		t.Errorf("No container should be created, got %v", gw.created)
	}
	if len(notifier.singleCalls) != 0 {
		t.Error("No notification should be sent")
	}
	if len(records.records) != 0 {
		t.Error("No record should be persisted")
	}
}

func TestShareSingle_SignedURLFallback(t *testing.T) {
	tests := []struct {
		name         string
		signedURLErr error
		wantErr      bool
		wantGrant    bool
	}{
		{
			name:         "capability error triggers grant fallback",
			signedURLErr: fmt.Errorf("no private key: %w", apperrors.ErrCapability),
			wantErr:      false,
			wantGrant:    true,
		},
		{
			name:         "generic error does not trigger fallback",
			signedURLErr: errors.New("backend unavailable"),
			wantErr:      true,
			wantGrant:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.put("lab-data", "FulgentTF/889-6625/reads.bam", []byte("bam data"))
			gw.signedURLErr = tt.signedURLErr

			records := &fakeRecordStore{}
			notifier := &fakeNotifier{}
			svc := newTestService(gw, records, notifier)

			result, err := svc.ShareSingle(context.Background(), "lab-data", "889-6625", "user@example.com", 7)

			if (err != nil) != tt.wantErr {
				t.Fatalf("ShareSingle() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got := len(gw.objectGrants) > 0; got != tt.wantGrant {
				t.Errorf("Object grant made = %v, want %v", got, tt.wantGrant)
			}
			if tt.wantErr {
				return
			}
			if len(result.Warnings) == 0 {
				t.Error("Fallback should surface a warning")
			}
			if !strings.HasPrefix(result.DownloadURL, "https://store.example/") {
				t.Errorf("Expected direct URL, got %s", result.DownloadURL)
			}
		})
	}
}

func TestShareSingle_DegradedSuccess(t *testing.T) {
	t.Run("notification failure", func(t *testing.T) {
		gw := newFakeGateway()
		gw.put("lab-data", "FulgentTF/889-6625/reads.bam", []byte("bam data"))

		records := &fakeRecordStore{}
		notifier := &fakeNotifier{fail: true}
		svc := newTestService(gw, records, notifier)

		result, err := svc.ShareSingle(context.Background(), "lab-data", "889-6625", "user@example.com", 7)
		if err != nil {
			t.Fatalf("Notification failure must not fail the share: %v", err)
		}
		if len(result.Warnings) == 0 {
			t.Error("Expected a warning for failed notification")
		}
		if len(records.records) != 1 {
			t.Error("Record must still be persisted after notification failure")
		}
	})

	t.Run("persistence failure", func(t *testing.T) {
		gw := newFakeGateway()
		gw.put("lab-data", "FulgentTF/889-6625/reads.bam", []byte("bam data"))

		records := &fakeRecordStore{failAppend: true}
		notifier := &fakeNotifier{}
		svc := newTestService(gw, records, notifier)

		result, err := svc.ShareSingle(context.Background(), "lab-data", "889-6625", "user@example.com", 7)
		if err != nil {
			t.Fatalf("Persistence failure must not fail the share: %v", err)
		}
		if len(result.Warnings) == 0 {
			t.Error("Expected a warning for failed persistence")
		}
	})
}

func TestShareMultiple_SecurityGuard(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/A/file.txt", []byte("x"))

	records := &fakeRecordStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(gw, records, notifier)

	_, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A"}, "user@example.com", "lab-data", 30, false)
	if !errors.Is(err, apperrors.ErrSecurity) {
		t.Fatalf("Expected SecurityError, got %v", err)
	}

	if len(gw.calls) != 0 {
		t.Errorf("No object store call may precede the security check, got %v", gw.calls)
	}
	if len(notifier.multiCalls) != 0 {
		t.Error("No notification may be sent")
	}
	if len(records.records) != 0 {
		t.Error("No record may be persisted")
	}
}

func TestShareMultiple_PartialFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/A/a1.txt", []byte("a1"))
	gw.put("lab-data", "FulgentTF/A/a2.txt", []byte("a2"))
	gw.put("lab-data", "FulgentTF/C/c1.txt", []byte("c1"))
	gw.put("shared-dest", ".keep", []byte(""))

	records := &fakeRecordStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(gw, records, notifier)

	result, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A", "B", "C"}, "user@example.com", "shared-dest", 30, false)
	if err != nil {
		t.Fatalf("ShareMultiple() failed: %v", err)
	}

	if len(result.Successful) != 2 || result.Successful[0] != "A" || result.Successful[1] != "C" {
		t.Errorf("Successful = %v, want [A C]", result.Successful)
	}
	if result.Results["A"] != 2 || result.Results["B"] != 0 || result.Results["C"] != 1 {
		t.Errorf("Results = %v, want {A:2 B:0 C:1}", result.Results)
	}

	record := result.Record
	if record.Kind != domain.KindMulti {
		t.Errorf("Kind = %s, want %s", record.Kind, domain.KindMulti)
	}
	if len(record.Subjects) != 2 || record.Subjects[0] != "A" || record.Subjects[1] != "C" {
		t.Errorf("Subjects = %v, want [A C]", record.Subjects)
	}
	if len(records.records) != 1 {
		t.Fatalf("Expected 1 persisted record, got %d", len(records.records))
	}

	if len(notifier.multiCalls) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifier.multiCalls))
	}
	notified := notifier.multiCalls[0].sampleIDs
	if len(notified) != 2 || notified[0] != "A" || notified[1] != "C" {
		t.Errorf("Notified samples = %v, want [A C]", notified)
	}

	if len(gw.bucketGrants) != 1 || gw.bucketGrants[0] != "shared-dest -> user@example.com" {
		t.Errorf("Bucket grants = %v", gw.bucketGrants)
	}

	// Copied objects keep their relative paths.
	if gw.objects["shared-dest"]["FulgentTF/A/a1.txt"] == nil {
		t.Error("Copied object missing in destination")
	}
}

func TestShareMultiple_CopyErrorSentinel(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/A/a1.txt", []byte("a1"))
	gw.put("lab-data", "FulgentTF/B/b1.txt", []byte("b1"))
	gw.copyErrNames["FulgentTF/B/b1.txt"] = true
	gw.put("shared-dest", ".keep", []byte(""))

	svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

	result, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A", "B"}, "user@example.com", "shared-dest", 30, false)
	if err != nil {
		t.Fatalf("ShareMultiple() failed: %v", err)
	}
	if result.Results["B"] != -1 {
		t.Errorf("Results[B] = %d, want -1 for a copy error", result.Results["B"])
	}
	if result.Results["A"] != 1 {
		t.Errorf("Results[A] = %d, want 1; one sample's failure must not stop the rest", result.Results["A"])
	}
}

func TestShareMultiple_NothingShared(t *testing.T) {
	gw := newFakeGateway()
	gw.put("shared-dest", ".keep", []byte(""))

	records := &fakeRecordStore{}
	notifier := &fakeNotifier{}
	svc := newTestService(gw, records, notifier)

	_, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A", "B"}, "user@example.com", "shared-dest", 30, false)
	if !errors.Is(err, apperrors.ErrNothingShared) {
		t.Fatalf("Expected NothingShared, got %v", err)
	}
	if len(notifier.multiCalls) != 0 {
		t.Error("No notification may be sent when nothing was shared")
	}
	if len(records.records) != 0 {
		t.Error("No record may be persisted when nothing was shared")
	}
}

func TestShareMultiple_DestinationHandling(t *testing.T) {
	tests := []struct {
		name      string
		createNew bool
		destEx    bool
		wantErr   error
	}{
		{"create new over existing", true, true, apperrors.ErrConflict},
		{"use existing that is missing", false, false, apperrors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.put("lab-data", "FulgentTF/A/a1.txt", []byte("a1"))
			if tt.destEx {
				gw.put("shared-dest", ".keep", []byte(""))
			}

			svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

			_, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A"}, "user@example.com", "shared-dest", 30, tt.createNew)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestShareMultiple_CreateNewSetsPolicy(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/A/a1.txt", []byte("a1"))

	svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

	result, err := svc.ShareMultiple(context.Background(), "lab-data", []string{"A"}, "user@example.com", "shared-dest", 30, true)
	if err != nil {
		t.Fatalf("ShareMultiple() failed: %v", err)
	}
	if len(gw.created) != 1 || gw.created[0] != "shared-dest" {
		t.Errorf("Created containers = %v, want [shared-dest]", gw.created)
	}
	if gw.policies["shared-dest"] != 30 {
		t.Errorf("Deletion policy = %d days, want 30", gw.policies["shared-dest"])
	}
	if result.Record.Destination.Container != "shared-dest" {
		t.Errorf("Destination = %s, want shared-dest", result.Record.Destination.Container)
	}
}

func TestExpire_Idempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := &fakeRecordStore{
		records: []domain.ShareRecord{
			{ID: "expired-1", Active: true, ExpiresAt: now.Add(-time.Hour)},
			{ID: "expired-2", Active: true, ExpiresAt: now},
			{ID: "current", Active: true, ExpiresAt: now.Add(time.Hour)},
			{ID: "already-off", Active: false, ExpiresAt: now.Add(-time.Hour)},
		},
	}
	svc := newTestService(newFakeGateway(), records, &fakeNotifier{})

	deactivated, err := svc.Expire(context.Background(), now)
	if err != nil {
		t.Fatalf("Expire() failed: %v", err)
	}
	if len(deactivated) != 2 {
		t.Fatalf("Deactivated = %v, want [expired-1 expired-2]", deactivated)
	}

	writesAfterFirst := records.writes
	again, err := svc.Expire(context.Background(), now)
	if err != nil {
		t.Fatalf("Second Expire() failed: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("Second Expire() deactivated %v, want none", again)
	}
	if records.writes != writesAfterFirst {
		t.Errorf("Second Expire() performed %d extra writes", records.writes-writesAfterFirst)
	}
}

func TestDeleteShare_SingleCleanupFailed(t *testing.T) {
	gw := newFakeGateway()
	// Destination container exists but the archive is already gone, e.g.
	// removed by the store-side deletion policy.
	gw.objects["temp-share-889-6625-abc123"] = map[string][]byte{}

	records := &fakeRecordStore{
		records: []domain.ShareRecord{
			{
				ID:              "share-1",
				Kind:            domain.KindSingle,
				Subjects:        []string{"889-6625"},
				SourceContainer: "lab-data",
				Destination:     domain.Destination{Container: "temp-share-889-6625-abc123", Object: "889-6625.zip"},
			},
		},
	}
	svc := newTestService(gw, records, &fakeNotifier{})

	result, err := svc.DeleteShare(context.Background(), "share-1")
	if err != nil {
		t.Fatalf("DeleteShare() failed: %v", err)
	}
	if !result.RecordRemoved {
		t.Error("RecordRemoved = false, want true")
	}
	if result.CleanupSucceeded {
		t.Error("CleanupSucceeded = true, want false when nothing was left to delete")
	}
	if _, err := records.Get(context.Background(), "share-1"); !errors.Is(err, apperrors.ErrRecordNotFound) {
		t.Error("Record should be gone from the store")
	}
}

func TestDeleteShare_SingleCleansDestination(t *testing.T) {
	gw := newFakeGateway()
	gw.put("temp-share-889-6625-abc123", "889-6625.zip", []byte("zip"))

	records := &fakeRecordStore{
		records: []domain.ShareRecord{
			{
				ID:          "share-1",
				Kind:        domain.KindSingle,
				Destination: domain.Destination{Container: "temp-share-889-6625-abc123", Object: "889-6625.zip"},
			},
		},
	}
	svc := newTestService(gw, records, &fakeNotifier{})

	result, err := svc.DeleteShare(context.Background(), "share-1")
	if err != nil {
		t.Fatalf("DeleteShare() failed: %v", err)
	}
	if !result.RecordRemoved || !result.CleanupSucceeded {
		t.Errorf("Result = %+v, want both true", result)
	}
	if len(gw.objects["temp-share-889-6625-abc123"]) != 0 {
		t.Error("Destination objects should be deleted")
	}
}

func TestDeleteShare_MultiNeverDeletesDestination(t *testing.T) {
	gw := newFakeGateway()
	gw.put("shared-dest", "FulgentTF/A/a1.txt", []byte("a1"))

	records := &fakeRecordStore{
		records: []domain.ShareRecord{
			{
				ID:          "share-2",
				Kind:        domain.KindMulti,
				Destination: domain.Destination{Container: "shared-dest"},
			},
		},
	}
	svc := newTestService(gw, records, &fakeNotifier{})

	result, err := svc.DeleteShare(context.Background(), "share-2")
	if err != nil {
		t.Fatalf("DeleteShare() failed: %v", err)
	}
	if !result.RecordRemoved || !result.CleanupSucceeded {
		t.Errorf("Result = %+v, want both true", result)
	}
	if gw.objects["shared-dest"]["FulgentTF/A/a1.txt"] == nil {
		t.Error("Multi-sample destination contents must never be auto-deleted")
	}
	for _, call := range gw.calls {
		if call == "Delete" {
			t.Error("No object deletion may be attempted for a multi share")
		}
	}
}

func TestListSamples(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/889-6625/reads.bam", []byte("x"))
	gw.put("lab-data", "FulgentTF/889-7000/reads.bam", []byte("y"))

	svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

	samples, err := svc.ListSamples(context.Background(), "lab-data")
	if err != nil {
		t.Fatalf("ListSamples() failed: %v", err)
	}
	if len(samples) != 2 || samples[0] != "889-6625" || samples[1] != "889-7000" {
		t.Errorf("Samples = %v, want [889-6625 889-7000]", samples)
	}
}

func TestShareSingle_ContainerSafeNaming(t *testing.T) {
	tests := []struct {
		name     string
		sampleID string
	}{
		{"underscores", "889_6625"},
		{"uppercase", "SAMPLE-889"},
		{"overlong", strings.Repeat("889-6625-", 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newFakeGateway()
			gw.put("lab-data", "FulgentTF/"+tt.sampleID+"/reads.bam", []byte("bam data"))

			svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

			result, err := svc.ShareSingle(context.Background(), "lab-data", tt.sampleID, "user@example.com", 7)
			if err != nil {
				t.Fatalf("ShareSingle() failed: %v", err)
			}

			container := result.Record.Destination.Container
			if !domain.ValidContainerName(container) {
				t.Errorf("Destination %q is not a valid container name", container)
			}
			if strings.ContainsAny(container, "_") || container != strings.ToLower(container) {
				t.Errorf("Destination %q carries unsanitized characters", container)
			}
		})
	}
}

func TestShareSingle_UnusableSampleID(t *testing.T) {
	gw := newFakeGateway()
	gw.put("lab-data", "FulgentTF/___/reads.bam", []byte("bam data"))

	svc := newTestService(gw, &fakeRecordStore{}, &fakeNotifier{})

	_, err := svc.ShareSingle(context.Background(), "lab-data", "___", "user@example.com", 7)
	if !errors.Is(err, apperrors.ErrInvalidContainerName) {
		t.Fatalf("Expected InvalidContainerName, got %v", err)
	}
	if len(gw.created) != 0 {
		t.Errorf("No container may be created for an unusable sample id, got %v", gw.created)
	}
}

func TestShareSingle_InvalidInputs(t *testing.T) {
	svc := newTestService(newFakeGateway(), &fakeRecordStore{}, &fakeNotifier{})

	tests := []struct {
		name      string
		sampleID  string
		recipient string
		ttlDays   int
	}{
		{"empty sample id", "  ", "user@example.com", 7},
		{"bad email", "889-6625", "not-an-email", 7},
		{"zero ttl", "889-6625", "user@example.com", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ShareSingle(context.Background(), "lab-data", tt.sampleID, tt.recipient, tt.ttlDays); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}
