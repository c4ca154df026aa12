package librarysync

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"uhfremux/internal/config"
	"uhfremux/internal/logging"
	"uhfremux/internal/queue"
	"uhfremux/internal/recordings"
	"uhfremux/internal/testsupport"
)

type fakeService struct {
	mu sync.Mutex

	sectionID  string
	sectionErr error
	scanning   bool
	scanErr    error
	refreshErr error
	ratingKey  string
	findErr    error
	updateErr  error

	sectionCalls int
	refreshPaths []string
	findFiles    []string
	updates      []url.Values
}

func (f *fakeService) FindSection(ctx context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sectionCalls++
	return f.sectionID, f.sectionErr
}

func (f *fakeService) SectionScanning(ctx context.Context, sectionKey string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanning, f.scanErr
}

func (f *fakeService) RefreshPath(ctx context.Context, sectionKey, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshPaths = append(f.refreshPaths, path)
	return f.refreshErr
}

func (f *fakeService) FindItemByFile(ctx context.Context, sectionKey, file string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.findFiles = append(f.findFiles, file)
	return f.ratingKey, f.findErr
}

func (f *fakeService) UpdateItemMetadata(ctx context.Context, ratingKey string, fields url.Values) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, fields)
	return f.updateErr
}

func syncRecording() *recordings.Recording {
	return &recordings.Recording{
		ID:              "rec-1",
		Name:            "Evening News",
		Description:     "Channel One",
		FilePath:        "/recordings/news.ts",
		Status:          recordings.StatusCompleted,
		StartTime:       "2025-04-22T14:00:00Z",
		DurationSeconds: 6000,
		CreatedAt:       "2025-04-22T14:00:00Z",
	}
}

func completedJob(t *testing.T, store *queue.Store, remuxDuration float64) int64 {
	t.Helper()
	ctx := context.Background()
	id := testsupport.AdmitJob(t, store, "/recordings/news.ts", "/remux/Channel One/news.mkv", syncRecording())
	if err := store.TransitionRemux(ctx, id, queue.RemuxStarted, ""); err != nil {
		t.Fatalf("to started: %v", err)
	}
	if remuxDuration > 0 {
		if err := store.RecordRemuxDuration(ctx, id, remuxDuration); err != nil {
			t.Fatalf("record duration: %v", err)
		}
	}
	if err := store.TransitionRemux(ctx, id, queue.RemuxCompleted, ""); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	return id
}

func newTestCoordinator(cfg *config.Config, store *queue.Store, svc *fakeService) *Coordinator {
	c := NewCoordinator(cfg, store, svc, logging.NewNop(), false)
	c.pollInterval = 0
	c.settleDelay = 0
	return c
}

func plexStatus(t *testing.T, store *queue.Store, id int64) queue.PlexStatus {
	t.Helper()
	job, err := store.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	return job.PlexStatus
}

func TestSyncSkipsBelowThreshold(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Remux.IncludeCancelled = false
	cfg.Remux.ThresholdPercent = 30
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", ratingKey: "101"}
	coordinator := newTestCoordinator(cfg, store, svc)

	// 1000 of 6000 seconds survived the remux: 16.7%, below 30%.
	id := completedJob(t, store, 1000)
	if coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync should report failure for threshold skip")
	}

	if got := plexStatus(t, store, id); got != queue.PlexSkipped {
		t.Fatalf("plex status = %s", got)
	}
	if svc.sectionCalls != 0 || len(svc.refreshPaths) != 0 {
		t.Fatalf("remote service contacted despite skip: %+v", svc)
	}
}

func TestSyncThresholdIgnoredWhenCancelledIncluded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Remux.IncludeCancelled = true
	cfg.Remux.ThresholdPercent = 30
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", ratingKey: "101"}
	coordinator := newTestCoordinator(cfg, store, svc)

	id := completedJob(t, store, 1000)
	if !coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync failed")
	}
	if got := plexStatus(t, store, id); got != queue.PlexCompleted {
		t.Fatalf("plex status = %s", got)
	}
}

func TestSyncHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", ratingKey: "101"}
	coordinator := newTestCoordinator(cfg, store, svc)

	id := completedJob(t, store, 5990)
	if !coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync failed")
	}

	if got := plexStatus(t, store, id); got != queue.PlexCompleted {
		t.Fatalf("plex status = %s", got)
	}
	if len(svc.refreshPaths) != 1 || svc.refreshPaths[0] != "/media/videos/uhf-server/Channel One" {
		t.Fatalf("refresh paths = %v", svc.refreshPaths)
	}
	if len(svc.findFiles) != 1 || svc.findFiles[0] != "/media/videos/uhf-server/Channel One/news.mkv" {
		t.Fatalf("find files = %v", svc.findFiles)
	}
	if len(svc.updates) != 1 {
		t.Fatalf("expected one metadata update, got %d", len(svc.updates))
	}

	fields := svc.updates[0]
	checks := map[string]string{
		"title.value":                 "Evening News",
		"titleSort.value":             "20250422140000_Evening News",
		"originalTitle.value":         "news.ts",
		"studio.value":                "Channel One",
		"originallyAvailableAt.value": "2025-04-22",
	}
	for key, want := range checks {
		if got := fields.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
	for _, key := range []string{"title.locked", "titleSort.locked", "originalTitle.locked", "studio.locked", "summary.locked", "originallyAvailableAt.locked"} {
		if fields.Get(key) != "1" {
			t.Errorf("%s not locked", key)
		}
	}
}

func TestSyncSectionLookupFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionErr: errors.New("library not found")}
	coordinator := newTestCoordinator(cfg, store, svc)

	id := completedJob(t, store, 5990)
	if coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync should fail when section lookup fails")
	}
	if got := plexStatus(t, store, id); got != queue.PlexFailed {
		t.Fatalf("plex status = %s", got)
	}
	if len(svc.refreshPaths) != 0 {
		t.Fatal("refresh issued without a section")
	}
}

func TestSyncItemNotFound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", findErr: errors.New("no plex item matches")}
	coordinator := newTestCoordinator(cfg, store, svc)

	id := completedJob(t, store, 5990)
	if coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync should fail when the item never appears")
	}
	if got := plexStatus(t, store, id); got != queue.PlexFailed {
		t.Fatalf("plex status = %s", got)
	}
}

func TestSyncMetadataPatchFailureStillCompletes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", ratingKey: "101", updateErr: errors.New("metadata rejected")}
	coordinator := newTestCoordinator(cfg, store, svc)

	id := completedJob(t, store, 5990)
	if !coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync should succeed despite metadata patch failure")
	}
	if got := plexStatus(t, store, id); got != queue.PlexCompleted {
		t.Fatalf("plex status = %s", got)
	}
}

func TestSyncCachesSection(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := &fakeService{sectionID: "5", ratingKey: "101"}
	coordinator := newTestCoordinator(cfg, store, svc)

	first := completedJob(t, store, 5990)
	if !coordinator.Sync(context.Background(), first, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("first Sync failed")
	}

	second := testsupport.AdmitJob(t, store, "/recordings/late.ts", "/remux/Channel One/late.mkv", syncRecording())
	ctx := context.Background()
	if err := store.TransitionRemux(ctx, second, queue.RemuxStarted, ""); err != nil {
		t.Fatalf("to started: %v", err)
	}
	if err := store.TransitionRemux(ctx, second, queue.RemuxCompleted, ""); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	if !coordinator.Sync(ctx, second, "/remux/Channel One/late.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("second Sync failed")
	}

	if svc.sectionCalls != 1 {
		t.Fatalf("section resolved %d times, want 1", svc.sectionCalls)
	}
}

func TestSyncWithoutService(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	coordinator := NewCoordinator(cfg, store, nil, logging.NewNop(), false)

	id := completedJob(t, store, 5990)
	if coordinator.Sync(context.Background(), id, "/remux/Channel One/news.mkv", "/media/videos/uhf-server/Channel One", syncRecording()) {
		t.Fatal("Sync should report failure without a service")
	}
	if got := plexStatus(t, store, id); got != queue.PlexSkipped {
		t.Fatalf("plex status = %s", got)
	}
}
