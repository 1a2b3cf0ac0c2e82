package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/debian-appstream/dep11gen/cache"
	"github.com/debian-appstream/dep11gen/extractor"
)

type emptySource struct{}

func (emptySource) List() []string                     { return nil }
func (emptySource) Has(string) bool                     { return false }
func (emptySource) Extract(string) ([]byte, error)      { return nil, os.ErrNotExist }

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	dir := t.TempDir()
	return &Scheduler{
		CacheDir:      filepath.Join(dir, "cache"),
		MediaRoot:     filepath.Join(dir, "media"),
		Concurrency:   2,
		PerJobTimeout: 5 * time.Second,
		NewExtractor: func(c *cache.Cache) *extractor.Extractor {
			return &extractor.Extractor{ArchiveComponent: "main", Cache: c, Store: c}
		},
	}
}

func TestRunProcessesAllJobs(t *testing.T) {
	s := newTestScheduler(t)
	jobs := []Job{
		{Package: extractor.Package{Name: "foo", Version: "1.0", Architecture: "amd64"}, Source: emptySource{}},
		{Package: extractor.Package{Name: "bar", Version: "2.0", Architecture: "amd64"}, Source: emptySource{}},
	}

	results, err := s.Run(context.Background(), jobs)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if r.Status != StatusOK {
			t.Errorf("expected StatusOK for %s, got %s: %s", r.Pkid, r.Status, r.Message)
		}
	}
}

func TestRunRespectsCancelledContext(t *testing.T) {
	s := newTestScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := []Job{
		{Package: extractor.Package{Name: "foo", Version: "1.0"}, Source: emptySource{}},
	}
	if _, err := s.Run(ctx, jobs); err == nil {
		t.Error("expected an error from a pre-cancelled context")
	}
}
