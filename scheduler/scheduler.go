// Package scheduler implements the worker pool described in §4.10/§5: one
// job per (package, archive-component, architecture), each run to
// completion by a worker that owns its own Extractor and private Cache
// handle. The scheduler holds no cache handle of its own: each job opens a
// handle on CacheDir and closes it when the job ends, so a caller that
// opens the cache only after Run returns is the sole user of it then.
// Concurrent jobs write through their own handles. Grounded
// on original_source/dep11/multiprocessing.py's status-tuple design
// (§9: background work as callbacks restated as a worker pool), bounded
// via golang.org/x/sync/semaphore and golang.org/x/sync/errgroup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/debian-appstream/dep11gen/cache"
	"github.com/debian-appstream/dep11gen/extractor"
)

// Status mirrors the original PROC_STATUS_* constants.
type Status int

const (
	StatusOK Status = iota
	StatusSignal
	StatusException
	StatusFailure
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSignal:
		return "signal"
	case StatusException:
		return "exception"
	case StatusFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// Result is the (status, message) tuple returned by each job.
type Result struct {
	Pkid    string
	Status  Status
	Message string
}

// Job is one (package, archive-component, architecture) unit of work.
type Job struct {
	Package extractor.Package
	Source  extractor.PackageSource
}

// ExtractorFactory builds a fresh Extractor bound to a worker-private cache
// handle. Implementations close over whatever ContentsIndex/IconThemeIndex
// state is fixed for the suite/archive-component being scanned.
type ExtractorFactory func(c *cache.Cache) *extractor.Extractor

// DefaultPerJobTimeout is the per-package deadline (§5): a worker that
// exceeds it is treated as failed and the package emits extractor-timeout.
const DefaultPerJobTimeout = 5 * time.Minute

// Scheduler runs Jobs across a bounded worker pool.
type Scheduler struct {
	CacheDir      string
	MediaRoot     string
	Concurrency   int
	PerJobTimeout time.Duration
	NewExtractor  ExtractorFactory
}

// Run executes every job, each on its own worker-private cache handle, and
// returns one Result per job in the order the jobs were submitted. The
// given ctx governs early master-initiated cancellation; if ctx is
// cancelled, in-flight jobs are abandoned and Run returns ctx.Err().
func (s *Scheduler) Run(ctx context.Context, jobs []Job) ([]Result, error) {
	concurrency := int64(s.Concurrency)
	if concurrency < 1 {
		concurrency = 1
	}
	perJob := s.PerJobTimeout
	if perJob <= 0 {
		perJob = DefaultPerJobTimeout
	}

	results := make([]Result, len(jobs))
	sem := semaphore.NewWeighted(concurrency)
	g, gctx := errgroup.WithContext(ctx)

	for i, job := range jobs {
		i, job := i, job
		if err := sem.Acquire(gctx, 1); err != nil {
			return results, err
		}
		g.Go(func() error {
			defer sem.Release(1)
			results[i] = s.runJob(gctx, job, perJob)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, ctx.Err()
}

func (s *Scheduler) runJob(ctx context.Context, job Job, timeout time.Duration) (result Result) {
	pkid := job.Package.Name + "/" + job.Package.Version + "/" + job.Package.Architecture
	result = Result{Pkid: pkid, Status: StatusOK}

	defer func() {
		if r := recover(); r != nil {
			result = Result{Pkid: pkid, Status: StatusException, Message: fmt.Sprintf("%v", r)}
		}
	}()

	c, err := cache.Open(s.CacheDir, s.MediaRoot)
	if err != nil {
		return Result{Pkid: pkid, Status: StatusFailure, Message: err.Error()}
	}

	ext := s.NewExtractor(c)

	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan struct{})
	var procErr error
	go func() {
		defer close(done)
		_, procErr = ext.Process(job.Package, job.Source)
	}()

	select {
	case <-done:
		c.Close()
		if procErr != nil {
			return Result{Pkid: pkid, Status: StatusFailure, Message: procErr.Error()}
		}
		return Result{Pkid: pkid, Status: StatusOK}
	case <-jobCtx.Done():
		// The extractor goroutine may still be running past the deadline;
		// close the cache handle only once it actually finishes, so a late
		// write never races a closed *sql.DB.
		go func() {
			<-done
			c.Close()
		}()
		return Result{Pkid: pkid, Status: StatusFailure, Message: "extractor-timeout"}
	}
}
