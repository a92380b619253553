// SPDX-License-Identifier: MIT

// Package transcode orchestrates asynchronous encoding of uploaded media into
// segmented HLS trees. One orchestration run exists per item at a time; runs
// execute on a bounded worker capacity so long encodes never starve the
// request-serving goroutines.
package transcode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	vlog "github.com/streamhaus/vidserve/internal/log"
	"github.com/streamhaus/vidserve/internal/media"
	"github.com/streamhaus/vidserve/internal/metrics"
	"github.com/streamhaus/vidserve/internal/platform/fs"
)

// Store is the metadata surface the orchestrator needs.
type Store interface {
	FindByID(ctx context.Context, id string) (media.Item, error)
	UpdateStatus(ctx context.Context, id string, status media.Status) error
}

// SourceResolver maps a stored filename to an absolute path under the upload root.
type SourceResolver interface {
	Resolve(storedName string) (string, error)
}

// Run represents an active or completed orchestration run.
type Run struct {
	ID        string
	StartedAt time.Time

	// Done is closed when the run completes (success or failure).
	Done chan struct{}

	// Cancel stops this run's encoder process.
	Cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func (r *Run) setError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Err returns the run's terminal error. Stable once Done is closed.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Manager owns orchestration runs with per-item exactly-once semantics.
type Manager struct {
	mu   sync.Mutex
	runs map[string]*Run

	store Store
	files SourceResolver
	exec  Exec
	tree  Tree
	sem   chan struct{}
	wg    sync.WaitGroup
	log   zerolog.Logger
}

// NewManager creates a Manager running at most workers encodes concurrently.
func NewManager(store Store, files SourceResolver, exec Exec, tree Tree, workers int, log zerolog.Logger) *Manager {
	if workers <= 0 {
		workers = 1
	}
	return &Manager{
		runs:  make(map[string]*Run),
		store: store,
		files: files,
		exec:  exec,
		tree:  tree,
		sem:   make(chan struct{}, workers),
		log:   log,
	}
}

// Ensure guarantees a background run for the given item ID. If one is already
// active it returns the existing handle (isNew=false); otherwise it starts a
// new run and returns its handle (isNew=true). The caller is never blocked on
// the encode itself.
func (m *Manager) Ensure(ctx context.Context, id string) (*Run, bool) {
	if err := ctx.Err(); err != nil {
		m.log.Debug().Str("id", id).Err(err).Msg("Ensure: context already canceled")
		return nil, false
	}

	m.mu.Lock()

	if run, exists := m.runs[id]; exists {
		select {
		case <-run.Done:
			// Completed but not yet removed; replace with a fresh run.
			delete(m.runs, id)
		default:
			m.mu.Unlock()
			m.log.Debug().Str("id", id).Msg("Ensure: returning existing run")
			return run, false
		}
	}

	// Runs outlive the triggering request, so they get their own context,
	// carrying the item ID as the job correlation ID.
	runCtx, cancel := context.WithCancel(vlog.ContextWithJobID(context.Background(), id))

	run := &Run{
		ID:        id,
		StartedAt: time.Now(),
		Done:      make(chan struct{}),
		Cancel:    cancel,
	}
	m.runs[id] = run
	m.wg.Add(1)
	m.mu.Unlock()

	m.log.Info().Str("id", id).Str("event", "transcode.run_start").Msg("Ensure: started new run")
	go m.executeRun(runCtx, run)

	return run, true
}

// Get returns the active run for the given ID, or nil.
func (m *Manager) Get(id string) *Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

// CancelAll stops every active run. Used during graceful shutdown so no
// encoder child process is left orphaned.
func (m *Manager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Info().Int("count", len(m.runs)).Msg("CancelAll: stopping all runs")
	for id, run := range m.runs {
		m.log.Debug().Str("id", id).Msg("CancelAll: canceling run")
		run.Cancel()
	}
}

// Wait blocks until all runs have finished. Call after CancelAll.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// executeRun is the worker goroutine for one orchestration run. Errors are
// terminal for the run only: they are logged and recorded on the item, never
// propagated to the request that triggered the upload.
func (m *Manager) executeRun(ctx context.Context, run *Run) {
	logger := vlog.WithContext(ctx, m.log)

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("executeRun panicked")
			run.setError(fmt.Errorf("panic: %v", r))
		}

		err := run.Err()
		if err != nil {
			metrics.RecordTranscodeRun("failure")
			// Best effort: the record must reflect the failure even though the
			// upload response has long been sent.
			if serr := m.store.UpdateStatus(context.Background(), run.ID, media.StatusFailed); serr != nil {
				logger.Warn().Err(serr).Msg("could not mark item failed")
			}
		} else {
			metrics.RecordTranscodeRun("success")
		}
		metrics.ObserveTranscodeDuration(time.Since(run.StartedAt))

		close(run.Done)

		// A concurrent Ensure may have replaced this entry after Done closed.
		// Deleting blindly would strip the replacement's registration and let
		// a second run start for the same item.
		m.mu.Lock()
		if m.runs[run.ID] == run {
			delete(m.runs, run.ID)
		}
		m.mu.Unlock()

		logger.Info().
			Err(err).
			Str("event", "transcode.run_done").
			Dur("elapsed", time.Since(run.StartedAt)).
			Msg("executeRun: cleanup complete")

		run.Cancel()
		m.wg.Done()
	}()

	// Bounded worker capacity: encoder runs queue here, readers are unaffected.
	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		run.setError(ctx.Err())
		return
	}

	metrics.IncTranscodeActive()
	defer metrics.DecTranscodeActive()

	if err := m.orchestrate(ctx, run.ID, logger); err != nil {
		run.setError(err)
	}
}

// orchestrate resolves the item, prepares the segment tree, runs the encoder
// and publishes the result. Ordering is strict: directory creation precedes
// encoder invocation precedes publish precedes status update.
func (m *Manager) orchestrate(ctx context.Context, id string, logger zerolog.Logger) error {
	item, err := m.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("resolve item: %w", err)
	}
	if item.FilePath == "" {
		return fmt.Errorf("resolve item %s: %w", id, media.ErrNotFound)
	}

	input, err := m.files.Resolve(item.FilePath)
	if err != nil {
		return fmt.Errorf("resolve source path: %w", err)
	}
	if err := fs.IsRegularFile(input); err != nil {
		return fmt.Errorf("source file unusable: %w", err)
	}

	if err := m.store.UpdateStatus(ctx, id, media.StatusTranscoding); err != nil {
		logger.Warn().Err(err).Msg("could not mark item transcoding")
	}

	staging, err := m.tree.NewStagingDir(id)
	if err != nil {
		return err
	}
	defer func() {
		if derr := m.tree.Discard(staging); derr != nil {
			logger.Warn().Err(derr).Msg("could not remove staging dir")
		}
	}()

	if err := m.exec.Run(ctx, input, staging); err != nil {
		return err
	}

	if err := m.tree.Publish(id, staging); err != nil {
		return err
	}

	if err := m.store.UpdateStatus(ctx, id, media.StatusReady); err != nil {
		logger.Warn().Err(err).Msg("could not mark item ready")
	}

	logger.Info().
		Str("event", "transcode.published").
		Str("playlist", m.tree.PlaylistPath(id)).
		Msg("segment tree published")
	return nil
}
