// Package persist writes chunk files in the background so disk latency never
// stalls an active response stream.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/config"
	"github.com/jfperron/bulkstream/internal/metrics"
	"github.com/jfperron/bulkstream/internal/observability"
	"github.com/jfperron/bulkstream/internal/source"
)

// Job is one chunk to be written to disk.
type Job struct {
	Folder   string // target directory, created if absent
	Prefix   string // file name prefix, e.g. "chunk" or "chunk_paginated"
	StreamID string // optional stream namespace embedded in the file name
	Index    int    // 1-based chunk index
	Rows     []source.Row
}

// FileName returns the deterministic file name for the job. Without a stream
// ID, concurrent streams writing to the same folder overwrite each other's
// files: last writer wins.
func (j Job) FileName() string {
	if j.StreamID != "" {
		return fmt.Sprintf("%s_%s_%d.json", j.Prefix, j.StreamID, j.Index)
	}
	return fmt.Sprintf("%s_%d.json", j.Prefix, j.Index)
}

// Persister runs a bounded-queue worker pool for chunk file writes.
// Dispatch acknowledges enqueue, not completion; writes for distinct chunks
// may complete out of order.
type Persister struct {
	cfg      *config.PersistConfig
	logger   *zap.Logger
	metrics  metrics.Metrics
	reporter observability.ErrorReporter
	jobs     chan Job
	wg       sync.WaitGroup
	mu       sync.RWMutex
	running  bool
}

func NewPersister(cfg *config.PersistConfig, m metrics.Metrics, reporter observability.ErrorReporter, logger *zap.Logger) *Persister {
	return &Persister{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		reporter: reporter,
	}
}

func (p *Persister) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("persister is already running")
	}

	p.jobs = make(chan Job, p.cfg.QueueSize)
	for i := 0; i < p.cfg.WorkerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.running = true
	p.logger.Info("Chunk persister started",
		zap.Int("worker_count", p.cfg.WorkerCount),
		zap.Int("queue_size", p.cfg.QueueSize))
	return nil
}

// Stop drains queued jobs and waits for in-flight writes to finish.
func (p *Persister) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Chunk persister stopped")
	return nil
}

// Dispatch enqueues a job, blocking up to the configured dispatch timeout
// when the queue is full. A timeout abandons persistence for this chunk only;
// the caller's stream is expected to continue.
func (p *Persister) Dispatch(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.running {
		return fmt.Errorf("persister is not running")
	}

	timer := time.NewTimer(p.cfg.DispatchTimeout)
	defer timer.Stop()

	select {
	case p.jobs <- job:
		p.metrics.SetPersistQueueLength(len(p.jobs))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("persist queue full, abandoning chunk %d for folder %s", job.Index, job.Folder)
	}
}

func (p *Persister) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Persist worker started", zap.Int("worker_id", id))

	for job := range p.jobs {
		start := time.Now()
		if err := p.write(job); err != nil {
			p.metrics.IncPersistFailures()
			p.logger.Error("Failed to persist chunk",
				zap.Int("worker_id", id),
				zap.String("folder", job.Folder),
				zap.String("file", job.FileName()),
				zap.Int("chunk_index", job.Index),
				zap.Error(err))
			p.reporter.CaptureError(context.Background(), err,
				observability.NewErrorContext("persist", "chunk_write").
					WithExtra("folder", job.Folder).
					WithExtra("file", job.FileName()).
					WithExtra("chunk_index", job.Index))
		} else {
			p.metrics.IncChunksPersisted()
			p.metrics.ObservePersistDuration(time.Since(start))
			p.logger.Debug("Chunk persisted",
				zap.Int("worker_id", id),
				zap.String("file", filepath.Join(job.Folder, job.FileName())),
				zap.Int("rows", len(job.Rows)),
				zap.Duration("duration", time.Since(start)))
		}
		p.metrics.SetPersistQueueLength(len(p.jobs))
	}
}

// write serializes the chunk's rows as an indented JSON array and stores it
// under the job's deterministic file name.
func (p *Persister) write(job Job) error {
	if err := os.MkdirAll(job.Folder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder %s: %w", job.Folder, err)
	}

	data, err := json.MarshalIndent(job.Rows, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode chunk %d: %w", job.Index, err)
	}

	path := filepath.Join(job.Folder, job.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chunk file %s: %w", path, err)
	}
	return nil
}

// IsRunning reports whether workers are accepting jobs.
func (p *Persister) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// QueueLength returns the number of jobs waiting for a worker.
func (p *Persister) QueueLength() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.jobs == nil {
		return 0
	}
	return len(p.jobs)
}
