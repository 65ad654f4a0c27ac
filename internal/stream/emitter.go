package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/metrics"
	"github.com/jfperron/bulkstream/internal/observability"
	"github.com/jfperron/bulkstream/internal/persist"
	"github.com/jfperron/bulkstream/internal/source"
)

// State is the lifecycle phase of one emitted stream.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateDraining
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Dispatcher schedules a chunk file write without waiting for completion.
type Dispatcher interface {
	Dispatch(ctx context.Context, job persist.Job) error
}

// Target describes where a stream's chunks are persisted and how it is
// labelled in metrics.
type Target struct {
	Mode     string // metrics label, metrics.ModeSequential or ModePaginated
	Folder   string // output folder for chunk files
	Prefix   string // chunk file name prefix
	StreamID string // optional namespace for file names
}

// Emitter drives an Iterator, forwarding each chunk to the persister and the
// response writer. One Emitter serves many streams; per-stream state lives in
// the Stream call.
type Emitter struct {
	dispatcher Dispatcher
	metrics    metrics.Metrics
	reporter   observability.ErrorReporter
	logger     *zap.Logger
}

func NewEmitter(dispatcher Dispatcher, m metrics.Metrics, reporter observability.ErrorReporter, logger *zap.Logger) *Emitter {
	return &Emitter{
		dispatcher: dispatcher,
		metrics:    m,
		reporter:   reporter,
		logger:     logger,
	}
}

// Stream pulls chunks from it until exhaustion and writes each one to w as a
// single JSON array followed by a newline. Persistence for a chunk is
// dispatched before its bytes are written to w; a dispatch or write failure
// on the persistence side never interrupts the response.
//
// The returned error is nil after a complete drain. A row source failure or a
// client disconnect leaves the response truncated; the error reports which.
func (e *Emitter) Stream(ctx context.Context, it Iterator, w io.Writer, target Target) error {
	flusher, _ := w.(http.Flusher)

	logger := e.logger.With(
		zap.String("mode", target.Mode),
		zap.String("stream_id", target.StreamID))

	state := StateIdle
	setState := func(next State) {
		logger.Debug("Stream state transition",
			zap.String("from", state.String()),
			zap.String("to", next.String()))
		state = next
	}

	e.metrics.IncStreamsStarted(target.Mode)
	e.metrics.IncActiveStreams()
	defer e.metrics.DecActiveStreams()

	chunks := 0
	for {
		fetchStart := time.Now()
		chunk, err := it.Next(ctx)
		e.metrics.ObserveFetchDuration(time.Since(fetchStart))

		if err != nil {
			setState(StateFailed)
			e.metrics.IncStreamsFailed(target.Mode)
			if errors.Is(err, source.ErrUnavailable) {
				e.reporter.CaptureError(ctx, err,
					observability.NewErrorContext("stream", "chunk_fetch").
						WithExtra("mode", target.Mode).
						WithExtra("chunks_sent", chunks))
			}
			logger.Error("Stream failed, response truncated",
				zap.Int("chunks_sent", chunks),
				zap.Error(err))
			setState(StateClosed)
			return err
		}
		if chunk == nil {
			// iterator exhausted
			setState(StateDraining)
			if flusher != nil {
				flusher.Flush()
			}
			setState(StateClosed)
			e.metrics.IncStreamsCompleted(target.Mode)
			logger.Debug("Stream drained", zap.Int("chunks_sent", chunks))
			return nil
		}

		if state == StateIdle {
			setState(StateStreaming)
		}

		// Persistence is initiated before the chunk goes on the wire.
		// Empty chunks are emitted but never persisted.
		if chunk.Size() > 0 {
			job := persist.Job{
				Folder:   target.Folder,
				Prefix:   target.Prefix,
				StreamID: target.StreamID,
				Index:    chunk.Index,
				Rows:     chunk.Rows,
			}
			if err := e.dispatcher.Dispatch(ctx, job); err != nil {
				e.metrics.IncPersistFailures()
				logger.Warn("Failed to dispatch chunk for persistence",
					zap.Int("chunk_index", chunk.Index),
					zap.Error(err))
			}
		}

		if err := e.writeChunk(w, flusher, chunk); err != nil {
			// the client went away; stop fetching
			setState(StateFailed)
			e.metrics.IncStreamsFailed(target.Mode)
			logger.Info("Client disconnected mid-stream",
				zap.Int("chunks_sent", chunks),
				zap.Error(err))
			setState(StateClosed)
			return fmt.Errorf("response write failed after %d chunks: %w", chunks, err)
		}

		chunks++
		e.metrics.IncChunksEmitted(target.Mode)
		e.metrics.AddRowsStreamed(chunk.Size())
	}
}

// writeChunk serializes one chunk as a JSON array line and flushes it so the
// client sees each chunk as soon as it is produced.
func (e *Emitter) writeChunk(w io.Writer, flusher http.Flusher, chunk *Chunk) error {
	data, err := json.Marshal(chunk.Rows)
	if err != nil {
		return fmt.Errorf("failed to encode chunk %d: %w", chunk.Index, err)
	}
	data = append(data, '\n')

	if _, err := w.Write(data); err != nil {
		return err
	}
	if flusher != nil {
		flusher.Flush()
	}
	return nil
}
