package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/metrics"
	"github.com/jfperron/bulkstream/internal/observability"
	"github.com/jfperron/bulkstream/internal/source"
	"github.com/jfperron/bulkstream/internal/stream"
)

// trackedWriter records whether any body bytes have been written, so a
// handler can tell a pre-stream failure (status code still available) from a
// mid-stream one (response already truncated).
type trackedWriter struct {
	http.ResponseWriter
	wrote bool
}

func (t *trackedWriter) Write(p []byte) (int, error) {
	t.wrote = true
	return t.ResponseWriter.Write(p)
}

func (t *trackedWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// handleBulkData streams the whole table as a sequence of JSON chunk
// documents, one array per line.
func (s *Server) handleBulkData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	it, err := stream.NewSequentialIterator(s.src, s.cfg.Stream.SequentialChunkSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.streamChunks(w, r, it, stream.Target{
		Mode:     metrics.ModeSequential,
		Folder:   filepath.Join(s.cfg.Stream.OutputDir, s.cfg.Stream.SequentialFolder),
		Prefix:   "chunk",
		StreamID: s.newStreamID(),
	})
}

// handleBulkDataPaginated streams exactly one chunk for the requested page.
// A page past the end of the table yields an empty JSON array.
func (s *Server) handleBulkDataPaginated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page must be an integer")
		return
	}
	chunkSize, err := queryInt(r, "chunk_size", s.cfg.Stream.DefaultChunkSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "chunk_size must be an integer")
		return
	}
	if page <= 0 || chunkSize <= 0 {
		writeError(w, http.StatusBadRequest, "page and chunk_size must be greater than 0")
		return
	}
	if chunkSize > s.cfg.Stream.MaxChunkSize {
		writeError(w, http.StatusBadRequest,
			"chunk_size exceeds the maximum of "+strconv.Itoa(s.cfg.Stream.MaxChunkSize))
		return
	}

	it, err := stream.NewPaginatedIterator(s.src, page, chunkSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.streamChunks(w, r, it, stream.Target{
		Mode:     metrics.ModePaginated,
		Folder:   filepath.Join(s.cfg.Stream.OutputDir, s.cfg.Stream.PaginatedFolder),
		Prefix:   "chunk_paginated",
		StreamID: s.newStreamID(),
	})
}

// handleCountRecords returns the current row count of the streamed table.
func (s *Server) handleCountRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	count, err := s.src.Count(r.Context())
	if err != nil {
		s.logger.Error("Failed to count records", zap.Error(err))
		s.reporter.CaptureError(r.Context(), err,
			observability.NewErrorContext("server", "count").
				WithTable(s.cfg.Database.Table))
		if errors.Is(err, source.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		} else {
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"total_records": count})
}

// streamChunks runs the emitter against the response. A failure before the
// first byte still gets a proper status code; after that the connection is
// simply cut short and the truncation itself is the error signal.
func (s *Server) streamChunks(w http.ResponseWriter, r *http.Request, it stream.Iterator, target stream.Target) {
	w.Header().Set("Content-Type", "application/json")

	tw := &trackedWriter{ResponseWriter: w}
	if err := s.emitter.Stream(r.Context(), it, tw, target); err != nil && !tw.wrote {
		if errors.Is(err, source.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
		} else {
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}

func (s *Server) newStreamID() string {
	if !s.cfg.Stream.NamespaceByStream {
		return ""
	}
	return uuid.NewString()
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
