package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// --- CSV Sink ---

// CSVSink writes the corpus as one table file, in the same format as the
// per-province caches.
type CSVSink struct {
	path   string
	rows   types.Table
	mu     sync.Mutex
	logger *slog.Logger
}

// NewCSVSink creates a CSV corpus sink.
func NewCSVSink(outputPath string, logger *slog.Logger) (*CSVSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVSink{
		path:   outputPath,
		logger: logger.With("component", "csv_sink"),
	}, nil
}

func (s *CSVSink) Name() string { return "csv" }

// Store buffers rows; the file is written on Close.
func (s *CSVSink) Store(_ context.Context, t types.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, t...)
	s.logger.Debug("rows buffered", "count", len(t), "total", len(s.rows))
	return nil
}

func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("create output file: %w", err)}
	}
	defer f.Close()

	if err := WriteTable(f, s.rows); err != nil {
		return &types.StorageError{Backend: s.Name(), Err: err}
	}
	s.logger.Info("CSV written", "path", s.path, "rows", len(s.rows))
	return nil
}

// --- JSONL Sink ---

// JSONLSink writes one JSON article per line.
type JSONLSink struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLSink creates a streaming JSONL sink.
func NewJSONLSink(outputPath string, logger *slog.Logger) (*JSONLSink, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONLSink{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_sink"),
	}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

func (s *JSONLSink) Store(_ context.Context, t types.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range t {
		if err := s.enc.Encode(&t[i]); err != nil {
			return &types.StorageError{Backend: s.Name(), Err: fmt.Errorf("encode JSONL: %w", err)}
		}
		s.count++
	}
	return nil
}

func (s *JSONLSink) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "rows", s.count)
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}

// NewFileSink creates a file sink by format.
func NewFileSink(format, outputPath string, logger *slog.Logger) (Sink, error) {
	switch format {
	case "csv":
		return NewCSVSink(outputPath, logger)
	case "jsonl":
		return NewJSONLSink(outputPath, logger)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}
