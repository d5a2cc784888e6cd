package results

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
)

// Metadata is the results file's top-level metadata block (spec.md §6).
type Metadata struct {
	Version     string     `json:"version"`
	TimestampNs int64      `json:"timestamp_unix_nanos"`
	TotalTests  int        `json:"total_tests"`
	System      SystemInfo `json:"system_info"`
}

// Document is the full results file: metadata plus one record per
// mechanism run.
type Document struct {
	Metadata Metadata           `json:"metadata"`
	Results  []BenchmarkResults `json:"results"`
}

// Writer marshals a complete Document in one shot (spec.md §6 "Batch"
// mode). encoding/json is used directly: no library in the retrieval pack
// offers an advantage over the standard encoder for a document this small
// and this infrequently written (once per run), so this is the one
// deliberately-stdlib component (see DESIGN.md).
type Writer struct {
	path string
}

// NewWriter targets path for a single WriteAll call.
func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

// WriteAll marshals doc and writes it to the writer's target path.
func (w *Writer) WriteAll(doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("results: marshal document: %w", err)
	}
	if err := os.WriteFile(w.path, data, 0o644); err != nil {
		return fmt.Errorf("results: write %s: %w", w.path, err)
	}
	return nil
}

// StreamWriter emits the results array incrementally: the metadata and '['
// in NewStreamWriter, one comma-separated object per Append, ']}' on Close, so a reader tailing the
// file always sees a well-formed JSON prefix after a flush (spec.md §6).
type StreamWriter struct {
	mu       sync.Mutex
	w        io.WriteCloser
	enc      *json.Encoder
	wrote    bool
	metadata Metadata
	closed   bool
}

// NewStreamWriter opens path for incremental writing and writes the
// metadata header immediately.
func NewStreamWriter(path string, metadata Metadata) (*StreamWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("results: open %s: %w", path, err)
	}
	sw := &StreamWriter{w: f, enc: json.NewEncoder(f), metadata: metadata}
	if _, err := fmt.Fprintf(f, `{"metadata":`); err != nil {
		f.Close()
		return nil, fmt.Errorf("results: write metadata prefix: %w", err)
	}
	if err := sw.enc.Encode(metadata); err != nil {
		f.Close()
		return nil, fmt.Errorf("results: write metadata: %w", err)
	}
	if _, err := fmt.Fprintf(f, `,"results":[`); err != nil {
		f.Close()
		return nil, fmt.Errorf("results: write results prefix: %w", err)
	}
	return sw, nil
}

// Append writes one BenchmarkResults to the in-progress array.
func (sw *StreamWriter) Append(r BenchmarkResults) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return fmt.Errorf("results: stream writer already closed")
	}
	if sw.wrote {
		if _, err := fmt.Fprint(sw.w, ","); err != nil {
			return fmt.Errorf("results: write separator: %w", err)
		}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("results: marshal record: %w", err)
	}
	if _, err := sw.w.Write(data); err != nil {
		return fmt.Errorf("results: write record: %w", err)
	}
	sw.wrote = true
	return nil
}

// Close terminates the array and the top-level object, then closes the
// underlying file. Idempotent.
func (sw *StreamWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil
	}
	sw.closed = true
	if _, err := fmt.Fprint(sw.w, "]}"); err != nil {
		sw.w.Close()
		return fmt.Errorf("results: write closing brackets: %w", err)
	}
	return sw.w.Close()
}
