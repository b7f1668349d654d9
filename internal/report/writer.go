// Package report writes analysis reports and renders them for the web.
package report

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// TextWriter implements model.ReportWriter on top of an io.Writer.
type TextWriter struct {
	mu   sync.Mutex
	w    io.Writer
	buf  *bufio.Writer
	file *os.File // staging file, nil for plain writers
	path string
}

// NewTextWriter wraps w. Closing the TextWriter does not close w.
func NewTextWriter(w io.Writer) *TextWriter {
	return &TextWriter{w: w}
}

// NewFileWriter stages the report for path in a temporary file next to it. The
// existing report at path is only replaced by Close; Discard leaves it untouched.
func NewFileWriter(path string) (*TextWriter, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	buf := bufio.NewWriter(f)
	return &TextWriter{w: buf, buf: buf, file: f, path: path}, nil
}

// WriteBlock writes one block in a single call under the writer's lock.
func (t *TextWriter) WriteBlock(block []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(block); err != nil {
		return fmt.Errorf("failed to write report block: %w", err)
	}
	return nil
}

// Close flushes buffered text and moves a staged report into place.
func (t *TextWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.buf != nil {
		if err := t.buf.Flush(); err != nil {
			t.discard()
			return fmt.Errorf("failed to flush report: %w", err)
		}
	}
	if t.file == nil {
		return nil
	}

	f := t.file
	t.file = nil
	if err := f.Chmod(0644); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Rename(f.Name(), t.path); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

// Discard drops a staged report without touching the file at its path.
func (t *TextWriter) Discard() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.discard()
}

func (t *TextWriter) discard() {
	if t.file == nil {
		return
	}
	t.file.Close()
	os.Remove(t.file.Name())
	t.file = nil
}
