package export

import (
	"encoding/csv"
	"io"
	"os"
	"sync"

	"github.com/rotisserie/eris"
)

// CSVWriter writes rows under a fixed header. It is safe for concurrent
// use, though batch runs give it a single writer.
type CSVWriter struct {
	mu     sync.Mutex
	w      *csv.Writer
	width  int
	closer io.Closer
}

// NewCSVWriter writes header to w and returns a writer for the rows.
func NewCSVWriter(w io.Writer, header []string) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w), width: len(header)}
	if err := cw.w.Write(header); err != nil {
		return nil, eris.Wrap(err, "export: write csv header")
	}
	return cw, nil
}

// CreateCSV creates (or truncates) path and writes header to it.
func CreateCSV(path string, header []string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, eris.Wrapf(err, "export: create %s", path)
	}
	cw, err := NewCSVWriter(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	cw.closer = f
	return cw, nil
}

// Write appends one row. Rows are padded or cut to the header width.
func (c *CSVWriter) Write(row []string) error {
	if len(row) != c.width {
		fixed := make([]string, c.width)
		copy(fixed, row)
		row = fixed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return eris.Wrap(c.w.Write(row), "export: write csv row")
}

// Flush pushes buffered rows to the underlying writer.
func (c *CSVWriter) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	return eris.Wrap(c.w.Error(), "export: flush csv")
}

// Close flushes and closes the file opened by CreateCSV.
func (c *CSVWriter) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	if c.closer == nil {
		return nil
	}
	return eris.Wrap(c.closer.Close(), "export: close csv")
}
