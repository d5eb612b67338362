package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSink writes rendered results to a file, or to Stdout when no path is set.
// File writes go through a temporary file and a rename, so readers never see a partial report.
type FileSink struct {
	Path   string
	Writer Writer
	Stdout io.Writer
}

// NewFileSink returns a sink for path in the given format. An empty path writes to os.Stdout.
func NewFileSink(path, format string) (*FileSink, error) {
	w, err := NewWriter(format)
	if err != nil {
		return nil, err
	}
	return &FileSink{Path: path, Writer: w, Stdout: os.Stdout}, nil
}

// Deliver renders res. It satisfies Sink.
func (f *FileSink) Deliver(_ context.Context, res *Result) error {
	var buf bytes.Buffer
	if err := f.Writer.Write(&buf, res); err != nil {
		return fmt.Errorf("render report: %w", err)
	}

	if f.Path == "" {
		_, err := f.Stdout.Write(buf.Bytes())
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("replace %s: %w", f.Path, err)
	}
	return nil
}
