package storage

import (
	"context"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
	"github.com/aevon-lab/tally/internal/ledger"
)

// FileSource reads the ledger from a local csv or xlsx file on every Load.
type FileSource struct {
	path string
	opts ledger.Options
}

func NewFileSource(path string, opts ledger.Options) *FileSource {
	return &FileSource{path: path, opts: opts}
}

func (s *FileSource) Load(ctx context.Context) ([]v1.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ledger.ReadFile(s.path, s.opts)
}

func (s *FileSource) Name() string {
	return "file"
}
