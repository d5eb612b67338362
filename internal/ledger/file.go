package ledger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

// Ledger formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// Options controls how a ledger is decoded.
type Options struct {
	// Format is FormatCSV or FormatXLSX. Empty picks by file extension, defaulting to csv.
	Format string
	// Delimiter for csv ledgers. Zero means DefaultDelimiter.
	Delimiter rune
	// Sheet for xlsx ledgers. Empty means the first sheet.
	Sheet string
}

// ValidFormat reports whether format names a supported ledger format.
func ValidFormat(format string) bool {
	return format == "" || format == FormatCSV || format == FormatXLSX
}

// Parse decodes a ledger in the given format.
func Parse(r io.Reader, opts Options) ([]v1.Record, error) {
	switch opts.Format {
	case FormatXLSX:
		return ParseXLSX(r, opts.Sheet)
	case FormatCSV, "":
		return ParseCSV(r, opts.Delimiter)
	default:
		return nil, fmt.Errorf("unsupported ledger format %q", opts.Format)
	}
}

// ReadFile opens and parses the ledger at path.
func ReadFile(path string, opts Options) ([]v1.Record, error) {
	if opts.Format == "" {
		opts.Format = FormatForPath(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	records, err := Parse(f, opts)
	if err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", path, err)
	}
	return records, nil
}

// FormatForPath guesses the ledger format from a file extension.
func FormatForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}
