package storage

import (
	"context"
	"errors"
	"regexp"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
)

// ErrNoSource is returned by reads when no record source is configured.
var ErrNoSource = errors.New("no record source configured")

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// RecordSource yields one complete, ordered ledger per call.
// Implementations never return a partial ledger: on error the records are nil.
type RecordSource interface {
	Load(ctx context.Context) ([]v1.Record, error)

	// Name identifies the source in logs and metrics (e.g. "file", "postgres").
	Name() string
}

// HealthChecker is implemented by sources backed by a remote service.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// ValidTableName reports whether name is a plain or schema-qualified SQL identifier.
// Table names are interpolated into queries, so nothing else is accepted.
func ValidTableName(name string) bool {
	return tableName.MatchString(name)
}
