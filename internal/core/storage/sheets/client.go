// Package sheets reads sales ledgers from a Google Sheets range.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
	"github.com/aevon-lab/tally/internal/core/storage"
	"github.com/aevon-lab/tally/internal/ledger"
)

var _ storage.RecordSource = (*Client)(nil)

// Options configures a new Client.
type Options struct {
	SpreadsheetID   string
	Range           string // A1 notation, e.g. "Sales!A:E"; a bare sheet name reads the whole sheet
	CredentialsFile string
	CredentialsJSON string
}

// Client implements storage.RecordSource over one spreadsheet range.
// The first non-blank row of the range is the header row.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	readRange     string
}

// New creates a read-only Sheets client authenticated with service account credentials.
// Extra client options (endpoint, HTTP client) are appended after the credentials.
func New(ctx context.Context, opts Options, extra ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}

	var clientOpts []goption.ClientOption
	switch {
	case opts.CredentialsJSON != "":
		clientOpts = append(clientOpts, goption.WithCredentialsJSON([]byte(opts.CredentialsJSON)))
	case opts.CredentialsFile != "":
		credentialsJSON, err := os.ReadFile(opts.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		clientOpts = append(clientOpts, goption.WithCredentialsJSON(credentialsJSON))
	}
	clientOpts = append(clientOpts, goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	clientOpts = append(clientOpts, extra...)

	svc, err := gsheet.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "[Sheets] Client created", "spreadsheet_id", opts.SpreadsheetID, "range", opts.Range)

	return &Client{svc: svc, spreadsheetID: opts.SpreadsheetID, readRange: opts.Range}, nil
}

// Load fetches the range and parses it like a delimited ledger.
// Numbers are requested unformatted so thousands separators never reach the parser.
func (c *Client) Load(ctx context.Context) ([]v1.Record, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get sheet values %q: %w", c.readRange, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			rows[i][j] = cellString(cell)
		}
	}

	records, err := ledger.FromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("parse sheet %q: %w", c.readRange, err)
	}

	slog.DebugContext(ctx, "[Sheets] Loaded ledger", "range", c.readRange, "records", len(records))
	return records, nil
}

func (c *Client) Name() string {
	return "sheets"
}

// cellString renders one API cell value. Numbers come back as float64 from the JSON decoder.
func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
