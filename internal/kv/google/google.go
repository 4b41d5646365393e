package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"budgetbook/internal/kv"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

// maxCellChars is the Google Sheets limit for a single cell.
const maxCellChars = 50000

const defaultRowCacheTTL = 2 * time.Minute

var ErrValueTooLarge = errors.New("value exceeds the sheets cell limit")

// Options configures a sheets-backed key-value store.
type Options struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// Client stores each key in one row of a sheet: column A holds the key and
// column B the value.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// writeMu spans the row lookup and the update of Set, so two new keys
	// never claim the same free row.
	writeMu sync.Mutex

	// key -> 1-based row, refreshed on every full read of the sheet
	mu                 sync.Mutex
	cachedRows         map[string]int
	cachedRowCount     int
	cacheExpiresAt     time.Time
	cacheValidDuration time.Duration
}

// Ensure interface conformance
var _ kv.Store = (*Client)(nil)

// New creates a sheets client from explicit options.
func New(ctx context.Context, opts Options) (*Client, error) {
	if strings.TrimSpace(opts.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheet := strings.TrimSpace(opts.SheetName)
	if sheet == "" {
		sheet = "Ledger"
	}
	svc, err := newSheetsService(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(svc, opts.SpreadsheetID, sheet), nil
}

func newClient(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{
		svc:                svc,
		spreadsheetID:      spreadsheetID,
		sheetName:          sheetName,
		cacheValidDuration: defaultRowCacheTTL,
	}
}

// NewFromEnv creates a Sheets client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Optional: GOOGLE_SHEET_NAME (default "Ledger"), GOOGLE_SERVICE_ACCOUNT_JSON,
// GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_APPLICATION_CREDENTIALS for auth.
func NewFromEnv(ctx context.Context) (*Client, error) {
	return New(ctx, Options{
		SpreadsheetID:   strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID")),
		SheetName:       strings.TrimSpace(os.Getenv("GOOGLE_SHEET_NAME")),
		CredentialsJSON: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE")),
	})
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
func newSheetsService(ctx context.Context, opts Options) (*gsheet.Service, error) {
	credentialsFile := opts.CredentialsFile
	if opts.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case opts.CredentialsJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(opts.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// Get reads the whole key/value range and returns the value for key.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	if c.svc == nil {
		return "", false, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:B", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", rng, err)
	}
	tbl := parseRows(resp.Values)
	c.storeRowCache(tbl)
	v, ok := tbl.values[key]
	return v, ok, nil
}

// Set overwrites the row holding key or appends a new row after the last one.
func (c *Client) Set(ctx context.Context, key, value string) error {
	if len(value) > maxCellChars {
		return fmt.Errorf("%w: %d characters for key %q", ErrValueTooLarge, len(value), key)
	}
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	row, ok := c.cachedRow(key)
	if !ok {
		rng := fmt.Sprintf("%s!A:A", c.sheetName)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to get sheet dimensions for %s: %w", c.sheetName, err)
		}
		tbl := parseRows(resp.Values)
		c.storeRowCache(tbl)
		row, ok = tbl.rows[key]
		if !ok {
			row = tbl.nextRow()
		}
	}

	dataRange := fmt.Sprintf("%s!A%d:B%d", c.sheetName, row, row)
	vr := &gsheet.ValueRange{Values: [][]any{{key, value}}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		c.InvalidateRowCache()
		return fmt.Errorf("failed to update %s: %w", dataRange, err)
	}

	c.mu.Lock()
	if c.cachedRows != nil {
		c.cachedRows[key] = row
		if row > c.cachedRowCount {
			c.cachedRowCount = row
		}
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) cachedRow(key string) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cachedRows == nil || !time.Now().Before(c.cacheExpiresAt) {
		return 0, false
	}
	row, ok := c.cachedRows[key]
	return row, ok
}

func (c *Client) storeRowCache(tbl table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cachedRows = tbl.rows
	c.cachedRowCount = tbl.rowCount
	c.cacheExpiresAt = time.Now().Add(c.cacheValidDuration)
}

// InvalidateRowCache forces the next Set to re-read the key column.
func (c *Client) InvalidateRowCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheExpiresAt = time.Time{}
}
