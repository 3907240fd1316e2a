// Package google implements sheets.ExpenseExporter on the Google Sheets API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"spendly/internal/core"
	"spendly/internal/log"
	ports "spendly/internal/sheets"
)

const valueInput = "USER_ENTERED"

// Client writes expense rows keyed by expense ID in column A.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	loc           *time.Location
	logger        *log.Logger
}

var _ ports.ExpenseExporter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithLocation sets the zone used to render dates.
func WithLocation(loc *time.Location) Option {
	return func(c *Client) { c.loc = loc }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger.WithComponent(log.ComponentSheets) }
}

// New creates a client authenticated with service account credentials.
func New(ctx context.Context, spreadsheetID, sheetName string, credentialsJSON []byte, opts ...Option) (*Client, error) {
	svc, err := newSheetsService(ctx, credentialsJSON)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName, opts...)
}

// NewWithService wraps an existing service.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, opts ...Option) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	sheetName = strings.TrimSpace(sheetName)
	if sheetName == "" {
		return nil, errors.New("missing sheet name")
	}
	c := &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		loc:           time.Local,
		logger:        log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newSheetsService authenticates with service account credentials over a
// pooled HTTP transport.
func newSheetsService(ctx context.Context, credentialsJSON []byte) (*gsheet.Service, error) {
	if len(credentialsJSON) == 0 {
		return nil, errors.New("missing service account credentials")
	}
	creds, err := googleauth.CredentialsFromJSON(ctx, credentialsJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account credentials: %w", err)
	}
	httpClient := newHTTPClientWithPooling()
	httpClient.Transport = &oauth2.Transport{Source: creds.TokenSource, Base: httpClient.Transport}

	service, err := gsheet.NewService(ctx, goption.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// newHTTPClientWithPooling creates an HTTP client tuned for the Sheets API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext: dialer.DialContext,

		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// Upsert implements ports.ExpenseExporter.
func (c *Client) Upsert(ctx context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if e.ID == "" {
		return errors.New("expense has no id")
	}

	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		if err := c.writeRow(ctx, 1, toRow(ports.Header)); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		ids = []string{ports.Header[0]}
	}

	row := c.expenseRow(e)
	if n := rowOf(ids, e.ID); n > 0 {
		if err := c.writeRow(ctx, n, row); err != nil {
			return fmt.Errorf("update row %d: %w", n, err)
		}
		c.logger.DebugContext(ctx, "Updated sheet row", log.FieldExpenseID, e.ID, "row", n)
		return nil
	}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to %s: %w", c.sheetName, err)
	}
	c.logger.DebugContext(ctx, "Appended sheet row", log.FieldExpenseID, e.ID)
	return nil
}

// Remove implements ports.ExpenseExporter. The row is cleared in place.
func (c *Client) Remove(ctx context.Context, expenseID string) error {
	ids, err := c.readIDs(ctx)
	if err != nil {
		return err
	}
	n := rowOf(ids, expenseID)
	if n == 0 {
		return nil
	}
	rng := fmt.Sprintf("%s!A%d:F%d", c.sheetName, n, n)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", rng, err)
	}
	c.logger.DebugContext(ctx, "Cleared sheet row", log.FieldExpenseID, expenseID, "row", n)
	return nil
}

func (c *Client) readIDs(ctx context.Context) ([]string, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	ids := make([]string, len(resp.Values))
	for i, row := range resp.Values {
		if len(row) > 0 {
			ids[i] = strings.TrimSpace(fmt.Sprint(row[0]))
		}
	}
	return ids, nil
}

func (c *Client) writeRow(ctx context.Context, n int, row []any) error {
	rng := fmt.Sprintf("%s!A%d:F%d", c.sheetName, n, n)
	vr := &gsheet.ValueRange{Values: [][]any{row}}
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, vr).
		ValueInputOption(valueInput).Context(ctx).Do()
	return err
}

func (c *Client) expenseRow(e core.Expense) []any {
	return []any{
		e.ID,
		e.UserID,
		e.Timestamp.In(c.loc).Format(time.DateTime),
		e.Description,
		e.Category.Label(),
		e.Amount.InexactFloat64(),
	}
}

// rowOf returns the 1-based row holding id, or 0.
func rowOf(ids []string, id string) int {
	for i, v := range ids {
		if i > 0 && v == id {
			return i + 1
		}
	}
	return 0
}

func toRow(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
