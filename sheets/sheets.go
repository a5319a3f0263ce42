package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"policy-digest/internal/httpclient"
)

// DefaultBaseURL is the Google Sheets REST endpoint.
const DefaultBaseURL = "https://sheets.googleapis.com"

// LogRow is the append-only record written per successfully processed
// article. Rows are never updated or deleted.
type LogRow struct {
	Date         string // YYYY-MM-DD
	Category     string
	Title        string
	Link         string
	Summary      string
	Tags         []string
	PublishedISO string
}

// Values flattens the row into the seven sheet columns. Tags are joined
// with ", " so a split on the same separator reconstructs them.
func (r LogRow) Values() []string {
	return []string{
		r.Date,
		r.Category,
		r.Title,
		r.Link,
		r.Summary,
		strings.Join(r.Tags, ", "),
		r.PublishedISO,
	}
}

// Client appends log rows to one spreadsheet range. Token acquisition is
// the caller's concern; the client only consumes a ready bearer token.
type Client struct {
	base          *httpclient.BaseClient
	spreadsheetID string
	valueRange    string
	token         string
}

func New(baseURL, spreadsheetID, valueRange, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		base:          httpclient.NewBaseClient(baseURL),
		spreadsheetID: spreadsheetID,
		valueRange:    valueRange,
		token:         token,
	}
}

type appendRequest struct {
	Values [][]string `json:"values"`
}

// Append writes one row to the configured range.
func (c *Client) Append(ctx context.Context, row LogRow) error {
	buf, err := json.Marshal(appendRequest{Values: [][]string{row.Values()}})
	if err != nil {
		return err
	}

	relPath := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append", c.spreadsheetID, c.valueRange)
	query := url.Values{}
	query.Set("valueInputOption", "USER_ENTERED")

	req, err := c.base.NewRequest(ctx, http.MethodPost, relPath, query, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.base.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("sheets append: status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
