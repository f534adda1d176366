// Package ctl is the HTTP client behind the tallyctl command.
package ctl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/mutation"
	"github.com/okian/tally/internal/domain/types"
)

// Client talks to a running tally service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient returns a client for baseURL with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Ledgers lists every ledger the service runs.
func (c *Client) Ledgers(ctx context.Context) ([]types.LedgerSummary, error) {
	var out []types.LedgerSummary
	return out, c.do(ctx, http.MethodGet, "/ledgers", nil, &out)
}

// RefreshAll reloads every ledger.
func (c *Client) RefreshAll(ctx context.Context) ([]types.Result, error) {
	var out []types.Result
	return out, c.do(ctx, http.MethodPost, "/ledgers", nil, &out)
}

// Refresh reloads one ledger. A failed reload still decodes into the result.
func (c *Client) Refresh(ctx context.Context, id int) (types.Result, error) {
	return c.result(ctx, http.MethodPost, ledgerPath(id), nil)
}

// Standings returns the top limit members of a ledger; limit 0 means all.
func (c *Client) Standings(ctx context.Context, id, limit int) ([]types.Standing, error) {
	path := ledgerPath(id) + "/standings"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []types.Standing
	return out, c.do(ctx, http.MethodGet, path, nil, &out)
}

// Exec runs op with f, or with the command authored in the spreadsheet
// when fromSheet is set.
func (c *Client) Exec(ctx context.Context, id int, op mutation.Op, f mutation.Fields, fromSheet bool) (types.Result, error) {
	path := ledgerPath(id) + "/commands/" + url.PathEscape(string(op))
	if fromSheet {
		return c.result(ctx, http.MethodPost, path+"?fromSheet=true", nil)
	}
	return c.result(ctx, http.MethodPost, path, f)
}

// LoadQuestions writes an event's questions into the question map region.
func (c *Client) LoadQuestions(ctx context.Context, id, eventID int) (types.Result, error) {
	return c.result(ctx, http.MethodPost, ledgerPath(id)+"/questions/"+strconv.Itoa(eventID), nil)
}

// LoadCommand writes the current fields of a category or event into op's
// command region.
func (c *Client) LoadCommand(ctx context.Context, id int, op mutation.Op, targetID int) (types.Result, error) {
	path := ledgerPath(id) + "/load/" + url.PathEscape(string(op)) + "/" + strconv.Itoa(targetID)
	return c.result(ctx, http.MethodPost, path, nil)
}

// Replace stores new settings for a ledger and reloads it.
func (c *Client) Replace(ctx context.Context, s model.Settings) (model.Settings, error) {
	var out model.Settings
	return out, c.do(ctx, http.MethodPut, ledgerPath(s.ID), s, &out)
}

// result decodes a types.Result from both success and failure answers.
func (c *Client) result(ctx context.Context, method, path string, body any) (types.Result, error) {
	var res types.Result
	err := c.do(ctx, method, path, body, &res)
	if err != nil && res.Error != "" {
		return res, fmt.Errorf("%w: %s", ErrRequest, res.Error)
	}
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if out != nil && len(data) > 0 {
		// Error bodies that are not of out's shape leave it zero.
		if jerr := json.Unmarshal(data, out); jerr != nil && resp.StatusCode < http.StatusBadRequest {
			return fmt.Errorf("decode response: %w", jerr)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s %s: %s: %s", ErrRequest, method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	return nil
}

func ledgerPath(id int) string {
	return "/ledgers/" + strconv.Itoa(id)
}
