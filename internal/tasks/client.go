// Package tasks fetches the task list from the local task server. The
// upstream returns rows of the form [id, text, "DD-MM-YYYY HH:MM:SS"].
package tasks

import (
	"context"
	"time"

	"github.com/dcrowell/homeboard/internal/models"
	"github.com/dcrowell/homeboard/internal/upstream"
)

const (
	upstreamTimeLayout = "02-01-2006 15:04:05"
	displayTimeLayout  = "January 02, 2006"
)

// Client fetches tasks from the configured endpoint.
type Client struct {
	url    string
	limit  int
	caller *upstream.Caller
}

// New creates a tasks Client. limit caps how many rows are kept.
func New(url string, limit int, caller *upstream.Caller) *Client {
	if limit <= 0 {
		limit = 6
	}
	return &Client{url: url, limit: limit, caller: caller}
}

// List returns up to limit task records in upstream order. Rows with a
// malformed shape or date are skipped.
func (c *Client) List(ctx context.Context) ([]models.TaskRecord, error) {
	var rows [][]any
	if err := c.caller.GetJSON(ctx, c.url, &rows); err != nil {
		return nil, err
	}

	records := make([]models.TaskRecord, 0, c.limit)
	for _, row := range rows {
		if len(records) == c.limit {
			break
		}
		if len(row) < 3 {
			continue
		}
		text, ok := row[1].(string)
		if !ok {
			continue
		}
		raw, ok := row[2].(string)
		if !ok {
			continue
		}
		when, err := time.Parse(upstreamTimeLayout, raw)
		if err != nil {
			continue
		}
		records = append(records, models.TaskRecord{
			Date: when.Format(displayTimeLayout),
			Task: text,
		})
	}
	return records, nil
}
