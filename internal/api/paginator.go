package api

import (
	"context"
	"encoding/json"
	"net/url"
)

// listEnvelope is one page of a paginated listing: items under "value",
// and a self-contained continuation URL when more pages remain. Absence
// of the cursor marks the terminal page.
type listEnvelope struct {
	Value    json.RawMessage `json:"value"`
	NextLink string          `json:"@odata.nextLink"`
}

// EachPage drives the executor through a paginated listing, invoking fn
// with each page's raw item array in order. The query parameters apply to
// the first request only; continuation cursors are self-contained full
// URLs and are followed verbatim. Page N+1 is never requested before fn
// returns for page N, and iteration stops on the first error or a false
// return from fn.
//
// This is the streaming variant: items are handed over page by page and
// nothing is accumulated. It is not restartable mid-stream; restarting
// means calling EachPage again with the original endpoint.
func (c *Client) EachPage(ctx context.Context, endpoint string, query url.Values, fn func(items json.RawMessage) (bool, error)) error {
	next := endpoint
	first := true

	for next != "" {
		if err := ctx.Err(); err != nil {
			return err
		}

		q := query
		if !first {
			// The cursor carries its own query string.
			q = nil
		}
		first = false

		body, err := c.Get(ctx, next, q)
		if err != nil {
			return err
		}

		var page listEnvelope
		if err := json.Unmarshal(body, &page); err != nil {
			return &Error{
				Kind:      KindHTTP,
				Resource:  endpointPath(endpoint),
				Operation: "GET",
				Message:   "malformed list response",
				Err:       err,
			}
		}

		if len(page.Value) > 0 {
			cont, err := fn(page.Value)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}

		next = page.NextLink
	}

	return nil
}

// ListAll materializes a paginated listing into one ordered slice of T,
// following continuation cursors until the terminal page.
func ListAll[T any](ctx context.Context, c *Client, endpoint string, query url.Values) ([]T, error) {
	var all []T

	err := c.EachPage(ctx, endpoint, query, func(items json.RawMessage) (bool, error) {
		var batch []T
		if err := json.Unmarshal(items, &batch); err != nil {
			return false, &Error{
				Kind:      KindHTTP,
				Resource:  endpointPath(endpoint),
				Operation: "GET",
				Message:   "malformed page items",
				Err:       err,
			}
		}
		all = append(all, batch...)
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	return all, nil
}

// ListAllRaw materializes a paginated listing without decoding items,
// preserving each record's raw JSON. Services use this to hand records to
// the local store unmodified.
func ListAllRaw(ctx context.Context, c *Client, endpoint string, query url.Values) ([]json.RawMessage, error) {
	return ListAll[json.RawMessage](ctx, c, endpoint, query)
}
