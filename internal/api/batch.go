package api

import (
	"context"
	"encoding/json"
	"fmt"
	nethttp "net/http"

	"github.com/google/uuid"

	"github.com/fleetlink/fleetlink-int/internal/constants"
)

// BatchItem is one logical operation inside a composite request. IDs must
// be unique within a submission; empty IDs are assigned automatically. The
// same ID is reused when a throttled item is resubmitted, so callers can
// correlate results across retry rounds.
type BatchItem struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

// BatchResult is the outcome of one BatchItem. Callers inspect Status per
// item; a non-2xx status here is data, not an error from SubmitBatch.
type BatchResult struct {
	ID      string            `json:"id"`
	Status  int               `json:"status"`
	Body    json.RawMessage   `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type batchRequestEnvelope struct {
	Requests []BatchItem `json:"requests"`
}

type batchResponseEnvelope struct {
	Responses []BatchResult `json:"responses"`
}

// SubmitBatch submits logical operations as composite requests, splitting
// them into quota-sized chunks and retrying throttled items.
//
// Guarantees:
//   - every input ID appears exactly once in the returned results;
//   - successes inside a partially throttled chunk are never discarded;
//   - only the 429 subset of a chunk is resubmitted, after signaling the
//     budget and one backoff.
//
// A throttled subset gets a single resubmission round; items still
// throttled afterwards are returned with their 429 status as terminal
// results. There is no per-item attempt counter across rounds — callers
// that need more persistence resubmit the 429 subset themselves.
func (c *Client) SubmitBatch(ctx context.Context, items []BatchItem) ([]BatchResult, error) {
	if len(items) == 0 {
		return nil, nil
	}

	items, err := assignBatchIDs(items)
	if err != nil {
		return nil, err
	}

	return c.submitRound(ctx, items, true)
}

// submitRound chunks and submits items sequentially. When allowRetry is
// set, each chunk's 429 subset is resubmitted once through a recursive
// round with retries disabled.
func (c *Client) submitRound(ctx context.Context, items []BatchItem, allowRetry bool) ([]BatchResult, error) {
	var results []BatchResult

	for chunkIdx := 0; len(items) > 0; chunkIdx++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Space out consecutive chunks so a full chunk's worth of writes
		// is not followed immediately by another burst.
		if chunkIdx > 0 {
			if err := c.sleep(ctx, c.interChunk); err != nil {
				return nil, err
			}
		}

		size := c.budget.OptimalBatchSize()
		if size > len(items) {
			size = len(items)
		}
		chunk := items[:size]
		items = items[size:]

		responses, err := c.submitChunk(ctx, chunk)
		if err != nil {
			return nil, err
		}

		var throttled []BatchItem
		for _, res := range responses {
			if res.Status == nethttp.StatusTooManyRequests && allowRetry {
				item, ok := findBatchItem(chunk, res.ID)
				if !ok {
					return nil, &Error{
						Kind:      KindHTTP,
						Resource:  constants.BatchEndpoint,
						Operation: nethttp.MethodPost,
						Message:   fmt.Sprintf("batch response contains unknown id %q", res.ID),
					}
				}
				throttled = append(throttled, item)
				continue
			}
			// Terminal regardless of status; callers inspect per item.
			results = append(results, res)
			c.metrics.BatchItem(res.Status)
		}

		if len(throttled) > 0 {
			c.budget.NoteRejected()
			c.log.Warn().
				Int("throttled", len(throttled)).
				Int("kept", len(chunk)-len(throttled)).
				Msg("batch chunk partially throttled, resubmitting failed subset")

			if err := c.sleep(ctx, c.budget.BackoffDelay(1, "")); err != nil {
				return nil, err
			}

			retried, err := c.submitRound(ctx, throttled, false)
			if err != nil {
				return nil, err
			}
			results = append(results, retried...)
		}
	}

	return results, nil
}

// submitChunk performs one composite POST and decodes per-item results.
// Every ID submitted must come back; a short response is a protocol error.
func (c *Client) submitChunk(ctx context.Context, chunk []BatchItem) ([]BatchResult, error) {
	body, err := c.Post(ctx, constants.BatchEndpoint, batchRequestEnvelope{Requests: chunk})
	if err != nil {
		return nil, err
	}

	var env batchResponseEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &Error{
			Kind:      KindHTTP,
			Resource:  constants.BatchEndpoint,
			Operation: nethttp.MethodPost,
			Message:   "malformed batch response",
			Err:       err,
		}
	}

	if len(env.Responses) != len(chunk) {
		return nil, &Error{
			Kind:      KindHTTP,
			Resource:  constants.BatchEndpoint,
			Operation: nethttp.MethodPost,
			Message:   fmt.Sprintf("batch response has %d results for %d requests", len(env.Responses), len(chunk)),
		}
	}

	return env.Responses, nil
}

// assignBatchIDs fills empty IDs and rejects duplicates.
func assignBatchIDs(items []BatchItem) ([]BatchItem, error) {
	out := make([]BatchItem, len(items))
	seen := make(map[string]struct{}, len(items))

	for i, item := range items {
		if item.ID == "" {
			item.ID = uuid.NewString()
		}
		if _, dup := seen[item.ID]; dup {
			return nil, &Error{
				Kind:      KindInvalidURL,
				Resource:  constants.BatchEndpoint,
				Operation: nethttp.MethodPost,
				Message:   fmt.Sprintf("duplicate batch item id %q", item.ID),
			}
		}
		seen[item.ID] = struct{}{}
		out[i] = item
	}

	return out, nil
}

func findBatchItem(chunk []BatchItem, id string) (BatchItem, bool) {
	for _, item := range chunk {
		if item.ID == id {
			return item, true
		}
	}
	return BatchItem{}, false
}
