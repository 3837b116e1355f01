package api

import (
	"context"
	"io"
	nethttp "net/http"
	"net/url"
)

// Do executes one logical request to completion: preemptive smoothing,
// budget admission, the HTTP exchange, and the bounded retry loop for
// transient failures. The returned bytes are the response body of the
// final successful attempt.
//
// Per attempt:
//  1. Sleep the budget's preemptive delay, if any.
//  2. Build the request. A build failure surfaces without charging the
//     window.
//  3. Acquire a window slot via TryAcquire — check and charge are one
//     atomic step, so concurrent callers can never jointly oversubscribe
//     a ceiling. When the budget is full, block in admitRecheck steps.
//     This is a cooperative wait, not a failure.
//  4. Perform the exchange and map the outcome; 429/5xx/transport errors
//     re-enter the loop with the attempt counter bumped until the retry
//     ceiling, then surface typed.
//
// The budget lock is never held across any of the sleeps.
func (c *Client) Do(ctx context.Context, method, endpoint string, query url.Values, headers nethttp.Header, body any) ([]byte, error) {
	isWrite := isWriteMethod(method)
	path := endpointPath(endpoint)

	var lastRetryAfter string

	for attempt := 1; ; attempt++ {
		if d := c.budget.PreemptiveDelay(isWrite); d > 0 {
			c.log.Debug().Str("path", path).Dur("delay", d).Msg("preemptive throttle")
			if err := c.sleep(ctx, d); err != nil {
				return nil, err
			}
		}

		req, _, err := c.newRequest(ctx, method, endpoint, query, headers, body)
		if err != nil {
			return nil, err
		}

		// Every wire attempt actually issued holds a charged slot.
		for !c.budget.TryAcquire(isWrite) {
			c.log.Debug().Str("path", path).Msg("budget exhausted, waiting for window capacity")
			if err := c.sleep(ctx, c.admitRecheck); err != nil {
				return nil, err
			}
		}
		c.metrics.RequestIssued(method)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt <= c.maxRetries {
				c.metrics.RequestRetried()
				c.log.Warn().Str("path", path).Int("attempt", attempt).Err(err).Msg("transport error, retrying")
				if serr := c.sleep(ctx, c.budget.BackoffDelay(attempt, "")); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, &Error{
				Kind:      KindNetwork,
				Resource:  path,
				Operation: method,
				Message:   "request failed after retries",
				Err:       err,
			}
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if readErr != nil {
				return nil, &Error{
					Kind:      KindNetwork,
					Resource:  path,
					Operation: method,
					Message:   "failed to read response body",
					Err:       readErr,
				}
			}
			c.budget.NoteSuccess()
			c.metrics.RequestCompleted(method, resp.StatusCode)
			return respBody, nil

		case resp.StatusCode == nethttp.StatusUnauthorized:
			c.metrics.RequestCompleted(method, resp.StatusCode)
			return nil, &Error{
				Kind:       KindUnauthorized,
				StatusCode: resp.StatusCode,
				Resource:   path,
				Operation:  method,
				Message:    "token rejected; re-authentication required",
			}

		case resp.StatusCode == nethttp.StatusForbidden:
			c.metrics.RequestCompleted(method, resp.StatusCode)
			code, message, _ := decodeErrorEnvelope(respBody)
			if message == "" {
				message = "missing permission grant for this operation"
			}
			return nil, &Error{
				Kind:       KindForbidden,
				StatusCode: resp.StatusCode,
				Code:       code,
				Resource:   path,
				Operation:  method,
				Message:    message,
			}

		case resp.StatusCode == nethttp.StatusNotFound:
			c.metrics.RequestCompleted(method, resp.StatusCode)
			return nil, &Error{
				Kind:       KindNotFound,
				StatusCode: resp.StatusCode,
				Resource:   path,
				Operation:  method,
				Message:    "resource not found",
			}

		case resp.StatusCode == nethttp.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			lastRetryAfter = retryAfter
			c.budget.NoteRejected()
			c.metrics.Throttled()
			if attempt <= c.maxRetries {
				c.log.Warn().
					Str("path", path).
					Int("attempt", attempt).
					Str("retry_after", retryAfter).
					Msg("throttled by server, backing off")
				if serr := c.sleep(ctx, c.budget.BackoffDelay(attempt, retryAfter)); serr != nil {
					return nil, serr
				}
				continue
			}
			return nil, &Error{
				Kind:       KindRateLimited,
				StatusCode: resp.StatusCode,
				Resource:   path,
				Operation:  method,
				RetryAfter: lastRetryAfter,
				Message:    "rate limit retries exhausted",
			}

		case resp.StatusCode >= 500:
			if attempt <= c.maxRetries {
				c.metrics.RequestRetried()
				c.log.Warn().Str("path", path).Int("attempt", attempt).Int("status", resp.StatusCode).Msg("server error, retrying")
				if serr := c.sleep(ctx, c.budget.BackoffDelay(attempt, "")); serr != nil {
					return nil, serr
				}
				continue
			}
			c.metrics.RequestCompleted(method, resp.StatusCode)
			code, message, _ := decodeErrorEnvelope(respBody)
			return nil, &Error{
				Kind:       KindServer,
				StatusCode: resp.StatusCode,
				Code:       code,
				Resource:   path,
				Operation:  method,
				Message:    message,
			}

		default:
			// Other 4xx: surface the structured envelope when present,
			// otherwise fall back to the raw status.
			c.metrics.RequestCompleted(method, resp.StatusCode)
			if code, message, ok := decodeErrorEnvelope(respBody); ok {
				return nil, &Error{
					Kind:       KindServer,
					StatusCode: resp.StatusCode,
					Code:       code,
					Resource:   path,
					Operation:  method,
					Message:    message,
				}
			}
			return nil, &Error{
				Kind:       KindHTTP,
				StatusCode: resp.StatusCode,
				Resource:   path,
				Operation:  method,
			}
		}
	}
}

// Get issues a GET for the endpoint and returns the raw response body.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	return c.Do(ctx, nethttp.MethodGet, endpoint, query, nil, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.Do(ctx, nethttp.MethodPost, endpoint, nil, nil, body)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, endpoint string, body any) ([]byte, error) {
	return c.Do(ctx, nethttp.MethodPatch, endpoint, nil, nil, body)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, endpoint string) ([]byte, error) {
	return c.Do(ctx, nethttp.MethodDelete, endpoint, nil, nil, nil)
}
