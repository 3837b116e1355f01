package api

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/url"
	"strings"
)

// isWriteMethod reports whether the method charges the write window.
func isWriteMethod(method string) bool {
	switch method {
	case nethttp.MethodPost, nethttp.MethodPatch, nethttp.MethodDelete:
		return true
	default:
		return false
	}
}

// resolveURL turns an endpoint into an absolute URL. Continuation cursors
// arrive as full URLs and pass through untouched; relative endpoints are
// joined to the base URL with query parameters appended.
func (c *Client) resolveURL(endpoint string, query url.Values) (string, error) {
	raw := endpoint
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = c.baseURL + "/" + strings.TrimPrefix(raw, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &Error{Kind: KindInvalidURL, Resource: endpoint, Message: "malformed endpoint", Err: err}
	}

	if len(query) > 0 {
		q := u.Query()
		for key, vals := range query {
			for _, v := range vals {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// newRequest assembles one outbound request: resolved URL, serialized JSON
// body, standard headers, caller overrides, and a bearer token fetched from
// the provider. The token is fetched per build so a refreshed token is
// picked up between retry attempts.
func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, headers nethttp.Header, body any) (*nethttp.Request, bool, error) {
	isWrite := isWriteMethod(method)

	absURL, err := c.resolveURL(endpoint, query)
	if err != nil {
		return nil, isWrite, err
	}

	var reqBody *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, isWrite, &Error{
				Kind:      KindEncoding,
				Resource:  endpoint,
				Operation: method,
				Message:   "failed to serialize request body",
				Err:       err,
			}
		}
		reqBody = bytes.NewReader(data)
	}

	var req *nethttp.Request
	if reqBody != nil {
		req, err = nethttp.NewRequestWithContext(ctx, method, absURL, reqBody)
	} else {
		req, err = nethttp.NewRequestWithContext(ctx, method, absURL, nil)
	}
	if err != nil {
		return nil, isWrite, &Error{Kind: KindInvalidURL, Resource: endpoint, Operation: method, Err: err}
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		if kindOf(err) == KindUnauthorized {
			return nil, isWrite, err
		}
		return nil, isWrite, &Error{
			Kind:      KindUnauthorized,
			Resource:  endpoint,
			Operation: method,
			Message:   "token provider failed",
			Err:       err,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	// Caller-supplied overrides win over the defaults.
	for key, vals := range headers {
		req.Header.Del(key)
		for _, v := range vals {
			req.Header.Add(key, v)
		}
	}

	return req, isWrite, nil
}

// endpointPath strips the query string for logging and error reporting.
func endpointPath(endpoint string) string {
	if i := strings.IndexByte(endpoint, '?'); i >= 0 {
		return endpoint[:i]
	}
	return endpoint
}
