package aldes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// maxAttempts bounds the exponential-backoff retrier.
	maxAttempts = 3
	// retryBudget bounds the total wall-clock time spent retrying one call.
	retryBudget = 60 * time.Second
	// retryBaseDelay is the first backoff step; each retry doubles it.
	retryBaseDelay = 500 * time.Millisecond
)

// cacheEntry is one last-known-good response body. Entries are written
// only from verified 200 responses and never expire: the timestamp exists
// for log output, not for invalidation.
type cacheEntry struct {
	body     json.RawMessage
	storedAt time.Time
}

// request performs one resilient API call: authenticated execution with
// one-shot re-auth on 401, emergency cache fallback on any failure, and
// bounded exponential backoff around transport-class errors. The returned
// body is raw JSON, verified syntactically valid.
func (c *Client) request(ctx context.Context, method, url string, payload []byte) (json.RawMessage, error) {
	key := method + ":" + url
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			if time.Since(start)+delay > retryBudget {
				break
			}
			c.log.Warnw("retrying request", "key", key, "attempt", attempt+1, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, err := c.attempt(ctx, method, url, payload, key)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !isTransient(err) {
			break
		}
	}
	return nil, lastErr
}

// attempt performs one request cycle including the cache fallback: a
// failure of any kind degrades to the last-known-good body for this key,
// regardless of its age, before the error is allowed to escape.
func (c *Client) attempt(ctx context.Context, method, url string, payload []byte, key string) (json.RawMessage, error) {
	body, err := c.do(ctx, method, url, payload)
	if err != nil {
		if entry, ok := c.cached(key); ok {
			c.log.Warnw("using cached response as fallback",
				"key", key, "error_type", errorType(err), "err", err,
				"cache_age", time.Since(entry.storedAt).Round(time.Second))
			return entry.body, nil
		}
		return nil, err
	}
	c.store(key, body)
	return body, nil
}

// do executes one authenticated HTTP round trip and validates the result.
func (c *Client) do(ctx context.Context, method, url string, payload []byte) (json.RawMessage, error) {
	// Attach the default deadline only when the caller did not bring one.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	resp, err := c.doAuthenticated(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d for %s %s", ErrRequestFailed, resp.StatusCode, method, url)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		// Some PATCH endpoints answer 200 with an empty body.
		return json.RawMessage("null"), nil
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: invalid JSON body for %s %s", ErrRequestFailed, method, url)
	}
	return body, nil
}

// doAuthenticated sends the request with the bearer header. An
// unauthorized response triggers exactly one re-authentication and one
// replay; a second 401 is returned to the caller as-is.
func (c *Client) doAuthenticated(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, url, payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	resp.Body.Close()

	c.log.Infow("token rejected, re-authenticating", "url", url)
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}
	return c.send(ctx, method, url, payload)
}

func (c *Client) send(ctx context.Context, method, url string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", c.bearer())
	return c.httpClient.Do(req)
}

func (c *Client) cached(key string) (cacheEntry, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	entry, ok := c.cache[key]
	return entry, ok
}

func (c *Client) store(key string, body json.RawMessage) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()
	c.cache[key] = cacheEntry{body: body, storedAt: time.Now().UTC()}
}

// errorType names the cause of a failure for log output: the wrapped
// error when there is one, the error itself for leaf errors.
func errorType(err error) string {
	if cause := errors.Unwrap(err); cause != nil {
		return fmt.Sprintf("%T", cause)
	}
	return fmt.Sprintf("%T", err)
}

// isTransient reports whether an error is worth a retry: transport and
// timeout failures are, rejected requests and authentication failures are
// not (the next poll cycle will try again with the then-current token).
func isTransient(err error) bool {
	if errors.Is(err, ErrRequestFailed) || errors.Is(err, ErrAuthentication) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

// backoffDelay doubles the base delay per attempt: 500ms, 1s, 2s, ...
func backoffDelay(attempt int) time.Duration {
	return retryBaseDelay << (attempt - 1)
}
