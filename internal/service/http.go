package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxErrorBody = 512

// transportError marks a failure to get any HTTP response at all. Only these
// are worth retrying.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// doRequest sends req and returns the body of a 2xx response. Non-2xx answers
// become *UpstreamError.
func doRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt := string(body)
		if len(excerpt) > maxErrorBody {
			excerpt = excerpt[:maxErrorBody]
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: excerpt}
	}
	return body, nil
}

// doJSON sends an optional JSON body and decodes a JSON response into T.
func doJSON[T any](ctx context.Context, client *http.Client, method, rawURL string, headers map[string]string, body any) (T, error) {
	var result T

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return result, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return result, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	respBody, err := doRequest(client, req)
	if err != nil {
		return result, err
	}

	if len(respBody) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}

// postForm sends an application/x-www-form-urlencoded POST.
func postForm(ctx context.Context, client *http.Client, rawURL string, headers map[string]string, form url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return doRequest(client, req)
}

// Retry controls how transport failures are retried.
type Retry struct {
	Attempts int
	Backoff  time.Duration
}

var defaultRetry = Retry{Attempts: 3, Backoff: 200 * time.Millisecond}

// do runs fn until it succeeds, fails with a non-transport error, or the
// attempts run out. The wait doubles after each failure.
func (r Retry) do(ctx context.Context, fn func() error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	wait := r.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}

		var te *transportError
		if !errors.As(err, &te) || i == attempts-1 {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
	}
	return err
}

// postFormJSON sends a form POST and decodes a JSON response into T.
func postFormJSON[T any](ctx context.Context, client *http.Client, rawURL string, form url.Values) (T, error) {
	var result T
	body, err := postForm(ctx, client, rawURL, nil, form)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return result, fmt.Errorf("decode response: %w", err)
	}
	return result, nil
}
