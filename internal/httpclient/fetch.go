package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/teranos/catalogix/errors"
)

// ErrTooLarge is returned by Fetch when the body exceeds the byte limit.
var ErrTooLarge = errors.New("response body too large")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// Fetch performs a single GET and returns the body. Non-2xx responses become
// a *StatusError; bodies larger than maxBytes (when > 0) fail with ErrTooLarge.
// There are no retries.
func (c *SaferClient) Fetch(ctx context.Context, rawURL string, maxBytes int64) ([]byte, error) {
	u, err := c.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Accept", "image/*,*/*;q=0.8")

	resp, err := c.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "network request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)
		return nil, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if maxBytes > 0 && resp.ContentLength > maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "content-length %d exceeds %d bytes", resp.ContentLength, maxBytes)
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image bytes")
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, errors.Wrapf(ErrTooLarge, "body exceeds %d bytes", maxBytes)
	}
	return data, nil
}
