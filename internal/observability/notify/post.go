package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultPostTimeout = 5 * time.Second
	retryStep          = 200 * time.Millisecond
	errorBodyLimit     = 4096
)

// Poster sends JSON documents to a webhook-style endpoint, retrying failed attempts with a
// linear backoff.
type Poster struct {
	Name    string
	Client  *http.Client
	Retries int
}

// NewPoster returns a Poster whose client times out after timeout (5s when unset) unless
// hc is supplied.
func NewPoster(name string, hc *http.Client, timeout time.Duration, retries int) Poster {
	if hc == nil {
		if timeout <= 0 {
			timeout = defaultPostTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return Poster{Name: name, Client: hc, Retries: max(retries, 0)}
}

// PostJSON encodes doc and posts it to endpoint. The last attempt's error is returned.
func (p Poster) PostJSON(ctx context.Context, endpoint string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: encode: %w", p.Name, err)
	}

	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, time.Duration(attempt)*retryStep); err != nil {
				return err
			}
		}
		if lastErr = p.once(ctx, endpoint, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (p Poster) once(ctx context.Context, endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: build request: %w", p.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return fmt.Errorf("%s: %s: %s", p.Name, resp.Status, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
