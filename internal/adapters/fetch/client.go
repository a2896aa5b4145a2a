package fetch

import (
	"context"
	crand "crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNotFound = errors.New("fetch: not found")
	ErrTooLarge = errors.New("fetch: body exceeds limit")
)

// Client downloads import sources and remote images with client-side rate
// limiting and retries on 429/5xx.
type Client struct {
	hc       *http.Client
	rl       *rate.Limiter
	maxBytes int64
}

func New(rps int, maxBytes int64) *Client {
	if rps <= 0 {
		rps = 5
	}
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	return &Client{
		hc:       &http.Client{Timeout: 20 * time.Second},
		rl:       rate.NewLimiter(rate.Limit(rps), rps),
		maxBytes: maxBytes,
	}
}

// JSON decodes the body at url into out.
func (c *Client) JSON(ctx context.Context, url string, out any) error {
	body, _, err := c.get(ctx, url, "application/json")
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// Image returns the bytes at url and their content type.
func (c *Client) Image(ctx context.Context, url string) (string, []byte, error) {
	body, ct, err := c.get(ctx, url, "image/*")
	if err != nil {
		return "", nil, err
	}
	if ct == "" || !strings.HasPrefix(ct, "image/") {
		ct = http.DetectContentType(body)
	}
	if !strings.HasPrefix(ct, "image/") {
		return "", nil, fmt.Errorf("fetch %s: not an image (%s)", url, ct)
	}
	return ct, body, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, string, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, "", err
	}

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, "", err
		}
		req.Header.Set("Accept", accept)
		req.Header.Set("User-Agent", "lodge-finder-importer/1.0")

		resp, err := c.hc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
			if i < 3 && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			return nil, "", lastErr
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
			resp.Body.Close()
			if err != nil {
				return nil, "", err
			}
			if int64(len(body)) > c.maxBytes {
				return nil, "", fmt.Errorf("%w: %s", ErrTooLarge, url)
			}
			ct, _, _ := strings.Cut(resp.Header.Get("Content-Type"), ";")
			return body, strings.TrimSpace(ct), nil

		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, "", fmt.Errorf("%w: %s", ErrNotFound, url)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			// prefer server-provided Retry-After; otherwise exponential backoff
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = fmt.Errorf("remote %d", resp.StatusCode)
			if i < 3 && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			return nil, "", lastErr

		default:
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, "", fmt.Errorf("bad status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		}
	}
	return nil, "", lastErr
}

// sleepCtx waits for d or returns early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// retryAfter parses Retry-After (seconds or HTTP-date). Returns 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff doubles from 200ms with up to +50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
