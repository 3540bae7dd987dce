package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HTTPOptions configures the HTTP fetcher.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerSecond throttles outbound requests; zero disables the limiter.
	RequestsPerSecond float64
}

// HTTPFetcher implements Fetcher over net/http with retry, exponential
// backoff with jitter, and optional rate limiting.
type HTTPFetcher struct {
	client  *http.Client
	opts    HTTPOptions
	limiter *rate.Limiter
}

// NewHTTP creates an HTTPFetcher.
func NewHTTP(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	f := &HTTPFetcher{
		client: &http.Client{Timeout: opts.Timeout},
		opts:   opts,
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return f
}

// Download fetches the URL and returns the response body. Retries on 5xx and
// transport errors with exponential backoff.
func (f *HTTPFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error

	for attempt := 0; attempt <= f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			backoff += time.Duration(rand.Int64N(int64(time.Second)))
			zap.L().Warn("fetch retry",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "fetch: context cancelled")
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "fetch: rate limiter")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetch: build request %s", url)
		}
		if f.opts.UserAgent != "" {
			req.Header.Set("User-Agent", f.opts.UserAgent)
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close() //nolint:errcheck
			lastErr = eris.Errorf("fetch: %s returned %d", url, resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() //nolint:errcheck
			return nil, eris.Errorf("fetch: %s returned %d", url, resp.StatusCode)
		}

		return resp.Body, nil
	}

	return nil, eris.Wrapf(lastErr, "fetch: %s failed after %d retries", url, f.opts.MaxRetries)
}

// DownloadToFile streams the URL to path via a temp file and atomic rename,
// so a partial download never clobbers the previous good copy.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, url string, path string) (int64, error) {
	body, err := f.Download(ctx, url)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, eris.Wrapf(err, "fetch: create dir for %s", path)
	}

	tmp := path + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return 0, eris.Wrapf(err, "fetch: create %s", tmp)
	}

	n, err := io.Copy(out, body)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp) //nolint:errcheck
		return 0, eris.Wrapf(err, "fetch: write %s", tmp)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return 0, eris.Wrapf(err, "fetch: rename %s", path)
	}

	zap.L().Info("downloaded source file",
		zap.String("url", url),
		zap.String("path", path),
		zap.Int64("bytes", n),
	)
	return n, nil
}
