package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/checksum"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
	"github.com/veranemoloko/vision-downloader/internal/metrics"
	"github.com/veranemoloko/vision-downloader/internal/storage"
)

const maxSidecarSize = 4 << 10

// Options tune a Fetcher.
type Options struct {
	Retry          RetryPolicy
	AttemptTimeout time.Duration
	MaxFileSize    int64
	// Limiter throttles attempts across all workers. Nil means unlimited.
	Limiter *rate.Limiter
}

// Fetcher downloads a single candidate with retries, optional checksum
// verification and an atomic commit.
type Fetcher struct {
	storage    *storage.FileStorage
	httpClient *http.Client
	opts       Options
	logger     *slog.Logger
}

// NewHTTPClient builds the client shared by all workers. Its transport is safe for concurrent use.
func NewHTTPClient(connectTimeout time.Duration, maxConnsPerHost int) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   connectTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = connectTimeout
	transport.ResponseHeaderTimeout = connectTimeout * 3
	transport.MaxIdleConnsPerHost = maxConnsPerHost

	return &http.Client{Transport: transport}
}

// NewFetcher creates a Fetcher writing through fileStorage.
func NewFetcher(fileStorage *storage.FileStorage, httpClient *http.Client, opts Options, logger *slog.Logger) *Fetcher {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 5 * time.Minute
	}
	return &Fetcher{
		storage:    fileStorage,
		httpClient: httpClient,
		opts:       opts,
		logger:     logger,
	}
}

// Fetch runs the retry loop for c and always returns a terminal outcome.
func (f *Fetcher) Fetch(ctx context.Context, c domain.FetchCandidate, ro domain.RunOptions) domain.FetchOutcome {
	start := time.Now()
	out := f.fetch(ctx, c, ro)
	out.Duration = time.Since(start)
	return out
}

func (f *Fetcher) fetch(ctx context.Context, c domain.FetchCandidate, ro domain.RunOptions) domain.FetchOutcome {
	tmp, n, attempts, err := f.download(ctx, c.RemoteURL, c.LocalPath)
	if err != nil {
		switch {
		case isCancellation(ctx, err):
			return domain.NewOutcome(c, domain.StatusCancelled, attempts, err)
		case errors.Is(err, errpkg.ErrNotFound):
			return domain.NewOutcome(c, domain.StatusNotFound, attempts, nil)
		default:
			return domain.NewOutcome(c, domain.StatusFailed, attempts, err)
		}
	}

	if ro.WantsChecksum() {
		status, err := f.checkSidecar(ctx, c, ro, tmp)
		if err != nil {
			_ = f.storage.Discard(tmp)
			return domain.NewOutcome(c, status, attempts, err)
		}
	}

	if err := f.storage.Commit(tmp, c.LocalPath); err != nil {
		_ = f.storage.Discard(tmp)
		return domain.NewOutcome(c, domain.StatusFailed, attempts, err)
	}

	metrics.DownloadBytes.Add(float64(n))
	out := domain.NewOutcome(c, domain.StatusDownloaded, attempts, nil)
	out.BytesWritten = n
	return out
}

// download retries attempts against url until one succeeds, the budget runs out,
// or a non-retryable error occurs. On success the payload sits in the returned temp file.
func (f *Fetcher) download(ctx context.Context, url, localPath string) (string, int64, int, error) {
	policy := f.opts.Retry
	attempts := 0

	for {
		if err := f.wait(ctx); err != nil {
			return "", 0, attempts, err
		}

		attempts++
		tmp, n, err := f.attempt(ctx, url, localPath)
		if err == nil {
			return tmp, n, attempts, nil
		}
		if errors.Is(err, errpkg.ErrNotFound) || isPermanent(err) {
			return "", 0, attempts, err
		}
		if attempts >= policy.MaxAttempts() {
			return "", 0, attempts, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}

		delay := policy.Delay(attempts)
		metrics.Retries.Inc()
		f.logger.Debug("attempt failed, retrying",
			"url", url,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
		if err := sleep(ctx, delay); err != nil {
			return "", 0, attempts, err
		}
	}
}

// wait checks for cancellation and blocks on the rate limiter if one is configured.
func (f *Fetcher) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.opts.Limiter == nil {
		return nil
	}
	if err := f.opts.Limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return permanent(fmt.Errorf("rate limiter: %w", err))
	}
	return nil
}

// isCancellation reports whether err stems from the run's own context being done.
func isCancellation(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

// attempt performs one GET. The request context is detached from ctx so an
// attempt already on the wire completes or hits its own timeout.
func (f *Fetcher) attempt(ctx context.Context, url, localPath string) (string, int64, error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.AttemptTimeout)
	defer cancel()

	metrics.Attempts.Inc()
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()
	started := time.Now()
	defer func() { metrics.AttemptDuration.Observe(time.Since(started).Seconds()) }()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, permanent(fmt.Errorf("create request: %w", err))
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", errpkg.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", 0, errpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("%w: unexpected status %s", errpkg.ErrTransientNetwork, resp.Status)
	}
	if f.opts.MaxFileSize > 0 && resp.ContentLength > f.opts.MaxFileSize {
		return "", 0, permanent(fmt.Errorf("%w: %d > %d bytes", errpkg.ErrFileTooLarge, resp.ContentLength, f.opts.MaxFileSize))
	}

	file, err := f.storage.CreateTemp(localPath)
	if err != nil {
		return "", 0, permanent(err)
	}
	tmp := file.Name()

	n, err := f.copyWithContext(actx, file, resp.Body)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = permanent(fmt.Errorf("close temp file: %w", cerr))
	}
	if err == nil {
		err = f.checkBody(n, resp.ContentLength)
	}
	if err != nil {
		_ = f.storage.Discard(tmp)
		return "", 0, err
	}

	return tmp, n, nil
}

func (f *Fetcher) checkBody(n, contentLength int64) error {
	switch {
	case f.opts.MaxFileSize > 0 && n > f.opts.MaxFileSize:
		return permanent(fmt.Errorf("%w: limit %d bytes", errpkg.ErrFileTooLarge, f.opts.MaxFileSize))
	case n == 0:
		return fmt.Errorf("%w: empty body", errpkg.ErrTransientNetwork)
	case contentLength >= 0 && n != contentLength:
		return fmt.Errorf("%w: short body %d of %d bytes", errpkg.ErrTransientNetwork, n, contentLength)
	}
	return nil
}

// copyWithContext streams src into dst. Read failures are transient, write failures are permanent.
func (f *Fetcher) copyWithContext(ctx context.Context, dst *os.File, src io.Reader) (int64, error) {
	if f.opts.MaxFileSize > 0 {
		src = io.LimitReader(src, f.opts.MaxFileSize+1)
	}
	buf := make([]byte, 32*1024)
	var total int64

	for {
		select {
		case <-ctx.Done():
			return total, fmt.Errorf("%w: %v", errpkg.ErrTransientNetwork, ctx.Err())
		default:
			nr, err := src.Read(buf)
			if nr > 0 {
				nw, werr := dst.Write(buf[0:nr])
				if nw > 0 {
					total += int64(nw)
				}
				if werr != nil {
					return total, permanent(fmt.Errorf("write temp file: %w", werr))
				}
				if nr != nw {
					return total, permanent(io.ErrShortWrite)
				}
			}
			if err != nil {
				if err == io.EOF {
					return total, nil
				}
				return total, fmt.Errorf("%w: read body: %v", errpkg.ErrTransientNetwork, err)
			}
		}
	}
}

// checkSidecar fetches the checksum sidecar, verifies tmp against it when
// requested, and stores it next to the data file when requested.
func (f *Fetcher) checkSidecar(ctx context.Context, c domain.FetchCandidate, ro domain.RunOptions, tmp string) (domain.FetchStatus, error) {
	url := c.ChecksumURL
	if url == "" {
		url = c.RemoteURL + catalog.ChecksumSuffix
	}

	sidecar, err := f.fetchSidecar(ctx, url)
	if err != nil {
		if isCancellation(ctx, err) {
			return domain.StatusCancelled, err
		}
		if errors.Is(err, errpkg.ErrNotFound) {
			if !ro.VerifyChecksum {
				f.logger.Warn("checksum sidecar not published", "url", url)
				return "", nil
			}
			return domain.StatusFailed, fmt.Errorf("%w: %s", errpkg.ErrSidecarMissing, url)
		}
		return domain.StatusFailed, fmt.Errorf("fetch sidecar: %w", err)
	}

	if ro.VerifyChecksum {
		ok, err := checksum.Verify(tmp, sidecar)
		if err != nil {
			return domain.StatusFailed, err
		}
		if !ok {
			return domain.StatusChecksumMismatch, fmt.Errorf("%w: %s", errpkg.ErrChecksumMismatch, c.RemoteURL)
		}
	}

	if ro.DownloadChecksum {
		if err := f.storage.WriteAtomic(catalog.SidecarPath(c.LocalPath), sidecar); err != nil {
			return domain.StatusFailed, fmt.Errorf("store sidecar: %w", err)
		}
	}
	return "", nil
}

// Available reports whether url is published, using HEAD requests under the
// same limiter and retry policy as downloads. A 404 means not published.
func (f *Fetcher) Available(ctx context.Context, url string) (bool, error) {
	policy := f.opts.Retry
	for attempt := 1; ; attempt++ {
		if err := f.wait(ctx); err != nil {
			return false, err
		}

		err := f.head(ctx, url)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, errpkg.ErrNotFound):
			return false, nil
		case isPermanent(err):
			return false, err
		case attempt >= policy.MaxAttempts():
			return false, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		metrics.Retries.Inc()
		if err := sleep(ctx, policy.Delay(attempt)); err != nil {
			return false, err
		}
	}
}

func (f *Fetcher) head(ctx context.Context, url string) error {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodHead, url, nil)
	if err != nil {
		return permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", errpkg.ErrTransientNetwork, err)
	}
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return errpkg.ErrNotFound
	default:
		return fmt.Errorf("%w: unexpected status %s", errpkg.ErrTransientNetwork, resp.Status)
	}
}

// fetchSidecar applies the same retry policy as data files. Its attempts are not
// counted towards the candidate's outcome.
func (f *Fetcher) fetchSidecar(ctx context.Context, url string) ([]byte, error) {
	policy := f.opts.Retry
	for attempt := 1; ; attempt++ {
		if err := f.wait(ctx); err != nil {
			return nil, err
		}

		data, err := f.getSidecar(ctx, url)
		if err == nil {
			return data, nil
		}
		if errors.Is(err, errpkg.ErrNotFound) || isPermanent(err) || attempt >= policy.MaxAttempts() {
			return nil, err
		}
		if err := sleep(ctx, policy.Delay(attempt)); err != nil {
			return nil, err
		}
	}
}

func (f *Fetcher) getSidecar(ctx context.Context, url string) ([]byte, error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.opts.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errpkg.ErrTransientNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, errpkg.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %s", errpkg.ErrTransientNetwork, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxSidecarSize))
	if err != nil {
		return nil, fmt.Errorf("%w: read sidecar: %v", errpkg.ErrTransientNetwork, err)
	}
	return data, nil
}
