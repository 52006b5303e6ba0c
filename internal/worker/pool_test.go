package worker

import (
	"context"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
	"github.com/veranemoloko/vision-downloader/internal/storage"
)

type sliceRecorder struct {
	mu   sync.Mutex
	outs []domain.FetchOutcome
}

func (r *sliceRecorder) Record(out domain.FetchOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outs = append(r.outs, out)
}

func (r *sliceRecorder) byStatus() map[domain.FetchStatus]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[domain.FetchStatus]int)
	for _, o := range r.outs {
		counts[o.Status]++
	}
	return counts
}

func testCandidates(baseURL, dir string, n int) iter.Seq[domain.FetchCandidate] {
	return func(yield func(domain.FetchCandidate) bool) {
		for i := range n {
			c := domain.FetchCandidate{
				Seq:       i,
				Key:       domain.FetchKey{DataType: "trades", Symbol: fmt.Sprintf("SYM%d", i)},
				RemoteURL: fmt.Sprintf("%s/f/%d.zip", baseURL, i),
				LocalPath: filepath.Join(dir, fmt.Sprintf("%d.zip", i)),
			}
			if !yield(c) {
				return
			}
		}
	}
}

// trackingTransport records the peak number of concurrent round trips.
type trackingTransport struct {
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	requests    atomic.Int32
	delay       time.Duration
	onRequest   func(n int32)
}

func (rt *trackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	n := rt.requests.Add(1)
	if rt.onRequest != nil {
		rt.onRequest(n)
	}

	cur := rt.inFlight.Add(1)
	defer rt.inFlight.Add(-1)
	for {
		peak := rt.maxInFlight.Load()
		if cur <= peak || rt.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
	time.Sleep(rt.delay)

	body := "payload for " + req.URL.Path
	return &http.Response{
		StatusCode:    http.StatusOK,
		Status:        "200 OK",
		Header:        make(http.Header),
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}, nil
}

func newTestPool(dir string, client *http.Client, workers int) *Pool {
	fs := storage.NewFileStorage(dir)
	fetcher := NewFetcher(fs, client, Options{Retry: fastRetry(2), AttemptTimeout: 5 * time.Second}, newTestLogger())
	return NewPool(fetcher, fs, workers, newTestLogger())
}

func TestPool_ConcurrencyBound(t *testing.T) {
	dir := makeTempDir(t)
	rt := &trackingTransport{delay: 20 * time.Millisecond}
	pool := newTestPool(dir, &http.Client{Transport: rt}, 3)

	rec := &sliceRecorder{}
	err := pool.Run(context.Background(), testCandidates("http://archive.test", dir, 24), domain.RunOptions{}, rec)
	require.NoError(t, err)

	assert.Len(t, rec.outs, 24)
	assert.Equal(t, 24, rec.byStatus()[domain.StatusDownloaded])
	assert.LessOrEqual(t, rt.maxInFlight.Load(), int32(3))
	assert.Equal(t, int32(3), rt.maxInFlight.Load())
}

func TestPool_IdempotentRerun(t *testing.T) {
	dir := makeTempDir(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.WriteString(w, "zip bytes")
	}))
	defer server.Close()

	pool := newTestPool(dir, server.Client(), 4)

	first := &sliceRecorder{}
	require.NoError(t, pool.Run(context.Background(), testCandidates(server.URL, dir, 10), domain.RunOptions{}, first))
	assert.Equal(t, 10, first.byStatus()[domain.StatusDownloaded])
	assert.Equal(t, int32(10), hits.Load())

	second := &sliceRecorder{}
	require.NoError(t, pool.Run(context.Background(), testCandidates(server.URL, dir, 10), domain.RunOptions{}, second))
	assert.Equal(t, 10, second.byStatus()[domain.StatusSkippedExists])
	assert.Equal(t, int32(10), hits.Load())
	for _, o := range second.outs {
		assert.Equal(t, 0, o.Attempts)
	}

	forced := &sliceRecorder{}
	require.NoError(t, pool.Run(context.Background(), testCandidates(server.URL, dir, 10), domain.RunOptions{Force: true}, forced))
	assert.Equal(t, 10, forced.byStatus()[domain.StatusDownloaded])
	assert.Equal(t, int32(20), hits.Load())
}

func TestPool_CompletenessUnderCancellation(t *testing.T) {
	dir := makeTempDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rt := &trackingTransport{
		delay: 5 * time.Millisecond,
		onRequest: func(n int32) {
			if n == 5 {
				cancel()
			}
		},
	}
	pool := newTestPool(dir, &http.Client{Transport: rt}, 2)

	rec := &sliceRecorder{}
	require.NoError(t, pool.Run(ctx, testCandidates("http://archive.test", dir, 50), domain.RunOptions{}, rec))

	require.Len(t, rec.outs, 50)
	seen := make(map[int]bool)
	for _, o := range rec.outs {
		assert.False(t, seen[o.Candidate.Seq], "seq %d recorded twice", o.Candidate.Seq)
		seen[o.Candidate.Seq] = true
		assert.Contains(t, []domain.FetchStatus{domain.StatusDownloaded, domain.StatusCancelled}, o.Status)
	}

	counts := rec.byStatus()
	assert.Greater(t, counts[domain.StatusCancelled], 0)
	assert.Greater(t, counts[domain.StatusDownloaded], 0)
	assert.LessOrEqual(t, rt.requests.Load(), int32(5+2))
}

func TestPool_InvalidWorkers(t *testing.T) {
	dir := makeTempDir(t)
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	for _, workers := range []int{0, -1} {
		pool := newTestPool(dir, server.Client(), workers)
		rec := &sliceRecorder{}
		err := pool.Run(context.Background(), testCandidates(server.URL, dir, 3), domain.RunOptions{}, rec)

		assert.ErrorIs(t, err, errpkg.ErrInvalidWorkers)
		assert.Empty(t, rec.outs)
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestPool_MixedOutcomes(t *testing.T) {
	dir := makeTempDir(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/f/1.zip":
			http.NotFound(w, r)
		case "/f/2.zip":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = io.WriteString(w, "ok")
		}
	}))
	defer server.Close()

	pool := newTestPool(dir, server.Client(), 2)
	rec := &sliceRecorder{}
	require.NoError(t, pool.Run(context.Background(), testCandidates(server.URL, dir, 4), domain.RunOptions{}, rec))

	counts := rec.byStatus()
	assert.Equal(t, 2, counts[domain.StatusDownloaded])
	assert.Equal(t, 1, counts[domain.StatusNotFound])
	assert.Equal(t, 1, counts[domain.StatusFailed])
}
