package report

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func outcome(seq int, status domain.FetchStatus, bytes int64) domain.FetchOutcome {
	c := domain.FetchCandidate{
		Seq: seq,
		Key: domain.FetchKey{DataType: "klines", Symbol: "BTCUSDT", Interval: "1h", Period: domain.Period{Year: 2024, Month: time.Month(seq%12 + 1)}},
	}
	var err error
	if status.IsFailure() {
		err = errors.New(string(status))
	}
	out := domain.NewOutcome(c, status, 1, err)
	out.BytesWritten = bytes
	return out
}

func TestAggregator_Counts(t *testing.T) {
	a := NewAggregator(newTestLogger(), 0)

	a.Record(outcome(0, domain.StatusDownloaded, 100))
	a.Record(outcome(1, domain.StatusDownloaded, 50))
	a.Record(outcome(2, domain.StatusSkippedExists, 0))
	a.Record(outcome(3, domain.StatusNotFound, 0))

	r := a.Finalize()

	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2, r.Count(domain.StatusDownloaded))
	assert.Equal(t, 1, r.Count(domain.StatusSkippedExists))
	assert.Equal(t, 1, r.Count(domain.StatusNotFound))
	assert.Equal(t, 0, r.Count(domain.StatusFailed))
	assert.Equal(t, int64(150), r.BytesWritten)
	assert.False(t, r.HasFailures())
	assert.Equal(t, 0, r.ExitCode())
	assert.Empty(t, r.Failures)
}

func TestAggregator_FailuresOrderedBySeq(t *testing.T) {
	a := NewAggregator(newTestLogger(), 0)

	a.Record(outcome(7, domain.StatusFailed, 0))
	a.Record(outcome(2, domain.StatusChecksumMismatch, 0))
	a.Record(outcome(5, domain.StatusCancelled, 0))
	a.Record(outcome(1, domain.StatusDownloaded, 10))

	r := a.Finalize()

	require.Len(t, r.Failures, 3)
	assert.Equal(t, 2, r.Failures[0].Candidate.Seq)
	assert.Equal(t, 5, r.Failures[1].Candidate.Seq)
	assert.Equal(t, 7, r.Failures[2].Candidate.Seq)
	assert.True(t, r.HasFailures())
	assert.Equal(t, 1, r.ExitCode())
}

func TestAggregator_FinalizeIsIdempotent(t *testing.T) {
	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	a := newAggregator(newTestLogger(), 0, now)
	a.Record(outcome(0, domain.StatusDownloaded, 1))

	first := a.Finalize()
	a.Record(outcome(1, domain.StatusFailed, 0))
	second := a.Finalize()

	assert.Equal(t, first, second)
	assert.Equal(t, 1, second.Total)
	assert.Equal(t, time.Second, second.Duration())
}

func TestAggregator_ConcurrentRecord(t *testing.T) {
	a := NewAggregator(newTestLogger(), 10)

	var wg sync.WaitGroup
	for i := range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Record(outcome(i, domain.StatusDownloaded, 1))
		}()
	}
	wg.Wait()

	r := a.Finalize()
	assert.Equal(t, 100, r.Total)
	assert.Equal(t, int64(100), r.BytesWritten)
}

func TestAggregator_SnapshotDoesNotFreeze(t *testing.T) {
	a := NewAggregator(newTestLogger(), 0)
	a.Record(outcome(0, domain.StatusDownloaded, 1))

	assert.Equal(t, 1, a.Snapshot().Total)
	a.Record(outcome(1, domain.StatusDownloaded, 1))
	assert.Equal(t, 2, a.Finalize().Total)
}

func TestAggregator_ProgressLogging(t *testing.T) {
	var buf bytes.Buffer
	a := NewAggregator(slog.New(slog.NewTextHandler(&buf, nil)), 2)

	a.Record(outcome(0, domain.StatusDownloaded, 1))
	assert.NotContains(t, buf.String(), "progress")
	a.Record(outcome(1, domain.StatusSkippedExists, 0))
	assert.Contains(t, buf.String(), "msg=progress processed=2")
}

func TestWriteSummary(t *testing.T) {
	a := NewAggregator(newTestLogger(), 0)
	a.Record(outcome(0, domain.StatusDownloaded, 2048))
	a.Record(outcome(1, domain.StatusFailed, 0))

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, a.Finalize()))

	out := buf.String()
	assert.Contains(t, out, "downloaded")
	assert.Contains(t, out, "2.0 KiB")
	assert.Contains(t, out, "klines BTCUSDT 1h 2024-02")
}
