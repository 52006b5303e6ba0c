package service

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

var periodInName = regexp.MustCompile(`(\d{4}-\d{2}(?:-\d{2})?)\.zip$`)

// listingServer answers HEAD requests for BTCUSDT archives from March 2021
// (monthly) or 10 June 2023 (daily) onwards. Other symbols are never published.
type listingServer struct {
	*httptest.Server
	heads atomic.Int64
}

func newListingServer(t *testing.T, status int) *listingServer {
	t.Helper()
	s := &listingServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/fapi/v1/exchangeInfo" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"timezone":"UTC","symbols":[{"symbol":"ETHUSDT"},{"symbol":"BTCUSDT"}]}`)
			return
		}
		if r.Method != http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		s.heads.Add(1)
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}

		m := periodInName.FindStringSubmatch(r.URL.Path)
		if m == nil || !strings.Contains(r.URL.Path, "/BTCUSDT/") {
			http.NotFound(w, r)
			return
		}
		first := "2021-03"
		if strings.Contains(r.URL.Path, "/daily/") {
			first = "2023-06-10"
		}
		if m[1] < first {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(s.Close)
	return s
}

func newTestScanner(t *testing.T, baseURL string) *ListingsScanner {
	t.Helper()
	scanner, err := BuildScanner(testConfig(t, baseURL), newTestLogger())
	require.NoError(t, err)
	scanner.now = func() time.Time { return time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC) }
	return scanner
}

func TestListingsScanner_FindsFirstPublishedPeriod(t *testing.T) {
	server := newListingServer(t, http.StatusOK)
	scanner := newTestScanner(t, server.URL)

	listings := catalog.NewListings()
	res, err := scanner.Scan(context.Background(), ScanRequest{
		Market:    domain.MarketUM,
		DataTypes: []string{"klines", "bookTicker"},
		Symbols:   []string{"btcusdt", "ETHUSDT"},
		Intervals: []string{"1h"},
	}, listings)
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Keys: 4, Found: 2, Missing: 2}, res)

	got, ok := listings.FirstDate(domain.MarketUM, "klines", "BTCUSDT", "1h")
	require.True(t, ok)
	assert.Equal(t, "2021-03-01", got.Format(time.DateOnly))

	got, ok = listings.FirstDate(domain.MarketUM, "bookTicker", "BTCUSDT", "")
	require.True(t, ok)
	assert.Equal(t, "2023-06-10", got.Format(time.DateOnly))

	assert.False(t, listings.Has(domain.MarketUM, "klines", "ETHUSDT", "1h"))

	// Bisection keeps the request count far below one per period.
	assert.Less(t, server.heads.Load(), int64(100))
}

func TestListingsScanner_ResumeAndDiscovery(t *testing.T) {
	server := newListingServer(t, http.StatusOK)
	scanner := newTestScanner(t, server.URL)

	listings := catalog.NewListings()
	listings.Set(domain.MarketUM, "klines", "BTCUSDT", "1h", time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC))

	res, err := scanner.Scan(context.Background(), ScanRequest{
		Market:    domain.MarketUM,
		DataTypes: []string{"klines"},
		Intervals: []string{"1h"},
		Resume:    true,
	}, listings)
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Keys: 2, Missing: 1, Skipped: 1}, res)
}

func TestListingsScanner_FailedChecksAreCounted(t *testing.T) {
	server := newListingServer(t, http.StatusBadGateway)
	scanner := newTestScanner(t, server.URL)

	listings := catalog.NewListings()
	res, err := scanner.Scan(context.Background(), ScanRequest{
		Market:    domain.MarketUM,
		DataTypes: []string{"fundingRate"},
		Symbols:   []string{"BTCUSDT"},
	}, listings)
	require.NoError(t, err)

	assert.Equal(t, ScanResult{Keys: 1, Failed: 1}, res)
	assert.False(t, listings.Has(domain.MarketUM, "fundingRate", "BTCUSDT", ""))
}

func TestListingsScanner_InvalidRequest(t *testing.T) {
	server := newListingServer(t, http.StatusOK)
	scanner := newTestScanner(t, server.URL)

	tests := []struct {
		name string
		req  ScanRequest
		want error
	}{
		{name: "unknown market", req: ScanRequest{Market: "option"}, want: errpkg.ErrInvalidSelection},
		{name: "type not in market", req: ScanRequest{Market: domain.MarketSpot, DataTypes: []string{"fundingRate"}}, want: errpkg.ErrUnsupportedDataType},
		{name: "unknown interval", req: ScanRequest{Market: domain.MarketUM, DataTypes: []string{"klines"}, Intervals: []string{"7m"}}, want: errpkg.ErrInvalidSelection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := scanner.Scan(context.Background(), tt.req, catalog.NewListings())
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Zero(t, server.heads.Load())
}

func TestListingsScanner_Cancelled(t *testing.T) {
	server := newListingServer(t, http.StatusOK)
	scanner := newTestScanner(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	listings := catalog.NewListings()
	_, err := scanner.Scan(ctx, ScanRequest{
		Market:    domain.MarketUM,
		DataTypes: []string{"klines"},
		Symbols:   []string{"BTCUSDT"},
		Intervals: []string{"1h"},
	}, listings)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, listings.Has(domain.MarketUM, "klines", "BTCUSDT", "1h"))
}
