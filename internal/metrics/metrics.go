package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_runs_started_total",
		Help: "Total number of runs started",
	})

	RunsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_runs_completed_total",
		Help: "Total number of runs that finished without failures",
	})

	RunsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_runs_failed_total",
		Help: "Total number of runs that aborted or finished with failures",
	})

	Outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vision_downloader_outcomes_total",
		Help: "Total number of candidate outcomes by status",
	}, []string{"status"})

	Attempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_attempts_total",
		Help: "Total number of download attempts",
	})

	Retries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_retries_total",
		Help: "Total number of attempts that were retried",
	})

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vision_downloader_attempt_duration_seconds",
		Help:    "Download attempt duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vision_downloader_download_bytes_total",
		Help: "Total bytes committed to disk",
	})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vision_downloader_inflight_attempts",
		Help: "Number of download attempts currently in flight",
	})
)
