// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal    *prometheus.CounterVec
	blockedPagesTotal    *prometheus.CounterVec
	challengeWaitsTotal  prometheus.Counter
	subjectsSavedTotal   prometheus.Counter
	worksSavedTotal      prometheus.Counter
	magnetsReplacedTotal prometheus.Counter

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favcrawl_pages_fetched_total",
				Help: "Total pages fetched, labeled by transport and stage.",
			},
			[]string{"mode", "stage"},
		)

		blockedPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "favcrawl_blocked_pages_total",
				Help: "Total block-page detections, labeled by detector reason.",
			},
			[]string{"reason"},
		)

		challengeWaitsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "favcrawl_challenge_waits_total",
				Help: "Total interactive challenge waits entered in browser mode.",
			},
		)

		subjectsSavedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "favcrawl_subjects_saved_total",
				Help: "Total subject rows written.",
			},
		)

		worksSavedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "favcrawl_works_saved_total",
				Help: "Total work rows written.",
			},
		)

		magnetsReplacedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "favcrawl_magnets_replaced_total",
				Help: "Total magnet rows written by replacement passes.",
			},
		)
	})
}

// PageFetched records one completed page fetch.
func PageFetched(mode, stage string) {
	if pagesFetchedTotal != nil {
		pagesFetchedTotal.WithLabelValues(mode, stage).Inc()
	}
}

// PageBlocked records one block-page detection.
func PageBlocked(reason string) {
	if blockedPagesTotal != nil {
		blockedPagesTotal.WithLabelValues(reason).Inc()
	}
}

// ChallengeWait records one entry into the interactive challenge wait loop.
func ChallengeWait() {
	if challengeWaitsTotal != nil {
		challengeWaitsTotal.Inc()
	}
}

// SubjectsSaved adds to the subject write counter.
func SubjectsSaved(n int) {
	if subjectsSavedTotal != nil && n > 0 {
		subjectsSavedTotal.Add(float64(n))
	}
}

// WorksSaved adds to the work write counter.
func WorksSaved(n int) {
	if worksSavedTotal != nil && n > 0 {
		worksSavedTotal.Add(float64(n))
	}
}

// MagnetsReplaced adds to the magnet write counter.
func MagnetsReplaced(n int) {
	if magnetsReplacedTotal != nil && n > 0 {
		magnetsReplacedTotal.Add(float64(n))
	}
}
