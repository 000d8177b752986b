package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const maxTrackable = int64(10 * time.Minute / time.Microsecond)

// SafeHistogram is a thread-safe wrapper around hdrhistogram. Values are
// microseconds.
type SafeHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewSafeHistogram() *SafeHistogram {
	// 1us to 10min, 3 significant figures
	return &SafeHistogram{hist: hdrhistogram.New(1, maxTrackable, 3)}
}

// RecordValue records v, clamped into the trackable range so a hung request
// still counts instead of being dropped.
func (h *SafeHistogram) RecordValue(v int64) error {
	if v < 0 {
		v = 0
	}
	if v > maxTrackable {
		v = maxTrackable
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.RecordValue(v)
}

func (h *SafeHistogram) ValueAtQuantile(q float64) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.ValueAtQuantile(q)
}

func (h *SafeHistogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Mean()
}

func (h *SafeHistogram) Max() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.Max()
}

func (h *SafeHistogram) TotalCount() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}
