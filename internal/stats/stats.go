package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats holds real-time aggregated metrics for one protocol of a load run.
type Stats struct {
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	// Latency histograms (microseconds)
	ServiceTime *SafeHistogram
	TotalTime   *SafeHistogram

	// Time spent waiting for the rate limiter before dispatch
	QueueWait *SafeHistogram

	errMu     sync.Mutex
	errCounts map[string]uint64
}

func NewStats() *Stats {
	return &Stats{
		ServiceTime: NewSafeHistogram(),
		TotalTime:   NewSafeHistogram(),
		QueueWait:   NewSafeHistogram(),
		errCounts:   make(map[string]uint64),
	}
}

func (s *Stats) Add(success bool, bytes uint64, serviceTime, queueWait, totalTime time.Duration) {
	atomic.AddUint64(&s.Requests, 1)
	if success {
		atomic.AddUint64(&s.Success, 1)
	} else {
		atomic.AddUint64(&s.Fail, 1)
	}
	atomic.AddUint64(&s.Bytes, bytes)

	s.ServiceTime.RecordValue(serviceTime.Microseconds())
	s.QueueWait.RecordValue(queueWait.Microseconds())
	s.TotalTime.RecordValue(totalTime.Microseconds())
}

// AddError counts a failure reason, e.g. "status 500" or a transport error.
func (s *Stats) AddError(reason string) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errCounts[reason]++
}

// ErrorCount is one failure reason and how often it occurred.
type ErrorCount struct {
	Reason string
	Count  uint64
}

// GetErrorCounts returns failure reasons, most frequent first.
func (s *Stats) GetErrorCounts() []ErrorCount {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	out := make([]ErrorCount, 0, len(s.errCounts))
	for reason, n := range s.errCounts {
		out = append(out, ErrorCount{Reason: reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func (s *Stats) ErrorRate() float64 {
	reqs := atomic.LoadUint64(&s.Requests)
	if reqs == 0 {
		return 0
	}
	fails := atomic.LoadUint64(&s.Fail)
	return (float64(fails) / float64(reqs)) * 100
}

func (s *Stats) GetP50Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(50)) / 1000.0 // ms
}

func (s *Stats) GetP90Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(90)) / 1000.0
}

func (s *Stats) GetP95Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(95)) / 1000.0
}

func (s *Stats) GetP99Service() float64 {
	return float64(s.ServiceTime.ValueAtQuantile(99)) / 1000.0
}

func (s *Stats) GetP99Total() float64 {
	return float64(s.TotalTime.ValueAtQuantile(99)) / 1000.0
}

// QueueWaitAvgMs returns average queue wait in milliseconds
func (s *Stats) QueueWaitAvgMs() float64 {
	return s.QueueWait.Mean() / 1000.0
}
