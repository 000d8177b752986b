// Package probe samples CPU and memory usage of single processes and of the
// whole host from procfs.
package probe

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/prometheus/procfs"
)

const (
	DefaultProcessWindow = time.Second
	DefaultSystemWindow  = 500 * time.Millisecond
)

type ProcessMetrics struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemoryMB   float64 `json:"memory_mb"`
}

type SystemMetrics struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// ProcessSampler is what the observer needs from a process probe.
type ProcessSampler interface {
	Sample(ctx context.Context, pid int) ProcessMetrics
}

type SystemSampler interface {
	Sample(ctx context.Context) SystemMetrics
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func openFS(mountPoint string) (procfs.FS, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	return procfs.NewFS(mountPoint)
}

// pidLocks hands out one mutex per pid so a process is never sampled by two
// callers at once.
type pidLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func (l *pidLocks) get(pid int) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[int]*sync.Mutex)
	}
	m, ok := l.locks[pid]
	if !ok {
		m = &sync.Mutex{}
		l.locks[pid] = m
	}
	return m
}
