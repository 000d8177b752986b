package probe

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
)

// SystemProbe reports host-wide CPU and memory utilization.
type SystemProbe struct {
	Window time.Duration

	fs    procfs.FS
	fsErr error
	log   logrus.FieldLogger
}

func NewSystemProbe(mountPoint string, window time.Duration, log logrus.FieldLogger) *SystemProbe {
	if window <= 0 {
		window = DefaultSystemWindow
	}
	fs, err := openFS(mountPoint)
	if err != nil {
		log.WithError(err).Warn("procfs unavailable, system metrics will be zero")
	}
	return &SystemProbe{Window: window, fs: fs, fsErr: err, log: log}
}

func (p *SystemProbe) Sample(ctx context.Context) SystemMetrics {
	if p.fsErr != nil {
		return SystemMetrics{}
	}
	return SystemMetrics{
		CPUPercent:    p.cpuPercent(ctx),
		MemoryPercent: p.memoryPercent(),
	}
}

func (p *SystemProbe) cpuPercent(ctx context.Context) float64 {
	before, err := p.fs.Stat()
	if err != nil {
		p.log.WithError(err).Debug("read /proc/stat")
		return 0
	}
	if !sleep(ctx, p.Window) {
		return 0
	}
	after, err := p.fs.Stat()
	if err != nil {
		p.log.WithError(err).Debug("read /proc/stat")
		return 0
	}
	return cpuPercent(before.CPUTotal, after.CPUTotal)
}

func (p *SystemProbe) memoryPercent() float64 {
	info, err := p.fs.Meminfo()
	if err != nil {
		p.log.WithError(err).Debug("read /proc/meminfo")
		return 0
	}
	return memoryPercent(info)
}

// cpuPercent is the busy share of all CPU time between two readings. Guest
// time is already counted in user time.
func cpuPercent(a, b procfs.CPUStat) float64 {
	idle := (b.Idle + b.Iowait) - (a.Idle + a.Iowait)
	total := cpuTotal(b) - cpuTotal(a)
	if total <= 0 {
		return 0
	}
	busy := total - idle
	if busy < 0 {
		busy = 0
	}
	return round(busy/total*100, 1)
}

func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}

func memoryPercent(info procfs.Meminfo) float64 {
	if info.MemTotal == nil || *info.MemTotal == 0 {
		return 0
	}
	total := float64(*info.MemTotal)

	var available float64
	switch {
	case info.MemAvailable != nil:
		available = float64(*info.MemAvailable)
	default:
		available = float64(deref(info.MemFree) + deref(info.Buffers) + deref(info.Cached))
	}
	return round((total-available)/total*100, 1)
}

func deref(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
