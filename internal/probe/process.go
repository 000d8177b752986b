package probe

import (
	"context"
	"time"

	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
)

// ProcessProbe measures one process over a fixed window. Each call blocks for
// Window.
type ProcessProbe struct {
	Window time.Duration

	fs    procfs.FS
	fsErr error
	log   logrus.FieldLogger
	locks pidLocks
}

func NewProcessProbe(mountPoint string, window time.Duration, log logrus.FieldLogger) *ProcessProbe {
	if window <= 0 {
		window = DefaultProcessWindow
	}
	fs, err := openFS(mountPoint)
	if err != nil {
		log.WithError(err).Warn("procfs unavailable, process metrics will be zero")
	}
	return &ProcessProbe{Window: window, fs: fs, fsErr: err, log: log}
}

// Sample returns CPU usage as a percentage of one core over the window and the
// resident set size in MB. A missing or unreadable process yields zeros.
func (p *ProcessProbe) Sample(ctx context.Context, pid int) ProcessMetrics {
	if p.fsErr != nil || pid <= 0 {
		return ProcessMetrics{}
	}

	lock := p.locks.get(pid)
	lock.Lock()
	defer lock.Unlock()

	log := p.log.WithField("pid", pid)

	proc, err := p.fs.Proc(pid)
	if err != nil {
		log.WithError(err).Debug("process not found")
		return ProcessMetrics{}
	}

	before, err := proc.Stat()
	if err != nil {
		log.WithError(err).Debug("read process stat")
		return ProcessMetrics{}
	}
	start := time.Now()

	if !sleep(ctx, p.Window) {
		return ProcessMetrics{}
	}

	after, err := proc.Stat()
	if err != nil {
		log.WithError(err).Debug("process went away during sampling")
		return ProcessMetrics{}
	}
	elapsed := time.Since(start).Seconds()

	cpu := 0.0
	if elapsed > 0 {
		cpu = (after.CPUTime() - before.CPUTime()) / elapsed * 100
	}
	if cpu < 0 {
		cpu = 0
	}

	return ProcessMetrics{
		CPUPercent: round(cpu, 1),
		MemoryMB:   round(float64(after.ResidentMemory())/(1024*1024), 2),
	}
}
