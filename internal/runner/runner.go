package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"apiscope/internal/graphqlapi"
	"apiscope/internal/stats"
)

// ProtocolSnapshot is a cheap copy of one protocol's live stats.
type ProtocolSnapshot struct {
	Protocol Protocol
	Requests uint64
	Success  uint64
	Fail     uint64
	Bytes    uint64

	P50ServiceMs float64
	P90ServiceMs float64
	P99ServiceMs float64
	MaxServiceMs int64

	AvgQueueWaitMs float64
}

// StatsSnapshot is sent over the channel
type StatsSnapshot struct {
	Inflight  int64
	Completed uint64
	Total     uint64
	Protocols []ProtocolSnapshot
}

// StatsUpdateChan is the channel type
type StatsUpdateChan chan StatsSnapshot

// Tracker is told how many workers start (+n) and stop (-n), so observers on
// other hosts can estimate the load.
type Tracker interface {
	Track(ctx context.Context, delta int) error
}

type Runner struct {
	Cfg    Config
	Stats  map[Protocol]*stats.Stats
	Client *http.Client

	// Event Channel
	Updates StatsUpdateChan

	log      logrus.FieldLogger
	limiter  *rate.Limiter
	tracker  Tracker
	inflight int64
	bodies   map[Protocol][]byte
}

type Option func(*Runner)

func WithTracker(t Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

func NewRunner(cfg Config, updates StatsUpdateChan, log logrus.FieldLogger, opts ...Option) *Runner {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000

	if cfg.TimeoutSec <= 0 {
		cfg.TimeoutSec = 30
	}
	if cfg.Query == "" {
		cfg.Query = graphqlapi.DefaultQuery
	}

	client := &http.Client{
		Timeout:   time.Duration(cfg.TimeoutSec) * time.Second,
		Transport: t,
	}

	if updates == nil {
		// Avoid nil panics if not provided
		updates = make(StatsUpdateChan, 10)
	}

	r := &Runner{
		Cfg:     cfg,
		Stats:   make(map[Protocol]*stats.Stats),
		Client:  client,
		Updates: updates,
		log:     log,
		bodies:  make(map[Protocol][]byte),
	}
	for _, p := range cfg.Protocols() {
		r.Stats[p] = stats.NewStats()
	}
	if cfg.RPS > 0 {
		burst := int(cfg.RPS)
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	r.bodies[ProtocolGraphQL], _ = json.Marshal(map[string]string{"query": cfg.Query})

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StartTickLoop starts a goroutine that pushes stats updates
func (r *Runner) StartTickLoop(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sendUpdate()
			}
		}
	}()
}

func (r *Runner) Snapshot() StatsSnapshot {
	s := StatsSnapshot{
		Inflight: atomic.LoadInt64(&r.inflight),
		Total:    uint64(r.Cfg.TotalRequests()),
	}
	for _, p := range r.Cfg.Protocols() {
		st := r.Stats[p]
		ps := ProtocolSnapshot{
			Protocol:       p,
			Requests:       atomic.LoadUint64(&st.Requests),
			Success:        atomic.LoadUint64(&st.Success),
			Fail:           atomic.LoadUint64(&st.Fail),
			Bytes:          atomic.LoadUint64(&st.Bytes),
			P50ServiceMs:   st.GetP50Service(),
			P90ServiceMs:   st.GetP90Service(),
			P99ServiceMs:   st.GetP99Service(),
			MaxServiceMs:   st.ServiceTime.Max() / 1000,
			AvgQueueWaitMs: st.QueueWaitAvgMs(),
		}
		s.Completed += ps.Requests
		s.Protocols = append(s.Protocols, ps)
	}
	return s
}

func (r *Runner) sendUpdate() {
	// Non-blocking send
	select {
	case r.Updates <- r.Snapshot():
	default:
		// Drop update if channel full, UI acts as backpressure
	}
}

// Run spawns the workers and blocks until every worker has issued its
// requests or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) Summary {
	start := time.Now()
	workers := r.Cfg.Workers()

	tickCtx, stopTicks := context.WithCancel(ctx)
	r.StartTickLoop(tickCtx, 200*time.Millisecond)

	if r.tracker != nil {
		if err := r.tracker.Track(ctx, workers); err != nil {
			r.log.WithError(err).Warn("could not publish worker count")
		}
		defer func() {
			// ctx may already be cancelled; the decrement must still land.
			cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := r.tracker.Track(cctx, -workers); err != nil {
				r.log.WithError(err).Warn("could not retract worker count")
			}
		}()
	}

	r.log.WithFields(logrus.Fields{
		"target":   r.Cfg.Target,
		"workers":  workers,
		"requests": r.Cfg.RequestsPerWorker,
	}).Info("launching workers")

	var wg sync.WaitGroup
	for i := 0; i < r.Cfg.Concurrency; i++ {
		for _, p := range r.Cfg.Protocols() {
			wg.Add(1)
			go func(p Protocol) {
				defer wg.Done()
				r.work(ctx, p)
			}(p)
		}
	}
	wg.Wait()

	stopTicks()
	r.sendUpdate()

	return r.summary(workers, time.Since(start))
}

func (r *Runner) work(ctx context.Context, p Protocol) {
	for i := 0; i < r.Cfg.RequestsPerWorker; i++ {
		if ctx.Err() != nil {
			return
		}
		scheduled := time.Now()
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return
			}
		}
		r.executeRequest(ctx, p, scheduled)
	}
}

func (r *Runner) newRequest(ctx context.Context, p Protocol) (*http.Request, error) {
	if p == ProtocolGraphQL {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Cfg.GraphQLURL, bytes.NewReader(r.bodies[p]))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}
	return http.NewRequestWithContext(ctx, http.MethodGet, r.Cfg.RESTURL, nil)
}

func (r *Runner) executeRequest(ctx context.Context, p Protocol, scheduledTime time.Time) {
	actualStart := time.Now()
	queueWait := actualStart.Sub(scheduledTime)

	atomic.AddInt64(&r.inflight, 1)
	defer atomic.AddInt64(&r.inflight, -1)

	res := ExperimentResult{
		TimeStamp: scheduledTime,
		Protocol:  p,
		QueueWait: queueWait,
		RequestID: uuid.NewString(),
	}

	req, err := r.newRequest(ctx, p)
	if err == nil {
		req.Header.Set("X-Request-Id", res.RequestID)
		var resp *http.Response
		resp, err = r.Client.Do(req)
		if err == nil {
			res.Status = resp.StatusCode
			res.Bytes, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			res.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
		}
	}
	res.Err = err

	endTime := time.Now()
	res.ServiceTime = endTime.Sub(actualStart)
	res.Latency = endTime.Sub(scheduledTime)

	st := r.Stats[p]
	st.Add(res.Success, uint64(res.Bytes), res.ServiceTime, res.QueueWait, res.Latency)

	entry := r.log.WithFields(logrus.Fields{
		"protocol":   p,
		"request_id": res.RequestID,
		"latency":    res.Latency.Round(time.Millisecond).String(),
	})
	switch {
	case res.Err != nil:
		st.AddError(res.Err.Error())
		entry.WithError(res.Err).Warn("request failed")
	case !res.Success:
		st.AddError(fmt.Sprintf("status %d", res.Status))
		entry.WithField("status", res.Status).Warn("request failed")
	default:
		entry.WithField("status", res.Status).Debug("request done")
	}
}

func (r *Runner) summary(workers int, elapsed time.Duration) Summary {
	s := Summary{
		Workers:  workers,
		Elapsed:  elapsed,
		Protocol: make(map[Protocol]ProtocolSummary),
	}
	for _, ps := range r.Snapshot().Protocols {
		s.Requests += ps.Requests
		s.Success += ps.Success
		s.Fail += ps.Fail
		s.Protocol[ps.Protocol] = ProtocolSummary{
			Requests: ps.Requests,
			Success:  ps.Success,
			Fail:     ps.Fail,
			Bytes:    ps.Bytes,
			P50Ms:    ps.P50ServiceMs,
			P99Ms:    ps.P99ServiceMs,
			MaxMs:    float64(ps.MaxServiceMs),
		}
	}
	return s
}

func (r *Runner) GetInflight() int64 {
	return atomic.LoadInt64(&r.inflight)
}
