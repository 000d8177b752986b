// Package observer runs measurement rounds against the REST and GraphQL
// adapters. A round times one request to each adapter, samples the adapter
// processes and the host, estimates the current synthetic load and returns a
// SampleRecord.
package observer

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"apiscope/internal/graphqlapi"
	"apiscope/internal/loadest"
	"apiscope/internal/pidfile"
	"apiscope/internal/probe"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	RESTURL        string
	GraphQLURL     string
	GraphQLQuery   string
	RESTPIDFile    string
	GraphQLPIDFile string
	// Timeout bounds each adapter request.
	Timeout time.Duration
}

type Observer struct {
	cfg     Config
	client  *http.Client
	process probe.ProcessSampler
	system  probe.SystemSampler
	load    loadest.Estimator
	log     logrus.FieldLogger
	now     func() time.Time
}

type Option func(*Observer)

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Observer) { o.now = now }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *Observer) { o.client = c }
}

func New(cfg Config, process probe.ProcessSampler, system probe.SystemSampler, load loadest.Estimator, log logrus.FieldLogger, opts ...Option) *Observer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.GraphQLQuery == "" {
		cfg.GraphQLQuery = graphqlapi.DefaultQuery
	}

	// Fresh connection per request; rounds are far apart and a pooled
	// connection would hide connect cost.
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DisableKeepAlives = true

	o := &Observer{
		cfg:     cfg,
		client:  &http.Client{Transport: t},
		process: process,
		system:  system,
		load:    load,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunRound performs one observation. It never fails: every problem degrades
// to a placeholder value and, for adapter requests, an error string.
func (o *Observer) RunRound(ctx context.Context) SampleRecord {
	timestamp := o.now()

	restPID, restOK := pidfile.Find(o.cfg.RESTPIDFile)
	gqlPID, gqlOK := pidfile.Find(o.cfg.GraphQLPIDFile)
	if !restOK {
		o.log.WithField("pid_file", o.cfg.RESTPIDFile).Debug("rest adapter pid unknown")
	}
	if !gqlOK {
		o.log.WithField("pid_file", o.cfg.GraphQLPIDFile).Debug("graphql adapter pid unknown")
	}

	var (
		restResult, gqlResult   MeasurementResult
		restMetrics, gqlMetrics probe.ProcessMetrics
		system                  probe.SystemMetrics
		users                   int
	)

	// Nothing returns an error; the group is only a join point.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		restResult = o.measureREST(gctx)
		return nil
	})
	g.Go(func() error {
		gqlResult = o.measureGraphQL(gctx)
		return nil
	})
	if restOK {
		g.Go(func() error {
			restMetrics = o.process.Sample(gctx, restPID)
			return nil
		})
	}
	if gqlOK {
		g.Go(func() error {
			gqlMetrics = o.process.Sample(gctx, gqlPID)
			return nil
		})
	}
	g.Go(func() error {
		users = o.load.Estimate(gctx)
		return nil
	})
	g.Go(func() error {
		system = o.system.Sample(gctx)
		return nil
	})
	_ = g.Wait()

	rec := SampleRecord{
		Timestamp:        timestamp.Format(time.RFC3339Nano),
		REST:             newProtocolSample(restResult, restMetrics),
		GraphQL:          newProtocolSample(gqlResult, gqlMetrics),
		System:           system,
		ScalabilityUsers: users,
	}

	o.log.WithFields(logrus.Fields{
		"rest_ok":           restResult.Success,
		"rest_count":        rec.REST.Count,
		"graphql_ok":        gqlResult.Success,
		"graphql_count":     rec.GraphQL.Count,
		"scalability_users": users,
	}).Info("round complete")
	return rec
}

func (o *Observer) measureREST(ctx context.Context) MeasurementResult {
	req, err := newRESTRequest(o.cfg.RESTURL)
	if err != nil {
		return failed(err)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	res := measure(ctx, o.client, req, decodeRESTUsers)
	if !res.Success {
		o.log.WithField("protocol", "rest").WithField("error", res.Error).Warn("measurement failed")
	}
	return res
}

func (o *Observer) measureGraphQL(ctx context.Context) MeasurementResult {
	req, err := newGraphQLRequest(o.cfg.GraphQLURL, o.cfg.GraphQLQuery)
	if err != nil {
		return failed(err)
	}
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeout)
	defer cancel()

	res := measure(ctx, o.client, req, decodeGraphQLUsers)
	if !res.Success {
		o.log.WithField("protocol", "graphql").WithField("error", res.Error).Warn("measurement failed")
	}
	return res
}
