package cmd

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"apiscope/internal/config"
	"apiscope/internal/loadest"
	"apiscope/internal/observer"
	"apiscope/internal/probe"
	"apiscope/internal/storage"
	"apiscope/internal/tui/app"
)

var observeCmd = &cobra.Command{
	Use:   "observe",
	Short: "Measure both adapters and append samples to the result log",
	Long: `
Each round times one request to each adapter, samples the adapter processes
and the host, estimates the synthetic load and appends one record to the
result log. --rounds 0 keeps observing until interrupted.`,
	PreRunE: bindOnRun(map[string]string{
		"observer.rest_url":       "rest-url",
		"observer.graphql_url":    "graphql-url",
		"observer.timeout":        "timeout",
		"observer.report":         "report",
		"observer.load_estimator": "estimator",
		"rest.pid_file":           "rest-pid-file",
		"graphql.pid_file":        "graphql-pid-file",
	}),
	RunE: runObserve,
}

func init() {
	f := observeCmd.Flags()
	f.Int("rounds", 1, "rounds to record, 0 for until interrupted")
	f.Duration("interval", 10*time.Second, "pause between rounds")
	f.Bool("tui", false, "show rounds in the terminal UI")
	f.String("rest-url", "http://localhost:5001/users", "REST endpoint")
	f.String("graphql-url", "http://localhost:5002/graphql", "GraphQL endpoint")
	f.Duration("timeout", 10*time.Second, "per-request timeout")
	f.String("report", "report.json", "result log to append to")
	f.String("estimator", config.EstimatorCmdline, "load estimator: cmdline or redis")
	f.String("rest-pid-file", "rest_api.pid", "REST adapter pid file")
	f.String("graphql-pid-file", "graphql_api.pid", "GraphQL adapter pid file")
}

func runObserve(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	rounds, _ := cmd.Flags().GetInt("rounds")
	interval, _ := cmd.Flags().GetDuration("interval")
	useTUI, _ := cmd.Flags().GetBool("tui")

	estimator, closeEstimator, err := newEstimator(cfg, log)
	if err != nil {
		return err
	}
	defer closeEstimator()

	obs := observer.New(observer.Config{
		RESTURL:        cfg.Observer.RESTURL,
		GraphQLURL:     cfg.Observer.GraphQLURL,
		RESTPIDFile:    cfg.REST.PIDFile,
		GraphQLPIDFile: cfg.GraphQL.PIDFile,
		Timeout:        cfg.Observer.Timeout,
	},
		probe.NewProcessProbe("", cfg.Observer.ProbeWindow, log),
		probe.NewSystemProbe("", cfg.Observer.SystemWindow, log),
		estimator,
		log.WithField("component", "observer"),
	)
	results := storage.NewResultLog(cfg.Observer.Report, log.WithField("component", "result_log"))

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	if !useTUI {
		n, err := obs.Loop(ctx, rounds, interval, results, nil)
		log.WithFields(logrus.Fields{"rounds": n, "report": results.Path()}).Info("observer finished")
		return err
	}

	log.SetLevel(logrus.ErrorLevel)
	samples := make(chan observer.SampleRecord, 16)
	loopCtx, cancelLoop := context.WithCancel(ctx)
	defer cancelLoop()

	loopErr := make(chan error, 1)
	go func() {
		defer close(samples)
		_, err := obs.Loop(loopCtx, rounds, interval, results, func(rec observer.SampleRecord) {
			select {
			case samples <- rec:
			case <-loopCtx.Done():
			}
		})
		loopErr <- err
	}()

	m := app.NewModel(app.WithSamples(samples))
	if _, err := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "run tui")
	}
	cancelLoop()
	return <-loopErr
}

func newEstimator(cfg config.Config, log logrus.FieldLogger) (loadest.Estimator, func(), error) {
	switch cfg.Observer.LoadEstimator {
	case config.EstimatorRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		return loadest.NewRedisCounter(client, cfg.Redis.Key, log), func() { client.Close() }, nil
	case config.EstimatorCmdline:
		return loadest.NewCmdline(cfg.Observer.LoadSignature, loadest.ProcCmdlines(""), log), func() {}, nil
	}
	return nil, nil, errors.Errorf("unknown load estimator %q", cfg.Observer.LoadEstimator)
}
