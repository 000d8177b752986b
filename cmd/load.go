package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"apiscope/internal/cli"
	"apiscope/internal/config"
	"apiscope/internal/loadest"
	"apiscope/internal/runner"
	"apiscope/internal/storage"
	"apiscope/internal/tui/app"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Drive concurrent synthetic traffic against the adapters",
	Long: `
Spawns --threads workers per targeted protocol (so twice as many for
--target both). Each worker issues --requests sequential requests. Failed
requests are logged and counted, never retried.`,
	PreRunE: bindOnRun(map[string]string{
		"observer.rest_url":    "rest-url",
		"observer.graphql_url": "graphql-url",
		"history.path":         "history-path",
	}),
	RunE: runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.String("target", "both", "rest, graphql or both")
	f.Int("threads", loadest.DefaultThreads, "workers per protocol")
	f.Int("requests", 100, "requests per worker")
	f.Float64("rps", 0, "overall request rate cap, 0 for none")
	f.Int("timeout", 30, "request timeout in seconds")
	f.Bool("tui", false, "show the live terminal UI")
	f.Bool("history", true, "save the run to the history store")
	f.String("history-path", "runs.db", "history store file")
	f.StringP("out", "o", "", "write <prefix>.json and <prefix>.csv reports")
	f.String("rest-url", "http://localhost:5001/users", "REST endpoint")
	f.String("graphql-url", "http://localhost:5002/graphql", "GraphQL endpoint")
	f.String("query", "", "GraphQL document to send (default: all users)")
}

func runLoad(cmd *cobra.Command, _ []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	f := cmd.Flags()

	targetFlag, _ := f.GetString("target")
	target, err := runner.ParseTarget(targetFlag)
	if err != nil {
		return err
	}
	threads, _ := f.GetInt("threads")
	requests, _ := f.GetInt("requests")
	rps, _ := f.GetFloat64("rps")
	timeout, _ := f.GetInt("timeout")
	query, _ := f.GetString("query")
	useTUI, _ := f.GetBool("tui")
	keepHistory, _ := f.GetBool("history")
	outPrefix, _ := f.GetString("out")

	runCfg := runner.Config{
		Target:            target,
		Concurrency:       threads,
		RequestsPerWorker: requests,
		RESTURL:           cfg.Observer.RESTURL,
		GraphQLURL:        cfg.Observer.GraphQLURL,
		Query:             query,
		TimeoutSec:        timeout,
		RPS:               rps,
	}
	if err := runCfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var opts []runner.Option
	if tracker, closeTracker := newTracker(cfg, log); tracker != nil {
		defer closeTracker()
		opts = append(opts, runner.WithTracker(tracker))
	}

	var store *storage.RunStore
	if keepHistory {
		store, err = storage.NewRunStore(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	updates := make(runner.StatsUpdateChan, 100)

	if useTUI {
		// The TUI owns the terminal; keep log lines out of it.
		log.SetLevel(logrus.ErrorLevel)
		r := runner.NewRunner(runCfg, updates, log.WithField("component", "load"), opts...)
		appOpts := []app.Option{app.WithLoad(r)}
		if store != nil {
			appOpts = append(appOpts, app.WithHistory(store))
		}
		m := app.NewModel(appOpts...)
		if _, err := tea.NewProgram(&m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errors.Wrap(err, "run tui")
		}
		return nil
	}

	r := runner.NewRunner(runCfg, updates, log.WithField("component", "load"), opts...)
	sum := cli.Start(ctx, r, os.Stdout)

	item := storage.NewHistoryItem(runCfg, sum, time.Now())
	if store != nil {
		if err := store.Save(item); err != nil {
			log.WithError(err).Warn("could not save run history")
		} else {
			fmt.Printf("\nSaved as run %s\n", item.ID)
		}
	}
	return cli.Report(os.Stdout, item, outPrefix)
}

// newTracker publishes worker counts to Redis when redis.addr is set, so
// observers using the redis estimator can see this run.
func newTracker(cfg config.Config, log logrus.FieldLogger) (runner.Tracker, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("redis unreachable, worker count not published")
		client.Close()
		return nil, func() {}
	}
	return loadest.NewRedisCounter(client, cfg.Redis.Key, log), func() { client.Close() }
}
