package cmd

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"apiscope/internal/config"
	"apiscope/internal/dashboard"
	"apiscope/internal/dataset"
	"apiscope/internal/graphqlapi"
	"apiscope/internal/httpserver"
	"apiscope/internal/pidfile"
	"apiscope/internal/restapi"
)

var restCmd = &cobra.Command{
	Use:   "rest",
	Short: "Serve the dataset over REST (GET /users, GET /user/{id})",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		entry := log.WithField("service", "rest")
		data := dataset.NewProvider(cfg.DatasetSize)
		entry.WithField("users", data.Len()).Info("dataset ready")
		return serveAdapter(cmd.Context(), cfg.REST, restapi.NewServer(data, entry).Router(), entry)
	},
}

var graphqlCmd = &cobra.Command{
	Use:   "graphql",
	Short: "Serve the dataset over GraphQL (POST /graphql)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		entry := log.WithField("service", "graphql")
		data := dataset.NewProvider(cfg.DatasetSize)
		entry.WithField("users", data.Len()).Info("dataset ready")
		return serveAdapter(cmd.Context(), cfg.GraphQL, graphqlapi.NewServer(data, entry).Router(), entry)
	},
}

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the sample viewer and the raw report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		entry := log.WithField("service", "dashboard")
		ctx, stop := signalContext(cmd.Context())
		defer stop()
		entry.WithField("report", cfg.Dashboard.Report).Info("serving report")
		return httpserver.Serve(ctx, cfg.Dashboard.Addr, dashboard.NewServer(cfg.Dashboard.Report, entry).Router(), entry)
	},
}

// serveAdapter publishes the pid file for the observer, serves until a
// signal arrives and removes the pid file on the way out.
func serveAdapter(parent context.Context, cfg config.Adapter, handler http.Handler, log logrus.FieldLogger) error {
	ctx, stop := signalContext(parent)
	defer stop()

	if err := pidfile.Write(cfg.PIDFile); err != nil {
		return err
	}
	defer func() {
		if err := pidfile.Remove(cfg.PIDFile); err != nil {
			log.WithError(err).Warn("could not remove pid file")
		}
	}()

	return httpserver.Serve(ctx, cfg.Addr, handler, log)
}

func init() {
	restCmd.Flags().String("addr", ":5001", "listen address")
	restCmd.Flags().String("pid-file", "rest_api.pid", "pid file read by the observer")
	graphqlCmd.Flags().String("addr", ":5002", "listen address")
	graphqlCmd.Flags().String("pid-file", "graphql_api.pid", "pid file read by the observer")
	dashboardCmd.Flags().String("addr", ":8080", "listen address")
	dashboardCmd.Flags().String("report", "report.json", "result log to serve")

	restCmd.Flags().Int("dataset-size", 10000, "number of generated users")
	graphqlCmd.Flags().Int("dataset-size", 10000, "number of generated users")

	restCmd.PreRunE = bindOnRun(map[string]string{
		"rest.addr":     "addr",
		"rest.pid_file": "pid-file",
		"dataset.size":  "dataset-size",
	})
	graphqlCmd.PreRunE = bindOnRun(map[string]string{
		"graphql.addr":     "addr",
		"graphql.pid_file": "pid-file",
		"dataset.size":     "dataset-size",
	})
	dashboardCmd.PreRunE = bindOnRun(map[string]string{
		"dashboard.addr":   "addr",
		"dashboard.report": "report",
	})
}
