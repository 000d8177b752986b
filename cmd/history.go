package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	tea "github.com/charmbracelet/bubbletea"

	"apiscope/internal/cli"
	"apiscope/internal/storage"
	"apiscope/internal/tui/app"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse saved load runs",
	PreRunE: bindOnRun(map[string]string{
		"history.path": "history-path",
	}),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}
		plain, _ := cmd.Flags().GetBool("plain")
		limit, _ := cmd.Flags().GetInt("limit")
		exportID, _ := cmd.Flags().GetString("export")
		outPrefix, _ := cmd.Flags().GetString("out")

		store, err := storage.NewRunStore(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer store.Close()

		if exportID != "" {
			item, err := store.Get(exportID)
			if err != nil {
				return errors.Wrapf(err, "run %s", exportID)
			}
			if outPrefix == "" {
				outPrefix = "apiscope_run_" + item.ID
			}
			return cli.Report(os.Stdout, *item, outPrefix)
		}

		if plain {
			return printHistory(store, limit)
		}

		m := app.NewModel(app.WithHistory(store))
		_, err = tea.NewProgram(&m, tea.WithAltScreen()).Run()
		return errors.Wrap(err, "run tui")
	},
}

func init() {
	historyCmd.Flags().Bool("plain", false, "print a table instead of opening the UI")
	historyCmd.Flags().Int("limit", 20, "runs to print with --plain, 0 for all")
	historyCmd.Flags().String("export", "", "export the run with this id")
	historyCmd.Flags().StringP("out", "o", "", "report prefix for --export")
	historyCmd.Flags().String("history-path", "runs.db", "history store file")
}

func printHistory(store *storage.RunStore, limit int) error {
	items, err := store.List(limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tTARGET\tWORKERS\tREQS\tOK\tFAIL\tP99 MS")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%.2f\n",
			item.ID,
			item.Timestamp.Format(time.DateTime),
			item.Config.Target,
			item.Summary.Workers,
			item.Summary.TotalRequests,
			item.Summary.Success,
			item.Summary.Fail,
			item.Summary.P99LatencyMs,
		)
	}
	return w.Flush()
}
