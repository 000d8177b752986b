package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"apiscope/internal/banner"
	"apiscope/internal/config"
	"apiscope/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "apiscope",
	Short: "apiscope - REST vs GraphQL comparison bench",
	Long: `
apiscope serves the same dataset over REST and GraphQL, drives synthetic load
against both, and records latency and resource usage side by side.

Typical session:
  apiscope rest &            # REST adapter on :5001
  apiscope graphql &         # GraphQL adapter on :5002
  apiscope load --threads 5  # synthetic traffic
  apiscope observe           # append a sample to report.json
  apiscope dashboard         # browse the samples on :8080`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	// Custom Help with Banner
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		fmt.Println(banner.GetString())
		cmd.Usage()
	})

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.apiscope.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")
	bindFlags(rootCmd.PersistentFlags(), map[string]string{
		"log.level":  "log-level",
		"log.format": "log-format",
	})

	rootCmd.AddCommand(restCmd, graphqlCmd, dashboardCmd, loadCmd, observeCmd, historyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
			viper.SetConfigType("yaml")
			viper.SetConfigName(".apiscope")
		}
	}
	config.BindEnv(viper.GetViper())
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config:", err)
			os.Exit(1)
		}
	}
}

// bindFlags maps config keys to flag names so a set flag overrides the file
// and the environment.
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := viper.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// bindOnRun binds command flags when that command runs. Several commands share
// flag names, so binding at init would let the last one win.
func bindOnRun(keys map[string]string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		for key, name := range keys {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return errors.Wrapf(err, "bind --%s", name)
			}
		}
		return nil
	}
}

// setup resolves configuration and builds the logger for a command.
func setup() (config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return cfg, nil, errors.Wrap(err, "load config")
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
