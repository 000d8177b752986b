// Package config maps viper state onto typed settings for every command.
package config

import (
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const EnvPrefix = "APISCOPE"

const (
	EstimatorCmdline = "cmdline"
	EstimatorRedis   = "redis"
)

type Log struct {
	Level  string
	Format string
}

type Adapter struct {
	Addr    string
	PIDFile string
}

type Dashboard struct {
	Addr   string
	Report string
}

type Observer struct {
	RESTURL       string
	GraphQLURL    string
	Timeout       time.Duration
	ProbeWindow   time.Duration
	SystemWindow  time.Duration
	Report        string
	LoadEstimator string
	LoadSignature string
}

type Redis struct {
	Addr string
	Key  string
}

type Config struct {
	Log         Log
	DatasetSize int
	REST        Adapter
	GraphQL     Adapter
	Dashboard   Dashboard
	Observer    Observer
	Redis       Redis
	HistoryPath string
}

// SetDefaults registers every known key so env overrides resolve even when
// no config file is present.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("dataset.size", 10000)
	v.SetDefault("rest.addr", ":5001")
	v.SetDefault("rest.pid_file", "rest_api.pid")
	v.SetDefault("graphql.addr", ":5002")
	v.SetDefault("graphql.pid_file", "graphql_api.pid")
	v.SetDefault("dashboard.addr", ":8080")
	v.SetDefault("dashboard.report", "report.json")
	v.SetDefault("observer.rest_url", "http://localhost:5001/users")
	v.SetDefault("observer.graphql_url", "http://localhost:5002/graphql")
	v.SetDefault("observer.timeout", 10*time.Second)
	v.SetDefault("observer.probe_window", time.Second)
	v.SetDefault("observer.system_window", 500*time.Millisecond)
	v.SetDefault("observer.report", "report.json")
	v.SetDefault("observer.load_estimator", EstimatorCmdline)
	v.SetDefault("observer.load_signature", "apiscope load")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.key", "apiscope:load:workers")
	v.SetDefault("history.path", "runs.db")
}

// BindEnv makes APISCOPE_OBSERVER_TIMEOUT override observer.timeout and so on.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Log: Log{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		DatasetSize: v.GetInt("dataset.size"),
		REST: Adapter{
			Addr:    v.GetString("rest.addr"),
			PIDFile: v.GetString("rest.pid_file"),
		},
		GraphQL: Adapter{
			Addr:    v.GetString("graphql.addr"),
			PIDFile: v.GetString("graphql.pid_file"),
		},
		Dashboard: Dashboard{
			Addr:   v.GetString("dashboard.addr"),
			Report: v.GetString("dashboard.report"),
		},
		Observer: Observer{
			RESTURL:       v.GetString("observer.rest_url"),
			GraphQLURL:    v.GetString("observer.graphql_url"),
			Timeout:       v.GetDuration("observer.timeout"),
			ProbeWindow:   v.GetDuration("observer.probe_window"),
			SystemWindow:  v.GetDuration("observer.system_window"),
			Report:        v.GetString("observer.report"),
			LoadEstimator: v.GetString("observer.load_estimator"),
			LoadSignature: v.GetString("observer.load_signature"),
		},
		Redis: Redis{
			Addr: v.GetString("redis.addr"),
			Key:  v.GetString("redis.key"),
		},
		HistoryPath: v.GetString("history.path"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.DatasetSize < 0 {
		return errors.Errorf("dataset.size must not be negative, got %d", c.DatasetSize)
	}
	if c.Observer.Timeout <= 0 {
		return errors.Errorf("observer.timeout must be positive, got %s", c.Observer.Timeout)
	}
	switch c.Observer.LoadEstimator {
	case EstimatorCmdline:
	case EstimatorRedis:
		if c.Redis.Addr == "" {
			return errors.New("observer.load_estimator=redis needs redis.addr")
		}
	default:
		return errors.Errorf("unknown observer.load_estimator %q, want cmdline or redis", c.Observer.LoadEstimator)
	}
	return nil
}
