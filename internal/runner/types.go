package runner

import (
	"fmt"
	"time"
)

type Target string

const (
	TargetREST    Target = "rest"
	TargetGraphQL Target = "graphql"
	TargetBoth    Target = "both"
)

type Protocol string

const (
	ProtocolREST    Protocol = "rest"
	ProtocolGraphQL Protocol = "graphql"
)

type Config struct {
	Target            Target  `json:"target"`
	Concurrency       int     `json:"concurrency"`
	RequestsPerWorker int     `json:"requests_per_worker"`
	RESTURL           string  `json:"rest_url"`
	GraphQLURL        string  `json:"graphql_url"`
	Query             string  `json:"query,omitempty"`
	TimeoutSec        int     `json:"timeout_sec"`
	RPS               float64 `json:"rps,omitempty"` // shared cap across workers, 0 is unlimited
}

func ParseTarget(s string) (Target, error) {
	switch t := Target(s); t {
	case TargetREST, TargetGraphQL, TargetBoth:
		return t, nil
	}
	return "", fmt.Errorf("target must be one of rest, graphql, both; got %q", s)
}

func (c Config) Validate() error {
	if _, err := ParseTarget(string(c.Target)); err != nil {
		return err
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RequestsPerWorker < 1 {
		return fmt.Errorf("requests per worker must be at least 1, got %d", c.RequestsPerWorker)
	}
	if c.RPS < 0 {
		return fmt.Errorf("rps must not be negative, got %v", c.RPS)
	}
	for _, p := range c.Protocols() {
		if c.URL(p) == "" {
			return fmt.Errorf("%s url is required for target %s", p, c.Target)
		}
	}
	return nil
}

// Protocols lists the adapters this run targets.
func (c Config) Protocols() []Protocol {
	switch c.Target {
	case TargetREST:
		return []Protocol{ProtocolREST}
	case TargetGraphQL:
		return []Protocol{ProtocolGraphQL}
	case TargetBoth:
		return []Protocol{ProtocolREST, ProtocolGraphQL}
	}
	return nil
}

func (c Config) URL(p Protocol) string {
	if p == ProtocolGraphQL {
		return c.GraphQLURL
	}
	return c.RESTURL
}

// Workers is the number of goroutines a run spawns: one per protocol per
// concurrency unit.
func (c Config) Workers() int {
	return c.Concurrency * len(c.Protocols())
}

func (c Config) TotalRequests() int {
	return c.Workers() * c.RequestsPerWorker
}

type ExperimentResult struct {
	TimeStamp   time.Time
	Protocol    Protocol
	Latency     time.Duration // Total Time
	ServiceTime time.Duration // Network/Server Time
	QueueWait   time.Duration // Rate limiter wait
	Status      int
	Success     bool
	Bytes       int64
	RequestID   string
	Err         error
}

type ProtocolSummary struct {
	Requests uint64  `json:"requests"`
	Success  uint64  `json:"success"`
	Fail     uint64  `json:"fail"`
	Bytes    uint64  `json:"bytes"`
	P50Ms    float64 `json:"p50_ms"`
	P99Ms    float64 `json:"p99_ms"`
	MaxMs    float64 `json:"max_ms"`
}

// Summary describes a finished run.
type Summary struct {
	Workers  int                          `json:"workers"`
	Requests uint64                       `json:"requests"`
	Success  uint64                       `json:"success"`
	Fail     uint64                       `json:"fail"`
	Elapsed  time.Duration                `json:"elapsed"`
	Protocol map[Protocol]ProtocolSummary `json:"protocol"`
}
