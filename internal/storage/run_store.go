package storage

import (
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"apiscope/internal/runner"
)

const (
	BucketRuns  = "runs"
	BucketIndex = "runs_by_id"
)

var ErrNotFound = errors.New("run not found")

// HistoryItem is one finished load run.
type HistoryItem struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Config    runner.Config `json:"config"`
	Summary   RunSummary    `json:"summary"`
}

type RunSummary struct {
	Workers       int     `json:"workers"`
	TotalRequests uint64  `json:"total_requests"`
	Success       uint64  `json:"success"`
	Fail          uint64  `json:"fail"`
	ElapsedMs     float64 `json:"elapsed_ms"`
	P50LatencyMs  float64 `json:"p50_latency_ms"`
	P99LatencyMs  float64 `json:"p99_latency_ms"`

	Protocols map[runner.Protocol]runner.ProtocolSummary `json:"protocols,omitempty"`
}

// NewHistoryItem builds a history entry from a finished run. The reported
// latencies are the worst protocol's, since a run mixing both adapters is
// only as fast as its slower side.
func NewHistoryItem(cfg runner.Config, sum runner.Summary, at time.Time) HistoryItem {
	rs := RunSummary{
		Workers:       sum.Workers,
		TotalRequests: sum.Requests,
		Success:       sum.Success,
		Fail:          sum.Fail,
		ElapsedMs:     float64(sum.Elapsed) / float64(time.Millisecond),
		Protocols:     sum.Protocol,
	}
	for _, ps := range sum.Protocol {
		if ps.P50Ms > rs.P50LatencyMs {
			rs.P50LatencyMs = ps.P50Ms
		}
		if ps.P99Ms > rs.P99LatencyMs {
			rs.P99LatencyMs = ps.P99Ms
		}
	}
	return HistoryItem{
		ID:        uuid.NewString(),
		Timestamp: at,
		Config:    cfg,
		Summary:   rs,
	}
}

// RunStore keeps load run history in a bbolt file. Runs are keyed by an
// insertion sequence so listing newest first is a reverse cursor walk.
type RunStore struct {
	db *bbolt.DB
}

func NewRunStore(path string) (*RunStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create history dir %s", dir)
		}
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open history %s", path)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRuns)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(BucketIndex))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init history buckets")
	}

	return &RunStore{db: db}, nil
}

func (s *RunStore) Close() error {
	return s.db.Close()
}

func (s *RunStore) Save(item HistoryItem) error {
	if item.ID == "" {
		return errors.New("history item has no id")
	}
	data, err := json.Marshal(item)
	if err != nil {
		return errors.Wrap(err, "encode history item")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		runs := tx.Bucket([]byte(BucketRuns))
		index := tx.Bucket([]byte(BucketIndex))

		key := index.Get([]byte(item.ID))
		if key == nil {
			seq, err := runs.NextSequence()
			if err != nil {
				return err
			}
			key = make([]byte, 8)
			binary.BigEndian.PutUint64(key, seq)
			if err := index.Put([]byte(item.ID), key); err != nil {
				return err
			}
		}
		return runs.Put(key, data)
	})
}

// List returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *RunStore) List(limit int) ([]HistoryItem, error) {
	var items []HistoryItem

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(BucketRuns)).Cursor()

		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var item HistoryItem
			if err := json.Unmarshal(v, &item); err != nil {
				continue
			}
			items = append(items, item)
			if limit > 0 && len(items) == limit {
				break
			}
		}
		return nil
	})
	return items, errors.Wrap(err, "list history")
}

func (s *RunStore) Get(id string) (*HistoryItem, error) {
	var item HistoryItem
	err := s.db.View(func(tx *bbolt.Tx) error {
		key := tx.Bucket([]byte(BucketIndex)).Get([]byte(id))
		if key == nil {
			return ErrNotFound
		}
		v := tx.Bucket([]byte(BucketRuns)).Get(key)
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &item)
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}
