package app

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/errors"

	"apiscope/internal/runner"
	"apiscope/internal/storage"
)

// ExportRun writes item to <prefix>.json and its per-protocol figures to
// <prefix>.csv.
func ExportRun(item storage.HistoryItem, prefix string) error {
	if err := ExportJSON(item, prefix+".json"); err != nil {
		return err
	}
	return ExportCSV(item, prefix+".csv")
}

// ExportCSV writes one row per protocol of the run.
func ExportCSV(item storage.HistoryItem, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer f.Close()

	w := csv.NewWriter(f)

	header := []string{
		"runId", "timeStamp", "protocol", "workers", "requestsPerWorker",
		"requests", "success", "fail", "bytes", "p50Ms", "p99Ms", "maxMs",
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, p := range []runner.Protocol{runner.ProtocolREST, runner.ProtocolGraphQL} {
		ps, ok := item.Summary.Protocols[p]
		if !ok {
			continue
		}
		record := []string{
			item.ID,
			strconv.FormatInt(item.Timestamp.UnixMilli(), 10),
			string(p),
			strconv.Itoa(item.Config.Concurrency),
			strconv.Itoa(item.Config.RequestsPerWorker),
			strconv.FormatUint(ps.Requests, 10),
			strconv.FormatUint(ps.Success, 10),
			strconv.FormatUint(ps.Fail, 10),
			strconv.FormatUint(ps.Bytes, 10),
			fmt.Sprintf("%.3f", ps.P50Ms),
			fmt.Sprintf("%.3f", ps.P99Ms),
			fmt.Sprintf("%.0f", ps.MaxMs),
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return errors.Wrapf(w.Error(), "write %s", filename)
}

func ExportJSON(item storage.HistoryItem, filename string) error {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return err
	}
	return errors.Wrapf(os.WriteFile(filename, data, 0o644), "write %s", filename)
}
