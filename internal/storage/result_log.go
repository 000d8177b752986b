package storage

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ResultLog is an append-only JSON array on disk. Appends are serialized with
// an in-process mutex and an advisory lock file, and each rewrite replaces the
// file atomically, so concurrent readers always see a complete array.
type ResultLog struct {
	mu       sync.Mutex
	filePath string
	log      logrus.FieldLogger
}

func NewResultLog(path string, log logrus.FieldLogger) *ResultLog {
	return &ResultLog{filePath: path, log: log}
}

func (l *ResultLog) Path() string {
	return l.filePath
}

// Append adds v as the last entry. A missing, unreadable or non-array log is
// treated as empty and overwritten.
func (l *ResultLog) Append(v any) error {
	entry, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode entry")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if dir := filepath.Dir(l.filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "create log dir %s", dir)
		}
	}

	unlock, err := lockFile(l.filePath + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	entries := l.load()
	entries = append(entries, json.RawMessage(entry))

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode log")
	}
	return writeAtomic(l.filePath, data)
}

// Entries returns the raw entries in append order.
func (l *ResultLog) Entries() ([]json.RawMessage, error) {
	data, err := os.ReadFile(l.filePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", l.filePath)
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrapf(err, "decode %s", l.filePath)
	}
	return entries, nil
}

// Decode unmarshals the whole log into out, which should point to a slice.
func (l *ResultLog) Decode(out any) error {
	data, err := os.ReadFile(l.filePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", l.filePath)
	}
	return errors.Wrapf(json.Unmarshal(data, out), "decode %s", l.filePath)
}

func (l *ResultLog) load() []json.RawMessage {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			l.log.WithError(err).Warn("result log unreadable, starting a new one")
		}
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(data, &entries); err != nil {
		l.log.WithError(err).WithField("path", l.filePath).Warn("result log corrupt, starting a new one")
		return nil
	}
	return entries
}

// writeAtomic writes data to a temp file next to path and renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return errors.Wrap(err, "sync temp file")
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
