package loadest

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/prometheus/procfs"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSignature = "apiscope load"
	DefaultThreads   = 10
	threadsFlag      = "--threads"
)

// CmdlineLister returns the command lines of all running processes.
type CmdlineLister func() ([][]string, error)

// Cmdline finds load generator processes by a command-line signature and sums
// their --threads argument.
//
// A multi-word signature such as "apiscope load" matches when the program's
// base name equals the first word and the remaining words follow in order,
// so global flags may sit between them. A single-word signature matches as a
// substring anywhere in the command line. Shell wrappers (sh -c "...") are
// skipped; the command they run shows up as its own process.
type Cmdline struct {
	Signature      string
	DefaultThreads int

	list CmdlineLister
	log  logrus.FieldLogger
}

func NewCmdline(signature string, list CmdlineLister, log logrus.FieldLogger) *Cmdline {
	if signature == "" {
		signature = DefaultSignature
	}
	return &Cmdline{
		Signature:      signature,
		DefaultThreads: DefaultThreads,
		list:           list,
		log:            log,
	}
}

// ProcCmdlines lists command lines from procfs at mountPoint. Processes that
// exit while being read are skipped.
func ProcCmdlines(mountPoint string) CmdlineLister {
	return func() ([][]string, error) {
		if mountPoint == "" {
			mountPoint = procfs.DefaultMountPoint
		}
		fs, err := procfs.NewFS(mountPoint)
		if err != nil {
			return nil, errors.Wrap(err, "open procfs")
		}
		procs, err := fs.AllProcs()
		if err != nil {
			return nil, errors.Wrap(err, "list processes")
		}
		self := os.Getpid()
		out := make([][]string, 0, len(procs))
		for _, p := range procs {
			if p.PID == self {
				continue
			}
			args, err := p.CmdLine()
			if err != nil || len(args) == 0 {
				continue
			}
			out = append(out, args)
		}
		return out, nil
	}
}

func (c *Cmdline) Estimate(_ context.Context) int {
	cmdlines, err := c.list()
	if err != nil {
		c.log.WithError(err).Warn("load estimate unavailable")
		return 0
	}

	total := 0
	for _, args := range cmdlines {
		if len(args) == 0 || isShell(args[0]) || !c.matches(args) {
			continue
		}
		threads, err := c.threads(args)
		if err != nil {
			c.log.WithError(err).WithField("cmdline", strings.Join(args, " ")).Debug("skip load process")
			continue
		}
		total += threads
	}
	return total
}

func (c *Cmdline) matches(args []string) bool {
	sig := strings.Fields(c.Signature)
	if len(sig) < 2 {
		return strings.Contains(strings.Join(args, " "), c.Signature)
	}
	fields := strings.Fields(strings.Join(args, " "))
	if len(fields) == 0 || filepath.Base(fields[0]) != sig[0] {
		return false
	}
	next := 1
	for _, f := range fields[1:] {
		if f == sig[next] {
			next++
			if next == len(sig) {
				return true
			}
		}
	}
	return false
}

var shells = map[string]bool{"sh": true, "bash": true, "dash": true, "zsh": true, "ksh": true, "fish": true}

func isShell(arg0 string) bool {
	return shells[filepath.Base(arg0)]
}

// threads extracts the --threads value, accepting "--threads N" and
// "--threads=N". Arguments are re-split on whitespace since some launchers
// pass the whole command as one argument.
func (c *Cmdline) threads(args []string) (int, error) {
	fields := strings.Fields(strings.Join(args, " "))
	for i, f := range fields {
		var raw string
		switch {
		case f == threadsFlag:
			if i+1 >= len(fields) {
				return 0, errors.New("--threads without a value")
			}
			raw = fields[i+1]
		case strings.HasPrefix(f, threadsFlag+"="):
			raw = strings.TrimPrefix(f, threadsFlag+"=")
		default:
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, errors.Wrapf(err, "parse --threads %q", raw)
		}
		return n, nil
	}
	return c.DefaultThreads, nil
}
