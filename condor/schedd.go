package condor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/logging"
)

// jobAttributes is the ClassAd projection requested from the scheduler.
// Keeping the projection explicit bounds row size and keeps the dataset
// schema stable for downstream tools.
var jobAttributes = []string{
	"ClusterId", "ProcId", "JobStatus", "Owner", "Cmd", "Arguments",
	"QDate", "JobStartDate", "CompletionDate",
	"RemoteUserCpu", "RemoteSysCpu", "ImageSize", "MemoryUsage", "DiskUsage",
	"RequestCpus", "RequestMemory", "RequestDisk", "RequestGpus",
	"NumJobStarts", "JobPrio",
	"ExitStatus", "ExitCode", "ExitBySignal",
	"RemoteHost", "UserLog",
}

// Runner executes a scheduler command and returns its stdout. Injectable
// for tests.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Options configures a Schedd adapter.
type Options struct {
	// QueueBin and HistoryBin name the scheduler binaries. Defaults
	// condor_q / condor_history.
	QueueBin   string
	HistoryBin string
	// HistoryMatch caps how many historical jobs one fetch pulls in.
	// Default 5000; unbounded history reads routinely time out on busy
	// pools. Zero or negative disables the history fetch entirely.
	HistoryMatch int
	// IncludeHistory controls whether completed jobs are merged into the
	// snapshot. Default true.
	IncludeHistory bool
	// Runner overrides command execution (tests).
	Runner Runner
	// Logger receives per-source fetch outcomes.
	Logger logging.Logger
}

// Schedd fetches the current job dataset from an HTCondor scheduler. Its
// Fetch method satisfies dataset.FetchFunc: idempotent, safely retryable,
// honoring context cancellation through exec.CommandContext.
type Schedd struct {
	queueBin       string
	historyBin     string
	historyMatch   int
	includeHistory bool
	run            Runner
	logger         logging.Logger
}

// NewSchedd constructs a Schedd adapter with optional overrides.
func NewSchedd(optFns ...func(o *Options)) *Schedd {
	opts := Options{
		QueueBin:       "condor_q",
		HistoryBin:     "condor_history",
		HistoryMatch:   5000,
		IncludeHistory: true,
		Runner:         execRunner,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Runner == nil {
		opts.Runner = execRunner
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Schedd{
		queueBin:       opts.QueueBin,
		historyBin:     opts.HistoryBin,
		historyMatch:   opts.HistoryMatch,
		includeHistory: opts.IncludeHistory && opts.HistoryMatch > 0,
		run:            opts.Runner,
		logger:         opts.Logger,
	}
}

// Fetch returns the merged queue + history rows. A queue failure fails the
// fetch; a history failure degrades to queue-only rows with a logged
// warning, since the live queue is the part tools cannot do without.
func (s *Schedd) Fetch(ctx context.Context) ([]core.Row, error) {
	retrieved := time.Now().UTC().Format(time.RFC3339)

	queueRows, err := s.fetchSource(ctx, s.queueBin, s.queueArgs(), "current_queue", retrieved)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("condor.queue.fetched", "rows", len(queueRows))

	if !s.includeHistory {
		return queueRows, nil
	}

	historyRows, err := s.fetchSource(ctx, s.historyBin, s.historyArgs(), "history", retrieved)
	if err != nil {
		s.logger.Warn("condor.history.fetch_failed, serving queue only", "error", err)
		return queueRows, nil
	}
	s.logger.Debug("condor.history.fetched", "rows", len(historyRows))

	return append(queueRows, historyRows...), nil
}

func (s *Schedd) queueArgs() []string {
	return []string{"-json", "-attributes", strings.Join(jobAttributes, ",")}
}

func (s *Schedd) historyArgs() []string {
	return []string{
		"-json",
		"-match", fmt.Sprint(s.historyMatch),
		"-attributes", strings.Join(jobAttributes, ","),
	}
}

func (s *Schedd) fetchSource(ctx context.Context, bin string, args []string, source, retrieved string) ([]core.Row, error) {
	out, err := s.run(ctx, bin, args...)
	if err != nil {
		return nil, err
	}
	rows, err := parseClassAds(out)
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", bin, err)
	}
	for _, row := range rows {
		row["data_source"] = source
		row["retrieved_at"] = retrieved
	}
	return rows, nil
}

// parseClassAds decodes the -json output of condor_q/condor_history: a JSON
// array of ClassAd objects, or nothing at all when the queue is empty.
// Attribute names are lowercased so the dataset schema is case-stable.
func parseClassAds(out []byte) ([]core.Row, error) {
	trimmed := strings.TrimSpace(string(out))
	if trimmed == "" {
		return []core.Row{}, nil
	}

	var ads []map[string]any
	if err := json.Unmarshal([]byte(trimmed), &ads); err != nil {
		return nil, fmt.Errorf("decode classads: %w", err)
	}

	rows := make([]core.Row, 0, len(ads))
	for _, ad := range ads {
		row := make(core.Row, len(ad)+2)
		for k, v := range ad {
			row[strings.ToLower(k)] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}
