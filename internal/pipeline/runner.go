package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner fans statement files out across workers. Files are mutually
// independent; the only shared state is the read-only classifier and rule
// set inside each source's pipeline.
type Runner struct {
	adapters  []Adapter
	pipelines map[string]*Pipeline
	writer    Writer
	logger    *slog.Logger
	workers   int
}

// NewRunner builds a runner over per-source pipelines keyed by adapter
// name. workers caps concurrent files; values below 1 mean sequential.
func NewRunner(adapters []Adapter, pipelines map[string]*Pipeline, writer Writer, workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		adapters:  adapters,
		pipelines: pipelines,
		writer:    writer,
		logger:    logger,
		workers:   workers,
	}
}

// Result summarizes one multi-file run.
type Result struct {
	Processed     int
	NotApplicable int
	Failed        int
	Transactions  int
}

// ProcessFiles runs every file through its identifying adapter's pipeline.
// One file's failure never aborts the others; a file no adapter recognizes
// counts as not-applicable rather than an error.
func (r *Runner) ProcessFiles(ctx context.Context, paths []string) (Result, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	results := make([]fileOutcome, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			results[i] = r.processFile(path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	var total Result
	for _, outcome := range results {
		switch outcome.status {
		case statusProcessed:
			total.Processed++
			total.Transactions += outcome.transactions
		case statusNotApplicable:
			total.NotApplicable++
		case statusFailed:
			total.Failed++
		}
	}
	return total, nil
}

type fileStatus int

const (
	statusNotApplicable fileStatus = iota
	statusProcessed
	statusFailed
)

type fileOutcome struct {
	status       fileStatus
	transactions int
}

func (r *Runner) processFile(path string) fileOutcome {
	adapter := r.identify(path)
	if adapter == nil {
		r.logger.Info("file not applicable to this pipeline", "path", path)
		return fileOutcome{status: statusNotApplicable}
	}

	pipeline, ok := r.pipelines[adapter.Name()]
	if !ok {
		r.logger.Error("no pipeline configured for source", "source", adapter.Name(), "path", path)
		return fileOutcome{status: statusFailed}
	}

	stmt, err := adapter.Extract(path)
	if err != nil {
		r.logger.Error("failed to extract statement", "path", path, "error", err)
		return fileOutcome{status: statusFailed}
	}

	txns := pipeline.Run(stmt)
	if err := r.writer.Write(stmt, txns); err != nil {
		r.logger.Error("failed to write transactions", "path", path, "error", err)
		return fileOutcome{status: statusFailed}
	}

	return fileOutcome{status: statusProcessed, transactions: len(txns)}
}

func (r *Runner) identify(path string) Adapter {
	for _, a := range r.adapters {
		if a.Identify(path) {
			return a
		}
	}
	return nil
}

// String renders a run summary for operator output.
func (res Result) String() string {
	return fmt.Sprintf("%d processed (%d transactions), %d not applicable, %d failed",
		res.Processed, res.Transactions, res.NotApplicable, res.Failed)
}
