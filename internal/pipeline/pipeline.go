// Package pipeline wires the per-file processing sequence: fold the
// statement's records through the merge state, classify each surviving
// record, synthesize a balanced transaction, and apply duplicate flagging.
package pipeline

import (
	"log/slog"

	"github.com/xmou/bento/internal/classify"
	"github.com/xmou/bento/internal/merge"
	"github.com/xmou/bento/internal/model"
	"github.com/xmou/bento/internal/synth"
)

// Adapter is a format adapter: the external collaborator that decodes one
// source's statement files into normalized records. Records must be in
// chronological ascending order.
type Adapter interface {
	// Name identifies the source the adapter handles, matching its
	// configuration section.
	Name() string
	// Identify reports whether the file at path is a statement this
	// adapter understands. False is "not applicable", never an error.
	Identify(path string) bool
	// Extract decodes the statement.
	Extract(path string) (*model.Statement, error)
}

// Writer is the ledger-writing collaborator that consumes the pipeline's
// output. Implementations must be safe for concurrent use: file workers
// call Write in parallel.
type Writer interface {
	Write(stmt *model.Statement, txns []model.Transaction) error
}

// Pipeline processes the statements of one source. The classifier and
// synthesizer are shared, read-only, and safe for concurrent use, so one
// Pipeline may serve parallel file workers.
type Pipeline struct {
	classifier  classify.Classifier
	synthesizer *synth.Synthesizer
	policy      merge.Policy
	logger      *slog.Logger
}

// New builds a pipeline. A nil classifier means no classification backend
// is configured; every transaction falls back to default accounts.
func New(classifier classify.Classifier, synthesizer *synth.Synthesizer, policy merge.Policy, logger *slog.Logger) *Pipeline {
	if classifier == nil {
		classifier = classify.None()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier:  classifier,
		synthesizer: synthesizer,
		policy:      policy,
		logger:      logger,
	}
}

// Run folds one statement's records, in row order, into the list of ledger
// transactions. A record that cannot be processed is logged and skipped;
// it never aborts the rest of the file.
func (p *Pipeline) Run(stmt *model.Statement) []model.Transaction {
	state := merge.NewState()

	// Leg merging is only sound for explicit-source policies; an implicit
	// source posting would absorb the appended leg instead of the counter
	// account.
	mergeLegs := p.synthesizer.MergesLegs()

	for i, record := range stmt.Records {
		key := model.NewMergeKey(record.Date(), record.SourceAccountKey, record.CounterpartyRaw)

		if existing, ok := state.Lookup(key); ok && mergeLegs {
			account := p.synthesizer.SourceAccount(record)
			if err := state.AppendLeg(existing, account, record); err != nil {
				p.logger.Warn("skipping record: cannot merge leg",
					"row", i, "payee", record.CounterpartyRaw, "error", err)
			}
			continue
		}

		result := p.classifier.Classify(record.CounterpartyRaw, record.DescriptionRaw)
		txn, err := p.synthesizer.Synthesize(record, result)
		if err != nil {
			p.logger.Warn("skipping record",
				"row", i, "payee", record.CounterpartyRaw, "error", err)
			continue
		}

		p.policy.Apply(txn)
		state.Insert(key, txn)
	}

	p.logger.Info("processed statement",
		"title", stmt.Title, "records", len(stmt.Records), "transactions", state.Len())
	return state.Transactions()
}
