package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/xmou/bento/internal/adapter"
	"github.com/xmou/bento/internal/classify"
	"github.com/xmou/bento/internal/common"
	"github.com/xmou/bento/internal/config"
	"github.com/xmou/bento/internal/history"
	"github.com/xmou/bento/internal/ledger"
	"github.com/xmou/bento/internal/merge"
	"github.com/xmou/bento/internal/model"
	"github.com/xmou/bento/internal/pipeline"
	"github.com/xmou/bento/internal/synth"
)

func extractCmd() *cobra.Command {
	var (
		output string
		learn  bool
	)

	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Convert statement files into ledger transactions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return common.NewUserError("configuration is invalid", err)
			}

			classifier, store, err := buildClassifier(cmd, cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer func() { _ = store.Close() }()
			}

			out := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = f.Close() }()
				out = f
			}

			var writer pipeline.Writer = ledger.NewTextWriter(out)
			var collector *sampleCollector
			if learn {
				if store == nil {
					return common.NewUserError("--learn needs classifier.history_path configured", common.ErrMissingConfig)
				}
				collector = &sampleCollector{next: writer, sources: sourceAccounts(cfg)}
				writer = collector
			}

			runner := pipeline.NewRunner(buildAdapters(cfg), buildPipelines(cfg, classifier), writer, cfg.Workers, slog.Default())
			result, err := runner.ProcessFiles(cmd.Context(), args)
			if err != nil {
				return err
			}

			if collector != nil {
				if err := store.Add(cmd.Context(), collector.samples); err != nil {
					return fmt.Errorf("failed to record classifications: %w", err)
				}
				slog.Info("recorded confirmed classifications", "count", len(collector.samples))
			}

			fmt.Fprintln(cmd.ErrOrStderr(), result.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write ledger output to file instead of stdout")
	cmd.Flags().BoolVar(&learn, "learn", false, "record confidently classified transactions for classifier training")
	return cmd
}

// buildClassifier assembles the rules-first classification chain. The
// scored fallback only joins when a history database is configured and
// holds enough samples to train.
func buildClassifier(cmd *cobra.Command, cfg *config.Config) (classify.Classifier, *history.Store, error) {
	classifiers := make([]classify.Classifier, 0, 2)

	if cfg.Classifier.RulesPath != "" {
		matcher, err := loadMatcher(cfg.Classifier.RulesPath)
		if err != nil {
			return nil, nil, err
		}
		classifiers = append(classifiers, matcher)
	}

	var store *history.Store
	if cfg.Classifier.HistoryPath != "" {
		var err error
		store, err = history.Open(cfg.Classifier.HistoryPath)
		if err != nil {
			return nil, nil, common.NewUserError("failed to open history database", err)
		}

		samples, err := store.Samples(cmd.Context())
		if err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		bayes, err := classify.TrainBayes(samples)
		switch {
		case err == nil:
			classifiers = append(classifiers, classify.Threshold(bayes, cfg.Classifier.ConfidenceThreshold, slog.Default()))
			slog.Info("trained scored classifier", "samples", len(samples), "accounts", len(bayes.Classes()))
		case errors.Is(err, classify.ErrTooFewClasses):
			slog.Info("not enough history to train scored classifier", "samples", len(samples))
		default:
			_ = store.Close()
			return nil, nil, err
		}
	}

	if len(classifiers) == 0 {
		return classify.None(), store, nil
	}
	return classify.Chain(classifiers...), store, nil
}

func buildPipelines(cfg *config.Config, classifier classify.Classifier) map[string]*pipeline.Pipeline {
	pipelines := make(map[string]*pipeline.Pipeline, len(cfg.Sources))
	for name, src := range cfg.Sources {
		policy := synth.AccountPolicy{
			SourceAccount:   src.Account,
			SubAccounts:     src.SubAccounts,
			ExplicitSource:  src.ExplicitSource,
			DefaultExpense:  src.ExpenseAccount,
			DefaultIncome:   src.IncomeAccount,
			DefaultAsset:    src.AssetAccount,
			FeeAccount:      src.FeeAccount,
			Currency:        src.Currency,
			WithdrawalTypes: src.WithdrawalTypes,
		}
		mergePolicy := merge.Policy{
			IgnoreApps:       src.IgnoreApps,
			AppMarkers:       src.AppMarkers,
			RepaymentMarkers: src.RepaymentTypes,
			DuplicateMetaKey: cfg.Ledger.DuplicateMetaKey,
		}
		pipelines[name] = pipeline.New(classifier, synth.New(policy, slog.Default()), mergePolicy, slog.Default())
	}
	return pipelines
}

func buildAdapters(cfg *config.Config) []pipeline.Adapter {
	adapters := make([]pipeline.Adapter, 0, len(cfg.Sources))
	for name := range cfg.Sources {
		adapters = append(adapters, adapter.NewCSVAdapter(name, slog.Default()))
	}
	return adapters
}

// sampleCollector tees confidently classified two-posting transactions into
// training samples on their way to the real writer. The counter account is
// the posting that is not under any configured source account, whichever
// position it holds.
type sampleCollector struct {
	next    pipeline.Writer
	sources []string
	mu      sync.Mutex
	samples []classify.TrainingSample
}

func (c *sampleCollector) Write(stmt *model.Statement, txns []model.Transaction) error {
	c.mu.Lock()
	for _, txn := range txns {
		if txn.Flag != model.FlagConfident || len(txn.Postings) != 2 {
			continue
		}
		account, ok := c.counterAccount(txn)
		if !ok {
			continue
		}
		c.samples = append(c.samples, classify.TrainingSample{
			Payee:     txn.Payee,
			Narration: txn.Narration,
			Account:   account,
		})
	}
	c.mu.Unlock()
	return c.next.Write(stmt, txns)
}

func (c *sampleCollector) counterAccount(txn model.Transaction) (string, bool) {
	counter := ""
	for _, p := range txn.Postings {
		if c.isSourceAccount(p.Account) {
			continue
		}
		if counter != "" {
			return "", false
		}
		counter = p.Account
	}
	return counter, counter != ""
}

func (c *sampleCollector) isSourceAccount(account string) bool {
	for _, base := range c.sources {
		if account == base || strings.HasPrefix(account, base+":") {
			return true
		}
	}
	return false
}

// sourceAccounts lists every account a source leg can post to: the base
// account of each source plus its payment-channel overrides.
func sourceAccounts(cfg *config.Config) []string {
	var accounts []string
	for _, src := range cfg.Sources {
		accounts = append(accounts, src.Account)
		for _, account := range src.SubAccounts {
			accounts = append(accounts, account)
		}
	}
	return accounts
}
