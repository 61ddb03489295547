package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/xmou/bento/internal/classify"
	"github.com/xmou/bento/internal/common"
	"github.com/xmou/bento/internal/config"
	"github.com/xmou/bento/internal/history"
)

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Train the scored classifier from recorded history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return common.NewUserError("configuration is invalid", err)
			}
			if cfg.Classifier.HistoryPath == "" {
				return common.NewUserError("classifier.history_path is not configured", common.ErrMissingConfig)
			}

			store, err := history.Open(cfg.Classifier.HistoryPath)
			if err != nil {
				return common.NewUserError("failed to open history database", err)
			}
			defer func() { _ = store.Close() }()

			samples, err := store.Samples(cmd.Context())
			if err != nil {
				return err
			}

			bayes, err := classify.TrainBayes(samples)
			if errors.Is(err, classify.ErrTooFewClasses) {
				return common.NewUserError("not enough history to train: need samples for at least 2 accounts", err)
			}
			if err != nil {
				return err
			}

			cmd.Printf("trained on %d samples across %d accounts\n", len(samples), len(bayes.Classes()))
			for _, class := range bayes.Classes() {
				cmd.Printf("  %s\n", class)
			}
			return nil
		},
	}
}
