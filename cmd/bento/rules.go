package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xmou/bento/internal/common"
	"github.com/xmou/bento/internal/config"
	"github.com/xmou/bento/internal/rule"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Work with the classification rule set",
	}
	cmd.AddCommand(rulesCheckCmd())
	cmd.AddCommand(rulesTestCmd())
	return cmd
}

func rulesCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [rules.yaml]",
		Short: "Validate a rule file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rulesPath(args)
			if err != nil {
				return err
			}

			matcher, err := loadMatcher(path)
			if err != nil {
				return err
			}

			cmd.Printf("%s: %d rules OK\n", path, len(matcher.Rules()))
			return nil
		},
	}
}

func rulesTestCmd() *cobra.Command {
	var narration string

	cmd := &cobra.Command{
		Use:   "test <payee>",
		Short: "Show which rule a payee/narration pair matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := rulesPath(nil)
			if err != nil {
				return err
			}
			matcher, err := loadMatcher(path)
			if err != nil {
				return err
			}

			result := matcher.Classify(args[0], narration)
			if !result.Matched {
				cmd.Println("no rule matched")
				return nil
			}
			cmd.Printf("matched: %s\n", result.Account)
			return nil
		},
	}

	cmd.Flags().StringVar(&narration, "narration", "", "narration text to classify alongside the payee")
	return cmd
}

func rulesPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := config.Load()
	if err != nil {
		return "", err
	}
	if cfg.Classifier.RulesPath == "" {
		return "", common.NewUserError("no rule file given and classifier.rules_path not configured", common.ErrMissingConfig)
	}
	return cfg.Classifier.RulesPath, nil
}

func loadMatcher(path string) (*rule.Matcher, error) {
	matcher, err := rule.LoadMatcher(path)
	if err != nil {
		return nil, common.NewUserError(fmt.Sprintf("rule file %s is invalid", path), err)
	}
	return matcher, nil
}
