package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-cleaner/internal/config"
	"github.com/qepting91/reddit-cleaner/internal/domain"
	"github.com/qepting91/reddit-cleaner/internal/policy"
)

const menu = "Choose an action (1 - Delete old items, 2 - Remove items with negative karma, 3 - Remove stale low-engagement items, 4 - Quit): "

var interactiveFlags profileFlags

var interactiveCmd = &cobra.Command{
	Use:     "interactive",
	Aliases: []string{"menu"},
	Short:   "Pick policies one at a time from a menu",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		interactiveFlags.apply(cfg)

		in := bufio.NewReader(cmd.InOrStdin())
		out := cmd.OutOrStdout()
		if !interactiveFlags.dryRun {
			ok, err := confirm(in, out)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Script aborted.")
				return nil
			}
		}

		a, err := newApp(cmd.Context(), cfg, out, interactiveFlags.dryRun, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		return menuLoop(cmd.Context(), a, in, out)
	},
}

// menuLoop runs the chosen policy until the user quits or input ends.
func menuLoop(ctx context.Context, a *app, in *bufio.Reader, out io.Writer) error {
	for {
		choice, err := prompt(in, out, menu)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		var p policy.Policy
		switch choice {
		case "1":
			days, err := askDays(in, out)
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			p = policy.AgeThreshold{MaxAgeDays: days}
		case "2":
			p = policy.NegativeScore{}
		case "3":
			p = policy.StaleLowEngagement{}
		case "4", "q", "quit":
			return nil
		default:
			fmt.Fprintln(out, "Invalid choice. Please select a valid option.")
			continue
		}

		plan, err := a.planFor([]policy.Policy{p})
		if err != nil {
			return err
		}
		if _, err := a.runPlan(ctx, plan); err != nil {
			if errors.Is(err, domain.ErrAuthentication) || ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

// askDays re-prompts until a positive day count is entered.
func askDays(in *bufio.Reader, out io.Writer) (int, error) {
	for {
		answer, err := prompt(in, out, "Enter how old (in days) the items should be: ")
		if err != nil {
			return 0, err
		}
		days, err := policy.ParseMaxAgeDays(answer)
		var malformed *policy.MalformedInputError
		if errors.As(err, &malformed) {
			fmt.Fprintln(out, "Error: Please enter a positive number.")
			continue
		}
		return days, err
	}
}

func init() {
	rootCmd.AddCommand(interactiveCmd)

	interactiveCmd.Flags().StringVarP(&interactiveFlags.kind, "kind", "k", "", "content kind (comments, posts, all)")
	interactiveCmd.Flags().BoolVar(&interactiveFlags.dryRun, "dry-run", false, "count matches without redacting or deleting")
}
