package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qepting91/reddit-cleaner/internal/config"
)

var runFlags struct {
	profileFlags
	yes bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the retention profile once",
	Long: `Run every configured policy over every configured kind, in order.

Examples:
  # Remove comments with a score of zero or less
  cleaner run --policy negative

  # Remove everything older than a year, comments then posts
  cleaner run --policy age --days 365 --kind all

  # Preview the default profile without touching anything
  cleaner run --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		runFlags.apply(cfg)

		out := cmd.OutOrStdout()
		if !runFlags.yes && !runFlags.dryRun {
			ok, err := confirm(bufio.NewReader(cmd.InOrStdin()), out)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Script aborted.")
				return nil
			}
		}

		a, err := newApp(cmd.Context(), cfg, out, runFlags.dryRun, nil)
		if err != nil {
			return err
		}
		defer a.Close()

		plan, err := a.plan()
		if err != nil {
			return err
		}
		_, err = a.runPlan(cmd.Context(), plan)
		return err
	},
}

// confirm asks before anything is mutated. Only yes or y proceed.
func confirm(in *bufio.Reader, out io.Writer) (bool, error) {
	answer, err := prompt(in, out, "Do you want to run the script? (yes/no): ")
	if err != nil && err != io.EOF {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y", nil
}

// prompt prints question and returns the trimmed answer line.
func prompt(in *bufio.Reader, out io.Writer, question string) (string, error) {
	fmt.Fprint(out, question)
	line, err := in.ReadString('\n')
	if err == io.EOF && line != "" {
		err = nil
	}
	return strings.TrimSpace(line), err
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runFlags.policies, "policy", "p", nil, "policy to run, repeatable, in order (age, negative, stale)")
	runCmd.Flags().IntVarP(&runFlags.days, "days", "d", 0, "maximum age in days for the age policy")
	runCmd.Flags().StringVarP(&runFlags.kind, "kind", "k", "", "content kind (comments, posts, all)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "count matches without redacting or deleting")
	runCmd.Flags().BoolVarP(&runFlags.yes, "yes", "y", false, "skip the confirmation prompt")
}
