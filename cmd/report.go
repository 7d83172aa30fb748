package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"agentq/internal/resultlog"
)

var reportCmd = &cobra.Command{
	Use:   "report <run-dir>",
	Short: "Rebuild results.csv and summary.json from a stored result log",
	Long: `Rebuild the report files of a finished run. With --list the argument is a
results directory and every run found in it is listed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if list, _ := cmd.Flags().GetBool("list"); list {
			runs, err := resultlog.ListRuns(args[0])
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintf(out, "No runs found in %s\n", args[0])
				return nil
			}
			for _, r := range runs {
				s := r.Summary
				fmt.Fprintf(out, "%s  %s  reqs=%d errs=%d tp=%.2f/s p99=%.1fms\n",
					s.Start.Local().Format("2006-01-02 15:04:05"), s.RunID, s.Count, s.Errors, s.Throughput, s.Latency.P99)
			}
			return nil
		}

		if err := resultlog.Regenerate(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "✅ Wrote %s and %s\n",
			filepath.Join(args[0], resultlog.CSVFile),
			filepath.Join(args[0], resultlog.SummaryFile))
		return nil
	},
}

func init() {
	reportCmd.Flags().BoolP("list", "l", false, "List the runs in a results directory")
}
