package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/ralph/internal/config"
	"github.com/thruflo/ralph/internal/ledger"
	"github.com/thruflo/ralph/internal/tasklist"
)

var (
	statusDir    string
	statusRecent int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show run status",
	Long: `Shows the most recent run, task progress, recent iteration verdicts and
the tasks currently carrying failure records.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusDir, "dir", "d", ".", "workspace directory")
	statusCmd.Flags().IntVarP(&statusRecent, "recent", "n", 10, "number of recent iterations to show")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	workspace, err := filepath.Abs(statusDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	snapshot, err := config.ReadSnapshot(workspace, cfg.StateDir)
	if err != nil {
		return err
	}
	if snapshot == nil {
		fmt.Fprintln(out, "No run recorded.")
	} else {
		fmt.Fprintf(out, "run %s started %s\n",
			snapshot.RunID, snapshot.StartedAt.Local().Format(time.RFC822))
	}

	store := tasklist.NewStore(workspace, cfg.TaskFile)
	if store.Exists() {
		doc, err := store.Load()
		if err != nil {
			return err
		}
		done, total := doc.Progress()
		fmt.Fprintf(out, "tasks: %d/%d done, %d pending, %d blocked\n",
			done, total,
			doc.CountByState(tasklist.StatePending),
			doc.CountByState(tasklist.StateBlocked))
	} else {
		fmt.Fprintf(out, "task document %s not found\n", cfg.TaskFile)
	}

	stateDir := filepath.Join(workspace, cfg.StateDir)

	iterations := ledger.NewIterationLog(filepath.Join(stateDir, "iterations.jsonl"), 0)
	recent, err := iterations.Recent(statusRecent)
	if err != nil {
		return err
	}
	if len(recent) > 0 {
		fmt.Fprintln(out, "recent iterations:")
		for _, rec := range recent {
			line := fmt.Sprintf("  #%d %s", rec.Iteration, rec.Verdict)
			if rec.Task != "" {
				line += "  " + rec.Task
			}
			line += fmt.Sprintf("  (%s)", rec.Duration.Round(time.Second))
			if rec.Notes != "" {
				line += "  " + rec.Notes
			}
			fmt.Fprintln(out, line)
		}
	}

	failures := ledger.NewFailureLedger(filepath.Join(stateDir, "failures.jsonl"))
	summary, err := failures.Summary()
	if err != nil {
		return err
	}
	if len(summary) > 0 {
		fmt.Fprintln(out, "failed tasks:")
		for task, rec := range summary {
			fmt.Fprintf(out, "  %s: %s (%s, iteration %d)\n", task, rec.Reason, rec.Category, rec.Iteration)
		}
	}

	return nil
}
