package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/thruflo/ralph/internal/config"
	"github.com/thruflo/ralph/internal/tasklist"
)

var validateDir string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the task document",
	Long: `Parses the task document and reports its shape: task counts by state and
any warnings, such as tasks without an acceptance criterion. Fails when the
document holds no pending tasks.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateDir, "dir", "d", ".", "workspace directory")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	workspace, err := filepath.Abs(validateDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}

	store := tasklist.NewStore(workspace, cfg.TaskFile)
	if !store.Exists() {
		return fmt.Errorf("task document %s not found", cfg.TaskFile)
	}

	doc, err := store.Load()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d task(s)\n", cfg.TaskFile, len(doc.Tasks))
	fmt.Fprintf(out, "  pending: %d\n", doc.CountByState(tasklist.StatePending))
	fmt.Fprintf(out, "  done:    %d\n", doc.CountByState(tasklist.StateDone))
	fmt.Fprintf(out, "  blocked: %d\n", doc.CountByState(tasklist.StateBlocked))

	ok, warnings := store.Validate(doc)
	for _, w := range warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	if !ok {
		return fmt.Errorf("document has no pending tasks")
	}
	return nil
}
