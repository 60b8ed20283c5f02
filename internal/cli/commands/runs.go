package commands

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/state"
	"github.com/spf13/cobra"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
	Prune int // Keep only this many most recent runs; 0 disables pruning
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent transform runs",
		Long: `List transform runs recorded in the run history database, newest first.

Every transform records the mapping, input and output files, row and column
counts and the number of rule type errors. Use --prune to drop old entries.`,
		Example: `  # Show the last 20 runs
  crossva runs

  # Keep only the 100 most recent runs
  crossva runs --prune 100

  # Output as JSON
  crossva runs -o json --limit 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "Maximum number of runs to list")
	cmd.Flags().IntVar(&opts.Prune, "prune", 0, "Delete all but the N most recent runs")

	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	store, err := openStore(cmdCtx.Cfg, cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if opts.Prune > 0 {
		n, err := store.DeleteOldRuns(ctx, opts.Prune)
		if err != nil {
			return fmt.Errorf("failed to prune runs: %w", err)
		}
		cmdCtx.Logger.Info("pruned run history", "deleted", n, "kept", opts.Prune)
		if r.EffectiveMode() != output.ModeJSON {
			r.Success(fmt.Sprintf("deleted %d old runs", n))
		}
	}

	runs, err := store.ListRuns(ctx, opts.Limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if r.EffectiveMode() == output.ModeJSON {
		if runs == nil {
			runs = []*state.Run{}
		}
		return r.JSON(runs)
	}
	renderRuns(r, runs)
	return nil
}

func renderRuns(r *output.Renderer, runs []*state.Run) {
	styles := r.Styles()

	r.Header(1, "Runs")
	if len(runs) == 0 {
		r.Muted("No runs recorded yet.")
		return
	}

	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		status := string(run.Status)
		if r.EffectiveMode() != output.ModeMarkdown {
			status = styles.StatusIcon(status) + " " + status
		}
		rows = append(rows, []string{
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Mapping,
			filepath.Base(run.InputPath),
			strconv.Itoa(run.Rows),
			strconv.Itoa(run.TypeErrors),
			run.Duration().Round(time.Millisecond).String(),
			status,
		})
	}
	r.Table([]string{"Started", "Mapping", "Input", "Rows", "Type Errors", "Duration", "Status"}, rows)

	for _, run := range runs {
		if run.Error != "" {
			r.Println("")
			r.Error(fmt.Sprintf("%s: %s", run.ID, run.Error))
		}
	}
}
