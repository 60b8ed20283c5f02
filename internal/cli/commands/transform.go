package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/engine"
	"github.com/leapstack-labs/crossva/internal/presets"
	"github.com/leapstack-labs/crossva/internal/state"
	"github.com/leapstack-labs/crossva/internal/table"
	"github.com/leapstack-labs/crossva/pkg/core"
	"github.com/spf13/cobra"
)

// TransformOptions holds options for the transform command.
type TransformOptions struct {
	Dst    string
	Select []string
	Watch  bool
}

// NewTransformCommand creates the transform command.
func NewTransformCommand() *cobra.Command {
	opts := &TransformOptions{}

	cmd := &cobra.Command{
		Use:   "transform [input_format output_format] <src>...",
		Short: "Recode questionnaire data into indicator columns",
		Long: `Recode raw questionnaire data into the indicator columns an algorithm expects.

The mapping comes from --mapping, or from the input/output format pair, either as
the first two arguments or from --input-format and --output-format. An input
format of "auto" picks the supported format whose mapping reads the most input
columns.

Each source is written to its own CSV. Without --dst the file is named
<output>_from_<source>_<mmddyy>.csv in the working directory. When --dst is a
directory the same name is used inside it; when it is a file and several sources
are given, _1, _2, ... are appended.`,
		Example: `  # Prepare 2016 WHO v1.5.1 data for InterVA5
  crossva transform 2016WHOv151 InterVA5 data/va_2019.csv

  # Detect the input version
  crossva transform auto InSilicoVA data/*.csv --dst out/

  # Use a custom mapping and keep only two columns (plus their prerequisites)
  crossva transform --mapping mymap.csv --select FEMALE,ADULT data/va.csv -d out.csv

  # Also write to SQLite and re-run on every change
  crossva transform 2012WHO InterVA4 data/va.csv --sqlite out.db --watch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransform(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.Dst, "dst", "d", "", "Output file or directory (default: working directory)")
	f.StringSliceVarP(&opts.Select, "select", "s", nil, "Only produce these output columns and their prerequisites")
	f.BoolVarP(&opts.Watch, "watch", "w", false, "Re-run when the mapping or a source changes")

	f.String("id-column", "", "Input column copied to the output ID column (default: row number)")
	f.Bool("preserve-na", true, "Write missing values as the NA value instead of absent")
	f.String("present", "", "Value written for true (default \"y\")")
	f.String("absent", "", "Value written for false (default \"n\")")
	f.String("na-value", "", "Value written for missing (default \".\")")
	f.StringSlice("na-values", nil, "Raw answers read as missing (default dk,ref,\"\")")
	f.IntP("workers", "j", 0, "Rows evaluated in parallel (default: number of CPUs)")
	f.String("prerequisite-na", "", "Outcome of a rule whose prerequisite is missing (false|na)")
	f.String("missing-sources", "", "Handling of source columns absent from the input (error|na)")
	f.String("sqlite", "", "Also write outputs to this SQLite database")
	f.String("sqlite-table", "", "SQLite table name (default \"indicators\")")
	f.Bool("history", true, "Record the run in the run history")

	_ = cmd.RegisterFlagCompletionFunc("prerequisite-na", fixedCompletion("false", "na"))
	_ = cmd.RegisterFlagCompletionFunc("missing-sources", fixedCompletion("error", "na"))

	return cmd
}

func fixedCompletion(values ...string) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return values, cobra.ShellCompDirectiveNoFileComp
	}
}

// transformJob is one source file and where its output goes.
type transformJob struct {
	Source      string
	Dst         string
	SQLiteTable string
}

// transformer carries everything shared by the jobs of one invocation.
type transformer struct {
	cmdCtx  *CommandContext
	opts    *TransformOptions
	input   string
	output  string
	preset  bool
	store   state.Store
	sink    *table.SQLiteSink
	now     func() time.Time
	mapping map[string]*loadedMapping
}

func runTransform(cmd *cobra.Command, args []string, opts *TransformOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	cfg := cmdCtx.Cfg

	input, out, sources, pair := splitTransformArgs(args, cfg.InputFormat, cfg.OutputFormat)
	if len(sources) == 0 {
		return errors.New("no source files given")
	}
	// A format pair given as arguments wins over --mapping.
	usePreset := pair || cfg.Mapping == ""
	if usePreset && out == "" {
		return errors.New("no mapping given: pass --mapping, or an input and output format")
	}

	t := &transformer{
		cmdCtx:  cmdCtx,
		opts:    opts,
		input:   input,
		output:  out,
		preset:  usePreset,
		now:     time.Now,
		mapping: make(map[string]*loadedMapping),
	}

	if cfg.History {
		store, err := openStore(cfg, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		t.store = store
	}
	if cfg.SQLitePath != "" {
		sink, err := table.OpenSQLite(cfg.SQLitePath, cmdCtx.Logger)
		if err != nil {
			return err
		}
		defer func() { _ = sink.Close() }()
		t.sink = sink
	}

	jobs := t.jobs(sources)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := t.runAll(ctx, jobs); err != nil && !opts.Watch {
		return err
	}
	if !opts.Watch {
		return nil
	}

	watched := append([]string{}, sources...)
	for path := range t.mapping {
		watched = append(watched, path)
	}
	cmdCtx.Renderer.Muted(fmt.Sprintf("Watching %d files for changes (Ctrl+C to stop)", len(watched)))
	return watchFiles(ctx, watched, cmdCtx.Logger, func() {
		// Mappings are re-read on every change.
		t.mapping = make(map[string]*loadedMapping)
		if err := t.runAll(ctx, jobs); err != nil {
			cmdCtx.Renderer.Error(err.Error())
		}
	})
}

// splitTransformArgs separates a leading "input output" format pair from the
// source files. Without the pair the configured formats are used.
func splitTransformArgs(args []string, input, out string) (string, string, []string, bool) {
	if len(args) >= 3 && (presets.IsInput(args[0]) || args[0] == presets.AutoInput) && presets.IsOutput(args[1]) {
		return args[0], args[1], args[2:], true
	}
	return input, out, args, false
}

// jobs assigns a destination to every source.
func (t *transformer) jobs(sources []string) []transformJob {
	cfg := t.cmdCtx.Cfg
	label := t.output
	if !t.preset {
		label = fileStem(cfg.Mapping)
	}

	dsts := destinations(t.opts.Dst, label, sources, t.now())
	jobs := make([]transformJob, len(sources))
	for i, src := range sources {
		jobs[i] = transformJob{Source: src, Dst: dsts[i], SQLiteTable: cfg.SQLiteTable}
		if len(sources) > 1 {
			jobs[i].SQLiteTable = fmt.Sprintf("%s_%d", cfg.SQLiteTable, i+1)
		}
	}
	return jobs
}

func (t *transformer) outputFormat() string {
	if !t.preset {
		return ""
	}
	return t.output
}

func (t *transformer) runAll(ctx context.Context, jobs []transformJob) error {
	r := t.cmdCtx.Renderer
	results := make([]output.TransformResult, 0, len(jobs))

	var errs []error
	for _, job := range jobs {
		res, err := t.run(ctx, job)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.Source, err))
			if r.EffectiveMode() != output.ModeJSON {
				r.StatusLine(job.Source, "failed", err.Error())
			}
			continue
		}
		results = append(results, *res)
		if r.EffectiveMode() != output.ModeJSON {
			renderTransformResult(r, res)
		}
	}

	if r.EffectiveMode() == output.ModeJSON {
		if err := r.JSON(results); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

// run transforms one source and records it in the run history.
func (t *transformer) run(ctx context.Context, job transformJob) (*output.TransformResult, error) {
	cfg := t.cmdCtx.Cfg
	logger := t.cmdCtx.Logger.With("source", job.Source)

	in, err := table.ReadCSVFile(job.Source, cfg.ReadOptions())
	if err != nil {
		return nil, err
	}

	m, inputFormat, err := t.resolveMapping(in)
	if err != nil {
		return nil, err
	}
	for _, d := range m.Diagnostics.Filter(core.SeverityWarning) {
		logger.Warn("mapping", "check", d.Check, "message", d.Message)
	}

	format := cfg.Format()
	if m.Preset != nil {
		format.PreserveNA = m.Preset.ResolvePreserveNA(cfg.PreserveNA)
	}

	opts := cfg.EngineOptions()
	opts.Select = t.opts.Select
	opts.Logger = logger
	eng, err := engine.New(m.Table, opts)
	if err != nil {
		return nil, err
	}

	run := &core.Run{
		Mapping:      m.Path,
		InputPath:    job.Source,
		OutputPath:   job.Dst,
		InputFormat:  inputFormat,
		OutputFormat: t.outputFormat(),
	}
	if t.store != nil {
		if err := t.store.CreateRun(ctx, run); err != nil {
			return nil, err
		}
	}

	res, err := t.execute(ctx, eng, in, job, format)
	if t.store != nil {
		result := core.RunResult{Status: core.RunStatusCompleted}
		if err != nil {
			result.Status = core.RunStatusFailed
			result.Error = err.Error()
		} else {
			result.Rows = res.Rows
			result.Columns = res.Columns
			result.TypeErrors = res.TypeErrors
		}
		// The run is recorded even when the caller's context was cancelled.
		if cerr := t.store.CompleteRun(context.WithoutCancel(ctx), run.ID, result); cerr != nil {
			logger.Warn("failed to record run", "run_id", run.ID, "error", cerr)
		}
	}
	if err != nil {
		return nil, err
	}

	res.Mapping = m.Name()
	res.InputFormat = inputFormat
	res.OutputFormat = t.outputFormat()
	res.RunID = run.ID
	return res, nil
}

func (t *transformer) execute(ctx context.Context, eng *engine.Engine, in *table.Input, job transformJob, format table.Format) (*output.TransformResult, error) {
	out, report, err := eng.Transform(ctx, in)
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(job.Dst); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := table.WriteCSVFile(job.Dst, out, format); err != nil {
		return nil, err
	}

	res := &output.TransformResult{
		Input:          job.Source,
		Output:         job.Dst,
		Rows:           report.Rows,
		Columns:        report.Columns,
		MissingSources: report.MissingSources,
		TypeErrors:     report.TypeErrorCount(),
		TypeErrorsBy:   report.TypeErrorSummary(),
		DurationMS:     report.Duration.Milliseconds(),
	}

	if t.sink != nil {
		if err := t.sink.Write(ctx, job.SQLiteTable, out, format); err != nil {
			return nil, err
		}
		res.SQLiteTable = job.SQLiteTable
	}
	return res, nil
}

// resolveMapping returns the mapping for an input table and the input format used,
// detecting the format when it is "auto". Mappings are built once per path.
func (t *transformer) resolveMapping(in *table.Input) (*loadedMapping, string, error) {
	cfg := t.cmdCtx.Cfg

	var (
		path   string
		preset *presets.Preset
		input  = t.input
		err    error
	)
	if t.preset {
		if input == "" || input == presets.AutoInput {
			detected, scores, err := presets.Detect(cfg.MappingsDir, t.output, in.Columns)
			if err != nil {
				return nil, "", err
			}
			t.cmdCtx.Logger.Debug("detected input format", "input_format", detected, "scores", scores)
			input = detected
		}
		path, preset, err = presetPath(cfg, input, t.output)
		if err != nil {
			return nil, "", err
		}
	} else {
		path = cfg.Mapping
		input = ""
	}

	if m, ok := t.mapping[path]; ok {
		return m, input, nil
	}
	m, err := loadMapping(cfg, path, preset)
	if err != nil {
		return nil, "", err
	}
	t.mapping[path] = m
	return m, input, nil
}

// destinations names the output file of every source.
func destinations(dst, label string, sources []string, now time.Time) []string {
	out := make([]string, len(sources))

	isDir := strings.HasSuffix(dst, string(os.PathSeparator)) || strings.HasSuffix(dst, "/")
	if info, err := os.Stat(dst); err == nil && info.IsDir() {
		isDir = true
	}

	switch {
	case dst == "" || isDir:
		seen := make(map[string]int)
		for i, src := range sources {
			name := defaultOutputName(label, src, now)
			seen[name]++
			if n := seen[name]; n > 1 {
				name = strings.TrimSuffix(name, ".csv") + fmt.Sprintf("_%d.csv", n)
			}
			out[i] = filepath.Join(dst, name)
		}
	case len(sources) == 1:
		out[0] = dst
	default:
		ext := filepath.Ext(dst)
		stem := strings.TrimSuffix(dst, ext)
		if ext == "" {
			ext = ".csv"
		}
		for i := range sources {
			out[i] = fmt.Sprintf("%s_%d%s", stem, i+1, ext)
		}
	}
	return out
}

// defaultOutputName returns <label>_from_<source stem>_<mmddyy>.csv.
func defaultOutputName(label, src string, now time.Time) string {
	return fmt.Sprintf("%s_from_%s_%s.csv", label, fileStem(src), now.Format("010206"))
}

// fileStem returns the base name up to its first dot.
func fileStem(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func renderTransformResult(r *output.Renderer, res *output.TransformResult) {
	styles := r.Styles()
	detail := fmt.Sprintf("%d rows, %d columns -> %s", res.Rows, res.Columns, res.Output)
	if res.SQLiteTable != "" {
		detail += fmt.Sprintf(" (sqlite table %s)", res.SQLiteTable)
	}
	status := "success"
	if res.TypeErrors > 0 || len(res.MissingSources) > 0 {
		status = "warning"
	}
	r.StatusLine(res.Input, status, detail)

	if len(res.MissingSources) > 0 {
		r.Printf("    %s %s\n", styles.Warning.Render("missing sources read as NA:"),
			core.ReportList(res.MissingSources, 5))
	}
	if res.TypeErrors > 0 {
		r.Printf("    %s\n", styles.Warning.Render(fmt.Sprintf("%d non-numeric values read as NA:", res.TypeErrors)))
		keys := make([]string, 0, len(res.TypeErrorsBy))
		for k := range res.TypeErrorsBy {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			r.Printf("      %s %s\n", k, styles.Muted.Render(fmt.Sprintf("(%d)", res.TypeErrorsBy[k])))
		}
	}
}
