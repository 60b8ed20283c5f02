package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/leapstack-labs/crossva/internal/cli/testutil"
	"github.com/leapstack-labs/crossva/internal/config"
	"github.com/leapstack-labs/crossva/internal/state"
)

// newProject creates a test project, moves into it and loads its default config.
func newProject(t *testing.T, mode output.OutputMode) (*testutil.Project, *config.Config) {
	t.Helper()
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Dir)

	cfg, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	cfg.OutputMode = string(mode)
	return p, cfg
}

// execute runs cmd with cfg in its context and returns stdout.
func execute(t *testing.T, cmd *cobra.Command, cfg *config.Config, args ...string) (string, error) {
	t.Helper()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)

	ctx := config.WithConfig(context.Background(), cfg)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewTransformCommand(), "transform [input_format output_format] <src>...", []string{"dst", "select", "watch", "id-column", "sqlite", "history"}},
		{NewValidateCommand(), "validate [mapping]", []string{"level"}},
		{NewDescribeCommand(), "describe [mapping]", nil},
		{NewPlanCommand(), "plan [mapping]", nil},
		{NewExplainCommand(), "explain [mapping] <column>", nil},
		{NewRunsCommand(), "runs", []string{"limit", "prune"}},
		{NewPresetsCommand(), "presets", []string{"all"}},
	}

	for _, tt := range tests {
		t.Run(tt.cmd.Name(), func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Long)
			for _, f := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(f), "flag %s", f)
			}
		})
	}
}

func TestTransformCommand_Preset(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)
	cfg.IDColumn = "ID"

	dst := filepath.Join(p.Dir, "out", "indicators.csv")
	out, err := execute(t, NewTransformCommand(), cfg,
		testutil.PresetInput, testutil.PresetOutput, p.Input, "--dst", dst)
	require.NoError(t, err)

	var results []output.TransformResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 4, res.Columns)
	assert.Equal(t, "2016WHOv151_to_InterVA5", res.Mapping)
	assert.Equal(t, testutil.PresetInput, res.InputFormat)
	assert.Equal(t, testutil.PresetOutput, res.OutputFormat)
	assert.NotEmpty(t, res.RunID)

	assert.Equal(t, []string{
		"ID,FEMALE,MALE,ADULT,ELDER",
		"a1,y,n,y,y",
		"a2,n,y,y,n",
	}, testutil.ReadCSVLines(t, dst))

	// The run is in the history.
	out, err = execute(t, NewRunsCommand(), cfg)
	require.NoError(t, err)
	var runs []*state.Run
	require.NoError(t, json.Unmarshal([]byte(out), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, res.RunID, runs[0].ID)
	assert.Equal(t, "completed", string(runs[0].Status))
	assert.Equal(t, 2, runs[0].Rows)
}

func TestTransformCommand_DetectsInputFormat(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)
	cfg.History = false

	dst := filepath.Join(p.Dir, "auto.csv")
	out, err := execute(t, NewTransformCommand(), cfg, "auto", testutil.PresetOutput, p.Input, "-d", dst)
	require.NoError(t, err)

	var results []output.TransformResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	assert.Equal(t, testutil.PresetInput, results[0].InputFormat)
}

func TestTransformCommand_CustomMappingAndSelect(t *testing.T) {
	p, cfg := newProject(t, output.ModeMarkdown)
	cfg.History = false
	cfg.Mapping = p.Mapping

	dst := filepath.Join(p.Dir, "elder.csv")
	out, err := execute(t, NewTransformCommand(), cfg, p.Input, "--select", "ELDER", "-d", dst)
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	assert.Contains(t, out, "2 rows, 2 columns")

	assert.Equal(t, []string{"ID,ADULT,ELDER", "1,y,y", "2,y,n"}, testutil.ReadCSVLines(t, dst))
}

func TestTransformCommand_MissingSourceFails(t *testing.T) {
	p, cfg := newProject(t, output.ModeMarkdown)
	cfg.History = false
	testutil.WriteFile(t, p.Input, "ID,Id10019\na1,female\n")

	_, err := execute(t, NewTransformCommand(), cfg,
		testutil.PresetInput, testutil.PresetOutput, p.Input, "-d", filepath.Join(p.Dir, "x.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ageInYears")

	cfg.MissingSources = "na"
	_, err = execute(t, NewTransformCommand(), cfg,
		testutil.PresetInput, testutil.PresetOutput, p.Input, "-d", filepath.Join(p.Dir, "x.csv"))
	require.NoError(t, err)
	assert.Equal(t, []string{"ID,FEMALE,MALE,ADULT,ELDER", "1,y,n,.,n"}, testutil.ReadCSVLines(t, filepath.Join(p.Dir, "x.csv")))
}

func TestSplitTransformArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantIn      string
		wantOut     string
		wantSources []string
		wantPair    bool
	}{
		{"pair", []string{"2012WHO", "InterVA4", "a.csv"}, "2012WHO", "InterVA4", []string{"a.csv"}, true},
		{"auto pair", []string{"auto", "InSilicoVA", "a.csv", "b.csv"}, "auto", "InSilicoVA", []string{"a.csv", "b.csv"}, true},
		{"sources only", []string{"a.csv", "b.csv", "c.csv"}, "2016WHOv151", "InterVA5", []string{"a.csv", "b.csv", "c.csv"}, false},
		{"pair without source", []string{"2012WHO", "InterVA4"}, "2016WHOv151", "InterVA5", []string{"2012WHO", "InterVA4"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, out, sources, pair := splitTransformArgs(tt.args, "2016WHOv151", "InterVA5")
			assert.Equal(t, tt.wantIn, in)
			assert.Equal(t, tt.wantOut, out)
			assert.Equal(t, tt.wantSources, sources)
			assert.Equal(t, tt.wantPair, pair)
		})
	}
}

func TestDestinations(t *testing.T) {
	now := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	dir := t.TempDir()

	tests := []struct {
		name    string
		dst     string
		sources []string
		want    []string
	}{
		{
			name:    "default names",
			sources: []string{"data/va.csv", "other/va.csv"},
			want:    []string{"InterVA5_from_va_030926.csv", "InterVA5_from_va_030926_2.csv"},
		},
		{
			name:    "existing directory",
			dst:     dir,
			sources: []string{"va.2019.csv"},
			want:    []string{filepath.Join(dir, "InterVA5_from_va_030926.csv")},
		},
		{
			name:    "single file",
			dst:     "out.csv",
			sources: []string{"va.csv"},
			want:    []string{"out.csv"},
		},
		{
			name:    "numbered files",
			dst:     "out/result.txt",
			sources: []string{"a.csv", "b.csv"},
			want:    []string{"out/result_1.txt", "out/result_2.txt"},
		},
		{
			name:    "numbered files default extension",
			dst:     "result",
			sources: []string{"a.csv", "b.csv"},
			want:    []string{"result_1.csv", "result_2.csv"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, destinations(tt.dst, "InterVA5", tt.sources, now))
		})
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid preset mapping", func(t *testing.T) {
		_, cfg := newProject(t, output.ModeMarkdown)
		cfg.InputFormat = testutil.PresetInput
		cfg.OutputFormat = testutil.PresetOutput

		out, err := execute(t, NewValidateCommand(), cfg, "--level", "info")
		require.NoError(t, err)
		testutil.AssertValidMarkdown(t, out)
		assert.Contains(t, out, "# Validating")
		assert.Contains(t, out, "- 4 columns, 4 rules")
	})

	t.Run("cycle and bad relationship", func(t *testing.T) {
		p, cfg := newProject(t, output.ModeJSON)
		bad := filepath.Join(p.Dir, "bad.csv")
		testutil.WriteFile(t, bad, `New Column Name,Source Column ID,Relationship,Condition,Prerequisite
A,Id1,eq,yes,B
B,Id2,eq,yes,A
C,Id3,approx,yes,
`)

		out, err := execute(t, NewValidateCommand(), cfg, bad)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "is invalid")

		var res output.ValidateOutput
		require.NoError(t, json.Unmarshal([]byte(out), &res))
		assert.False(t, res.Valid)
		assert.NotEmpty(t, res.Errors)
	})

	t.Run("unknown level", func(t *testing.T) {
		_, cfg := newProject(t, output.ModeJSON)
		_, err := execute(t, NewValidateCommand(), cfg, "--level", "loud", "x.csv")
		assert.ErrorContains(t, err, "invalid level")
	})
}

func TestDescribeCommand(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)

	out, err := execute(t, NewDescribeCommand(), cfg, p.Mapping)
	require.NoError(t, err)

	var res output.DescribeOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	counts := make(map[string]int)
	for _, s := range res.Stats {
		counts[s.Field] = s.Count
	}
	assert.Equal(t, map[string]int{
		"column":       4,
		"source":       2,
		"relationship": 2,
		"condition":    4,
		"prerequisite": 1,
	}, counts)
	assert.Equal(t, map[string]int{"eq": 2, "ge": 2}, res.Relationships)
}

func TestDescribeCommand_Markdown(t *testing.T) {
	p, cfg := newProject(t, output.ModeMarkdown)

	out, err := execute(t, NewDescribeCommand(), cfg, p.Mapping)
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "- 4 new columns produced")
	assert.Contains(t, out, "| ge | is greater than or equal to | 2 |")
}

func TestPlanCommand(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)

	out, err := execute(t, NewPlanCommand(), cfg, p.Mapping)
	require.NoError(t, err)

	var res output.PlanOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 4, res.TotalColumns)
	assert.Equal(t, 1, res.TotalEdges)
	require.Len(t, res.Levels, 2)

	var level0 []string
	for _, n := range res.Levels[0].Columns {
		level0 = append(level0, n.Column)
		if n.Column == "ADULT" {
			assert.Equal(t, []string{"ELDER"}, n.UsedBy)
		}
	}
	assert.ElementsMatch(t, []string{"FEMALE", "MALE", "ADULT"}, level0)
	require.Len(t, res.Levels[1].Columns, 1)
	assert.Equal(t, "ELDER", res.Levels[1].Columns[0].Column)
	assert.Equal(t, []string{"ADULT"}, res.Levels[1].Columns[0].DependsOn)
}

func TestPlanCommand_Markdown(t *testing.T) {
	p, cfg := newProject(t, output.ModeMarkdown)

	out, err := execute(t, NewPlanCommand(), cfg, p.Mapping)
	require.NoError(t, err)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Level 1")
	assert.Contains(t, out, "  - depends on: ADULT")
	assert.Contains(t, out, "- **Total Dependencies**: 1")
}

func TestExplainCommand(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)

	out, err := execute(t, NewExplainCommand(), cfg, p.Mapping, "ELDER")
	require.NoError(t, err)

	var res output.ExplainOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Decedent was 65 or older", res.Documentation)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "ELDER is true where input column ageInYears is greater than or equal to 65 and ADULT is true", res.Rules[0].Text)
	assert.Equal(t, []string{"ADULT"}, res.Upstream)
	assert.Empty(t, res.Downstream)
}

func TestExplainCommand_UnknownColumn(t *testing.T) {
	p, cfg := newProject(t, output.ModeJSON)

	_, err := execute(t, NewExplainCommand(), cfg, p.Mapping, "NOPE")
	assert.ErrorContains(t, err, `column "NOPE" is not produced`)
}

func TestPresetsCommand(t *testing.T) {
	_, cfg := newProject(t, output.ModeJSON)

	out, err := execute(t, NewPresetsCommand(), cfg)
	require.NoError(t, err)
	var infos []output.PresetInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, 1)
	assert.Equal(t, testutil.PresetInput, infos[0].Input)
	assert.True(t, infos[0].Available)

	out, err = execute(t, NewPresetsCommand(), cfg, "--all")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	assert.Len(t, infos, 15)
}

func TestRunsCommand_Empty(t *testing.T) {
	_, cfg := newProject(t, output.ModeMarkdown)

	out, err := execute(t, NewRunsCommand(), cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "No runs recorded yet.")
}

func TestFlattenErrors(t *testing.T) {
	a, b, c := errors.New("a"), errors.New("b"), errors.New("c")

	assert.Nil(t, flattenErrors(nil))
	assert.Equal(t, []error{a}, flattenErrors(a))
	assert.Equal(t, []error{a, b, c}, flattenErrors(errors.Join(a, errors.Join(b, c))))

	wrapped := fmt.Errorf("invalid mapping m.csv: %w", errors.Join(a, b))
	assert.Equal(t, []error{a, b}, flattenErrors(wrapped))
}
