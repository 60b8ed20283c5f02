package cli

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/crossva/internal/cli/testutil"
)

// run executes the root command with args and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"transform", "validate", "describe", "plan", "explain", "runs", "presets", "version", "completion"} {
		assert.Contains(t, names, want)
	}
	for _, f := range []string{"config", "verbose", "output", "mapping", "mappings-dir", "input-format", "output-format", "state"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(f), "flag %s", f)
	}
}

func TestTransform_FlagsReachConfig(t *testing.T) {
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Dir)

	dst := filepath.Join(p.Dir, "out.csv")
	_, _, err := run(t, "transform", testutil.PresetInput, testutil.PresetOutput, "data/va.csv",
		"-d", dst, "--id-column", "ID", "--present", "1", "--absent", "0", "--history=false", "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ID,FEMALE,MALE,ADULT,ELDER",
		"a1,1,0,1,1",
		"a2,0,1,1,0",
	}, testutil.ReadCSVLines(t, dst))
}

func TestTransform_ConfigFileAndEnv(t *testing.T) {
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Dir)

	testutil.WriteFile(t, filepath.Join(p.Dir, "crossva.yaml"), `
input_format: 2016WHOv151
output_format: InterVA5
id_column: ID
history: false
result_values:
  present: "Y"
`)
	t.Setenv("CROSSVA_RESULT_VALUES__ABSENT", "N")

	dst := filepath.Join(p.Dir, "out.csv")
	_, _, err := run(t, "transform", "data/va.csv", "-d", dst, "-o", "json")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"ID,FEMALE,MALE,ADULT,ELDER",
		"a1,Y,N,Y,Y",
		"a2,N,Y,Y,N",
	}, testutil.ReadCSVLines(t, dst))
}

func TestValidate_MarkdownWhenPiped(t *testing.T) {
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Dir)

	out, _, err := run(t, "validate", p.Mapping)
	require.NoError(t, err)
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "# Validating")
}

func TestInvalidConfig(t *testing.T) {
	p := testutil.SetupTestProject(t)
	t.Chdir(p.Dir)

	_, _, err := run(t, "presets", "--output", "yaml")
	assert.ErrorContains(t, err, "invalid configuration")
}

func TestVersionFlag(t *testing.T) {
	out, _, err := run(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "crossva "+Version)
}

func TestCompletion(t *testing.T) {
	out, _, err := run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "crossva")
}
