// Package testutil provides test utilities for CLI testing.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leapstack-labs/crossva/internal/cli/output"
	"github.com/stretchr/testify/require"
)

// MappingCSV is a small mapping table: two text rules, two numeric rules and a
// prerequisite.
const MappingCSV = `New Column Name,New Column Documentation,Source Column ID,Source Column Documentation,Relationship,Condition,Prerequisite
FEMALE,Decedent was female,Id10019,Sex of the deceased,eq,female,
MALE,Decedent was male,Id10019,Sex of the deceased,eq,male,
ADULT,Decedent was 15 or older,ageInYears,Age in years,ge,15,
ELDER,Decedent was 65 or older,ageInYears,Age in years,ge,65,ADULT
`

// InputCSV is questionnaire data matching MappingCSV.
const InputCSV = `ID,Id10019,ageInYears
a1,female,70
a2,male,30
`

// PresetInput and PresetOutput name the preset whose mapping SetupTestProject writes.
const (
	PresetInput  = "2016WHOv151"
	PresetOutput = "InterVA5"
)

// Project is a temporary CrossVA project.
type Project struct {
	Dir         string
	MappingsDir string
	Mapping     string // Path of the preset mapping file
	Input       string // Path of the questionnaire data
}

// SetupTestProject creates a temporary project with a preset mapping and input data.
func SetupTestProject(t *testing.T) *Project {
	t.Helper()

	dir := t.TempDir()
	p := &Project{
		Dir:         dir,
		MappingsDir: filepath.Join(dir, "mappings"),
		Input:       filepath.Join(dir, "data", "va.csv"),
	}
	p.Mapping = filepath.Join(p.MappingsDir, PresetInput+"_to_"+PresetOutput+".csv")

	WriteFile(t, p.Mapping, MappingCSV)
	WriteFile(t, p.Input, InputCSV)
	return p
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

// TestRenderer wraps a Renderer for testing with captured output buffers.
type TestRenderer struct {
	*output.Renderer
	Out    *bytes.Buffer
	ErrOut *bytes.Buffer
}

// NewTestRenderer creates a new test renderer with the specified mode and TTY state.
// Output is captured in buffers for inspection.
func NewTestRenderer(mode output.OutputMode, isTTY bool) *TestRenderer {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &TestRenderer{
		Renderer: output.NewRendererWithTTY(out, errOut, isTTY, mode),
		Out:      out,
		ErrOut:   errOut,
	}
}

// NewTestRendererText creates a new test renderer in text mode (simulated TTY).
func NewTestRendererText() *TestRenderer {
	return NewTestRenderer(output.ModeText, true)
}

// NewTestRendererMarkdown creates a new test renderer in markdown mode.
func NewTestRendererMarkdown() *TestRenderer {
	return NewTestRenderer(output.ModeMarkdown, false)
}

// NewTestRendererJSON creates a new test renderer in JSON mode.
func NewTestRendererJSON() *TestRenderer {
	return NewTestRenderer(output.ModeJSON, false)
}

// Output returns the stdout output as a string.
func (tr *TestRenderer) Output() string {
	return tr.Out.String()
}

// ErrorOutput returns the stderr output as a string.
func (tr *TestRenderer) ErrorOutput() string {
	return tr.ErrOut.String()
}

// ansiPattern matches ANSI escape codes.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// AssertNoANSI checks that a string contains no ANSI escape codes.
func AssertNoANSI(t *testing.T, s string) {
	t.Helper()
	if ansiPattern.MatchString(s) {
		t.Errorf("string contains ANSI escape codes: %q", s)
	}
}

// AssertValidMarkdown checks for unclosed code fences and empty headers.
func AssertValidMarkdown(t *testing.T, md string) {
	t.Helper()

	if n := strings.Count(md, "```"); n%2 != 0 {
		t.Errorf("unbalanced code fences in markdown: found %d occurrences", n)
	}
	for i, line := range strings.Split(md, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") && strings.TrimLeft(trimmed, "# ") == "" {
			t.Errorf("empty header at line %d: %q", i+1, line)
		}
	}
}

// ReadCSVLines returns the lines of a written output file.
func ReadCSVLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}
