package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTest(mode OutputMode, tty bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, tty, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		mode OutputMode
		tty  bool
		want OutputMode
	}{
		{ModeAuto, true, ModeText},
		{ModeAuto, false, ModeMarkdown},
		{"", false, ModeMarkdown},
		{ModeText, false, ModeText},
		{ModeJSON, true, ModeJSON},
		{ModeMarkdown, true, ModeMarkdown},
	}
	for _, tt := range tests {
		r, _, _ := newTest(tt.mode, tt.tty)
		assert.Equal(t, tt.want, r.EffectiveMode(), "mode=%q tty=%v", tt.mode, tt.tty)
	}
}

func TestNewRenderer_BufferIsNotTTY(t *testing.T) {
	r := NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, ModeAuto)
	assert.False(t, r.IsTTY())
	assert.Equal(t, ModeMarkdown, r.EffectiveMode())
}

func TestHeader(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Header(2, "Columns")
	assert.Equal(t, "## Columns\n\n", out.String())

	r, out, _ = newTest(ModeText, false)
	r.Header(1, "Columns")
	assert.Contains(t, out.String(), "Columns")
	assert.NotContains(t, out.String(), "#")
}

func TestStatusLines(t *testing.T) {
	r, out, errOut := newTest(ModeText, false)
	r.Success("wrote 3 rows")
	r.StatusLine("FEMALE", "failed", "(2 type errors)")
	r.Warning("2 sources missing")
	r.Error("boom")

	assert.Contains(t, out.String(), "[ok] wrote 3 rows")
	assert.Contains(t, out.String(), "[fail] FEMALE (2 type errors)")
	assert.Contains(t, errOut.String(), "[warn] 2 sources missing")
	assert.Contains(t, errOut.String(), "[fail] boom")

	r, out, _ = newTest(ModeMarkdown, false)
	r.Success("done")
	assert.Equal(t, "- done\n", out.String())
}

func TestTable(t *testing.T) {
	r, out, _ := newTest(ModeMarkdown, false)
	r.Table([]string{"Column", "True"}, [][]string{{"FEMALE", "1"}})
	assert.Contains(t, out.String(), "| Column | True |")
	assert.Contains(t, out.String(), "| FEMALE | 1 |")

	r, out, _ = newTest(ModeText, true)
	r.Table([]string{"Column", "True"}, [][]string{{"FEMALE", "1"}})
	assert.Contains(t, out.String(), "FEMALE")
	assert.Contains(t, out.String(), "┌")
}

func TestJSON(t *testing.T) {
	r, out, _ := newTest(ModeJSON, false)
	require.NoError(t, r.JSON(map[string]int{"rows": 2}))

	var got map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got["rows"])
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "# Plan", FormatHeader(1, "Plan"))
	assert.Equal(t, "### Plan", FormatHeader(3, "Plan"))
	assert.Equal(t, "- **Rows**: 3", FormatKeyValue("Rows", "3"))
	assert.Equal(t, "Type Errors", Title("type_errors"))
	assert.Equal(t, "Completed", Title("completed"))
}
