// Package presets names the supported questionnaire instruments and target
// algorithms, and locates the mapping table that converts one into the other.
package presets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/crossva/internal/table"
)

// AutoInput asks Detect to pick the input format from the data.
const AutoInput = "auto"

// Inputs lists the supported questionnaire formats, in detection preference order.
var Inputs = []string{"2016WHOv151", "2016WHOv141", "2012WHO", "2021WHO", "PHRMCShort"}

// Outputs lists the supported target algorithms.
var Outputs = []string{"InterVA5", "InterVA4", "InSilicoVA"}

// mappingExtensions are tried in order when locating a mapping file.
var mappingExtensions = []string{".csv", ".yaml", ".yml"}

// ErrNoMapping is returned when no mapping file exists for a supported pair.
var ErrNoMapping = errors.New("no mapping exists")

// Preset is a resolved input/output pair.
type Preset struct {
	Input  string `json:"input"`
	Output string `json:"output"`
	// MappingOutput is the output whose mapping file is used. InterVA4 reuses the
	// InSilicoVA mapping.
	MappingOutput string `json:"mapping_output"`
	// PreserveNA is set when the output algorithm fixes it: InSilicoVA understands
	// missing values and InterVA4 reads them as absent. Nil keeps the configured value.
	PreserveNA *bool `json:"preserve_na,omitempty"`
}

// ResolvePreserveNA returns the preserve_na setting to use for this preset.
func (p Preset) ResolvePreserveNA(configured bool) bool {
	if p.PreserveNA != nil {
		return *p.PreserveNA
	}
	return configured
}

// Lookup validates an input/output pair.
func Lookup(input, output string) (Preset, error) {
	if !IsInput(input) {
		return Preset{}, fmt.Errorf("input not supported: expected one of %s, got %q", strings.Join(Inputs, ", "), input)
	}
	if !IsOutput(output) {
		return Preset{}, fmt.Errorf("output not supported: expected one of %s, got %q", strings.Join(Outputs, ", "), output)
	}

	p := Preset{Input: input, Output: output, MappingOutput: output}
	switch output {
	case "InSilicoVA":
		p.PreserveNA = boolPtr(true)
	case "InterVA4":
		p.MappingOutput = "InSilicoVA"
		p.PreserveNA = boolPtr(false)
	}
	return p, nil
}

// IsInput reports whether name is a supported input format.
func IsInput(name string) bool { return containsString(Inputs, name) }

// IsOutput reports whether name is a supported output format.
func IsOutput(name string) bool { return containsString(Outputs, name) }

// FileStem returns the mapping file name without extension, e.g. "2012WHO_to_InSilicoVA".
func (p Preset) FileStem() string {
	return p.Input + "_to_" + p.MappingOutput
}

// MappingPath returns the first existing mapping file for p under dir.
func (p Preset) MappingPath(dir string) (string, error) {
	for _, ext := range mappingExtensions {
		path := filepath.Join(dir, p.FileStem()+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w supporting %s to %s in %s", ErrNoMapping, p.Input, p.Output, dir)
}

// Available lists every supported pair whose mapping file exists under dir.
func Available(dir string) []Preset {
	var out []Preset
	for _, in := range Inputs {
		for _, o := range Outputs {
			p, _ := Lookup(in, o)
			if _, err := p.MappingPath(dir); err == nil {
				out = append(out, p)
			}
		}
	}
	return out
}

// Score is how well one input format's mapping covers an input table.
type Score struct {
	Input string `json:"input"`
	// Coverage is the share of input columns that some mapping rule reads.
	Coverage float64 `json:"coverage"`
}

// Detect picks the input format whose mapping (for output) reads the largest share
// of columns. Ties go to the format listed first in Inputs. Formats without a
// mapping file, or whose sources bind ambiguously, are skipped.
func Detect(dir, output string, columns []string) (string, []Score, error) {
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("cannot detect input format of a table with no columns")
	}

	var (
		scores []Score
		best   = -1
	)
	for _, in := range Inputs {
		p, err := Lookup(in, output)
		if err != nil {
			return "", nil, err
		}
		path, err := p.MappingPath(dir)
		if err != nil {
			continue
		}
		entries, _, err := table.ReadMappingFile(path)
		if err != nil {
			continue
		}

		var sources []string
		seen := make(map[string]bool)
		for _, e := range entries {
			s := strings.TrimSpace(e.Source)
			if s != "" && !seen[s] {
				seen[s] = true
				sources = append(sources, s)
			}
		}
		binding, err := table.Bind(columns, sources)
		if err != nil {
			continue
		}

		used := make(map[string]bool)
		for _, col := range binding.Columns {
			used[col] = true
		}
		scores = append(scores, Score{Input: in, Coverage: float64(len(used)) / float64(len(columns))})
		if best < 0 || scores[len(scores)-1].Coverage > scores[best].Coverage {
			best = len(scores) - 1
		}
	}

	if best < 0 {
		return "", scores, fmt.Errorf("%w for output %s in %s", ErrNoMapping, output, dir)
	}
	return scores[best].Input, scores, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func boolPtr(b bool) *bool { return &b }
