package core

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_ZeroIsNA(t *testing.T) {
	var v Value
	assert.True(t, v.IsNA())
	assert.Equal(t, NA, OutputRow{}.Get("FEMALE"))
}

func TestValue_Bool(t *testing.T) {
	tests := []struct {
		v         Value
		wantValue bool
		wantKnown bool
		wantStr   string
	}{
		{True, true, true, "true"},
		{False, false, true, "false"},
		{NA, false, false, "NA"},
	}
	for _, tt := range tests {
		t.Run(tt.wantStr, func(t *testing.T) {
			b, known := tt.v.Bool()
			assert.Equal(t, tt.wantValue, b)
			assert.Equal(t, tt.wantKnown, known)
			assert.Equal(t, tt.wantStr, tt.v.String())
		})
	}
	assert.Equal(t, True, FromBool(true))
	assert.Equal(t, False, FromBool(false))
}

func TestValue_JSON(t *testing.T) {
	data, err := json.Marshal(OutputRow{"A": True, "B": False, "C": NA})
	require.NoError(t, err)
	assert.JSONEq(t, `{"A":true,"B":false,"C":null}`, string(data))

	var row OutputRow
	require.NoError(t, json.Unmarshal(data, &row))
	assert.Equal(t, OutputRow{"A": True, "B": False, "C": NA}, row)

	var v Value
	assert.Error(t, json.Unmarshal([]byte(`"yes"`), &v))
}

func TestCell_Number(t *testing.T) {
	tests := []struct {
		name   string
		cell   Cell
		want   float64
		wantOK bool
	}{
		{"integer", TextCell("15"), 15, true},
		{"padded decimal", TextCell(" 2.5 "), 2.5, true},
		{"text", TextCell("old"), 0, false},
		{"nan text", TextCell("NaN"), 0, false},
		{"padded lowercase nan", TextCell(" nan "), 0, false},
		{"infinity", TextCell("inf"), math.Inf(1), true},
		{"missing", MissingCell(), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.cell.Number()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "NA", MissingCell().String())
	assert.True(t, Row{}.Get("Id10019").IsNA())
}
