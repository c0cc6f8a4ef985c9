package ledger

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeKeepsRecords(t *testing.T) {
	in := []Record{
		{Timestamp: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), Module: "2 - Research Questions", GroupNumber: "1"},
		{Timestamp: time.Date(2025, 3, 2, 11, 30, 15, 250000000, time.UTC), Module: "5 - Presenting Results", GroupNumber: "12", IncludedFigures: true},
		{Timestamp: time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC), Module: "6 - Discussion Section", GroupNumber: "7, \"b\""},
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))
	assert.True(t, strings.HasPrefix(buf.String(), "timestamp,module,groupnumber,included_figures\n"))

	out, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeEmptyIsHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "timestamp,module,groupnumber,included_figures\n", buf.String())
}

func TestDecodeLegacyFile(t *testing.T) {
	legacy := "timestamp,module,groupnumber\n" +
		"2025-02-10T14:03:22.123456,3 - Study Design,4\n" +
		"\n" +
		"2025-02-11T08:00:00,4 - Human Research Ethics,9\n"

	out, err := Decode(strings.NewReader(legacy))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, time.Date(2025, 2, 10, 14, 3, 22, 123456000, time.UTC), out[0].Timestamp)
	assert.Equal(t, "3 - Study Design", out[0].Module)
	assert.Equal(t, "4", out[0].GroupNumber)
	assert.False(t, out[0].IncludedFigures)
}

func TestDecodeAcceptsPythonBools(t *testing.T) {
	in := "groupnumber,module,timestamp,included_figures\n12,5 - Presenting Results,2025-01-01T00:00:00Z,True\n"
	out, err := Decode(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].IncludedFigures)
	assert.Equal(t, "12", out[0].GroupNumber)
}

func TestDecodeEmptyInput(t *testing.T) {
	out, err := Decode(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecodeMalformed(t *testing.T) {
	tests := map[string]string{
		"missing column": "timestamp,module\n2025-01-01T00:00:00Z,x\n",
		"bad timestamp":  "timestamp,module,groupnumber\nyesterday,x,1\n",
		"short row":      "timestamp,module,groupnumber\n2025-01-01T00:00:00Z,x\n",
		"bad bool":       "timestamp,module,groupnumber,included_figures\n2025-01-01T00:00:00Z,x,1,maybe\n",
		"bad quoting":    "timestamp,module,groupnumber\n2025-01-01T00:00:00Z,\"x,1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}
