package course

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"5 - Presenting Results", 5},
		{"5", 5},
		{" 2 ", 2},
		{"ethics", 4},
		{"DISCUSSION", 6},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			m, err := Parse(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.Number)
		})
	}
}

func TestParseUnknown(t *testing.T) {
	for _, in := range []string{"", "1", "7", "5 - presenting results", "results!"} {
		_, err := Parse(in)
		assert.ErrorIs(t, err, ErrUnknownModule, in)
	}
}

func TestOnlyPresentingResultsAnalyzesFigures(t *testing.T) {
	var withFigures []string
	for _, m := range All() {
		if m.AnalyzesFigures {
			withFigures = append(withFigures, m.Label)
		}
	}
	assert.Equal(t, []string{"5 - Presenting Results"}, withFigures)
}

func TestAllReturnsCopy(t *testing.T) {
	a := All()
	a[0].Label = "mutated"
	assert.Equal(t, "2 - Research Questions", All()[0].Label)
	assert.Len(t, a, 5)
}

func TestRubricKey(t *testing.T) {
	m, err := ByNumber(3)
	require.NoError(t, err)
	assert.Equal(t, "3", m.RubricKey())
	assert.Equal(t, "3 - Study Design", m.String())
}

func TestSectionRubricName(t *testing.T) {
	want := map[int]string{
		2: "rubric_1_intro.txt",
		3: "rubric_2_design.txt",
		4: "rubric_3_ethics.txt",
		5: "rubric_4_results.txt",
		6: "rubric_5_discussion.txt",
	}
	for n, name := range want {
		m, err := ByNumber(n)
		require.NoError(t, err)
		assert.Equal(t, name, m.SectionRubricName())
	}
}
