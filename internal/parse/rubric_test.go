package parse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRubricCriteria_JSONObject(t *testing.T) {
	text := `{"criteria":[
		{"title":"Thesis","description":"Clarity of the central argument","max_score":10,
		 "levels":[{"label":"Excellent","score":10,"description":"Sharp and specific"}]},
		{"title":"Evidence","max_score":5}
	]}`

	specs, err := ParseRubricCriteria(text)

	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Thesis", specs[0].Title)
	assert.Equal(t, "Clarity of the central argument", specs[0].Description)
	assert.Equal(t, float64(10), specs[0].MaxScore)
	require.Len(t, specs[0].Levels, 1)
	assert.Equal(t, "Excellent", specs[0].Levels[0].Label)
	assert.Equal(t, "Evidence", specs[1].Title)
	assert.Equal(t, float64(5), specs[1].MaxScore)
}

func TestParseRubricCriteria_BareArray(t *testing.T) {
	specs, err := ParseRubricCriteria(`[{"title":"Structure","max_score":4}]`)

	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Structure", specs[0].Title)
}

func TestParseRubricCriteria_WrappedInProse(t *testing.T) {
	text := "Here is a rubric for the assignment:\n" +
		`{"criteria":[{"title":"Voice","max_score":3},]}` +
		"\nLet me know if you need changes."

	specs, err := ParseRubricCriteria(text)

	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, "Voice", specs[0].Title)
}

func TestParseRubricCriteria_PlainStringEntries(t *testing.T) {
	specs, err := ParseRubricCriteria(`{"criteria":["Thesis","Evidence"]}`)

	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, "Thesis", specs[0].Title)
	assert.Equal(t, float64(defaultCriterionMaxScore), specs[0].MaxScore,
		"string entries get the default max score")
}

func TestParseRubricCriteria_BulletLines(t *testing.T) {
	text := `Here are the criteria:
1. Thesis: Clarity of the central argument
2. Evidence
- Organization: Logical flow between paragraphs`

	specs, err := ParseRubricCriteria(text)

	require.NoError(t, err)
	require.Len(t, specs, 3)
	assert.Equal(t, "Thesis", specs[0].Title)
	assert.Equal(t, "Clarity of the central argument", specs[0].Description)
	assert.Equal(t, "Evidence", specs[1].Title)
	assert.Equal(t, "Organization", specs[2].Title)
	for _, spec := range specs {
		assert.Equal(t, float64(defaultCriterionMaxScore), spec.MaxScore)
	}
}

func TestParseRubricCriteria_DefaultsNonPositiveMaxScore(t *testing.T) {
	specs, err := ParseRubricCriteria(`[{"title":"Thesis","max_score":0}]`)

	require.NoError(t, err)
	require.Len(t, specs, 1)
	assert.Equal(t, float64(defaultCriterionMaxScore), specs[0].MaxScore)
}

func TestParseRubricCriteria_NothingUsable(t *testing.T) {
	for _, text := range []string{"", "   \n", "I cannot produce a rubric."} {
		_, err := ParseRubricCriteria(text)
		require.ErrorIs(t, err, ErrNoCriteriaFound, "input %q", text)
	}
}
