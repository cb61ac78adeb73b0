package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModels_EveryEntryParses(t *testing.T) {
	models := Models()
	require.NotEmpty(t, models)

	for _, m := range models {
		name, err := ParseModelName(m.ID)
		require.NoError(t, err, m.ID)
		assert.Equal(t, m.Family, name.Family.String(), m.ID)
	}
}

func TestModels_SortedByFamily(t *testing.T) {
	models := Models()
	assert.Equal(t, "openai", models[0].Family)
	assert.Equal(t, "openrouter", models[len(models)-1].Family)
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel("gemini-2.5-pro")
	require.True(t, ok)
	assert.True(t, m.SupportsReasoning)

	_, ok = LookupModel("gpt-3")
	assert.False(t, ok)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "gpt-4o", Suggest("gpt-4p"))
	assert.Equal(t, "gemini-2.5-pro", Suggest("gemni-2.5-pro"))
	assert.Equal(t, "", Suggest("completely-unrelated-model"))
	assert.Equal(t, "", Suggest(""))
}
