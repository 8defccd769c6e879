package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stageIDs = []string{
	"mining-gen", "mining-analyze",
	"batch-translate", "batch-analyze",
	"deepdive-strategy", "deepdive-extract", "deepdive-competition", "deepdive-probability",
}

func TestDefault_EveryStage(t *testing.T) {
	for _, id := range stageIDs {
		prompt, err := Default(id)
		require.NoError(t, err, id)
		assert.NotEmpty(t, prompt, id)
	}

	keys, err := List(DefaultsFile)
	require.NoError(t, err)
	assert.ElementsMatch(t, stageIDs, keys)
}

func TestGet_InvalidFile(t *testing.T) {
	_, err := Get("nonexistent.json", "some-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown prompt file")
}

func TestGet_InvalidKey(t *testing.T) {
	_, err := Get("mining.json", "nonexistent-key")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet(t *testing.T) {
	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() { assert.NotEmpty(t, MustGet("deepdive.json", "strategy")) })
}

func TestTemplatesCarryInstruction(t *testing.T) {
	templates := map[string][]string{
		"mining.json":      {"generate", "analyze"},
		"translation.json": {"translate", "analyze"},
		"deepdive.json":    {"strategy", "extract", "competition", "probability"},
	}
	for file, keys := range templates {
		for _, key := range keys {
			tmpl, err := Get(file, key)
			require.NoError(t, err, "%s/%s", file, key)
			assert.Contains(t, tmpl, "{{.Instruction}}", "%s/%s", file, key)
		}
	}
}

func TestFormat(t *testing.T) {
	result := Format("Seed {{.Seed}} in {{.Lang}}, seed again {{.Seed}}", map[string]string{
		"Seed": "coffee shop",
		"Lang": "ko",
	})
	assert.Equal(t, "Seed coffee shop in ko, seed again coffee shop", result)
}

func TestFormat_UnknownPlaceholderKept(t *testing.T) {
	assert.Equal(t, "Hello {{.Name}}", Format("Hello {{.Name}}", map[string]string{}))
}

func TestRender(t *testing.T) {
	out, err := Render("mining.json", "generate", map[string]string{
		"Instruction": "BE BRIEF",
		"Seed":        "coffee shop",
		"Count":       "10",
	})
	require.NoError(t, err)
	assert.Contains(t, out, "BE BRIEF")
	assert.Contains(t, out, `"coffee shop"`)
	assert.Contains(t, out, "exactly 10")
}
