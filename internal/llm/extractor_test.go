package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Probability string `json:"probability"`
	Analysis    string `json:"analysis"`
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    verdict
		wantErr bool
	}{
		{
			name:  "bare object",
			input: `{"probability": "High", "analysis": "thin SERP"}`,
			want:  verdict{Probability: "High", Analysis: "thin SERP"},
		},
		{
			name:  "prose around object",
			input: "Sure! Here it is:\n{\"probability\": \"Low\"}\nHope this helps.",
			want:  verdict{Probability: "Low"},
		},
		{
			name:  "fenced",
			input: "```json\n{\"probability\": \"Medium\"}\n```",
			want:  verdict{Probability: "Medium"},
		},
		{
			name:  "nested braces inside strings",
			input: `{"probability": "High", "analysis": "use {brand} in title"}`,
			want:  verdict{Probability: "High", Analysis: "use {brand} in title"},
		},
		{
			name:    "no braces",
			input:   "The probability is high.",
			wantErr: true,
		},
		{
			name:    "two objects make the greedy span invalid",
			input:   `{"probability": "High"} or {"probability": "Low"}`,
			wantErr: true,
		},
		{
			name:    "closing before opening",
			input:   "} nothing {",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got verdict
			err := Extract(tt.input, &got)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrExtractionFailed))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArrayExtractor(t *testing.T) {
	var words []string
	require.NoError(t, ArrayExtractor.Extract(`Keywords: ["latte art", "cold brew"] done`, &words))
	assert.Equal(t, []string{"latte art", "cold brew"}, words)

	err := ArrayExtractor.Extract("none", &words)
	assert.ErrorIs(t, err, ErrExtractionFailed)
}

func TestFirstOf(t *testing.T) {
	type item struct {
		Keyword string `json:"keyword"`
	}

	var list []item
	ex := FirstOf{ArrayExtractor, ObjectExtractor}
	require.NoError(t, ex.Extract(`[{"keyword": "espresso"}]`, &list))
	assert.Len(t, list, 1)

	var single item
	require.NoError(t, FirstOf{ArrayExtractor, ObjectExtractor}.Extract(`{"keyword": "mocha"}`, &single))
	assert.Equal(t, "mocha", single.Keyword)

	assert.ErrorIs(t, FirstOf{}.Extract("{}", &single), ErrExtractionFailed)
}

func TestOutputFormat(t *testing.T) {
	out := OutputFormat([]OutputField{
		{Name: "keyword", Description: "in the target language"},
		{Name: "volume", Type: "number"},
	}, true)

	assert.Contains(t, out, "an array of objects")
	assert.Contains(t, out, `"keyword": string, // in the target language`)
	assert.Contains(t, out, `"volume": number`)
	assert.Contains(t, out, "No markdown")
}

func TestFieldExtractor(t *testing.T) {
	var words []string
	ex := FieldExtractor{Key: "keywords"}
	require.NoError(t, ex.Extract(`Result: {"keywords": ["latte art", "cold brew"]}`, &words))
	assert.Equal(t, []string{"latte art", "cold brew"}, words)

	for _, text := range []string{`{"keywords": []}`, `{"other": ["x"]}`, `{"keywords": "x"}`, "none"} {
		assert.ErrorIs(t, ex.Extract(text, &words), ErrExtractionFailed, text)
	}
}
