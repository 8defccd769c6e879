package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"array", `["latte", " mocha "]`, []string{"latte", " mocha "}},
		{"comma string", `"latte, mocha,espresso"`, []string{"latte", " mocha", "espresso"}},
		{"newline string", "\"latte\\nmocha\\r\\nespresso\"", []string{"latte", "mocha", "espresso"}},
		{"null", `null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got KeywordList
			require.NoError(t, json.Unmarshal([]byte(tt.input), &got))
			assert.Equal(t, KeywordList(tt.want), got)
		})
	}

	var bad KeywordList
	assert.Error(t, json.Unmarshal([]byte(`{"a": 1}`), &bad))
}

func TestKeywordList_Normalize(t *testing.T) {
	list := KeywordList{" Latte ", "latte", "", "Mocha", "MOCHA", "espresso", "  "}
	assert.Equal(t, []string{"Latte", "Mocha", "espresso"}, list.Normalize())
	assert.Empty(t, KeywordList{" ", ","}.Normalize())
}

func TestSeedKeyword_StringEqualsObject(t *testing.T) {
	var fromString, fromObject, fromAltKey SeedKeyword
	require.NoError(t, json.Unmarshal([]byte(`"coffee shop"`), &fromString))
	require.NoError(t, json.Unmarshal([]byte(`{"keyword": "coffee shop", "intent": "Informational", "volume": 0}`), &fromObject))
	require.NoError(t, json.Unmarshal([]byte(`{"keyword": " coffee shop ", "searchIntent": "informational"}`), &fromAltKey))

	want := SeedKeyword{Keyword: "coffee shop", SearchIntent: IntentInformational, Volume: 0}
	assert.Equal(t, want, fromString)
	assert.Equal(t, want, fromObject)
	assert.Equal(t, want, fromAltKey)
	assert.Equal(t, fromString.Record(), fromObject.Record())
}

func TestSeedKeyword_ObjectFields(t *testing.T) {
	var s SeedKeyword
	require.NoError(t, json.Unmarshal([]byte(`{"keyword": "buy espresso machine", "searchIntent": "Transactional", "volume": "2,400"}`), &s))
	assert.Equal(t, IntentTransactional, s.SearchIntent)
	assert.Equal(t, 2400, s.Volume)

	assert.Error(t, json.Unmarshal([]byte(`[1]`), &s))
}

func TestParseVolume(t *testing.T) {
	assert.Equal(t, 1200, ParseVolume(json.RawMessage(`1200`)))
	assert.Equal(t, 1200, ParseVolume(json.RawMessage(`1200.7`)))
	assert.Equal(t, 1200, ParseVolume(json.RawMessage(`"1,200"`)))
	assert.Equal(t, 0, ParseVolume(json.RawMessage(`"lots"`)))
	assert.Equal(t, 0, ParseVolume(json.RawMessage(`-5`)))
	assert.Equal(t, 0, ParseVolume(nil))
}

func TestKeywordRequest_Defaults(t *testing.T) {
	r := &KeywordRequest{}
	assert.Equal(t, 10, r.ClampedWordsPerRound())
	assert.True(t, r.WantsAnalysis())
	assert.Equal(t, StrategyHorizontal, r.Strategy())
	assert.Equal(t, "en", r.DisplayLanguage())

	off := false
	r = &KeywordRequest{WordsPerRound: 50, AnalyzeRanking: &off, MiningStrategy: "vertical", UILanguage: "ko"}
	assert.Equal(t, 20, r.ClampedWordsPerRound())
	assert.False(t, r.WantsAnalysis())
	assert.Equal(t, StrategyVertical, r.Strategy())
	assert.Equal(t, "ko", r.DisplayLanguage())

	r = &KeywordRequest{WordsPerRound: 2}
	assert.Equal(t, 5, r.ClampedWordsPerRound())
}

func TestKeywordRequest_Validate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
	}{
		{
			name: "valid mining",
			body: `{"mode": "keyword_mining", "seedKeyword": "coffee shop", "targetLanguage": "ko"}`,
		},
		{
			name: "valid translation",
			body: `{"mode": "batch_translation", "keywords": "latte, mocha", "targetLanguage": "ja"}`,
		},
		{
			name: "valid deep dive",
			body: `{"mode": "deep_dive", "keyword": "coffee shop", "targetLanguage": "en"}`,
		},
		{
			name:       "unknown mode",
			body:       `{"mode": "scrape", "targetLanguage": "en"}`,
			wantFields: []string{"mode"},
		},
		{
			name:       "mining without seed",
			body:       `{"mode": "keyword_mining", "targetLanguage": "ko"}`,
			wantFields: []string{"seedKeyword"},
		},
		{
			name:       "translation without keywords or language",
			body:       `{"mode": "batch_translation"}`,
			wantFields: []string{"keywords", "targetLanguage"},
		},
		{
			name:       "deep dive without keyword",
			body:       `{"mode": "deep_dive", "targetLanguage": "en"}`,
			wantFields: []string{"keyword"},
		},
		{
			name:       "bad strategy and config id",
			body:       `{"mode": "keyword_mining", "seedKeyword": "x", "targetLanguage": "en", "miningStrategy": "diagonal", "workflowConfigId": "nope"}`,
			wantFields: []string{"miningStrategy", "workflowConfigId"},
		},
		{
			name:       "inline config node without id",
			body:       `{"mode": "deep_dive", "keyword": "x", "targetLanguage": "en", "workflowConfig": {"workflowId": "deep_dive", "nodes": [{"prompt": "p"}]}}`,
			wantFields: []string{"workflowConfig.nodes[0].id"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req KeywordRequest
			require.NoError(t, json.Unmarshal([]byte(tt.body), &req))
			err := req.Validate()
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ElementsMatch(t, tt.wantFields, InvalidFields(err))
		})
	}
}

func TestWorkflowConfig_Node(t *testing.T) {
	cfg := &WorkflowConfig{
		WorkflowID: ModeKeywordMining,
		Nodes:      []WorkflowNode{{ID: "mining-gen", Prompt: "custom"}, {ID: "mining-analyze"}},
	}
	n, ok := cfg.Node("mining-gen")
	assert.True(t, ok)
	assert.Equal(t, "custom", n.Prompt)

	_, ok = cfg.Node("deepdive-strategy")
	assert.False(t, ok)

	var nilCfg *WorkflowConfig
	_, ok = nilCfg.Node("mining-gen")
	assert.False(t, ok)
}

func TestWorkflowConfig_Validate(t *testing.T) {
	ok := &WorkflowConfig{WorkflowID: ModeDeepDive, Nodes: []WorkflowNode{{ID: "deepdive-strategy"}}}
	assert.NoError(t, ok.Validate())

	assert.Error(t, (&WorkflowConfig{}).Validate())
	assert.Error(t, (&WorkflowConfig{WorkflowID: "summarize"}).Validate())

	missingNodeID := &WorkflowConfig{WorkflowID: ModeKeywordMining, Nodes: []WorkflowNode{{Prompt: "x"}}}
	err := missingNodeID.Validate()
	require.Error(t, err)
	assert.Equal(t, []string{"nodes[0].id"}, InvalidFields(err))
}

func TestMode_Valid(t *testing.T) {
	assert.True(t, ModeDeepDive.Valid())
	assert.False(t, Mode("other").Valid())
}
