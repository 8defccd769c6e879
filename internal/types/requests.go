package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Mode identifies one of the three pipelines. The same values are the
// workflowId of a workflow config.
type Mode string

// Supported modes.
const (
	ModeKeywordMining    Mode = "keyword_mining"
	ModeBatchTranslation Mode = "batch_translation"
	ModeDeepDive         Mode = "deep_dive"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeKeywordMining, ModeBatchTranslation, ModeDeepDive:
		return true
	}
	return false
}

// Mining strategies.
const (
	StrategyHorizontal = "horizontal"
	StrategyVertical   = "vertical"
)

// Words-per-round bounds for keyword mining.
const (
	MinWordsPerRound     = 5
	MaxWordsPerRound     = 20
	DefaultWordsPerRound = 10
)

// WorkflowNode overrides the prompt of one pipeline stage.
type WorkflowNode struct {
	ID     string `json:"id" validate:"required"`
	Prompt string `json:"prompt,omitempty"`
}

// WorkflowConfig customizes the prompts a pipeline uses.
type WorkflowConfig struct {
	ID         string         `json:"id,omitempty"`
	WorkflowID Mode           `json:"workflowId" validate:"required"`
	Name       string         `json:"name,omitempty"`
	Nodes      []WorkflowNode `json:"nodes" validate:"dive"`
}

// Node returns the node for a stage id.
func (c *WorkflowConfig) Node(stageID string) (WorkflowNode, bool) {
	if c == nil {
		return WorkflowNode{}, false
	}
	for _, n := range c.Nodes {
		if n.ID == stageID {
			return n, true
		}
	}
	return WorkflowNode{}, false
}

// KeywordList accepts either a JSON array of strings or one string separated
// by commas or newlines.
type KeywordList []string

// UnmarshalJSON implements json.Unmarshaler.
func (k *KeywordList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*k = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' || r == '\r' })
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return errors.New("keywords must be a string or an array of strings")
	}
	*k = list
	return nil
}

// Normalize trims every keyword, drops empties and removes case-insensitive
// duplicates, keeping the first spelling seen.
func (k KeywordList) Normalize() []string {
	seen := make(map[string]struct{}, len(k))
	out := make([]string, 0, len(k))
	for _, kw := range k {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// SeedKeyword is the deep dive input: a bare string or
// {keyword, intent|searchIntent, volume}.
type SeedKeyword struct {
	Keyword      string       `json:"keyword"`
	SearchIntent SearchIntent `json:"searchIntent"`
	Volume       int          `json:"volume"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SeedKeyword) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var kw string
		if err := json.Unmarshal(data, &kw); err != nil {
			return err
		}
		*s = SeedKeyword{Keyword: kw}
		s.normalize()
		return nil
	}

	var raw struct {
		Keyword      string          `json:"keyword"`
		Intent       string          `json:"intent"`
		SearchIntent string          `json:"searchIntent"`
		Volume       json.RawMessage `json:"volume"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("keyword must be a string or an object with a keyword field")
	}
	intent := raw.SearchIntent
	if intent == "" {
		intent = raw.Intent
	}
	*s = SeedKeyword{
		Keyword:      raw.Keyword,
		SearchIntent: ParseSearchIntent(intent),
		Volume:       ParseVolume(raw.Volume),
	}
	s.normalize()
	return nil
}

func (s *SeedKeyword) normalize() {
	s.Keyword = strings.TrimSpace(s.Keyword)
	if s.SearchIntent == "" {
		s.SearchIntent = IntentInformational
	}
	if s.Volume < 0 {
		s.Volume = 0
	}
}

// Record converts the seed to a keyword record.
func (s SeedKeyword) Record() KeywordRecord {
	return KeywordRecord{
		ID:           "seed",
		Keyword:      s.Keyword,
		SearchIntent: s.SearchIntent,
		Volume:       s.Volume,
	}
}

// ParseVolume reads a volume that models emit as a number, a numeric string
// or text like "1,200". Anything unreadable is 0.
func ParseVolume(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return clampVolume(f)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0
	}
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return clampVolume(f)
	}
	return 0
}

func clampVolume(f float64) int {
	if f < 0 {
		return 0
	}
	return int(f)
}

// KeywordRequest is the body of POST /v1/keywords. Which fields are required
// depends on Mode.
type KeywordRequest struct {
	Mode Mode `json:"mode" validate:"required,oneof=keyword_mining batch_translation deep_dive"`

	// Keyword mining
	SeedKeyword      string   `json:"seedKeyword" validate:"required_if=Mode keyword_mining"`
	WordsPerRound    int      `json:"wordsPerRound"`
	ExistingKeywords []string `json:"existingKeywords"`
	RoundIndex       int      `json:"roundIndex" validate:"gte=0"`
	MiningStrategy   string   `json:"miningStrategy" validate:"omitempty,oneof=horizontal vertical"`
	UserSuggestion   string   `json:"userSuggestion"`
	AnalyzeRanking   *bool    `json:"analyzeRanking"`

	// Batch translation
	Keywords KeywordList `json:"keywords" validate:"required_if=Mode batch_translation"`

	// Deep dive
	Keyword *SeedKeyword `json:"keyword" validate:"required_if=Mode deep_dive"`

	// Shared
	TargetLanguage    string          `json:"targetLanguage" validate:"required"`
	UILanguage        string          `json:"uiLanguage"`
	SystemInstruction string          `json:"systemInstruction"`
	AnalyzePrompt     string          `json:"analyzePrompt"`
	StrategyPrompt    string          `json:"strategyPrompt"`
	WorkflowConfigID  string          `json:"workflowConfigId" validate:"omitempty,uuid"`
	WorkflowConfig    *WorkflowConfig `json:"workflowConfig"`
	SkipCreditsCheck  bool            `json:"skipCreditsCheck"`
}

// ClampedWordsPerRound returns WordsPerRound within [5, 20], defaulting to 10.
func (r *KeywordRequest) ClampedWordsPerRound() int {
	n := r.WordsPerRound
	if n == 0 {
		n = DefaultWordsPerRound
	}
	return min(max(n, MinWordsPerRound), MaxWordsPerRound)
}

// WantsAnalysis reports whether ranking analysis should run (default true).
func (r *KeywordRequest) WantsAnalysis() bool {
	return r.AnalyzeRanking == nil || *r.AnalyzeRanking
}

// Strategy returns the mining strategy, defaulting to horizontal.
func (r *KeywordRequest) Strategy() string {
	if r.MiningStrategy == StrategyVertical {
		return StrategyVertical
	}
	return StrategyHorizontal
}

// DisplayLanguage returns UILanguage, defaulting to English.
func (r *KeywordRequest) DisplayLanguage() string {
	if r.UILanguage == "" {
		return "en"
	}
	return r.UILanguage
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Validate validates the KeywordRequest using the validator.
func (r *KeywordRequest) Validate() error {
	return requestValidator().Struct(r)
}

// Validate checks a stored or inline workflow config on its own.
func (c *WorkflowConfig) Validate() error {
	if err := requestValidator().Struct(c); err != nil {
		return err
	}
	if !c.WorkflowID.Valid() {
		return errors.New("workflowId must be keyword_mining, batch_translation or deep_dive")
	}
	return nil
}

// InvalidFields lists the JSON names of the fields a validation error rejects.
// It returns nil for errors that did not come from Validate.
func InvalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.IndexByte(ns, '.'); i >= 0 {
			ns = ns[i+1:]
		}
		fields = append(fields, ns)
	}
	return fields
}
