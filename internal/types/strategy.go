package types

import (
	"regexp"
	"strings"
)

// ContentSection is one heading of the recommended page outline, in the
// target language and the caller's UI language.
type ContentSection struct {
	Header            string `json:"header"`
	HeaderTranslation string `json:"headerTranslation,omitempty"`
	Body              string `json:"body"`
	BodyTranslation   string `json:"bodyTranslation,omitempty"`
}

// StrategyReport is the Deep Dive content plan for one keyword.
type StrategyReport struct {
	TargetKeyword               string           `json:"targetKeyword"`
	PageTitle                   string           `json:"pageTitle"`
	PageTitleTranslation        string           `json:"pageTitleTranslation,omitempty"`
	MetaDescription             string           `json:"metaDescription"`
	MetaDescriptionTranslation  string           `json:"metaDescriptionTranslation,omitempty"`
	URLSlug                     string           `json:"urlSlug"`
	ContentStructure            []ContentSection `json:"contentStructure"`
	LongTailKeywords            []string         `json:"longTailKeywords"`
	LongTailKeywordsTranslation []string         `json:"longTailKeywordsTranslation,omitempty"`
	RecommendedWordCount        int              `json:"recommendedWordCount"`
}

// DefaultWordCount is used when the model omits or garbles the word count.
const DefaultWordCount = 1500

var slugInvalid = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Slugify lowercases s and joins letter/digit runs with hyphens. Non-Latin
// scripts are kept as-is.
func Slugify(s string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(slug, "-")
}

// FallbackStrategyReport builds the minimal report used when the model's
// strategy output cannot be parsed.
func FallbackStrategyReport(keyword string) *StrategyReport {
	return &StrategyReport{
		TargetKeyword:        keyword,
		PageTitle:            keyword,
		URLSlug:              Slugify(keyword),
		ContentStructure:     []ContentSection{},
		LongTailKeywords:     []string{},
		RecommendedWordCount: DefaultWordCount,
	}
}

// Normalize fills empty fields so the report always has the same shape.
func (r *StrategyReport) Normalize(keyword string) {
	if r.TargetKeyword == "" {
		r.TargetKeyword = keyword
	}
	if r.PageTitle == "" {
		r.PageTitle = keyword
	}
	if r.URLSlug == "" {
		r.URLSlug = Slugify(r.TargetKeyword)
	}
	if r.ContentStructure == nil {
		r.ContentStructure = []ContentSection{}
	}
	if r.LongTailKeywords == nil {
		r.LongTailKeywords = []string{}
	}
	if r.RecommendedWordCount <= 0 {
		r.RecommendedWordCount = DefaultWordCount
	}
}

// Source is one search result cited by a competition note.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// CompetitionNote summarizes who currently ranks for a core keyword.
type CompetitionNote struct {
	Keyword      string   `json:"keyword"`
	Analysis     string   `json:"analysis"`
	SearchFailed bool     `json:"searchFailed,omitempty"`
	Sources      []Source `json:"sources,omitempty"`
}

// SearchFailedNote is recorded for a keyword whose search or analysis failed.
const SearchFailedNote = "search failed"
