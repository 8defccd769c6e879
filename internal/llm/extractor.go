package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrExtractionFailed means no decodable JSON could be found in a model reply.
// Callers always recover from it with a documented default.
var ErrExtractionFailed = errors.New("llm: extraction failed")

// Extractor pulls a JSON value out of free-form model text into v.
type Extractor interface {
	Extract(text string, v any) error
}

// SpanExtractor decodes the greedy span from the first Open to the last Close
// rune. Prose before and after the JSON is ignored.
type SpanExtractor struct {
	Open, Close string
}

// ObjectExtractor takes the span from the first '{' to the last '}'.
var ObjectExtractor Extractor = SpanExtractor{Open: "{", Close: "}"}

// ArrayExtractor takes the span from the first '[' to the last ']'.
var ArrayExtractor Extractor = SpanExtractor{Open: "[", Close: "]"}

// Extract implements Extractor.
func (s SpanExtractor) Extract(text string, v any) error {
	start := strings.Index(text, s.Open)
	end := strings.LastIndex(text, s.Close)
	if start < 0 || end <= start {
		return eris.Wrapf(ErrExtractionFailed, "no %s...%s span", s.Open, s.Close)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), v); err != nil {
		return eris.Wrapf(ErrExtractionFailed, "decode: %v", err)
	}
	return nil
}

// FirstOf tries each extractor in order and returns the first success.
type FirstOf []Extractor

// Extract implements Extractor.
func (f FirstOf) Extract(text string, v any) error {
	err := eris.Wrap(ErrExtractionFailed, "no extractors")
	for _, e := range f {
		if err = e.Extract(text, v); err == nil {
			return nil
		}
	}
	return err
}

// FieldExtractor decodes one non-empty field of the outermost object, for
// replies that wrap the payload as {"<Key>": ...}.
type FieldExtractor struct {
	Key string
}

// Extract implements Extractor.
func (f FieldExtractor) Extract(text string, v any) error {
	var wrapped map[string]json.RawMessage
	if err := ObjectExtractor.Extract(text, &wrapped); err != nil {
		return err
	}
	raw := strings.TrimSpace(string(wrapped[f.Key]))
	if raw == "" || raw == "null" || raw == "[]" || raw == "{}" {
		return eris.Wrapf(ErrExtractionFailed, "no %q field", f.Key)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return eris.Wrapf(ErrExtractionFailed, "decode %q: %v", f.Key, err)
	}
	return nil
}

// Extract decodes the first-brace-to-last-brace span of text into v.
func Extract(text string, v any) error {
	return ObjectExtractor.Extract(text, v)
}

// OutputField describes one key of the JSON a prompt asks for.
type OutputField struct {
	Name        string
	Type        string
	Description string
}

// OutputFormat renders the JSON contract appended to a prompt. When array is
// true the model is asked for a list of such objects.
func OutputFormat(fields []OutputField, array bool) string {
	var sb strings.Builder

	sb.WriteString("Return ONLY valid JSON")
	if array {
		sb.WriteString(", an array of objects with this exact structure:\n")
	} else {
		sb.WriteString(" matching this exact structure:\n")
	}
	sb.WriteString("{\n")
	for i, f := range fields {
		typeHint := f.Type
		if typeHint == "" {
			typeHint = "string"
		}
		fmt.Fprintf(&sb, "  %q: %s", f.Name, typeHint)
		if i < len(fields)-1 {
			sb.WriteString(",")
		}
		if f.Description != "" {
			fmt.Fprintf(&sb, " // %s", f.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	sb.WriteString("No markdown, no explanation, no code fences.")
	return sb.String()
}
