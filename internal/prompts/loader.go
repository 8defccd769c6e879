// Package prompts holds the compiled-in prompt templates for every pipeline stage.
// Prompts are stored as JSON files and embedded at compile time.
package prompts

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
)

//go:embed *.json
var promptFiles embed.FS

// DefaultsFile maps stage ids to their default instruction.
const DefaultsFile = "defaults.json"

var (
	files     map[string]map[string]string
	filesErr  error
	filesOnce sync.Once
)

// loadAll parses every embedded file once; the set never changes at runtime.
func loadAll() (map[string]map[string]string, error) {
	filesOnce.Do(func() {
		entries, err := fs.Glob(promptFiles, "*.json")
		if err != nil {
			filesErr = eris.Wrap(err, "list prompt files")
			return
		}
		parsed := make(map[string]map[string]string, len(entries))
		for _, name := range entries {
			data, err := promptFiles.ReadFile(name)
			if err != nil {
				filesErr = eris.Wrapf(err, "failed to read prompt file %s", name)
				return
			}
			var prompts map[string]string
			if err := json.Unmarshal(data, &prompts); err != nil {
				filesErr = eris.Wrapf(err, "failed to parse prompt file %s", name)
				return
			}
			parsed[name] = prompts
		}
		files = parsed
	})
	return files, filesErr
}

func loadFile(filename string) (map[string]string, error) {
	all, err := loadAll()
	if err != nil {
		return nil, err
	}
	prompts, ok := all[filename]
	if !ok {
		return nil, eris.Errorf("unknown prompt file %s", filename)
	}
	return prompts, nil
}

// Get retrieves a prompt by filename and key.
func Get(filename, key string) (string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return "", err
	}

	prompt, exists := prompts[key]
	if !exists {
		return "", eris.Errorf("prompt key %q not found in %s", key, filename)
	}
	return prompt, nil
}

// MustGet retrieves a prompt by filename and key, panicking if not found.
func MustGet(filename, key string) string {
	prompt, err := Get(filename, key)
	if err != nil {
		panic(fmt.Sprintf("failed to load prompt: %v", err))
	}
	return prompt
}

// Default returns the compiled-in instruction for a stage id.
func Default(stageID string) (string, error) {
	return Get(DefaultsFile, stageID)
}

// Format replaces {{.Key}} placeholders with values from data.
// Unknown placeholders are left in place.
func Format(template string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for key, value := range data {
		pairs = append(pairs, "{{."+key+"}}", value)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

// Render loads a template and formats it.
func Render(filename, key string, data map[string]string) (string, error) {
	tmpl, err := Get(filename, key)
	if err != nil {
		return "", err
	}
	return Format(tmpl, data), nil
}

// List returns the sorted prompt keys in a file.
func List(filename string) ([]string, error) {
	prompts, err := loadFile(filename)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(prompts))
	for key := range prompts {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
