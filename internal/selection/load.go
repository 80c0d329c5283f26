package selection

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/afero"
	"github.com/tidwall/jsonc"
)

// LoadPatterns reads a JSONC array of globs, comments and trailing commas allowed.
func LoadPatterns(fsys afero.Fs, name string) ([]string, error) {
	data, err := afero.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading patterns file %q: %w", name, err)
	}

	var patterns []string
	if err := json.Unmarshal(jsonc.ToJSONInPlace(data), &patterns); err != nil {
		return nil, fmt.Errorf("parsing patterns file %q: %w", name, err)
	}

	return patterns, nil
}
