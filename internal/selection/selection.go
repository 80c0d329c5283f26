// Package selection picks the manifest entries to restore in a partial decryption.
//
// Patterns follow find -path semantics against the slash-separated relative path.
// A selected directory brings its whole subtree along, and every selected entry
// brings the directories above it so the restored tree stays well formed.
package selection

import (
	"fmt"
	"path"

	"github.com/idelchi/foldercrypt/internal/manifest"
)

// Selector filters manifest entries by pattern.
// A selector without patterns selects everything.
type Selector struct {
	patterns []Pattern
}

// New compiles the given globs.
func New(globs []string) (*Selector, error) {
	s := &Selector{patterns: make([]Pattern, 0, len(globs))}

	for _, g := range globs {
		p, err := Compile(g)
		if err != nil {
			return nil, fmt.Errorf("compiling selection: %w", err)
		}

		s.patterns = append(s.patterns, p)
	}

	return s, nil
}

// All reports whether the selector lets every entry through.
func (s *Selector) All() bool {
	return s == nil || len(s.patterns) == 0
}

// Match reports whether rel matches any pattern.
func (s *Selector) Match(rel string) bool {
	if s.All() {
		return true
	}

	for _, p := range s.patterns {
		if p.Match(rel) {
			return true
		}
	}

	return false
}

// Apply returns the selected entries in manifest order.
func (s *Selector) Apply(entries []manifest.Entry) []manifest.Entry {
	if s.All() {
		return entries
	}

	// subtrees holds directories whose contents are selected wholesale.
	subtrees := make(map[string]bool)
	keep := make(map[string]bool, len(entries))

	for _, e := range entries {
		if !s.Match(e.RelativePath) && !within(subtrees, e.RelativePath) {
			continue
		}

		keep[e.RelativePath] = true

		if e.IsDirectory {
			subtrees[e.RelativePath] = true
		}

		for dir := path.Dir(e.RelativePath); dir != "."; dir = path.Dir(dir) {
			keep[dir] = true
		}
	}

	selected := make([]manifest.Entry, 0, len(keep))

	for _, e := range entries {
		if keep[e.RelativePath] {
			selected = append(selected, e)
		}
	}

	return selected
}

// within reports whether some directory above rel is in subtrees.
func within(subtrees map[string]bool, rel string) bool {
	for dir := path.Dir(rel); dir != "."; dir = path.Dir(dir) {
		if subtrees[dir] {
			return true
		}
	}

	return false
}
