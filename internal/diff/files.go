// Package diff extracts file lists from unified diffs for the agent's
// setup payload.
package diff

import (
	"fmt"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// ModifiedFiles returns the paths of files a patch modifies, excluding
// files it adds or deletes.
func ModifiedFiles(patch string) ([]string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}
	var out []string
	for _, f := range files {
		if f.IsNew || f.IsDelete {
			continue
		}
		out = append(out, fileName(f))
	}
	return out, nil
}

// ChangedFiles returns the paths of files a patch modifies or adds.
func ChangedFiles(patch string) ([]string, error) {
	files, _, err := gitdiff.Parse(strings.NewReader(patch))
	if err != nil {
		return nil, fmt.Errorf("parsing patch: %w", err)
	}
	var out []string
	for _, f := range files {
		if f.IsDelete {
			continue
		}
		out = append(out, fileName(f))
	}
	return out, nil
}

// BulletList formats paths as the newline-joined bullet list the agent's
// setup payload expects. An empty list renders as an empty string.
func BulletList(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	var b strings.Builder
	for i, p := range paths {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(p)
	}
	return b.String()
}

func fileName(f *gitdiff.File) string {
	name := f.NewName
	if name == "" {
		name = f.OldName
	}
	// Traditional unified diffs keep the a/ and b/ prefixes.
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		name = name[2:]
	}
	return name
}
