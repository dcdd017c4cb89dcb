package organize

import "strings"

// Slugify normalizes a filename into a flat, safe name.
// Trims surrounding whitespace, turns spaces into underscores, drops every
// character outside [A-Za-z0-9._-], and collapses runs of underscores.
// Returns "file" if nothing survives.
func Slugify(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")

	var b strings.Builder
	b.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		if !isSlugRune(r) {
			continue
		}
		if r == '_' {
			if lastUnderscore {
				continue
			}
			lastUnderscore = true
		} else {
			lastUnderscore = false
		}
		b.WriteRune(r)
	}

	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

func isSlugRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
