package export

import (
	"strings"
	"unicode"
)

const maxNameRunes = 120

// SanitizeName turns an asset display name into a portable folder name.
// Path separators, characters reserved on Windows and control characters
// become "_"; surrounding dots and spaces are trimmed.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(name), " ") {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	out := []rune(strings.Trim(b.String(), " ."))
	if len(out) > maxNameRunes {
		out = []rune(strings.TrimRight(string(out[:maxNameRunes]), " ."))
	}
	if len(out) == 0 {
		return "untitled"
	}
	return string(out)
}
