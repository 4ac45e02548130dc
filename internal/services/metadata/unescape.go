package metadata

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// UnescapeJSLiteral decodes the body of a single-quoted JavaScript string
// literal. The result is the string the page script would pass to JSON.parse.
func UnescapeJSLiteral(s string) (string, error) {
	if !strings.ContainsRune(s, '\\') {
		return s, nil
	}

	var b strings.Builder
	b.Grow(len(s))

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}

		i++
		if i >= len(s) {
			return "", fmt.Errorf("dangling backslash at offset %d", i-1)
		}

		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\r':
			// Line continuation, \r\n counts as one terminator
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
		case '\n':
		case 'x':
			if i+2 >= len(s) {
				return "", fmt.Errorf("truncated \\x escape at offset %d", i-1)
			}
			v, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid \\x escape at offset %d: %w", i-1, err)
			}
			b.WriteRune(rune(v))
			i += 2
		case 'u':
			r, next, err := decodeUnicodeEscape(s, i)
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
			i = next
		default:
			// \\ \' \" \/ and any other escaped character stand for themselves
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}

	return b.String(), nil
}

// decodeUnicodeEscape decodes \uXXXX (joining surrogate pairs) or \u{X...}
// starting at s[i] == 'u'. It returns the rune and the index of its last byte.
func decodeUnicodeEscape(s string, i int) (rune, int, error) {
	if i+1 < len(s) && s[i+1] == '{' {
		end := strings.IndexByte(s[i+2:], '}')
		if end < 0 {
			return 0, 0, fmt.Errorf("unterminated \\u{ escape at offset %d", i-1)
		}
		v, err := strconv.ParseUint(s[i+2:i+2+end], 16, 32)
		if err != nil || v > utf8.MaxRune {
			return 0, 0, fmt.Errorf("invalid \\u{} escape at offset %d", i-1)
		}
		return rune(v), i + 2 + end, nil
	}

	r, err := hex4(s, i+1)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid \\u escape at offset %d: %w", i-1, err)
	}
	last := i + 4

	if utf16.IsSurrogate(r) {
		if last+6 < len(s) && s[last+1] == '\\' && s[last+2] == 'u' {
			if low, err := hex4(s, last+3); err == nil {
				if pair := utf16.DecodeRune(r, low); pair != utf8.RuneError {
					return pair, last + 6, nil
				}
			}
		}
		return utf8.RuneError, last, nil
	}
	return r, last, nil
}

func hex4(s string, start int) (rune, error) {
	if start+4 > len(s) {
		return 0, fmt.Errorf("truncated")
	}
	v, err := strconv.ParseUint(s[start:start+4], 16, 16)
	if err != nil {
		return 0, err
	}
	return rune(v), nil
}
