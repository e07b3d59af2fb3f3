package minify

import (
	"errors"
	"strings"

	"github.com/yuin/gopher-lua/parse"
)

var (
	errUnterminatedString  = errors.New("unterminated string")
	errUnterminatedBracket = errors.New("unterminated long bracket")
)

// Lua validates src with the gopher-lua parser and then strips comments and
// redundant whitespace. String literals, including long brackets, are
// copied verbatim.
var Lua = Func(func(name, src string) (string, error) {
	if _, err := parse.Parse(strings.NewReader(src), name); err != nil {
		return "", err
	}
	return stripLua(src)
})

func stripLua(src string) (string, error) {
	var (
		b       strings.Builder
		last    byte
		pending bool
	)
	emit := func(s string) {
		if pending && b.Len() > 0 && needsSpace(last, s[0]) {
			b.WriteByte(' ')
		}
		pending = false
		b.WriteString(s)
		last = s[len(s)-1]
	}

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case isSpace(c):
			pending = true
			i++

		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			j := i + 2
			if level, ok := longBracket(src, j); ok {
				end := closeLongBracket(src, j+level+2, level)
				if end < 0 {
					return "", errUnterminatedBracket
				}
				i = end
			} else {
				for j < len(src) && src[j] != '\n' {
					j++
				}
				i = j
			}
			pending = true

		case c == '"' || c == '\'':
			j := i + 1
			for ; j < len(src); j++ {
				if src[j] == '\\' {
					j++
					continue
				}
				if src[j] == c || src[j] == '\n' {
					break
				}
			}
			if j >= len(src) || src[j] != c {
				return "", errUnterminatedString
			}
			emit(src[i : j+1])
			i = j + 1

		case c == '[':
			if level, ok := longBracket(src, i); ok {
				end := closeLongBracket(src, i+level+2, level)
				if end < 0 {
					return "", errUnterminatedBracket
				}
				emit(src[i:end])
				i = end
			} else {
				emit("[")
				i++
			}

		case isWord(c):
			j := i
			for j < len(src) && isWord(src[j]) {
				j++
			}
			emit(src[i:j])
			i = j

		default:
			emit(src[i : i+1])
			i++
		}
	}
	return b.String(), nil
}

// longBracket reports whether an opening long bracket [[ or [==[ starts at
// i and returns its level.
func longBracket(src string, i int) (int, bool) {
	if i >= len(src) || src[i] != '[' {
		return 0, false
	}
	j := i + 1
	for j < len(src) && src[j] == '=' {
		j++
	}
	if j < len(src) && src[j] == '[' {
		return j - i - 1, true
	}
	return 0, false
}

// closeLongBracket returns the index just past the closing bracket of the
// given level, searching from start, or -1.
func closeLongBracket(src string, start, level int) int {
	closing := "]" + strings.Repeat("=", level) + "]"
	k := strings.Index(src[start:], closing)
	if k < 0 {
		return -1
	}
	return start + k + len(closing)
}

// needsSpace reports whether dropping the whitespace between prev and next
// would merge two tokens.
func needsSpace(prev, next byte) bool {
	switch {
	case isWord(prev) && isWord(next):
		return true
	case isWord(prev) && next == '.':
		return true
	case prev == '-' && next == '-':
		return true
	case prev == '.' && (next == '.' || isDigit(next)):
		return true
	case prev == '[' && (next == '[' || next == '='):
		return true
	case prev == '=' && next == '=':
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isWord(c byte) bool {
	return c == '_' || isDigit(c) || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
