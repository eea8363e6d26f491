package textvec

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Unicode classes for the Python str semantics of \w, \d and \s.
const (
	wordClass  = `\p{L}\p{N}_`
	digitClass = `\p{Nd}`
	spaceClass = `\s\v\x1c-\x1f\x85\p{Z}`
)

// tokenPattern is a token_pattern translated to RE2. RE2 only knows ASCII \w
// and \b, so word classes are rewritten to Unicode classes and word boundaries
// at either end are checked against the neighbouring runes after each match.
type tokenPattern struct {
	re       *regexp.Regexp
	leading  bool
	trailing bool
}

func compileTokenPattern(src string) (*tokenPattern, error) {
	expr, leading, trailing, err := translatePattern(strings.TrimPrefix(src, "(?u)"))
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &tokenPattern{re: re, leading: leading, trailing: trailing}, nil
}

func translatePattern(src string) (expr string, leading, trailing bool, err error) {
	var b strings.Builder
	inClass := false
	classStart := false // just after [ or [^, where ] is a literal
	depth := 0
	alternation := false

	for i := 0; i < len(src); i++ {
		c := src[i]
		if c != '\\' {
			switch {
			case inClass && c == ']' && !classStart:
				inClass = false
			case inClass && c == '^' && i > 0 && src[i-1] == '[':
				b.WriteByte(c)
				continue
			case !inClass && c == '[':
				inClass = true
				classStart = true
				b.WriteByte(c)
				continue
			case !inClass && c == '(':
				depth++
			case !inClass && c == ')':
				depth--
			case !inClass && c == '|' && depth == 0:
				alternation = true
			}
			classStart = false
			b.WriteByte(c)
			continue
		}

		classStart = false
		if i+1 >= len(src) {
			return "", false, false, errors.New("trailing backslash")
		}
		i++
		switch esc := src[i]; esc {
		case 'w':
			b.WriteString(wrapClass(wordClass, inClass))
		case 'd':
			b.WriteString(digitClass)
		case 'D':
			b.WriteString(`\P{Nd}`)
		case 's':
			b.WriteString(wrapClass(spaceClass, inClass))
		case 'W', 'S':
			if inClass {
				return "", false, false, fmt.Errorf(`\%c inside a character class is not supported`, esc)
			}
			class := wordClass
			if esc == 'S' {
				class = spaceClass
			}
			b.WriteString(`[^` + class + `]`)
		case 'b':
			switch {
			case inClass:
				b.WriteString(`\x08`)
			case i == 1:
				leading = true
			case i == len(src)-1:
				trailing = true
			default:
				return "", false, false, errors.New(`\b is only supported at the start or end of the pattern`)
			}
		case 'B':
			return "", false, false, errors.New(`\B is not supported`)
		default:
			b.WriteByte('\\')
			b.WriteByte(esc)
		}
	}

	if alternation && (leading || trailing) {
		return "", false, false, errors.New(`\b cannot be combined with top-level alternation`)
	}
	return b.String(), leading, trailing, nil
}

func wrapClass(class string, inClass bool) string {
	if inClass {
		return class
	}
	return "[" + class + "]"
}

// findAll returns the non-overlapping matches in s, leftmost first. A match that
// fails a boundary check is dropped and the search resumes one rune after its start.
func (p *tokenPattern) findAll(s string) []string {
	if !p.leading && !p.trailing {
		return p.re.FindAllString(s, -1)
	}

	var out []string
	for pos := 0; pos <= len(s); {
		loc := p.re.FindStringIndex(s[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if (p.leading && !wordBoundary(s, start)) || (p.trailing && !wordBoundary(s, end)) || start == end {
			if start >= len(s) {
				break
			}
			_, size := utf8.DecodeRuneInString(s[start:])
			pos = start + size
			continue
		}
		out = append(out, s[start:end])
		pos = end
	}
	return out
}

// wordBoundary reports whether i sits between a word rune and a non-word rune.
func wordBoundary(s string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:i])
		before = isWordRune(r)
	}
	if i < len(s) {
		r, _ := utf8.DecodeRuneInString(s[i:])
		after = isWordRune(r)
	}
	return before != after
}
