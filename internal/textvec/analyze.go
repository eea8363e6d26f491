package textvec

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// IsSpace reports whether r is whitespace in the sense of Python's str.isspace.
// That is unicode.IsSpace plus the information separators U+001C to U+001F.
func IsSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

// stripAccentsUnicode decomposes to NFKD and drops combining marks.
func stripAccentsUnicode(s string) string {
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if norm.NFKD.PropertiesString(string(r)).CCC() != 0 {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// stripAccentsASCII decomposes to NFKD and drops everything outside ASCII.
func stripAccentsASCII(s string) string {
	if isASCII(s) {
		return s
	}
	var b strings.Builder
	for _, r := range norm.NFKD.String(s) {
		if r < utf8.RuneSelf {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// collapseSpace replaces every run of two or more whitespace runes with one space.
// A single whitespace rune is kept as is.
func collapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if !IsSpace(runes[i]) {
			b.WriteRune(runes[i])
			continue
		}
		j := i
		for j+1 < len(runes) && IsSpace(runes[j+1]) {
			j++
		}
		if j > i {
			b.WriteByte(' ')
			i = j
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// charNgrams returns every rune window of length minN..maxN, shortest first.
func charNgrams(doc string, minN, maxN int) []string {
	runes := []rune(collapseSpace(doc))
	var out []string
	for n := minN; n <= maxN && n <= len(runes); n++ {
		for i := 0; i+n <= len(runes); i++ {
			out = append(out, string(runes[i:i+n]))
		}
	}
	return out
}

// charWBNgrams builds rune n-grams inside word boundaries. Each word is padded
// with one space on both sides; a padded word shorter than n yields itself once.
func charWBNgrams(doc string, minN, maxN int) []string {
	var out []string
	for _, w := range strings.FieldsFunc(collapseSpace(doc), IsSpace) {
		padded := []rune(" " + w + " ")
		for n := minN; n <= maxN; n++ {
			offset := 0
			out = append(out, string(padded[offset:min(offset+n, len(padded))]))
			for offset+n < len(padded) {
				offset++
				out = append(out, string(padded[offset:offset+n]))
			}
			if offset == 0 {
				break
			}
		}
	}
	return out
}
