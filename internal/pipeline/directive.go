package pipeline

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"shapebot/internal/domain"
)

const defaultCodeExtension = "txt"

// directiveTags maps each kind to the tag name that opens its marker.
var directiveTags = map[domain.DirectiveKind]string{
	domain.DirectiveDeepthink:     "<deepthink",
	domain.DirectiveImageGenerate: "<imagegenerate",
	domain.DirectiveCodeSimple:    "<codesimple",
}

// ScanKind returns the markers of one kind found in text, left to right.
// Marker shapes, matched case-insensitively:
//
//	<Deepthink: TEXT>
//	<imageGenerate: TEXT>
//	<codeSimple[PARAM]: TEXT>
//
// Whitespace after the colon is skipped. TEXT runs to the first '>' and may
// not cross a line break. PARAM is whatever sits between the tag name and the
// colon, brackets removed; it defaults to "txt". Matches never overlap.
func ScanKind(text string, kind domain.DirectiveKind) []domain.Directive {
	tag, ok := directiveTags[kind]
	if !ok {
		return nil
	}

	var out []domain.Directive
	pos := 0
	for pos < len(text) {
		idx := indexFold(text[pos:], tag)
		if idx < 0 {
			break
		}
		start := pos + idx
		d, ok := parseMarker(text, start, start+len(tag), kind)
		if !ok {
			pos = start + 1
			continue
		}
		out = append(out, d)
		pos = d.End
	}
	return out
}

// parseMarker parses the rest of a marker whose tag ends at i.
func parseMarker(text string, start, i int, kind domain.DirectiveKind) (domain.Directive, bool) {
	d := domain.Directive{Kind: kind, Start: start}

	if kind == domain.DirectiveCodeSimple {
		colon := i
		for colon < len(text) && text[colon] != ':' {
			if isLineBreak(text[colon]) || text[colon] == '>' {
				return d, false
			}
			colon++
		}
		if colon == len(text) {
			return d, false
		}
		d.Param = codeParam(text[i:colon])
		i = colon
	}

	if i >= len(text) || text[i] != ':' {
		return d, false
	}
	i++

	for i < len(text) {
		r, size := utf8.DecodeRuneInString(text[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}

	end := i
	for end < len(text) && text[end] != '>' {
		if isLineBreak(text[end]) {
			return d, false
		}
		end++
	}
	if end == len(text) {
		return d, false
	}

	d.Payload = text[i:end]
	d.End = end + 1
	return d, true
}

func codeParam(raw string) string {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, "[")
	p = strings.TrimSuffix(p, "]")
	p = strings.TrimSpace(p)
	if p == "" {
		return defaultCodeExtension
	}
	return p
}

func isLineBreak(b byte) bool {
	return b == '\n' || b == '\r'
}

// indexFold is strings.Index with ASCII case folding. sub must be lower-case
// ASCII; offsets refer to s unchanged.
func indexFold(s, sub string) int {
	n := len(sub)
	for i := 0; i+n <= len(s); i++ {
		if hasPrefixFold(s[i:], sub) {
			return i
		}
	}
	return -1
}

func hasPrefixFold(s, lowerPrefix string) bool {
	for j := 0; j < len(lowerPrefix); j++ {
		c := s[j]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != lowerPrefix[j] {
			return false
		}
	}
	return true
}
