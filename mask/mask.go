// Package mask reversibly replaces wiki markup constructs (templates,
// tables, tags) with short placeholder tokens so that text processing can
// reason about plain text without being confused by nested markup syntax.
//
// A placeholder is "\x01<index><type>\x02" where index is 1-based into the
// accompanying Table and type is a one-letter tag. Distinct types let
// several hide passes coexist in one string without ambiguity. Unhide
// substitutes tokens back until none remain, so a hidden region that itself
// contains tokens from an earlier pass resolves correctly.
package mask

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Marker type tags. One letter per construct class.
const (
	TypeTemplate = 't'
	TypeTable    = 'b'
	TypeTag      = 'g'
	TypeGeneric  = 'x'
)

type entry struct {
	text string
	typ  byte
}

// Table accumulates the original substrings removed by hide passes.
// One Table serves all passes over the same string.
type Table struct {
	entries []entry
}

// Len returns the number of hidden regions.
func (t *Table) Len() int { return len(t.entries) }

func (t *Table) put(s string, typ byte) string {
	t.entries = append(t.entries, entry{text: s, typ: typ})
	return fmt.Sprintf("\x01%d%c\x02", len(t.entries), typ)
}

var markerRe = regexp.MustCompile("\x01(\\d+)[a-z]\x02")

// Hide replaces every match of re in text with a placeholder token of the
// given type and records the original in tbl. Text with no matches is
// returned unchanged.
func Hide(text string, re *regexp.Regexp, typ byte, tbl *Table) string {
	return re.ReplaceAllStringFunc(text, func(m string) string {
		return tbl.put(m, typ)
	})
}

// Unhide substitutes placeholder tokens back until none remain. Tokens with
// an index outside the table are dropped. The pass count is capped so a
// corrupted table that references itself cannot loop forever.
func Unhide(text string, tbl *Table) string {
	for pass := 0; pass < 100 && markerRe.MatchString(text); pass++ {
		text = markerRe.ReplaceAllStringFunc(text, func(m string) string {
			sub := markerRe.FindStringSubmatch(m)
			i, err := strconv.Atoi(sub[1])
			if err != nil || i < 1 || i > len(tbl.entries) {
				return ""
			}
			return tbl.entries[i-1].text
		})
	}
	return text
}

// HideTemplates hides balanced "{{...}}" spans, outermost first, so nested
// templates vanish along with their parent.
func HideTemplates(text string, tbl *Table) string {
	return hideBalanced(text, "{{", "}}", TypeTemplate, tbl)
}

// HideTables hides balanced "{|...|}" table spans.
func HideTables(text string, tbl *Table) string {
	return hideBalanced(text, "{|", "|}", TypeTable, tbl)
}

// HideTags hides the given paired tags (with their content) and their
// self-closing forms. Matching is case-insensitive and spans newlines.
func HideTags(text string, tbl *Table, names ...string) string {
	for _, name := range names {
		q := regexp.QuoteMeta(name)
		re := regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*)?>.*?</` + q + `\s*>|<` + q + `(?:\s[^>]*)?/>`)
		text = Hide(text, re, TypeTag, tbl)
	}
	return text
}

// hideBalanced scans for open/close pairs, tracking nesting depth, and
// hides each outermost balanced span. Unbalanced openers are left as-is.
func hideBalanced(text, open, close string, typ byte, tbl *Table) string {
	var out strings.Builder
	for {
		start := strings.Index(text, open)
		if start == -1 {
			out.WriteString(text)
			return out.String()
		}
		out.WriteString(text[:start])

		depth := 0
		pos := start
		end := -1
		for pos < len(text) {
			nextOpen := strings.Index(text[pos:], open)
			nextClose := strings.Index(text[pos:], close)
			if nextClose == -1 {
				break
			}
			if nextOpen != -1 && nextOpen < nextClose {
				depth++
				pos += nextOpen + len(open)
				continue
			}
			depth--
			pos += nextClose + len(close)
			if depth == 0 {
				end = pos
				break
			}
		}

		if end == -1 {
			// Unbalanced: emit the opener and keep scanning past it.
			out.WriteString(text[start : start+len(open)])
			text = text[start+len(open):]
			continue
		}

		out.WriteString(tbl.put(text[start:end], typ))
		text = text[end:]
	}
}
