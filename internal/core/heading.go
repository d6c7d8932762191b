package core

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// HeadingChange is an inferred rename of a heading within one document.
type HeadingChange struct {
	Old string
	New string
}

// ExtractHeadings returns the text of every ATX heading in content, in
// document order. Heading levels are discarded.
func ExtractHeadings(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		if text, ok := headingText(strings.TrimSuffix(line, "\r")); ok {
			out = append(out, text)
		}
	}
	return out
}

// headingText reports whether line is a heading and returns its trimmed text.
func headingText(line string) (string, bool) {
	level := 0
	for level < len(line) && line[level] == '#' {
		level++
	}
	if level == 0 || level > 6 || level == len(line) {
		return "", false
	}
	rest := line[level:]
	r, _ := utf8.DecodeRuneInString(rest)
	if !unicode.IsSpace(r) {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

// DiffHeadings pairs headings removed from old with headings added in new.
//
// When the counts of removed and added headings match they are paired by
// index. Otherwise headings are compared position by position, which may
// over- or under-report when headings were inserted, deleted or reordered.
func DiffHeadings(old, new []string) []HeadingChange {
	removed := missingFrom(old, new)
	if len(removed) == 0 {
		return nil
	}
	added := missingFrom(new, old)

	var changes []HeadingChange
	if len(removed) == len(added) {
		for i := range removed {
			changes = appendChange(changes, removed[i], added[i])
		}
		return changes
	}

	n := max(len(old), len(new))
	for i := 0; i < n; i++ {
		if i >= len(old) || i >= len(new) {
			continue
		}
		if old[i] != new[i] {
			changes = appendChange(changes, old[i], new[i])
		}
	}
	return changes
}

func appendChange(changes []HeadingChange, old, new string) []HeadingChange {
	if old == "" || new == "" || old == new {
		return changes
	}
	return append(changes, HeadingChange{Old: old, New: new})
}

// missingFrom returns the entries of a that do not appear anywhere in b,
// preserving a's order.
func missingFrom(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, s := range b {
		set[s] = true
	}
	var out []string
	for _, s := range a {
		if !set[s] {
			out = append(out, s)
		}
	}
	return out
}

func containsHeading(headings []string, heading string) bool {
	for _, h := range headings {
		if h == heading {
			return true
		}
	}
	return false
}

// RenameHeading replaces the text of the first heading equal to old with new,
// keeping the heading's level and line ending. It reports whether a heading
// was replaced.
func RenameHeading(content, old, new string) (string, bool) {
	lines := strings.SplitAfter(content, "\n")
	for i, line := range lines {
		body := strings.TrimRight(line, "\r\n")
		text, ok := headingText(body)
		if !ok || text != old {
			continue
		}
		level := strings.IndexFunc(body, func(r rune) bool { return r != '#' })
		lines[i] = body[:level] + " " + new + line[len(body):]
		return strings.Join(lines, ""), true
	}
	return content, false
}
