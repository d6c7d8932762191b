package core

import (
	"regexp"
	"sort"
	"strings"
)

// renameTable is a compiled batch of heading changes.
type renameTable struct {
	renames     map[string]string // old heading → new heading
	alternation string            // escaped old headings, longest first
}

// newRenameTable returns nil when changes contains nothing to apply.
// When several changes share an old heading, the first one wins.
func newRenameTable(changes []HeadingChange) *renameTable {
	renames := make(map[string]string, len(changes))
	var olds []string
	for _, c := range changes {
		if c.Old == "" || c.New == "" || c.Old == c.New {
			continue
		}
		if _, dup := renames[c.Old]; dup {
			continue
		}
		renames[c.Old] = c.New
		olds = append(olds, c.Old)
	}
	if len(olds) == 0 {
		return nil
	}
	// Longest first so that a heading which is a prefix of another never
	// shadows it inside the alternation.
	sort.SliceStable(olds, func(i, j int) bool { return len(olds[i]) > len(olds[j]) })
	quoted := make([]string, len(olds))
	for i, o := range olds {
		quoted[i] = regexp.QuoteMeta(o)
	}
	return &renameTable{renames: renames, alternation: strings.Join(quoted, "|")}
}

// Rewrite updates internal heading links ([[#Old]], [[#Old|Alias]] and
// [label](#Old)) for every change in a single left-to-right pass. Aliases
// and labels are kept verbatim. Changes are applied simultaneously: a batch
// of A→B and B→C rewrites A to B and B to C.
func Rewrite(content string, changes []HeadingChange) string {
	table := newRenameTable(changes)
	if table == nil {
		return content
	}
	re := regexp.MustCompile(
		`\[\[#(` + table.alternation + `)(\|[^\]]*)?\]\]` +
			`|\[([^\]]*)\]\(#(` + table.alternation + `)\)`)
	out, _ := replaceAllSubmatch(re, content, func(g []string) string {
		if g[1] != "" {
			return "[[#" + table.renames[g[1]] + g[2] + "]]"
		}
		return "[" + g[3] + "](#" + table.renames[g[4]] + ")"
	})
	return out
}

// RewriteCrossFile updates [[TargetBaseName#Old]] and
// [[TargetBaseName#Old|Alias]] links. The base name is matched
// case-insensitively, with or without a ".md" suffix. It reports whether any
// link was replaced.
func RewriteCrossFile(content, targetBaseName string, changes []HeadingChange) (string, bool) {
	table := newRenameTable(changes)
	if table == nil || targetBaseName == "" {
		return content, false
	}
	re := regexp.MustCompile(
		`\[\[(\s*(?i:` + regexp.QuoteMeta(targetBaseName) + `(?:\.md)?)\s*)#(` +
			table.alternation + `)(\|[^\]]*)?\]\]`)
	return replaceAllSubmatch(re, content, func(g []string) string {
		return "[[" + g[1] + "#" + table.renames[g[2]] + g[3] + "]]"
	})
}

// RewriteCrossFileMarkdown updates [label](TargetBaseName.md#Old) links.
// It reports whether any link was replaced.
func RewriteCrossFileMarkdown(content, targetBaseName string, changes []HeadingChange) (string, bool) {
	table := newRenameTable(changes)
	if table == nil || targetBaseName == "" {
		return content, false
	}
	re := regexp.MustCompile(
		`\[([^\]]*)\]\((\s*(?i:` + regexp.QuoteMeta(targetBaseName) + `\.md))#(` +
			table.alternation + `)\)`)
	return replaceAllSubmatch(re, content, func(g []string) string {
		return "[" + g[1] + "](" + g[2] + "#" + table.renames[g[3]] + ")"
	})
}

// RetargetLinks updates cross-file links in content, a document at
// sourcePath, whose note reference r resolves to target. Every spelling of
// the reference is covered: [[Note#Old]], [[dir/Note#Old]], [[./Note#Old]]
// and [[/dir/Note#Old]]. Markdown links are updated only when markdown is
// set. Aliases and labels are kept verbatim. It reports whether any link was
// replaced.
func RetargetLinks(content, sourcePath, target string, r Resolver, changes []HeadingChange, markdown bool) (string, bool) {
	table := newRenameTable(changes)
	if table == nil || r == nil {
		return content, false
	}
	var b strings.Builder
	last := 0
	changed := false
	for _, occ := range ScanLinks(content, sourcePath, r) {
		if !occ.Kind.IsCrossFile() || !occ.Resolved || occ.Target != target || occ.Start < last {
			continue
		}
		if occ.Kind == CrossMarkdown && !markdown {
			continue
		}
		newHeading, ok := table.renames[occ.Heading]
		if !ok {
			continue
		}
		if !changed {
			b.Grow(len(content))
			changed = true
		}
		b.WriteString(content[last:occ.Start])
		b.WriteString(retargetRaw(occ, newHeading))
		last = occ.End
	}
	if !changed {
		return content, false
	}
	b.WriteString(content[last:])
	return b.String(), true
}

// ReplaceOne retargets a single link occurrence to newHeading. The link at
// the occurrence's recorded offsets is replaced when the content there still
// matches; otherwise the first link of the same kind, note and heading is.
// Content without such a link is returned unchanged.
func ReplaceOne(content string, occ LinkOccurrence, newHeading string) string {
	if occ.Start >= 0 && occ.End <= len(content) && occ.Start < occ.End &&
		content[occ.Start:occ.End] == occ.Raw {
		return content[:occ.Start] + retargetRaw(occ, newHeading) + content[occ.End:]
	}
	loc := scopedPattern(occ).FindStringIndex(content)
	if loc == nil {
		return content
	}
	found := occ
	found.Raw = content[loc[0]:loc[1]]
	return content[:loc[0]] + retargetRaw(found, newHeading) + content[loc[1]:]
}

// scopedPattern matches links of occ's kind (and note, for cross kinds)
// pointing at occ's heading.
func scopedPattern(occ LinkOccurrence) *regexp.Regexp {
	h := regexp.QuoteMeta(occ.Heading)
	switch occ.Kind {
	case InternalWiki:
		return regexp.MustCompile(`\[\[#` + h + `(\|[^\]]*)?\]\]`)
	case InternalMarkdown:
		return regexp.MustCompile(`\[[^\]]*\]\(#` + h + `\)`)
	case CrossWiki:
		return regexp.MustCompile(`\[\[\s*(?i:` + regexp.QuoteMeta(occ.Note) + `)\s*#` + h + `(\|[^\]]*)?\]\]`)
	default:
		return regexp.MustCompile(`\[[^\]]*\]\(\s*(?i:` + regexp.QuoteMeta(occ.Note) + `\.md)#` + h + `\)`)
	}
}

// retargetRaw rewrites the heading segment of occ.Raw, keeping the note,
// alias and label as written.
func retargetRaw(occ LinkOccurrence, newHeading string) string {
	raw := occ.Raw
	if occ.Kind.IsWiki() {
		// [[Target#Heading]], [[Target#Heading|alias]], [[#Heading]]
		inner := strings.TrimSuffix(strings.TrimPrefix(raw, "[["), "]]")
		hash := strings.Index(inner, "#")
		if hash < 0 {
			return raw
		}
		var alias string
		if idx := strings.Index(inner[hash:], "|"); idx >= 0 {
			alias = inner[hash+idx:] // includes |
		}
		return "[[" + inner[:hash+1] + newHeading + alias + "]]"
	}
	// [text](url#frag)
	mid := strings.Index(raw, "](")
	if mid < 0 {
		return raw
	}
	url := strings.TrimSuffix(raw[mid+2:], ")")
	hash := strings.Index(url, "#")
	if hash < 0 {
		return raw
	}
	return raw[:mid+2] + url[:hash+1] + newHeading + ")"
}

// replaceAllSubmatch replaces every match of re in s with fn(groups), where
// unmatched groups are empty strings. It reports whether the output differs
// from s.
func replaceAllSubmatch(re *regexp.Regexp, s string, fn func(groups []string) string) (string, bool) {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return s, false
	}
	var b strings.Builder
	b.Grow(len(s))
	last := 0
	for _, m := range matches {
		groups := make([]string, len(m)/2)
		for i := range groups {
			if m[2*i] >= 0 {
				groups[i] = s[m[2*i]:m[2*i+1]]
			}
		}
		b.WriteString(s[last:m[0]])
		b.WriteString(fn(groups))
		last = m[1]
	}
	b.WriteString(s[last:])
	out := b.String()
	return out, out != s
}
