package core

import (
	"regexp"
	"sort"
	"strings"
)

// LinkKind identifies one of the four heading-link syntaxes.
type LinkKind int

const (
	// InternalWiki is [[#Heading]] or [[#Heading|Alias]].
	InternalWiki LinkKind = iota
	// InternalMarkdown is [label](#Heading).
	InternalMarkdown
	// CrossWiki is [[Note#Heading]] or [[Note#Heading|Alias]].
	CrossWiki
	// CrossMarkdown is [label](Note.md#Heading).
	CrossMarkdown
)

func (k LinkKind) String() string {
	switch k {
	case InternalWiki:
		return "internal-wiki"
	case InternalMarkdown:
		return "internal-markdown"
	case CrossWiki:
		return "cross-wiki"
	case CrossMarkdown:
		return "cross-markdown"
	}
	return "unknown"
}

// IsCrossFile reports whether links of this kind point at another document.
func (k LinkKind) IsCrossFile() bool {
	return k == CrossWiki || k == CrossMarkdown
}

// IsWiki reports whether links of this kind use the [[...]] syntax.
func (k LinkKind) IsWiki() bool {
	return k == InternalWiki || k == CrossWiki
}

// LinkOccurrence is one heading link found in a document.
type LinkOccurrence struct {
	Kind     LinkKind
	Heading  string
	Raw      string // matched text, e.g. "[[Note#Heading|Alias]]"
	Alias    string // wiki kinds only
	HasAlias bool
	Note     string // cross kinds only, as written (".md" stripped)
	Target   string // vault-relative path; the source itself for internal kinds
	Resolved bool
	Start    int // byte offset of Raw in the scanned content
	End      int
}

// Resolver maps a note reference written in sourcePath to a document path.
type Resolver interface {
	Resolve(note, sourcePath string) (string, bool)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(note, sourcePath string) (string, bool)

// Resolve calls f(note, sourcePath).
func (f ResolverFunc) Resolve(note, sourcePath string) (string, bool) {
	return f(note, sourcePath)
}

var (
	internalWikiPattern     = regexp.MustCompile(`\[\[#([^\]|]+)(\|[^\]]*)?\]\]`)
	internalMarkdownPattern = regexp.MustCompile(`\[([^\]]*)\]\(#([^)]+)\)`)
	crossWikiPattern        = regexp.MustCompile(`\[\[([^\]#|]+)#([^\]|]+)(\|[^\]]*)?\]\]`)
	crossMarkdownPattern    = regexp.MustCompile(`\[([^\]]*)\]\(([^)#]+)#([^)]+)\)`)
)

// ScanLinks finds every heading link in content. Cross-file note names are
// resolved with r relative to sourcePath; unresolved links are still
// returned with Resolved=false. The result is ordered by position.
func ScanLinks(content, sourcePath string, r Resolver) []LinkOccurrence {
	var out []LinkOccurrence
	out = append(out, scanInternalWiki(content, sourcePath)...)
	out = append(out, scanInternalMarkdown(content, sourcePath)...)
	out = append(out, scanCrossWiki(content, sourcePath, r)...)
	out = append(out, scanCrossMarkdown(content, sourcePath, r)...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func scanInternalWiki(content, sourcePath string) []LinkOccurrence {
	var out []LinkOccurrence
	for _, m := range internalWikiPattern.FindAllStringSubmatchIndex(content, -1) {
		heading := content[m[2]:m[3]]
		if isBlockRef(heading) {
			continue
		}
		lo := LinkOccurrence{
			Kind:     InternalWiki,
			Heading:  heading,
			Raw:      content[m[0]:m[1]],
			Target:   sourcePath,
			Resolved: true,
			Start:    m[0],
			End:      m[1],
		}
		if m[4] >= 0 {
			lo.Alias = splitAlias(content[m[4]:m[5]])
			lo.HasAlias = true
		}
		out = append(out, lo)
	}
	return out
}

func scanInternalMarkdown(content, sourcePath string) []LinkOccurrence {
	var out []LinkOccurrence
	for _, m := range internalMarkdownPattern.FindAllStringSubmatchIndex(content, -1) {
		// "[[#H]](#x)" style overlaps belong to the wiki pass.
		if m[0] > 0 && content[m[0]-1] == '[' {
			continue
		}
		out = append(out, LinkOccurrence{
			Kind:     InternalMarkdown,
			Heading:  content[m[4]:m[5]],
			Raw:      content[m[0]:m[1]],
			Target:   sourcePath,
			Resolved: true,
			Start:    m[0],
			End:      m[1],
		})
	}
	return out
}

func scanCrossWiki(content, sourcePath string, r Resolver) []LinkOccurrence {
	var out []LinkOccurrence
	for _, m := range crossWikiPattern.FindAllStringSubmatchIndex(content, -1) {
		note := strings.TrimSpace(content[m[2]:m[3]])
		heading := content[m[4]:m[5]]
		if note == "" || isBlockRef(heading) {
			continue
		}
		lo := LinkOccurrence{
			Kind:    CrossWiki,
			Heading: heading,
			Raw:     content[m[0]:m[1]],
			Note:    note,
			Start:   m[0],
			End:     m[1],
		}
		if m[6] >= 0 {
			lo.Alias = splitAlias(content[m[6]:m[7]])
			lo.HasAlias = true
		}
		lo.Target, lo.Resolved = resolveNote(r, normalizeBasename(note), sourcePath)
		out = append(out, lo)
	}
	return out
}

func scanCrossMarkdown(content, sourcePath string, r Resolver) []LinkOccurrence {
	var out []LinkOccurrence
	for _, m := range crossMarkdownPattern.FindAllStringSubmatchIndex(content, -1) {
		if m[0] > 0 && content[m[0]-1] == '[' {
			continue
		}
		rawTarget := strings.TrimSpace(content[m[4]:m[5]])
		if isURL(rawTarget) || !hasMarkdownExt(rawTarget) {
			continue
		}
		note := normalizeBasename(rawTarget)
		lo := LinkOccurrence{
			Kind:    CrossMarkdown,
			Heading: content[m[6]:m[7]],
			Raw:     content[m[0]:m[1]],
			Note:    note,
			Start:   m[0],
			End:     m[1],
		}
		lo.Target, lo.Resolved = resolveNote(r, note, sourcePath)
		out = append(out, lo)
	}
	return out
}

func resolveNote(r Resolver, note, sourcePath string) (string, bool) {
	if r == nil {
		return "", false
	}
	return r.Resolve(note, sourcePath)
}

// splitAlias strips the leading "|" from a captured alias segment.
func splitAlias(segment string) string {
	return strings.TrimPrefix(segment, "|")
}

// isBlockRef reports whether a subpath names a block ("^id") rather than a heading.
func isBlockRef(subpath string) bool {
	return strings.HasPrefix(subpath, "^")
}

func hasMarkdownExt(target string) bool {
	return strings.HasSuffix(strings.ToLower(target), ".md")
}

func normalizeBasename(input string) string {
	if hasMarkdownExt(input) && len(input) >= 3 {
		return input[:len(input)-3]
	}
	return input
}

func isURL(target string) bool {
	return strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://")
}
