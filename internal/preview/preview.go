// Package preview renders line diffs of pending document rewrites for
// dry runs.
package preview

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Renderer formats document changes as compact unified-style diffs.
type Renderer struct {
	colorEnabled bool
}

// NewRenderer returns a renderer. Color is applied only when colorEnabled is
// set and the terminal supports it.
func NewRenderer(colorEnabled bool) *Renderer {
	return &Renderer{colorEnabled: colorEnabled}
}

// Result is a rendered diff with its line counts.
type Result struct {
	Text    string
	Added   int
	Deleted int
}

// Render diffs oldContent against newContent line by line. Only changed
// lines are shown, each run under a "@@ -old +new @@" header giving 1-based
// line numbers. Identical contents render as an empty Result.
func (r *Renderer) Render(path, oldContent, newContent string) Result {
	if oldContent == newContent {
		return Result{}
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder
	sb.WriteString(r.colorize("--- a/"+path+"\n", color.FgRed))
	sb.WriteString(r.colorize("+++ b/"+path+"\n", color.FgGreen))

	var res Result
	oldLine, newLine := 1, 1
	inHunk := false
	for _, d := range diffs {
		chunk := splitLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			oldLine += len(chunk)
			newLine += len(chunk)
			inHunk = false
			continue
		}
		if !inHunk {
			sb.WriteString(r.colorize(fmt.Sprintf("@@ -%d +%d @@\n", oldLine, newLine), color.FgCyan))
			inHunk = true
		}
		for _, l := range chunk {
			if d.Type == diffmatchpatch.DiffDelete {
				sb.WriteString(r.colorize("-"+l+"\n", color.FgRed))
				res.Deleted++
			} else {
				sb.WriteString(r.colorize("+"+l+"\n", color.FgGreen))
				res.Added++
			}
		}
		if d.Type == diffmatchpatch.DiffDelete {
			oldLine += len(chunk)
		} else {
			newLine += len(chunk)
		}
	}
	res.Text = sb.String()
	return res
}

// splitLines splits a diff chunk into lines without their terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

func (r *Renderer) colorize(text string, attr color.Attribute) string {
	if !r.colorEnabled {
		return text
	}
	return color.New(attr).Sprint(text)
}
