package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/ryotapoi/anchorsync/internal/core"
	"github.com/ryotapoi/anchorsync/internal/index"
	"github.com/ryotapoi/anchorsync/internal/preview"
	"github.com/ryotapoi/anchorsync/internal/workspace"
)

// validateFormat checks that format is "json" or "text".
func validateFormat(format string) error {
	if format != "json" && format != "text" {
		return fmt.Errorf("invalid format: %q (must be json or text)", format)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// --- Check output ---

type jsonBrokenLink struct {
	Path    string `json:"path"`
	Link    string `json:"link"`
	Kind    string `json:"kind"`
	Reason  string `json:"reason"`
	Note    string `json:"note,omitempty"`
	Target  string `json:"target,omitempty"`
	Heading string `json:"heading"`
}

func toJSONBroken(path string, b core.BrokenLink) jsonBrokenLink {
	return jsonBrokenLink{
		Path:    path,
		Link:    b.Occurrence.Raw,
		Kind:    b.Occurrence.Kind.String(),
		Reason:  b.Reason.String(),
		Note:    b.Occurrence.Note,
		Target:  b.Occurrence.Target,
		Heading: b.Occurrence.Heading,
	}
}

func printCheckJSON(w io.Writer, r *workspace.CheckResult) error {
	out := struct {
		Checked int              `json:"checked"`
		Broken  []jsonBrokenLink `json:"broken"`
	}{Checked: r.Checked, Broken: []jsonBrokenLink{}}
	for _, doc := range r.Broken {
		for _, b := range doc.Links {
			out.Broken = append(out.Broken, toJSONBroken(doc.Path, b))
		}
	}
	return writeJSON(w, out)
}

func printCheckText(w io.Writer, r *workspace.CheckResult) {
	n := 0
	if len(r.Broken) > 0 {
		fmt.Fprintln(w, "broken:")
	}
	for _, doc := range r.Broken {
		fmt.Fprintf(w, "- path: %s\n", doc.Path)
		fmt.Fprintln(w, "  links:")
		for _, b := range doc.Links {
			fmt.Fprintf(w, "  - %s\n", b.Describe())
			n++
		}
	}
	fmt.Fprintf(w, "checked: %d\n", r.Checked)
	fmt.Fprintf(w, "broken_links: %d\n", n)
}

// --- Suggest output ---

type jsonSuggestion struct {
	Heading string  `json:"heading"`
	Score   float64 `json:"score"`
}

type jsonCandidate struct {
	Path        string           `json:"path"`
	Link        string           `json:"link"`
	Target      string           `json:"target"`
	Suggestions []jsonSuggestion `json:"suggestions"`
}

func printSuggestJSON(w io.Writer, docs []workspace.DocumentCandidates) error {
	out := []jsonCandidate{}
	for _, doc := range docs {
		for _, c := range doc.Candidates {
			jc := jsonCandidate{Path: doc.Path, Link: c.RawLink, Target: c.Target, Suggestions: []jsonSuggestion{}}
			for _, s := range c.Suggestions {
				jc.Suggestions = append(jc.Suggestions, jsonSuggestion{Heading: s.Heading, Score: s.Score})
			}
			out = append(out, jc)
		}
	}
	return writeJSON(w, out)
}

func printSuggestText(w io.Writer, docs []workspace.DocumentCandidates) {
	fmt.Fprintln(w, "candidates:")
	for _, doc := range docs {
		for _, c := range doc.Candidates {
			fmt.Fprintf(w, "- path: %s\n", doc.Path)
			fmt.Fprintf(w, "  link: %s\n", c.RawLink)
			fmt.Fprintf(w, "  target: %s\n", c.Target)
			fmt.Fprintln(w, "  suggestions:")
			for _, s := range c.Suggestions {
				fmt.Fprintf(w, "  - %.3f %s\n", s.Score, s.Heading)
			}
		}
	}
}

// --- Repair output ---

type jsonRepaired struct {
	File    string  `json:"file"`
	Link    string  `json:"link"`
	Heading string  `json:"heading"`
	Score   float64 `json:"score"`
}

type jsonSkipped struct {
	File string          `json:"file"`
	Link string          `json:"link"`
	Best *jsonSuggestion `json:"best"`
}

func printRepairJSON(w io.Writer, r *workspace.RepairResult) error {
	out := struct {
		Repaired []jsonRepaired `json:"repaired"`
		Skipped  []jsonSkipped  `json:"skipped"`
	}{Repaired: []jsonRepaired{}, Skipped: []jsonSkipped{}}
	for _, l := range r.Repaired {
		out.Repaired = append(out.Repaired, jsonRepaired{File: l.File, Link: l.RawLink, Heading: l.Heading, Score: l.Score})
	}
	for _, s := range r.Skipped {
		js := jsonSkipped{File: s.File, Link: s.RawLink}
		if s.Best != nil {
			js.Best = &jsonSuggestion{Heading: s.Best.Heading, Score: s.Best.Score}
		}
		out.Skipped = append(out.Skipped, js)
	}
	return writeJSON(w, out)
}

func printRepairText(w io.Writer, r *workspace.RepairResult) {
	fmt.Fprintln(w, "repaired:")
	for _, l := range r.Repaired {
		fmt.Fprintf(w, "- file: %s\n", l.File)
		fmt.Fprintf(w, "  link: %s\n", l.RawLink)
		fmt.Fprintf(w, "  heading: %s\n", l.Heading)
		fmt.Fprintf(w, "  score: %.3f\n", l.Score)
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintln(w, "skipped:")
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "- file: %s\n", s.File)
			fmt.Fprintf(w, "  link: %s\n", s.RawLink)
			if s.Best != nil {
				fmt.Fprintf(w, "  best: %.3f %s\n", s.Best.Score, s.Best.Heading)
			}
		}
	}
}

// --- Rename output ---

func printRenameJSON(w io.Writer, r *workspace.RenameResult, dryRun bool) error {
	out := struct {
		DryRun  bool              `json:"dry_run"`
		Changed []string          `json:"changed"`
		Broken  []jsonBrokenLink  `json:"broken"`
		Skipped map[string]string `json:"skipped,omitempty"`
	}{DryRun: dryRun, Changed: []string{}, Broken: []jsonBrokenLink{}}
	for _, c := range r.Changes {
		out.Changed = append(out.Changed, c.Path)
	}
	if len(r.Changes) > 0 {
		for _, b := range r.Broken {
			out.Broken = append(out.Broken, toJSONBroken(r.Changes[0].Path, b))
		}
	}
	if len(r.Failed) > 0 {
		out.Skipped = make(map[string]string, len(r.Failed))
		for p, err := range r.Failed {
			out.Skipped[p] = err.Error()
		}
	}
	return writeJSON(w, out)
}

func printRenameText(w io.Writer, r *workspace.RenameResult, dryRun bool) {
	label := "updated:"
	if dryRun {
		label = "would_update:"
	}
	fmt.Fprintln(w, label)
	for _, c := range r.Changes {
		fmt.Fprintf(w, "- %s\n", c.Path)
	}
	if len(r.Failed) > 0 {
		fmt.Fprintln(w, "skipped:")
		paths := make([]string, 0, len(r.Failed))
		for p := range r.Failed {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			fmt.Fprintf(w, "- %s: %v\n", p, r.Failed[p])
		}
	}
	if len(r.Broken) > 0 {
		fmt.Fprintln(w, "broken:")
		for _, b := range r.Broken {
			fmt.Fprintf(w, "- %s\n", b.Describe())
		}
	}
}

// printChanges renders a diff of each change. Color follows the terminal.
func printChanges(w io.Writer, changes []workspace.FileChange, dryRun bool) {
	if !dryRun {
		return
	}
	r := preview.NewRenderer(true)
	for _, c := range changes {
		if out := r.Render(c.Path, c.Old, c.New); out.Text != "" {
			fmt.Fprint(w, out.Text)
		}
	}
}

// --- Index output ---

func printStatsJSON(w io.Writer, s index.Stats) error {
	return writeJSON(w, s)
}

func printStatsText(w io.Writer, s index.Stats) {
	fmt.Fprintf(w, "notes: %d\n", s.Notes)
	fmt.Fprintf(w, "headings: %d\n", s.Headings)
	fmt.Fprintf(w, "links: %d\n", s.Links)
	fmt.Fprintf(w, "unresolved: %d\n", s.Unresolved)
}
