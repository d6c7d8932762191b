package core

import (
	"fmt"
)

// BrokenReason classifies why a heading link does not resolve.
type BrokenReason int

const (
	// ReasonMissingFile means the note name did not resolve to a document.
	ReasonMissingFile BrokenReason = iota
	// ReasonMissingHeading means the target document lacks the heading.
	ReasonMissingHeading
)

func (r BrokenReason) String() string {
	switch r {
	case ReasonMissingFile:
		return "missing-file"
	case ReasonMissingHeading:
		return "missing-heading"
	}
	return "unknown"
}

// BrokenLink is a heading link that does not resolve.
type BrokenLink struct {
	Occurrence     LinkOccurrence
	Reason         BrokenReason
	TargetHeadings []string // set for ReasonMissingHeading
}

// Describe returns a one-line human-readable description of the broken link.
func (b BrokenLink) Describe() string {
	switch b.Reason {
	case ReasonMissingFile:
		return fmt.Sprintf("%s: note %q not found", b.Occurrence.Raw, b.Occurrence.Note)
	default:
		if b.Occurrence.Kind.IsCrossFile() {
			return fmt.Sprintf("%s: heading %q not found in %s", b.Occurrence.Raw, b.Occurrence.Heading, b.Occurrence.Target)
		}
		return fmt.Sprintf("%s: heading %q not found", b.Occurrence.Raw, b.Occurrence.Heading)
	}
}

// HeadingsFunc returns the current headings of the document at path.
type HeadingsFunc func(path string) ([]string, error)

// FindBroken reports every heading link in content that points at a missing
// document or a missing heading. Internal links are checked against the
// headings of content itself; cross-file targets are fetched through
// headingsOf once per target. Errors from headingsOf are returned as-is.
func FindBroken(content, sourcePath string, r Resolver, headingsOf HeadingsFunc) ([]BrokenLink, error) {
	links := ScanLinks(content, sourcePath, r)
	if len(links) == 0 {
		return nil, nil
	}

	fetched := make(map[string][]string)
	var own []string
	ownDone := false

	var out []BrokenLink
	for _, lo := range links {
		var headings []string
		switch lo.Kind {
		case InternalWiki, InternalMarkdown:
			if !ownDone {
				own = ExtractHeadings(content)
				ownDone = true
			}
			headings = own
		case CrossWiki, CrossMarkdown:
			if !lo.Resolved {
				out = append(out, BrokenLink{Occurrence: lo, Reason: ReasonMissingFile})
				continue
			}
			hs, ok := fetched[lo.Target]
			if !ok {
				if lo.Target == sourcePath {
					hs = ExtractHeadings(content)
				} else {
					var err error
					hs, err = headingsOf(lo.Target)
					if err != nil {
						return nil, fmt.Errorf("headings of %s: %w", lo.Target, err)
					}
				}
				fetched[lo.Target] = hs
			}
			headings = hs
		}
		if !containsHeading(headings, lo.Heading) {
			out = append(out, BrokenLink{
				Occurrence:     lo,
				Reason:         ReasonMissingHeading,
				TargetHeadings: headings,
			})
		}
	}
	return out, nil
}
