package core

import "testing"

func TestRewrite(t *testing.T) {
	tests := []struct {
		name    string
		content string
		changes []HeadingChange
		want    string
	}{
		{
			name:    "wiki",
			content: "# Install\nsee [[#Setup]]\n",
			changes: []HeadingChange{{Old: "Setup", New: "Install"}},
			want:    "# Install\nsee [[#Install]]\n",
		},
		{
			name:    "wiki alias kept",
			content: "[[#Setup|how to]]",
			changes: []HeadingChange{{Old: "Setup", New: "Install"}},
			want:    "[[#Install|how to]]",
		},
		{
			name:    "markdown label kept",
			content: "[Setup steps](#Setup)",
			changes: []HeadingChange{{Old: "Setup", New: "Install"}},
			want:    "[Setup steps](#Install)",
		},
		{
			name:    "exact heading only",
			content: "[[#Setup Guide]] [[#Setup]]",
			changes: []HeadingChange{{Old: "Setup", New: "Install"}},
			want:    "[[#Setup Guide]] [[#Install]]",
		},
		{
			name:    "prefix headings",
			content: "[[#Setup]] [[#Setup Guide]]",
			changes: []HeadingChange{{Old: "Setup", New: "A"}, {Old: "Setup Guide", New: "B"}},
			want:    "[[#A]] [[#B]]",
		},
		{
			name:    "chained renames are simultaneous",
			content: "[[#A]] [[#B]]",
			changes: []HeadingChange{{Old: "A", New: "B"}, {Old: "B", New: "C"}},
			want:    "[[#B]] [[#C]]",
		},
		{
			name:    "swap",
			content: "[a](#A) [b](#B)",
			changes: []HeadingChange{{Old: "A", New: "B"}, {Old: "B", New: "A"}},
			want:    "[a](#B) [b](#A)",
		},
		{
			name:    "first duplicate wins",
			content: "[[#A]]",
			changes: []HeadingChange{{Old: "A", New: "X"}, {Old: "A", New: "Y"}},
			want:    "[[#X]]",
		},
		{
			name:    "regex metacharacters",
			content: "[[#C++ (2024)?]]",
			changes: []HeadingChange{{Old: "C++ (2024)?", New: "C++"}},
			want:    "[[#C++]]",
		},
		{
			name:    "cross-file links untouched",
			content: "[[Other#Setup]] [x](Other.md#Setup)",
			changes: []HeadingChange{{Old: "Setup", New: "Install"}},
			want:    "[[Other#Setup]] [x](Other.md#Setup)",
		},
		{
			name:    "no changes",
			content: "[[#Setup]]",
			changes: nil,
			want:    "[[#Setup]]",
		},
		{
			name:    "no-op change ignored",
			content: "[[#Setup]]",
			changes: []HeadingChange{{Old: "Setup", New: "Setup"}, {Old: "", New: "X"}},
			want:    "[[#Setup]]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Rewrite(tt.content, tt.changes); got != tt.want {
				t.Errorf("Rewrite = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewriteCrossFile(t *testing.T) {
	changes := []HeadingChange{{Old: "Setup", New: "Installation"}}
	tests := []struct {
		name    string
		content string
		base    string
		want    string
		changed bool
	}{
		{"plain", "[[Wireguard#Setup]]", "Wireguard", "[[Wireguard#Installation]]", true},
		{"alias", "[[Wireguard#Setup|vpn]]", "Wireguard", "[[Wireguard#Installation|vpn]]", true},
		{"case-insensitive name kept", "[[wireguard#Setup]]", "Wireguard", "[[wireguard#Installation]]", true},
		{"md suffix", "[[Wireguard.md#Setup]]", "Wireguard", "[[Wireguard.md#Installation]]", true},
		{"other note", "[[Other#Setup]]", "Wireguard", "[[Other#Setup]]", false},
		{"name prefix", "[[WireguardExtra#Setup]]", "Wireguard", "[[WireguardExtra#Setup]]", false},
		{"heading is case-sensitive", "[[Wireguard#setup]]", "Wireguard", "[[Wireguard#setup]]", false},
		{"markdown untouched", "[x](Wireguard.md#Setup)", "Wireguard", "[x](Wireguard.md#Setup)", false},
		{"internal untouched", "[[#Setup]]", "Wireguard", "[[#Setup]]", false},
		{"empty base", "[[Wireguard#Setup]]", "", "[[Wireguard#Setup]]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RewriteCrossFile(tt.content, tt.base, changes)
			if got != tt.want || changed != tt.changed {
				t.Errorf("RewriteCrossFile = %q, %v; want %q, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestRewriteCrossFileMarkdown(t *testing.T) {
	changes := []HeadingChange{{Old: "Setup", New: "Installation"}}
	tests := []struct {
		name    string
		content string
		want    string
		changed bool
	}{
		{"plain", "[vpn](Wireguard.md#Setup)", "[vpn](Wireguard.md#Installation)", true},
		{"case-insensitive name", "[vpn](wireguard.MD#Setup)", "[vpn](wireguard.MD#Installation)", true},
		{"wiki untouched", "[[Wireguard#Setup]]", "[[Wireguard#Setup]]", false},
		{"other note", "[x](Other.md#Setup)", "[x](Other.md#Setup)", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RewriteCrossFileMarkdown(tt.content, "Wireguard", changes)
			if got != tt.want || changed != tt.changed {
				t.Errorf("RewriteCrossFileMarkdown = %q, %v; want %q, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestRetargetLinks(t *testing.T) {
	r := pathResolver("Wireguard.md", "guides/Wireguard.md", "guides/Notes.md", "Notes.md")
	changes := []HeadingChange{{Old: "Setup", New: "Install"}}
	tests := []struct {
		name     string
		content  string
		source   string
		target   string
		markdown bool
		want     string
		changed  bool
	}{
		{"basename", "[[Wireguard#Setup]]", "Notes.md", "Wireguard.md", false, "[[Wireguard#Install]]", true},
		{"path qualified", "[[guides/Wireguard#Setup|vpn]]", "Notes.md", "guides/Wireguard.md", false, "[[guides/Wireguard#Install|vpn]]", true},
		{"vault absolute", "[[/guides/Wireguard#Setup]]", "Notes.md", "guides/Wireguard.md", false, "[[/guides/Wireguard#Install]]", true},
		{"relative", "[[./Wireguard#Setup]]", "guides/Notes.md", "guides/Wireguard.md", false, "[[./Wireguard#Install]]", true},
		{"same basename elsewhere", "[[Wireguard#Setup]] [[guides/Wireguard#Setup]]", "Notes.md", "guides/Wireguard.md", false, "[[Wireguard#Setup]] [[guides/Wireguard#Install]]", true},
		{"markdown skipped", "[x](guides/Wireguard.md#Setup)", "Notes.md", "guides/Wireguard.md", false, "[x](guides/Wireguard.md#Setup)", false},
		{"markdown", "[x](guides/Wireguard.md#Setup) [[guides/Wireguard#Setup]]", "Notes.md", "guides/Wireguard.md", true, "[x](guides/Wireguard.md#Install) [[guides/Wireguard#Install]]", true},
		{"other heading", "[[Wireguard#Usage]]", "Notes.md", "Wireguard.md", false, "[[Wireguard#Usage]]", false},
		{"unresolved", "[[Missing#Setup]]", "Notes.md", "Wireguard.md", false, "[[Missing#Setup]]", false},
		{"internal untouched", "[[#Setup]]", "Wireguard.md", "Wireguard.md", true, "[[#Setup]]", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := RetargetLinks(tt.content, tt.source, tt.target, r, changes, tt.markdown)
			if got != tt.want || changed != tt.changed {
				t.Errorf("RetargetLinks = %q, %v; want %q, %v", got, changed, tt.want, tt.changed)
			}
		})
	}
}

func TestRetargetLinks_NilResolver(t *testing.T) {
	got, changed := RetargetLinks("[[A#Old]]", "B.md", "A.md", nil, []HeadingChange{{Old: "Old", New: "New"}}, true)
	if got != "[[A#Old]]" || changed {
		t.Errorf("RetargetLinks = %q, %v", got, changed)
	}
}

func TestReplaceOne(t *testing.T) {
	content := "[[Wireguard#Instal]] and again [[Wireguard#Instal|x]]\n"
	links := ScanLinks(content, "Notes.md", mapResolver("Wireguard.md"))
	if len(links) != 2 {
		t.Fatalf("got %d links, want 2", len(links))
	}

	got := ReplaceOne(content, links[1], "Installation")
	want := "[[Wireguard#Instal]] and again [[Wireguard#Installation|x]]\n"
	if got != want {
		t.Errorf("ReplaceOne(second) = %q, want %q", got, want)
	}

	got = ReplaceOne(content, links[0], "Installation")
	want = "[[Wireguard#Installation]] and again [[Wireguard#Instal|x]]\n"
	if got != want {
		t.Errorf("ReplaceOne(first) = %q, want %q", got, want)
	}
}

func TestReplaceOne_Kinds(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"internal wiki", "[[#Old|a]]", "[[#New|a]]"},
		{"internal markdown", "[label](#Old)", "[label](#New)"},
		{"cross wiki", "[[Note#Old]]", "[[Note#New]]"},
		{"cross markdown", "[label](Note.md#Old)", "[label](Note.md#New)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			links := ScanLinks(tt.content, "A.md", mapResolver("Note.md"))
			if len(links) != 1 {
				t.Fatalf("got %d links, want 1", len(links))
			}
			if got := ReplaceOne(tt.content, links[0], "New"); got != tt.want {
				t.Errorf("ReplaceOne = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestReplaceOne_StaleOffsets(t *testing.T) {
	occ := ScanLinks("[[Note#Old]]", "A.md", mapResolver("Note.md"))[0]
	shifted := "prefix text [[Note#Old]]"
	if got := ReplaceOne(shifted, occ, "New"); got != "prefix text [[Note#New]]" {
		t.Errorf("ReplaceOne = %q", got)
	}
	if got := ReplaceOne("no links here", occ, "New"); got != "no links here" {
		t.Errorf("ReplaceOne without link changed content: %q", got)
	}
}

func TestRewrite_Idempotent(t *testing.T) {
	changes := []HeadingChange{{Old: "a.b", New: "c"}}
	once := Rewrite("[[#a.b]] [[#axb]]", changes)
	if once != "[[#c]] [[#axb]]" {
		t.Fatalf("Rewrite = %q", once)
	}
	if twice := Rewrite(once, changes); twice != once {
		t.Errorf("second Rewrite changed content: %q", twice)
	}
}
