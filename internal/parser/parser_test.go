package parser

import (
	"strings"
	"testing"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\ntags:\n  - go\n  - notes\n---\n# Hello\nBody text.\n")
	doc, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Hello" {
		t.Errorf("title = %q, want %q", doc.Title, "Hello")
	}
	if len(doc.Tags) != 2 || doc.Tags[0] != "go" || doc.Tags[1] != "notes" {
		t.Errorf("tags = %v, want [go notes]", doc.Tags)
	}
	if string(doc.Body) != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
	if want := strings.Index(string(input), "# Hello"); doc.Offset != want {
		t.Errorf("offset = %d, want %d", doc.Offset, want)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", doc.Frontmatter)
	}
	if doc.Offset != 0 {
		t.Errorf("offset = %d, want 0", doc.Offset)
	}
	if doc.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", doc.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	doc, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Frontmatter != nil || doc.Offset != 0 {
		t.Errorf("expected whole input as body, got offset %d fm %v", doc.Offset, doc.Frontmatter)
	}
}

func TestParse_ThematicBreakIsNotFrontmatter(t *testing.T) {
	doc, _ := Parse([]byte("----\ntext\n---\n"))
	if doc.Offset != 0 {
		t.Errorf("offset = %d, want 0", doc.Offset)
	}
}

func TestDecodeDestination(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Note%202.md", "Note 2"},
		{"folder/Note.markdown", "folder/Note"},
		{"", "()"},
		{"image.png", "image.png"},
		{"Note.md#Heading", "Note.md#Heading"},
		{"bad%zzescape", "bad%zzescape"},
		{"a%23b", "a#b"},
		{"%zz%20y", "%zz y"},
	}
	for _, tc := range cases {
		if got := DecodeDestination(tc.in); got != tc.want {
			t.Errorf("DecodeDestination(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestPercentDecode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Note%201", "Note 1"},
		{"%zz%20y", "%zz y"},
		{"100%", "100%"},
		{"a%2", "a%2"},
		{"%E2%82%AC", "\u20ac"},
		{"%e2%82%ac", "\u20ac"},
		{"bad%FFbyte", "bad\ufffdbyte"},
		{"a+b", "a+b"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := PercentDecode(tc.in); got != tc.want {
			t.Errorf("PercentDecode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
