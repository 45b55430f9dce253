package parser

import (
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/models"
)

func extract(t *testing.T, src string) ([]models.Reference, []models.Referenceable) {
	t.Helper()
	doc, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return Extract("n.md", doc)
}

func spanText(src string, r models.ByteRange) string {
	if r.Start < 0 || r.End > len(src) || r.Start > r.End {
		return "<out of range>"
	}
	return src[r.Start:r.End]
}

func TestExtract_WikiLinks(t *testing.T) {
	src := "See [[Note 2#Some level 2 title]] and [[Other|alias]].\n"
	refs, _ := extract(t, src)
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2: %+v", len(refs), refs)
	}

	r := refs[0]
	if r.Dest != "Note 2#Some level 2 title" || r.DisplayText != r.Dest || r.Kind != models.KindWikiLink {
		t.Errorf("ref[0] = %+v", r)
	}
	if got := spanText(src, r.Range); got != "[[Note 2#Some level 2 title]]" {
		t.Errorf("ref[0] span = %q", got)
	}
	if r.Path != "n.md" {
		t.Errorf("ref[0] path = %q", r.Path)
	}

	r = refs[1]
	if r.Dest != "Other" || r.DisplayText != "alias" {
		t.Errorf("ref[1] = %+v", r)
	}
	if got := spanText(src, r.Range); got != "[[Other|alias]]" {
		t.Errorf("ref[1] span = %q", got)
	}
}

func TestExtract_WikiLinkTrimsTarget(t *testing.T) {
	refs, _ := extract(t, "x [[ Spaced Note ]] y\n")
	if len(refs) != 1 || refs[0].Dest != "Spaced Note" {
		t.Fatalf("refs = %+v", refs)
	}
}

func TestExtract_SameNoteBlockLink(t *testing.T) {
	refs, _ := extract(t, "Jump [[#^my-id]] here.\n")
	if len(refs) != 1 || refs[0].Dest != "#^my-id" {
		t.Fatalf("refs = %+v", refs)
	}
}

func TestExtract_Embed(t *testing.T) {
	src := "Look: ![[image.png]]\n"
	refs, _ := extract(t, src)
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1", len(refs))
	}
	if refs[0].Kind != models.KindEmbed || refs[0].Dest != "image.png" {
		t.Errorf("ref = %+v", refs[0])
	}
	if got := spanText(src, refs[0].Range); got != "![[image.png]]" {
		t.Errorf("span = %q", got)
	}
}

func TestExtract_MarkdownLinks(t *testing.T) {
	src := "Go [Two](Note%202.md) or [](<>) and ![alt](img/pic.png).\n"
	refs, _ := extract(t, src)
	if len(refs) != 3 {
		t.Fatalf("len(refs) = %d, want 3: %+v", len(refs), refs)
	}

	if refs[0].Dest != "Note 2" || refs[0].DisplayText != "Two" || refs[0].Kind != models.KindMarkdownLink {
		t.Errorf("ref[0] = %+v", refs[0])
	}
	if got := spanText(src, refs[0].Range); got != "[Two](Note%202.md)" {
		t.Errorf("ref[0] span = %q", got)
	}

	if refs[1].Dest != "()" || refs[1].DisplayText != "" {
		t.Errorf("ref[1] = %+v", refs[1])
	}

	if refs[2].Kind != models.KindEmbed || refs[2].Dest != "img/pic.png" || refs[2].DisplayText != "alt" {
		t.Errorf("ref[2] = %+v", refs[2])
	}
	if got := spanText(src, refs[2].Range); got != "![alt](img/pic.png)" {
		t.Errorf("ref[2] span = %q", got)
	}
}

func TestExtract_DocumentOrder(t *testing.T) {
	refs, _ := extract(t, "# Title [[A]]\n\n[[B]] then [c](C.md)\n\n- [[D]]\n")
	var got []string
	for _, r := range refs {
		got = append(got, r.Dest)
	}
	if strings.Join(got, ",") != "A,B,C,D" {
		t.Errorf("order = %v, want [A B C D]", got)
	}
}

func TestExtract_Headings(t *testing.T) {
	src := "# A\n\ntext\n\n### B `code`\n"
	_, items := extract(t, src)
	if len(items) != 2 {
		t.Fatalf("len(items) = %d, want 2: %+v", len(items), items)
	}
	h0, ok := items[0].(models.Heading)
	if !ok || h0.Level != 1 || h0.Text != "A" {
		t.Errorf("items[0] = %+v", items[0])
	}
	if got := spanText(src, h0.Range); got != "# A" {
		t.Errorf("heading span = %q", got)
	}
	h1, ok := items[1].(models.Heading)
	if !ok || h1.Level != 3 || h1.Text != "B code" {
		t.Errorf("items[1] = %+v", items[1])
	}
}

func TestExtract_HeadingRangeIncludesFrontmatterOffset(t *testing.T) {
	src := "---\ntitle: T\n---\n# H\n"
	_, items := extract(t, src)
	if len(items) != 1 {
		t.Fatalf("items = %+v", items)
	}
	h := items[0].(models.Heading)
	if got := spanText(src, h.Range); got != "# H" {
		t.Errorf("heading span = %q", got)
	}
}

func blocksOf(items []models.Referenceable) []models.Block {
	var out []models.Block
	for _, it := range items {
		if b, ok := it.(models.Block); ok {
			out = append(out, b)
		}
	}
	return out
}

func TestExtract_InlineBlocks(t *testing.T) {
	src := "Para text ^p1\n\n- one\n- two ^li\n"
	_, items := extract(t, src)
	blocks := blocksOf(items)
	if len(blocks) != 2 {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Identifier != "p1" || blocks[0].Kind != models.BlockInlineParagraph {
		t.Errorf("blocks[0] = %+v", blocks[0])
	}
	if got := spanText(src, blocks[0].Range); got != "Para text" {
		t.Errorf("blocks[0] span = %q", got)
	}
	if blocks[1].Identifier != "li" || blocks[1].Kind != models.BlockInlineListItem {
		t.Errorf("blocks[1] = %+v", blocks[1])
	}
	if got := spanText(src, blocks[1].Range); got != "two" {
		t.Errorf("blocks[1] span = %q", got)
	}
}

func TestExtract_StandaloneMarkers(t *testing.T) {
	cases := []struct {
		name string
		src  string
		kind models.BlockKind
		span string
	}{
		{"list", "- a\n- b\n\n^list-id\n", models.BlockList, "- a\n- b"},
		{"paragraph", "Some para.\n\n^para\n", models.BlockParagraph, "Some para."},
		{"blockquote", "> quoted\n\n^q\n", models.BlockBlockQuote, "> quoted"},
		{"table", "| a | b |\n| - | - |\n| 1 | 2 |\n\n^t\n", models.BlockTable, "| a | b |\n| - | - |\n| 1 | 2 |"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, items := extract(t, tc.src)
			blocks := blocksOf(items)
			if len(blocks) != 1 {
				t.Fatalf("blocks = %+v", blocks)
			}
			if blocks[0].Kind != tc.kind {
				t.Errorf("kind = %q, want %q", blocks[0].Kind, tc.kind)
			}
			if got := spanText(tc.src, blocks[0].Range); got != tc.span {
				t.Errorf("span = %q, want %q", got, tc.span)
			}
		})
	}
}

func TestExtract_DuplicateIdentifiersAllRecorded(t *testing.T) {
	_, items := extract(t, "x ^dup\n\ny ^dup\n")
	blocks := blocksOf(items)
	if len(blocks) != 2 || blocks[0].Identifier != "dup" || blocks[1].Identifier != "dup" {
		t.Fatalf("blocks = %+v", blocks)
	}
	if blocks[0].Range.Start >= blocks[1].Range.Start {
		t.Error("blocks not in document order")
	}
}

func TestExtract_InvalidMarkerIgnored(t *testing.T) {
	_, items := extract(t, "text ^bad_id\n\n^\n\nword^glued\n")
	if blocks := blocksOf(items); len(blocks) != 0 {
		t.Errorf("blocks = %+v, want none", blocks)
	}
}

func TestExtract_ImageInsideLink(t *testing.T) {
	src := "[![img](a.png)](Note.md)\n"
	refs, _ := extract(t, src)
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2: %+v", len(refs), refs)
	}

	outer := refs[0]
	if outer.Dest != "Note" || outer.Kind != models.KindMarkdownLink {
		t.Errorf("outer = %+v", outer)
	}
	if got := spanText(src, outer.Range); got != "[![img](a.png)](Note.md)" {
		t.Errorf("outer span = %q, want %q", got, "[![img](a.png)](Note.md)")
	}

	inner := refs[1]
	if inner.Dest != "a.png" || inner.Kind != models.KindEmbed {
		t.Errorf("inner = %+v", inner)
	}
	if got := spanText(src, inner.Range); got != "![img](a.png)" {
		t.Errorf("inner span = %q, want %q", got, "![img](a.png)")
	}
}

func TestExtract_ImageAfterTextInsideLink(t *testing.T) {
	src := "x [see ![i](b.png) now](Other.md) y\n"
	refs, _ := extract(t, src)
	if len(refs) != 2 {
		t.Fatalf("len(refs) = %d, want 2: %+v", len(refs), refs)
	}
	if got := spanText(src, refs[0].Range); got != "[see ![i](b.png) now](Other.md)" {
		t.Errorf("outer span = %q", got)
	}
	if got := spanText(src, refs[1].Range); got != "![i](b.png)" {
		t.Errorf("inner span = %q", got)
	}
}

func TestExtract_WikiLinkAliasInTable(t *testing.T) {
	src := "| col |\n| --- |\n| [[Note\\|alias]] |\n"
	refs, _ := extract(t, src)
	if len(refs) != 1 {
		t.Fatalf("len(refs) = %d, want 1: %+v", len(refs), refs)
	}
	if refs[0].Dest != "Note" {
		t.Errorf("dest = %q, want %q", refs[0].Dest, "Note")
	}
	if refs[0].DisplayText != "alias" {
		t.Errorf("display = %q, want %q", refs[0].DisplayText, "alias")
	}
}
