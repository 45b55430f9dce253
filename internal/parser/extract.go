package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"
	"go.abhg.dev/goldmark/wikilink"

	"github.com/starford/vaultgraph/internal/models"
)

// Extract walks the document tree in pre-order and returns the references
// and in-note referenceables of the note at path, both in document order.
//
// Every block marker is recorded, including duplicate identifiers within
// one note; resolution picks the first of them.
func Extract(path string, doc *Document) ([]models.Reference, []models.Referenceable) {
	x := &extractor{path: path, doc: doc, src: doc.Body}

	_ = ast.Walk(doc.Root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *wikilink.Node:
			x.wikilink(node)
		case *ast.Link:
			x.inlineLink(node, string(node.Destination), false)
		case *ast.Image:
			x.inlineLink(node, string(node.Destination), true)
		case *ast.Heading:
			x.heading(node)
		case *ast.Paragraph, *ast.TextBlock:
			x.blockMarker(node)
		}
		return ast.WalkContinue, nil
	})

	return x.refs, x.items
}

type extractor struct {
	path  string
	doc   *Document
	src   []byte
	pos   int // body offset past the last located inline reference
	refs  []models.Reference
	items []models.Referenceable
}

func (x *extractor) rng(start, end int) models.ByteRange {
	return models.ByteRange{Start: start + x.doc.Offset, End: end + x.doc.Offset}
}

func (x *extractor) wikilink(n *wikilink.Node) {
	target := string(n.Target)
	if len(n.Fragment) > 0 {
		target += "#" + string(n.Fragment)
	}

	blockStart, blockStop := enclosingExtent(x.src, n)
	from := max(x.pos, blockStart)

	needle := []byte("[[" + target)
	rel := bytes.Index(x.src[from:], needle)
	if rel < 0 {
		// Literal not found; describe the link from the node alone.
		if inTableCell(n) {
			target = strings.TrimSuffix(target, "\\")
		}
		dest := strings.TrimSpace(target)
		display := dest
		if label := strings.TrimSpace(childText(n, x.src)); label != "" && label != dest {
			display = label
		}
		x.refs = append(x.refs, models.Reference{
			Path:        x.path,
			Range:       x.rng(blockStart, blockStop),
			Dest:        dest,
			Kind:        models.KindWikiLink,
			DisplayText: display,
		})
		return
	}

	start := from + rel
	innerStart := start + 2
	end := len(x.src)
	innerEnd := end
	if i := bytes.Index(x.src[innerStart:], []byte("]]")); i >= 0 {
		innerEnd = innerStart + i
		end = innerEnd + 2
	}

	kind := models.KindWikiLink
	if start > 0 && x.src[start-1] == '!' {
		kind = models.KindEmbed
		start--
	}

	inner := string(x.src[innerStart:innerEnd])
	dest, display := inner, ""
	if i := strings.IndexByte(inner, '|'); i >= 0 {
		dest, display = inner[:i], strings.TrimSpace(inner[i+1:])
		if inTableCell(n) {
			// "\|" keeps the alias pipe from splitting the table cell.
			dest = strings.TrimSuffix(dest, "\\")
		}
	}
	dest = strings.TrimSpace(dest)
	if display == "" {
		display = dest
	}

	x.pos = end
	x.refs = append(x.refs, models.Reference{
		Path:        x.path,
		Range:       x.rng(start, end),
		Dest:        dest,
		Kind:        kind,
		DisplayText: display,
	})
}

func (x *extractor) inlineLink(n ast.Node, rawDest string, image bool) {
	kind := models.KindMarkdownLink
	if image {
		kind = models.KindEmbed
	}

	start, end := x.inlineLinkSpan(n, image)
	x.pos = max(x.pos, end)
	x.refs = append(x.refs, models.Reference{
		Path:        x.path,
		Range:       x.rng(start, end),
		Dest:        DecodeDestination(rawDest),
		Kind:        kind,
		DisplayText: childText(n, x.src),
	})
}

// inlineLinkSpan locates "[text](dest)" or "![alt](src)" in the body.
func (x *extractor) inlineLinkSpan(n ast.Node, image bool) (int, int) {
	blockStart, blockStop := enclosingExtent(x.src, n)

	opener := []byte("[")
	if image {
		opener = []byte("![")
	}

	var start, textStop int
	if ts, te, ok := x.contentSpan(n); ok {
		start = bytes.LastIndex(x.src[:ts], opener)
		textStop = te
	} else {
		from := max(x.pos, blockStart)
		rel := bytes.Index(x.src[from:], append(opener, ']'))
		if rel < 0 {
			return blockStart, blockStop
		}
		start = from + rel
		textStop = start + len(opener)
	}
	if start < 0 {
		return blockStart, blockStop
	}

	open := bytes.Index(x.src[textStop:], []byte("]("))
	if open < 0 {
		return start, min(textStop+1, len(x.src))
	}
	end := closingParen(x.src, textStop+open+1)
	if end < 0 {
		return start, min(textStop+1, len(x.src))
	}
	return start, end
}

// contentSpan returns the body span covered by the inline children of n.
// Nested links and images contribute their whole span, brackets included,
// so the opener found before it belongs to n itself.
func (x *extractor) contentSpan(n ast.Node) (start, stop int, ok bool) {
	add := func(s, e int) {
		if !ok || s < start {
			start = s
		}
		if !ok || e > stop {
			stop = e
		}
		ok = true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Link:
			add(x.inlineLinkSpan(v, false))
		case *ast.Image:
			add(x.inlineLinkSpan(v, true))
		case *ast.Text:
			add(v.Segment.Start, v.Segment.Stop)
		default:
			if s, e, found := x.contentSpan(c); found {
				add(s, e)
			}
		}
	}
	return start, stop, ok
}

func (x *extractor) heading(h *ast.Heading) {
	var rng models.ByteRange
	if start, stop, ok := extent(h); ok {
		rng = x.rng(lineStart(x.src, start), lineEnd(x.src, stop))
	}
	x.items = append(x.items, models.Heading{
		Path:  x.path,
		Level: h.Level,
		Text:  headingText(h, x.src),
		Range: rng,
	})
}

// blockMarker records a Block when the paragraph-like node n ends with a
// "^identifier" token. A paragraph holding nothing but the marker addresses
// its previous sibling block instead.
func (x *extractor) blockMarker(n ast.Node) {
	lines := n.Lines()
	if lines == nil || lines.Len() == 0 {
		return
	}
	last := lines.At(lines.Len() - 1)
	line := strings.TrimRight(string(last.Value(x.src)), " \t\r\n")

	sep := strings.LastIndexAny(line, " \t")
	token := line[sep+1:]
	if !strings.HasPrefix(token, "^") || !models.ValidBlockIdentifier(token[1:]) {
		return
	}
	id := token[1:]

	if sep < 0 && lines.Len() == 1 {
		x.standaloneMarker(n, id)
		return
	}

	first := lines.At(0)
	markerStart := last.Start + sep + 1
	end := trimRightSpace(x.src, first.Start, markerStart)

	kind := models.BlockInlineParagraph
	if _, inItem := n.Parent().(*ast.ListItem); inItem {
		kind = models.BlockInlineListItem
	}
	x.items = append(x.items, models.Block{
		Path:       x.path,
		Identifier: id,
		Kind:       kind,
		Range:      x.rng(first.Start, end),
	})
}

func (x *extractor) standaloneMarker(n ast.Node, id string) {
	prev := n.PreviousSibling()
	if prev == nil {
		return
	}

	var kind models.BlockKind
	switch prev.(type) {
	case *ast.Paragraph:
		kind = models.BlockParagraph
	case *ast.List:
		kind = models.BlockList
	case *ast.Blockquote:
		kind = models.BlockBlockQuote
	case *east.Table:
		kind = models.BlockTable
	default:
		return
	}

	start, end, ok := blockExtent(x.src, prev)
	if !ok {
		return
	}
	x.items = append(x.items, models.Block{
		Path:       x.path,
		Identifier: id,
		Kind:       kind,
		Range:      x.rng(start, end),
	})
}

func inTableCell(n ast.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if _, ok := p.(*east.TableCell); ok {
			return true
		}
	}
	return false
}

// headingText concatenates the Text and code span children of h.
func headingText(h *ast.Heading, src []byte) string {
	var b strings.Builder
	for c := h.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
		case *ast.CodeSpan:
			for cc := v.FirstChild(); cc != nil; cc = cc.NextSibling() {
				if t, ok := cc.(*ast.Text); ok {
					b.Write(t.Segment.Value(src))
				}
			}
		}
	}
	return b.String()
}

// childText concatenates every text segment below n.
func childText(n ast.Node, src []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := c.(*ast.Text); ok {
				b.Write(t.Segment.Value(src))
			}
		}
		return ast.WalkContinue, nil
	})
	return b.String()
}
