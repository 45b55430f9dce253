package parser

import (
	"bytes"

	"github.com/yuin/goldmark/ast"
)

// extent returns the smallest body span covering every line segment of the
// block nodes and every text segment of the inline nodes under n.
func extent(n ast.Node) (start, stop int, ok bool) {
	add := func(s, e int) {
		if !ok || s < start {
			start = s
		}
		if !ok || e > stop {
			stop = e
		}
		ok = true
	}
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		// Lines panics on inline nodes.
		if c.Type() == ast.TypeBlock {
			if lines := c.Lines(); lines != nil {
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					add(seg.Start, seg.Stop)
				}
			}
		} else if t, isText := c.(*ast.Text); isText {
			add(t.Segment.Start, t.Segment.Stop)
		}
		return ast.WalkContinue, nil
	})
	return start, stop, ok
}

// blockExtent widens extent to whole source lines, so list bullets, quote
// markers and table pipes belong to the span.
func blockExtent(src []byte, n ast.Node) (int, int, bool) {
	start, stop, ok := extent(n)
	if !ok {
		return 0, 0, false
	}
	return lineStart(src, start), lineEnd(src, stop), true
}

// enclosingExtent returns the extent of the nearest block ancestor of n.
func enclosingExtent(src []byte, n ast.Node) (int, int) {
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Type() != ast.TypeBlock {
			continue
		}
		if start, stop, ok := blockExtent(src, p); ok {
			return start, stop
		}
	}
	return 0, 0
}

func lineStart(src []byte, pos int) int {
	if pos > len(src) {
		pos = len(src)
	}
	if i := bytes.LastIndexByte(src[:pos], '\n'); i >= 0 {
		return i + 1
	}
	return 0
}

// lineEnd returns the end of the line containing the byte before stop,
// excluding the line terminator.
func lineEnd(src []byte, stop int) int {
	if stop > len(src) {
		stop = len(src)
	}
	if stop > 0 && src[stop-1] == '\n' {
		stop--
	}
	end := stop
	if i := bytes.IndexByte(src[stop:], '\n'); i >= 0 {
		end = stop + i
	} else {
		end = len(src)
	}
	if end > 0 && src[end-1] == '\r' {
		end--
	}
	return end
}

// trimRightSpace moves end left past spaces, tabs and line breaks, never
// crossing floor.
func trimRightSpace(src []byte, floor, end int) int {
	for end > floor {
		switch src[end-1] {
		case ' ', '\t', '\r', '\n':
			end--
		default:
			return end
		}
	}
	return end
}

// closingParen returns the index just past the ')' matching the '(' at open,
// or -1 when the parentheses are unbalanced.
func closingParen(src []byte, open int) int {
	if open >= len(src) || src[open] != '(' {
		return -1
	}
	depth := 0
	for i := open; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		case '\n':
			if i+1 < len(src) && src[i+1] == '\n' {
				return -1
			}
		}
	}
	return -1
}
