package graph

import (
	"context"
	"strconv"
	"strings"

	goslug "github.com/gosimple/slug"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/resolve"
)

// OutlineItem is one heading or block of a note.
type OutlineItem struct {
	models.Target
	// Anchor is a URL fragment for headings, unique within the note.
	Anchor string `json:"anchor,omitempty"`
	// Dest is a wikilink destination that resolves back to this item. It is
	// empty when no destination can address it, e.g. a later duplicate.
	Dest string `json:"dest,omitempty"`
}

// Outline lists a note's headings and blocks in document order.
type Outline struct {
	Path  string        `json:"path"`
	Items []OutlineItem `json:"items"`
}

// Outline returns the headings and blocks of the note at path.
func (s *Service) Outline(_ context.Context, path string) (*Outline, error) {
	snap, item, err := s.lookup(path)
	if err != nil {
		return nil, err
	}
	note, ok := item.(models.Note)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return buildOutline(note, snap.resolver), nil
}

func buildOutline(note models.Note, r *resolve.Resolver) *Outline {
	out := &Outline{Path: note.Path, Items: make([]OutlineItem, 0, len(note.Children))}
	file := fileDest(note.Path)

	// addresses reports whether dest, written in this note, resolves to want.
	addresses := func(dest string, want models.Target) bool {
		link, ok := r.Resolve(models.Reference{Path: note.Path, Dest: dest})
		return ok && sameTarget(models.Describe(link.To), want)
	}

	anchors := make(map[string]int)
	var stack []models.Heading

	for _, c := range note.Children {
		item := OutlineItem{Target: models.Describe(c)}
		switch v := c.(type) {
		case models.Heading:
			for len(stack) > 0 && stack[len(stack)-1].Level >= v.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, v)

			// Prefer the full ancestor chain, then drop outer headings.
			for i := range stack {
				texts := make([]string, 0, len(stack)-i)
				for _, h := range stack[i:] {
					texts = append(texts, h.Text)
				}
				if dest := file + "#" + strings.Join(texts, "#"); addresses(dest, item.Target) {
					item.Dest = dest
					break
				}
			}
			item.Anchor = uniqueAnchor(anchors, v.Text)
		case models.Block:
			if dest := file + "#^" + v.Identifier; addresses(dest, item.Target) {
				item.Dest = dest
			}
		}
		out.Items = append(out.Items, item)
	}
	return out
}

// fileDest is the file part addressing path: the path without ".md" when
// that still resolves exactly, the full path otherwise.
func fileDest(path string) string {
	trimmed := strings.TrimSuffix(path, ".md")
	if trimmed != path && !strings.Contains(trimmed, ".") {
		return trimmed
	}
	return path
}

func sameTarget(a, b models.Target) bool {
	if a.Kind != b.Kind || a.Path != b.Path {
		return false
	}
	if a.Range == nil || b.Range == nil {
		return a.Range == b.Range
	}
	return *a.Range == *b.Range
}

// uniqueAnchor slugs text and suffixes repeats with -1, -2, ...
func uniqueAnchor(seen map[string]int, text string) string {
	base := goslug.Make(text)
	if base == "" {
		base = "section"
	}
	n := seen[base]
	seen[base] = n + 1
	if n == 0 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
