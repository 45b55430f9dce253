package resolve

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultgraph/internal/models"
)

// Resolver resolves references against a fixed set of scanned referenceables.
// It is read-only after construction and safe for concurrent use.
type Resolver struct {
	paths  []string
	byPath map[string]models.Referenceable
}

// NewResolver indexes the Notes and Assets in referenceables. Path order
// follows the input, which decides ties in ResolveLink.
func NewResolver(referenceables []models.Referenceable) *Resolver {
	r := &Resolver{byPath: make(map[string]models.Referenceable, len(referenceables))}
	for _, item := range referenceables {
		switch item.(type) {
		case models.Note, models.Asset:
		default:
			continue
		}
		p := item.RefPath()
		if _, dup := r.byPath[p]; dup {
			continue
		}
		r.byPath[p] = item
		r.paths = append(r.paths, p)
	}
	return r
}

// Paths returns the known file paths in scan order.
func (r *Resolver) Paths() []string {
	return r.paths
}

// Lookup returns the Note or Asset stored at path.
func (r *Resolver) Lookup(path string) (models.Referenceable, bool) {
	item, ok := r.byPath[path]
	return item, ok
}

// Resolve turns ref into a Link. It reports false only when the file part
// of the destination matches no known path; failed heading or block lookups
// fall back to the whole note.
func (r *Resolver) Resolve(ref models.Reference) (models.Link, bool) {
	d := SplitDest(ref.Dest)

	file := d.File
	if file == "" {
		file = ref.Path
	}

	p, ok := ResolveLink(file, r.paths)
	if !ok {
		return models.Link{}, false
	}
	target := r.byPath[p]

	note, isNote := target.(models.Note)
	if !isNote {
		return models.Link{From: ref, To: models.Clone(target)}, true
	}

	var to models.Referenceable = note
	switch {
	case d.Headings != nil:
		if h, ok := ResolveNestedHeadings(note.Headings(), d.Headings); ok {
			to = h
		}
	case d.Block != "":
		if blocks := note.Blocks(d.Block); len(blocks) > 0 {
			to = blocks[0]
		}
	}
	return models.Link{From: ref, To: models.Clone(to)}, true
}

// BuildLinks resolves every reference in order. Resolved references become
// links; the rest are returned unchanged as unresolved. Both outputs keep
// the input order.
func BuildLinks(refs []models.Reference, referenceables []models.Referenceable) ([]models.Link, []models.Reference) {
	return NewResolver(referenceables).resolveAll(refs)
}

func (r *Resolver) resolveAll(refs []models.Reference) ([]models.Link, []models.Reference) {
	var (
		links      []models.Link
		unresolved []models.Reference
	)
	for _, ref := range refs {
		if link, ok := r.Resolve(ref); ok {
			links = append(links, link)
			continue
		}
		unresolved = append(unresolved, ref)
	}
	return links, unresolved
}

// BuildLinksConcurrent produces the same output as BuildLinks, resolving
// contiguous chunks of refs on up to workers goroutines. workers <= 0 uses
// GOMAXPROCS.
func BuildLinksConcurrent(ctx context.Context, refs []models.Reference, referenceables []models.Referenceable, workers int) ([]models.Link, []models.Reference, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	r := NewResolver(referenceables)
	if workers == 1 || len(refs) < 2*workers {
		links, unresolved := r.resolveAll(refs)
		return links, unresolved, ctx.Err()
	}

	type part struct {
		links      []models.Link
		unresolved []models.Reference
	}

	chunk := (len(refs) + workers - 1) / workers
	parts := make([]part, (len(refs)+chunk-1)/chunk)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range parts {
		lo := i * chunk
		hi := min(lo+chunk, len(refs))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			l, u := r.resolveAll(refs[lo:hi])
			parts[i] = part{links: l, unresolved: u}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var (
		links      []models.Link
		unresolved []models.Reference
	)
	for _, p := range parts {
		links = append(links, p.links...)
		unresolved = append(unresolved, p.unresolved...)
	}
	return links, unresolved, nil
}
