// Package scanner walks a vault directory and extracts every note's
// references and referenceables.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/starford/vaultgraph/internal/checksum"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/parser"
)

// DefaultIgnore lists the directory and file names skipped when Options.Ignore is nil.
var DefaultIgnore = []string{".git", ".obsidian"}

// Options configures a scan.
type Options struct {
	// Dir is the vault directory to walk.
	Dir string
	// Root is the directory paths are made relative to. Defaults to Dir.
	Root string
	// Ignore holds base names that are skipped, files and directories alike.
	Ignore []string
	// Workers bounds concurrent note parsing. 0 means GOMAXPROCS.
	Workers int
	Logger  *slog.Logger
}

// NoteInfo is per-note metadata collected during a scan.
type NoteInfo struct {
	Path     string
	Title    string
	Tags     []string
	Checksum string
	// Body is the Markdown text after any frontmatter.
	Body string
}

// Result is the outcome of a full vault scan. Referenceables holds one Note
// or Asset per file in walk order; References holds every reference of
// every note, grouped by note in the same order.
type Result struct {
	Referenceables []models.Referenceable
	References     []models.Reference
	Notes          []NoteInfo
}

// IsNote reports whether name has a Markdown extension.
func IsNote(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

// Ignored reports whether name is one of ignore.
func Ignored(name string, ignore []string) bool {
	for _, ig := range ignore {
		if name == ig {
			return true
		}
	}
	return false
}

type file struct {
	abs  string
	note bool
}

type noteOutput struct {
	note models.Note
	refs []models.Reference
	info NoteInfo
}

// Scan walks opts.Dir and extracts every note. Any read failure aborts the
// whole scan.
func Scan(ctx context.Context, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ignore := opts.Ignore
	if ignore == nil {
		ignore = DefaultIgnore
	}

	dir, err := filepath.Abs(opts.Dir)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve dir: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("scanner: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("scanner: not a directory: %s", dir)
	}

	root := dir
	if opts.Root != "" {
		if root, err = filepath.Abs(opts.Root); err != nil {
			return nil, fmt.Errorf("scanner: resolve root: %w", err)
		}
	}

	files, err := walk(dir, ignore)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	outputs := make([]*noteOutput, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, f := range files {
		if !f.note {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := extractNote(f.abs, relative(root, f.abs))
			if err != nil {
				return err
			}
			outputs[i] = out
			logger.Debug("scanner: note extracted",
				slog.String("path", out.info.Path),
				slog.Int("references", len(out.refs)),
				slog.Int("referenceables", len(out.note.Children)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Referenceables: make([]models.Referenceable, 0, len(files))}
	for i, f := range files {
		if !f.note {
			res.Referenceables = append(res.Referenceables, models.Asset{Path: relative(root, f.abs)})
			continue
		}
		out := outputs[i]
		res.Referenceables = append(res.Referenceables, out.note)
		res.References = append(res.References, out.refs...)
		res.Notes = append(res.Notes, out.info)
	}

	logger.Info("scanner: scan complete",
		slog.String("dir", dir),
		slog.Int("files", len(files)),
		slog.Int("notes", len(res.Notes)),
		slog.Int("references", len(res.References)))
	return res, nil
}

// walk lists every non-ignored file below dir in lexical order.
func walk(dir string, ignore []string) ([]file, error) {
	var files []file
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p != dir && Ignored(d.Name(), ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		files = append(files, file{abs: p, note: IsNote(d.Name())})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanner: walk: %w", err)
	}
	return files, nil
}

func extractNote(abs, rel string) (*noteOutput, error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("scanner: read %s: %w", rel, err)
	}
	doc, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("scanner: parse %s: %w", rel, err)
	}
	refs, children := parser.Extract(rel, doc)
	return &noteOutput{
		note: models.Note{Path: rel, Children: children},
		refs: refs,
		info: NoteInfo{
			Path:     rel,
			Title:    doc.Title,
			Tags:     doc.Tags,
			Checksum: checksum.Sum(data),
			Body:     string(doc.Body),
		},
	}, nil
}

// relative returns p relative to root with forward slashes. Paths outside
// root are returned unchanged.
func relative(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return p
	}
	return filepath.ToSlash(rel)
}
