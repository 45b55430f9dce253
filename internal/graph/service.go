// Package graph owns the current link graph of a vault: it rescans on
// demand, persists each scan to the index and answers queries about it.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/checksum"
	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/resolve"
	"github.com/starford/vaultgraph/internal/scanner"
	"github.com/starford/vaultgraph/internal/storage"
)

// Report summarises a completed rescan.
type Report struct {
	Notes      int           `json:"notes"`
	Assets     int           `json:"assets"`
	References int           `json:"references"`
	Links      int           `json:"links"`
	Unresolved int           `json:"unresolved"`
	Changed    []string      `json:"changed"`
	Duration   time.Duration `json:"duration_ns"`
	ScannedAt  time.Time     `json:"scanned_at"`
}

// snapshot is one immutable scan. It is replaced whole on every rescan.
type snapshot struct {
	resolver  *resolve.Resolver
	scannedAt time.Time
}

// Service coordinates scanning, resolution, persistence and queries.
type Service struct {
	opts   scanner.Options
	db     index.GraphIndex
	store  storage.Provider
	logger *slog.Logger

	scanMu sync.Mutex // serialises rescans

	mu        sync.RWMutex
	snap      *snapshot
	listeners []func(Report)
}

// NewService creates a graph service. Nothing is scanned until Rescan is called.
func NewService(opts scanner.Options, db index.GraphIndex, store storage.Provider, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Service{opts: opts, db: db, store: store, logger: logger}
}

// OnRescan registers fn to be called after every successful rescan.
func (s *Service) OnRescan(fn func(Report)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Scanned reports whether at least one scan has completed.
func (s *Service) Scanned() bool {
	return s.current() != nil
}

func (s *Service) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *Service) require() (*snapshot, error) {
	snap := s.current()
	if snap == nil {
		return nil, apperr.ErrNotScanned
	}
	return snap, nil
}

// Rescan walks the whole vault, resolves every reference, stores the result
// and makes it the current graph. A failed scan leaves the previous graph
// in place.
func (s *Service) Rescan(ctx context.Context) (Report, error) {
	s.scanMu.Lock()
	defer s.scanMu.Unlock()

	start := time.Now()
	res, err := scanner.Scan(ctx, s.opts)
	if err != nil {
		return Report{}, fmt.Errorf("graph: scan: %w", err)
	}
	links, unresolved, err := resolve.BuildLinksConcurrent(ctx, res.References, res.Referenceables, s.opts.Workers)
	if err != nil {
		return Report{}, fmt.Errorf("graph: resolve: %w", err)
	}

	previous, err := s.db.Checksums()
	if err != nil {
		return Report{}, fmt.Errorf("graph: load checksums: %w", err)
	}

	now := time.Now()
	if err := s.db.Replace(buildIndexSnapshot(res, links, unresolved, now)); err != nil {
		return Report{}, fmt.Errorf("graph: persist: %w", err)
	}

	snap := &snapshot{
		resolver:  resolve.NewResolver(res.Referenceables),
		scannedAt: now,
	}

	report := Report{
		Notes:      len(res.Notes),
		Assets:     len(res.Referenceables) - len(res.Notes),
		References: len(res.References),
		Links:      len(links),
		Unresolved: len(unresolved),
		Changed:    changedNotes(previous, res.Notes),
		Duration:   time.Since(start),
		ScannedAt:  now,
	}

	s.mu.Lock()
	s.snap = snap
	listeners := append([]func(Report){}, s.listeners...)
	s.mu.Unlock()

	s.logger.Info("graph: rescan complete",
		slog.Int("notes", report.Notes),
		slog.Int("links", report.Links),
		slog.Int("unresolved", report.Unresolved),
		slog.Int("changed", len(report.Changed)),
		slog.String("duration", report.Duration.String()))

	for _, fn := range listeners {
		fn(report)
	}
	return report, nil
}

func buildIndexSnapshot(res *scanner.Result, links []models.Link, unresolved []models.Reference, at time.Time) index.Snapshot {
	out := index.Snapshot{
		Notes:          make([]index.NoteRow, 0, len(res.Notes)),
		Referenceables: index.ReferenceableRows(res.Referenceables),
		Links:          make([]index.LinkRow, 0, len(links)),
		Unresolved:     make([]index.UnresolvedRow, 0, len(unresolved)),
	}
	for _, n := range res.Notes {
		out.Notes = append(out.Notes, index.NoteRow{
			Path:      n.Path,
			Title:     n.Title,
			Checksum:  n.Checksum,
			Tags:      n.Tags,
			Body:      n.Body,
			ScannedAt: at,
		})
	}
	for _, l := range links {
		out.Links = append(out.Links, index.LinkRowOf(l))
	}
	for _, u := range unresolved {
		out.Unresolved = append(out.Unresolved, index.UnresolvedRowOf(u))
	}
	return out
}

// changedNotes lists notes added, removed or modified since the previous
// scan, sorted by path.
func changedNotes(previous map[string]string, notes []scanner.NoteInfo) []string {
	current := make(map[string]string, len(notes))
	for _, n := range notes {
		current[n.Path] = n.Checksum
	}
	return checksum.Diff(previous, current)
}

// Stats returns counts for the current scan and when it completed.
func (s *Service) Stats(_ context.Context) (index.Counts, time.Time, error) {
	snap, err := s.require()
	if err != nil {
		return index.Counts{}, time.Time{}, err
	}
	c, err := s.db.Counts()
	if err != nil {
		return index.Counts{}, time.Time{}, err
	}
	return c, snap.scannedAt, nil
}

// lookup returns the scanned file at path.
func (s *Service) lookup(path string) (*snapshot, models.Referenceable, error) {
	snap, err := s.require()
	if err != nil {
		return nil, nil, err
	}
	if path == "" {
		return nil, nil, fmt.Errorf("graph: empty path: %w", apperr.ErrInvalid)
	}
	item, ok := snap.resolver.Lookup(path)
	if !ok {
		return nil, nil, apperr.ErrNotFound
	}
	return snap, item, nil
}

// Links returns the resolved links written in the note at from, in
// document order.
func (s *Service) Links(_ context.Context, from string) ([]index.LinkRow, error) {
	if _, _, err := s.lookup(from); err != nil {
		return nil, err
	}
	return s.db.LinksFrom(from)
}

// Backlinks returns every resolved link pointing into the file at path,
// whether it targets the whole file, a heading or a block.
func (s *Service) Backlinks(_ context.Context, path string) ([]index.LinkRow, error) {
	if _, _, err := s.lookup(path); err != nil {
		return nil, err
	}
	return s.db.Backlinks(path)
}

// IsExternal reports whether dest is a URL rather than a vault path.
func IsExternal(dest string) bool {
	return strings.Contains(dest, "://") || strings.HasPrefix(dest, "mailto:")
}

// Unresolved returns references whose file part matched no vault path.
// External URLs are omitted unless includeExternal is set. limit <= 0
// returns everything.
func (s *Service) Unresolved(_ context.Context, includeExternal bool, limit int) ([]models.Reference, error) {
	if _, err := s.require(); err != nil {
		return nil, err
	}
	rows, err := s.db.Unresolved(0)
	if err != nil {
		return nil, err
	}
	out := make([]models.Reference, 0, len(rows))
	for _, r := range rows {
		if !includeExternal && IsExternal(r.Dest) {
			continue
		}
		out = append(out, r.Reference())
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Resolution is the outcome of resolving a single destination.
type Resolution struct {
	From     string         `json:"from"`
	Dest     string         `json:"dest"`
	Resolved bool           `json:"resolved"`
	Target   *models.Target `json:"target,omitempty"`
}

// Resolve resolves dest as if it were written in the note at from. An
// unresolved destination is a normal result, not an error.
func (s *Service) Resolve(_ context.Context, from, dest string) (Resolution, error) {
	snap, err := s.require()
	if err != nil {
		return Resolution{}, err
	}
	if dest == "" {
		return Resolution{}, fmt.Errorf("graph: empty destination: %w", apperr.ErrInvalid)
	}
	out := Resolution{From: from, Dest: dest}
	link, ok := snap.resolver.Resolve(models.Reference{Path: from, Dest: dest})
	if !ok {
		return out, nil
	}
	t := models.Describe(link.To)
	out.Resolved = true
	out.Target = &t
	return out, nil
}

// ReadNote returns the raw content of a vault file.
func (s *Service) ReadNote(_ context.Context, path string) ([]byte, error) {
	data, err := s.store.Read(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Note returns the indexed metadata of the note at path.
func (s *Service) Note(_ context.Context, path string) (*index.NoteRow, error) {
	if _, err := s.require(); err != nil {
		return nil, err
	}
	return s.db.GetNote(path)
}

// ListNotes returns indexed notes ordered by path, optionally filtered by tag.
func (s *Service) ListNotes(_ context.Context, tag string, limit, offset int) ([]index.NoteRow, int, error) {
	if _, err := s.require(); err != nil {
		return nil, 0, err
	}
	return s.db.ListNotes(tag, limit, offset)
}

// Search finds notes by title, tags or body text.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if _, err := s.require(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("graph: empty query: %w", apperr.ErrInvalid)
	}
	return s.db.Search(query, limit)
}
