package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/models"
)

// NoteRow represents a row in the notes table.
type NoteRow struct {
	Path      string
	Title     string
	Checksum  string
	Tags      []string
	Body      string
	ScannedAt time.Time
}

// ReferenceableRow is one Note, Asset, Heading or Block of a scan.
type ReferenceableRow struct {
	Path       string
	Kind       models.TargetKind
	Level      int
	Text       string
	Identifier string
	BlockKind  models.BlockKind
	Range      models.ByteRange
}

// LinkRow is a resolved reference together with a description of its target.
type LinkRow struct {
	Source      string
	Range       models.ByteRange
	Dest        string
	RefKind     models.ReferenceKind
	Display     string
	TargetPath  string
	TargetKind  models.TargetKind
	TargetLabel string
}

// UnresolvedRow is a reference whose file part matched no vault path.
type UnresolvedRow struct {
	Source  string
	Range   models.ByteRange
	Dest    string
	RefKind models.ReferenceKind
	Display string
}

// Counts summarises the stored scan.
type Counts struct {
	Notes          int `json:"notes"`
	Assets         int `json:"assets"`
	Referenceables int `json:"referenceables"`
	Links          int `json:"links"`
	Unresolved     int `json:"unresolved"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Snapshot is everything a single scan persists.
type Snapshot struct {
	Notes          []NoteRow
	Referenceables []ReferenceableRow
	Links          []LinkRow
	Unresolved     []UnresolvedRow
}

// ReferenceableRows flattens scanned referenceables, Note children
// following their Note, in document order.
func ReferenceableRows(items []models.Referenceable) []ReferenceableRow {
	var out []ReferenceableRow
	var add func(r models.Referenceable)
	add = func(r models.Referenceable) {
		t := models.Describe(r)
		row := ReferenceableRow{
			Path:       t.Path,
			Kind:       t.Kind,
			Level:      t.Level,
			Text:       t.Text,
			Identifier: t.Identifier,
			BlockKind:  t.BlockKind,
		}
		if t.Range != nil {
			row.Range = *t.Range
		}
		out = append(out, row)
		if n, ok := r.(models.Note); ok {
			for _, c := range n.Children {
				add(c)
			}
		}
	}
	for _, r := range items {
		add(r)
	}
	return out
}

// LinkRowOf describes a resolved link for storage.
func LinkRowOf(l models.Link) LinkRow {
	t := models.Describe(l.To)
	return LinkRow{
		Source:      l.From.Path,
		Range:       l.From.Range,
		Dest:        l.From.Dest,
		RefKind:     l.From.Kind,
		Display:     l.From.DisplayText,
		TargetPath:  t.Path,
		TargetKind:  t.Kind,
		TargetLabel: t.Label(),
	}
}

// UnresolvedRowOf describes an unresolved reference for storage.
func UnresolvedRowOf(r models.Reference) UnresolvedRow {
	return UnresolvedRow{
		Source:  r.Path,
		Range:   r.Range,
		Dest:    r.Dest,
		RefKind: r.Kind,
		Display: r.DisplayText,
	}
}

// Reference converts the row back into the reference it was stored from.
func (u UnresolvedRow) Reference() models.Reference {
	return models.Reference{Path: u.Source, Range: u.Range, Dest: u.Dest, Kind: u.RefKind, DisplayText: u.Display}
}

// Replace rewrites every table from s within a single transaction. A scan
// is always stored whole.
func (db *DB) Replace(s Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, table := range []string{"notes", "referenceables", "links", "unresolved"} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("index: clear %s: %w", table, err)
		}
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	noteStmt, err := tx.Prepare(`INSERT INTO notes (path, title, checksum, tags, body, scanned_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare note insert: %w", err)
	}
	defer noteStmt.Close()
	for _, n := range s.Notes {
		tags := n.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, _ := json.Marshal(tags)
		if _, err := noteStmt.Exec(n.Path, n.Title, n.Checksum, string(tagsJSON), n.Body, n.ScannedAt); err != nil {
			return fmt.Errorf("index: insert note: %w", err)
		}
		if err := ftsInsert(tx, n.Path, n.Title, n.Body, n.Tags); err != nil {
			return err
		}
	}

	refStmt, err := tx.Prepare(`
		INSERT INTO referenceables (path, kind, level, text, identifier, block_kind, start_byte, end_byte, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare referenceable insert: %w", err)
	}
	defer refStmt.Close()
	for i, r := range s.Referenceables {
		if _, err := refStmt.Exec(r.Path, r.Kind, r.Level, r.Text, r.Identifier, r.BlockKind, r.Range.Start, r.Range.End, i); err != nil {
			return fmt.Errorf("index: insert referenceable: %w", err)
		}
	}

	linkStmt, err := tx.Prepare(`
		INSERT INTO links (source, start_byte, end_byte, dest, ref_kind, display, target_path, target_kind, target_label, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare link insert: %w", err)
	}
	defer linkStmt.Close()
	for i, l := range s.Links {
		if _, err := linkStmt.Exec(l.Source, l.Range.Start, l.Range.End, l.Dest, l.RefKind, l.Display, l.TargetPath, l.TargetKind, l.TargetLabel, i); err != nil {
			return fmt.Errorf("index: insert link: %w", err)
		}
	}

	unresStmt, err := tx.Prepare(`
		INSERT INTO unresolved (source, start_byte, end_byte, dest, ref_kind, display, ord)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare unresolved insert: %w", err)
	}
	defer unresStmt.Close()
	for i, u := range s.Unresolved {
		if _, err := unresStmt.Exec(u.Source, u.Range.Start, u.Range.End, u.Dest, u.RefKind, u.Display, i); err != nil {
			return fmt.Errorf("index: insert unresolved: %w", err)
		}
	}

	return tx.Commit()
}

// Checksums returns the stored checksum of every note keyed by path.
func (db *DB) Checksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM notes`)
	if err != nil {
		return nil, fmt.Errorf("index: checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// GetNote returns a single note row. Missing notes yield apperr.ErrNotFound.
func (db *DB) GetNote(path string) (*NoteRow, error) {
	var (
		n    NoteRow
		tags string
	)
	err := db.conn.QueryRow(`SELECT path, title, checksum, tags, body, scanned_at FROM notes WHERE path = ?`, path).
		Scan(&n.Path, &n.Title, &n.Checksum, &tags, &n.Body, &n.ScannedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("index: get note: %w", err)
	}
	n.Tags = decodeTags(tags)
	return &n, nil
}

// ListNotes returns notes ordered by path, optionally restricted to those
// carrying tag, together with the total number of matches. Bodies are not
// loaded.
func (db *DB) ListNotes(tag string, limit, offset int) ([]NoteRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	where := ""
	args := []any{}
	if tag != "" {
		where = `WHERE EXISTS (SELECT 1 FROM json_each(notes.tags) WHERE json_each.value = ?)`
		args = append(args, tag)
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM notes `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count notes: %w", err)
	}

	rows, err := db.conn.Query(`
		SELECT path, title, checksum, tags, scanned_at FROM notes `+where+`
		ORDER BY path LIMIT ? OFFSET ?`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list notes: %w", err)
	}
	defer rows.Close()

	var out []NoteRow
	for rows.Next() {
		var (
			n    NoteRow
			tags string
		)
		if err := rows.Scan(&n.Path, &n.Title, &n.Checksum, &tags, &n.ScannedAt); err != nil {
			return nil, 0, err
		}
		n.Tags = decodeTags(tags)
		out = append(out, n)
	}
	return out, total, rows.Err()
}

func decodeTags(s string) []string {
	var tags []string
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

const linkColumns = `source, start_byte, end_byte, dest, ref_kind, display, target_path, target_kind, target_label`

// LinksFrom returns the resolved links written in source, in document order.
func (db *DB) LinksFrom(source string) ([]LinkRow, error) {
	return db.queryLinks(`SELECT `+linkColumns+` FROM links WHERE source = ? ORDER BY ord`, source)
}

// Backlinks returns every resolved link whose target lives in target,
// whatever the target kind.
func (db *DB) Backlinks(target string) ([]LinkRow, error) {
	return db.queryLinks(`SELECT `+linkColumns+` FROM links WHERE target_path = ? ORDER BY ord`, target)
}

func (db *DB) queryLinks(query string, args ...any) ([]LinkRow, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("index: query links: %w", err)
	}
	defer rows.Close()

	var out []LinkRow
	for rows.Next() {
		var l LinkRow
		if err := rows.Scan(&l.Source, &l.Range.Start, &l.Range.End, &l.Dest, &l.RefKind, &l.Display,
			&l.TargetPath, &l.TargetKind, &l.TargetLabel); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// Unresolved returns unresolved references in scan order. limit <= 0
// returns all of them.
func (db *DB) Unresolved(limit int) ([]UnresolvedRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.Query(`
		SELECT source, start_byte, end_byte, dest, ref_kind, display
		FROM unresolved ORDER BY ord LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: unresolved: %w", err)
	}
	defer rows.Close()

	var out []UnresolvedRow
	for rows.Next() {
		var u UnresolvedRow
		if err := rows.Scan(&u.Source, &u.Range.Start, &u.Range.End, &u.Dest, &u.RefKind, &u.Display); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Counts returns row counts for the stored scan.
func (db *DB) Counts() (Counts, error) {
	var c Counts
	err := db.conn.QueryRow(`
		SELECT
			(SELECT count(*) FROM notes),
			(SELECT count(*) FROM referenceables WHERE kind = 'asset'),
			(SELECT count(*) FROM referenceables),
			(SELECT count(*) FROM links),
			(SELECT count(*) FROM unresolved)
	`).Scan(&c.Notes, &c.Assets, &c.Referenceables, &c.Links, &c.Unresolved)
	if err != nil {
		return Counts{}, fmt.Errorf("index: counts: %w", err)
	}
	return c, nil
}
