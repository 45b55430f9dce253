package api

import (
	"time"

	"github.com/starford/vaultgraph/internal/index"
	"github.com/starford/vaultgraph/internal/models"
)

// LinkTarget names what a link resolved to.
type LinkTarget struct {
	Path  string            `json:"path" example:"notes/world.md" validate:"required"`
	Kind  models.TargetKind `json:"kind" example:"heading" validate:"required"`
	Label string            `json:"label,omitempty" example:"Some heading"`
}

// Link is a resolved reference in API responses.
type Link struct {
	Source  string               `json:"source" example:"notes/hello.md" validate:"required"`
	Range   models.ByteRange     `json:"range" validate:"required"`
	Dest    string               `json:"dest" example:"world#Some heading" validate:"required"`
	Kind    models.ReferenceKind `json:"kind" example:"wikilink" validate:"required"`
	Display string               `json:"display"`
	Target  LinkTarget           `json:"target" validate:"required"`
}

func linkDTOs(rows []index.LinkRow) []Link {
	out := make([]Link, 0, len(rows))
	for _, r := range rows {
		out = append(out, Link{
			Source:  r.Source,
			Range:   r.Range,
			Dest:    r.Dest,
			Kind:    r.RefKind,
			Display: r.Display,
			Target:  LinkTarget{Path: r.TargetPath, Kind: r.TargetKind, Label: r.TargetLabel},
		})
	}
	return out
}

// LinksResponse wraps outgoing links or backlinks of a path.
type LinksResponse struct {
	Path  string `json:"path" validate:"required"`
	Links []Link `json:"links" validate:"required"`
}

// UnresolvedResponse wraps references that matched no vault file.
type UnresolvedResponse struct {
	References []models.Reference `json:"references" validate:"required"`
}

// StatsResponse reports the size of the current graph.
type StatsResponse struct {
	index.Counts
	ScannedAt time.Time `json:"scanned_at"`
}

// NoteListItem is a lightweight item in a list response.
type NoteListItem struct {
	Path      string    `json:"path" example:"notes/hello.md" validate:"required"`
	Title     string    `json:"title" example:"Hello"`
	Checksum  string    `json:"checksum" example:"abc123..."`
	Tags      []string  `json:"tags"`
	ScannedAt time.Time `json:"scanned_at"`
}

// NoteListResponse wraps paginated note listings.
type NoteListResponse struct {
	Notes []NoteListItem `json:"notes" validate:"required"`
	Total int            `json:"total" example:"42" validate:"required"`
}

// NoteDetail is a note's metadata together with its raw content.
type NoteDetail struct {
	NoteListItem
	Content string `json:"content"`
}

func noteListItem(n index.NoteRow) NoteListItem {
	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	return NoteListItem{Path: n.Path, Title: n.Title, Checksum: n.Checksum, Tags: tags, ScannedAt: n.ScannedAt}
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}
