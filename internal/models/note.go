// Package models defines the domain types for the vault link graph.
package models

import "regexp"

// ByteRange is a half-open [Start, End) span of bytes in a note's source file.
type ByteRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// ReferenceKind discriminates the syntax a reference was written in.
type ReferenceKind string

// Reference kinds.
const (
	KindWikiLink     ReferenceKind = "wikilink"
	KindMarkdownLink ReferenceKind = "markdown_link"
	KindEmbed        ReferenceKind = "embed"
)

// Reference is one link or embed occurrence in a note, prior to resolution.
type Reference struct {
	Path        string        `json:"path"`
	Range       ByteRange     `json:"range"`
	Dest        string        `json:"dest"`
	Kind        ReferenceKind `json:"kind"`
	DisplayText string        `json:"display_text"`
}

// Link is a resolved edge from a reference to its target.
type Link struct {
	From Reference
	To   Referenceable
}

var blockIdentifierRe = regexp.MustCompile(`^[A-Za-z0-9-]+$`)

// ValidBlockIdentifier reports whether s can follow a "^" block marker.
func ValidBlockIdentifier(s string) bool {
	return blockIdentifierRe.MatchString(s)
}
