// Package resolve matches link destinations against the files, headings and
// blocks of a scanned vault.
package resolve

import (
	"strings"

	"github.com/starford/vaultgraph/internal/models"
)

// Destination is a link destination split into its parts.
type Destination struct {
	// File is everything before the first '#'. It never contains '#'.
	File string
	// Headings is the nested heading chain, nil when none was requested.
	// A destination whose fragment is made of '#' only yields a single
	// empty heading.
	Headings []string
	// Block is the block identifier after "#^", empty when none was requested.
	Block string
}

// SplitDest splits a raw destination such as "Note#A#B" or "Note#^id".
func SplitDest(dest string) Destination {
	idx := strings.IndexByte(dest, '#')
	if idx < 0 {
		return Destination{File: dest}
	}
	file, rest := dest[:idx], dest[idx+1:]

	if id, ok := strings.CutPrefix(rest, "^"); ok && models.ValidBlockIdentifier(id) {
		return Destination{File: file, Block: id}
	}

	if strings.Trim(rest, "#") == "" {
		return Destination{File: file, Headings: []string{""}}
	}

	var headings []string
	for _, part := range strings.Split(rest, "#") {
		if part != "" {
			headings = append(headings, part)
		}
	}
	return Destination{File: file, Headings: headings}
}
