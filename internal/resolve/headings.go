package resolve

import "github.com/starford/vaultgraph/internal/models"

// ResolveNestedHeadings finds the heading addressed by a chain such as
// ["A", "B", "C"]. Each chain element is matched, in document order, to a
// later heading with that text whose level is strictly greater than the
// level of the previously matched heading. Occurrences are tried depth
// first; the first complete chain wins and its last heading is returned.
func ResolveNestedHeadings(headings []models.Heading, wanted []string) (models.Heading, bool) {
	if len(wanted) == 0 {
		return models.Heading{}, false
	}
	chain := make([]int, 0, len(wanted))
	if idx, ok := searchChain(headings, wanted, 0, chain); ok {
		return headings[idx], true
	}
	return models.Heading{}, false
}

// searchChain extends chain with an occurrence of wanted[len(chain)] at or
// after start. Branches whose levels stop increasing are abandoned early;
// any completion of such a prefix would fail validation anyway.
func searchChain(headings []models.Heading, wanted []string, start int, chain []int) (int, bool) {
	depth := len(chain)
	for i := start; i < len(headings); i++ {
		if headings[i].Text != wanted[depth] {
			continue
		}
		if depth > 0 && headings[i].Level <= headings[chain[depth-1]].Level {
			continue
		}
		next := append(chain, i)
		if depth == len(wanted)-1 {
			if validChain(headings, next) {
				return i, true
			}
			continue
		}
		if idx, ok := searchChain(headings, wanted, i+1, next); ok {
			return idx, true
		}
	}
	return 0, false
}

func validChain(headings []models.Heading, chain []int) bool {
	for k := 1; k < len(chain); k++ {
		if headings[chain[k]].Level <= headings[chain[k-1]].Level {
			return false
		}
	}
	return true
}
