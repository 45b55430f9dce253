package resolve

import "strings"

// ResolveLink finds the vault path a file part refers to. A needle without
// any '.' gets ".md" appended. Exact matches win; otherwise the first
// haystack entry whose path components contain the needle's components in
// order is returned.
func ResolveLink(needle string, haystack []string) (string, bool) {
	needle = strings.TrimSpace(needle)
	if !strings.Contains(needle, ".") {
		needle += ".md"
	}

	for _, p := range haystack {
		if p == needle {
			return p, true
		}
	}

	parts := strings.Split(needle, "/")
	for _, p := range haystack {
		if _, ok := MatchSubsequence(strings.Split(p, "/"), parts); ok {
			return p, true
		}
	}
	return "", false
}

// MatchSubsequence greedily matches needle against haystack from left to
// right and returns the haystack index of the last matched element. Order
// is significant and elements need not be contiguous. An empty needle does
// not match.
func MatchSubsequence[T comparable](haystack, needle []T) (int, bool) {
	if len(needle) == 0 {
		return 0, false
	}
	last := -1
	next := 0
	for _, want := range needle {
		found := false
		for next < len(haystack) {
			i := next
			next++
			if haystack[i] == want {
				last = i
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return last, true
}
