package index

// GraphIndex defines the persistence operations for a scanned vault graph.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with fakes.
type GraphIndex interface {
	Replace(s Snapshot) error
	Checksums() (map[string]string, error)
	GetNote(path string) (*NoteRow, error)
	ListNotes(tag string, limit, offset int) ([]NoteRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	LinksFrom(source string) ([]LinkRow, error)
	Backlinks(target string) ([]LinkRow, error)
	Unresolved(limit int) ([]UnresolvedRow, error)
	Counts() (Counts, error)
	Close() error
}

// Verify *DB satisfies GraphIndex at compile time.
var _ GraphIndex = (*DB)(nil)
