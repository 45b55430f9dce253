// Package storage defines read-only access to vault files.
package storage

// Provider is the interface for vault file reads.
type Provider interface {
	// Read returns the raw bytes of the file at path (relative to vault root).
	Read(path string) ([]byte, error)
	// Root returns the absolute vault directory.
	Root() string
}
