// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultgraph/internal/index"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "vaultgraph-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestVault creates a temporary vault directory populated with files,
// keyed by slash-separated relative path.
func TestVault(t *testing.T, files map[string]string) string {
	t.Helper()
	vaultDir := t.TempDir()
	for rel, content := range files {
		WriteFile(t, vaultDir, rel, content)
	}
	return vaultDir
}

// WriteFile writes content to rel below dir, creating parent directories.
func WriteFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// SampleVault is a small vault exercising every link kind.
var SampleVault = map[string]string{
	"Note 1.md": "---\ntitle: First\ntags:\n  - demo\n---\n# Note 1\n\n" +
		"Link to [[Note 2#Some level 2 title]].\n\n" +
		"Missing [[Nonexistent Note]].\n\n" +
		"Self block [[#^my-id]].\n\n" +
		"- item one\n- item two\n\n^my-id\n\n" +
		"See [site](https://example.com) and ![[pic.png]].\n",
	"Note 2.md": "# Note 2\n\n## Some level 2 title\n\nBody with [back](Note%201.md).\n",
	"sub/Deep.md": "# Deep\n\nUp to [[Note 2]].\n",
	"img/pic.png": "png",
	".obsidian/app.json": "{}",
}
