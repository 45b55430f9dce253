package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/vaultgraph/internal/graph"
	"github.com/starford/vaultgraph/internal/scanner"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/testutil"
)

func testConfig(t *testing.T, dbInVault bool) *Config {
	t.Helper()
	cfg := NewDefaultConfig()
	cfg.Vault.Path = testutil.TestVault(t, testutil.SampleVault)
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "graph.db")
	if dbInVault {
		cfg.SQLite.Path = filepath.Join(cfg.Vault.Path, "graph.db")
	}
	return cfg
}

func TestIndexIgnore(t *testing.T) {
	base := []string{".git"}

	got := indexIgnore("/vault", "/elsewhere/graph.db", base)
	if len(got) != 1 {
		t.Errorf("outside vault = %q, want unchanged", got)
	}

	got = indexIgnore("/vault", "/vault/data/graph.db", base)
	want := []string{".git", "graph.db", "graph.db-wal", "graph.db-shm", "graph.db-journal"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("inside vault = %q, want %q", got, want)
	}
	if len(base) != 1 {
		t.Errorf("input slice modified: %q", base)
	}
}

func TestScan_Text(t *testing.T) {
	var buf bytes.Buffer
	err := Scan(context.Background(), &buf, ScanOptions{Format: FormatText},
		WithConfig(testConfig(t, false)), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if lines[0] != "3 notes, 1 assets, 7 references, 5 links, 2 unresolved" {
		t.Errorf("summary = %q", lines[0])
	}
	if len(lines) != 2 || !strings.HasSuffix(lines[1], `unresolved wikilink "Nonexistent Note"`) {
		t.Errorf("lines = %q", lines)
	}
}

func TestScan_JSONIncludeExternal(t *testing.T) {
	var buf bytes.Buffer
	err := Scan(context.Background(), &buf, ScanOptions{Format: FormatJSON, IncludeExternal: true},
		WithConfig(testConfig(t, false)), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var r scanReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Notes != 3 || len(r.UnresolvedReferences) != 2 {
		t.Errorf("report = %+v", r)
	}
}

func TestScan_FailOnUnresolved(t *testing.T) {
	err := Scan(context.Background(), io.Discard, ScanOptions{FailOnUnresolved: true},
		WithConfig(testConfig(t, false)), WithLogOutput(io.Discard))
	if !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestScan_DatabaseInsideVault(t *testing.T) {
	var buf bytes.Buffer
	err := Scan(context.Background(), &buf, ScanOptions{Format: FormatJSON},
		WithConfig(testConfig(t, true)), WithLogOutput(io.Discard))
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	var r scanReport
	if err := json.Unmarshal(buf.Bytes(), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Assets != 1 {
		t.Errorf("assets = %d, want 1 (database files must be skipped)", r.Assets)
	}
}

func TestScan_UnknownFormat(t *testing.T) {
	err := Scan(context.Background(), io.Discard, ScanOptions{Format: "xml"},
		WithConfig(testConfig(t, false)), WithLogOutput(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Errorf("err = %v, want unknown format", err)
	}
}

func TestMissingConfig(t *testing.T) {
	if err := Scan(context.Background(), io.Discard, ScanOptions{}); err == nil {
		t.Error("expected error without config")
	}
}

func TestRun_MissingVault(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Vault.Path = filepath.Join(t.TempDir(), "typo")

	err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "init storage") {
		t.Fatalf("err = %v, want init storage error", err)
	}
	if _, statErr := os.Stat(cfg.Vault.Path); !os.IsNotExist(statErr) {
		t.Errorf("vault dir created: stat err = %v", statErr)
	}
}

func TestRun_VaultIsFile(t *testing.T) {
	cfg := testConfig(t, false)
	cfg.Vault.Path = filepath.Join(cfg.Vault.Path, "Note 1.md")

	err := Run(context.Background(), WithConfig(cfg), WithLogOutput(io.Discard))
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("err = %v, want not a directory", err)
	}
}

func TestReadyHandler(t *testing.T) {
	dir := testutil.TestVault(t, testutil.SampleVault)
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	svc := graph.NewService(scanner.Options{Dir: dir}, testutil.TestDB(t), store, nil)
	h := readyHandler(svc)

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("before scan = %d, want 503", w.Code)
	}

	if _, err := svc.Rescan(context.Background()); err != nil {
		t.Fatal(err)
	}
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Errorf("after scan = %d, want 200", w.Code)
	}
}
