package graph

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/vaultgraph/internal/apperr"
	"github.com/starford/vaultgraph/internal/models"
	"github.com/starford/vaultgraph/internal/scanner"
	"github.com/starford/vaultgraph/internal/storage"
	"github.com/starford/vaultgraph/internal/testutil"
)

func newTestService(t *testing.T, files map[string]string) (*Service, string) {
	t.Helper()
	dir := testutil.TestVault(t, files)
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	svc := NewService(scanner.Options{Dir: dir}, testutil.TestDB(t), store, logger)
	return svc, dir
}

func scanned(t *testing.T, files map[string]string) (*Service, string) {
	t.Helper()
	svc, dir := newTestService(t, files)
	if _, err := svc.Rescan(context.Background()); err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	return svc, dir
}

func TestQueriesBeforeScan(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleVault)
	ctx := context.Background()

	if svc.Scanned() {
		t.Error("Scanned() = true before first rescan")
	}
	if _, err := svc.Links(ctx, "Note 1.md"); !errors.Is(err, apperr.ErrNotScanned) {
		t.Errorf("Links err = %v, want ErrNotScanned", err)
	}
	if _, _, err := svc.Stats(ctx); !errors.Is(err, apperr.ErrNotScanned) {
		t.Errorf("Stats err = %v, want ErrNotScanned", err)
	}
	if _, err := svc.Resolve(ctx, "Note 1.md", "Note 2"); !errors.Is(err, apperr.ErrNotScanned) {
		t.Errorf("Resolve err = %v, want ErrNotScanned", err)
	}
}

func TestRescan_Report(t *testing.T) {
	svc, _ := newTestService(t, testutil.SampleVault)

	var got []Report
	svc.OnRescan(func(r Report) { got = append(got, r) })

	r, err := svc.Rescan(context.Background())
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if r.Notes != 3 || r.Assets != 1 || r.References != 7 {
		t.Errorf("report = %+v", r)
	}
	// Nonexistent Note and the external URL stay unresolved.
	if r.Links != 5 || r.Unresolved != 2 {
		t.Errorf("links = %d unresolved = %d, want 5 and 2", r.Links, r.Unresolved)
	}
	if len(r.Changed) != 3 {
		t.Errorf("changed = %v, want all 3 notes on first scan", r.Changed)
	}
	if len(got) != 1 {
		t.Errorf("listener calls = %d, want 1", len(got))
	}

	r, _ = svc.Rescan(context.Background())
	if len(r.Changed) != 0 {
		t.Errorf("changed = %v, want none on unchanged rescan", r.Changed)
	}
}

func TestRescan_DetectsChanges(t *testing.T) {
	svc, dir := scanned(t, testutil.SampleVault)

	testutil.WriteFile(t, dir, "Note 2.md", "# Note 2\n\nrewritten\n")
	if err := os.Remove(filepath.Join(dir, "sub", "Deep.md")); err != nil {
		t.Fatal(err)
	}

	r, err := svc.Rescan(context.Background())
	if err != nil {
		t.Fatalf("Rescan: %v", err)
	}
	if len(r.Changed) != 2 || r.Changed[0] != "Note 2.md" || r.Changed[1] != "sub/Deep.md" {
		t.Errorf("changed = %v", r.Changed)
	}

	// The heading is gone, so the link falls back to the whole note.
	links, _ := svc.Links(context.Background(), "Note 1.md")
	if links[0].TargetPath != "Note 2.md" || links[0].TargetKind != models.TargetNote {
		t.Errorf("links[0] = %+v", links[0])
	}
}

func TestRescan_FailureKeepsPreviousGraph(t *testing.T) {
	svc, dir := scanned(t, testutil.SampleVault)

	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Rescan(context.Background()); err == nil {
		t.Fatal("expected rescan error for missing vault")
	}
	if _, err := svc.Links(context.Background(), "Note 1.md"); err != nil {
		t.Errorf("Links after failed rescan: %v", err)
	}
}

func TestLinks(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)

	links, err := svc.Links(context.Background(), "Note 1.md")
	if err != nil {
		t.Fatalf("Links: %v", err)
	}
	if len(links) != 3 {
		t.Fatalf("len(links) = %d, want 3: %+v", len(links), links)
	}
	if links[0].TargetKind != models.TargetHeading || links[0].TargetLabel != "Some level 2 title" {
		t.Errorf("links[0] = %+v", links[0])
	}
	if links[1].TargetKind != models.TargetBlock || links[1].TargetPath != "Note 1.md" || links[1].TargetLabel != "^my-id" {
		t.Errorf("links[1] = %+v", links[1])
	}
	if links[2].TargetKind != models.TargetAsset || links[2].RefKind != models.KindEmbed {
		t.Errorf("links[2] = %+v", links[2])
	}

	if _, err := svc.Links(context.Background(), "nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Links(context.Background(), ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestBacklinks(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)

	bl, err := svc.Backlinks(context.Background(), "Note 2.md")
	if err != nil {
		t.Fatalf("Backlinks: %v", err)
	}
	if len(bl) != 2 {
		t.Fatalf("len(backlinks) = %d, want 2: %+v", len(bl), bl)
	}
	if bl[0].Source != "Note 1.md" || bl[1].Source != "sub/Deep.md" {
		t.Errorf("sources = %q, %q", bl[0].Source, bl[1].Source)
	}

	bl, _ = svc.Backlinks(context.Background(), "img/pic.png")
	if len(bl) != 1 {
		t.Errorf("asset backlinks = %+v", bl)
	}
}

func TestUnresolved(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)
	ctx := context.Background()

	refs, err := svc.Unresolved(ctx, false, 0)
	if err != nil {
		t.Fatalf("Unresolved: %v", err)
	}
	if len(refs) != 1 || refs[0].Dest != "Nonexistent Note" {
		t.Errorf("refs = %+v", refs)
	}

	refs, _ = svc.Unresolved(ctx, true, 0)
	if len(refs) != 2 {
		t.Errorf("with external = %+v", refs)
	}
	refs, _ = svc.Unresolved(ctx, true, 1)
	if len(refs) != 1 {
		t.Errorf("limit 1 = %+v", refs)
	}
}

func TestIsExternal(t *testing.T) {
	cases := map[string]bool{
		"https://example.com": true,
		"mailto:a@b.c":        true,
		"Note":                false,
		"dir/Note#Heading":    false,
	}
	for dest, want := range cases {
		if got := IsExternal(dest); got != want {
			t.Errorf("IsExternal(%q) = %v, want %v", dest, got, want)
		}
	}
}

func TestResolve(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)
	ctx := context.Background()

	res, err := svc.Resolve(ctx, "sub/Deep.md", "Note 2#Some level 2 title")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !res.Resolved || res.Target.Kind != models.TargetHeading || res.Target.Level != 2 {
		t.Errorf("res = %+v", res)
	}

	res, _ = svc.Resolve(ctx, "Note 1.md", "#^my-id")
	if !res.Resolved || res.Target.BlockKind != models.BlockList {
		t.Errorf("self block = %+v", res)
	}

	res, _ = svc.Resolve(ctx, "Note 1.md", "Ghost")
	if res.Resolved || res.Target != nil {
		t.Errorf("ghost = %+v", res)
	}

	if _, err := svc.Resolve(ctx, "Note 1.md", ""); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestOutline(t *testing.T) {
	svc, _ := scanned(t, map[string]string{
		"doc.md": "# Top\n\n## Part\n\ntext ^p1\n\n## Part\n\n### Leaf\n",
		"a.png":  "x",
	})

	o, err := svc.Outline(context.Background(), "doc.md")
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	type want struct {
		kind   models.TargetKind
		anchor string
		dest   string
	}
	wants := []want{
		{models.TargetHeading, "top", "doc#Top"},
		{models.TargetHeading, "part", "doc#Top#Part"},
		{models.TargetBlock, "", "doc#^p1"},
		{models.TargetHeading, "part-1", ""}, // shadowed by the first Part
		{models.TargetHeading, "leaf", "doc#Top#Part#Leaf"},
	}
	if len(o.Items) != len(wants) {
		t.Fatalf("items = %+v", o.Items)
	}
	for i, w := range wants {
		it := o.Items[i]
		if it.Kind != w.kind || it.Anchor != w.anchor || it.Dest != w.dest {
			t.Errorf("items[%d] = {%s %q %q}, want {%s %q %q}", i, it.Kind, it.Anchor, it.Dest, w.kind, w.anchor, w.dest)
		}
	}

	if _, err := svc.Outline(context.Background(), "a.png"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("asset outline err = %v, want ErrNotFound", err)
	}
}

func TestOutline_DestsResolveBack(t *testing.T) {
	svc, _ := scanned(t, map[string]string{
		"v1.2 notes.md": "# C# tips\n\n## Leaf\n\ntext ^b1\n\nagain ^b1\n",
	})
	ctx := context.Background()

	o, err := svc.Outline(ctx, "v1.2 notes.md")
	if err != nil {
		t.Fatalf("Outline: %v", err)
	}
	wants := []string{
		"",                     // "#" in the heading text splits the chain
		"v1.2 notes.md#Leaf",   // outer heading dropped
		"v1.2 notes.md#^b1",    // first block with the identifier
		"",                     // duplicate identifier
	}
	if len(o.Items) != len(wants) {
		t.Fatalf("items = %+v", o.Items)
	}
	for i, want := range wants {
		if got := o.Items[i].Dest; got != want {
			t.Errorf("items[%d].Dest = %q, want %q", i, got, want)
		}
	}

	// Every non-empty dest resolves to its own item.
	for i, it := range o.Items {
		if it.Dest == "" {
			continue
		}
		res, err := svc.Resolve(ctx, "v1.2 notes.md", it.Dest)
		if err != nil || !res.Resolved || *res.Target.Range != *it.Range {
			t.Errorf("items[%d] %q resolves to %+v, %v", i, it.Dest, res.Target, err)
		}
	}
}

func TestReadNote(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)

	data, err := svc.ReadNote(context.Background(), "sub/Deep.md")
	if err != nil {
		t.Fatalf("ReadNote: %v", err)
	}
	if string(data) != testutil.SampleVault["sub/Deep.md"] {
		t.Errorf("content = %q", data)
	}
	if _, err := svc.ReadNote(context.Background(), "missing.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestNoteAndSearch(t *testing.T) {
	svc, _ := scanned(t, testutil.SampleVault)
	ctx := context.Background()

	n, err := svc.Note(ctx, "Note 1.md")
	if err != nil {
		t.Fatalf("Note: %v", err)
	}
	if n.Title != "First" {
		t.Errorf("title = %q, want %q", n.Title, "First")
	}

	notes, total, err := svc.ListNotes(ctx, "demo", 10, 0)
	if err != nil || total != 1 || notes[0].Path != "Note 1.md" {
		t.Errorf("ListNotes = %+v, %d, %v", notes, total, err)
	}

	hits, err := svc.Search(ctx, "Deep", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].Path != "sub/Deep.md" {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := svc.Search(ctx, "  ", 10); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}
