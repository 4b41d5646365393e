package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestMemoryStoreSetAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	if _, found, err := s.Get(ctx, "expenses"); found || err != nil {
		t.Fatalf("empty store should miss: found=%v err=%v", found, err)
	}
	if err := s.Set(ctx, "expenses", "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "expenses", `[{"id":"1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, found, err := s.Get(ctx, "expenses")
	if err != nil || !found || v != `[{"id":"1"}]` {
		t.Fatalf("unexpected get: v=%q found=%v err=%v", v, found, err)
	}
	if s.Writes() != 2 {
		t.Fatalf("writes = %d, want 2", s.Writes())
	}
	if rev, _ := s.Revision(ctx, "expenses"); rev != 2 {
		t.Fatalf("revision = %d, want 2", rev)
	}
	if rev, _ := s.Revision(ctx, "budgets"); rev != 0 {
		t.Fatalf("revision of unwritten key = %d, want 0", rev)
	}
}

func TestNewFromFilesSeeds(t *testing.T) {
	dir := t.TempDir()
	// No files -> empty
	s := NewFromFiles(dir)
	if _, found, _ := s.Get(context.Background(), "expenses"); found {
		t.Fatalf("expected no seed when files missing")
	}

	mustWrite := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	mustWrite("expenses.json", `[]`)
	mustWrite("budgets.json", `{"Food":{"amount":100,"currency":"₹","originalAmount":100}}`)
	mustWrite("ignored.json", `x`)

	s = NewFromFiles(dir)
	if v, found, _ := s.Get(context.Background(), "expenses"); !found || v != "[]" {
		t.Fatalf("expenses seed: %q %v", v, found)
	}
	if _, found, _ := s.Get(context.Background(), "budgets"); !found {
		t.Fatalf("budgets seed missing")
	}
	if _, found, _ := s.Get(context.Background(), "ignored"); found {
		t.Fatalf("unexpected key seeded")
	}
	if s.Writes() != 0 {
		t.Fatalf("seeding should not count as writes")
	}
}
