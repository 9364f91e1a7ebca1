package storage

import (
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// no migration is applied a second time.
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()
	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("applied migrations = %v, want 3", versions)
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestSchemaObjectsExist(t *testing.T) {
	s := openTestStore(t)

	objects := []struct{ typ, name string }{
		{"table", "complaints"},
		{"table", "solutions"},
		{"table", "complaint_vectors"},
		{"table", "jobs"},
		{"index", "idx_complaints_created_at"},
		{"index", "idx_jobs_claim"},
	}
	for _, o := range objects {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", o.typ, o.name).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", o.name, err)
		}
		if count != 1 {
			t.Errorf("%s %q not found", o.typ, o.name)
		}
	}
}

func TestComplaintsRejectOutOfSetValues(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT INTO complaints (customer_email, text, sentiment, normalized_key, answer_type)
		VALUES ('a@x.com', 'hi', 'angry', 'billing', 'STOCK')`)
	if err == nil {
		t.Error("expected CHECK constraint to reject sentiment 'angry'")
	}
}
