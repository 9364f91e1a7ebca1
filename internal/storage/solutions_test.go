package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSolutionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSolution(ctx, "billing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetSolution on empty table: err = %v, want ErrNotFound", err)
	}

	if err := s.UpsertSolution(ctx, "billing", "Please contact billing support."); err != nil {
		t.Fatalf("UpsertSolution: %v", err)
	}
	if err := s.UpsertSolution(ctx, "billing", "Refunds take 5 days."); err != nil {
		t.Fatalf("UpsertSolution (replace): %v", err)
	}

	got, err := s.GetSolution(ctx, "billing")
	if err != nil {
		t.Fatalf("GetSolution: %v", err)
	}
	if got != "Refunds take 5 days." {
		t.Errorf("GetSolution() = %q", got)
	}

	list, err := s.ListSolutions(ctx)
	if err != nil {
		t.Fatalf("ListSolutions: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("ListSolutions() returned %d rows, want 1", len(list))
	}

	if err := s.DeleteSolution(ctx, "billing"); err != nil {
		t.Fatalf("DeleteSolution: %v", err)
	}
	if err := s.DeleteSolution(ctx, "billing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteSolution: err = %v, want ErrNotFound", err)
	}
}

func TestLoadAndSeedSolutions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.yaml")
	doc := `solutions:
  - normalized_key: billing
    solution_text: Please contact billing support.
  - normalized_key: technical
    solution_text: Try restarting the router.
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	seeds, err := LoadSolutionSeeds(path)
	if err != nil {
		t.Fatalf("LoadSolutionSeeds: %v", err)
	}
	if len(seeds) != 2 || seeds[1].NormalizedKey != "technical" {
		t.Fatalf("seeds = %+v", seeds)
	}

	s := openTestStore(t)
	ctx := context.Background()
	if err := s.SeedSolutions(ctx, seeds); err != nil {
		t.Fatalf("SeedSolutions: %v", err)
	}
	// Seeding twice upserts rather than duplicating.
	if err := s.SeedSolutions(ctx, seeds); err != nil {
		t.Fatalf("SeedSolutions (again): %v", err)
	}
	list, err := s.ListSolutions(ctx)
	if err != nil {
		t.Fatalf("ListSolutions: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("ListSolutions() returned %d rows, want 2", len(list))
	}
}

func TestLoadSolutionSeeds_RejectsIncompleteEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "solutions.yaml")
	if err := os.WriteFile(path, []byte("solutions:\n  - normalized_key: billing\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSolutionSeeds(path); err == nil {
		t.Error("expected error for entry without solution_text")
	}
}

func TestLoadSolutionSeeds_Keys(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "canonical", key: "general", want: "general"},
		{name: "mixed case", key: " Billing ", want: "billing"},
		{name: "unknown category", key: "shipping", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "solutions.yaml")
			doc := "solutions:\n  - normalized_key: \"" + tt.key + "\"\n    solution_text: Some answer.\n"
			if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
				t.Fatal(err)
			}
			seeds, err := LoadSolutionSeeds(path)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("LoadSolutionSeeds accepted key %q", tt.key)
				}
				return
			}
			if err != nil {
				t.Fatalf("LoadSolutionSeeds: %v", err)
			}
			if len(seeds) != 1 || seeds[0].NormalizedKey != tt.want {
				t.Errorf("seeds = %+v, want key %q", seeds, tt.want)
			}
		})
	}
}
