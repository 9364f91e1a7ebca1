package storage

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kalambet/triage/internal/classify"
)

// SeedFile is the YAML document format for curated solutions:
//
//	solutions:
//	  - normalized_key: billing
//	    solution_text: Please contact billing support.
type SeedFile struct {
	Solutions []Solution `yaml:"solutions"`
}

// LoadSolutionSeeds reads a YAML seed file. Entries with empty text or a
// key outside the category set are rejected; keys are normalized the way
// the solutions API normalizes them.
func LoadSolutionSeeds(path string) ([]Solution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading solution seeds: %w", err)
	}
	var f SeedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing solution seeds %s: %w", path, err)
	}
	for i, sol := range f.Solutions {
		if sol.NormalizedKey == "" || sol.SolutionText == "" {
			return nil, fmt.Errorf("solution seed %d in %s: normalized_key and solution_text are required", i, path)
		}
		key, ok := classify.ParseCategory(sol.NormalizedKey)
		if !ok {
			return nil, fmt.Errorf("solution seed %d in %s: unknown category %q", i, path, sol.NormalizedKey)
		}
		f.Solutions[i].NormalizedKey = string(key)
	}
	return f.Solutions, nil
}

// SeedSolutions upserts every seed inside one transaction.
func (s *Store) SeedSolutions(ctx context.Context, seeds []Solution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	for _, sol := range seeds {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO solutions (normalized_key, solution_text) VALUES (?, ?)
			ON CONFLICT(normalized_key) DO UPDATE SET solution_text = excluded.solution_text`,
			sol.NormalizedKey, sol.SolutionText,
		); err != nil {
			return fmt.Errorf("seeding solution %q: %w", sol.NormalizedKey, err)
		}
	}
	return tx.Commit()
}
