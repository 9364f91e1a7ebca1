package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetSolution returns the solution text for key, or ErrNotFound.
func (s *Store) GetSolution(ctx context.Context, key string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT solution_text FROM solutions WHERE normalized_key = ?`, key).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading solution %q: %w", key, err)
	}
	return text, nil
}

func (s *Store) ListSolutions(ctx context.Context) ([]Solution, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, normalized_key, solution_text FROM solutions ORDER BY normalized_key`)
	if err != nil {
		return nil, fmt.Errorf("listing solutions: %w", err)
	}
	defer rows.Close()

	results := []Solution{}
	for rows.Next() {
		var sol Solution
		if err := rows.Scan(&sol.ID, &sol.NormalizedKey, &sol.SolutionText); err != nil {
			return nil, err
		}
		results = append(results, sol)
	}
	return results, rows.Err()
}

// UpsertSolution creates or replaces the solution for key.
func (s *Store) UpsertSolution(ctx context.Context, key, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO solutions (normalized_key, solution_text) VALUES (?, ?)
		ON CONFLICT(normalized_key) DO UPDATE SET solution_text = excluded.solution_text`,
		key, text,
	)
	if err != nil {
		return fmt.Errorf("upserting solution %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteSolution(ctx context.Context, key string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM solutions WHERE normalized_key = ?`, key)
	if err != nil {
		return fmt.Errorf("deleting solution %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
