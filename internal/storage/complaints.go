package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const complaintColumns = `id, customer_email, text, sentiment, normalized_key, answer_type, answered, created_at`

// InsertComplaint appends c and returns it with the assigned id and
// creation time. c.ID and c.CreatedAt are ignored on input.
func (s *Store) InsertComplaint(ctx context.Context, c Complaint) (Complaint, error) {
	c.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO complaints (customer_email, text, sentiment, normalized_key, answer_type, answered, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.CustomerEmail, c.Text, c.Sentiment, c.NormalizedKey, c.AnswerType, c.Answered, formatTime(c.CreatedAt),
	)
	if err != nil {
		return Complaint{}, fmt.Errorf("inserting complaint: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Complaint{}, fmt.Errorf("reading complaint id: %w", err)
	}
	c.ID = id
	return c, nil
}

func (s *Store) GetComplaint(ctx context.Context, id int64) (Complaint, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+complaintColumns+` FROM complaints WHERE id = ?`, id)
	c, err := scanComplaint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Complaint{}, ErrNotFound
	}
	return c, err
}

// ListComplaints returns complaints newest first.
func (s *Store) ListComplaints(ctx context.Context, limit, offset int) ([]Complaint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+complaintColumns+` FROM complaints
		ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing complaints: %w", err)
	}
	defer rows.Close()

	results := []Complaint{}
	for rows.Next() {
		c, err := scanComplaint(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// CountComplaints computes every analytics counter in one statement so the
// figures come from a single consistent read.
func (s *Store) CountComplaints(ctx context.Context) (ComplaintCounts, error) {
	var c ComplaintCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(sentiment = 'positive'), 0),
			COALESCE(SUM(sentiment = 'negative'), 0),
			COALESCE(SUM(answer_type = 'KNOWN_SOLUTION'), 0),
			COALESCE(SUM(answer_type = 'STOCK'), 0)
		FROM complaints`,
	).Scan(&c.Total, &c.Positive, &c.Negative, &c.KnownSolution, &c.Stock)
	if err != nil {
		return ComplaintCounts{}, fmt.Errorf("counting complaints: %w", err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComplaint(r rowScanner) (Complaint, error) {
	var c Complaint
	var createdAt string
	if err := r.Scan(&c.ID, &c.CustomerEmail, &c.Text, &c.Sentiment, &c.NormalizedKey, &c.AnswerType, &c.Answered, &createdAt); err != nil {
		return Complaint{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Complaint{}, fmt.Errorf("parsing created_at for complaint %d: %w", c.ID, err)
	}
	c.CreatedAt = t
	return c, nil
}
