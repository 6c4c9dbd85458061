// Package store implements the persistence interfaces of the od package on
// PostgreSQL via pgx.
package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartod/od-service/internal/od"
)

// Store bundles all pgx-backed repositories behind one pool.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// openStatuses are the non-terminal pre-approval states — at most one OD per
// student may be in any of them.
var openStatuses = []string{
	string(od.StatusPending),
	string(od.StatusDocsVerified),
	string(od.StatusMentorApproved),
}

const odColumns = `id, tracker_id, COALESCE(activity_id, ''), student_id, COALESCE(offer_id, 0),
       type, start_date, end_date, duration, proof_file, offer_file, status,
       verification_details, timeline, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOd(row rowScanner) (*od.Od, error) {
	var (
		rec          od.Od
		status       string
		detailsJSON  []byte
		timelineJSON []byte
	)
	err := row.Scan(
		&rec.ID, &rec.TrackerID, &rec.ActivityID, &rec.StudentID, &rec.OfferID,
		&rec.Type, &rec.StartDate, &rec.EndDate, &rec.Duration,
		&rec.ProofFile, &rec.OfferFile, &status,
		&detailsJSON, &timelineJSON, &rec.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, od.ErrNotFound
		}
		return nil, fmt.Errorf("scan od: %w", err)
	}
	rec.Status = od.Status(status)
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &rec.Details); err != nil {
			return nil, fmt.Errorf("decode verification details: %w", err)
		}
	}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &rec.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline: %w", err)
		}
	}
	return &rec, nil
}

func (s *Store) queryOds(ctx context.Context, sql string, args ...any) ([]od.Od, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query ods: %w", err)
	}
	defer rows.Close()

	recs := make([]od.Od, 0)
	for rows.Next() {
		rec, err := scanOd(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}
