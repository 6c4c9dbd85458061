package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"smartod/od-service/internal/od"
)

// CreateIfEligible inserts the record inside one transaction, re-running the
// record-level eligibility checks after locking the student row. Two
// concurrent applies for the same student therefore serialize here; the
// partial unique index and the approved-range exclusion constraint catch
// anything that still slips through.
func (s *Store) CreateIfEligible(ctx context.Context, rec *od.Od) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var studentID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM students WHERE id = $1 FOR UPDATE`, rec.StudentID,
	).Scan(&studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return od.ErrNotFound
		}
		return fmt.Errorf("lock student: %w", err)
	}

	// Re-run the gate's record-level rules, reported per rule so a raced
	// caller gets the same message the gate would have produced.
	var hasOpen, hasActive, hasOverlap bool
	err = tx.QueryRow(ctx,
		`SELECT
		   EXISTS (SELECT 1 FROM ods WHERE student_id = $1 AND status = ANY($2)),
		   EXISTS (SELECT 1 FROM ods WHERE student_id = $1 AND status = $3 AND end_date >= $4),
		   EXISTS (SELECT 1 FROM ods WHERE student_id = $1 AND status = $3 AND start_date <= $6 AND end_date >= $5)`,
		rec.StudentID, openStatuses, string(od.StatusApproved),
		dateArg(time.Now()), rec.StartDate, rec.EndDate,
	).Scan(&hasOpen, &hasActive, &hasOverlap)
	if err != nil {
		return fmt.Errorf("eligibility recheck: %w", err)
	}
	switch {
	case hasOpen:
		return &od.EligibilityError{Msg: od.MsgOpenODExists}
	case hasActive:
		return &od.EligibilityError{Msg: od.MsgActiveODExists}
	case hasOverlap:
		return &od.EligibilityError{Msg: od.MsgApprovedOverlap}
	}

	detailsJSON, err := json.Marshal(rec.Details)
	if err != nil {
		return fmt.Errorf("encode verification details: %w", err)
	}
	timelineJSON, err := json.Marshal(rec.Timeline)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO ods (tracker_id, activity_id, student_id, offer_id, type,
		                  start_date, end_date, duration, proof_file, offer_file,
		                  status, verification_details, timeline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::jsonb, $13::jsonb)
		 RETURNING id, created_at`,
		rec.TrackerID, rec.ActivityID, rec.StudentID, rec.OfferID, rec.Type,
		rec.StartDate, rec.EndDate, rec.Duration, rec.ProofFile, rec.OfferFile,
		string(rec.Status), detailsJSON, timelineJSON,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		if conflict := conflictError(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("insert od: %w", err)
	}

	return tx.Commit(ctx)
}

// conflictError maps the unique-index (23505) and exclusion constraint
// (23P01) backstops to the gate message for the rule each one enforces.
// Returns nil for anything else.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch pgErr.Code {
	case "23505":
		return &od.EligibilityError{Msg: od.MsgOpenODExists}
	case "23P01":
		return &od.EligibilityError{Msg: od.MsgApprovedOverlap}
	}
	return nil
}

// GetByID returns a single OD record.
func (s *Store) GetByID(ctx context.Context, id int64) (*od.Od, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+odColumns+` FROM ods WHERE id = $1`, id)
	return scanOd(row)
}

// FindOpenByStudent returns the student's pre-approval OD, if any.
func (s *Store) FindOpenByStudent(ctx context.Context, studentID int64) (*od.Od, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+odColumns+` FROM ods
		 WHERE student_id = $1 AND status = ANY($2)
		 LIMIT 1`,
		studentID, openStatuses,
	)
	return scanOd(row)
}

// FindActiveApproved returns the student's APPROVED OD still in effect.
func (s *Store) FindActiveApproved(ctx context.Context, studentID int64, today time.Time) (*od.Od, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+odColumns+` FROM ods
		 WHERE student_id = $1 AND status = $2 AND end_date >= $3
		 LIMIT 1`,
		studentID, string(od.StatusApproved), dateArg(today),
	)
	return scanOd(row)
}

// FindApprovedOverlap returns an APPROVED OD intersecting [start, end].
func (s *Store) FindApprovedOverlap(ctx context.Context, studentID int64, start, end time.Time) (*od.Od, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+odColumns+` FROM ods
		 WHERE student_id = $1 AND status = $2
		   AND start_date <= $4 AND end_date >= $3
		 LIMIT 1`,
		studentID, string(od.StatusApproved), dateArg(start), dateArg(end),
	)
	return scanOd(row)
}

// ListByStudent returns all of a student's ODs, newest first.
func (s *Store) ListByStudent(ctx context.Context, studentID int64) ([]od.Od, error) {
	return s.queryOds(ctx,
		`SELECT `+odColumns+` FROM ods
		 WHERE student_id = $1
		 ORDER BY created_at DESC`,
		studentID,
	)
}

// ListOpenForMentor returns the open ODs of the faculty member's mentees,
// newest first.
func (s *Store) ListOpenForMentor(ctx context.Context, facultyID int64) ([]od.Od, error) {
	return s.queryOds(ctx,
		`SELECT `+odColumns+` FROM ods o
		 JOIN students st ON st.id = o.student_id
		 WHERE st.mentor_id = $1 AND o.status = ANY($2)
		 ORDER BY o.created_at DESC`,
		facultyID, openStatuses,
	)
}

// UpdateStatus sets the new status and appends the timeline event in a
// single statement, so the timeline can never lose entries.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status od.Status, event od.TimelineEvent) (*od.Od, error) {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode timeline event: %w", err)
	}

	row := s.pool.QueryRow(ctx,
		`UPDATE ods
		 SET status   = $1,
		     timeline = timeline || $2::jsonb
		 WHERE id = $3
		 RETURNING `+odColumns,
		string(status), fmt.Sprintf("[%s]", eventJSON), id,
	)
	rec, err := scanOd(row)
	if err != nil {
		return nil, revertConflictError(err)
	}
	return rec, nil
}

// revertConflictError maps constraint violations raised by a status change to
// readable conflicts: reverting an APPROVED record to an open status collides
// with the one-open-OD index when the student has applied again since, and
// approving a record collides with the exclusion constraint when its dates
// overlap another APPROVED OD. Other errors pass through unchanged.
func revertConflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return &od.EligibilityError{Msg: "The student already has another open OD application, so this record cannot be reopened."}
	case "23P01":
		return &od.EligibilityError{Msg: od.MsgApprovedOverlap}
	}
	return err
}

func dateArg(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
