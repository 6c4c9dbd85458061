package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"smartod/od-service/internal/od"
)

// GetStudent returns the directory record for a student.
func (s *Store) GetStudent(ctx context.Context, id int64) (*od.Student, error) {
	var st od.Student
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, roll_no, email, mentor_id FROM students WHERE id = $1`, id,
	).Scan(&st.ID, &st.Name, &st.RollNo, &st.Email, &st.MentorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, od.ErrNotFound
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return &st, nil
}

// GetFaculty returns a faculty record by id.
func (s *Store) GetFaculty(ctx context.Context, id int64) (*od.Faculty, error) {
	var f od.Faculty
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, email FROM faculty WHERE id = $1`, id,
	).Scan(&f.ID, &f.Name, &f.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, od.ErrNotFound
		}
		return nil, fmt.Errorf("get faculty: %w", err)
	}
	return &f, nil
}

// GetOffer returns an offer with its company loaded.
func (s *Store) GetOffer(ctx context.Context, id int64) (*od.Offer, error) {
	var o od.Offer
	err := s.pool.QueryRow(ctx,
		`SELECT o.id, o.student_id, c.id, c.name, c.is_approved
		 FROM offers o
		 JOIN companies c ON c.id = o.company_id
		 WHERE o.id = $1`, id,
	).Scan(&o.ID, &o.StudentID, &o.Company.ID, &o.Company.Name, &o.Company.IsApproved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, od.ErrNotFound
		}
		return nil, fmt.Errorf("get offer: %w", err)
	}
	return &o, nil
}

// ResolvePrincipal maps a gateway-forwarded email to a typed Principal.
// Lookup order: admin, faculty, student. Called once per request at the
// HTTP boundary; the core never re-derives roles.
func (s *Store) ResolvePrincipal(ctx context.Context, email string) (od.Principal, error) {
	var id int64

	err := s.pool.QueryRow(ctx, `SELECT id FROM admins WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return od.Principal{ID: id, Email: email, Role: od.RoleAdmin}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return od.Principal{}, fmt.Errorf("resolve admin: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT id FROM faculty WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return od.Principal{ID: id, Email: email, Role: od.RoleFaculty}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return od.Principal{}, fmt.Errorf("resolve faculty: %w", err)
	}

	err = s.pool.QueryRow(ctx, `SELECT id FROM students WHERE email = $1`, email).Scan(&id)
	if err == nil {
		return od.Principal{ID: id, Email: email, Role: od.RoleStudent}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return od.Principal{}, fmt.Errorf("resolve student: %w", err)
	}

	return od.Principal{}, od.ErrNotFound
}
