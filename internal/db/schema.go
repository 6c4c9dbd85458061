package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup. Directory tables (students, faculty, admins,
// companies, offers) are populated by the surrounding campus system; this
// service only reads them.
//
// Two constraints back up the eligibility gate against races:
//   - ods_one_open_per_student: at most one pre-approval OD per student
//   - ods_no_approved_overlap:  no overlapping APPROVED date ranges
var schema = []string{
	`CREATE TABLE IF NOT EXISTS faculty (
	   id    BIGSERIAL PRIMARY KEY,
	   name  TEXT NOT NULL,
	   email TEXT NOT NULL UNIQUE
	 )`,
	`CREATE TABLE IF NOT EXISTS admins (
	   id    BIGSERIAL PRIMARY KEY,
	   name  TEXT NOT NULL DEFAULT '',
	   email TEXT NOT NULL UNIQUE
	 )`,
	`CREATE TABLE IF NOT EXISTS students (
	   id        BIGSERIAL PRIMARY KEY,
	   name      TEXT NOT NULL,
	   roll_no   TEXT NOT NULL UNIQUE,
	   email     TEXT NOT NULL UNIQUE,
	   mentor_id BIGINT REFERENCES faculty(id)
	 )`,
	`CREATE TABLE IF NOT EXISTS companies (
	   id          BIGSERIAL PRIMARY KEY,
	   name        TEXT NOT NULL UNIQUE,
	   is_approved BOOLEAN NOT NULL DEFAULT false
	 )`,
	`CREATE TABLE IF NOT EXISTS offers (
	   id         BIGSERIAL PRIMARY KEY,
	   student_id BIGINT NOT NULL REFERENCES students(id),
	   company_id BIGINT NOT NULL REFERENCES companies(id),
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE TABLE IF NOT EXISTS ods (
	   id                   BIGSERIAL PRIMARY KEY,
	   tracker_id           TEXT NOT NULL,
	   activity_id          TEXT,
	   student_id           BIGINT NOT NULL REFERENCES students(id),
	   offer_id             BIGINT REFERENCES offers(id),
	   type                 TEXT NOT NULL,
	   start_date           DATE NOT NULL,
	   end_date             DATE NOT NULL,
	   duration             INT NOT NULL,
	   proof_file           TEXT NOT NULL,
	   offer_file           TEXT NOT NULL,
	   status               TEXT NOT NULL,
	   verification_details JSONB,
	   timeline             JSONB NOT NULL DEFAULT '[]',
	   created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS ods_one_open_per_student
	   ON ods (student_id)
	   WHERE status IN ('PENDING', 'DOCS_VERIFIED', 'MENTOR_APPROVED')`,
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`DO $$ BEGIN
	   ALTER TABLE ods ADD CONSTRAINT ods_no_approved_overlap
	     EXCLUDE USING gist (
	       student_id WITH =,
	       daterange(start_date, end_date, '[]') WITH &&
	     ) WHERE (status = 'APPROVED');
	 EXCEPTION WHEN duplicate_object OR duplicate_table THEN NULL;
	 END $$`,
	`CREATE TABLE IF NOT EXISTS notifications (
	   id         BIGSERIAL PRIMARY KEY,
	   email      TEXT NOT NULL,
	   title      TEXT NOT NULL,
	   message    TEXT NOT NULL,
	   type       TEXT NOT NULL DEFAULT 'INFO',
	   read       BOOLEAN NOT NULL DEFAULT false,
	   created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	 )`,
	`CREATE INDEX IF NOT EXISTS notifications_email_idx
	   ON notifications (email, created_at DESC)`,
}

// Migrate applies the schema statements in order.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
