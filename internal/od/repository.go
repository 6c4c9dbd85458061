package od

import (
	"context"
	"time"
)

// Repository is the persistent OD store. Implementations return ErrNotFound
// for missing records and *EligibilityError when CreateIfEligible loses a
// race against a concurrent apply.
type Repository interface {
	// CreateIfEligible inserts the record after re-checking, inside one
	// transaction, that the student has no open OD, no active approved OD,
	// and no approved OD overlapping the requested range. Fills in the
	// generated ID and CreatedAt on success.
	CreateIfEligible(ctx context.Context, rec *Od) error

	GetByID(ctx context.Context, id int64) (*Od, error)

	// FindOpenByStudent returns the student's OD in
	// {PENDING, DOCS_VERIFIED, MENTOR_APPROVED}, or ErrNotFound.
	FindOpenByStudent(ctx context.Context, studentID int64) (*Od, error)

	// FindActiveApproved returns the student's APPROVED OD whose end date is
	// today or later, or ErrNotFound.
	FindActiveApproved(ctx context.Context, studentID int64, today time.Time) (*Od, error)

	// FindApprovedOverlap returns an APPROVED OD whose range intersects
	// [start, end], or ErrNotFound.
	FindApprovedOverlap(ctx context.Context, studentID int64, start, end time.Time) (*Od, error)

	ListByStudent(ctx context.Context, studentID int64) ([]Od, error)

	// ListOpenForMentor returns the open ODs of the faculty member's mentees,
	// newest first.
	ListOpenForMentor(ctx context.Context, facultyID int64) ([]Od, error)

	// UpdateStatus atomically sets the new status and appends the event to
	// the timeline, returning the updated record.
	UpdateStatus(ctx context.Context, id int64, status Status, event TimelineEvent) (*Od, error)
}

// Directory resolves the student/faculty/offer records the OD core reads.
// Rows are managed by the surrounding campus system, never written here.
type Directory interface {
	GetStudent(ctx context.Context, id int64) (*Student, error)
	GetFaculty(ctx context.Context, id int64) (*Faculty, error)
	// GetOffer returns the offer with its company loaded.
	GetOffer(ctx context.Context, id int64) (*Offer, error)
}

// TextExtractor turns a PDF byte stream into plain text.
type TextExtractor interface {
	ExtractText(ctx context.Context, data []byte) (string, error)
}

// Notifier delivers a notification to a recipient. Delivery is
// fire-and-forget: implementations log and swallow their own failures.
type Notifier interface {
	Notify(ctx context.Context, email, title, message, severity string)
}

// FileStore persists uploaded document blobs.
type FileStore interface {
	// Save writes the document and returns its storage path.
	Save(name string, data []byte) (string, error)
	Remove(path string) error
}
