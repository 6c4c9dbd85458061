package od

import "time"

// Od is a single On-Duty application. Mutations go through Service.UpdateStatus
// only; the verification details snapshot is immutable once set at creation.
type Od struct {
	ID         int64                `json:"id"`
	TrackerID  string               `json:"trackerId"`
	ActivityID string               `json:"activityId,omitempty"`
	StudentID  int64                `json:"studentId"`
	OfferID    int64                `json:"offerId"`
	Type       string               `json:"type"`
	StartDate  time.Time            `json:"startDate"`
	EndDate    time.Time            `json:"endDate"`
	Duration   int                  `json:"duration"`
	ProofFile  string               `json:"proofFile"`
	OfferFile  string               `json:"offerFile"`
	Status     Status               `json:"status"`
	Details    *VerificationDetails `json:"verificationDetails,omitempty"`
	Timeline   []TimelineEvent      `json:"timeline"`
	CreatedAt  time.Time            `json:"createdAt"`
}

// TypeInternship is the only OD type created through Service.Apply;
// INTERNAL (campus event) ODs are created by admin tooling.
const (
	TypeInternship = "INTERNSHIP"
	TypeInternal   = "INTERNAL"
)

// TimelineEvent is one entry in an OD's status history. The timeline is
// append-only: never truncated, never reordered.
type TimelineEvent struct {
	Status      Status    `json:"status"`
	Label       string    `json:"label"`
	Time        time.Time `json:"time"`
	Description string    `json:"description"`
}

// Student is the directory view of an applicant needed by the OD core.
type Student struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	RollNo   string `json:"rollNo"`
	Email    string `json:"email"`
	MentorID *int64 `json:"mentorId,omitempty"`
}

// Faculty is a mentor record, first-line approver for their mentees.
type Faculty struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Company carries the admin-managed approval flag checked at apply time.
type Company struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	IsApproved bool   `json:"isApproved"`
}

// Offer is a placement offer a student holds with a company.
type Offer struct {
	ID        int64   `json:"id"`
	StudentID int64   `json:"studentId"`
	Company   Company `json:"company"`
}

// Document is an uploaded file held in memory until every check passes.
type Document struct {
	Name string
	Data []byte
}

// ApplyRequest carries everything Service.Apply needs for one application.
type ApplyRequest struct {
	StudentID int64
	OfferID   int64
	StartDate time.Time
	EndDate   time.Time
	AimFile   Document
	OfferFile Document
}
