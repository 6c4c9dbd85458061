package od

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxDurationDays is the per-application ceiling. This is not a rolling
// annual cap: the 60-day annual figure shown to students is informational
// only and is not enforced at apply time.
const MaxDurationDays = 60

// Service composes the eligibility gate, filename validator, content
// verifier and status machine into the apply / transition use cases.
// It is transport-agnostic: the HTTP layer does parsing and principal
// resolution, nothing else.
type Service struct {
	repo      Repository
	dir       Directory
	extractor TextExtractor
	notifier  Notifier
	files     FileStore
	verify    VerifyOptions

	now func() time.Time
}

// NewService wires a Service from its collaborators.
func NewService(repo Repository, dir Directory, extractor TextExtractor, notifier Notifier, files FileStore, opts VerifyOptions) *Service {
	return &Service{
		repo:      repo,
		dir:       dir,
		extractor: extractor,
		notifier:  notifier,
		files:     files,
		verify:    opts,
		now:       time.Now,
	}
}

// Apply runs the full application pipeline: eligibility gate, filename
// checks on both documents, content verification of the offer letter, then
// transactional creation at DOCS_VERIFIED. Documents are written to storage
// only once every check has passed, so no failure path leaves orphaned files.
func (s *Service) Apply(ctx context.Context, req ApplyRequest) (*Od, error) {
	today := dateOnly(s.now())
	start := dateOnly(req.StartDate)
	end := dateOnly(req.EndDate)

	if req.AimFile.Name == "" || req.OfferFile.Name == "" || len(req.AimFile.Data) == 0 || len(req.OfferFile.Data) == 0 {
		return nil, &ValidationError{Msg: "Both documents are required"}
	}
	if end.Before(start) {
		return nil, &ValidationError{Msg: "End date cannot be before start date"}
	}
	if start.Before(today) {
		return nil, &ValidationError{Msg: "OD start date cannot be in the past"}
	}
	duration := int(end.Sub(start).Hours()/24) + 1

	student, err := s.dir.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	offer, err := s.checkEligibility(ctx, student, req.OfferID, start, end, duration, today)
	if err != nil {
		return nil, err
	}

	// Filename checks: both documents contribute to the checklist, but the
	// pipeline aborts on the first failed document.
	steps := ValidateFilename(req.AimFile.Name, KindAim, student.RollNo, start, today)
	if !StepsPassed(steps) {
		return nil, &ValidationError{Msg: "Document filename validation failed", Steps: steps}
	}
	offerSteps := ValidateFilename(req.OfferFile.Name, KindOffer, student.RollNo, start, today)
	steps = append(steps, offerSteps...)
	if !StepsPassed(offerSteps) {
		return nil, &ValidationError{Msg: "Document filename validation failed", Steps: steps}
	}

	// Content verification runs on the offer letter only.
	text, err := s.extractor.ExtractText(ctx, req.OfferFile.Data)
	if err != nil {
		slog.Error("text extraction failed", "studentId", student.ID, "err", err)
		return nil, &VerificationError{Msg: "Internal verification error - Could not process PDF"}
	}
	result := VerifyContent(text, student.Name, offer.Company.Name, start, end, s.verify)
	if !result.Success {
		steps = append(steps, Step{
			Name:    "AI Content Verification",
			Success: false,
			Error:   "Could not verify: " + strings.Join(failedFields(result.Details, s.verify), ", "),
		})
		return nil, &VerificationError{Msg: "Document verification incomplete", Steps: steps, Details: result.Details}
	}
	steps = append(steps, Step{Name: "AI Content Verification", Success: true})

	proofPath, err := s.files.Save(req.AimFile.Name, req.AimFile.Data)
	if err != nil {
		return nil, fmt.Errorf("store aim document: %w", err)
	}
	offerPath, err := s.files.Save(req.OfferFile.Name, req.OfferFile.Data)
	if err != nil {
		s.cleanupFiles(proofPath)
		return nil, fmt.Errorf("store offer document: %w", err)
	}

	applied := s.now()
	rec := &Od{
		TrackerID:  newTrackerID(),
		ActivityID: newActivityID(),
		StudentID:  student.ID,
		OfferID:    offer.ID,
		Type:       TypeInternship,
		StartDate:  start,
		EndDate:    end,
		Duration:   duration,
		ProofFile:  proofPath,
		OfferFile:  offerPath,
		Status:     StatusDocsVerified, // PENDING is skipped when verification passes synchronously
		Details:    result.Details,
		Timeline: []TimelineEvent{
			{Status: StatusPending, Label: "Applied", Time: applied, Description: "OD application submitted by student."},
			{Status: StatusDocsVerified, Label: "Documents Verified", Time: applied, Description: "Document verification passed successfully. Activity ID generated."},
		},
	}

	if err := s.repo.CreateIfEligible(ctx, rec); err != nil {
		s.cleanupFiles(proofPath, offerPath)
		return nil, err
	}

	s.notifier.Notify(ctx, student.Email, "OD Documents Verified",
		fmt.Sprintf("Your OD request (%s) has passed document verification. Activity ID: %s. Pending Mentor Approval.", rec.TrackerID, rec.ActivityID),
		"SUCCESS")
	if student.MentorID != nil {
		if mentor, err := s.dir.GetFaculty(ctx, *student.MentorID); err == nil {
			s.notifier.Notify(ctx, mentor.Email, "New OD Approval Pending",
				fmt.Sprintf("Student %s (%s) has applied for OD. Review required.", student.Name, student.RollNo),
				"INFO")
		} else {
			slog.Warn("mentor lookup failed", "mentorId", *student.MentorID, "err", err)
		}
	}

	return rec, nil
}

// checkEligibility enforces the gate rules in order, short-circuiting on the
// first failure. It runs before any document is looked at; the record-level
// checks are re-run inside the creation transaction as the race backstop.
func (s *Service) checkEligibility(ctx context.Context, student *Student, offerID int64, start, end time.Time, duration int, today time.Time) (*Offer, error) {
	offer, err := s.dir.GetOffer(ctx, offerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &EligibilityError{Msg: "Invalid offer selection"}
		}
		return nil, fmt.Errorf("load offer: %w", err)
	}
	if offer.StudentID != student.ID {
		return nil, &EligibilityError{Msg: "Invalid offer selection"}
	}
	if !offer.Company.IsApproved {
		return nil, &EligibilityError{Msg: fmt.Sprintf("OD cannot be approved for %s. This company is not on the approved list.", offer.Company.Name)}
	}

	if _, err := s.repo.FindOpenByStudent(ctx, student.ID); err == nil {
		return nil, &EligibilityError{Msg: MsgOpenODExists}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check open OD: %w", err)
	}

	if _, err := s.repo.FindActiveApproved(ctx, student.ID, today); err == nil {
		return nil, &EligibilityError{Msg: MsgActiveODExists}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check active OD: %w", err)
	}

	if _, err := s.repo.FindApprovedOverlap(ctx, student.ID, start, end); err == nil {
		return nil, &EligibilityError{Msg: MsgApprovedOverlap}
	} else if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("check overlap: %w", err)
	}

	if duration > MaxDurationDays {
		return nil, &EligibilityError{Msg: fmt.Sprintf("Single OD duration cannot exceed %d days.", MaxDurationDays)}
	}
	return offer, nil
}

// UpdateStatus advances an OD through the status machine on behalf of the
// given principal, appends the timeline event, and notifies the student.
func (s *Service) UpdateStatus(ctx context.Context, odID int64, target Status, actor Principal) (*Od, error) {
	if _, err := ParseStatus(string(target)); err != nil {
		return nil, &ValidationError{Msg: "Invalid status"}
	}
	if actor.Role != RoleFaculty && actor.Role != RoleAdmin {
		return nil, &AuthorizationError{Msg: "Access denied. Faculty or Admin only."}
	}

	rec, err := s.repo.GetByID(ctx, odID)
	if err != nil {
		return nil, err
	}

	if !CanChangeStatus(actor.Role, rec.Status) {
		return nil, &AuthorizationError{Msg: "Only Administrators can revoke or modify an already Approved OD."}
	}

	event := TimelineEvent{
		Status:      target,
		Label:       target.Label(),
		Time:        s.now(),
		Description: fmt.Sprintf("Status updated to %s by %s.", target, actor.Role),
	}
	updated, err := s.repo.UpdateStatus(ctx, odID, target, event)
	if err != nil {
		return nil, err
	}

	if student, err := s.dir.GetStudent(ctx, rec.StudentID); err == nil {
		s.notifier.Notify(ctx, student.Email, "OD Status Updated",
			fmt.Sprintf("Your OD request (%s) has been %s.", rec.TrackerID, target.Label()),
			NotificationSeverity(target))
	} else {
		slog.Warn("student lookup for notification failed", "studentId", rec.StudentID, "err", err)
	}

	return updated, nil
}

// GetByID returns a single OD record.
func (s *Service) GetByID(ctx context.Context, id int64) (*Od, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByStudent returns all of a student's ODs, newest first.
func (s *Service) ListByStudent(ctx context.Context, studentID int64) ([]Od, error) {
	return s.repo.ListByStudent(ctx, studentID)
}

// ListForMentor returns the open ODs of the faculty member's mentees.
func (s *Service) ListForMentor(ctx context.Context, facultyID int64) ([]Od, error) {
	return s.repo.ListOpenForMentor(ctx, facultyID)
}

func (s *Service) cleanupFiles(paths ...string) {
	for _, p := range paths {
		if err := s.files.Remove(p); err != nil {
			slog.Warn("failed to delete uploaded file", "path", p, "err", err)
		}
	}
}

func failedFields(d *VerificationDetails, opts VerifyOptions) []string {
	var fields []string
	if !d.Name.Found {
		fields = append(fields, "Student Name")
	}
	if !d.Company.Found {
		fields = append(fields, "Company Name")
	}
	if opts.RequireDatePeriodMatch && !d.Dates.Found {
		fields = append(fields, "Joining Date")
	}
	return fields
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// newTrackerID returns the 6-digit human-facing tracker code.
func newTrackerID() string {
	return fmt.Sprintf("%06d", 100000+rand.IntN(900000))
}

// newActivityID returns the ACT-XXXXXXXX proof-of-verification code.
func newActivityID() string {
	raw := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ACT-" + raw[:8]
}
