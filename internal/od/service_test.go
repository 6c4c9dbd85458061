package od_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"smartod/od-service/internal/od"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeRepo struct {
	openOd    *od.Od
	activeOd  *od.Od
	overlapOd *od.Od
	records   map[int64]*od.Od
	created   *od.Od
	createErr error
}

func (f *fakeRepo) CreateIfEligible(_ context.Context, rec *od.Od) error {
	if f.createErr != nil {
		return f.createErr
	}
	rec.ID = 1
	rec.CreatedAt = time.Now()
	f.created = rec
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id int64) (*od.Od, error) {
	if rec, ok := f.records[id]; ok {
		return rec, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeRepo) FindOpenByStudent(_ context.Context, _ int64) (*od.Od, error) {
	if f.openOd != nil {
		return f.openOd, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeRepo) FindActiveApproved(_ context.Context, _ int64, _ time.Time) (*od.Od, error) {
	if f.activeOd != nil {
		return f.activeOd, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeRepo) FindApprovedOverlap(_ context.Context, _ int64, _, _ time.Time) (*od.Od, error) {
	if f.overlapOd != nil {
		return f.overlapOd, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeRepo) ListByStudent(_ context.Context, _ int64) ([]od.Od, error) { return nil, nil }

func (f *fakeRepo) ListOpenForMentor(_ context.Context, _ int64) ([]od.Od, error) { return nil, nil }

func (f *fakeRepo) UpdateStatus(_ context.Context, id int64, status od.Status, event od.TimelineEvent) (*od.Od, error) {
	rec, ok := f.records[id]
	if !ok {
		return nil, od.ErrNotFound
	}
	rec.Status = status
	rec.Timeline = append(rec.Timeline, event)
	return rec, nil
}

type fakeDir struct {
	student *od.Student
	mentor  *od.Faculty
	offer   *od.Offer
}

func (f *fakeDir) GetStudent(_ context.Context, id int64) (*od.Student, error) {
	if f.student != nil && f.student.ID == id {
		return f.student, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeDir) GetFaculty(_ context.Context, id int64) (*od.Faculty, error) {
	if f.mentor != nil && f.mentor.ID == id {
		return f.mentor, nil
	}
	return nil, od.ErrNotFound
}

func (f *fakeDir) GetOffer(_ context.Context, id int64) (*od.Offer, error) {
	if f.offer != nil && f.offer.ID == id {
		return f.offer, nil
	}
	return nil, od.ErrNotFound
}

type fakeExtractor struct {
	text  string
	err   error
	calls int
}

func (f *fakeExtractor) ExtractText(_ context.Context, _ []byte) (string, error) {
	f.calls++
	return f.text, f.err
}

type sentNote struct {
	email, title, message, severity string
}

type fakeNotifier struct {
	notes []sentNote
}

func (f *fakeNotifier) Notify(_ context.Context, email, title, message, severity string) {
	f.notes = append(f.notes, sentNote{email, title, message, severity})
}

type fakeFiles struct {
	saved   []string
	removed []string
	saveErr error
}

func (f *fakeFiles) Save(name string, _ []byte) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	path := "/uploads/" + name
	f.saved = append(f.saved, path)
	return path, nil
}

func (f *fakeFiles) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

// ── Fixture ────────────────────────────────────────────────────────────────

type fixture struct {
	svc       *od.Service
	repo      *fakeRepo
	dir       *fakeDir
	extractor *fakeExtractor
	notifier  *fakeNotifier
	files     *fakeFiles
}

func newFixture() *fixture {
	mentorID := int64(3)
	f := &fixture{
		repo: &fakeRepo{records: map[int64]*od.Od{}},
		dir: &fakeDir{
			student: &od.Student{ID: 7, Name: "John Michael Smith", RollNo: "7376222AD168", Email: "john@campus.edu", MentorID: &mentorID},
			mentor:  &od.Faculty{ID: 3, Name: "Dr. Rao", Email: "rao@campus.edu"},
			offer:   &od.Offer{ID: 9, StudentID: 7, Company: od.Company{ID: 4, Name: "Google", IsApproved: true}},
		},
		extractor: &fakeExtractor{text: "we are pleased to offer john michael smith an internship at google starting january 2026"},
		notifier:  &fakeNotifier{},
		files:     &fakeFiles{},
	}
	f.svc = od.NewService(f.repo, f.dir, f.extractor, f.notifier, f.files, od.VerifyOptions{})
	return f
}

func validRequest() od.ApplyRequest {
	start := time.Now().AddDate(0, 0, 10)
	end := start.AddDate(0, 0, 20)
	return od.ApplyRequest{
		StudentID: 7,
		OfferID:   9,
		StartDate: start,
		EndDate:   end,
		AimFile:   od.Document{Name: "7376222AD168-ITI-" + start.Format("02.01.2006") + ".pdf", Data: []byte("aim")},
		OfferFile: od.Document{Name: "7376222AD168-ITO-" + start.Format("02.01.2006") + ".pdf", Data: []byte("offer")},
	}
}

// ── Apply — happy path ─────────────────────────────────────────────────────

func TestApply_Success(t *testing.T) {
	f := newFixture()
	rec, err := f.svc.Apply(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	if rec.Status != od.StatusDocsVerified {
		t.Errorf("status = %s, want DOCS_VERIFIED", rec.Status)
	}
	if rec.Duration != 21 {
		t.Errorf("duration = %d, want 21 (inclusive range)", rec.Duration)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(rec.TrackerID) {
		t.Errorf("trackerId %q should be 6 digits", rec.TrackerID)
	}
	if !regexp.MustCompile(`^ACT-[A-Z0-9]{8}$`).MatchString(rec.ActivityID) {
		t.Errorf("activityId %q should be ACT- plus 8 alphanumerics", rec.ActivityID)
	}
	if len(rec.Timeline) != 2 {
		t.Fatalf("timeline has %d events, want 2", len(rec.Timeline))
	}
	if rec.Timeline[0].Status != od.StatusPending || rec.Timeline[0].Label != "Applied" {
		t.Errorf("first timeline event = %+v, want PENDING/Applied", rec.Timeline[0])
	}
	if rec.Timeline[1].Status != od.StatusDocsVerified || rec.Timeline[1].Label != "Documents Verified" {
		t.Errorf("second timeline event = %+v, want DOCS_VERIFIED/Documents Verified", rec.Timeline[1])
	}
	if rec.Details == nil || !rec.Details.Name.Found || !rec.Details.Company.Found {
		t.Errorf("verification details snapshot missing or incomplete: %+v", rec.Details)
	}
	if f.repo.created == nil {
		t.Error("record should have been persisted")
	}
	if len(f.files.saved) != 2 {
		t.Errorf("expected 2 stored documents, got %d", len(f.files.saved))
	}

	if len(f.notifier.notes) != 2 {
		t.Fatalf("expected student + mentor notifications, got %d", len(f.notifier.notes))
	}
	if f.notifier.notes[0].email != "john@campus.edu" || f.notifier.notes[0].severity != "SUCCESS" {
		t.Errorf("student notification = %+v", f.notifier.notes[0])
	}
	if f.notifier.notes[1].email != "rao@campus.edu" || f.notifier.notes[1].severity != "INFO" {
		t.Errorf("mentor notification = %+v", f.notifier.notes[1])
	}
}

func TestApply_NoMentorAssigned(t *testing.T) {
	f := newFixture()
	f.dir.student.MentorID = nil
	_, err := f.svc.Apply(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}
	if len(f.notifier.notes) != 1 {
		t.Errorf("expected only the student notification, got %d", len(f.notifier.notes))
	}
}

// ── Apply — eligibility gate ───────────────────────────────────────────────

// A second application while one is still in flight is rejected before any
// document is examined.
func TestApply_DuplicatePending(t *testing.T) {
	f := newFixture()
	f.repo.openOd = &od.Od{ID: 42, StudentID: 7, Status: od.StatusMentorApproved}

	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) {
		t.Fatalf("expected EligibilityError, got %v", err)
	}
	if eErr.Msg != od.MsgOpenODExists {
		t.Errorf("message = %q", eErr.Msg)
	}
	if f.extractor.calls != 0 {
		t.Error("content verification must not run for ineligible applications")
	}
	if len(f.files.saved) != 0 {
		t.Error("no files should be stored for ineligible applications")
	}
}

func TestApply_ActiveOd(t *testing.T) {
	f := newFixture()
	f.repo.activeOd = &od.Od{ID: 42, StudentID: 7, Status: od.StatusApproved}
	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) || eErr.Msg != od.MsgActiveODExists {
		t.Fatalf("expected active-OD EligibilityError, got %v", err)
	}
}

func TestApply_OverlappingApproved(t *testing.T) {
	f := newFixture()
	f.repo.overlapOd = &od.Od{ID: 42, StudentID: 7, Status: od.StatusApproved}
	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) || eErr.Msg != od.MsgApprovedOverlap {
		t.Fatalf("expected overlap EligibilityError, got %v", err)
	}
}

func TestApply_UnapprovedCompany(t *testing.T) {
	f := newFixture()
	f.dir.offer.Company.IsApproved = false
	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) {
		t.Fatalf("expected EligibilityError, got %v", err)
	}
	if !strings.Contains(eErr.Msg, "Google") {
		t.Errorf("message should name the company, got %q", eErr.Msg)
	}
}

func TestApply_OfferBelongsToAnotherStudent(t *testing.T) {
	f := newFixture()
	f.dir.offer.StudentID = 99
	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) || eErr.Msg != "Invalid offer selection" {
		t.Fatalf("expected invalid-offer EligibilityError, got %v", err)
	}
}

func TestApply_DurationCeiling(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, 60) // 61 days inclusive
	_, err := f.svc.Apply(context.Background(), req)
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) || !strings.Contains(eErr.Msg, "60 days") {
		t.Fatalf("expected duration EligibilityError, got %v", err)
	}

	// Exactly 60 days is allowed.
	req.EndDate = req.StartDate.AddDate(0, 0, 59)
	if _, err := f.svc.Apply(context.Background(), req); err != nil {
		t.Errorf("60-day application should pass, got %v", err)
	}
}

// ── Apply — request validation ─────────────────────────────────────────────

func TestApply_EndBeforeStart(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.EndDate = req.StartDate.AddDate(0, 0, -1)
	_, err := f.svc.Apply(context.Background(), req)
	var vErr *od.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestApply_StartInPast(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.StartDate = time.Now().AddDate(0, 0, -2)
	req.EndDate = time.Now().AddDate(0, 0, 5)
	_, err := f.svc.Apply(context.Background(), req)
	var vErr *od.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestApply_FilenameFailureAbortsPipeline(t *testing.T) {
	f := newFixture()
	req := validRequest()
	req.AimFile.Name = "7376222AD999-ITI-" + req.StartDate.Format("02.01.2006") + ".pdf"

	_, err := f.svc.Apply(context.Background(), req)
	var vErr *od.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.Steps) == 0 {
		t.Error("validation error should carry the step checklist")
	}
	if f.extractor.calls != 0 {
		t.Error("extraction must not run after a filename failure")
	}
	if len(f.files.saved) != 0 {
		t.Error("no files should be stored after a filename failure")
	}
}

// ── Apply — content verification ───────────────────────────────────────────

func TestApply_ContentMismatch(t *testing.T) {
	f := newFixture()
	f.extractor.text = "completely unrelated document text"

	_, err := f.svc.Apply(context.Background(), validRequest())
	var cErr *od.VerificationError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if cErr.Details == nil {
		t.Fatal("verification error should carry the structured report")
	}
	if cErr.Details.Name.Found || cErr.Details.Company.Found {
		t.Errorf("unexpected matches in report: %+v", cErr.Details)
	}
	if f.repo.created != nil {
		t.Error("no record may be persisted when verification fails")
	}
	if len(f.files.saved) != 0 {
		t.Error("no files should be stored when verification fails")
	}
	if len(f.notifier.notes) != 0 {
		t.Error("no notifications should be sent when verification fails")
	}
}

func TestApply_UnreadableDocument(t *testing.T) {
	f := newFixture()
	f.extractor.err = fmt.Errorf("malformed xref table")

	_, err := f.svc.Apply(context.Background(), validRequest())
	var cErr *od.VerificationError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected VerificationError, got %v", err)
	}
	if !strings.Contains(cErr.Msg, "Internal verification error") {
		t.Errorf("message = %q, want internal verification error", cErr.Msg)
	}
	if cErr.Details != nil {
		t.Error("extraction failure carries no content report")
	}
}

// If the transactional insert loses a race, the just-written files are
// removed again.
func TestApply_RaceLostCleansUpFiles(t *testing.T) {
	f := newFixture()
	f.repo.createErr = &od.EligibilityError{Msg: od.MsgOpenODExists}

	_, err := f.svc.Apply(context.Background(), validRequest())
	var eErr *od.EligibilityError
	if !errors.As(err, &eErr) {
		t.Fatalf("expected EligibilityError, got %v", err)
	}
	if len(f.files.removed) != 2 {
		t.Errorf("expected both stored files removed, got %v", f.files.removed)
	}
	if len(f.notifier.notes) != 0 {
		t.Error("no notifications should be sent for a failed create")
	}
}

// ── UpdateStatus ───────────────────────────────────────────────────────────

func TestUpdateStatus_FacultyAdvance(t *testing.T) {
	f := newFixture()
	f.repo.records[1] = &od.Od{ID: 1, StudentID: 7, TrackerID: "123456", Status: od.StatusDocsVerified,
		Timeline: []od.TimelineEvent{{Status: od.StatusPending}, {Status: od.StatusDocsVerified}}}

	rec, err := f.svc.UpdateStatus(context.Background(), 1, od.StatusMentorApproved,
		od.Principal{ID: 3, Email: "rao@campus.edu", Role: od.RoleFaculty})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	if rec.Status != od.StatusMentorApproved {
		t.Errorf("status = %s, want MENTOR_APPROVED", rec.Status)
	}
	if len(rec.Timeline) != 3 {
		t.Fatalf("timeline has %d events, want 3", len(rec.Timeline))
	}
	last := rec.Timeline[2]
	if last.Status != od.StatusMentorApproved || last.Label != "mentor approved" {
		t.Errorf("appended event = %+v", last)
	}

	if len(f.notifier.notes) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(f.notifier.notes))
	}
	// Substring severity rule: MENTOR_APPROVED notifies as SUCCESS.
	if f.notifier.notes[0].severity != "SUCCESS" {
		t.Errorf("severity = %q, want SUCCESS", f.notifier.notes[0].severity)
	}
}

func TestUpdateStatus_RejectNotifiesError(t *testing.T) {
	f := newFixture()
	f.repo.records[1] = &od.Od{ID: 1, StudentID: 7, TrackerID: "123456", Status: od.StatusDocsVerified}

	_, err := f.svc.UpdateStatus(context.Background(), 1, od.StatusRejected,
		od.Principal{ID: 3, Role: od.RoleFaculty})
	if err != nil {
		t.Fatalf("UpdateStatus returned error: %v", err)
	}
	note := f.notifier.notes[0]
	if note.severity != "ERROR" {
		t.Errorf("severity = %q, want ERROR", note.severity)
	}
	if !strings.Contains(note.message, "rejected") {
		t.Errorf("message should carry the humanized status, got %q", note.message)
	}
}

// Once APPROVED, faculty may no longer touch the record; an admin may.
func TestUpdateStatus_ApprovedLockedForFaculty(t *testing.T) {
	f := newFixture()
	f.repo.records[1] = &od.Od{ID: 1, StudentID: 7, Status: od.StatusApproved,
		Timeline: []od.TimelineEvent{{Status: od.StatusApproved}}}

	_, err := f.svc.UpdateStatus(context.Background(), 1, od.StatusRejected,
		od.Principal{ID: 3, Role: od.RoleFaculty})
	var aErr *od.AuthorizationError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if !strings.Contains(aErr.Msg, "Only Administrators") {
		t.Errorf("message = %q", aErr.Msg)
	}

	rec, err := f.svc.UpdateStatus(context.Background(), 1, od.StatusRejected,
		od.Principal{ID: 8, Role: od.RoleAdmin})
	if err != nil {
		t.Fatalf("admin revoke failed: %v", err)
	}
	if rec.Status != od.StatusRejected {
		t.Errorf("status = %s, want REJECTED", rec.Status)
	}
	if len(rec.Timeline) != 2 {
		t.Errorf("timeline has %d events, want 2", len(rec.Timeline))
	}
}

func TestUpdateStatus_StudentDenied(t *testing.T) {
	f := newFixture()
	f.repo.records[1] = &od.Od{ID: 1, StudentID: 7, Status: od.StatusDocsVerified}
	_, err := f.svc.UpdateStatus(context.Background(), 1, od.StatusApproved,
		od.Principal{ID: 7, Role: od.RoleStudent})
	var aErr *od.AuthorizationError
	if !errors.As(err, &aErr) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestUpdateStatus_InvalidTarget(t *testing.T) {
	f := newFixture()
	f.repo.records[1] = &od.Od{ID: 1, StudentID: 7, Status: od.StatusDocsVerified}
	_, err := f.svc.UpdateStatus(context.Background(), 1, od.Status("ARCHIVED"),
		od.Principal{ID: 8, Role: od.RoleAdmin})
	var vErr *od.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestUpdateStatus_UnknownOd(t *testing.T) {
	f := newFixture()
	_, err := f.svc.UpdateStatus(context.Background(), 404, od.StatusApproved,
		od.Principal{ID: 8, Role: od.RoleAdmin})
	if !errors.Is(err, od.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
