package od

import "fmt"

// ErrNotFound is returned when an OD, student, faculty or offer record is
// missing (or does not belong to the caller).
var ErrNotFound = fmt.Errorf("record not found")

// ValidationError reports a malformed request: bad filenames, bad dates,
// missing fields. Steps carries the per-check list when filenames were
// involved, so callers can render the full checklist.
type ValidationError struct {
	Msg   string
	Steps []Step
}

func (e *ValidationError) Error() string { return e.Msg }

// EligibilityError rejects an application before any document is looked at:
// duplicate/active/overlapping OD, unapproved company, duration exceeded.
type EligibilityError struct {
	Msg string
}

func (e *EligibilityError) Error() string { return e.Msg }

// Record-level eligibility messages, shared by the pre-check gate and the
// store's transactional recheck so a raced caller sees the same reason the
// gate would have reported.
const (
	MsgOpenODExists    = "You already have a pending/processing OD application. Please wait until it is finalized."
	MsgActiveODExists  = "You currently have an Active OD. You cannot apply for a new one until the current one is completed."
	MsgApprovedOverlap = "The selected dates overlap with another Approved OD."
)

// VerificationError reports a document-content mismatch or an unreadable
// document. Details is nil only when extraction itself failed.
type VerificationError struct {
	Msg     string
	Steps   []Step
	Details *VerificationDetails
}

func (e *VerificationError) Error() string { return e.Msg }

// AuthorizationError rejects a transition attempted by the wrong role.
type AuthorizationError struct {
	Msg string
}

func (e *AuthorizationError) Error() string { return e.Msg }
