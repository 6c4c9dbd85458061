// Package od contains the business logic for On-Duty (OD) applications:
// the eligibility gate, document validation, and the status machine that
// moves a request from submission to final approval.
//
// Status graph:
//
//	PENDING ──► DOCS_VERIFIED ──► MENTOR_APPROVED ──► APPROVED
//	    │              │                  │
//	    └──────────────┴──────────────────┴──► REJECTED
//
// REJECTED is terminal. APPROVED is terminal for faculty; administrators
// may still revoke or modify an approved record.
package od

import (
	"fmt"
	"strings"
)

// Status values mirror the od_status enum in PostgreSQL.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusDocsVerified   Status = "DOCS_VERIFIED"
	StatusMentorApproved Status = "MENTOR_APPROVED"
	StatusApproved       Status = "APPROVED"
	StatusRejected       Status = "REJECTED"
)

// ParseStatus converts a raw string to a Status, returning an error for
// unknown values.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusPending, StatusDocsVerified, StatusMentorApproved, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("unknown OD status %q", s)
}

// Label returns the human-readable timeline label for a status,
// e.g. "mentor approved".
func (s Status) Label() string {
	return strings.ToLower(strings.ReplaceAll(string(s), "_", " "))
}

// Role identifies the kind of principal acting on an OD record.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleFaculty Role = "FACULTY"
	RoleAdmin   Role = "ADMIN"
)

// Principal is an authenticated actor, resolved once at the system boundary
// and passed into the core. The core never re-derives roles.
type Principal struct {
	ID    int64
	Email string
	Role  Role
}

// CanChangeStatus reports whether the given role may move a record out of
// its current status. Only administrators may touch an already-approved OD.
func CanChangeStatus(role Role, current Status) bool {
	if role != RoleFaculty && role != RoleAdmin {
		return false
	}
	if current == StatusApproved {
		return role == RoleAdmin
	}
	return true
}

// NotificationSeverity maps a new status to the severity tag of the student
// notification. The rule is a substring test, so MENTOR_APPROVED is tagged
// SUCCESS even though it is an intermediate state — kept for compatibility
// with the notification consumers.
func NotificationSeverity(s Status) string {
	if strings.Contains(string(s), "APPROVED") {
		return "SUCCESS"
	}
	return "ERROR"
}
