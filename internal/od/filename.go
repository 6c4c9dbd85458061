package od

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Document kinds encoded in uploaded filenames.
const (
	KindAim   = "ITI" // aim/objective document
	KindOffer = "ITO" // offer letter
)

// Step is one entry in the validation checklist shown to the applicant.
type Step struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// filenamePattern matches ROLL-KIND-D.M.YYYY after the extension is stripped.
var filenamePattern = regexp.MustCompile(`^([A-Z0-9]+)-(ITO|ITI)-(\d{1,2}\.\d{1,2}\.\d{4})$`)

// ValidateFilename checks an uploaded file's name against the required
// ROLL-KIND-DD.MM.YYYY convention and the applicant's identity and dates.
// Every step is reported by name so the caller can show a granular checklist;
// validation stops at the first failed step. The filename date must equal
// either today or the application's start date — proof the document was
// generated for this submission, not reused.
func ValidateFilename(fileName, kind, rollNo string, startDate, today time.Time) []Step {
	steps := make([]Step, 0, 5)
	fail := func(name, err string) []Step {
		return append(steps, Step{Name: name, Success: false, Error: err})
	}
	pass := func(name string) {
		steps = append(steps, Step{Name: name, Success: true})
	}

	name := strings.TrimSpace(fileName)

	// The extension is informational only: strip a trailing .pdf when present
	// and validate the remainder either way.
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		name = name[:len(name)-4]
	}
	pass(kind + " File Extension")

	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return fail(kind+" Filename Format", fmt.Sprintf("Invalid format. Expected: <ROLL>-%s-<DD.MM.YYYY>", kind))
	}
	pass(kind + " Filename Format")

	fileRoll, fileKind, fileDate := m[1], m[2], m[3]

	if fileRoll != rollNo {
		return fail(kind+" Roll Number", fmt.Sprintf("Found %s, expected %s", fileRoll, rollNo))
	}
	pass(kind + " Roll Number")

	if fileKind != kind {
		return fail(kind+" Document Type", fmt.Sprintf("Found %s, expected %s", fileKind, kind))
	}
	pass(kind + " Document Type")

	todayStr := today.Format("02.01.2006")
	startStr := startDate.Format("02.01.2006")
	normalized := normalizeFileDate(fileDate)

	if normalized != todayStr && normalized != startStr {
		return fail(kind+" Date Match",
			fmt.Sprintf("Date %s must be Today (%s) or Start Date (%s)", normalized, todayStr, startStr))
	}
	pass(kind + " Date Match")

	return steps
}

// normalizeFileDate zero-pads day and month of a D.M.YYYY string.
func normalizeFileDate(s string) string {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return s
	}
	d, m := parts[0], parts[1]
	if len(d) == 1 {
		d = "0" + d
	}
	if len(m) == 1 {
		m = "0" + m
	}
	return d + "." + m + "." + parts[2]
}

// StepsPassed reports whether every step in the checklist succeeded.
func StepsPassed(steps []Step) bool {
	for _, s := range steps {
		if !s.Success {
			return false
		}
	}
	return true
}
