package od

import (
	"fmt"
	"strings"
	"time"
)

// VerificationDetails is the structured report produced by VerifyContent.
// It is persisted verbatim on the OD record at creation and re-displayed to
// mentors and admins during review, never recomputed.
type VerificationDetails struct {
	Name    NameCheck    `json:"name"`
	Company CompanyCheck `json:"company"`
	Dates   DateCheck    `json:"dates"`
}

// NameCheck records the student-name heuristic: how many name parts were
// searched, which matched, and how many were required.
type NameCheck struct {
	Searched      string   `json:"searched"`
	Found         bool     `json:"found"`
	MatchedParts  []string `json:"matchedParts"`
	TotalParts    int      `json:"totalParts"`
	RequiredParts int      `json:"requiredParts"`
}

// CompanyCheck records the full-substring company-name match.
type CompanyCheck struct {
	Searched string `json:"searched"`
	Found    bool   `json:"found"`
}

// DateCheck records the internship-period heuristic. It is always computed
// for reviewer visibility; whether it gates the overall result is a policy
// decision (see VerifyOptions.RequireDatePeriodMatch).
type DateCheck struct {
	Period         string   `json:"period"`
	Found          bool     `json:"found"`
	YearMatched    bool     `json:"yearMatched"`
	MonthMatched   bool     `json:"monthMatched"`
	YearsSearched  []string `json:"yearsSearched"`
	MonthsSearched []string `json:"monthsSearched"`
	YearsFound     []string `json:"yearsFound"`
	MonthsFound    []string `json:"monthsFound"`
}

// VerificationResult bundles the structured report with the overall verdict
// and a human-readable summary line.
type VerificationResult struct {
	Success bool
	Details *VerificationDetails
	Summary string
	Message string
}

// VerifyOptions tunes the gating policy of VerifyContent.
type VerifyOptions struct {
	// RequireDatePeriodMatch makes the date check part of the pass/fail
	// decision. Off by default: the computation stays visible to reviewers
	// but does not block an application.
	RequireDatePeriodMatch bool
}

// VerifyContent runs the heuristic document checks against extracted text.
// It is a pure function of its inputs: identical inputs always produce an
// identical result. All comparisons are case-insensitive over
// whitespace-collapsed text.
func VerifyContent(documentText, studentName, companyName string, startDate, endDate time.Time, opts VerifyOptions) *VerificationResult {
	text := strings.Join(strings.Fields(strings.ToLower(documentText)), " ")

	details := &VerificationDetails{
		Name:    NameCheck{Searched: studentName, MatchedParts: []string{}},
		Company: CompanyCheck{Searched: companyName},
		Dates:   DateCheck{Period: fmt.Sprintf("%s to %s", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))},
	}

	// Student name: tokens longer than 2 chars; at least min(2, n) must appear.
	var parts []string
	for _, p := range strings.Fields(strings.ToLower(studentName)) {
		if len(p) > 2 {
			parts = append(parts, p)
		}
	}
	details.Name.TotalParts = len(parts)
	details.Name.RequiredParts = min(len(parts), 2)
	for _, p := range parts {
		if strings.Contains(text, p) {
			details.Name.MatchedParts = append(details.Name.MatchedParts, p)
		}
	}
	details.Name.Found = len(details.Name.MatchedParts) >= details.Name.RequiredParts

	// Company name: exact substring, no partial-token leniency.
	details.Company.Found = strings.Contains(text, strings.ToLower(companyName))

	// Internship period: any year plus any month form of either boundary date.
	years := dedupe([]string{
		fmt.Sprintf("%d", startDate.Year()),
		fmt.Sprintf("%d", endDate.Year()),
	})
	months := dedupe([]string{
		strings.ToLower(startDate.Month().String()),
		strings.ToLower(startDate.Month().String()[:3]),
		strings.ToLower(endDate.Month().String()),
		strings.ToLower(endDate.Month().String()[:3]),
	})
	details.Dates.YearsSearched = years
	details.Dates.MonthsSearched = months
	details.Dates.YearsFound = matching(text, years)
	details.Dates.MonthsFound = matching(text, months)
	details.Dates.YearMatched = len(details.Dates.YearsFound) > 0
	details.Dates.MonthMatched = len(details.Dates.MonthsFound) > 0
	details.Dates.Found = details.Dates.YearMatched && details.Dates.MonthMatched

	success := details.Name.Found && details.Company.Found
	if opts.RequireDatePeriodMatch {
		success = success && details.Dates.Found
	}

	summary := []string{
		checkLine("Name", details.Name.Found),
		checkLine("Company", details.Company.Found),
	}
	if details.Dates.Found {
		summary = append(summary, "✅ Joining Date: Found")
	} else if opts.RequireDatePeriodMatch {
		summary = append(summary, "❌ Joining Date: Not Found")
	} else {
		summary = append(summary, "⚠️ Joining Date: Not Found (Ignored)")
	}

	message := "All verifications passed"
	if !success {
		message = "Document verification incomplete - Please check the details below"
	}

	return &VerificationResult{
		Success: success,
		Details: details,
		Summary: strings.Join(summary, " | "),
		Message: message,
	}
}

func checkLine(field string, found bool) string {
	if found {
		return "✅ " + field + ": Found"
	}
	return "❌ " + field + ": Not Found"
}

func matching(text string, candidates []string) []string {
	found := []string{}
	for _, c := range candidates {
		if strings.Contains(text, c) {
			found = append(found, c)
		}
	}
	return found
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
