package entity

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type ValidationIssue struct {
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Line     *int     `json:"line"`
	Column   *int     `json:"column"`
	Severity Severity `json:"severity"`
}

// ValidationStats is empty (zero value) when the code failed to parse.
type ValidationStats struct {
	TestFunctionsCount int             `json:"test_functions_count"`
	HasImportAllure    bool            `json:"has_import_allure"`
	DecoratorsFound    []string        `json:"decorators_found"`
	AAASteps           map[string]bool `json:"aaa_steps"`
}

type ValidationReport struct {
	IsValid bool              `json:"is_valid"`
	Issues  []ValidationIssue `json:"issues"`
	Stats   *ValidationStats  `json:"stats"`
}

// ErrorCount returns the number of issues with error severity.
func (r ValidationReport) ErrorCount() int {
	n := 0
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			n++
		}
	}
	return n
}

// HasIssue reports whether an issue with the given code is present.
func (r ValidationReport) HasIssue(code string) bool {
	for _, i := range r.Issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
