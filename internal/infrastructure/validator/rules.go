package validator

import (
	"fmt"
	"strings"

	"testgen/internal/domain/entity"
)

const (
	CodeSyntaxError   = "syntax_error"
	CodeMissingImport = "missing_import_allure"
	CodeNoTests       = "no_test_functions"
)

// Allure decorators every generated test module must use, in report order.
var RequiredDecorators = []string{"feature", "story", "title", "tag", "label"}

// Rule is one independent check over collected facts.
type Rule struct {
	Code     string
	Severity entity.Severity
	Message  string
	Violated func(f *Facts) bool
}

// DefaultRules is the fixed test artifact contract.
func DefaultRules() []Rule {
	rules := []Rule{
		{
			Code:     CodeMissingImport,
			Severity: entity.SeverityError,
			Message:  "import allure not found",
			Violated: func(f *Facts) bool { return !f.HasAllureImport },
		},
		{
			Code:     CodeNoTests,
			Severity: entity.SeverityError,
			Message:  "no test_* functions found",
			Violated: func(f *Facts) bool { return len(f.TestFunctions) == 0 },
		},
	}

	for _, dec := range RequiredDecorators {
		rules = append(rules, Rule{
			Code:     "missing_allure_" + dec,
			Severity: entity.SeverityWarning,
			Message:  fmt.Sprintf("decorator allure.%s not found", dec),
			Violated: func(f *Facts) bool {
				_, ok := f.Decorators[dec]
				return !ok
			},
		})
	}

	for _, step := range AAASteps {
		rules = append(rules, Rule{
			Code:     "missing_step_" + strings.ToLower(step),
			Severity: entity.SeverityWarning,
			Message:  fmt.Sprintf("AAA step not found: %s", step),
			Violated: func(f *Facts) bool { return !f.Steps[step] },
		})
	}

	return rules
}

// Evaluate runs every rule against f and returns the violations in rule order.
func Evaluate(rules []Rule, f *Facts) []entity.ValidationIssue {
	issues := make([]entity.ValidationIssue, 0)
	for _, r := range rules {
		if !r.Violated(f) {
			continue
		}
		issues = append(issues, entity.ValidationIssue{
			Code:     r.Code,
			Message:  r.Message,
			Severity: r.Severity,
		})
	}
	return issues
}
