package validator

import (
	"context"

	"testgen/internal/domain/entity"
	"testgen/internal/domain/repository"
)

// AllureValidator certifies generated pytest modules against the Allure test contract.
// It only inspects structure; nothing is executed or type-checked.
type AllureValidator struct {
	rules []Rule
}

func NewAllureValidator() *AllureValidator {
	return &AllureValidator{rules: DefaultRules()}
}

var _ repository.TestValidator = (*AllureValidator)(nil)

// Validate never fails: unparsable input is reported as a single syntax_error issue.
func (v *AllureValidator) Validate(ctx context.Context, code string) entity.ValidationReport {
	facts, err := CollectFacts(ctx, code)
	if err != nil {
		return syntaxReport(&SyntaxError{Line: 1, Column: 1, Message: err.Error()})
	}
	if facts.SyntaxError != nil {
		return syntaxReport(facts.SyntaxError)
	}

	issues := Evaluate(v.rules, facts)
	report := entity.ValidationReport{
		Issues: issues,
		Stats: &entity.ValidationStats{
			TestFunctionsCount: len(facts.TestFunctions),
			HasImportAllure:    facts.HasAllureImport,
			DecoratorsFound:    facts.DecoratorNames(),
			AAASteps:           facts.Steps,
		},
	}
	report.IsValid = report.ErrorCount() == 0
	return report
}

func syntaxReport(se *SyntaxError) entity.ValidationReport {
	line, col := se.Line, se.Column
	return entity.ValidationReport{
		IsValid: false,
		Issues: []entity.ValidationIssue{{
			Code:     CodeSyntaxError,
			Message:  se.Message,
			Line:     &line,
			Column:   &col,
			Severity: entity.SeverityError,
		}},
		Stats: &entity.ValidationStats{},
	}
}
