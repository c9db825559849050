package llm

import (
	"context"

	"testgen/internal/infrastructure/validator"
)

const (
	allureImportLine = "import allure\n\n"

	IssueAddedAllureImport = "added missing import allure"
	IssueNoTestFunctions   = "no test_* functions found"
)

// selfHeal applies the deterministic fixes the client is allowed to make on its
// own. It shares CollectFacts with the validator so both agree on what is present.
// Healing already healed code is a no-op.
func selfHeal(ctx context.Context, code string) (string, []string) {
	facts, err := validator.CollectFacts(ctx, code)
	if err != nil {
		return code, nil
	}

	var issues []string
	switch {
	case len(facts.TestFunctions) == 0:
		issues = append(issues, IssueNoTestFunctions)
	case !facts.HasAllureImport:
		code = validator.InsertImports(code, facts.HeaderEnd, allureImportLine)
		issues = append(issues, IssueAddedAllureImport)
	}
	return code, issues
}
