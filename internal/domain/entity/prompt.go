package entity

import (
	"fmt"
	"strings"
)

type Prompt struct {
	ID         string
	SystemRole string
	Text       string
}

const DefaultSystemRole = "You are a Senior QA Automation Engineer with 10+ years of experience. " +
	"You generate production-ready Python tests. Your code is clean, readable and runnable as is. " +
	"You strictly follow the Arrange-Act-Assert pattern. " +
	"You always use Allure for reporting. " +
	"You write tests that are easy to maintain and extend."

const allureContract = "Rules:\n" +
	"1. Output a single Python module inside one ```python fenced block, no prose outside it.\n" +
	"2. Start with `import allure` and `import pytest`.\n" +
	"3. Every test function is named test_* and decorated with @allure.feature, @allure.story, " +
	"@allure.title, @allure.tag and @allure.label('owner', ...).\n" +
	"4. Every test body has three blocks: `with allure.step('Arrange'):`, " +
	"`with allure.step('Act'):` and `with allure.step('Assert'):`.\n"

var TestcasePrompt = Prompt{
	ID:         "testcase",
	SystemRole: DefaultSystemRole,
	Text: "Write Allure TestOps as Code test cases of type %s (priority %s) for the requirements below.\n\n" +
		allureContract + "\nRequirements:\n%s\n",
}

var APIAutotestPrompt = Prompt{
	ID:         "autotest_api",
	SystemRole: DefaultSystemRole + " You are an expert in REST API testing with httpx.",
	Text: "Generate a pytest API autotest for endpoint %s %s.\n" +
		"Summary: %s\nParameters: %d\nRequest body: %t\n\n" +
		"Use httpx, authenticate with a Bearer token, check the status code and the response structure.\n\n" +
		allureContract + "\nOpenAPI specification (truncated):\n%s\n",
}

var UIAutotestPrompt = Prompt{
	ID:         "autotest_ui",
	SystemRole: DefaultSystemRole + " You are an expert in UI testing with Playwright.",
	Text: "Generate a Playwright UI autotest (priority %s) for the scenario below.\n" +
		"Use page.goto(), page.click(), page.fill() and expect(...).to_be_visible().\n\n" +
		allureContract + "\nScenario:\n%s\n",
}

// maxSpecInPrompt bounds how much of an OpenAPI document is pasted into a prompt.
const maxSpecInPrompt = 5000

func RenderTestcasePrompt(testType, priority, requirements string) string {
	return fmt.Sprintf(TestcasePrompt.Text, testType, priority, strings.TrimSpace(requirements))
}

func RenderAPIAutotestPrompt(ep EndpointDescriptor, spec string) string {
	if len(spec) > maxSpecInPrompt {
		spec = spec[:maxSpecInPrompt]
	}
	return fmt.Sprintf(APIAutotestPrompt.Text, ep.Method, ep.Path, ep.Summary, ep.ParameterCount, ep.HasRequestBody, spec)
}

func RenderUIAutotestPrompt(priority, scenario string) string {
	return fmt.Sprintf(UIAutotestPrompt.Text, priority, strings.TrimSpace(scenario))
}
