package llm

const fallbackArtifact = `import allure
import pytest


class TestFallback:
    """Generated when the model service is unavailable."""

    @allure.feature('fallback')
    @allure.story('llm_unavailable')
    @allure.title('Fallback test - model service unavailable')
    @allure.tag('LOW')
    @allure.label('owner', 'autogenerated')
    @allure.label('source', 'fallback')
    def test_fallback(self):
        with allure.step('Arrange'):
            expected = 2

        with allure.step('Act'):
            result = 1 + 1

        with allure.step('Assert'):
            assert result == expected, f'expected {expected}, got {result}'
`

// Fallback is the fixed artifact returned whenever live generation fails.
// It satisfies the whole Allure contract on its own.
func Fallback() string {
	return fallbackArtifact
}
