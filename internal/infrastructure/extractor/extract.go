// Package extractor recovers bare Python source from model output that wraps
// code in markdown fences or mixes it with prose.
package extractor

import (
	"regexp"
	"strings"
)

// An optional language tag is only consumed when it is followed by a newline,
// so "```import os```" keeps its first word.
var fencedBlock = regexp.MustCompile("(?s)```(?:[A-Za-z0-9_+.-]*[ \\t]*\\r?\\n)?(.*?)```")

// Lines containing any of these (case-insensitive) start the code part of the text.
var codeTokens = []string{"import ", "def ", "class ", "@allure", "allure.step"}

// Extract returns the first fenced code block if there is one, otherwise the text
// starting at the first line that looks like code, otherwise the trimmed input.
// Extract(Extract(s)) == Extract(s) for every s.
func Extract(text string) string {
	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		return scanFromCode(strings.TrimSpace(m[1]))
	}
	return scanFromCode(strings.TrimSpace(text))
}

func scanFromCode(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		if isCodeLine(line) {
			return strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return text
}

func isCodeLine(line string) bool {
	lower := strings.ToLower(line)
	for _, tok := range codeTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}
