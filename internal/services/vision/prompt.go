package vision

import (
	"regexp"
	"strings"
)

// boardPrompt asks the model to read the board and produce both a structured
// summary and a spoken narration script of roughly one minute.
const boardPrompt = `Analyze this photo of a handwritten whiteboard and read everything written on it.

Identify the four main sections of the board by name and extract the concrete content of each one accurately.

Then write a calm narration script for a lecturer to read aloud, about one minute long (roughly 300-400 characters), structured as:
1. Introduction (what the board illustrates)
2. Each of the board's sections explained in order
3. Closing summary

Output format:
---
[SUMMARY]
- <section name>: <content>
(one line per section)

[SCRIPT]
(the narration text only, written as spoken language, no headings)
---`

var scriptPattern = regexp.MustCompile(`(?s)\[SCRIPT\](.*?)(---|\z)`)

// ExtractScript pulls the narration segment out of a model response. When the
// marker is missing the whole text is used, so extraction never fails.
func ExtractScript(text string) string {
	if match := scriptPattern.FindStringSubmatch(text); match != nil {
		if script := strings.TrimSpace(match[1]); script != "" {
			return script
		}
	}
	return strings.TrimSpace(text)
}
