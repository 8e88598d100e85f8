// Package terminal recognizes terminal emulators and extracts the command
// being typed from the text they expose.
package terminal

import (
	"regexp"
	"strings"

	"github.com/rivo/uniseg"
)

// promptTokens are tried in this order; the first one present in a line
// wins, and the line is cut after its right-most occurrence. Spaced forms
// come before bare forms, and the zeta and lambda glyphs before the arrows.
var promptTokens = []string{
	"$ ", "% ", "> ", "# ", "ζ ", "λ ", "❯ ", "➜ ", "→ ", "» ",
	"$", "%", ">", "#", "ζ", "λ", "❯", "➜", "→", "»",
}

// promptChars is every character that can end a prompt.
const promptChars = "$%>#❯➜→»ζλ"

// rightPrompt matches a right-hand prompt decoration: two or more spaces and
// then a bracketed, parenthesized or angle-bracketed block, a clock, or a
// status glyph, through the end of the line.
var rightPrompt = regexp.MustCompile(`\s{2,}(?:\[[^\]]*\]|\([^)]*\)|<[^>]*>|\d{1,2}:\d{2}(?::\d{2})?|[✓✔✗✘×]).*$`)

// leftPromptPrefix matches a prompt at the start of a selection: any run of
// host or path fragments (each must contain @, :, ~ or /) and bracketed
// environment tags, then a prompt character and whitespace. The last
// fragment may touch the prompt character.
var leftPromptPrefix = regexp.MustCompile(`^(?:(?:\S*[@:~/]\S*|\[[^\]]*\]|\([^)]*\))\s+)*(?:\S*[@:~/]\S*|\[[^\]]*\]|\([^)]*\))?[$%>#❯➜→»ζλ]\s+`)

// ExtractCommand returns the command being typed on the last non-blank line
// of text, without left or right prompts. It never returns "" when a
// non-blank line exists.
func ExtractCommand(text string) string {
	line := lastLine(text)
	if line == "" {
		return ""
	}
	cmd := stripRight(stripLeft(line))
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return strings.TrimSpace(line)
	}
	return cmd
}

// CleanSelection removes a prompt accidentally included in a selection. It
// leaves text untouched when it is shorter than two characters, spans
// several lines or holds no prompt character.
func CleanSelection(text string) string {
	trimmed := strings.TrimSpace(text)
	if uniseg.GraphemeClusterCount(trimmed) < 2 {
		return text
	}
	if strings.ContainsAny(trimmed, "\r\n") {
		return text
	}
	if !strings.ContainsAny(trimmed, promptChars) {
		return text
	}

	cleaned := strings.TrimSpace(stripRight(leftPromptPrefix.ReplaceAllString(trimmed, "")))
	if cleaned == "" || cleaned == trimmed {
		return text
	}
	return cleaned
}

func lastLine(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func stripLeft(line string) string {
	for _, tok := range promptTokens {
		if i := strings.LastIndex(line, tok); i >= 0 {
			return line[i+len(tok):]
		}
	}
	return line
}

func stripRight(line string) string {
	return rightPrompt.ReplaceAllString(line, "")
}
