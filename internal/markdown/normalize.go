// Package markdown normalizes the spacing of feedback reports so that
// remote and locally generated text render identically.
package markdown

import "strings"

// Normalize rewrites blank-line spacing around headings, list items and
// plain lines. Runs of blank lines collapse to a single one, every
// heading-like line gets exactly one blank line before it, and list items
// attach directly to the preceding line. The transform is idempotent:
// normalizing already normalized text returns it unchanged.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var content []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		content = append(content, strings.TrimRight(line, " \t"))
	}

	var b strings.Builder
	for i, line := range content {
		if i > 0 {
			b.WriteString(separator(line))
		}
		b.WriteString(line)
	}

	return strings.TrimSpace(b.String())
}

// separator returns the line break placed before the given line. Headings
// always get a blank line above them, list items attach to the previous
// line, and everything else is padded with a single blank line.
func separator(line string) string {
	if isHeading(line) {
		return "\n\n"
	}
	if isListItem(line) {
		return "\n"
	}
	return "\n\n"
}

// isListItem reports whether the line is a bullet or a numbered list entry.
func isListItem(line string) bool {
	line = strings.TrimLeft(line, " \t")

	for _, bullet := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, bullet) {
			return true
		}
	}

	digits := 0
	for digits < len(line) && line[digits] >= '0' && line[digits] <= '9' {
		digits++
	}
	if digits == 0 || digits >= len(line) {
		return false
	}

	if line[digits] != '.' && line[digits] != ')' {
		return false
	}

	return digits+1 == len(line) || line[digits+1] == ' '
}

// isHeading reports whether the line is a markdown heading or a bold-leading line.
func isHeading(line string) bool {
	line = strings.TrimLeft(line, " \t")

	if strings.HasPrefix(line, "**") {
		return true
	}

	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}

	return hashes > 0 && hashes <= 6 && hashes < len(line) && line[hashes] == ' '
}
