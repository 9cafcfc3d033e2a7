package chunker

import (
	"regexp"
	"strings"
)

type rewrite struct {
	re   *regexp.Regexp
	repl string
}

// Order matters: line based rules rely on line endings and blank lines
// having been collapsed first.
var cleanupRules = []rewrite{
	{re: regexp.MustCompile(`\r\n?`), repl: "\n"},
	{re: regexp.MustCompile(`[ \t]+`), repl: " "},
	{re: regexp.MustCompile(`\n{3,}`), repl: "\n\n"},
	{re: regexp.MustCompile("\uFFFD"), repl: ""},
	{re: regexp.MustCompile(`(?m)^[ \t]*[*+-] \[[^\]\n]*\]\([^)\n]*\)[ \t]*$`), repl: ""},
	{re: regexp.MustCompile(`(?im)(?:Â)?©.*$|all rights reserved.*$`), repl: ""},
	{re: regexp.MustCompile(`(?i)back to top`), repl: ""},
	{re: regexp.MustCompile(`(?m)^[ \t]+#`), repl: "#"},
	{re: regexp.MustCompile(`\n\s*\n`), repl: "\n\n"},
}

// Normalize cleans raw markdown before chunking. Rules only ever shorten
// the text, so repeating the pass until nothing changes terminates and makes
// the result a fixed point.
func Normalize(raw string) string {
	text := raw
	for {
		next := normalizeOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func normalizeOnce(text string) string {
	for _, rule := range cleanupRules {
		text = rule.re.ReplaceAllString(text, rule.repl)
	}
	return strings.TrimSpace(text)
}
