package parser

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var blankRunRe = regexp.MustCompile(`\n{3,}`)

// htmlToText strips markup and returns the visible text, one text node per
// line. Script and style subtrees are dropped entirely. Entities arrive
// already decoded from the tokenizer.
func htmlToText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0

	for {
		switch z.Next() {
		case html.ErrorToken:
			// EOF or truncated markup; keep whatever was collected.
			return normalizeText(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); skippedTag(name) {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); skippedTag(name) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if strings.TrimSpace(text) == "" {
				continue
			}
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
}

func skippedTag(name []byte) bool {
	return string(name) == "script" || string(name) == "style"
}

// normalizeText folds non-breaking spaces to plain spaces so the label
// rules see "Device: HOST01" whether the mail said "Device:&nbsp;HOST01"
// or not, normalizes line endings and collapses blank-line runs.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
