package llm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	tagExpr        = regexp.MustCompile(`<[a-zA-Z/][^>]*>`)
	blankLinesExpr = regexp.MustCompile(`\n{3,}`)
	spacesExpr     = regexp.MustCompile(`[ \t]+`)
)

// SanitizeCaption strips HTML the model sometimes wraps captions in and
// normalises whitespace. Line breaks are kept since captions use them.
func SanitizeCaption(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if tagExpr.MatchString(s) {
		s = strings.ReplaceAll(s, "<br>", "\n")
		s = strings.ReplaceAll(s, "<br/>", "\n")
		s = strings.ReplaceAll(s, "<br />", "\n")
		s = strings.ReplaceAll(s, "</p>", "</p>\n\n")
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
		if err == nil {
			s = doc.Text()
		}
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spacesExpr.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLinesExpr.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SanitizeHook returns a single-line hook without surrounding quotes.
func SanitizeHook(s string) string {
	s = SanitizeCaption(s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, `"'“”`)
}
