package validation

import (
	"fmt"
	"strings"

	"github.com/teazle/autosocialai/internal/domain"
)

var imageFeedbackPatterns = []string{
	"image",
	"gibberish",
	"random characters",
	"non-english language",
	"unreadable text",
	"image quality",
	"professional standard",
}

// Synthesize turns a validation result into a regeneration brief. The output
// depends only on result.
func Synthesize(result domain.ValidationResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Content quality score: %d/100 (%s quality).", result.Details.OverallScore, result.Details.ContentQuality)

	if len(result.Issues) == 0 {
		b.WriteString(" Content met basic requirements but could be improved for higher engagement.")
	} else {
		var critical, important, minor []string
		for _, issue := range result.Issues {
			switch issue.Severity() {
			case domain.SeverityCritical:
				critical = append(critical, issue.Message)
			case domain.SeverityImportant:
				important = append(important, issue.Message)
			default:
				minor = append(minor, issue.Message)
			}
		}
		b.WriteString(" The following issues were found:")
		writeBucket(&b, "CRITICAL ISSUES (must fix)", critical)
		writeBucket(&b, "IMPORTANT IMPROVEMENTS", important)
		writeBucket(&b, "SUGGESTIONS", minor)
	}

	b.WriteString("\n\nPlease generate new content that addresses these issues while maintaining high quality and brand voice.")
	return b.String()
}

func writeBucket(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n\n%s:", label)
	for i, item := range items {
		fmt.Fprintf(b, "\n%d. %s", i+1, item)
	}
}

// ExtractImageFeedback keeps the issues that should steer image regeneration:
// those raised against the image and those whose wording points at it.
func ExtractImageFeedback(issues []domain.Issue) []string {
	var out []string
	for _, issue := range issues {
		lower := strings.ToLower(issue.Message)
		if issue.ConcernsImage() || containsAny(lower, imageFeedbackPatterns) {
			out = append(out, issue.Message)
		}
	}
	return out
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
