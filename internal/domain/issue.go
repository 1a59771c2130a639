package domain

import "strings"

// IssueKind tags a validation issue with what went wrong.
type IssueKind string

const (
	IssueGibberish     IssueKind = "gibberish"
	IssueNonEnglish    IssueKind = "non_english"
	IssueUnreadable    IssueKind = "unreadable"
	IssueGrammar       IssueKind = "grammar"
	IssueSystem        IssueKind = "system"
	IssueImageQuality  IssueKind = "image_quality"
	IssueProfessional  IssueKind = "professional"
	IssueQuality       IssueKind = "quality"
	IssueLength        IssueKind = "length"
	IssueEngagement    IssueKind = "engagement"
	IssueInappropriate IssueKind = "inappropriate"
	IssueSkipped       IssueKind = "skipped"
	IssueMissingImage  IssueKind = "missing_image"
	IssueInfo          IssueKind = "info"
	IssueOther         IssueKind = "other"
)

// IssueScope tells whether an issue concerns the image or the captions.
type IssueScope string

const (
	ScopeNone  IssueScope = ""
	ScopeImage IssueScope = "image"
	ScopeText  IssueScope = "text"
)

// Severity orders issues for feedback.
type Severity int

const (
	SeverityMinor Severity = iota
	SeverityImportant
	SeverityCritical
)

// Issue is a single validation finding.
type Issue struct {
	Kind    IssueKind  `json:"kind"`
	Scope   IssueScope `json:"scope,omitempty"`
	Message string     `json:"message"`
}

// NewIssue builds an issue with an explicit kind.
func NewIssue(kind IssueKind, scope IssueScope, message string) Issue {
	return Issue{Kind: kind, Scope: scope, Message: message}
}

func (i Issue) String() string {
	return i.Message
}

var (
	gibberishPatterns    = []string{"gibberish", "random characters", "corrupted text"}
	criticalPatterns     = []string{"gibberish", "random characters", "unreadable", "non-english", "error", "grammar", "spelling"}
	importantPatterns    = []string{"quality", "professional", "length", "engagement"}
	textBlockingPatterns = []string{"error", "grammar", "spelling", "inappropriate", "bad"}
	regenerationPatterns = []string{"gibberish", "random characters", "non-english language", "unreadable"}
)

// MatchesGibberish reports whether the issue describes gibberish text.
func (i Issue) MatchesGibberish() bool {
	return i.Kind == IssueGibberish || i.mentions(gibberishPatterns)
}

// Advisory issues are recorded but never block approval on their own.
func (i Issue) Advisory() bool {
	return i.Kind == IssueLength || i.Kind == IssueInfo
}

// Severity buckets the issue for feedback synthesis. The wording decides;
// the kind only matters when the message names none of the patterns.
func (i Issue) Severity() Severity {
	switch {
	case i.mentions(criticalPatterns):
		return SeverityCritical
	case i.mentions(importantPatterns):
		return SeverityImportant
	}
	switch i.Kind {
	case IssueGibberish, IssueNonEnglish, IssueUnreadable, IssueGrammar, IssueSystem:
		return SeverityCritical
	case IssueImageQuality, IssueProfessional, IssueQuality, IssueLength, IssueEngagement:
		return SeverityImportant
	default:
		return SeverityMinor
	}
}

// CriticalForText reports issues that stop the text scorer from approving.
// Every message naming an error, grammar, spelling, inappropriate or bad
// content counts, whatever kind it was classified as.
func (i Issue) CriticalForText() bool {
	switch i.Kind {
	case IssueGrammar, IssueInappropriate, IssueSystem:
		return true
	}
	return i.mentions(textBlockingPatterns)
}

// CriticalForRegeneration reports issues that warrant another generation attempt.
func (i Issue) CriticalForRegeneration() bool {
	switch i.Kind {
	case IssueGibberish, IssueNonEnglish, IssueUnreadable:
		return true
	}
	return i.mentions(regenerationPatterns)
}

// ConcernsImage reports issues raised against the image itself.
func (i Issue) ConcernsImage() bool {
	return i.Scope == ScopeImage
}

func (i Issue) mentions(patterns []string) bool {
	return containsAny(strings.ToLower(i.Message), patterns...)
}

// ClassifyIssue translates free text from a model into a tagged issue.
// Patterns are checked from most to least severe so an issue lands in
// exactly one bucket.
func ClassifyIssue(message string, scope IssueScope) Issue {
	lower := strings.ToLower(message)
	if scope == ScopeNone && strings.Contains(lower, "image") {
		scope = ScopeImage
	}

	var kind IssueKind
	switch {
	case containsAny(lower, gibberishPatterns...):
		kind = IssueGibberish
	case strings.Contains(lower, "non-english"):
		kind = IssueNonEnglish
	case strings.Contains(lower, "unreadable"):
		kind = IssueUnreadable
	case containsAny(lower, "error", "grammar", "spelling"):
		kind = IssueGrammar
	case strings.Contains(lower, "image quality"):
		kind = IssueImageQuality
	case strings.Contains(lower, "professional"):
		kind = IssueProfessional
	case strings.Contains(lower, "length"):
		kind = IssueLength
	case strings.Contains(lower, "engagement"):
		kind = IssueEngagement
	case strings.Contains(lower, "quality"):
		kind = IssueQuality
	case containsAny(lower, "inappropriate", "bad"):
		kind = IssueInappropriate
	case strings.Contains(lower, "skipped"):
		kind = IssueSkipped
	default:
		kind = IssueOther
	}

	return Issue{Kind: kind, Scope: scope, Message: message}
}

// ClassifyIssues translates a list of free-text issues, dropping blanks.
func ClassifyIssues(messages []string, scope IssueScope) []Issue {
	out := make([]Issue, 0, len(messages))
	for _, msg := range messages {
		if strings.TrimSpace(msg) == "" {
			continue
		}
		out = append(out, ClassifyIssue(msg, scope))
	}
	return out
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
