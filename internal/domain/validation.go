package domain

// ValidationDetails is persisted alongside a pipeline item.
type ValidationDetails struct {
	ImageTextReadable bool         `json:"imageTextReadable"`
	ImageTextLanguage TextLanguage `json:"imageTextLanguage"`
	ImageTextDetected *string      `json:"imageTextDetected"`
	ContentQuality    Quality      `json:"contentQuality"`
	OverallScore      int          `json:"overallScore"`
}

// ValidationResult is produced fresh by every validation call.
type ValidationResult struct {
	Approved bool
	Issues   []Issue
	Details  ValidationDetails
}

// IssueMessages returns the human readable issue list in detection order.
func (r ValidationResult) IssueMessages() []string {
	out := make([]string, 0, len(r.Issues))
	for _, issue := range r.Issues {
		out = append(out, issue.Message)
	}
	return out
}

// HasGibberish reports whether any issue matches the gibberish patterns.
func (r ValidationResult) HasGibberish() bool {
	for _, issue := range r.Issues {
		if issue.MatchesGibberish() {
			return true
		}
	}
	return false
}

// Status maps the result to a validation status. Results scoring below
// rejectBelow are rejected, the rest go to manual review.
func (r ValidationResult) Status(rejectBelow int) ValidationStatus {
	if r.Approved {
		return ValidationApproved
	}
	if r.Details.OverallScore < rejectBelow {
		return ValidationRejected
	}
	return ValidationManualReview
}

// ClampScore keeps a score inside [0,100].
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// StoredResult rebuilds a result from persisted columns.
func StoredResult(item PipelineItem) ValidationResult {
	result := ValidationResult{
		Approved: item.ValidationStatus == ValidationApproved,
		Issues:   ClassifyIssues(item.ValidationIssues, ScopeNone),
	}
	if item.ValidationResult != nil {
		result.Details = *item.ValidationResult
	} else {
		result.Details = ValidationDetails{
			ImageTextLanguage: LanguageNone,
			ContentQuality:    QualityMedium,
		}
	}
	return result
}
