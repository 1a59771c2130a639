package validation

import "errors"

// ErrValidation is returned when no validation could be attempted at all.
var ErrValidation = errors.New("validation failed")

// Score penalties applied to the combined result.
const (
	PenaltyGibberish       = 50
	PenaltyOtherLanguage   = 30
	PenaltyUnreadable      = 25
	PenaltyLowImageQuality = 20
	PenaltyUnprofessional  = 15
	PenaltyLowTextQuality  = 10
)

// Thresholds holds every score cut-off used when turning scores into verdicts.
type Thresholds struct {
	// Approve is the minimum combined score.
	Approve int
	// TextOnlyApprove approves a text-only verdict regardless of issues.
	TextOnlyApprove int
	// TextOnlyNoCritical approves a text-only verdict with no critical issue.
	TextOnlyNoCritical int
	ScorerApprove      int
	ScorerNoCritical   int
	// DegradedFloor is the lowest score given to an approved text-only verdict.
	DegradedFloor    int
	DegradedPenalty  int
	SystemErrorScore int
	// ShortCaptionWords and LongCaptionWords bound the length outliers the
	// scorer flags on its own.
	ShortCaptionWords int
	LongCaptionWords  int
}

// DefaultThresholds returns the production cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Approve:            70,
		TextOnlyApprove:    95,
		TextOnlyNoCritical: 90,
		ScorerApprove:      95,
		ScorerNoCritical:   85,
		DegradedFloor:      85,
		DegradedPenalty:    5,
		SystemErrorScore:   30,
		ShortCaptionWords:  20,
		LongCaptionWords:   500,
	}
}
