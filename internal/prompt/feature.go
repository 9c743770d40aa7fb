package prompt

import "fmt"

// Feature is a study tool that turns material into a model-generated artifact.
// Its string value doubles as the stored session content type.
type Feature string

const (
	Summary       Feature = "summary"
	Quiz          Feature = "quiz"
	Flashcards    Feature = "flashcards"
	StudyPlan     Feature = "study_plan"
	TopicAnalysis Feature = "exam_analysis"
	Revision      Feature = "revision"
	Chat          Feature = "chat"
)

// MaxTokens caps generated output for every feature.
const MaxTokens = 4096

// MaxCount bounds requested quiz question and flashcard counts.
const MaxCount = 50

// Features lists the session-producing features in display order.
var Features = []Feature{Summary, Quiz, Flashcards, StudyPlan, TopicAnalysis, Revision}

// ParseFeature accepts a content type string.
func ParseFeature(s string) (Feature, error) {
	switch f := Feature(s); f {
	case Summary, Quiz, Flashcards, StudyPlan, TopicAnalysis, Revision, Chat:
		return f, nil
	}
	return "", fmt.Errorf("unknown feature %q", s)
}

// Temperature is the sampling temperature used for f.
func Temperature(f Feature) float64 {
	switch f {
	case Quiz, Flashcards, StudyPlan:
		return 0.5
	case Chat:
		return 0.6
	default:
		return 0.4
	}
}

// Count returns the item count to request for f: the default when n is not
// positive, otherwise n capped at MaxCount.
func Count(f Feature, n int) int {
	if n <= 0 {
		switch f {
		case Flashcards:
			return 10
		default:
			return 5
		}
	}
	return min(n, MaxCount)
}
