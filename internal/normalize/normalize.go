// Package normalize parses raw model output into typed feature results.
// Output that is not a JSON object of the expected shape degrades to a fixed
// per-feature default instead of failing the request.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/prompt"
)

var errNotObject = errors.New("model output is not a JSON object")

// Default returns the fallback for f. Summary keeps raw as its text; every
// other feature is structurally empty.
func Default(f prompt.Feature, raw string) Result {
	switch f {
	case prompt.Summary:
		return &Summary{Summary: raw, KeyPoints: []string{}, Topics: []string{}}
	case prompt.Quiz:
		return &Quiz{Questions: []QuizQuestion{}}
	case prompt.Flashcards:
		return &Flashcards{Flashcards: []Flashcard{}}
	case prompt.StudyPlan:
		return &StudyPlan{Title: "Study Plan", Topics: []PlanTopic{}}
	case prompt.TopicAnalysis:
		return &TopicAnalysis{DetectedTopics: []DetectedTopic{}, FrequencyMap: map[string]float64{}}
	case prompt.Revision:
		return &Revision{RevisionTitle: "Revision Guide", Sections: []RevisionSection{}}
	default:
		return &ChatAnswer{Answer: raw}
	}
}

// Parse strictly decodes raw as f's result shape.
func Parse(f prompt.Feature, raw string) (Result, error) {
	var r Result
	switch f {
	case prompt.Summary:
		r = &Summary{}
	case prompt.Quiz:
		r = &Quiz{}
	case prompt.Flashcards:
		r = &Flashcards{}
	case prompt.StudyPlan:
		r = &StudyPlan{}
	case prompt.TopicAnalysis:
		r = &TopicAnalysis{}
	case prompt.Revision:
		r = &Revision{}
	case prompt.Chat:
		return &ChatAnswer{Answer: raw}, nil
	default:
		return nil, fmt.Errorf("unknown feature %q", f)
	}

	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 || data[0] != '{' {
		return nil, errNotObject
	}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, err
	}
	fillEmpty(r)
	return r, nil
}

// fillEmpty replaces absent lists and maps so results always render as [] or {}.
func fillEmpty(r Result) {
	switch v := r.(type) {
	case *Summary:
		v.KeyPoints = orEmpty(v.KeyPoints)
		v.Topics = orEmpty(v.Topics)
	case *Quiz:
		v.Questions = orEmpty(v.Questions)
		for i := range v.Questions {
			v.Questions[i].Options = orEmpty(v.Questions[i].Options)
		}
	case *Flashcards:
		v.Flashcards = orEmpty(v.Flashcards)
	case *StudyPlan:
		v.Topics = orEmpty(v.Topics)
		for i := range v.Topics {
			v.Topics[i].Resources = orEmpty(v.Topics[i].Resources)
		}
	case *TopicAnalysis:
		v.DetectedTopics = orEmpty(v.DetectedTopics)
		if v.FrequencyMap == nil {
			v.FrequencyMap = map[string]float64{}
		}
	case *Revision:
		v.Sections = orEmpty(v.Sections)
		for i := range v.Sections {
			v.Sections[i].KeyFacts = orEmpty(v.Sections[i].KeyFacts)
		}
	}
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Normalizer logs every degradation it absorbs.
type Normalizer struct {
	log *logger.Logger
}

func New(log *logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{log: log}
}

// Normalize never fails. degraded reports whether the default was used.
func (n *Normalizer) Normalize(f prompt.Feature, raw string) (r Result, degraded bool) {
	r, err := Parse(f, raw)
	if err != nil {
		n.log.Warn("model output did not parse, using default", "feature", string(f), "raw_len", len(raw), "error", err)
		return Default(f, raw), true
	}
	return r, false
}
