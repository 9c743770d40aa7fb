package normalize

import "github.com/atlasstudy/atlas/internal/prompt"

// Result is one feature's typed output.
type Result interface {
	Feature() prompt.Feature
}

type Summary struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics"`
}

type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type Quiz struct {
	Questions []QuizQuestion `json:"questions"`
}

type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

type Flashcards struct {
	Flashcards []Flashcard `json:"flashcards"`
}

type PlanTopic struct {
	Topic            string   `json:"topic"`
	Priority         string   `json:"priority"`
	EstimatedMinutes float64  `json:"estimated_minutes"`
	Resources        []string `json:"resources"`
}

type StudyPlan struct {
	Title          string      `json:"title"`
	Topics         []PlanTopic `json:"topics"`
	EstimatedHours float64     `json:"estimated_hours"`
}

type DetectedTopic struct {
	Topic      string  `json:"topic"`
	Frequency  float64 `json:"frequency"`
	Importance string  `json:"importance"`
}

type TopicAnalysis struct {
	DetectedTopics []DetectedTopic    `json:"detected_topics"`
	FrequencyMap   map[string]float64 `json:"frequency_map"`
}

type RevisionSection struct {
	Heading  string   `json:"heading"`
	KeyFacts []string `json:"key_facts"`
	Tips     string   `json:"tips"`
}

type Revision struct {
	RevisionTitle string            `json:"revision_title"`
	Sections      []RevisionSection `json:"sections"`
}

// ChatAnswer is the free-text tutor reply. It is never parsed.
type ChatAnswer struct {
	Answer string `json:"answer"`
}

func (*Summary) Feature() prompt.Feature       { return prompt.Summary }
func (*Quiz) Feature() prompt.Feature          { return prompt.Quiz }
func (*Flashcards) Feature() prompt.Feature    { return prompt.Flashcards }
func (*StudyPlan) Feature() prompt.Feature     { return prompt.StudyPlan }
func (*TopicAnalysis) Feature() prompt.Feature { return prompt.TopicAnalysis }
func (*Revision) Feature() prompt.Feature      { return prompt.Revision }
func (*ChatAnswer) Feature() prompt.Feature    { return prompt.Chat }
