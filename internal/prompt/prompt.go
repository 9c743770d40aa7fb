// Package prompt builds the chat message sequences sent to the completion
// model for each study feature.
package prompt

import (
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const summarySystem = `You are an expert academic assistant. Summarize study material clearly, structured with headings and bullet points. Return your answer as valid JSON with this exact shape:
{ "summary": "<overview paragraph>", "key_points": ["point 1", "point 2", ...], "topics": ["topic 1", "topic 2", ...] }
Do NOT wrap the JSON in markdown code fences. Return raw JSON only.`

const quizSystem = `You are an expert quiz generator. Generate %d multiple choice questions from the given study material. Each question should have 4 options with one correct answer and a brief explanation.

Format your response as valid JSON (no markdown fences):
{
  "questions": [
    {
      "question": "...",
      "options": ["A) ...", "B) ...", "C) ...", "D) ..."],
      "correct_answer": "A) ...",
      "explanation": "..."
    }
  ]
}`

const flashcardsSystem = `You are an expert flashcard creator. Generate %d flashcards from the given study material. Each flashcard should have a clear question on the front and a concise answer on the back.

Format your response as valid JSON (no markdown fences):
{
  "flashcards": [
    { "question": "...", "answer": "..." }
  ]
}`

const studyPlanSystem = `You are an expert study planner. Create a structured study plan based on the given material. Consider topic difficulty and importance.

Format your response as valid JSON (no markdown fences):
{
  "title": "Study Plan for [Subject]",
  "topics": [
    {
      "topic": "...",
      "priority": "high|medium|low",
      "estimated_minutes": 30,
      "resources": ["..."]
    }
  ],
  "estimated_hours": 10
}`

const topicAnalysisSystem = `You are an expert academic analyst. Extract and rank the main topics from the given study material or past exam papers. Identify frequently tested topics and their importance.

Format your response as valid JSON (no markdown fences):
{
  "detected_topics": [
    { "topic": "...", "frequency": 5, "importance": "high|medium|low" }
  ],
  "frequency_map": { "topic_name": 5 }
}`

const revisionSystem = `You are an expert revision assistant. Create a condensed revision guide from the given study material. Focus on the most important concepts, formulas, and key facts that are essential for exam preparation.

Format your response as valid JSON (no markdown fences):
{
  "revision_title": "Quick Revision: [Subject]",
  "sections": [
    {
      "heading": "...",
      "key_facts": ["...", "..."],
      "tips": "..."
    }
  ]
}`

const (
	chatWithContextSystem = "You are an intelligent AI study assistant called Atlas. You help students understand study material by answering their questions clearly and thoroughly. Base your answers on the provided study material. If the question is outside the scope of the material, say so politely.\n\nStudy Material Context:\n"
	chatGeneralSystem     = "You are an intelligent AI study assistant called Atlas. You help students with their studies by answering questions clearly and thoroughly. Provide accurate, well-structured answers."
)

var instructions = map[Feature]string{
	Summary:       "Summarize the following study material:\n\n",
	Quiz:          "Generate quiz questions from:\n\n",
	Flashcards:    "Create flashcards from:\n\n",
	StudyPlan:     "Create a study plan for:\n\n",
	TopicAnalysis: "Extract and rank topics from:\n\n",
	Revision:      "Create a revision guide from:\n\n",
}

// Build returns the system and user messages for a document feature. count is
// only used by Quiz and Flashcards and goes through Count first.
func Build(f Feature, text string, count int) ([]Message, error) {
	var system string
	switch f {
	case Summary:
		system = summarySystem
	case Quiz:
		system = fmt.Sprintf(quizSystem, Count(f, count))
	case Flashcards:
		system = fmt.Sprintf(flashcardsSystem, Count(f, count))
	case StudyPlan:
		system = studyPlanSystem
	case TopicAnalysis:
		system = topicAnalysisSystem
	case Revision:
		system = revisionSystem
	default:
		return nil, fmt.Errorf("no document prompt for feature %q", f)
	}

	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: instructions[f] + text},
	}, nil
}

// BuildChat constructs a tutoring conversation. Prior turns are carried over
// verbatim and in order; anything that is not a user or assistant turn is
// dropped so the history cannot inject a second system message.
func BuildChat(material, question string, history []Message) []Message {
	var sb strings.Builder
	if material != "" {
		sb.WriteString(chatWithContextSystem)
		sb.WriteString(material)
	} else {
		sb.WriteString(chatGeneralSystem)
	}

	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: sb.String()})
	for _, m := range history {
		if m.Role == RoleUser || m.Role == RoleAssistant {
			messages = append(messages, m)
		}
	}
	messages = append(messages, Message{Role: RoleUser, Content: question})
	return messages
}
