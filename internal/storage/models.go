package storage

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist or belongs
// to another user.
var ErrNotFound = errors.New("not found")

type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

type Upload struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FileURL   string    `json:"file_url"`
	FileName  string    `json:"file_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a persisted feature result. ResultData is the JSON document
// returned to the client, plus the source reference.
type Session struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	Title           string          `json:"title"`
	ContentType     string          `json:"content_type"`
	ResultData      json.RawMessage `json:"result_data"`
	DurationMinutes *int            `json:"duration_minutes"`
	CreatedAt       time.Time       `json:"created_at"`
}

// SessionFilter narrows ListSessions. Zero values mean no constraint; Limit
// defaults to 20.
type SessionFilter struct {
	ContentType string
	Limit       int
	Offset      int
}

type QuizResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	SessionID      string    `json:"session_id,omitempty"`
	Score          int       `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	CreatedAt      time.Time `json:"created_at"`
}
