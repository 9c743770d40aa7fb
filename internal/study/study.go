// Package study runs the document features end to end: resolve the material,
// build the prompt, call the model, normalize its answer and record the
// session for the user's history.
package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atlasstudy/atlas/internal/auth"
	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/normalize"
	"github.com/atlasstudy/atlas/internal/prompt"
	"github.com/atlasstudy/atlas/internal/resolve"
	"github.com/atlasstudy/atlas/internal/storage"
)

const (
	titleChars           = 80
	originalContentChars = 10_000
)

// ErrNoQuestion is returned by Chat when the question is blank.
var ErrNoQuestion = errors.New("question is required")

// Resolver turns request material into text.
type Resolver interface {
	Resolve(ctx context.Context, req resolve.Request) (resolve.Content, error)
	ResolveChat(ctx context.Context, req resolve.Request) (string, error)
}

// Completer sends one chat completion request.
type Completer interface {
	Complete(ctx context.Context, messages []prompt.Message, temperature float64, maxTokens int) (string, error)
}

// Recorder persists feature sessions.
type Recorder interface {
	UpsertUser(ctx context.Context, u storage.User) error
	CreateSession(ctx context.Context, s storage.Session) (storage.Session, error)
}

// Request is one document feature invocation.
type Request struct {
	Feature prompt.Feature
	Content string
	FileURL string
	// Count is the number of quiz questions or flashcards; zero means default.
	Count int
}

// Outcome is the result of Run. SessionID is empty when the session could
// not be recorded.
type Outcome struct {
	Result    normalize.Result
	SessionID string
	Source    resolve.Source
	Degraded  bool
}

// ChatRequest is one tutoring turn.
type ChatRequest struct {
	Question string
	Context  string
	FileURL  string
	History  []prompt.Message
}

type Service struct {
	resolver   Resolver
	llm        Completer
	normalizer *normalize.Normalizer
	sessions   Recorder
	log        *logger.Logger
}

// New wires a Service. sessions may be nil, in which case nothing is recorded.
func New(resolver Resolver, llm Completer, sessions Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		resolver:   resolver,
		llm:        llm,
		normalizer: normalize.New(log),
		sessions:   sessions,
		log:        log,
	}
}

// Run executes a document feature for user. Resolution and completion
// failures are returned unchanged; a failure to record the session is logged
// and otherwise ignored.
func (s *Service) Run(ctx context.Context, user auth.Identity, req Request) (Outcome, error) {
	if req.Feature == prompt.Chat {
		return Outcome{}, fmt.Errorf("feature %q is not a document feature", req.Feature)
	}

	content, err := s.resolver.Resolve(ctx, resolve.Request{Content: req.Content, FileURL: req.FileURL})
	if err != nil {
		return Outcome{}, err
	}

	messages, err := prompt.Build(req.Feature, content.Text, req.Count)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	raw, err := s.llm.Complete(ctx, messages, prompt.Temperature(req.Feature), prompt.MaxTokens)
	if err != nil {
		s.log.Warn("completion failed", "feature", string(req.Feature), "error", err)
		return Outcome{}, err
	}
	s.log.Debug("completion done", "feature", string(req.Feature), "duration_ms", time.Since(start).Milliseconds(), "chars", len(raw))

	result, degraded := s.normalizer.Normalize(req.Feature, raw)
	out := Outcome{Result: result, Source: content.Source, Degraded: degraded}

	if user.UserID != "" && s.sessions != nil {
		id, err := s.record(ctx, user, req.Feature, content, result)
		if err != nil {
			s.log.Error("failed to record study session", "feature", string(req.Feature), "user", user.UserID, "error", err)
		} else {
			out.SessionID = id
		}
	}
	return out, nil
}

// Chat answers a question, optionally grounded in pasted context and/or a
// stored file. Chat turns are not recorded.
func (s *Service) Chat(ctx context.Context, req ChatRequest) (string, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return "", ErrNoQuestion
	}

	material, err := s.resolver.ResolveChat(ctx, resolve.Request{Content: req.Context, FileURL: req.FileURL})
	if err != nil {
		return "", err
	}

	messages := prompt.BuildChat(material, question, req.History)
	answer, err := s.llm.Complete(ctx, messages, prompt.Temperature(prompt.Chat), prompt.MaxTokens)
	if err != nil {
		s.log.Warn("completion failed", "feature", string(prompt.Chat), "error", err)
		return "", err
	}
	return answer, nil
}

func (s *Service) record(ctx context.Context, user auth.Identity, f prompt.Feature, content resolve.Content, result normalize.Result) (string, error) {
	if err := s.sessions.UpsertUser(ctx, storage.User{ID: user.UserID, Email: user.Email}); err != nil {
		return "", fmt.Errorf("upsert user: %w", err)
	}

	data, err := resultData(f, content, result)
	if err != nil {
		return "", err
	}

	sess, err := s.sessions.CreateSession(ctx, storage.Session{
		UserID:      user.UserID,
		Title:       Title(content.Text, result),
		ContentType: string(f),
		ResultData:  data,
	})
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	return sess.ID, nil
}

// Title names a session. Study plans and revision guides use the model's
// title when it has one; everything else uses the start of the material.
func Title(text string, result normalize.Result) string {
	switch r := result.(type) {
	case *normalize.StudyPlan:
		if t := strings.TrimSpace(r.Title); t != "" {
			return t
		}
	case *normalize.Revision:
		if t := strings.TrimSpace(r.RevisionTitle); t != "" {
			return t
		}
	}
	return prefix(strings.TrimSpace(text), titleChars)
}

// resultData is the stored document: the feature result plus a reference to
// its source. File sessions keep the URL, text sessions keep the leading part
// of the pasted text. Summaries always keep the text.
func resultData(f prompt.Feature, content resolve.Content, result normalize.Result) (json.RawMessage, error) {
	b, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal result: %w", err)
	}

	fromFile := content.Source == resolve.SourceFile && content.FileURL != ""
	if f == prompt.Summary || !fromFile {
		doc["original_content"], err = json.Marshal(prefix(strings.TrimSpace(content.Text), originalContentChars))
		if err != nil {
			return nil, err
		}
	}
	if fromFile {
		doc["file_url"], err = json.Marshal(content.FileURL)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(doc)
}

func prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
