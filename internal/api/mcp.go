package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/atlasstudy/atlas/internal/analytics"
	"github.com/atlasstudy/atlas/internal/auth"
	"github.com/atlasstudy/atlas/internal/prompt"
	"github.com/atlasstudy/atlas/internal/storage"
	"github.com/atlasstudy/atlas/internal/study"
)

// MCPDeps holds dependencies for the MCP server. Every tool acts as User.
type MCPDeps struct {
	Study *study.Service
	Store *storage.Store
	User  auth.Identity
	Now   func() time.Time
}

func (d MCPDeps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

type mcpFeatureTool struct {
	name        string
	feature     prompt.Feature
	description string
	counted     bool
}

var mcpFeatureTools = []mcpFeatureTool{
	{"summarize", prompt.Summary, "Summarize study material into a summary, key points and topics.", false},
	{"generate_quiz", prompt.Quiz, "Generate multiple choice quiz questions from study material.", true},
	{"generate_flashcards", prompt.Flashcards, "Generate question/answer flashcards from study material.", true},
	{"study_plan", prompt.StudyPlan, "Create a prioritised study plan with time estimates.", false},
	{"exam_analysis", prompt.TopicAnalysis, "Rank the topics in study material or past exam papers by frequency and importance.", false},
	{"revision_guide", prompt.Revision, "Condense study material into a revision guide.", false},
}

// NewMCPServer creates an MCP server exposing the study tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"atlas",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Atlas turns study material into summaries, quizzes, flashcards, study plans, topic analyses and revision guides."),
		server.WithRecovery(),
	)

	for _, ft := range mcpFeatureTools {
		opts := []mcp.ToolOption{
			mcp.WithDescription(ft.description),
			mcp.WithString("content", mcp.Description("Pasted study material (up to 50 000 characters)")),
			mcp.WithString("file_url", mcp.Description("Public URL or storage path of an uploaded file; takes precedence over content")),
		}
		if ft.counted {
			opts = append(opts, mcp.WithNumber("count", mcp.Description("Number of items to generate (max 50)")))
		}
		s.AddTool(mcp.NewTool(ft.name, opts...), mcpFeature(deps, ft.feature))
	}

	s.AddTool(
		mcp.NewTool("ask_tutor",
			mcp.WithDescription("Ask a question, optionally about pasted material or an uploaded file."),
			mcp.WithString("question", mcp.Description("The question to answer"), mcp.Required()),
			mcp.WithString("context", mcp.Description("Optional pasted material")),
			mcp.WithString("file_url", mcp.Description("Optional uploaded file")),
			mcp.WithString("history", mcp.Description("Optional JSON array of earlier {role, content} turns")),
		),
		mcpChat(deps),
	)

	s.AddTool(
		mcp.NewTool("study_streak",
			mcp.WithDescription("Report the current and longest daily study streak plus this week's activity."),
		),
		mcpStreak(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"atlas://sessions/recent",
			"Recent Study Sessions",
			mcp.WithResourceDescription("Last 10 study sessions (titles only)"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpFeature(deps MCPDeps, f prompt.Feature) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		out, err := deps.Study.Run(ctx, deps.User, study.Request{
			Feature: f,
			Content: req.GetString("content", ""),
			FileURL: req.GetString("file_url", ""),
			Count:   req.GetInt("count", 0),
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}

		body, err := withSessionID(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		b, err := json.Marshal(body)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpChat(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return mcpError("question is required"), nil
		}

		var history []prompt.Message
		if raw := req.GetString("history", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &history); err != nil {
				return mcpError(fmt.Sprintf("invalid history JSON: %v", err)), nil
			}
		}

		answer, err := deps.Study.Chat(ctx, study.ChatRequest{
			Question: question,
			Context:  req.GetString("context", ""),
			FileURL:  req.GetString("file_url", ""),
			History:  history,
		})
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(answer), nil
	}
}

func mcpStreak(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d, err := analytics.BuildDashboard(ctx, deps.Store, deps.User.UserID, deps.now())
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load sessions: %v", err)), nil
		}
		b, err := json.Marshal(d)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal dashboard: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessions, err := deps.Store.ListSessions(ctx, deps.User.UserID, storage.SessionFilter{Limit: 10})
		if err != nil {
			return nil, fmt.Errorf("failed to list sessions: %w", err)
		}

		type sessionSummary struct {
			ID          string `json:"id"`
			CreatedAt   string `json:"created_at"`
			ContentType string `json:"content_type"`
			Title       string `json:"title"`
		}

		summaries := make([]sessionSummary, len(sessions))
		for i, s := range sessions {
			title := s.Title
			if utf8.RuneCountInString(title) > 60 {
				runes := []rune(title)
				title = string(runes[:60]) + "..."
			}
			summaries[i] = sessionSummary{
				ID:          s.ID,
				CreatedAt:   s.CreatedAt.Format(time.RFC3339),
				ContentType: s.ContentType,
				Title:       title,
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal sessions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
