package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/atlasstudy/atlas/internal/analytics"
	"github.com/atlasstudy/atlas/internal/auth"
	"github.com/atlasstudy/atlas/internal/config"
	"github.com/atlasstudy/atlas/internal/extract"
	"github.com/atlasstudy/atlas/internal/logger"
	"github.com/atlasstudy/atlas/internal/storage"
)

// --- extract ---

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Print the text Atlas would extract from a local document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading file: %w", err)
		}

		format, ok := extract.Detect(filepath.Base(path), "")
		if !ok {
			return fmt.Errorf("unsupported file type %q: want .pdf, .txt, .md or .docx", filepath.Ext(path))
		}

		text, err := extract.New(logger.Nop()).Extract(cmd.Context(), data, format)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), text)
		printSuccess("Extracted %d characters from %s (%s)", len([]rune(text)), filepath.Base(path), format)
		return nil
	},
}

// --- stats ---

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show a user's study streak and weekly activity from the local database",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := config.LoadLocal()
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage.DataDir)
		if err != nil {
			return fmt.Errorf("opening storage: %w", err)
		}
		defer store.Close()

		u, err := store.GetUser(cmd.Context(), user)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no study history for user %q", user)
		}
		if err != nil {
			return err
		}

		d, err := analytics.BuildDashboard(cmd.Context(), store, user, time.Now().UTC())
		if err != nil {
			return err
		}
		if u.Email != "" {
			printStatus("User", "%s <%s>", u.ID, u.Email)
		} else {
			printStatus("User", "%s", u.ID)
		}
		printDashboard(d)
		return nil
	},
}

func printDashboard(d analytics.Dashboard) {
	printStatus("Total sessions", "%d", d.TotalSessions)
	printStatus("This week", "%d", d.SessionsThisWeek)
	printStatus("Last week", "%d", d.SessionsLastWeek)
	printStatus("Current streak", "%s", plural(d.CurrentStreak, "day"))
	printStatus("Longest streak", "%s", plural(d.LongestStreak, "day"))
	for _, p := range d.WeeklyChart {
		printStatus("  "+p.Day, "%s", bar(p.Sessions))
	}
	fmt.Fprintln(stderr)
	fmt.Fprintln(stderr, "  "+d.Insight)
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}

func bar(n int) string {
	return fmt.Sprintf("%-10s %d", strings.Repeat("#", n), n)
}

func init() {
	statsCmd.Flags().String("user", "", "user ID")
}

// --- token ---

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a signed access token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		email, _ := cmd.Flags().GetString("email")
		ttl, _ := cmd.Flags().GetDuration("ttl")
		if user == "" {
			return fmt.Errorf("--user is required")
		}

		cfg, err := config.LoadLocal()
		if err != nil {
			return err
		}
		v, err := auth.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("%w (set ATLAS_AUTH_JWT_SECRET)", err)
		}
		tok, err := v.Issue(auth.Identity{UserID: user, Email: email}, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("user", "", "user ID (token subject)")
	tokenCmd.Flags().String("email", "", "email claim")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
}

// --- sessions ---

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse study history on a running server",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent study sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		kind, _ := cmd.Flags().GetString("type")

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		sessions, err := listSessions(cmd.Context(), client, limit, kind)
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			printWarning("No study sessions yet")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTYPE\tCREATED\tTITLE")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.ID, s.ContentType, s.CreatedAt.Local().Format("2006-01-02 15:04"), truncate(s.Title, 48))
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.get(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var sess storage.Session
		if err := decodeJSON(resp, &sess); err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), sess)
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/api/sessions/"+url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		var result map[string]any
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Deleted session %s", args[0])
		return nil
	},
}

func listSessions(ctx context.Context, client *apiClient, limit int, kind string) ([]storage.Session, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if kind != "" {
		q.Set("type", kind)
	}
	resp, err := client.get(ctx, "/api/sessions?"+q.Encode())
	if err != nil {
		return nil, err
	}
	var sessions []storage.Session
	if err := decodeJSON(resp, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func init() {
	sessionsListCmd.Flags().Int("limit", 20, "maximum number of sessions")
	sessionsListCmd.Flags().String("type", "", "filter by type (summary, quiz, flashcards, study_plan, exam_analysis, revision)")
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
}

// --- ask ---

var askRoutes = map[string]string{
	"summary":       "summarize",
	"quiz":          "quiz",
	"flashcards":    "flashcards",
	"study_plan":    "study-plan",
	"exam_analysis": "exam-analysis",
	"revision":      "revision",
}

var askCmd = &cobra.Command{
	Use:   "ask <feature>",
	Short: "Run a study feature on a running server",
	Long: `Run a study feature on a running server and print the JSON result.

Examples:
  atlas ask summary --file ./notes.txt
  atlas ask quiz --text "Mitosis has four phases..." --count 5
  atlas ask flashcards --file-url u1/1729000000000_notes.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		route, ok := askRoutes[args[0]]
		if !ok {
			return fmt.Errorf("unknown feature %q", args[0])
		}
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		fileURL, _ := cmd.Flags().GetString("file-url")
		count, _ := cmd.Flags().GetInt("count")

		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}
		if text == "" && fileURL == "" {
			return fmt.Errorf("one of --text, --file or --file-url is required")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		printStep("Running %s", args[0])
		resp, err := client.post(cmd.Context(), "/api/ai/"+route, map[string]any{
			"content": text,
			"fileUrl": fileURL,
			"count":   count,
		})
		if err != nil {
			return err
		}
		var result json.RawMessage
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	askCmd.Flags().String("text", "", "study material to send")
	askCmd.Flags().String("file", "", "local text file to send as material")
	askCmd.Flags().String("file-url", "", "public URL or storage path of an uploaded file")
	askCmd.Flags().Int("count", 0, "number of quiz questions or flashcards")
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadLocal()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		for _, k := range config.ShowAll(cfg) {
			env := k.EnvVar
			if k.Secret {
				env += ", env only"
			}
			fmt.Fprintf(w, "  %s\t%s\t(%s)\n", k.Key, k.Value, env)
		}
		return w.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value in the config file. Secrets are only read from the environment.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return fmt.Errorf("%w (valid keys: %v)", err, config.ValidKeys())
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a configuration value so the default applies",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return fmt.Errorf("%w (valid keys: %v)", err, config.ValidKeys())
		}

		printSuccess("Unset %s", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
}
