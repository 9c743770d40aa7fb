package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const defaultListLimit = 20

// Store wraps a SQLite database holding users, uploads, study sessions and
// quiz results.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "atlas.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// A single connection keeps ":memory:" databases alive and avoids
	// "database is locked" errors.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t.UTC(), nil
}

// stamp fills a missing id and creation time.
func (s *Store) stamp(id *string, createdAt *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if createdAt.IsZero() {
		*createdAt = s.now()
	}
	*createdAt = createdAt.UTC().Truncate(time.Millisecond)
}

func affectedOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Users ---

// UpsertUser creates the user or refreshes a non-empty email.
func (s *Store) UpsertUser(ctx context.Context, u User) error {
	if u.ID == "" {
		return errors.New("user id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET email = CASE WHEN excluded.email <> '' THEN excluded.email ELSE users.email END`,
		u.ID, u.Email, formatTime(s.now()),
	)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, email, created_at FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	u.CreatedAt, err = parseTime(createdAt)
	return u, err
}

// --- Uploads ---

func (s *Store) CreateUpload(ctx context.Context, u Upload) (Upload, error) {
	s.stamp(&u.ID, &u.CreatedAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO uploads (id, user_id, file_url, file_name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.UserID, u.FileURL, u.FileName, formatTime(u.CreatedAt),
	)
	if err != nil {
		return Upload{}, err
	}
	return u, nil
}

func (s *Store) GetUpload(ctx context.Context, userID, id string) (Upload, error) {
	var u Upload
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, file_url, file_name, created_at
		FROM uploads WHERE id = ? AND user_id = ?`, id, userID,
	).Scan(&u.ID, &u.UserID, &u.FileURL, &u.FileName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Upload{}, ErrNotFound
	}
	if err != nil {
		return Upload{}, err
	}
	u.CreatedAt, err = parseTime(createdAt)
	return u, err
}

// ListUploads returns a user's uploads, newest first.
func (s *Store) ListUploads(ctx context.Context, userID string) ([]Upload, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, file_url, file_name, created_at
		FROM uploads WHERE user_id = ? ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Upload{}
	for rows.Next() {
		var u Upload
		var createdAt string
		if err := rows.Scan(&u.ID, &u.UserID, &u.FileURL, &u.FileName, &createdAt); err != nil {
			return nil, err
		}
		if u.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, u)
	}
	return results, rows.Err()
}

func (s *Store) DeleteUpload(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM uploads WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// --- Study sessions ---

const sessionColumns = `id, user_id, title, content_type, result_data, duration_minutes, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(r rowScanner) (Session, error) {
	var (
		sess      Session
		data      string
		duration  sql.NullInt64
		createdAt string
	)
	if err := r.Scan(&sess.ID, &sess.UserID, &sess.Title, &sess.ContentType, &data, &duration, &createdAt); err != nil {
		return Session{}, err
	}
	sess.ResultData = []byte(data)
	if duration.Valid {
		d := int(duration.Int64)
		sess.DurationMinutes = &d
	}
	var err error
	sess.CreatedAt, err = parseTime(createdAt)
	return sess, err
}

func (s *Store) CreateSession(ctx context.Context, sess Session) (Session, error) {
	s.stamp(&sess.ID, &sess.CreatedAt)
	if len(sess.ResultData) == 0 {
		sess.ResultData = []byte("{}")
	}
	var duration any
	if sess.DurationMinutes != nil {
		duration = *sess.DurationMinutes
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO study_sessions (`+sessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, sess.Title, sess.ContentType, string(sess.ResultData), duration, formatTime(sess.CreatedAt),
	)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, userID, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = ? AND user_id = ?`, id, userID)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

// ListSessions returns a user's sessions, newest first.
func (s *Store) ListSessions(ctx context.Context, userID string, f SessionFilter) ([]Session, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query := `SELECT ` + sessionColumns + ` FROM study_sessions WHERE user_id = ?`
	args := []any{userID}
	if f.ContentType != "" {
		query += ` AND content_type = ?`
		args = append(args, f.ContentType)
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, max(f.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sess)
	}
	return results, rows.Err()
}

func (s *Store) DeleteSession(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM study_sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

func (s *Store) UpdateSessionDuration(ctx context.Context, userID, id string, minutes int) error {
	res, err := s.db.ExecContext(ctx, `UPDATE study_sessions SET duration_minutes = ? WHERE id = ? AND user_id = ?`, minutes, id, userID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// CountSessions counts a user's sessions created in [from, to). A zero bound
// is open.
func (s *Store) CountSessions(ctx context.Context, userID string, from, to time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM study_sessions WHERE user_id = ?`
	args := []any{userID}
	if !from.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, formatTime(to))
	}
	var n int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

// SessionTimes returns creation times of a user's sessions at or after since,
// oldest first. A zero since returns every session.
func (s *Store) SessionTimes(ctx context.Context, userID string, since time.Time) ([]time.Time, error) {
	query := `SELECT created_at FROM study_sessions WHERE user_id = ?`
	args := []any{userID}
	if !since.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, formatTime(since))
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// --- Quiz history ---

func (s *Store) CreateQuizResult(ctx context.Context, q QuizResult) (QuizResult, error) {
	s.stamp(&q.ID, &q.CreatedAt)
	var sessionID any
	if q.SessionID != "" {
		sessionID = q.SessionID
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO quiz_history (id, user_id, session_id, score, total_questions, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		q.ID, q.UserID, sessionID, q.Score, q.TotalQuestions, formatTime(q.CreatedAt),
	)
	if err != nil {
		return QuizResult{}, err
	}
	return q, nil
}

// ListQuizResults returns a user's most recent quiz scores, newest first.
func (s *Store) ListQuizResults(ctx context.Context, userID string, limit int) ([]QuizResult, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, COALESCE(session_id, ''), score, total_questions, created_at
		FROM quiz_history WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []QuizResult{}
	for rows.Next() {
		var q QuizResult
		var createdAt string
		if err := rows.Scan(&q.ID, &q.UserID, &q.SessionID, &q.Score, &q.TotalQuestions, &createdAt); err != nil {
			return nil, err
		}
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		results = append(results, q)
	}
	return results, rows.Err()
}
