package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/local-insights/backend/pkg/logger"
)

// ErrNotFound is returned when an id-based lookup does not resolve under the
// tenant filter. A row that exists but belongs to another tenant produces the
// same error; callers cannot distinguish the two cases.
var ErrNotFound = errors.New("record not found")

type Client struct {
	db  *sql.DB
	rnd *rand.Rand
	now func() time.Time
}

func NewClient(dbPath string) (*Client, error) {
	// DSN parameters apply to every pooled connection, unlike a PRAGMA
	// issued over db.Exec.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection sidesteps SQLITE_BUSY on concurrent writes and
	// keeps an in-memory database from fragmenting across the pool.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{
		db:  db,
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		now: time.Now,
	}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

// SetRand replaces the random source used for due-set tiebreaks and quiz
// sampling. Tests inject a fixed seed here.
func (c *Client) SetRand(rnd *rand.Rand) {
	c.rnd = rnd
}

// SetClock replaces the wall clock. Tests use this to simulate elapsed days.
func (c *Client) SetClock(now func() time.Time) {
	c.now = now
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		salt TEXT NOT NULL,
		name TEXT,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		last_login_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		filename TEXT NOT NULL,
		content TEXT,
		doc_type TEXT,
		checksum TEXT,
		upload_date INTEGER NOT NULL,
		is_processed INTEGER DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);
	CREATE INDEX IF NOT EXISTS idx_documents_checksum ON documents(checksum);

	CREATE TABLE IF NOT EXISTS summaries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		document_id INTEGER,
		summary_text TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_summaries_user ON summaries(user_id);

	CREATE TABLE IF NOT EXISTS flashcards (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		document_id INTEGER,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		difficulty TEXT DEFAULT 'medium',
		times_reviewed INTEGER DEFAULT 0,
		times_correct INTEGER DEFAULT 0,
		last_reviewed INTEGER,
		next_review INTEGER,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_flashcards_user ON flashcards(user_id);
	CREATE INDEX IF NOT EXISTS idx_flashcards_next_review ON flashcards(user_id, next_review);

	CREATE TABLE IF NOT EXISTS quiz_questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		document_id INTEGER,
		question_type TEXT,
		question_text TEXT NOT NULL,
		options TEXT,
		correct_answer TEXT NOT NULL,
		explanation TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_quiz_user ON quiz_questions(user_id);

	CREATE TABLE IF NOT EXISTS learning_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		flashcard_id INTEGER,
		quiz_question_id INTEGER,
		result TEXT NOT NULL,
		review_date INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (flashcard_id) REFERENCES flashcards(id) ON DELETE CASCADE,
		FOREIGN KEY (quiz_question_id) REFERENCES quiz_questions(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_history_user ON learning_history(user_id);
	CREATE INDEX IF NOT EXISTS idx_history_review_date ON learning_history(user_id, review_date);

	CREATE TABLE IF NOT EXISTS conversations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		title TEXT DEFAULT 'New conversation',
		model_name TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_user ON conversations(user_id);

	CREATE TABLE IF NOT EXISTS messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		role TEXT NOT NULL CHECK(role IN ('user', 'assistant', 'system')),
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conv ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_user ON messages(user_id);

	CREATE TABLE IF NOT EXISTS memory_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		confidence REAL DEFAULT 0.5,
		importance REAL DEFAULT 0.5,
		source_message_id INTEGER,
		is_active INTEGER DEFAULT 1,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(user_id, category, key),
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE,
		FOREIGN KEY (source_message_id) REFERENCES messages(id) ON DELETE SET NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_user ON memory_items(user_id);

	CREATE TABLE IF NOT EXISTS user_profile_summary (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE,
		summary_text TEXT NOT NULL,
		last_updated INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS user_preferences (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL UNIQUE,
		memory_enabled INTEGER DEFAULT 1,
		last_updated INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS memory_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		event_type TEXT NOT NULL,
		content TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_memory_events_user ON memory_events(user_id);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func timeFromUnix(v int64) time.Time {
	return time.Unix(v, 0)
}

func nullableTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

func nullableInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
