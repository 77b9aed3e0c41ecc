package citadelcbt

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// DB represents a quiz database connection
type DB struct {
	db *sql.DB
}

// OpenDB opens a new database connection
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// SQLite allows a single writer; serialise through one connection
	db.SetMaxOpenConns(1)

	return &DB{db: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS quizzes (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			subject TEXT NOT NULL,
			level TEXT NOT NULL,
			department TEXT NOT NULL DEFAULT '',
			topic TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			id TEXT NOT NULL,
			quiz_id TEXT NOT NULL,
			question_num INTEGER NOT NULL,
			text TEXT NOT NULL,
			options TEXT NOT NULL,
			correct_answer INTEGER NOT NULL,
			explanation TEXT,
			PRIMARY KEY (quiz_id, question_num),
			FOREIGN KEY (quiz_id) REFERENCES quizzes(id)
		)`,
		`CREATE TABLE IF NOT EXISTS admins (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE COLLATE NOCASE,
			name TEXT NOT NULL,
			added_by TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY COLLATE NOCASE,
			display_name TEXT NOT NULL,
			password_hash TEXT NOT NULL DEFAULT '',
			provider TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// SaveQuiz stores a quiz with its questions and returns the assigned ID
func (db *DB) SaveQuiz(ctx context.Context, quiz *Quiz) (string, error) {
	id := uuid.NewString()
	if quiz.CreatedAt.IsZero() {
		quiz.CreatedAt = time.Now()
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO quizzes (id, title, subject, level, department, topic, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		id, quiz.Title, quiz.Subject, string(quiz.Level), string(quiz.Department), quiz.Topic, quiz.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create quiz: %w", err)
	}

	for i, q := range quiz.Questions {
		optionsJSON, err := OptionsToJSON(q.Options)
		if err != nil {
			return "", err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO questions (id, quiz_id, question_num, text, options, correct_answer, explanation) VALUES (?, ?, ?, ?, ?, ?, ?)",
			q.ID, id, i+1, q.Text, optionsJSON, q.CorrectAnswer, q.Explanation,
		)
		if err != nil {
			return "", fmt.Errorf("failed to create question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit quiz: %w", err)
	}
	quiz.ID = id
	return id, nil
}

// GetQuiz retrieves a quiz with its questions by ID
func (db *DB) GetQuiz(ctx context.Context, id string) (*Quiz, error) {
	row := db.db.QueryRowContext(ctx,
		"SELECT id, title, subject, level, department, topic, created_at FROM quizzes WHERE id = ?",
		id,
	)
	quiz, err := scanQuiz(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("quiz %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get quiz: %w", err)
	}

	questions, err := db.questionsByQuiz(ctx, "WHERE quiz_id = ?", id)
	if err != nil {
		return nil, err
	}
	quiz.Questions = questions[id]
	if quiz.Questions == nil {
		quiz.Questions = []Question{}
	}
	return &quiz, nil
}

// ListQuizzes retrieves all quizzes, newest first
func (db *DB) ListQuizzes(ctx context.Context) ([]Quiz, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT id, title, subject, level, department, topic, created_at FROM quizzes ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get quizzes: %w", err)
	}
	defer rows.Close()

	quizzes := []Quiz{}
	for rows.Next() {
		quiz, err := scanQuiz(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quiz: %w", err)
		}
		quizzes = append(quizzes, quiz)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating quizzes: %w", err)
	}

	questions, err := db.questionsByQuiz(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range quizzes {
		quizzes[i].Questions = questions[quizzes[i].ID]
		if quizzes[i].Questions == nil {
			quizzes[i].Questions = []Question{}
		}
	}
	return quizzes, nil
}

// DeleteQuiz removes a quiz and all of its questions
func (db *DB) DeleteQuiz(ctx context.Context, id string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM questions WHERE quiz_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete questions: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM quizzes WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete quiz: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("quiz %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (Quiz, error) {
	var (
		quiz       Quiz
		level      string
		department string
		createdAt  int64
	)
	if err := row.Scan(&quiz.ID, &quiz.Title, &quiz.Subject, &level, &department, &quiz.Topic, &createdAt); err != nil {
		return Quiz{}, err
	}
	quiz.Level = Level(level)
	quiz.Department = Department(department)
	quiz.CreatedAt = time.Unix(0, createdAt)
	return quiz, nil
}

func (db *DB) questionsByQuiz(ctx context.Context, where string, args ...any) (map[string][]Question, error) {
	query := "SELECT id, quiz_id, text, options, correct_answer, explanation FROM questions " + where + " ORDER BY quiz_id, question_num"
	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	questions := make(map[string][]Question)
	for rows.Next() {
		var (
			q           Question
			quizID      string
			optionsJSON string
			explanation sql.NullString
		)
		if err := rows.Scan(&q.ID, &quizID, &q.Text, &optionsJSON, &q.CorrectAnswer, &explanation); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		q.Explanation = explanation.String
		if q.Options, err = JSONToOptions(optionsJSON); err != nil {
			return nil, err
		}
		questions[quizID] = append(questions[quizID], q)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// SaveAdmin adds an administrator to the registry
func (db *DB) SaveAdmin(ctx context.Context, admin *AdminUser) (string, error) {
	id := uuid.NewString()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = time.Now()
	}
	_, err := db.db.ExecContext(ctx,
		"INSERT INTO admins (id, username, name, added_by, created_at) VALUES (?, ?, ?, ?, ?)",
		id, admin.Username, admin.Name, admin.AddedBy, admin.CreatedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create admin: %w", err)
	}
	admin.ID = id
	return id, nil
}

// ListAdmins returns the registry, newest first
func (db *DB) ListAdmins(ctx context.Context) ([]AdminUser, error) {
	rows, err := db.db.QueryContext(ctx,
		"SELECT id, username, name, added_by, created_at FROM admins ORDER BY created_at DESC, rowid DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get admins: %w", err)
	}
	defer rows.Close()

	admins := []AdminUser{}
	for rows.Next() {
		admin, err := scanAdmin(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan admin: %w", err)
		}
		admins = append(admins, admin)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating admins: %w", err)
	}
	return admins, nil
}

// FindAdmin looks up a registry entry by username, ignoring case
func (db *DB) FindAdmin(ctx context.Context, username string) (*AdminUser, error) {
	row := db.db.QueryRowContext(ctx,
		"SELECT id, username, name, added_by, created_at FROM admins WHERE username = ? COLLATE NOCASE",
		strings.TrimSpace(username),
	)
	admin, err := scanAdmin(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("admin %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	return &admin, nil
}

// DeleteAdmin removes a registry entry
func (db *DB) DeleteAdmin(ctx context.Context, id string) error {
	res, err := db.db.ExecContext(ctx, "DELETE FROM admins WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete admin: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("admin %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanAdmin(row rowScanner) (AdminUser, error) {
	var (
		admin     AdminUser
		createdAt int64
	)
	if err := row.Scan(&admin.ID, &admin.Username, &admin.Name, &admin.AddedBy, &createdAt); err != nil {
		return AdminUser{}, err
	}
	admin.CreatedAt = time.Unix(0, createdAt)
	return admin, nil
}

// Helper function to convert options slice to JSON string
func OptionsToJSON(options []string) (string, error) {
	data, err := json.Marshal(options)
	if err != nil {
		return "", fmt.Errorf("failed to marshal options: %w", err)
	}
	return string(data), nil
}

// Helper function to convert JSON string to options slice
func JSONToOptions(optionsJSON string) ([]string, error) {
	var options []string
	err := json.Unmarshal([]byte(optionsJSON), &options)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal options: %w", err)
	}
	return options, nil
}
