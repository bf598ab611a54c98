package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskmaster/internal/task"
)

// ErrCorruptSnapshot is returned by Load when a persisted row cannot be
// turned back into a task. Callers should start from an empty set.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Backend is the persistence port: one full snapshot in, one full snapshot
// out.
type Backend interface {
	Load() ([]task.Task, error)
	Save(tasks []task.Task) error
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS tasks (
	id TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	due TEXT DEFAULT NULL,
	priority TEXT NOT NULL DEFAULT 'Medium',
	reminder_minutes INTEGER NOT NULL DEFAULT 0,
	completed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);`
	if _, err := s.db.Exec(ddl); err != nil {
		return err
	}
	return s.ensureTaskColumns()
}

// ensureTaskColumns back-fills columns missing from tables created by
// earlier builds.
func (s *Store) ensureTaskColumns() error {
	required := map[string]string{
		"description":      "ALTER TABLE tasks ADD COLUMN description TEXT NOT NULL DEFAULT '';",
		"reminder_minutes": "ALTER TABLE tasks ADD COLUMN reminder_minutes INTEGER NOT NULL DEFAULT 0;",
	}
	existing := map[string]struct{}{}
	rows, err := s.db.Query(`PRAGMA table_info(tasks);`)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return err
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for col, alter := range required {
		if _, ok := existing[col]; ok {
			continue
		}
		if _, err := s.db.Exec(alter); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Load() ([]task.Task, error) {
	rows, err := s.db.Query(`SELECT id, title, description, due, priority, reminder_minutes, completed, created_at FROM tasks ORDER BY position;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []task.Task
	for rows.Next() {
		var t task.Task
		var dueStr sql.NullString
		var priority, createdStr string
		var completed int

		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &dueStr, &priority, &t.ReminderMinutes, &completed, &createdStr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
		}
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%w: task %s has an empty title", ErrCorruptSnapshot, t.ID)
		}
		if t.ReminderMinutes < 0 || t.ReminderMinutes > task.MaxReminderMinutes {
			return nil, fmt.Errorf("%w: task %s has reminder %d out of range", ErrCorruptSnapshot, t.ID, t.ReminderMinutes)
		}
		t.Completed = completed == 1
		if t.Priority, err = task.ParsePriority(priority); err != nil {
			return nil, fmt.Errorf("%w: task %s: %v", ErrCorruptSnapshot, t.ID, err)
		}
		if dueStr.Valid {
			parsed, err := time.Parse(time.RFC3339, dueStr.String)
			if err != nil {
				return nil, fmt.Errorf("%w: task %s due: %v", ErrCorruptSnapshot, t.ID, err)
			}
			t.Due = sql.NullTime{Time: parsed, Valid: true}
		}
		if t.CreatedAt, err = time.Parse(time.RFC3339Nano, createdStr); err != nil {
			return nil, fmt.Errorf("%w: task %s created_at: %v", ErrCorruptSnapshot, t.ID, err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Save replaces the stored snapshot with tasks in a single transaction.
func (s *Store) Save(tasks []task.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tasks;`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (id, position, title, description, due, priority, reminder_minutes, completed, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range tasks {
		dueStr := sql.NullString{}
		if t.Due.Valid {
			dueStr = sql.NullString{String: t.Due.Time.UTC().Format(time.RFC3339), Valid: true}
		}
		done := 0
		if t.Completed {
			done = 1
		}
		_, err := stmt.Exec(t.ID, i, t.Title, t.Description, dueStr, t.Priority.String(), t.ReminderMinutes, done,
			t.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("save task %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
