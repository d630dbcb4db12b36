package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/tripcraft/tripcraft/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // serializes chat session read-modify-write to prevent SQLITE_BUSY
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS itineraries (
		id TEXT PRIMARY KEY,
		user_id TEXT,
		destination TEXT,
		interests TEXT,
		dates TEXT,
		content_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS itinerary_edits (
		change_id TEXT PRIMARY KEY,
		itinerary_id TEXT NOT NULL,
		user_id TEXT,
		intent TEXT NOT NULL,
		command_json TEXT NOT NULL,
		before_json TEXT NOT NULL,
		after_json TEXT NOT NULL,
		confidence REAL NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		reverted_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_edits_itinerary ON itinerary_edits(itinerary_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		itinerary_id TEXT NOT NULL,
		user_id TEXT,
		messages_json TEXT NOT NULL,
		last_message_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_itinerary ON chat_sessions(itinerary_id, created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// CreateItinerary inserts a new itinerary row.
func (s *SQLiteStore) CreateItinerary(ctx context.Context, rec *domain.ItineraryRecord) error {
	content, err := marshalContent(rec.Content)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO itineraries (id, user_id, destination, interests, dates, content_json, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, nullable(rec.UserID), nullable(rec.Destination),
		nullable(rec.Interests), nullable(rec.Dates), content,
		rec.CreatedAt.Unix(), rec.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert itinerary: %w", err)
	}
	return nil
}

// GetItinerary retrieves an itinerary by id.
func (s *SQLiteStore) GetItinerary(ctx context.Context, id string) (*domain.ItineraryRecord, error) {
	query := `
		SELECT id, user_id, destination, interests, dates, content_json, created_at, updated_at
		FROM itineraries WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var rec domain.ItineraryRecord
	var userID, destination, interests, dates sql.NullString
	var contentJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&rec.ID, &userID, &destination, &interests, &dates, &contentJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan itinerary row: %w", err)
	}

	rec.UserID = userID.String
	rec.Destination = destination.String
	rec.Interests = interests.String
	rec.Dates = dates.String
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	content := domain.NewItinerary()
	if err := json.Unmarshal([]byte(contentJSON), content); err != nil {
		return nil, fmt.Errorf("decode itinerary content: %w", err)
	}
	rec.Content = content

	return &rec, nil
}

// PutItinerary persists the document content and metadata of an existing row.
func (s *SQLiteStore) PutItinerary(ctx context.Context, rec *domain.ItineraryRecord) error {
	content, err := marshalContent(rec.Content)
	if err != nil {
		return err
	}

	query := `UPDATE itineraries SET destination = ?, interests = ?, dates = ?, content_json = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query,
		nullable(rec.Destination), nullable(rec.Interests), nullable(rec.Dates),
		content, rec.UpdatedAt.Unix(), rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update itinerary: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("itinerary %s not found", rec.ID)
	}
	return nil
}

// PutEditRecord inserts one ledger entry.
func (s *SQLiteStore) PutEditRecord(ctx context.Context, rec *domain.EditRecord) error {
	command, err := json.Marshal(rec.Command)
	if err != nil {
		return fmt.Errorf("encode edit command: %w", err)
	}
	before, err := marshalContent(rec.BeforeSnapshot)
	if err != nil {
		return err
	}
	after, err := marshalContent(rec.AfterSnapshot)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO itinerary_edits (
		change_id, itinerary_id, user_id, intent, command_json,
		before_json, after_json, confidence, status, created_at, reverted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var revertedAt any
	if rec.RevertedAt != nil {
		revertedAt = rec.RevertedAt.Unix()
	}

	_, err = s.db.ExecContext(ctx, query,
		rec.ChangeID, rec.ItineraryID, nullable(rec.UserID), rec.Intent, string(command),
		before, after, rec.Confidence, string(rec.Status), rec.CreatedAt.Unix(), revertedAt,
	)
	if err != nil {
		return fmt.Errorf("insert edit record: %w", err)
	}
	return nil
}

// GetEditRecord retrieves a ledger entry by change id.
func (s *SQLiteStore) GetEditRecord(ctx context.Context, changeID string) (*domain.EditRecord, error) {
	query := `
		SELECT change_id, itinerary_id, user_id, intent, command_json,
		       before_json, after_json, confidence, status, created_at, reverted_at
		FROM itinerary_edits WHERE change_id = ?`

	rec, err := scanEditRecord(s.db.QueryRowContext(ctx, query, changeID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan edit record: %w", err)
	}
	return rec, nil
}

// UpdateEditStatus flips a ledger entry's status. The WHERE clause excludes
// rows already in the target status so a lost revert race surfaces as
// ErrStatusConflict instead of silently succeeding.
func (s *SQLiteStore) UpdateEditStatus(ctx context.Context, changeID string, status domain.EditStatus, revertedAt time.Time) error {
	query := `UPDATE itinerary_edits SET status = ?, reverted_at = ? WHERE change_id = ? AND status != ?`
	result, err := s.db.ExecContext(ctx, query, string(status), revertedAt.Unix(), changeID, string(status))
	if err != nil {
		return fmt.Errorf("update edit status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateEditStatus affected 0 rows", "change_id", changeID, "status", status)
		return fmt.Errorf("%w: %s", ErrStatusConflict, changeID)
	}
	return nil
}

// ListEditRecords returns the most recent ledger entries for an itinerary.
func (s *SQLiteStore) ListEditRecords(ctx context.Context, itineraryID string, limit int) ([]*domain.EditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT change_id, itinerary_id, user_id, intent, command_json,
		       before_json, after_json, confidence, status, created_at, reverted_at
		FROM itinerary_edits WHERE itinerary_id = ?
		ORDER BY created_at DESC, change_id DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, itineraryID, limit)
	if err != nil {
		return nil, fmt.Errorf("query edit records: %w", err)
	}
	defer rows.Close()

	var records []*domain.EditRecord
	for rows.Next() {
		rec, err := scanEditRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan edit record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edit records: %w", err)
	}
	return records, nil
}

// LatestChatSession returns the most recently created session for an
// itinerary.
func (s *SQLiteStore) LatestChatSession(ctx context.Context, itineraryID string) (*domain.ChatSession, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	query := `
		SELECT id, itinerary_id, user_id, messages_json, last_message_at, created_at
		FROM chat_sessions WHERE itinerary_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, itineraryID)

	var session domain.ChatSession
	var userID sql.NullString
	var messagesJSON string
	var lastMessageAt, createdAt int64

	err := row.Scan(&session.ID, &session.ItineraryID, &userID, &messagesJSON, &lastMessageAt, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chat session: %w", err)
	}

	session.UserID = userID.String
	session.LastMessageAt = time.Unix(lastMessageAt, 0)
	session.CreatedAt = time.Unix(createdAt, 0)
	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("decode session messages: %w", err)
	}

	return &session, nil
}

// PutChatSession creates or updates a chat session transcript. Retries with
// exponential backoff on SQLite concurrency errors.
func (s *SQLiteStore) PutChatSession(ctx context.Context, session *domain.ChatSession) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := s.putChatSessionOnce(ctx, session)
		if err == nil {
			return nil
		}

		if isSQLiteConflict(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("PutChatSession hit a busy database, retrying",
				"session_id", session.ID, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}
		return fmt.Errorf("put chat session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SQLiteStore) putChatSessionOnce(ctx context.Context, session *domain.ChatSession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	messages, err := json.Marshal(session.Messages)
	if err != nil {
		return fmt.Errorf("encode session messages: %w", err)
	}

	query := `
	INSERT INTO chat_sessions (id, itinerary_id, user_id, messages_json, last_message_at, created_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		messages_json = excluded.messages_json,
		last_message_at = excluded.last_message_at`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.ItineraryID, nullable(session.UserID),
		string(messages), session.LastMessageAt.Unix(), session.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert chat session: %w", err)
	}
	return nil
}

// CleanupStaleSessions removes chat sessions idle longer than ttl.
func (s *SQLiteStore) CleanupStaleSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	result, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE last_message_at < ?`, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup stale sessions: %w", err)
	}
	return result.RowsAffected()
}

// scanner covers *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEditRecord(row scanner) (*domain.EditRecord, error) {
	var rec domain.EditRecord
	var userID sql.NullString
	var commandJSON, beforeJSON, afterJSON, status string
	var createdAt int64
	var revertedAt sql.NullInt64

	err := row.Scan(
		&rec.ChangeID, &rec.ItineraryID, &userID, &rec.Intent, &commandJSON,
		&beforeJSON, &afterJSON, &rec.Confidence, &status, &createdAt, &revertedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.UserID = userID.String
	rec.Status = domain.EditStatus(status)
	rec.CreatedAt = time.Unix(createdAt, 0)
	if revertedAt.Valid {
		ts := time.Unix(revertedAt.Int64, 0)
		rec.RevertedAt = &ts
	}

	if err := json.Unmarshal([]byte(commandJSON), &rec.Command); err != nil {
		return nil, fmt.Errorf("decode edit command: %w", err)
	}
	before := domain.NewItinerary()
	if err := json.Unmarshal([]byte(beforeJSON), before); err != nil {
		return nil, fmt.Errorf("decode before snapshot: %w", err)
	}
	after := domain.NewItinerary()
	if err := json.Unmarshal([]byte(afterJSON), after); err != nil {
		return nil, fmt.Errorf("decode after snapshot: %w", err)
	}
	rec.BeforeSnapshot = before
	rec.AfterSnapshot = after

	return &rec, nil
}

func marshalContent(it *domain.Itinerary) (string, error) {
	if it == nil {
		it = domain.NewItinerary()
	}
	data, err := json.Marshal(it)
	if err != nil {
		return "", fmt.Errorf("encode itinerary content: %w", err)
	}
	return string(data), nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// isSQLiteConflict reports SQLite concurrency errors that warrant a retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
