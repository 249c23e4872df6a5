package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dstarenko/ideascope/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db        *sql.DB
	sessionMu sync.Mutex // Serializes session writes to prevent SQLITE_BUSY
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
	CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		last_seen_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS discovery_sessions (
		id TEXT PRIMARY KEY,
		owner_id TEXT NOT NULL,
		idea_id TEXT,
		messages_json TEXT NOT NULL,
		current_phase TEXT NOT NULL,
		tldr_json TEXT,
		founder_fit_json TEXT,
		refined_prompt_json TEXT,
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		completed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_discovery_sessions_owner ON discovery_sessions(owner_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_discovery_sessions_status ON discovery_sessions(status, updated_at);
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

// GetUser retrieves a user by their user ID.
func (s *SQLiteStore) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	query := `
		SELECT user_id, username, last_seen_at, created_at, updated_at
		FROM users WHERE user_id = ?`

	row := s.db.QueryRowContext(ctx, query, userID)

	var user domain.User
	var lastSeen, createdAt, updatedAt int64

	err := row.Scan(&user.UserID, &user.Username, &lastSeen, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user row: %w", err)
	}

	user.LastSeenAt = time.Unix(lastSeen, 0)
	user.CreatedAt = time.Unix(createdAt, 0)
	user.UpdatedAt = time.Unix(updatedAt, 0)

	return &user, nil
}

// UpsertUser creates or updates a user record.
func (s *SQLiteStore) UpsertUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (user_id, username, last_seen_at, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		username = excluded.username,
		last_seen_at = excluded.last_seen_at,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		user.UserID, user.Username,
		user.LastSeenAt.Unix(), user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// UpdateLastSeen updates the last_seen_at timestamp for a user.
func (s *SQLiteStore) UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error {
	query := `UPDATE users SET last_seen_at = ?, updated_at = ? WHERE user_id = ?`
	result, err := s.db.ExecContext(ctx, query, lastSeen.Unix(), time.Now().Unix(), userID)
	if err != nil {
		return fmt.Errorf("update last_seen: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("UpdateLastSeen affected 0 rows", "user_id", userID)
	}

	return nil
}

// CreateDiscoverySession inserts a new session row at version 1.
func (s *SQLiteStore) CreateDiscoverySession(ctx context.Context, session *domain.DiscoverySession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	messagesJSON, tldrJSON, founderFitJSON, refinedPromptJSON, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}

	session.Version = 1

	query := `
	INSERT INTO discovery_sessions (
		id, owner_id, idea_id, messages_json, current_phase,
		tldr_json, founder_fit_json, refined_prompt_json,
		status, version, created_at, updated_at, completed_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		session.ID, session.OwnerID, nullableString(session.IdeaID),
		messagesJSON, string(session.CurrentPhase),
		tldrJSON, founderFitJSON, refinedPromptJSON,
		string(session.Status), session.Version,
		session.CreatedAt.Unix(), session.UpdatedAt.Unix(),
		nullableUnix(session.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert discovery session: %w", err)
	}
	return nil
}

// GetDiscoverySession retrieves a session by id.
func (s *SQLiteStore) GetDiscoverySession(ctx context.Context, id string) (*domain.DiscoverySession, error) {
	query := `
		SELECT id, owner_id, idea_id, messages_json, current_phase,
		       tldr_json, founder_fit_json, refined_prompt_json,
		       status, version, created_at, updated_at, completed_at
		FROM discovery_sessions WHERE id = ?`

	return s.scanSession(s.db.QueryRowContext(ctx, query, id))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanSession(row rowScanner) (*domain.DiscoverySession, error) {
	var session domain.DiscoverySession
	var ideaID, tldrJSON, founderFitJSON, refinedPromptJSON sql.NullString
	var phase, status, messagesJSON string
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64

	err := row.Scan(
		&session.ID, &session.OwnerID, &ideaID, &messagesJSON, &phase,
		&tldrJSON, &founderFitJSON, &refinedPromptJSON,
		&status, &session.Version, &createdAt, &updatedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan discovery session: %w", err)
	}

	session.IdeaID = ideaID.String
	session.CurrentPhase = domain.Phase(phase)
	session.Status = domain.SessionStatus(status)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)
	if completedAt.Valid {
		ts := time.Unix(completedAt.Int64, 0)
		session.CompletedAt = &ts
	}

	if err := json.Unmarshal([]byte(messagesJSON), &session.Messages); err != nil {
		return nil, fmt.Errorf("decode messages for session %s: %w", session.ID, err)
	}
	if tldrJSON.Valid {
		session.TLDR = &domain.SynthesisSummary{}
		if err := json.Unmarshal([]byte(tldrJSON.String), session.TLDR); err != nil {
			return nil, fmt.Errorf("decode tldr for session %s: %w", session.ID, err)
		}
	}
	if founderFitJSON.Valid {
		session.FounderFit = &domain.FounderFit{}
		if err := json.Unmarshal([]byte(founderFitJSON.String), session.FounderFit); err != nil {
			return nil, fmt.Errorf("decode founder fit for session %s: %w", session.ID, err)
		}
	}
	if refinedPromptJSON.Valid {
		session.RefinedPrompt = &domain.ResearchPrompt{}
		if err := json.Unmarshal([]byte(refinedPromptJSON.String), session.RefinedPrompt); err != nil {
			return nil, fmt.Errorf("decode refined prompt for session %s: %w", session.ID, err)
		}
	}

	return &session, nil
}

// UpdateDiscoverySession persists the session under optimistic locking:
// the UPDATE only applies while the stored row still carries
// session.Version, and bumps the version by one.
func (s *SQLiteStore) UpdateDiscoverySession(ctx context.Context, session *domain.DiscoverySession) error {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	messagesJSON, tldrJSON, founderFitJSON, refinedPromptJSON, err := marshalSessionBlobs(session)
	if err != nil {
		return err
	}

	query := `
	UPDATE discovery_sessions SET
		messages_json = ?,
		current_phase = ?,
		tldr_json = ?,
		founder_fit_json = ?,
		refined_prompt_json = ?,
		status = ?,
		version = version + 1,
		updated_at = ?,
		completed_at = ?
	WHERE id = ? AND version = ?`

	result, err := retryOnBusy(ctx, func() (sql.Result, error) {
		return s.db.ExecContext(ctx, query,
			messagesJSON, string(session.CurrentPhase),
			tldrJSON, founderFitJSON, refinedPromptJSON,
			string(session.Status),
			time.Now().Unix(), nullableUnix(session.CompletedAt),
			session.ID, session.Version,
		)
	})
	if err != nil {
		return fmt.Errorf("update discovery session: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM discovery_sessions WHERE id = ?`, session.ID).Scan(&exists)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("check session existence: %w", err)
		}
		return ErrVersionConflict
	}

	session.Version++
	return nil
}

// ListDiscoverySessionsByOwner returns the owner's sessions, newest first.
func (s *SQLiteStore) ListDiscoverySessionsByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.DiscoverySession, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, owner_id, idea_id, messages_json, current_phase,
		       tldr_json, founder_fit_json, refined_prompt_json,
		       status, version, created_at, updated_at, completed_at
		FROM discovery_sessions WHERE owner_id = ?
		ORDER BY created_at DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions by owner: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close session rows", "error", closeErr)
		}
	}()

	var sessions []*domain.DiscoverySession
	for rows.Next() {
		session, err := s.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// SkipStaleActiveSessions marks active sessions idle past the TTL as skipped.
func (s *SQLiteStore) SkipStaleActiveSessions(ctx context.Context, ttl time.Duration) (int64, error) {
	s.sessionMu.Lock()
	defer s.sessionMu.Unlock()

	now := time.Now()
	threshold := now.Add(-ttl).Unix()
	query := `
	UPDATE discovery_sessions SET
		status = ?,
		version = version + 1,
		updated_at = ?,
		completed_at = ?
	WHERE status = ? AND updated_at < ?`

	result, err := s.db.ExecContext(ctx, query,
		string(domain.StatusSkipped), now.Unix(), now.Unix(),
		string(domain.StatusActive), threshold,
	)
	if err != nil {
		return 0, fmt.Errorf("skip stale sessions: %w", err)
	}
	return result.RowsAffected()
}

func marshalSessionBlobs(session *domain.DiscoverySession) (messages string, tldr, founderFit, refinedPrompt any, err error) {
	raw, err := json.Marshal(session.Messages)
	if err != nil {
		return "", nil, nil, nil, fmt.Errorf("encode messages: %w", err)
	}
	messages = string(raw)

	if session.TLDR != nil {
		raw, err := json.Marshal(session.TLDR)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("encode tldr: %w", err)
		}
		tldr = string(raw)
	}
	if session.FounderFit != nil {
		raw, err := json.Marshal(session.FounderFit)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("encode founder fit: %w", err)
		}
		founderFit = string(raw)
	}
	if session.RefinedPrompt != nil {
		raw, err := json.Marshal(session.RefinedPrompt)
		if err != nil {
			return "", nil, nil, nil, fmt.Errorf("encode refined prompt: %w", err)
		}
		refinedPrompt = string(raw)
	}
	return messages, tldr, founderFit, refinedPrompt, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
