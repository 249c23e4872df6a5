// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/dstarenko/ideascope/internal/domain"
)

// ErrVersionConflict is returned when an update's expected version no longer
// matches the stored row. The caller should re-read the session and retry
// the whole operation.
var ErrVersionConflict = errors.New("session version conflict")

// ErrNotFound is returned by updates against a session id that does not exist.
// Reads signal a missing row as (nil, nil) instead.
var ErrNotFound = errors.New("session not found")

// Repository defines the interface for persisting users and discovery sessions.
type Repository interface {
	// GetUser retrieves a user by their user ID. Returns (nil, nil) when absent.
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// UpsertUser creates or updates a user record.
	UpsertUser(ctx context.Context, user *domain.User) error

	// UpdateLastSeen updates the last_seen_at timestamp for a user.
	UpdateLastSeen(ctx context.Context, userID string, lastSeen time.Time) error

	// CreateDiscoverySession inserts a new session row at version 1.
	CreateDiscoverySession(ctx context.Context, session *domain.DiscoverySession) error

	// GetDiscoverySession retrieves a session by id. Returns (nil, nil) when absent.
	GetDiscoverySession(ctx context.Context, id string) (*domain.DiscoverySession, error)

	// UpdateDiscoverySession persists the session if the stored row still has
	// session.Version; on success the session's version is bumped. Returns
	// ErrVersionConflict on a stale version and ErrNotFound for a missing row.
	UpdateDiscoverySession(ctx context.Context, session *domain.DiscoverySession) error

	// ListDiscoverySessionsByOwner returns the owner's sessions, newest first.
	ListDiscoverySessionsByOwner(ctx context.Context, ownerID string, limit int) ([]*domain.DiscoverySession, error)

	// SkipStaleActiveSessions marks active sessions idle past the TTL as
	// skipped and returns the number of sessions affected.
	SkipStaleActiveSessions(ctx context.Context, ttl time.Duration) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
