package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"learnify/internal/models"
	"learnify/internal/services"
)

// ErrSessionNotFound is returned for lookups, deletes and updates against an
// unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists study sessions in SQLite. The generated material and
// the progress record are stored as JSON columns; only progress ever changes
// after creation.
type SessionStore struct {
	db *sql.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewSessionStore(db *sql.DB) *SessionStore {
	return &SessionStore{db: db, locks: make(map[string]*sync.Mutex)}
}

// lockFor returns the mutex serializing read-modify-write cycles for one
// session id.
func (s *SessionStore) lockFor(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

// Create persists a new session with a fresh id and zeroed progress.
func (s *SessionStore) Create(ctx context.Context, name string, material models.SessionMaterial) (*models.Session, error) {
	session := &models.Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Material:  material,
		Progress:  models.ProgressRecord{},
	}

	materialJSON, err := json.Marshal(session.Material)
	if err != nil {
		return nil, fmt.Errorf("marshal material: %w", err)
	}
	progressJSON, err := json.Marshal(session.Progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, name, created_at, kind, material, progress) VALUES (?, ?, ?, ?, ?, ?)`,
		session.ID, session.Name, session.CreatedAt, string(material.Kind), materialJSON, progressJSON)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return session, nil
}

// Get loads a full session by id.
func (s *SessionStore) Get(ctx context.Context, id string) (*models.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, material, progress FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// List returns summaries of all sessions, newest first.
func (s *SessionStore) List(ctx context.Context) ([]models.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, material, progress FROM sessions ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	summaries := []models.SessionSummary{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, services.Summarize(*session))
	}
	return summaries, rows.Err()
}

// Delete removes a session. ErrSessionNotFound when the id is unknown.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}

	s.mu.Lock()
	delete(s.locks, id)
	s.mu.Unlock()
	return nil
}

// UpdateProgress runs mutate over the session's current state and persists
// the progress record it returns. The per-session lock serializes the whole
// read-modify-write cycle so concurrent updates cannot lose writes.
func (s *SessionStore) UpdateProgress(ctx context.Context, id string, mutate func(models.Session) (models.ProgressRecord, error)) (*models.Session, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	session, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	progress, err := mutate(*session)
	if err != nil {
		return nil, err
	}

	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return nil, fmt.Errorf("marshal progress: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET progress = ? WHERE id = ?`, progressJSON, id); err != nil {
		return nil, fmt.Errorf("update progress: %w", err)
	}

	session.Progress = progress
	return session, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var (
		session      models.Session
		materialJSON []byte
		progressJSON []byte
	)
	err := row.Scan(&session.ID, &session.Name, &session.CreatedAt, &materialJSON, &progressJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := json.Unmarshal(materialJSON, &session.Material); err != nil {
		return nil, fmt.Errorf("decode material: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &session.Progress); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &session, nil
}
