// Package repository provides database access for persisted state.
package repository

import (
	"database/sql"
	"time"

	"equity_monitor/internal/database"
	"equity_monitor/internal/secrets"
	"equity_monitor/internal/session"
)

// SessionRepository stores the single persisted session record.
// The token is encrypted before it touches the database.
type SessionRepository struct {
	db  *database.DB
	enc *secrets.Encryptor
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *database.DB, enc *secrets.Encryptor) *SessionRepository {
	return &SessionRepository{db: db, enc: enc}
}

// Save upserts the persisted session record.
func (r *SessionRepository) Save(rec session.Record) error {
	ciphertext, nonce, err := r.enc.Encrypt(rec.Token)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(`
		INSERT INTO session_record (id, token_ciphertext, token_nonce, saved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id)
		DO UPDATE SET token_ciphertext = excluded.token_ciphertext,
		              token_nonce = excluded.token_nonce,
		              saved_at = excluded.saved_at
	`, ciphertext, nonce, rec.SavedAt)
	return err
}

// Load returns the persisted session record, or nil if none exists.
func (r *SessionRepository) Load() (*session.Record, error) {
	row := r.db.QueryRow(`
		SELECT token_ciphertext, token_nonce, saved_at
		FROM session_record
		WHERE id = 1
	`)

	var ciphertext, nonce []byte
	var savedAt time.Time
	err := row.Scan(&ciphertext, &nonce, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	token, err := r.enc.Decrypt(ciphertext, nonce)
	if err != nil {
		return nil, err
	}

	return &session.Record{Token: token, SavedAt: savedAt}, nil
}

// Delete removes the persisted session record.
func (r *SessionRepository) Delete() error {
	_, err := r.db.Exec(`DELETE FROM session_record WHERE id = 1`)
	return err
}
