package repository

import (
	"path/filepath"
	"testing"
	"time"

	"equity_monitor/internal/database"
	"equity_monitor/internal/secrets"
	"equity_monitor/internal/session"
)

func setupSessionTestDB(t *testing.T) (*database.DB, *secrets.Encryptor) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := database.New(dbPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	enc, err := secrets.NewEncryptor("this-is-a-valid-32-character-key")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	return db, enc
}

func TestSessionRepository_Load_Empty_ReturnsNil(t *testing.T) {
	db, enc := setupSessionTestDB(t)
	repo := NewSessionRepository(db, enc)

	rec, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}
	if rec != nil {
		t.Errorf("Load() = %+v, want nil", rec)
	}
}

func TestSessionRepository_SaveLoad_RoundTrip(t *testing.T) {
	db, enc := setupSessionTestDB(t)
	repo := NewSessionRepository(db, enc)

	savedAt := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	err := repo.Save(session.Record{Token: "DSL07vu14QxHWErTIAFrH40", SavedAt: savedAt})
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rec, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec == nil {
		t.Fatal("Load() = nil, want record")
	}
	if rec.Token != "DSL07vu14QxHWErTIAFrH40" {
		t.Errorf("Token = %q, want %q", rec.Token, "DSL07vu14QxHWErTIAFrH40")
	}
	if !rec.SavedAt.Equal(savedAt) {
		t.Errorf("SavedAt = %v, want %v", rec.SavedAt, savedAt)
	}
}

func TestSessionRepository_Save_Upserts(t *testing.T) {
	db, enc := setupSessionTestDB(t)
	repo := NewSessionRepository(db, enc)

	if err := repo.Save(session.Record{Token: "first-token-value", SavedAt: time.Now()}); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := repo.Save(session.Record{Token: "second-token-value", SavedAt: time.Now()}); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	rec, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec.Token != "second-token-value" {
		t.Errorf("Token = %q, want %q", rec.Token, "second-token-value")
	}

	// Still a single row
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM session_record`).Scan(&count); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	if count != 1 {
		t.Errorf("row count = %d, want 1", count)
	}
}

func TestSessionRepository_TokenIsEncryptedAtRest(t *testing.T) {
	db, enc := setupSessionTestDB(t)
	repo := NewSessionRepository(db, enc)

	token := "plaintext-session-token"
	if err := repo.Save(session.Record{Token: token, SavedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var ciphertext []byte
	if err := db.QueryRow(`SELECT token_ciphertext FROM session_record WHERE id = 1`).Scan(&ciphertext); err != nil {
		t.Fatalf("reading raw row: %v", err)
	}
	if string(ciphertext) == token {
		t.Error("token stored in plaintext")
	}
}

func TestSessionRepository_Delete_RemovesRecord(t *testing.T) {
	db, enc := setupSessionTestDB(t)
	repo := NewSessionRepository(db, enc)

	if err := repo.Save(session.Record{Token: "some-token-value", SavedAt: time.Now()}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := repo.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	rec, err := repo.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rec != nil {
		t.Errorf("Load() after Delete() = %+v, want nil", rec)
	}
}
