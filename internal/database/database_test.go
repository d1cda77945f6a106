package database

import (
	"path/filepath"
	"testing"

	"github.com/lildude/lastactivity/internal/model"
)

func TestOpen(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "lastactivity.db"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !db.Migrator().HasTable(&model.Token{}) {
		t.Error("expected tokens table to be migrated")
	}
}

func TestOpenEmptyDSN(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("expected error for empty DSN")
	}
}
