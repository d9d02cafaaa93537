package database

import (
	"io"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func TestMigrationSource(t *testing.T) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		t.Fatalf("Failed to open migration source: %v", err)
	}
	defer source.Close()

	first, err := source.First()
	if err != nil {
		t.Fatalf("Failed to read first migration: %v", err)
	}
	if first != 1 {
		t.Errorf("Expected first version 1, got %d", first)
	}

	up, _, err := source.ReadUp(first)
	if err != nil {
		t.Fatalf("Failed to read up migration: %v", err)
	}
	defer up.Close()

	body, err := io.ReadAll(up)
	if err != nil {
		t.Fatalf("Failed to read migration body: %v", err)
	}

	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS campaign",
		"CREATE TABLE IF NOT EXISTS contact",
		"CREATE TABLE IF NOT EXISTS email",
		"uq_email_campaign_contact_sent",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected up migration to contain %q", want)
		}
	}

	down, _, err := source.ReadDown(first)
	if err != nil {
		t.Fatalf("Failed to read down migration: %v", err)
	}
	down.Close()
}
