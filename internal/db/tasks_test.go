package db

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const sampleCSV = `title,description,category,suggested_time_seconds,judging_criteria
Elevator Pitch,Sell a terrible product in two sentences.,branding,120,Persuasion and humor
Haiku,Write a haiku about your week.,poetry,90,
Blank Round,,poetry,90,
`

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("test db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func TestLoadTaskLibrary(t *testing.T) {
	conn := openTestDB(t)

	path := filepath.Join(t.TempDir(), "tasks.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	loaded, err := LoadTaskLibrary(conn, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// The row with an empty description is skipped.
	if loaded != 2 {
		t.Fatalf("expected 2 tasks loaded, got %d", loaded)
	}

	var task Task
	if err := conn.Where("title = ?", "Elevator Pitch").First(&task).Error; err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if task.SuggestedTimeSeconds != 120 {
		t.Fatalf("expected 120 seconds, got %d", task.SuggestedTimeSeconds)
	}
	if task.Category == nil || *task.Category != "branding" {
		t.Fatalf("expected branding category, got %v", task.Category)
	}
	if task.JudgingCriteria == nil || *task.JudgingCriteria != "Persuasion and humor" {
		t.Fatalf("expected judging criteria, got %v", task.JudgingCriteria)
	}

	var haiku Task
	if err := conn.Where("title = ?", "Haiku").First(&haiku).Error; err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if haiku.JudgingCriteria != nil {
		t.Fatalf("blank criteria must stay null")
	}

	// Reloading updates in place instead of duplicating.
	if _, err := LoadTaskLibrary(conn, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	var count int64
	if err := conn.Model(&Task{}).Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 tasks after reload, got %d", count)
	}
}
