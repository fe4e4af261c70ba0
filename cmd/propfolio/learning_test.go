package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/johndauphine/propfolio/internal/learning"
)

func TestLoadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	content := `
- kind: term
  term:
    term_id: cap-rate
    mastered: true
    review_count: 3
- id: fixed-id
  kind: bookmark
  bookmark:
    content_id: article-9
    content_type: article
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	records, err := loadRecords(path)
	if err != nil {
		t.Fatalf("loadRecords: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID == "" || records[0].StagedAt.IsZero() {
		t.Errorf("missing id or staged_at not filled: %+v", records[0])
	}
	if records[0].Kind != learning.KindTerm || !records[0].Term.Mastered {
		t.Errorf("term record = %+v", records[0])
	}
	if records[1].ID != "fixed-id" {
		t.Errorf("explicit id replaced: %q", records[1].ID)
	}
}

func TestLoadRecordsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.yaml")
	content := `
- kind: path
  term:
    term_id: cap-rate
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	_, err := loadRecords(path)
	if err == nil || !strings.Contains(err.Error(), "entry 1") {
		t.Fatalf("err = %v, want entry 1 validation error", err)
	}
}
