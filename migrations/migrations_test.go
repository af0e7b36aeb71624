package migrations

import (
	"io/fs"
	"strings"
	"testing"
)

func TestEveryUpMigrationHasDown(t *testing.T) {
	entries, err := fs.ReadDir(FS, ".")
	if err != nil {
		t.Fatalf("read embedded migrations: %v", err)
	}
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name()] = true
	}
	ups := 0
	for name := range names {
		if !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		ups++
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		if !names[down] {
			t.Fatalf("missing %s", down)
		}
	}
	if ups == 0 {
		t.Fatalf("expected embedded migrations")
	}
}

func TestSchemaCoversStores(t *testing.T) {
	var all strings.Builder
	entries, _ := fs.ReadDir(FS, ".")
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), ".up.sql") {
			continue
		}
		raw, err := fs.ReadFile(FS, e.Name())
		if err != nil {
			t.Fatalf("read %s: %v", e.Name(), err)
		}
		all.Write(raw)
	}
	schema := all.String()
	for _, table := range []string{"conversations", "messages", "knowledge_chunks", "orders", "faqs", "processed_events"} {
		if !strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ") {
			t.Fatalf("schema missing table %s", table)
		}
	}
	if !strings.Contains(schema, "vector(1536)") {
		t.Fatalf("expected 1536-dimension embedding column")
	}
}
