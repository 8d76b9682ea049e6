package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/kapua-console/internal/infrastructure/database"
	"github.com/nerrad567/kapua-console/migrations"
)

// setupTestDB opens an in-memory database with the audit schema applied.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{Path: ":memory:"})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestSQLiteRepository_CreateAndList(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []*Entry{
		{Action: ActionLogin, EntityType: EntitySession, UserID: "kapua-sys", Source: "api", CreatedAt: base},
		{Action: ActionDelete, EntityType: EntityDevice, EntityID: "dev-1", Source: "api", CreatedAt: base.Add(time.Second),
			Details: map[string]any{"status": float64(204)}},
		{Action: ActionDelete, EntityType: EntityDevice, EntityID: "dev-2", Source: "api", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" {
			t.Error("Create() did not assign an ID")
		}
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 {
		t.Fatalf("List() total=%d len=%d, want 3/3", page.Total, len(page.Entries))
	}
	if page.Entries[0].EntityID != "dev-2" {
		t.Errorf("first entry = %q, want most recent dev-2", page.Entries[0].EntityID)
	}
	if page.Limit != defaultLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, defaultLimit)
	}

	got := page.Entries[1]
	if got.Details["status"] != float64(204) {
		t.Errorf("Details[status] = %v, want 204", got.Details["status"])
	}
	if !got.CreatedAt.Equal(base.Add(time.Second)) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, base.Add(time.Second))
	}
}

func TestSQLiteRepository_ListFilters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)
	ctx := context.Background()

	for _, e := range []*Entry{
		{Action: ActionLogin, EntityType: EntitySession, Source: "api"},
		{Action: ActionDelete, EntityType: EntityDevice, EntityID: "dev-1", Source: "api"},
		{Action: ActionDelete, EntityType: EntityDevice, EntityID: "dev-2", Source: "api"},
	} {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by action", Filter{Action: ActionDelete}, 2},
		{"by entity type", Filter{EntityType: EntitySession}, 1},
		{"by entity id", Filter{EntityType: EntityDevice, EntityID: "dev-2"}, 1},
		{"no match", Filter{Action: "update"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.want || len(page.Entries) != tt.want {
				t.Errorf("List(%+v) total=%d len=%d, want %d", tt.filter, page.Total, len(page.Entries), tt.want)
			}
			if page.Entries == nil {
				t.Error("Entries should be an empty slice, not nil")
			}
		})
	}
}

func TestSQLiteRepository_ListClampsPaging(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB)

	page, err := repo.List(context.Background(), Filter{Limit: 5000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Limit != maxLimit {
		t.Errorf("Limit = %d, want %d", page.Limit, maxLimit)
	}
	if page.Offset != 0 {
		t.Errorf("Offset = %d, want 0", page.Offset)
	}
}
