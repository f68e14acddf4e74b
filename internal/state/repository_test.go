package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/rookie50/ioBroker.bluos/internal/infrastructure/database"
	_ "github.com/rookie50/ioBroker.bluos/migrations" // registers the schema
)

func openTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "state.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

// repositories runs fn against each Repository implementation.
func repositories(t *testing.T, fn func(t *testing.T, repo Repository)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, openTestRepository(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryRepository()) })
}

func TestRepository_Objects(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		obj := &Object{
			ID:   "bluos.0.BluOS.Devices",
			Type: TypeConfig,
			Common: Common{
				Name:    "Devices",
				Default: `[{"name":"Den","ip":"10.0.0.5"}]`,
				Schema:  map[string]any{"type": "array"},
			},
		}

		if _, err := repo.GetObject(ctx, obj.ID); !errors.Is(err, ErrObjectNotFound) {
			t.Fatalf("GetObject() on empty repo error = %v", err)
		}

		created, err := repo.CreateObject(ctx, obj)
		if err != nil || !created {
			t.Fatalf("CreateObject() = (%v, %v), want (true, nil)", created, err)
		}
		created, err = repo.CreateObject(ctx, &Object{ID: obj.ID, Type: TypeState})
		if err != nil || created {
			t.Fatalf("second CreateObject() = (%v, %v), want (false, nil)", created, err)
		}

		got, err := repo.GetObject(ctx, obj.ID)
		if err != nil {
			t.Fatalf("GetObject() error = %v", err)
		}
		if diff := cmp.Diff(obj, got); diff != "" {
			t.Errorf("object mismatch (-want +got):\n%s", diff)
		}

		obj.Common.Default = "[]"
		if err := repo.PutObject(ctx, obj); err != nil {
			t.Fatalf("PutObject() error = %v", err)
		}
		got, _ = repo.GetObject(ctx, obj.ID)
		if got.Common.Default != "[]" {
			t.Errorf("Default after PutObject = %v, want []", got.Common.Default)
		}

		removed, err := repo.DeleteObject(ctx, obj.ID)
		if err != nil || !removed {
			t.Fatalf("DeleteObject() = (%v, %v), want (true, nil)", removed, err)
		}
		removed, err = repo.DeleteObject(ctx, obj.ID)
		if err != nil || removed {
			t.Fatalf("second DeleteObject() = (%v, %v), want (false, nil)", removed, err)
		}
	})
}

func TestRepository_ListObjects(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		for _, id := range []string{"b.x", "a.y", "a.x", "ab.z"} {
			if _, err := repo.CreateObject(ctx, &Object{ID: id, Type: TypeState}); err != nil {
				t.Fatal(err)
			}
		}

		objs, err := repo.ListObjects(ctx, "a.")
		if err != nil {
			t.Fatalf("ListObjects() error = %v", err)
		}
		var ids []string
		for _, o := range objs {
			ids = append(ids, o.ID)
		}
		if diff := cmp.Diff([]string{"a.x", "a.y"}, ids); diff != "" {
			t.Errorf("ids mismatch (-want +got):\n%s", diff)
		}

		all, _ := repo.ListObjects(ctx, "")
		if len(all) != 4 {
			t.Errorf("ListObjects(\"\") = %d objects, want 4", len(all))
		}
	})
}

func TestRepository_States(t *testing.T) {
	repositories(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		id := "bluos.0.BluOS.Den.Status"

		if _, err := repo.GetState(ctx, id); !errors.Is(err, ErrStateNotFound) {
			t.Fatalf("GetState() on empty repo error = %v", err)
		}

		ts := time.Date(2026, 3, 1, 9, 0, 0, 123000000, time.UTC)
		st := &State{Ack: true, TS: ts, From: "bluos.0"}
		if err := repo.PutState(ctx, id, st, []byte(`{"state":"play"}`)); err != nil {
			t.Fatalf("PutState() error = %v", err)
		}

		got, err := repo.GetState(ctx, id)
		if err != nil {
			t.Fatalf("GetState() error = %v", err)
		}
		want := &State{Val: map[string]any{"state": "play"}, Ack: true, TS: ts, From: "bluos.0"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("state mismatch (-want +got):\n%s", diff)
		}

		if err := repo.PutState(ctx, id, &State{TS: ts}, []byte(`"stop"`)); err != nil {
			t.Fatalf("PutState() overwrite error = %v", err)
		}
		got, _ = repo.GetState(ctx, id)
		if got.Val != "stop" || got.Ack {
			t.Errorf("overwritten state = %+v", got)
		}

		// Deleting the object takes the state with it.
		if _, err := repo.DeleteObject(ctx, id); err != nil {
			t.Fatal(err)
		}
		if _, err := repo.GetState(ctx, id); !errors.Is(err, ErrStateNotFound) {
			t.Errorf("GetState() after delete error = %v", err)
		}
	})
}

func TestStore_SQLiteSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	open := func() (*Store, *database.DB) {
		db, err := database.Open(ctx, database.Config{Path: path, WALMode: true, BusyTimeout: 5})
		if err != nil {
			t.Fatalf("database.Open() error = %v", err)
		}
		if err := db.Migrate(ctx); err != nil {
			t.Fatalf("Migrate() error = %v", err)
		}
		s, err := NewStore(StoreOptions{Repository: NewSQLiteRepository(db.DB)})
		if err != nil {
			t.Fatal(err)
		}
		return s, db
	}

	s, db := open()
	if err := s.SetState(ctx, "bluos.0.BluOS.Den.Volume", 35, true); err != nil {
		t.Fatal(err)
	}
	db.Close() //nolint:errcheck // reopened below

	s, db = open()
	defer db.Close() //nolint:errcheck // Test cleanup
	st, err := s.GetState(ctx, "bluos.0.BluOS.Den.Volume")
	if err != nil {
		t.Fatalf("GetState() after reopen error = %v", err)
	}
	if st.Val != float64(35) {
		t.Errorf("Val = %v, want 35", st.Val)
	}
}
