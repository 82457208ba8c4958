package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/roach88/dmap/internal/kv"
	"github.com/roach88/dmap/internal/kv/kvtest"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"kv_entries", "events"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), WithDriver("postgres"))
	if err == nil {
		t.Error("expected error for unknown driver, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() should be a no-op: %v", err)
	}
}

func TestDB_ReturnsUnderlyingConnection(t *testing.T) {
	s := createTestStore(t)

	db := s.DB()
	if db == nil {
		t.Fatal("DB() returned nil")
	}
	if err := db.Ping(); err != nil {
		t.Errorf("DB() connection not usable: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	for _, driver := range []string{DriverCGO, DriverPureGo} {
		t.Run(driver, func(t *testing.T) {
			s := createTestStore(t, WithDriver(driver))

			pragmas := []struct{ name, want string }{
				{"journal_mode", "wal"},
				{"synchronous", "1"}, // NORMAL
				{"busy_timeout", "5000"},
				{"foreign_keys", "1"},
				{"user_version", "1"},
			}
			for _, p := range pragmas {
				if err := s.verifyPragma(p.name, p.want); err != nil {
					t.Error(err)
				}
			}
		})
	}
}

// Schema tests

func TestSchema_EventsIndexes(t *testing.T) {
	s := createTestStore(t)

	indexes := getTableIndexes(t, s.db, "events")
	if !contains(indexes, "idx_events_kind") {
		t.Errorf("events table missing index %q (have %v)", "idx_events_kind", indexes)
	}
}

// Conformance: both drivers must behave as a kv.Store.

func TestStore_ConformanceCGO(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return createTestStore(t, WithDriver(DriverCGO))
	})
}

func TestStore_ConformancePureGo(t *testing.T) {
	kvtest.Run(t, func(t *testing.T) kv.Store {
		return createTestStore(t, WithDriver(DriverPureGo))
	})
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := t.Context()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	err = s1.Update(ctx, func(tx kv.Txn) error {
		return tx.Put([]byte{0x01, 0x02}, []byte{0xff})
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	v, ok, err := s2.Get(ctx, []byte{0x01, 0x02})
	if err != nil || !ok {
		t.Fatalf("Get() after reopen: ok=%v err=%v", ok, err)
	}
	if len(v) != 1 || v[0] != 0xff {
		t.Errorf("Get() = %x, want ff", v)
	}
}

func TestStore_ClosedOperations(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	s.Close()

	if _, _, err := s.Get(t.Context(), []byte("a")); err != kv.ErrClosed {
		t.Errorf("Get() after Close = %v, want ErrClosed", err)
	}
	if err := s.Update(t.Context(), func(kv.Txn) error { return nil }); err != kv.ErrClosed {
		t.Errorf("Update() after Close = %v, want ErrClosed", err)
	}
}
