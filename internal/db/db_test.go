package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(Options{}); err == nil {
		t.Fatalf("expected error when no path supplied")
	}
}

func TestOpenPostgresRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := OpenPostgres(Options{DSN: "  "}); err == nil {
		t.Fatalf("expected error when no DSN supplied")
	}
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "data", "chatbot_memory.db")

	database, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := Close(database); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	if _, statErr := os.Stat(filepath.Dir(path)); statErr != nil {
		t.Fatalf("expected parent directory to exist: %v", statErr)
	}
}

func TestOpenAppliesPragmasWithDefaultTimeout(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "memory.db")

	database, err := Open(Options{Path: path})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := Close(database); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	var journalMode string
	if queryErr := database.Raw("PRAGMA journal_mode;").Scan(&journalMode).Error; queryErr != nil {
		t.Fatalf("querying journal_mode pragma failed: %v", queryErr)
	}
	if !strings.EqualFold(strings.TrimSpace(journalMode), "wal") {
		t.Fatalf("expected journal mode WAL, got %q", journalMode)
	}

	var busyTimeout int
	if queryErr := database.Raw("PRAGMA busy_timeout;").Scan(&busyTimeout).Error; queryErr != nil {
		t.Fatalf("querying busy_timeout pragma failed: %v", queryErr)
	}

	expectedTimeout := int(defaultBusyTimeout / time.Millisecond)
	if busyTimeout != expectedTimeout {
		t.Fatalf("expected busy timeout %d, got %d", expectedTimeout, busyTimeout)
	}
}

func TestOpenHonoursConnectionLimits(t *testing.T) {
	t.Parallel()

	opts := Options{
		Path:         filepath.Join(t.TempDir(), "limits.db"),
		BusyTimeout:  1500 * time.Millisecond,
		MaxOpenConns: 7,
		MaxIdleConns: 3,
	}

	database, err := Open(opts)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := Close(database); closeErr != nil {
			t.Errorf("closing database failed: %v", closeErr)
		}
	})

	sqlDB, err := SQLDB(database)
	if err != nil {
		t.Fatalf("SQLDB returned error: %v", err)
	}

	if stats := sqlDB.Stats(); stats.MaxOpenConnections != opts.MaxOpenConns {
		t.Fatalf("expected MaxOpenConns %d, got %d", opts.MaxOpenConns, stats.MaxOpenConnections)
	}
}

func TestSQLDBWithNilDatabase(t *testing.T) {
	t.Parallel()

	if _, err := SQLDB(nil); err == nil {
		t.Fatalf("expected error when database is nil")
	}
}

func TestCloseNilIsNoop(t *testing.T) {
	t.Parallel()

	if err := Close(nil); err != nil {
		t.Fatalf("expected nil error closing nil database, got %v", err)
	}
}
