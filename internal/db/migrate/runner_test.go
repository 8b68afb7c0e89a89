package migrate

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"laundry-service/backend/internal/db"
)

func TestRun_EmptyDSN(t *testing.T) {
	for _, dsn := range []string{"", "   "} {
		err := Run(dsn, Up)
		if err == nil || !strings.Contains(err.Error(), "DATABASE_URL is not set") {
			t.Errorf("Run(%q) error = %v, want DATABASE_URL is not set", dsn, err)
		}
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, dir := range []string{"", "sideways", "UP", "Down"} {
		t.Run(dir, func(t *testing.T) {
			err := Run("postgres://localhost/test", dir)
			if err == nil || !strings.Contains(err.Error(), "direction must be") {
				t.Errorf("Run direction %q error = %v", dir, err)
			}
		})
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://localhost with spaces/test"} {
		if err := Run(dsn, Up); err == nil {
			t.Errorf("Run(%q) should fail", dsn)
		}
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil || !errors.Is(ErrNoChange, ErrNoChange) {
		t.Fatal("ErrNoChange should be a usable sentinel")
	}
}

func TestMigrationFS_Paired(t *testing.T) {
	ups, err := fs.Glob(db.MigrationFS, "migrations/*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatal("no up migrations embedded")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(db.MigrationFS, down); err != nil {
			t.Errorf("%s has no matching %s", up, down)
		}
	}
}
