package data

import (
	"path/filepath"
	"testing"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
)

func TestGetDialector(t *testing.T) {
	dial, isSQLite, err := getDialector("postgres://u:p@127.0.0.1:5432/sentry")
	if err != nil || isSQLite {
		t.Fatalf("postgres: sqlite=%v err=%v", isSQLite, err)
	}
	if _, ok := dial.(*postgres.Dialector); !ok {
		t.Fatalf("postgres: got %T", dial)
	}

	dial, isSQLite, err = getDialector("mysql://u:p@tcp(127.0.0.1:3306)/sentry")
	if err != nil || isSQLite {
		t.Fatalf("mysql: sqlite=%v err=%v", isSQLite, err)
	}
	if _, ok := dial.(*mysql.Dialector); !ok {
		t.Fatalf("mysql: got %T", dial)
	}

	path := filepath.Join(t.TempDir(), "nested", "sentry.db")
	if _, isSQLite, err = getDialector(path); err != nil || !isSQLite {
		t.Fatalf("sqlite: sqlite=%v err=%v", isSQLite, err)
	}
}
