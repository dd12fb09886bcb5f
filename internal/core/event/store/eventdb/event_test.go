package eventdb

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gowvp/sentry/internal/core/event"
	"github.com/ixugo/goddd/pkg/orm"
	"github.com/ixugo/goddd/pkg/web"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func generateMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	return gdb, mock, err
}

func TestEventGet(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Event()

	mock.ExpectQuery(`SELECT \* FROM "events" WHERE id = \$1 (.+) LIMIT \$2`).
		WithArgs(7, 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label", "tracked_id"}).AddRow(7, "person", 3))

	var out event.Event
	if err := store.Get(context.Background(), &out, orm.Where("id = ?", 7)); err != nil {
		t.Fatal(err)
	}
	if out.Label != "person" || out.TrackedID != 3 {
		t.Fatalf("got %+v", out)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestEventFind(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Event()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "events" WHERE label = \$1`).
		WithArgs("person").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(`SELECT \* FROM "events" WHERE label = \$1 ORDER BY started_at DESC LIMIT \$2`).
		WithArgs("person", 10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "label"}).AddRow(2, "person").AddRow(1, "person"))

	query := orm.NewQuery(2).OrderBy("started_at DESC")
	query.Where("label = ?", "person")
	var out []*event.Event
	total, err := store.Find(context.Background(), &out, &web.PagerFilter{Page: 1, Size: 10}, query.Encode()...)
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(out) != 2 {
		t.Fatalf("total=%d len=%d", total, len(out))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}

func TestEventSession(t *testing.T) {
	db, mock, err := generateMockDB()
	if err != nil {
		t.Fatal(err)
	}
	store := NewDB(db).Event()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "events" WHERE id IN \(\$1,\$2\)`).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err = store.Session(context.Background(), func(tx *gorm.DB) error {
		return tx.Where("id IN ?", []int64{1, 2}).Delete(&event.Event{}).Error
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal("ExpectationsWereMet err:", err)
	}
}
