package storage

import (
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return newWithDB(db), mock
}

func TestCreateWatchRecord_IgnoresConflict(t *testing.T) {
	s, mock := newStoreWithMock(t)

	q := `(?s)^\s*INSERT\s+INTO\s+watch_records.*ON\s+CONFLICT\(user_id,\s*job_id\)\s+DO\s+NOTHING\s*$`
	mock.ExpectExec(q).
		WithArgs("u1", "p1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.CreateWatchRecord(ctx, WatchRecord{UserID: "u1", JobID: "p1"}); err != nil {
		t.Fatalf("CreateWatchRecord error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteWatchRecord_NoRowsIsNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`DELETE\s+FROM\s+watch_records`).
		WithArgs("u1", "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.DeleteWatchRecord(ctx, "u1", "p1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteOrphanWatchRecords_RollsBackOnDeleteError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+DISTINCT\s+user_id\s+FROM\s+watch_records`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1"))
	mock.ExpectExec(`DELETE\s+FROM\s+watch_records\s+WHERE\s+job_id\s+NOT\s+IN`).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	users, err := s.DeleteOrphanWatchRecords(ctx)
	if err == nil || !strings.Contains(err.Error(), "deleting orphans: disk I/O error") {
		t.Fatalf("err = %v, want wrapped delete error", err)
	}
	if users != nil {
		t.Errorf("users = %v, want nil on failure", users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteOrphanWatchRecords_NothingToDelete(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT\s+DISTINCT\s+user_id`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectCommit()

	users, err := s.DeleteOrphanWatchRecords(ctx)
	if err != nil {
		t.Fatalf("DeleteOrphanWatchRecords error: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("users = %v, want none", users)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetPosting_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)SELECT .* FROM postings WHERE id = \?`).
		WithArgs("p1").
		WillReturnError(errors.New("db down"))

	_, err := s.GetPosting(ctx, "p1")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want a transient error distinct from ErrNotFound", err)
	}
}
