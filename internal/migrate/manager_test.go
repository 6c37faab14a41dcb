package migrate

import (
	"context"
	"errors"
	"io/fs"
	"regexp"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
)

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"m/0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"m/0001_a.down.sql": {Data: []byte("drop table a;")},
		"m/0002_b.up.sql":   {Data: []byte("-- b; with a semicolon in a comment\ncreate table b (v text default 'x;y');\ncreate index b_v on b (v);")},
		"s/0001_seed.sql":   {Data: []byte("insert into a values (1);")},
	}
}

func newMockManager(t *testing.T) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewManager(db, WithSource(testSource(), "m", "s")), mock
}

func expectEnsureTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create table if not exists schema_seeds")).
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	m, mock := newMockManager(t)

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table b (v text default 'x;y')")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("create index b_v on b (v)")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("insert into schema_migrations(name, applied_at)")).
		WithArgs("0002_b.up.sql", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	n, err := m.Up(context.Background())
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 migration applied, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	m, mock := newMockManager(t)

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("create table a")).WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	n, err := m.Up(context.Background())
	if err == nil || !strings.Contains(err.Error(), "0001_a.up.sql") {
		t.Fatalf("expected failure naming the migration, got %v", err)
	}
	if n != 0 {
		t.Fatalf("expected nothing applied, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownRollsBackLatest(t *testing.T) {
	m, mock := newMockManager(t)

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("drop table a")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec(regexp.QuoteMeta("delete from schema_migrations where name = $1")).
		WithArgs("0001_a.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	name, err := m.Down(context.Background())
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if name != "0001_a.up.sql" {
		t.Fatalf("unexpected rollback %q", name)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDownWithNothingApplied(t *testing.T) {
	m, mock := newMockManager(t)

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	if _, err := m.Down(context.Background()); !errors.Is(err, ErrNothingApplied) {
		t.Fatalf("expected ErrNothingApplied, got %v", err)
	}
}

func TestSeedSkipsApplied(t *testing.T) {
	m, mock := newMockManager(t)

	expectEnsureTables(mock)
	mock.ExpectQuery(regexp.QuoteMeta("select name from schema_seeds")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_seed.sql"))

	n, err := m.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected no seeds applied, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements("-- header; ignored\ncreate table t (s text default 'a;b');\n\ninsert into t values ('c');")
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if !strings.Contains(got[0], "'a;b'") {
		t.Fatalf("semicolon inside literal must not split: %q", got[0])
	}
}

func TestBundledSchemaIsPaired(t *testing.T) {
	ups, err := fs.Glob(bundled, "sql/*.up.sql")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(ups) == 0 {
		t.Fatalf("expected bundled migrations")
	}
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := fs.Stat(bundled, down); err != nil {
			t.Fatalf("missing down migration for %s", up)
		}
	}
	for _, table := range []string{"users", "user_types", "oauth_metadata", "login_attempts", "login_sessions"} {
		found := false
		for _, up := range ups {
			data, _ := fs.ReadFile(bundled, up)
			if strings.Contains(string(data), "create table if not exists "+table+" (") {
				found = true
			}
		}
		if !found {
			t.Fatalf("no migration creates %s", table)
		}
	}
}
