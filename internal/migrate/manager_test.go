package migrate

import (
	"context"
	"io/fs"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var applyTime = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"0001_a.up.sql":   {Data: []byte("create table a (id int);")},
		"0001_a.down.sql": {Data: []byte("drop table a;")},
		"0002_b.up.sql":   {Data: []byte("create table b (id int, note text default 'x;y');\ncreate index b_idx on b (id);")},
		"0002_b.down.sql": {Data: []byte("drop table b;")},
		"README.md":       {Data: []byte("ignored")},
	}
}

func expectTables(mock sqlmock.Sqlmock) {
	mock.ExpectExec("create table if not exists schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create table if not exists schema_seeds").WillReturnResult(sqlmock.NewResult(0, 0))
}

func newManager(t *testing.T, seeds fs.FS) (*Manager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewManager(db, testFS(), seeds, WithClock(func() time.Time { return applyTime })), mock
}

func TestUpAppliesPendingInOrder(t *testing.T) {
	m, mock := newManager(t, nil)
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("create table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("create index b_idx").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("insert into schema_migrations").WithArgs("0002_b.up.sql", applyTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	applied, err := m.Up(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"0002_b.up.sql"}, applied)
}

func TestDownRollsBackLatest(t *testing.T) {
	m, mock := newManager(t, nil)
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations order by applied_at").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("0001_a.up.sql").AddRow("0002_b.up.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("drop table b").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	mock.ExpectExec("delete from schema_migrations").WithArgs("0002_b.up.sql").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, m.Down(context.Background()))
}

func TestDownWithNothingApplied(t *testing.T) {
	m, mock := newManager(t, nil)
	expectTables(mock)
	mock.ExpectQuery("select name from schema_migrations").WillReturnRows(sqlmock.NewRows([]string{"name"}))

	require.ErrorIs(t, m.Down(context.Background()), ErrNothingApplied)
}

func TestSeedSkipsRecorded(t *testing.T) {
	seeds := fstest.MapFS{
		"01_admins.sql": {Data: []byte("insert into admins values ('x');")},
		"02_demo.sql":   {Data: []byte("insert into accounts values ('y');")},
	}
	m, mock := newManager(t, seeds)
	expectTables(mock)
	mock.ExpectQuery("select name from schema_seeds").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("01_admins.sql"))
	mock.ExpectBegin()
	mock.ExpectExec("insert into accounts").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectExec("insert into schema_seeds").WithArgs("02_demo.sql", applyTime).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, m.Seed(context.Background()))
}

func TestSplitStatementsKeepsQuotedSemicolons(t *testing.T) {
	stmts := splitStatements("insert into t values ('a;b');\nselect 1;\n")
	require.Len(t, stmts, 2)
	require.Contains(t, stmts[0], "'a;b'")
}

func TestEmbeddedMigrations(t *testing.T) {
	files, err := collectSQL(Migrations(), ".up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		down := strings.TrimSuffix(name, ".up.sql") + ".down.sql"
		_, err := fs.Stat(Migrations(), down)
		require.NoError(t, err, "missing %s", down)
	}

	body, err := fs.ReadFile(Migrations(), files[0])
	require.NoError(t, err)
	require.Contains(t, string(body), "permission_requests_in_flight_idx")
	require.Contains(t, string(body), "accounts_email_key")
}
