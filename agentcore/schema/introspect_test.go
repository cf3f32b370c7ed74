package schema

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntrospector_SQLiteSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("employees"))

	mock.ExpectQuery(regexp.QuoteMeta(`PRAGMA table_info("employees")`)).
		WillReturnRows(sqlmock.NewRows([]string{"cid", "name", "type", "notnull", "dflt_value", "pk"}).
			AddRow(0, "id", "INTEGER", 0, nil, 1).
			AddRow(1, "name", "TEXT", 1, nil, 0).
			AddRow(2, "salary", "REAL", 0, nil, 0))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	snap, err := NewIntrospector(db, DialectSQLite).Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	require.Equal(t, 1, snap.Len())
	table, ok := snap.Table("employees")
	require.True(t, ok)
	assert.Equal(t, int64(7), table.RowCount)
	require.Len(t, table.Columns, 3)
	assert.True(t, table.Columns[0].PrimaryKey)
	assert.False(t, table.Columns[0].NotNull)
	assert.True(t, table.Columns[1].NotNull)
	assert.Equal(t, "REAL", table.Columns[2].Type)
}

func TestIntrospector_PostgresSnapshot(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("information_schema.columns").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type", "is_nullable"}).
			AddRow("employees", "id", "integer", "NO").
			AddRow("employees", "name", "text", "YES").
			AddRow("departments", "id", "integer", "NO"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "employees"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "departments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	snap, err := NewIntrospector(db, DialectPostgres).Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, 2, snap.Len())
	employees, ok := snap.Table("employees")
	require.True(t, ok)
	assert.Equal(t, int64(3), employees.RowCount)
	assert.True(t, employees.Columns[0].NotNull)
	assert.False(t, employees.Columns[1].NotNull)
}

func TestIntrospector_EmptyDatabase(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("sqlite_master").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	snap, err := NewIntrospector(db, DialectSQLite).Snapshot(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestIntrospector_UnsupportedDialect(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	_, err = NewIntrospector(db, Dialect("oracle")).Snapshot(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported dialect")
}
