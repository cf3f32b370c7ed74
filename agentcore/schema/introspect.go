package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Dialect selects the introspection strategy for a database.
type Dialect string

const (
	// DialectSQLite introspects via sqlite_master and PRAGMA table_info.
	DialectSQLite Dialect = "sqlite"
	// DialectPostgres introspects via information_schema.
	DialectPostgres Dialect = "postgres"
)

// DialectFromString parses a dialect string.
func DialectFromString(value string) (Dialect, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("invalid dialect '%s'. Must be one of: sqlite, postgres", value)
	}
}

// Introspector reads table and column metadata from a live database.
type Introspector struct {
	db      *sql.DB
	dialect Dialect
}

// NewIntrospector creates an Introspector for the given connection.
func NewIntrospector(db *sql.DB, dialect Dialect) *Introspector {
	return &Introspector{db: db, dialect: dialect}
}

// Snapshot reads the current schema. The returned snapshot is immutable and
// safe to share across concurrent runs.
func (in *Introspector) Snapshot(ctx context.Context) (*Snapshot, error) {
	switch in.dialect {
	case DialectSQLite:
		return in.sqliteSnapshot(ctx)
	case DialectPostgres:
		return in.postgresSnapshot(ctx)
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", in.dialect)
	}
}

func (in *Introspector) sqliteSnapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("schema: listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("schema: scanning table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: listing tables: %w", err)
	}

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		table, err := in.sqliteTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return NewSnapshot(tables), nil
}

func (in *Introspector) sqliteTable(ctx context.Context, name string) (Table, error) {
	table := Table{Name: name}

	rows, err := in.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(name)))
	if err != nil {
		return Table{}, fmt.Errorf("schema: reading columns of %s: %w", name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid        int
			colName    string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &colName, &colType, &notNull, &defaultVal, &pk); err != nil {
			return Table{}, fmt.Errorf("schema: scanning column of %s: %w", name, err)
		}
		table.Columns = append(table.Columns, Column{
			Name:       colName,
			Type:       colType,
			PrimaryKey: pk > 0,
			NotNull:    notNull != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return Table{}, fmt.Errorf("schema: reading columns of %s: %w", name, err)
	}

	count, err := in.countRows(ctx, name)
	if err != nil {
		return Table{}, err
	}
	table.RowCount = count
	return table, nil
}

func (in *Introspector) postgresSnapshot(ctx context.Context) (*Snapshot, error) {
	rows, err := in.db.QueryContext(ctx,
		`SELECT table_name, column_name, data_type, is_nullable
		 FROM information_schema.columns
		 WHERE table_schema = 'public'
		 ORDER BY table_name, ordinal_position`)
	if err != nil {
		return nil, fmt.Errorf("schema: reading information_schema: %w", err)
	}
	defer rows.Close()

	var tables []Table
	byName := map[string]int{}
	for rows.Next() {
		var tableName, colName, dataType, isNullable string
		if err := rows.Scan(&tableName, &colName, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("schema: scanning information_schema row: %w", err)
		}
		idx, ok := byName[tableName]
		if !ok {
			tables = append(tables, Table{Name: tableName})
			idx = len(tables) - 1
			byName[tableName] = idx
		}
		tables[idx].Columns = append(tables[idx].Columns, Column{
			Name:    colName,
			Type:    dataType,
			NotNull: strings.EqualFold(isNullable, "NO"),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schema: reading information_schema: %w", err)
	}

	for i := range tables {
		count, err := in.countRows(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].RowCount = count
	}
	return NewSnapshot(tables), nil
}

func (in *Introspector) countRows(ctx context.Context, name string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteIdent(name))
	if err := in.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("schema: counting rows of %s: %w", name, err)
	}
	return count, nil
}

// quoteIdent quotes an identifier that came out of the catalog itself.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
