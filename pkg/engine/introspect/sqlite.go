package introspect

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	// registers the "sqlite3" database/sql driver
	_ "github.com/mattn/go-sqlite3"
)

type sqliteIntrospector struct {
	db *sql.DB
}

func newSQLiteIntrospector(ctx context.Context, connStr string) (Introspector, error) {
	dsn := strings.TrimPrefix(connStr, "sqlite://")

	// sqlite creates missing files on open
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if _, err := os.Stat(dsn); err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	return &sqliteIntrospector{db: db}, nil
}

func (si *sqliteIntrospector) Detect(ctx context.Context) (bool, error) {
	var version string
	err := si.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version)
	return err == nil, err
}

func (si *sqliteIntrospector) ListTables(ctx context.Context) ([]string, error) {
	rows, err := si.db.QueryContext(ctx, `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table'
		AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}

	return tables, rows.Err()
}

func (si *sqliteIntrospector) InspectTable(ctx context.Context, tableName string) (*TableInfo, error) {
	unique, err := si.uniqueColumns(ctx, tableName)
	if err != nil {
		return nil, err
	}
	foreign, err := si.foreignKeys(ctx, tableName)
	if err != nil {
		return nil, err
	}

	rows, err := si.db.QueryContext(ctx,
		`SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := &TableInfo{
		Name:    tableName,
		Columns: []ColumnInfo{},
	}

	for rows.Next() {
		var col ColumnInfo
		var notNull, pk int
		var defaultVal sql.NullString

		if err := rows.Scan(&col.Name, &col.Type, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}

		col.PrimaryKey = pk > 0
		col.Nullable = notNull == 0 && !col.PrimaryKey
		col.Unique = unique[col.Name]
		col.ForeignKey = foreign[col.Name]
		if defaultVal.Valid {
			col.DefaultVal = &defaultVal.String
		}

		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", tableName)
	}

	return table, nil
}

// uniqueColumns returns the columns covered by a single-column unique
// index. Composite indexes do not make any one column unique.
func (si *sqliteIntrospector) uniqueColumns(ctx context.Context, tableName string) (map[string]bool, error) {
	rows, err := si.db.QueryContext(ctx,
		`SELECT name FROM pragma_index_list(?) WHERE "unique" = 1 AND origin <> 'pk'`, tableName)
	if err != nil {
		return nil, err
	}

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		indexes = append(indexes, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	unique := make(map[string]bool)
	for _, index := range indexes {
		var columns []string
		cols, err := si.db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?)`, index)
		if err != nil {
			return nil, err
		}
		for cols.Next() {
			var name string
			if err := cols.Scan(&name); err != nil {
				cols.Close()
				return nil, err
			}
			columns = append(columns, name)
		}
		cols.Close()

		if len(columns) == 1 {
			unique[columns[0]] = true
		}
	}
	return unique, nil
}

func (si *sqliteIntrospector) foreignKeys(ctx context.Context, tableName string) (map[string]*ForeignKeyInfo, error) {
	rows, err := si.db.QueryContext(ctx,
		`SELECT id, "table", "from", "to" FROM pragma_foreign_key_list(?)`, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	foreign := make(map[string]*ForeignKeyInfo)
	for rows.Next() {
		var id int
		var refTable, from string
		var to sql.NullString
		if err := rows.Scan(&id, &refTable, &from, &to); err != nil {
			return nil, err
		}
		foreign[from] = &ForeignKeyInfo{
			ReferencedTable:  refTable,
			ReferencedColumn: to.String,
			ConstraintName:   fmt.Sprintf("%s_fk%d", tableName, id),
		}
	}
	return foreign, rows.Err()
}

func (si *sqliteIntrospector) GetAllTables(ctx context.Context) ([]TableInfo, error) {
	tables, err := si.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	var result []TableInfo
	for _, tableName := range tables {
		table, err := si.InspectTable(ctx, tableName)
		if err != nil {
			return nil, fmt.Errorf("failed to inspect table %s: %w", tableName, err)
		}
		result = append(result, *table)
	}

	return result, nil
}

func (si *sqliteIntrospector) Close() error {
	return si.db.Close()
}
