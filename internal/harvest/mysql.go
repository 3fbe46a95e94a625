package harvest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/schemajeli/schemajeli/internal/types"
)

type mysqlSource struct {
	db *sql.DB
}

var mysqlTypes = map[string]string{
	"varchar": "VARCHAR", "char": "CHAR",
	"text": "TEXT", "longtext": "TEXT", "mediumtext": "TEXT", "tinytext": "TEXT",
	"int": "INT", "integer": "INT", "bigint": "BIGINT", "smallint": "SMALLINT", "tinyint": "TINYINT",
	"datetime": "DATETIME", "timestamp": "TIMESTAMP", "date": "DATE", "time": "TIME",
	"decimal": "DECIMAL", "numeric": "DECIMAL", "float": "FLOAT", "double": "DOUBLE",
	"json": "JSON", "blob": "BLOB", "binary": "BINARY", "varbinary": "VARBINARY",
}

func openMySQL(ctx context.Context, dsn string) (*mysqlSource, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxLifetime(15 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to mysql: %w", err)
	}
	return &mysqlSource{db: db}, nil
}

func (m *mysqlSource) Close() error {
	return m.db.Close()
}

func (m *mysqlSource) DatabaseName(ctx context.Context) (string, error) {
	var name sql.NullString
	if err := m.db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name); err != nil {
		return "", fmt.Errorf("failed to read database name: %w", err)
	}
	if !name.Valid {
		return "", fmt.Errorf("connection URL does not select a database")
	}
	return name.String, nil
}

func (m *mysqlSource) Tables(ctx context.Context) ([]Table, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT table_name, table_type, COALESCE(table_comment, ''), COALESCE(table_rows, 0)
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []Table
	index := map[string]int{}
	for rows.Next() {
		var t Table
		var kind string
		if err := rows.Scan(&t.Name, &kind, &t.Comment, &t.RowCount); err != nil {
			return nil, err
		}
		if skipTable(t.Name) {
			continue
		}
		t.Type = types.TableTypeTable
		if kind == "VIEW" {
			t.Type = types.TableTypeView
			// views report "VIEW" as their comment
			t.Comment = ""
		}
		index[t.Name] = len(tables)
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return tables, nil
	}

	if err := m.loadColumns(ctx, tables, index); err != nil {
		return nil, err
	}
	return tables, nil
}

func (m *mysqlSource) loadColumns(ctx context.Context, tables []Table, index map[string]int) error {
	rows, err := m.db.QueryContext(ctx, `
		SELECT
			c.table_name,
			c.column_name,
			c.data_type,
			c.is_nullable,
			c.column_default,
			c.character_maximum_length,
			c.numeric_precision,
			c.numeric_scale,
			c.column_key = 'PRI',
			EXISTS (
				SELECT 1 FROM information_schema.key_column_usage k
				WHERE k.table_schema = c.table_schema
				  AND k.table_name = c.table_name
				  AND k.column_name = c.column_name
				  AND k.referenced_table_name IS NOT NULL
			),
			c.column_comment,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = DATABASE()
		ORDER BY c.table_name, c.ordinal_position
	`)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, dataType, nullable string
			col                           Column
			def                           sql.NullString
			length, prec, sc              sql.NullInt64
		)
		if err := rows.Scan(&tableName, &col.Name, &dataType, &nullable, &def,
			&length, &prec, &sc, &col.PrimaryKey, &col.ForeignKey, &col.Comment, &col.OrdinalIndex); err != nil {
			return err
		}
		i, ok := index[tableName]
		if !ok {
			continue
		}

		col.DataType = formatMySQLType(dataType)
		col.Nullable = nullable == "YES"
		col.Length = intPtr(length.Int64, length.Valid)
		col.Precision = intPtr(prec.Int64, prec.Valid)
		col.Scale = intPtr(sc.Int64, sc.Valid)
		if def.Valid {
			col.Default = def.String
		}
		tables[i].Columns = append(tables[i].Columns, col)
	}
	return rows.Err()
}

func formatMySQLType(dataType string) string {
	if mapped, ok := mysqlTypes[strings.ToLower(dataType)]; ok {
		return mapped
	}
	return strings.ToUpper(dataType)
}
