package harvest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/schemajeli/schemajeli/internal/types"
)

type sqliteSource struct {
	db   *sql.DB
	path string
}

// sizedType matches declarations such as VARCHAR(255) or DECIMAL(10, 2).
var sizedType = regexp.MustCompile(`^\s*([A-Za-z ]+?)\s*\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)\s*$`)

func openSQLite(ctx context.Context, url string) (*sqliteSource, error) {
	path := strings.TrimPrefix(strings.TrimPrefix(url, "sqlite://"), "sqlite3://")
	file, _, _ := strings.Cut(path, "?")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	return &sqliteSource{db: db, path: file}, nil
}

func (s *sqliteSource) Close() error {
	return s.db.Close()
}

// DatabaseName is the file name without its extension.
func (s *sqliteSource) DatabaseName(context.Context) (string, error) {
	base := filepath.Base(s.path)
	return strings.TrimSuffix(base, filepath.Ext(base)), nil
}

func (s *sqliteSource) Tables(ctx context.Context) ([]Table, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT name, type FROM sqlite_master WHERE type IN ('table', 'view') ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	var tables []Table
	for rows.Next() {
		var t Table
		var kind string
		if err := rows.Scan(&t.Name, &kind); err != nil {
			rows.Close()
			return nil, err
		}
		if skipTable(t.Name) {
			continue
		}
		t.Type = types.TableTypeTable
		if kind == "view" {
			t.Type = types.TableTypeView
		}
		tables = append(tables, t)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// the single connection must be released before the PRAGMA reads
	for i := range tables {
		cols, err := s.columns(ctx, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to get columns for table %s: %w", tables[i].Name, err)
		}
		tables[i].Columns = cols
	}
	return tables, nil
}

func (s *sqliteSource) columns(ctx context.Context, table string) ([]Column, error) {
	if err := validIdentifier(table); err != nil {
		return nil, err
	}
	foreign, err := s.foreignKeyColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info("%s")`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			col              Column
			declared         string
			def              sql.NullString
		)
		if err := rows.Scan(&cid, &col.Name, &declared, &notNull, &def, &pk); err != nil {
			return nil, err
		}
		col.OrdinalIndex = cid + 1
		col.DataType, col.Length, col.Precision, col.Scale = parseSQLiteType(declared)
		col.Nullable = notNull == 0 && pk == 0
		col.PrimaryKey = pk > 0
		col.ForeignKey = foreign[col.Name]
		if def.Valid {
			col.Default = strings.Trim(def.String, "'")
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (s *sqliteSource) foreignKeyColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA foreign_key_list("%s")`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols := map[string]bool{}
	for rows.Next() {
		var (
			id, seq                   int
			parent, from              string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &parent, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		cols[from] = true
	}
	return cols, rows.Err()
}

// parseSQLiteType splits a declared column type into its name and sizes.
// A single size is a length for character types and a precision otherwise.
func parseSQLiteType(declared string) (string, *int, *int, *int) {
	m := sizedType.FindStringSubmatch(declared)
	if m == nil {
		if declared == "" {
			return "BLOB", nil, nil, nil
		}
		return strings.ToUpper(strings.TrimSpace(declared)), nil, nil, nil
	}

	name := strings.ToUpper(strings.TrimSpace(m[1]))
	first, _ := strconv.Atoi(m[2])
	if m[3] != "" {
		second, _ := strconv.Atoi(m[3])
		return name, nil, &first, &second
	}
	if strings.Contains(name, "CHAR") || strings.Contains(name, "TEXT") || strings.Contains(name, "BINARY") {
		return name, &first, nil, nil
	}
	return name, nil, &first, nil
}
