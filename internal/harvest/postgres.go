package harvest

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schemajeli/schemajeli/internal/types"
)

type postgresSource struct {
	pool *pgxpool.Pool
}

var postgresTypes = map[string]string{
	"varchar": "VARCHAR", "bpchar": "CHAR", "text": "TEXT",
	"int2": "SMALLINT", "int4": "INTEGER", "int8": "BIGINT",
	"bool": "BOOLEAN", "numeric": "NUMERIC", "float4": "REAL", "float8": "DOUBLE PRECISION",
	"timestamptz": "TIMESTAMP WITH TIME ZONE", "timestamp": "TIMESTAMP",
	"date": "DATE", "time": "TIME", "uuid": "UUID", "json": "JSON", "jsonb": "JSONB", "bytea": "BYTEA",
}

func openPostgres(ctx context.Context, url string) (*postgresSource, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection URL: %w", err)
	}
	config.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeExec
	config.MaxConns = 2
	config.MinConns = 0
	config.MaxConnLifetime = 15 * time.Minute
	config.MaxConnIdleTime = 3 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &postgresSource{pool: pool}, nil
}

func (p *postgresSource) Close() error {
	p.pool.Close()
	return nil
}

func (p *postgresSource) DatabaseName(ctx context.Context) (string, error) {
	var name string
	if err := p.pool.QueryRow(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return "", fmt.Errorf("failed to read database name: %w", err)
	}
	return name, nil
}

func (p *postgresSource) Tables(ctx context.Context) ([]Table, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT c.relname,
			c.relkind,
			COALESCE(obj_description(c.oid, 'pg_class'), ''),
			GREATEST(c.reltuples, 0)::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = current_schema()
		  AND c.relkind IN ('r', 'p', 'v', 'm')
		ORDER BY c.relname
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
		switch kind {
		case "v":
			t.Type = types.TableTypeView
		case "m":
			t.Type = types.TableTypeMaterializedView
		default:
			t.Type = types.TableTypeTable
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

	if err := p.loadColumns(ctx, tables, index); err != nil {
		return nil, err
	}
	return tables, nil
}

func (p *postgresSource) loadColumns(ctx context.Context, tables []Table, index map[string]int) error {
	keys, err := p.keyColumns(ctx)
	if err != nil {
		return err
	}

	// information_schema.columns omits materialized views, so read pg_attribute.
	rows, err := p.pool.Query(ctx, `
		SELECT c.relname,
			a.attname,
			t.typname,
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			information_schema._pg_char_max_length(a.atttypid, a.atttypmod),
			information_schema._pg_numeric_precision(a.atttypid, a.atttypmod),
			information_schema._pg_numeric_scale(a.atttypid, a.atttypmod),
			COALESCE(col_description(c.oid, a.attnum), ''),
			a.attnum
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_type t ON t.oid = a.atttypid
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = current_schema()
		  AND c.relkind IN ('r', 'p', 'v', 'm')
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY c.relname, a.attnum
	`)
	if err != nil {
		return fmt.Errorf("failed to read columns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			tableName, udtName string
			col                Column
			def                sql.NullString
			length, prec, sc   sql.NullInt64
		)
		if err := rows.Scan(&tableName, &col.Name, &udtName, &col.Nullable, &def,
			&length, &prec, &sc, &col.Comment, &col.OrdinalIndex); err != nil {
			return err
		}
		i, ok := index[tableName]
		if !ok {
			continue
		}

		col.DataType = formatPostgresType(udtName)
		col.Length = intPtr(length.Int64, length.Valid)
		col.Precision = intPtr(prec.Int64, prec.Valid)
		col.Scale = intPtr(sc.Int64, sc.Valid)
		if def.Valid {
			col.Default = cleanPostgresDefault(def.String)
		}
		k := keys[tableName+"."+col.Name]
		col.PrimaryKey = k.primary
		col.ForeignKey = k.foreign

		tables[i].Columns = append(tables[i].Columns, col)
	}
	return rows.Err()
}

type keyFlags struct {
	primary bool
	foreign bool
}

func (p *postgresSource) keyColumns(ctx context.Context) (map[string]keyFlags, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT src.relname, a.attname, con.contype
		FROM pg_constraint con
		JOIN pg_class src ON src.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = src.relnamespace
		CROSS JOIN LATERAL UNNEST(con.conkey) AS k(attnum)
		JOIN pg_attribute a ON a.attrelid = src.oid AND a.attnum = k.attnum
		WHERE n.nspname = current_schema()
		  AND con.contype IN ('p', 'f')
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read constraints: %w", err)
	}
	defer rows.Close()

	keys := map[string]keyFlags{}
	for rows.Next() {
		var table, column, kind string
		if err := rows.Scan(&table, &column, &kind); err != nil {
			return nil, err
		}
		k := keys[table+"."+column]
		if kind == "p" {
			k.primary = true
		} else {
			k.foreign = true
		}
		keys[table+"."+column] = k
	}
	return keys, rows.Err()
}

func formatPostgresType(udtName string) string {
	if strings.HasPrefix(udtName, "_") {
		return formatPostgresType(strings.TrimPrefix(udtName, "_")) + "[]"
	}
	if mapped, ok := postgresTypes[udtName]; ok {
		return mapped
	}
	return strings.ToUpper(udtName)
}

// cleanPostgresDefault strips the type casts postgres adds to literal defaults.
func cleanPostgresDefault(def string) string {
	if strings.HasPrefix(def, "nextval(") {
		return def
	}
	if i := strings.Index(def, "::"); i > 0 {
		def = def[:i]
	}
	return strings.Trim(def, "'")
}
