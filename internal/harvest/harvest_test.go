package harvest

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemajeli/schemajeli/internal/catalog"
	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/types"
)

var system = types.Actor{Username: "system"}

func sourceDB(t *testing.T, statements ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sales.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range statements {
		_, err := db.Exec(stmt)
		require.NoError(t, err, stmt)
	}
	return path
}

func exec(t *testing.T, path, stmt string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(stmt)
	require.NoError(t, err)
}

func newCatalog(t *testing.T) *catalog.Service {
	t.Helper()
	ctx := context.Background()
	store, err := database.Open(ctx, "sqlite", filepath.Join(t.TempDir(), "catalog.db"), database.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	_, err = store.Migrate(ctx)
	require.NoError(t, err)
	return catalog.NewService(store, nil, nil, logger.Discard(), catalog.Options{})
}

var salesSchema = []string{
	`CREATE TABLE customers (
		id INTEGER PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		balance DECIMAL(10, 2) DEFAULT 0
	)`,
	`CREATE TABLE orders (
		id INTEGER PRIMARY KEY,
		customer_id INTEGER REFERENCES customers(id),
		note TEXT
	)`,
	`CREATE VIEW big_orders AS SELECT id FROM orders`,
}

func TestSQLiteIntrospection(t *testing.T) {
	ctx := context.Background()
	src, err := Open(ctx, "sqlite", sourceDB(t, salesSchema...))
	require.NoError(t, err)
	defer src.Close()

	name, err := src.DatabaseName(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sales", name)

	tables, err := src.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 3)

	assert.Equal(t, "big_orders", tables[0].Name)
	assert.Equal(t, types.TableTypeView, tables[0].Type)

	customers := tables[1]
	assert.Equal(t, types.TableTypeTable, customers.Type)
	require.Len(t, customers.Columns, 3)

	id, nameCol, balance := customers.Columns[0], customers.Columns[1], customers.Columns[2]
	assert.True(t, id.PrimaryKey)
	assert.False(t, id.Nullable)
	assert.Equal(t, "VARCHAR", nameCol.DataType)
	require.NotNil(t, nameCol.Length)
	assert.Equal(t, 100, *nameCol.Length)
	assert.False(t, nameCol.Nullable)
	assert.Equal(t, "DECIMAL", balance.DataType)
	require.NotNil(t, balance.Precision)
	require.NotNil(t, balance.Scale)
	assert.Equal(t, 10, *balance.Precision)
	assert.Equal(t, 2, *balance.Scale)
	assert.Equal(t, "0", balance.Default)
	assert.True(t, balance.Nullable)

	orders := tables[2]
	require.Len(t, orders.Columns, 3)
	assert.True(t, orders.Columns[1].ForeignKey)
	assert.False(t, orders.Columns[2].ForeignKey)
}

func TestImporterCreatesAndAppends(t *testing.T) {
	ctx := context.Background()
	svc := newCatalog(t)
	srv, err := svc.CreateServer(ctx, system, types.CreateServerInput{Name: "legacy", RDBMSType: types.RDBMSSQLite})
	require.NoError(t, err)

	path := sourceDB(t, salesSchema...)
	im := NewImporter(svc, logger.Discard())

	run := func() *Result {
		src, err := Open(ctx, "sqlite", path)
		require.NoError(t, err)
		defer src.Close()
		res, err := im.Run(ctx, system, src, Options{ServerID: srv.ID})
		require.NoError(t, err)
		return res
	}

	first := run()
	assert.True(t, first.DatabaseCreated)
	assert.Equal(t, "sales", first.DatabaseName)
	assert.Equal(t, 3, first.TablesCreated)
	assert.Equal(t, 7, first.ElementsCreated)

	tbl, err := svc.FindTableByName(ctx, first.DatabaseID, "customers")
	require.NoError(t, err)
	require.NotNil(t, tbl)
	elements, err := svc.TableElements(ctx, tbl.ID)
	require.NoError(t, err)
	require.Len(t, elements, 3)
	for i, name := range []string{"id", "name", "balance"} {
		assert.Equal(t, name, elements[i].Name)
		assert.Equal(t, i+1, elements[i].Position)
	}
	assert.True(t, elements[0].IsPrimaryKey)

	second := run()
	assert.False(t, second.DatabaseCreated)
	assert.Equal(t, first.DatabaseID, second.DatabaseID)
	assert.Equal(t, 3, second.TablesSkipped)
	assert.Equal(t, 0, second.ElementsCreated)
	assert.Equal(t, 7, second.ElementsExisting)

	exec(t, path, `ALTER TABLE orders ADD COLUMN shipped_at TIMESTAMP`)
	third := run()
	assert.Equal(t, 1, third.ElementsCreated)

	orders, err := svc.FindTableByName(ctx, first.DatabaseID, "orders")
	require.NoError(t, err)
	elements, err = svc.TableElements(ctx, orders.ID)
	require.NoError(t, err)
	require.Len(t, elements, 4)
	assert.Equal(t, "shipped_at", elements[3].Name)
	assert.Equal(t, 4, elements[3].Position)
}

func TestImporterRequiresLiveServer(t *testing.T) {
	ctx := context.Background()
	svc := newCatalog(t)

	src, err := Open(ctx, "sqlite", sourceDB(t, salesSchema...))
	require.NoError(t, err)
	defer src.Close()

	_, err = NewImporter(svc, logger.Discard()).Run(ctx, system, src, Options{ServerID: "00000000-0000-0000-0000-000000000000"})
	require.Error(t, err)
}

func TestParseSQLiteType(t *testing.T) {
	tests := []struct {
		declared  string
		name      string
		length    int
		precision int
		scale     int
	}{
		{"INTEGER", "INTEGER", 0, 0, 0},
		{"varchar(64)", "VARCHAR", 64, 0, 0},
		{"DECIMAL(12, 4)", "DECIMAL", 0, 12, 4},
		{"NUMERIC(8)", "NUMERIC", 0, 8, 0},
		{"", "BLOB", 0, 0, 0},
	}

	deref := func(p *int) int {
		if p == nil {
			return 0
		}
		return *p
	}
	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			name, length, precision, scale := parseSQLiteType(tt.declared)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.length, deref(length))
			assert.Equal(t, tt.precision, deref(precision))
			assert.Equal(t, tt.scale, deref(scale))
		})
	}
}

func TestOpenRejectsUnknownProvider(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "whatever")
	assert.Error(t, err)
}

func TestFormatPostgresType(t *testing.T) {
	tests := []struct {
		udt  string
		want string
	}{
		{"int4", "INTEGER"},
		{"int8", "BIGINT"},
		{"bpchar", "CHAR"},
		{"float8", "DOUBLE PRECISION"},
		{"timestamptz", "TIMESTAMP WITH TIME ZONE"},
		{"jsonb", "JSONB"},
		{"_text", "TEXT[]"},
		{"_int4", "INTEGER[]"},
		{"citext", "CITEXT"},
		{"_inet", "INET[]"},
	}
	for _, tt := range tests {
		t.Run(tt.udt, func(t *testing.T) {
			assert.Equal(t, tt.want, formatPostgresType(tt.udt))
		})
	}
}

func TestCleanPostgresDefault(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"'draft'::character varying", "draft"},
		{"'{}'::jsonb", "{}"},
		{"0", "0"},
		{"now()", "now()"},
		{"nextval('orders_id_seq'::regclass)", "nextval('orders_id_seq'::regclass)"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanPostgresDefault(tt.raw))
		})
	}
}

func TestFormatMySQLType(t *testing.T) {
	tests := []struct {
		dataType string
		want     string
	}{
		{"varchar", "VARCHAR"},
		{"LONGTEXT", "TEXT"},
		{"integer", "INT"},
		{"numeric", "DECIMAL"},
		{"Double", "DOUBLE"},
		{"enum", "ENUM"},
		{"geometry", "GEOMETRY"},
	}
	for _, tt := range tests {
		t.Run(tt.dataType, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMySQLType(tt.dataType))
		})
	}
}

func TestSkipTableAndIdentifiers(t *testing.T) {
	for _, name := range []string{"schema_migrations", "GOOSE_DB_VERSION", "_schemajeli_migrations", "sqlite_sequence"} {
		assert.True(t, skipTable(name), name)
	}
	assert.False(t, skipTable("orders"))

	assert.NoError(t, validIdentifier("order_items"))
	assert.NoError(t, validIdentifier("_tmp$1"))
	assert.Error(t, validIdentifier("orders; DROP TABLE users"))
	assert.Error(t, validIdentifier("1st"))
}
