package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	store, err := Open(ctx, "sqlite", filepath.Join(t.TempDir(), "catalog.db"), Options{})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	ran, err := store.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001", "0002"}, ran)

	ran, err = store.Migrate(ctx)
	require.NoError(t, err)
	assert.Empty(t, ran)

	status, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	for _, m := range status {
		assert.True(t, m.Applied, m.ID)
		assert.NotNil(t, m.AppliedAt)
		assert.Len(t, m.Checksum, 64)
	}
}

func TestPartialUniqueIndexIgnoresDeletedRows(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Migrate(ctx)
	require.NoError(t, err)

	now := time.Now().UTC()
	insert := func(id string, deletedAt any) error {
		_, err := Exec(ctx, store.DB(), store.Builder().Insert(TableServers).
			Columns("id", "name", "description", "rdbms_type", "host", "port", "location", "status", "created_at", "updated_at", "deleted_at").
			Values(id, "S1", "", "POSTGRESQL", "", 0, "", "ACTIVE", now, now, deletedAt))
		return err
	}

	require.NoError(t, insert("a", now))
	require.NoError(t, insert("b", nil))

	err = insert("c", nil)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	_, err := store.Migrate(ctx)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		_, err := Exec(ctx, tx, store.Builder().Insert(TableAbbreviations).
			Columns("id", "source", "abbreviation", "definition", "is_prime_class", "category", "created_at", "updated_at").
			Values("x", "Customer", "CUST", "Customer", true, "", now, now))
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := Count(ctx, store.DB(), store.Builder().Select("COUNT(*)").From(TableAbbreviations))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDialects(t *testing.T) {
	d, err := ParseDialect("postgresql")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)
	assert.Equal(t, "FOR UPDATE", d.LockSuffix())

	d, err = ParseDialect("sqlite3")
	require.NoError(t, err)
	assert.Empty(t, d.LockSuffix())

	_, err = ParseDialect("oracle")
	assert.Error(t, err)

	assert.Equal(t, "user:pw@tcp(db:3306)/catalog?parseTime=true", MySQL.NormalizeDSN("mysql://user:pw@db:3306/catalog"))
	assert.Equal(t, "user:pw@tcp(db:3306)/catalog?tls=false&parseTime=true", MySQL.NormalizeDSN("mysql://user:pw@db:3306/catalog?sslmode=disable"))
	assert.True(t, strings.HasPrefix(SQLite.NormalizeDSN("sqlite://./data.db"), "./data.db?_pragma=foreign_keys(1)"))
	assert.Equal(t, "file:x.db?mode=memory", SQLite.NormalizeDSN("file:x.db?mode=memory"))
}

func TestScriptRendersEveryDialect(t *testing.T) {
	for _, d := range []Dialect{Postgres, MySQL, SQLite} {
		script := Script(d)
		assert.Contains(t, script, "CREATE TABLE IF NOT EXISTS catalog_tables")
		assert.Contains(t, script, "REFERENCES catalog_databases(id)")
		if d == MySQL {
			assert.NotContains(t, script, "WHERE deleted_at IS NULL")
			assert.Contains(t, script, "ENGINE=InnoDB")
		} else {
			assert.Contains(t, script, "WHERE deleted_at IS NULL")
		}
	}
}

// mysqlReserved holds the MySQL 8 reserved words; an unquoted identifier
// from this list fails to parse.
var mysqlReserved = strings.Fields(`
ACCESSIBLE ADD ALL ALTER ANALYZE AND AS ASC ASENSITIVE BEFORE BETWEEN BIGINT BINARY BLOB BOTH BY
CALL CASCADE CASE CHANGE CHAR CHARACTER CHECK COLLATE COLUMN CONDITION CONSTRAINT CONTINUE CONVERT
CREATE CROSS CUBE CUME_DIST CURRENT_DATE CURRENT_TIME CURRENT_TIMESTAMP CURRENT_USER CURSOR DATABASE
DATABASES DAY_HOUR DAY_MICROSECOND DAY_MINUTE DAY_SECOND DEC DECIMAL DECLARE DEFAULT DELAYED DELETE
DENSE_RANK DESC DESCRIBE DETERMINISTIC DISTINCT DISTINCTROW DIV DOUBLE DROP DUAL EACH ELSE ELSEIF
EMPTY ENCLOSED ESCAPED EXCEPT EXISTS EXIT EXPLAIN FALSE FETCH FIRST_VALUE FLOAT FLOAT4 FLOAT8 FOR
FORCE FOREIGN FROM FULLTEXT FUNCTION GENERATED GET GRANT GROUP GROUPING GROUPS HAVING HIGH_PRIORITY
HOUR_MICROSECOND HOUR_MINUTE HOUR_SECOND IF IGNORE IN INDEX INFILE INNER INOUT INSENSITIVE INSERT INT
INT1 INT2 INT3 INT4 INT8 INTEGER INTERSECT INTERVAL INTO IO_AFTER_GTIDS IO_BEFORE_GTIDS IS ITERATE
JOIN JSON_TABLE KEY KEYS KILL LAG LAST_VALUE LATERAL LEAD LEADING LEAVE LEFT LIKE LIMIT LINEAR LINES
LOAD LOCALTIME LOCALTIMESTAMP LOCK LONG LONGBLOB LONGTEXT LOOP LOW_PRIORITY MASTER_BIND
MASTER_SSL_VERIFY_SERVER_CERT MATCH MAXVALUE MEDIUMBLOB MEDIUMINT MEDIUMTEXT MIDDLEINT
MINUTE_MICROSECOND MINUTE_SECOND MOD MODIFIES NATURAL NOT NO_WRITE_TO_BINLOG NTH_VALUE NTILE NULL
NUMERIC OF ON OPTIMIZE OPTIMIZER_COSTS OPTION OPTIONALLY OR ORDER OUT OUTER OUTFILE OVER PARTITION
PERCENT_RANK PRECISION PRIMARY PROCEDURE PURGE RANGE RANK READ READS READ_WRITE REAL RECURSIVE
REFERENCES REGEXP RELEASE RENAME REPEAT REPLACE REQUIRE RESIGNAL RESTRICT RETURN REVOKE RIGHT RLIKE
ROW ROWS ROW_NUMBER SCHEMA SCHEMAS SECOND_MICROSECOND SELECT SENSITIVE SEPARATOR SET SHOW SIGNAL
SMALLINT SPATIAL SPECIFIC SQL SQLEXCEPTION SQLSTATE SQLWARNING SQL_BIG_RESULT SQL_CALC_FOUND_ROWS
SQL_SMALL_RESULT SSL STARTING STORED STRAIGHT_JOIN SYSTEM TABLE TERMINATED THEN TINYBLOB TINYINT
TINYTEXT TO TRAILING TRIGGER TRUE UNDO UNION UNIQUE UNLOCK UNSIGNED UPDATE USAGE USE USING UTC_DATE
UTC_TIME UTC_TIMESTAMP VALUES VARBINARY VARCHAR VARCHARACTER VARYING VIRTUAL WHEN WHERE WHILE WINDOW
WITH WRITE XOR YEAR_MONTH ZEROFILL`)

var (
	createdTable   = regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+) \(`)
	referenceTable = regexp.MustCompile(`REFERENCES (\w+)\(`)
	columnDef      = regexp.MustCompile(`(?m)^\t(\w+) `)
	indexDef       = regexp.MustCompile(`^CREATE (?:UNIQUE )?INDEX (\w+) ON (\w+) \(([^)]*)\)$`)
)

func TestMySQLIdentifiersAreNotReserved(t *testing.T) {
	reserved := map[string]bool{}
	for _, w := range mysqlReserved {
		reserved[w] = true
	}

	var stmts []string
	for _, m := range migrations {
		stmts = append(stmts, m.build(MySQL)...)
	}

	identifiers := 0
	check := func(stmt, ident string) {
		identifiers++
		assert.False(t, reserved[strings.ToUpper(ident)], "%q is reserved in MySQL:\n%s", ident, stmt)
	}

	for _, stmt := range stmts {
		if strings.HasPrefix(stmt, "CREATE TABLE") {
			m := createdTable.FindStringSubmatch(stmt)
			require.NotNil(t, m, stmt)
			check(stmt, m[1])
			for _, ref := range referenceTable.FindAllStringSubmatch(stmt, -1) {
				check(stmt, ref[1])
			}
			for _, col := range columnDef.FindAllStringSubmatch(stmt, -1) {
				check(stmt, col[1])
			}
			continue
		}
		m := indexDef.FindStringSubmatch(stmt)
		require.NotNil(t, m, "unexpected MySQL statement: %s", stmt)
		check(stmt, m[1])
		check(stmt, m[2])
		for _, col := range strings.Split(m[3], ",") {
			check(stmt, strings.TrimSpace(col))
		}
	}

	for _, table := range []string{TableServers, TableDatabases, TableTables, TableElements,
		TableAbbreviations, TableUsers, TableAuditLogs, TableSessions, TableMigrations} {
		check("table constant", table)
	}
	assert.Greater(t, identifiers, 60)
}
