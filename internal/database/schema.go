package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/schemajeli/schemajeli/internal/types"
)

// Table names of the catalog's own schema.
const (
	TableServers       = "servers"
	TableDatabases     = "catalog_databases"
	TableTables        = "catalog_tables"
	TableElements      = "elements"
	TableAbbreviations = "abbreviations"
	TableUsers         = "users"
	TableAuditLogs     = "audit_logs"
	TableSessions      = "sessions"
	TableMigrations    = "_schemajeli_migrations"
)

type dialectTypes struct {
	id        string
	name      string
	text      string
	json      string
	boolean   string
	integer   string
	bigint    string
	timestamp string
}

var columnTypes = map[Dialect]dialectTypes{
	Postgres: {
		id:        "UUID",
		name:      "VARCHAR(255)",
		text:      "TEXT",
		json:      "JSONB",
		boolean:   "BOOLEAN",
		integer:   "INTEGER",
		bigint:    "BIGINT",
		timestamp: "TIMESTAMP WITH TIME ZONE",
	},
	MySQL: {
		id:        "CHAR(36)",
		name:      "VARCHAR(255)",
		text:      "TEXT",
		json:      "JSON",
		boolean:   "BOOLEAN",
		integer:   "INT",
		bigint:    "BIGINT",
		timestamp: "DATETIME(6)",
	},
	SQLite: {
		id:        "TEXT",
		name:      "TEXT",
		text:      "TEXT",
		json:      "TEXT",
		boolean:   "BOOLEAN",
		integer:   "INTEGER",
		bigint:    "INTEGER",
		timestamp: "TIMESTAMP",
	},
}

type migration struct {
	id    string
	name  string
	build func(d Dialect) []string
}

var migrations = []migration{
	{id: "0001", name: "catalog", build: catalogDDL},
	{id: "0002", name: "auth_sessions", build: sessionsDDL},
}

func catalogDDL(d Dialect) []string {
	t := columnTypes[d]
	engine := ""
	if d == MySQL {
		engine = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	name %s NOT NULL,
	description %s NOT NULL,
	rdbms_type %s NOT NULL,
	host %s NOT NULL,
	port %s NOT NULL,
	location %s NOT NULL,
	status %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableServers, t.id, t.name, t.text, t.name, t.name, t.integer, t.name, t.name, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	server_id %s NOT NULL REFERENCES %s(id),
	name %s NOT NULL,
	description %s NOT NULL,
	purpose %s NOT NULL,
	status %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableDatabases, t.id, t.id, TableServers, t.name, t.text, t.text, t.name, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	database_id %s NOT NULL REFERENCES %s(id),
	name %s NOT NULL,
	description %s NOT NULL,
	table_type %s NOT NULL,
	row_count_estimate %s NOT NULL,
	status %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableTables, t.id, t.id, TableDatabases, t.name, t.text, t.name, t.bigint, t.name, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	table_id %s NOT NULL REFERENCES %s(id),
	name %s NOT NULL,
	description %s NOT NULL,
	data_type %s NOT NULL,
	length %s NULL,
	num_precision %s NULL,
	num_scale %s NULL,
	is_nullable %s NOT NULL,
	is_primary_key %s NOT NULL,
	is_foreign_key %s NOT NULL,
	default_value %s NOT NULL,
	position %s NOT NULL,
	deleted_position %s NULL,
	status %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableElements, t.id, t.id, TableTables, t.name, t.text, t.name,
			t.integer, t.integer, t.integer, t.boolean, t.boolean, t.boolean, t.text,
			t.integer, t.integer, t.name, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	source %s NOT NULL,
	abbreviation %s NOT NULL,
	definition %s NOT NULL,
	is_prime_class %s NOT NULL,
	category %s NOT NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableAbbreviations, t.id, t.name, t.name, t.text, t.boolean, t.name, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	username %s NOT NULL,
	email %s NOT NULL,
	password_hash %s NOT NULL,
	first_name %s NOT NULL,
	last_name %s NOT NULL,
	role %s NOT NULL,
	is_active %s NOT NULL,
	last_login_at %s NULL,
	created_at %s NOT NULL,
	updated_at %s NOT NULL,
	deleted_at %s NULL
)%s`, TableUsers, t.id, t.name, t.name, t.name, t.name, t.name, t.name, t.boolean, t.timestamp, t.timestamp, t.timestamp, t.timestamp, engine),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id %s PRIMARY KEY,
	entity_type %s NOT NULL,
	entity_id %s NOT NULL,
	action %s NOT NULL,
	user_id %s NULL,
	changes %s NOT NULL,
	created_at %s NOT NULL
)%s`, TableAuditLogs, t.id, t.name, t.id, t.name, t.id, t.json, t.timestamp, engine),
	}

	stmts = append(stmts,
		createIndex(d, "idx_databases_server", TableDatabases, "server_id", false),
		createIndex(d, "idx_tables_database", TableTables, "database_id", false),
		createIndex(d, "idx_elements_table_position", TableElements, "table_id, position", false),
		createIndex(d, "idx_audit_logs_entity", TableAuditLogs, "entity_type, entity_id", false),
		createIndex(d, "idx_audit_logs_created", TableAuditLogs, "created_at", false),
	)

	if d.SupportsPartialIndexes() {
		stmts = append(stmts,
			createIndex(d, "uq_servers_name", TableServers, "name", true),
			createIndex(d, "uq_databases_server_name", TableDatabases, "server_id, name", true),
			createIndex(d, "uq_tables_database_name", TableTables, "database_id, name", true),
			createIndex(d, "uq_elements_table_name", TableElements, "table_id, name", true),
			createIndex(d, "uq_abbreviations_abbreviation", TableAbbreviations, "abbreviation", true),
			createIndex(d, "uq_users_username", TableUsers, "username", true),
			createIndex(d, "uq_users_email", TableUsers, "email", true),
		)
	}

	return stmts
}

func sessionsDDL(d Dialect) []string {
	t := columnTypes[d]
	engine := ""
	if d == MySQL {
		engine = " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4"
	}
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	token_hash CHAR(64) PRIMARY KEY,
	user_id %s NOT NULL REFERENCES %s(id),
	expires_at %s NOT NULL,
	created_at %s NOT NULL
)%s`, TableSessions, t.id, TableUsers, t.timestamp, t.timestamp, engine),
		createIndex(d, "idx_sessions_user", TableSessions, "user_id", false),
	}
}

// createIndex renders an index statement. Unique indexes only cover
// non-deleted rows, which MySQL cannot express; callers skip them there.
func createIndex(d Dialect, name, table, columns string, unique bool) string {
	kind := "INDEX"
	if unique {
		kind = "UNIQUE INDEX"
	}
	where := ""
	if unique && d.SupportsPartialIndexes() {
		where = " WHERE deleted_at IS NULL"
	}
	if d == MySQL {
		// MySQL has no IF NOT EXISTS for indexes; Migrate only runs each step once.
		return fmt.Sprintf("CREATE %s %s ON %s (%s)", kind, name, table, columns)
	}
	return fmt.Sprintf("CREATE %s IF NOT EXISTS %s ON %s (%s)%s", kind, name, table, columns, where)
}

func checksum(stmts []string) string {
	sum := sha256.Sum256([]byte(strings.Join(stmts, ";\n")))
	return hex.EncodeToString(sum[:])
}

func (s *Store) createMigrationsTable(ctx context.Context) error {
	t := columnTypes[s.dialect]
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id VARCHAR(64) PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	checksum VARCHAR(64) NOT NULL,
	applied_at %s NOT NULL
)`, TableMigrations, t.timestamp)
	_, err := s.db.ExecContext(ctx, query)
	return err
}

func (s *Store) appliedMigrations(ctx context.Context) (map[string]time.Time, error) {
	applied := make(map[string]time.Time)

	rows, err := Query(ctx, s.db, s.qb.Select("id", "applied_at").From(TableMigrations).OrderBy("id"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var appliedAt time.Time
		if err := rows.Scan(&id, &appliedAt); err != nil {
			return nil, err
		}
		applied[id] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies every catalog migration that has not been recorded yet and
// returns the ids it applied.
func (s *Store) Migrate(ctx context.Context) ([]string, error) {
	if err := s.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}

	var ran []string
	for _, m := range migrations {
		if _, ok := applied[m.id]; ok {
			continue
		}

		stmts := m.build(s.dialect)
		err := s.WithTx(ctx, func(tx *sql.Tx) error {
			for i, stmt := range stmts {
				stmt = strings.TrimSpace(stmt)
				if stmt == "" {
					continue
				}
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute statement %d of migration %s: %w", i+1, m.id, err)
				}
			}

			_, err := Exec(ctx, tx, s.qb.Insert(TableMigrations).
				Columns("id", "name", "checksum", "applied_at").
				Values(m.id, m.name, checksum(stmts), time.Now().UTC()))
			if err != nil {
				return fmt.Errorf("failed to record migration %s: %w", m.id, err)
			}
			return nil
		})
		if err != nil {
			return ran, err
		}
		ran = append(ran, m.id)
	}

	return ran, nil
}

// MigrationStatus lists every known migration with whether it has been applied.
func (s *Store) MigrationStatus(ctx context.Context) ([]types.Migration, error) {
	if err := s.createMigrationsTable(ctx); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.appliedMigrations(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]types.Migration, 0, len(migrations))
	for _, m := range migrations {
		item := types.Migration{
			ID:       m.id,
			Name:     m.name,
			Checksum: checksum(m.build(s.dialect)),
		}
		if at, ok := applied[m.id]; ok {
			item.Applied = true
			item.AppliedAt = &at
		}
		status = append(status, item)
	}
	return status, nil
}

// Script renders the full catalog DDL for a dialect, for `migrate --print`.
func Script(d Dialect) string {
	var b strings.Builder
	for _, m := range migrations {
		fmt.Fprintf(&b, "-- %s_%s\n", m.id, m.name)
		for _, stmt := range m.build(d) {
			b.WriteString(stmt)
			b.WriteString(";\n\n")
		}
	}
	return b.String()
}
