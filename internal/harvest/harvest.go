// Package harvest reads the structure of a live database and imports it into
// the catalog.
package harvest

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/schemajeli/schemajeli/internal/database"
	"github.com/schemajeli/schemajeli/internal/types"
)

// Column is one column as reported by the source database, in ordinal order.
type Column struct {
	Name         string
	DataType     string
	Length       *int
	Precision    *int
	Scale        *int
	Nullable     bool
	PrimaryKey   bool
	ForeignKey   bool
	Default      string
	Comment      string
	OrdinalIndex int
}

type Table struct {
	Name     string
	Type     types.TableType
	Comment  string
	RowCount int64
	Columns  []Column
}

// Introspector lists the tables of one connected database.
type Introspector interface {
	DatabaseName(ctx context.Context) (string, error)
	Tables(ctx context.Context) ([]Table, error)
	Close() error
}

// Open connects an introspector for provider. The URL forms are the same as
// the catalog store accepts.
func Open(ctx context.Context, provider, url string) (Introspector, error) {
	dialect, err := database.ParseDialect(provider)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case database.Postgres:
		return openPostgres(ctx, url)
	case database.MySQL:
		return openMySQL(ctx, dialect.NormalizeDSN(url))
	case database.SQLite:
		return openSQLite(ctx, url)
	default:
		return nil, fmt.Errorf("harvest is not supported for %s", dialect)
	}
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_$]*$`)

// validIdentifier guards names that must be spliced into PRAGMA statements.
func validIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid identifier: %s", name)
	}
	return nil
}

// skipTable hides the bookkeeping tables of the catalog itself and of common
// migration tools.
func skipTable(name string) bool {
	lower := strings.ToLower(name)
	switch lower {
	case "schema_migrations", "goose_db_version", database.TableMigrations:
		return true
	}
	return strings.HasPrefix(lower, "sqlite_")
}

func intPtr(v int64, valid bool) *int {
	if !valid {
		return nil
	}
	n := int(v)
	return &n
}
