package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/schemajeli/schemajeli/internal/catalog"
	"github.com/schemajeli/schemajeli/internal/logger"
	"github.com/schemajeli/schemajeli/internal/types"
)

type Options struct {
	ServerID string
	// DatabaseName overrides the name reported by the source.
	DatabaseName string
}

// Result summarizes one harvest run.
type Result struct {
	DatabaseID       string `json:"databaseId"`
	DatabaseName     string `json:"databaseName"`
	DatabaseCreated  bool   `json:"databaseCreated"`
	TablesCreated    int    `json:"tablesCreated"`
	TablesSkipped    int    `json:"tablesSkipped"`
	ElementsCreated  int    `json:"elementsCreated"`
	ElementsExisting int    `json:"elementsExisting"`
}

// Importer writes harvested structure into the catalog. Every write goes
// through the catalog service, so it is audited and guarded like any other.
type Importer struct {
	catalog *catalog.Service
	logger  *logger.Logger
}

func NewImporter(svc *catalog.Service, log *logger.Logger) *Importer {
	return &Importer{catalog: svc, logger: log}
}

// Run imports every table of src under the catalog server opts.ServerID.
// Existing tables keep their elements; columns missing from the catalog are
// appended in source order.
func (im *Importer) Run(ctx context.Context, actor types.Actor, src Introspector, opts Options) (*Result, error) {
	if _, err := im.catalog.GetServer(ctx, opts.ServerID, false); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(opts.DatabaseName)
	if name == "" {
		var err error
		if name, err = src.DatabaseName(ctx); err != nil {
			return nil, err
		}
	}

	tables, err := src.Tables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read source schema: %w", err)
	}

	res := &Result{DatabaseName: name}
	db, err := im.catalog.FindDatabaseByName(ctx, opts.ServerID, name)
	if err != nil {
		return nil, err
	}
	if db == nil {
		db, err = im.catalog.CreateDatabase(ctx, actor, types.CreateDatabaseInput{
			ServerID: opts.ServerID,
			Name:     name,
			Purpose:  "Harvested",
		})
		if err != nil {
			return nil, err
		}
		res.DatabaseCreated = true
		im.logger.Infof("Created database %s", name)
	}
	res.DatabaseID = db.ID

	for _, t := range tables {
		if err := im.importTable(ctx, actor, db.ID, t, res); err != nil {
			return res, fmt.Errorf("failed to import table %s: %w", t.Name, err)
		}
	}
	return res, nil
}

func (im *Importer) importTable(ctx context.Context, actor types.Actor, databaseID string, t Table, res *Result) error {
	existing, err := im.catalog.FindTableByName(ctx, databaseID, t.Name)
	if err != nil {
		return err
	}

	known := map[string]bool{}
	table := existing
	if table == nil {
		table, err = im.catalog.CreateTable(ctx, actor, types.CreateTableInput{
			DatabaseID:       databaseID,
			Name:             t.Name,
			Description:      t.Comment,
			TableType:        t.Type,
			RowCountEstimate: t.RowCount,
		})
		if err != nil {
			return err
		}
		res.TablesCreated++
		im.logger.Debugf("Created table %s", t.Name)
	} else {
		res.TablesSkipped++
		elements, err := im.catalog.TableElements(ctx, table.ID)
		if err != nil {
			return err
		}
		for _, e := range elements {
			known[e.Name] = true
		}
	}

	for _, col := range t.Columns {
		if known[col.Name] {
			res.ElementsExisting++
			continue
		}
		if _, err := im.catalog.CreateElement(ctx, actor, types.CreateElementInput{
			TableID:      table.ID,
			Name:         col.Name,
			Description:  col.Comment,
			DataType:     col.DataType,
			Length:       col.Length,
			Precision:    col.Precision,
			Scale:        col.Scale,
			IsNullable:   col.Nullable,
			IsPrimaryKey: col.PrimaryKey,
			IsForeignKey: col.ForeignKey,
			DefaultValue: col.Default,
		}); err != nil {
			return err
		}
		res.ElementsCreated++
	}
	return nil
}
