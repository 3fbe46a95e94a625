// Package export writes catalog snapshots to disk.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/schemajeli/schemajeli/internal/types"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	// FormatCSV flattens the catalog to one row per element, the usual shape
	// of a printed data dictionary. Abbreviations are not included.
	FormatCSV Format = "csv"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case "yml", FormatYAML:
		return FormatYAML, nil
	case FormatCSV:
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format: %s", s)
	}
}

// SnapshotSource is satisfied by the catalog service.
type SnapshotSource interface {
	Snapshot(ctx context.Context, version string) (*types.CatalogSnapshot, error)
}

// PerformExport snapshots the catalog and writes it to
// <dir>/catalog_<timestamp>.<format>, returning the file path.
func PerformExport(ctx context.Context, src SnapshotSource, dir string, format Format, version string) (string, error) {
	snap, err := src.Snapshot(ctx, version)
	if err != nil {
		return "", fmt.Errorf("failed to read catalog: %w", err)
	}

	var data []byte
	switch format {
	case FormatYAML:
		data, err = encodeYAML(snap)
	case FormatCSV:
		data, err = encodeCSV(snap)
	default:
		format = FormatJSON
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(dir, fmt.Sprintf("catalog_%s.%s", timestamp, format))
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

func encodeYAML(snap *types.CatalogSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

var csvHeader = []string{
	"server", "database", "table", "table_type", "position", "element", "data_type",
	"length", "precision", "scale", "nullable", "primary_key", "foreign_key", "default", "description",
}

func encodeCSV(snap *types.CatalogSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}

	for _, srv := range snap.Servers {
		for _, db := range srv.Databases {
			for _, t := range db.Tables {
				for _, e := range t.Elements {
					row := []string{
						srv.Name, db.Name, t.Name, string(t.TableType), strconv.Itoa(e.Position),
						e.Name, e.DataType, optional(e.Length), optional(e.Precision), optional(e.Scale),
						strconv.FormatBool(e.IsNullable), strconv.FormatBool(e.IsPrimaryKey),
						strconv.FormatBool(e.IsForeignKey), e.DefaultValue, e.Description,
					}
					if err := w.Write(row); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}

func optional(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
