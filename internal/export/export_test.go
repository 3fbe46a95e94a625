package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/schemajeli/schemajeli/internal/types"
)

type staticSource struct {
	snap *types.CatalogSnapshot
	err  error
}

func (s staticSource) Snapshot(_ context.Context, version string) (*types.CatalogSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snap := *s.snap
	snap.Version = version
	return &snap, nil
}

func sampleSnapshot() *types.CatalogSnapshot {
	length := 100
	return &types.CatalogSnapshot{
		Timestamp: "2024-01-01T00:00:00Z",
		Servers: []types.ServerSnapshot{{
			Server: types.Server{ID: "s1", Name: "pg-main", RDBMSType: types.RDBMSPostgreSQL, Status: types.StatusActive},
			Databases: []types.DatabaseSnapshot{{
				Database: types.Database{ID: "d1", ServerID: "s1", Name: "sales", Status: types.StatusActive},
				Tables: []types.TableSnapshot{{
					Table: types.Table{ID: "t1", DatabaseID: "d1", Name: "customers", TableType: types.TableTypeTable, Status: types.StatusActive},
					Elements: []types.Element{
						{ID: "e1", TableID: "t1", Name: "id", DataType: "INTEGER", IsPrimaryKey: true, Position: 1},
						{ID: "e2", TableID: "t1", Name: "name", DataType: "VARCHAR", Length: &length, IsNullable: true, Position: 2, Description: "full name, as printed"},
					},
				}},
			}},
		}},
		Abbreviations: []types.Abbreviation{{ID: "a1", Abbreviation: "CUST", Definition: "customer"}},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatJSON, "JSON": FormatJSON, "yml": FormatYAML, "yaml": FormatYAML, "csv": FormatCSV} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := PerformExport(context.Background(), staticSource{snap: sampleSnapshot()}, dir, FormatJSON, "1.2.3")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "catalog_"))
	assert.Equal(t, ".json", filepath.Ext(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got types.CatalogSnapshot
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "1.2.3", got.Version)
	require.Len(t, got.Servers, 1)
	assert.Equal(t, "pg-main", got.Servers[0].Name)
	assert.Len(t, got.Servers[0].Databases[0].Tables[0].Elements, 2)
	assert.Len(t, got.Abbreviations, 1)
}

func TestExportYAML(t *testing.T) {
	path, err := PerformExport(context.Background(), staticSource{snap: sampleSnapshot()}, t.TempDir(), FormatYAML, "dev")
	require.NoError(t, err)
	assert.Equal(t, ".yaml", filepath.Ext(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got types.CatalogSnapshot
	require.NoError(t, yaml.Unmarshal(raw, &got))
	require.Len(t, got.Servers, 1)
	assert.Equal(t, "pg-main", got.Servers[0].Name)
	assert.Equal(t, "customers", got.Servers[0].Databases[0].Tables[0].Name)
}

func TestExportCSV(t *testing.T) {
	path, err := PerformExport(context.Background(), staticSource{snap: sampleSnapshot()}, t.TempDir(), FormatCSV, "dev")
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"pg-main", "sales", "customers", "TABLE", "1", "id", "INTEGER", "", "", "", "false", "true", "false", "", ""}, records[1])
	assert.Equal(t, "100", records[2][7])
	assert.Equal(t, "full name, as printed", records[2][14])
}

func TestExportFailsWithoutWriting(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	_, err := PerformExport(context.Background(), staticSource{err: errors.New("boom")}, dir, FormatJSON, "dev")
	require.Error(t, err)

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}
