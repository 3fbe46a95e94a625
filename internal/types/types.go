package types

import (
	"time"
)

// Migration is a catalog DDL step recorded in _schemajeli_migrations.
type Migration struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
	Checksum  string     `json:"checksum"`
}

// CatalogSnapshot is the exported form of the non-deleted catalog hierarchy.
type CatalogSnapshot struct {
	Timestamp     string           `json:"timestamp" yaml:"timestamp"`
	Version       string           `json:"version" yaml:"version"`
	Servers       []ServerSnapshot `json:"servers" yaml:"servers"`
	Abbreviations []Abbreviation   `json:"abbreviations" yaml:"abbreviations"`
}

type ServerSnapshot struct {
	Server    `yaml:",inline"`
	Databases []DatabaseSnapshot `json:"databases" yaml:"databases"`
}

type DatabaseSnapshot struct {
	Database `yaml:",inline"`
	Tables   []TableSnapshot `json:"tables" yaml:"tables"`
}

type TableSnapshot struct {
	Table    `yaml:",inline"`
	Elements []Element `json:"elements" yaml:"elements"`
}
