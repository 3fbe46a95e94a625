package types

import (
	"encoding/json"
	"strings"
	"time"
)

type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusArchived Status = "ARCHIVED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusArchived:
		return true
	}
	return false
}

type RDBMSType string

const (
	RDBMSPostgreSQL RDBMSType = "POSTGRESQL"
	RDBMSMySQL      RDBMSType = "MYSQL"
	RDBMSMariaDB    RDBMSType = "MARIADB"
	RDBMSOracle     RDBMSType = "ORACLE"
	RDBMSSQLServer  RDBMSType = "SQLSERVER"
	RDBMSDB2        RDBMSType = "DB2"
	RDBMSSQLite     RDBMSType = "SQLITE"
	RDBMSOther      RDBMSType = "OTHER"
)

var RDBMSTypes = []RDBMSType{
	RDBMSPostgreSQL, RDBMSMySQL, RDBMSMariaDB, RDBMSOracle,
	RDBMSSQLServer, RDBMSDB2, RDBMSSQLite, RDBMSOther,
}

func (t RDBMSType) Valid() bool {
	for _, known := range RDBMSTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RDBMSTypeForProvider maps a connection provider name onto the catalog enum.
func RDBMSTypeForProvider(provider string) RDBMSType {
	switch strings.ToLower(provider) {
	case "postgres", "postgresql":
		return RDBMSPostgreSQL
	case "mysql":
		return RDBMSMySQL
	case "mariadb":
		return RDBMSMariaDB
	case "sqlite", "sqlite3":
		return RDBMSSQLite
	default:
		return RDBMSOther
	}
}

type TableType string

const (
	TableTypeTable            TableType = "TABLE"
	TableTypeView             TableType = "VIEW"
	TableTypeMaterializedView TableType = "MATERIALIZED_VIEW"
)

func (t TableType) Valid() bool {
	switch t {
	case TableTypeTable, TableTypeView, TableTypeMaterializedView:
		return true
	}
	return false
}

type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleMaintainer Role = "MAINTAINER"
	RoleViewer     Role = "VIEWER"
)

type EntityType string

const (
	EntityServer       EntityType = "SERVER"
	EntityDatabase     EntityType = "DATABASE"
	EntityTable        EntityType = "TABLE"
	EntityElement      EntityType = "ELEMENT"
	EntityAbbreviation EntityType = "ABBREVIATION"
	EntityUser         EntityType = "USER"
)

type AuditAction string

const (
	ActionCreate  AuditAction = "CREATE"
	ActionUpdate  AuditAction = "UPDATE"
	ActionDelete  AuditAction = "DELETE"
	ActionRestore AuditAction = "RESTORE"
)

type Server struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description,omitempty"`
	RDBMSType   RDBMSType  `json:"rdbmsType" yaml:"rdbmsType"`
	Host        string     `json:"host" yaml:"host,omitempty"`
	Port        int        `json:"port" yaml:"port,omitempty"`
	Location    string     `json:"location" yaml:"location,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

type Database struct {
	ID          string     `json:"id" yaml:"id"`
	ServerID    string     `json:"serverId" yaml:"serverId"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description,omitempty"`
	Purpose     string     `json:"purpose" yaml:"purpose,omitempty"`
	Status      Status     `json:"status" yaml:"status"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

type Table struct {
	ID               string     `json:"id" yaml:"id"`
	DatabaseID       string     `json:"databaseId" yaml:"databaseId"`
	Name             string     `json:"name" yaml:"name"`
	Description      string     `json:"description" yaml:"description,omitempty"`
	TableType        TableType  `json:"tableType" yaml:"tableType"`
	RowCountEstimate int64      `json:"rowCountEstimate" yaml:"rowCountEstimate,omitempty"`
	Status           Status     `json:"status" yaml:"status"`
	CreatedAt        time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt        *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

// Element is a column of a catalogued table. Position is dense (1..n) among
// the table's non-deleted elements; DeletedPosition remembers the slot an
// element held when it was soft-deleted.
type Element struct {
	ID              string     `json:"id" yaml:"id"`
	TableID         string     `json:"tableId" yaml:"tableId"`
	Name            string     `json:"name" yaml:"name"`
	Description     string     `json:"description" yaml:"description,omitempty"`
	DataType        string     `json:"dataType" yaml:"dataType"`
	Length          *int       `json:"length,omitempty" yaml:"length,omitempty"`
	Precision       *int       `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale           *int       `json:"scale,omitempty" yaml:"scale,omitempty"`
	IsNullable      bool       `json:"isNullable" yaml:"isNullable"`
	IsPrimaryKey    bool       `json:"isPrimaryKey" yaml:"isPrimaryKey"`
	IsForeignKey    bool       `json:"isForeignKey" yaml:"isForeignKey"`
	DefaultValue    string     `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Position        int        `json:"position" yaml:"position"`
	DeletedPosition *int       `json:"deletedPosition,omitempty" yaml:"deletedPosition,omitempty"`
	Status          Status     `json:"status" yaml:"status"`
	CreatedAt       time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt       *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

type Abbreviation struct {
	ID           string     `json:"id" yaml:"id"`
	Source       string     `json:"source" yaml:"source"`
	Abbreviation string     `json:"abbreviation" yaml:"abbreviation"`
	Definition   string     `json:"definition" yaml:"definition"`
	IsPrimeClass bool       `json:"isPrimeClass" yaml:"isPrimeClass"`
	Category     string     `json:"category" yaml:"category,omitempty"`
	CreatedAt    time.Time  `json:"createdAt" yaml:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" yaml:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty" yaml:"deletedAt,omitempty"`
}

type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	Role         Role       `json:"role"`
	IsActive     bool       `json:"isActive"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	DeletedAt    *time.Time `json:"deletedAt,omitempty"`
}

type AuditLog struct {
	ID         string          `json:"id"`
	EntityType EntityType      `json:"entityType"`
	EntityID   string          `json:"entityId"`
	Action     AuditAction     `json:"action"`
	UserID     string          `json:"userId,omitempty"`
	Changes    json.RawMessage `json:"changes"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Actor is the authenticated principal performing an operation. The zero
// value is used by system processes such as harvest imports run from the CLI
// without a user.
type Actor struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}
