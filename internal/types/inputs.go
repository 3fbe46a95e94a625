package types

// Create inputs carry the full initial state. Update inputs use pointer
// fields; a nil field leaves the stored value unchanged.

type CreateServerInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	RDBMSType   RDBMSType `json:"rdbmsType"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
	Location    string    `json:"location"`
	Status      Status    `json:"status"`
}

type UpdateServerInput struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	RDBMSType   *RDBMSType `json:"rdbmsType"`
	Host        *string    `json:"host"`
	Port        *int       `json:"port"`
	Location    *string    `json:"location"`
	Status      *Status    `json:"status"`
}

type CreateDatabaseInput struct {
	ServerID    string `json:"serverId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Purpose     string `json:"purpose"`
	Status      Status `json:"status"`
}

type UpdateDatabaseInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Purpose     *string `json:"purpose"`
	Status      *Status `json:"status"`
}

type CreateTableInput struct {
	DatabaseID       string    `json:"databaseId"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	TableType        TableType `json:"tableType"`
	RowCountEstimate int64     `json:"rowCountEstimate"`
	Status           Status    `json:"status"`
}

type UpdateTableInput struct {
	Name             *string    `json:"name"`
	Description      *string    `json:"description"`
	TableType        *TableType `json:"tableType"`
	RowCountEstimate *int64     `json:"rowCountEstimate"`
	Status           *Status    `json:"status"`
}

// CreateElementInput.Position of zero appends the element after the last
// non-deleted sibling.
type CreateElementInput struct {
	TableID      string `json:"tableId"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	DataType     string `json:"dataType"`
	Length       *int   `json:"length"`
	Precision    *int   `json:"precision"`
	Scale        *int   `json:"scale"`
	IsNullable   bool   `json:"isNullable"`
	IsPrimaryKey bool   `json:"isPrimaryKey"`
	IsForeignKey bool   `json:"isForeignKey"`
	DefaultValue string `json:"defaultValue"`
	Position     int    `json:"position"`
	Status       Status `json:"status"`
}

type UpdateElementInput struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	DataType     *string `json:"dataType"`
	Length       *int    `json:"length"`
	Precision    *int    `json:"precision"`
	Scale        *int    `json:"scale"`
	IsNullable   *bool   `json:"isNullable"`
	IsPrimaryKey *bool   `json:"isPrimaryKey"`
	IsForeignKey *bool   `json:"isForeignKey"`
	DefaultValue *string `json:"defaultValue"`
	Position     *int    `json:"position"`
	Status       *Status `json:"status"`
}

type CreateAbbreviationInput struct {
	Source       string `json:"source"`
	Abbreviation string `json:"abbreviation"`
	Definition   string `json:"definition"`
	IsPrimeClass bool   `json:"isPrimeClass"`
	Category     string `json:"category"`
}

type UpdateAbbreviationInput struct {
	Source       *string `json:"source"`
	Abbreviation *string `json:"abbreviation"`
	Definition   *string `json:"definition"`
	IsPrimeClass *bool   `json:"isPrimeClass"`
	Category     *string `json:"category"`
}

type CreateUserInput struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

type UpdateUserInput struct {
	Email     *string `json:"email"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Role      *string `json:"role"`
	IsActive  *bool   `json:"isActive"`
	Password  *string `json:"password"`
}

type RestoreMode string

const (
	// RestoreAppend places a restored element after the last sibling.
	RestoreAppend RestoreMode = "append"
	// RestoreOriginal reinserts a restored element at the slot it held when
	// it was deleted, shifting later siblings.
	RestoreOriginal RestoreMode = "original"
)

type RestoreOptions struct {
	Mode RestoreMode `json:"mode"`
}
