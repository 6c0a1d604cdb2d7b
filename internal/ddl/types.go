package ddl

// Type is a logical column type. Each Dialect maps it onto a concrete SQL
// type when rendering DDL.
type Type string

const (
	Int       Type = "int"
	BigInt    Type = "bigint"
	Double    Type = "double"
	Varchar   Type = "varchar"
	Timestamp Type = "timestamp"
)

// DefaultVarcharLength is used when a Varchar column does not specify one.
// It matches Redshift's implicit VARCHAR length.
const DefaultVarcharLength = 256

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: logical column name (unquoted; quoting happens at render time)
//   - Type: logical type, mapped per dialect
//   - Length: maximum byte length for Varchar columns (0 = DefaultVarcharLength)
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Identity: the engine generates the value (auto-increment surrogate key)
//   - SortKey, DistKey: Redshift physical design hints; ignored elsewhere
type ColumnDef struct {
	Name       string
	Type       Type
	Length     int
	Nullable   bool
	PrimaryKey bool
	Identity   bool
	SortKey    bool
	DistKey    bool
}

// MaxBytes returns the byte budget of a Varchar column, or 0 for other types.
func (c ColumnDef) MaxBytes() int {
	if c.Type != Varchar {
		return 0
	}
	if c.Length <= 0 {
		return DefaultVarcharLength
	}
	return c.Length
}

// DistStyle is a Redshift table distribution style.
type DistStyle string

const (
	DistAuto DistStyle = ""
	DistAll  DistStyle = "ALL"
	DistKey  DistStyle = "KEY"
	DistEven DistStyle = "EVEN"
)

// TableDef holds a table name and an ordered list of columns.
type TableDef struct {
	Name      string
	Columns   []ColumnDef
	DistStyle DistStyle
}

// ColumnNames returns the column names in declaration order.
func (t TableDef) ColumnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// InsertableColumns returns the columns a client supplies values for, i.e.
// every column except engine-generated identity columns.
func (t TableDef) InsertableColumns() []ColumnDef {
	out := make([]ColumnDef, 0, len(t.Columns))
	for _, c := range t.Columns {
		if !c.Identity {
			out = append(out, c)
		}
	}
	return out
}

// Column returns the column with the given name.
func (t TableDef) Column(name string) (ColumnDef, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDef{}, false
}
