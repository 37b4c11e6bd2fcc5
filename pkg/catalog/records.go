// SPDX-License-Identifier: Apache-2.0

package catalog

// Every record below corresponds to one row of spec §3's object model.
// Records own only IDs in DependsOn, never pointers to other records, so
// that a Catalog stays cheap to clone, compare, and serialize (spec §9,
// "Dependency graph representation").

type SchemaObject struct {
	ID        ID
	Comment   string
	DependsOn []ID
}

type Table struct {
	ID         ID
	Columns    []Column // order is semantically significant, see spec §4.4
	PrimaryKey []string // column names
	Comment    string
	Owner      string
	DependsOn  []ID
}

type Column struct {
	Name       string
	Type       string // rendered type expression
	Default    *string
	NotNull    bool
	Generated  *string // generation expression, if any
	Comment    string
	DependsOn  []ID
}

// ConstraintKind distinguishes the payload carried by a Constraint record.
type ConstraintKind string

const (
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintExclusion  ConstraintKind = "exclusion"
)

type ForeignKeyDetail struct {
	Columns            []string
	RefSchema          string
	RefTable           string
	RefColumns         []string
	OnDelete           string // "", "CASCADE", "SET NULL", "SET DEFAULT", "RESTRICT", "NO ACTION"
	OnUpdate           string
	Deferrable         bool
	InitiallyDeferred  bool
}

type ExclusionDetail struct {
	Elements  []string // expressions
	OpClasses []string
	Operators []string
	Method    string
	Predicate string
}

type Constraint struct {
	ID         ID
	Kind       ConstraintKind
	Columns    []string
	Check      string // expression text, for ConstraintCheck
	ForeignKey *ForeignKeyDetail
	Exclusion  *ExclusionDetail
	DependsOn  []ID
}

type Index struct {
	ID        ID
	Table     string
	Method    string
	Unique    bool
	Keys      []string // key expressions, in stored order
	Included  []string
	Predicate string
	DependsOn []ID
}

type View struct {
	ID         ID
	Definition string // normalized SQL
	Comment    string
	DependsOn  []ID
}

type Volatility string

const (
	VolatilityVolatile Volatility = "VOLATILE"
	VolatilityStable   Volatility = "STABLE"
	VolatilityImmutable Volatility = "IMMUTABLE"
)

type Security string

const (
	SecurityInvoker Security = "INVOKER"
	SecurityDefiner Security = "DEFINER"
)

type Function struct {
	ID         ID
	Language   string
	ReturnType string
	ArgTypes   []string
	Volatility Volatility
	Strict     bool
	Security   Security
	Body       string
	DependsOn  []ID
}

type TriggerTiming string

const (
	TriggerBefore     TriggerTiming = "BEFORE"
	TriggerAfter      TriggerTiming = "AFTER"
	TriggerInsteadOf  TriggerTiming = "INSTEAD OF"
)

type TriggerEvent string

const (
	TriggerInsert   TriggerEvent = "INSERT"
	TriggerUpdate   TriggerEvent = "UPDATE"
	TriggerDelete   TriggerEvent = "DELETE"
	TriggerTruncate TriggerEvent = "TRUNCATE"
)

type Trigger struct {
	ID         ID
	Table      string
	Timing     TriggerTiming
	Events     []TriggerEvent
	UpdateOf   []string // columns, only meaningful when Events contains TriggerUpdate
	ForEachRow bool
	When       string // predicate expression, optional
	Function   ID
	DependsOn  []ID
}

type TypeKind string

const (
	TypeEnum      TypeKind = "enum"
	TypeComposite TypeKind = "composite"
	TypeRange     TypeKind = "range"
)

type CompositeAttribute struct {
	Name string
	Type string
}

type Type struct {
	ID         ID
	Kind       TypeKind
	EnumLabels []string             // ordered, for TypeEnum
	Attributes []CompositeAttribute // ordered, for TypeComposite
	Subtype    string               // for TypeRange
	DependsOn  []ID
}

type Domain struct {
	ID          ID
	BaseType    string
	NotNull     bool
	Default     *string
	Collation   string
	CheckExprs  []string // ordered
	DependsOn   []ID
}

type Sequence struct {
	ID        ID
	DataType  string
	Start     int64
	Increment int64
	Min       int64
	Max       int64
	Cycle     bool
	DependsOn []ID
}

type Grantee struct {
	Name   string // role name, or catalog.PublicRole
	IsRole bool
}

type Grant struct {
	ID               ID
	Target           ID
	Grantee          Grantee
	Privileges       []string // sorted, canonical order
	WithGrantOption  bool
	DependsOn        []ID
}

type Comment struct {
	ID        ID
	Target    ID
	Text      string
	DependsOn []ID
}

type Extension struct {
	ID        ID
	Version   string
	DependsOn []ID
}
