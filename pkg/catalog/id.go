// SPDX-License-Identifier: Apache-2.0

// Package catalog implements the object model described in spec §3: a
// tagged union of identifiers for every database object kind pgmt manages,
// typed attribute records for each kind, and the dependency graph that
// threads them together.
package catalog

import "strings"

// Kind identifies which of the supported object kinds an ID refers to.
type Kind string

const (
	KindSchema     Kind = "schema"
	KindTable      Kind = "table"
	KindColumn     Kind = "column"
	KindView       Kind = "view"
	KindSequence   Kind = "sequence"
	KindType       Kind = "type"
	KindDomain     Kind = "domain"
	KindFunction   Kind = "function"
	KindTrigger    Kind = "trigger"
	KindIndex      Kind = "index"
	KindConstraint Kind = "constraint"
	KindExtension  Kind = "extension"
	KindGrant      Kind = "grant"
	KindComment    Kind = "comment"
)

// KindPriority gives the planner's fixed tie-break ordering for object kinds
// (spec §4.5).
var KindPriority = map[Kind]int{
	KindExtension:  0,
	KindSchema:     1,
	KindType:       2,
	KindDomain:     3,
	KindSequence:   4,
	KindTable:      5,
	KindColumn:     6,
	KindConstraint: 7,
	KindIndex:      8,
	KindFunction:   9,
	KindView:       10,
	KindTrigger:    11,
	KindGrant:      12,
	KindComment:    13,
}

// ID is a structurally-equal, hashable identifier for any managed object.
// Only the fields relevant to a given Kind are populated; Key derives a
// canonical string representation used for map lookups and equality.
type ID struct {
	Kind      Kind
	Schema    string
	Name      string // table/view/sequence/type/domain/function/index name
	Table     string // owning table, for Column/Constraint/Trigger
	Column    string // column name, for Column
	Signature string // argument signature, for Function
	Target    string // Key() of the target object, for Grant/Comment
	Grantee   string // role name or "PUBLIC", for Grant
	Privilege string // privilege name, for Grant
}

// Key returns a canonical, comparable string for this ID. Two IDs with the
// same Key are the same object.
func (id ID) Key() string {
	var b strings.Builder
	b.WriteString(string(id.Kind))
	for _, part := range []string{id.Schema, id.Name, id.Table, id.Column, id.Signature, id.Target, id.Grantee, id.Privilege} {
		b.WriteByte('\x1f')
		b.WriteString(part)
	}
	return b.String()
}

func (id ID) String() string {
	switch id.Kind {
	case KindSchema:
		return "schema " + id.Schema
	case KindTable:
		return "table " + id.Schema + "." + id.Name
	case KindColumn:
		return "column " + id.Schema + "." + id.Table + "." + id.Column
	case KindView:
		return "view " + id.Schema + "." + id.Name
	case KindSequence:
		return "sequence " + id.Schema + "." + id.Name
	case KindType:
		return "type " + id.Schema + "." + id.Name
	case KindDomain:
		return "domain " + id.Schema + "." + id.Name
	case KindFunction:
		return "function " + id.Schema + "." + id.Name + "(" + id.Signature + ")"
	case KindTrigger:
		return "trigger " + id.Schema + "." + id.Table + "." + id.Name
	case KindIndex:
		return "index " + id.Schema + "." + id.Name
	case KindConstraint:
		return "constraint " + id.Schema + "." + id.Table + "." + id.Name
	case KindExtension:
		return "extension " + id.Name
	case KindGrant:
		return "grant " + id.Privilege + " on " + id.Target + " to " + id.Grantee
	case KindComment:
		return "comment on " + id.Target
	default:
		return "unknown:" + id.Key()
	}
}

func SchemaID(schema string) ID { return ID{Kind: KindSchema, Schema: schema} }

func TableID(schema, name string) ID { return ID{Kind: KindTable, Schema: schema, Name: name} }

func ColumnID(schema, table, column string) ID {
	return ID{Kind: KindColumn, Schema: schema, Table: table, Column: column}
}

func ViewID(schema, name string) ID { return ID{Kind: KindView, Schema: schema, Name: name} }

func SequenceID(schema, name string) ID { return ID{Kind: KindSequence, Schema: schema, Name: name} }

func TypeID(schema, name string) ID { return ID{Kind: KindType, Schema: schema, Name: name} }

func DomainID(schema, name string) ID { return ID{Kind: KindDomain, Schema: schema, Name: name} }

func FunctionID(schema, name, signature string) ID {
	return ID{Kind: KindFunction, Schema: schema, Name: name, Signature: signature}
}

func TriggerID(schema, table, name string) ID {
	return ID{Kind: KindTrigger, Schema: schema, Table: table, Name: name}
}

func IndexID(schema, name string) ID { return ID{Kind: KindIndex, Schema: schema, Name: name} }

func ConstraintID(schema, table, name string) ID {
	return ID{Kind: KindConstraint, Schema: schema, Table: table, Name: name}
}

func ExtensionID(name string) ID { return ID{Kind: KindExtension, Name: name} }

func GrantID(target ID, grantee, privilege string) ID {
	return ID{Kind: KindGrant, Target: target.Key(), Grantee: grantee, Privilege: privilege}
}

func CommentID(target ID) ID {
	return ID{Kind: KindComment, Target: target.Key()}
}

// PublicRole is the well-known grantee name for a grant made to PUBLIC.
const PublicRole = "PUBLIC"
