// SPDX-License-Identifier: Apache-2.0

// Package render is the sole translator from catalog records to SQL text
// (spec §4.3). Each object kind has exactly one "create from scratch"
// renderer; it is shared between materializing the desired state into the
// shadow database and emitting a migration's Create step, so the two paths
// can never drift apart (spec §9, "Shared renderer").
package render

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/pgmt-dev/pgmt/pkg/catalog"
)

// Ident double-quotes a single identifier.
func Ident(name string) string { return pq.QuoteIdentifier(name) }

// Qualified renders a schema-qualified identifier, both parts quoted.
func Qualified(schema, name string) string {
	return Ident(schema) + "." + Ident(name)
}

// Literal single-quotes a string literal, escaping embedded quotes and
// backslashes per Postgres's standard_conforming_strings rules.
func Literal(s string) string { return pq.QuoteLiteral(s) }

var checkWrapped = regexp.MustCompile(`(?i)^\s*CHECK\s*\(`)

// CheckExpr returns expr wrapped in CHECK(...) unless it is already, so
// callers never have to track which form a stored expression is in (spec
// §4.3, "Check-constraint expressions are inspected for a leading CHECK(").
func CheckExpr(expr string) string {
	if checkWrapped.MatchString(expr) {
		return expr
	}
	return "CHECK (" + expr + ")"
}

// CreateSchema renders CREATE SCHEMA.
func CreateSchema(s catalog.SchemaObject) string {
	return fmt.Sprintf("CREATE SCHEMA %s;", Ident(s.ID.Schema))
}

// DropSchema renders DROP SCHEMA.
func DropSchema(id catalog.ID) string {
	return fmt.Sprintf("DROP SCHEMA %s;", Ident(id.Schema))
}

// CreateTable renders CREATE TABLE with inline column definitions and
// primary key, matching the column order recorded on the Table (spec
// §4.4, column order is semantically significant).
func CreateTable(t catalog.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", Qualified(t.ID.Schema, t.ID.Name))

	lines := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		lines = append(lines, "    "+ColumnDefinition(c))
	}
	if len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			quoted[i] = Ident(c)
		}
		lines = append(lines, fmt.Sprintf("    PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}
	b.WriteString(strings.Join(lines, ",\n"))
	b.WriteString("\n);")
	return b.String()
}

// ColumnDefinition renders one column as it appears inside CREATE TABLE,
// and is reused by AddColumn (spec §9, "Shared renderer").
func ColumnDefinition(c catalog.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s", Ident(c.Name), c.Type)
	if c.Generated != nil {
		fmt.Fprintf(&b, " GENERATED ALWAYS AS (%s) STORED", *c.Generated)
	} else if c.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	return b.String()
}

// DropTable renders DROP TABLE.
func DropTable(id catalog.ID) string {
	return fmt.Sprintf("DROP TABLE %s;", Qualified(id.Schema, id.Name))
}

// AddColumn renders ALTER TABLE ... ADD COLUMN.
func AddColumn(tableSchema, tableName string, c catalog.Column) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s;", Qualified(tableSchema, tableName), ColumnDefinition(c))
}

// DropColumn renders ALTER TABLE ... DROP COLUMN.
func DropColumn(tableSchema, tableName, column string) string {
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", Qualified(tableSchema, tableName), Ident(column))
}

// AlterColumnType renders ALTER TABLE ... ALTER COLUMN ... TYPE.
func AlterColumnType(tableSchema, tableName, column, newType string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s;", Qualified(tableSchema, tableName), Ident(column), newType)
}

// SetColumnNotNull renders ALTER TABLE ... ALTER COLUMN ... SET NOT NULL.
func SetColumnNotNull(tableSchema, tableName, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL;", Qualified(tableSchema, tableName), Ident(column))
}

// DropColumnNotNull renders ALTER TABLE ... ALTER COLUMN ... DROP NOT NULL.
func DropColumnNotNull(tableSchema, tableName, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL;", Qualified(tableSchema, tableName), Ident(column))
}

// SetColumnDefault renders ALTER TABLE ... ALTER COLUMN ... SET DEFAULT.
func SetColumnDefault(tableSchema, tableName, column, expr string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s;", Qualified(tableSchema, tableName), Ident(column), expr)
}

// DropColumnDefault renders ALTER TABLE ... ALTER COLUMN ... DROP DEFAULT.
func DropColumnDefault(tableSchema, tableName, column string) string {
	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT;", Qualified(tableSchema, tableName), Ident(column))
}

// CreateView renders CREATE VIEW.
func CreateView(v catalog.View) string {
	return fmt.Sprintf("CREATE VIEW %s AS\n%s;", Qualified(v.ID.Schema, v.ID.Name), v.Definition)
}

// DropView renders DROP VIEW.
func DropView(id catalog.ID) string {
	return fmt.Sprintf("DROP VIEW %s;", Qualified(id.Schema, id.Name))
}

// CreateSequence renders CREATE SEQUENCE.
func CreateSequence(s catalog.Sequence) string {
	cycle := "NO CYCLE"
	if s.Cycle {
		cycle = "CYCLE"
	}
	return fmt.Sprintf(
		"CREATE SEQUENCE %s AS %s START WITH %d INCREMENT BY %d MINVALUE %d MAXVALUE %d %s;",
		Qualified(s.ID.Schema, s.ID.Name), s.DataType, s.Start, s.Increment, s.Min, s.Max, cycle,
	)
}

// DropSequence renders DROP SEQUENCE.
func DropSequence(id catalog.ID) string {
	return fmt.Sprintf("DROP SEQUENCE %s;", Qualified(id.Schema, id.Name))
}

// CreateType renders CREATE TYPE for enum, composite, and range types.
func CreateType(t catalog.Type) string {
	switch t.Kind {
	case catalog.TypeEnum:
		labels := make([]string, len(t.EnumLabels))
		for i, l := range t.EnumLabels {
			labels[i] = Literal(l)
		}
		return fmt.Sprintf("CREATE TYPE %s AS ENUM (%s);", Qualified(t.ID.Schema, t.ID.Name), strings.Join(labels, ", "))
	case catalog.TypeComposite:
		attrs := make([]string, len(t.Attributes))
		for i, a := range t.Attributes {
			attrs[i] = fmt.Sprintf("%s %s", Ident(a.Name), a.Type)
		}
		return fmt.Sprintf("CREATE TYPE %s AS (%s);", Qualified(t.ID.Schema, t.ID.Name), strings.Join(attrs, ", "))
	case catalog.TypeRange:
		return fmt.Sprintf("CREATE TYPE %s AS RANGE (SUBTYPE = %s);", Qualified(t.ID.Schema, t.ID.Name), t.Subtype)
	default:
		return fmt.Sprintf("-- unsupported type kind %q for %s", t.Kind, t.ID)
	}
}

// AddEnumValue renders ALTER TYPE ... ADD VALUE, used for the
// append-only enum evolution path (spec §9, enum removal requires
// drop+create and an explicit opt-in).
func AddEnumValue(id catalog.ID, value string, after string) string {
	if after == "" {
		return fmt.Sprintf("ALTER TYPE %s ADD VALUE %s;", Qualified(id.Schema, id.Name), Literal(value))
	}
	return fmt.Sprintf("ALTER TYPE %s ADD VALUE %s AFTER %s;", Qualified(id.Schema, id.Name), Literal(value), Literal(after))
}

// DropType renders DROP TYPE.
func DropType(id catalog.ID) string {
	return fmt.Sprintf("DROP TYPE %s;", Qualified(id.Schema, id.Name))
}

// CreateDomain renders CREATE DOMAIN.
func CreateDomain(d catalog.Domain) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE DOMAIN %s AS %s", Qualified(d.ID.Schema, d.ID.Name), d.BaseType)
	if d.Default != nil {
		fmt.Fprintf(&b, " DEFAULT %s", *d.Default)
	}
	if d.NotNull {
		b.WriteString(" NOT NULL")
	}
	for _, check := range d.CheckExprs {
		fmt.Fprintf(&b, " %s", CheckExpr(check))
	}
	b.WriteString(";")
	return b.String()
}

// DropDomain renders DROP DOMAIN.
func DropDomain(id catalog.ID) string {
	return fmt.Sprintf("DROP DOMAIN %s;", Qualified(id.Schema, id.Name))
}

// CreateFunction renders CREATE FUNCTION. f.Body is expected to already be
// a full function body expression understood by the target language, as
// produced by pg_get_functiondef when read back from a live database.
func CreateFunction(f catalog.Function) string {
	return strings.TrimRight(f.Body, ";") + ";"
}

// CreateFunctionStub renders a minimal CREATE FUNCTION whose body raises,
// used for the first pass of mutually-recursive function cycles (spec §9,
// "Cycles among functions").
func CreateFunctionStub(f catalog.Function) string {
	args := strings.Join(f.ArgTypes, ", ")
	return fmt.Sprintf(
		"CREATE FUNCTION %s(%s) RETURNS %s LANGUAGE %s AS $pgmt_stub$\nBEGIN\n  RAISE EXCEPTION 'stub function %s not yet replaced';\nEND;\n$pgmt_stub$;",
		Qualified(f.ID.Schema, f.ID.Name), args, f.ReturnType, f.Language, f.ID.Name,
	)
}

// ReplaceFunction renders CREATE OR REPLACE FUNCTION, the body-only-change
// path the differ always takes for functions (spec §9).
func ReplaceFunction(f catalog.Function) string {
	body := strings.TrimRight(f.Body, ";")
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(body)), "CREATE OR REPLACE") {
		body = "CREATE OR REPLACE" + strings.TrimPrefix(strings.TrimSpace(body), "CREATE")
	}
	return body + ";"
}

// DropFunction renders DROP FUNCTION.
func DropFunction(id catalog.ID) string {
	return fmt.Sprintf("DROP FUNCTION %s(%s);", Qualified(id.Schema, id.Name), id.Signature)
}

// CreateTrigger renders CREATE TRIGGER.
func CreateTrigger(t catalog.Trigger) string {
	events := make([]string, len(t.Events))
	for i, e := range t.Events {
		events[i] = string(e)
	}
	forEach := "STATEMENT"
	if t.ForEachRow {
		forEach = "ROW"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TRIGGER %s %s %s ON %s FOR EACH %s",
		Ident(t.ID.Name), t.Timing, strings.Join(events, " OR "), Qualified(t.ID.Schema, t.Table), forEach)
	if t.When != "" {
		fmt.Fprintf(&b, " WHEN (%s)", t.When)
	}
	fmt.Fprintf(&b, " EXECUTE FUNCTION %s();", Qualified(t.Function.Schema, t.Function.Name))
	return b.String()
}

// DropTrigger renders DROP TRIGGER.
func DropTrigger(id catalog.ID) string {
	return fmt.Sprintf("DROP TRIGGER %s ON %s;", Ident(id.Name), Qualified(id.Schema, id.Table))
}

// CreateIndex renders CREATE INDEX.
func CreateIndex(i catalog.Index) string {
	unique := ""
	if i.Unique {
		unique = "UNIQUE "
	}
	keys := strings.Join(i.Keys, ", ")
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE %sINDEX %s ON %s USING %s (%s)", unique, Ident(i.ID.Name), Qualified(i.ID.Schema, i.Table), i.Method, keys)
	if len(i.Included) > 0 {
		fmt.Fprintf(&b, " INCLUDE (%s)", strings.Join(i.Included, ", "))
	}
	if i.Predicate != "" {
		fmt.Fprintf(&b, " WHERE %s", i.Predicate)
	}
	b.WriteString(";")
	return b.String()
}

// DropIndex renders DROP INDEX.
func DropIndex(id catalog.ID) string {
	return fmt.Sprintf("DROP INDEX %s;", Qualified(id.Schema, id.Name))
}

// CreateConstraint renders ALTER TABLE ... ADD CONSTRAINT for every
// constraint kind.
func CreateConstraint(c catalog.Constraint) string {
	table := Qualified(c.ID.Schema, c.ID.Table)
	name := Ident(c.ID.Name)
	switch c.Kind {
	case catalog.ConstraintPrimaryKey:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s);", table, name, quotedList(c.Columns))
	case catalog.ConstraintUnique:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s);", table, name, quotedList(c.Columns))
	case catalog.ConstraintForeignKey:
		fk := c.ForeignKey
		stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			table, name, quotedList(c.Columns), Qualified(fk.RefSchema, fk.RefTable), quotedList(fk.RefColumns))
		if fk.OnDelete != "" && fk.OnDelete != "NO ACTION" {
			stmt += " ON DELETE " + fk.OnDelete
		}
		if fk.OnUpdate != "" && fk.OnUpdate != "NO ACTION" {
			stmt += " ON UPDATE " + fk.OnUpdate
		}
		if fk.Deferrable {
			stmt += " DEFERRABLE"
			if fk.InitiallyDeferred {
				stmt += " INITIALLY DEFERRED"
			}
		}
		return stmt + ";"
	case catalog.ConstraintCheck:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s %s;", table, name, CheckExpr(c.Check))
	case catalog.ConstraintExclusion:
		ex := c.Exclusion
		elems := make([]string, len(ex.Elements))
		for i, e := range ex.Elements {
			op := "="
			if i < len(ex.Operators) {
				op = ex.Operators[i]
			}
			elems[i] = fmt.Sprintf("%s WITH %s", e, op)
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s EXCLUDE USING %s (%s)", table, name, ex.Method, strings.Join(elems, ", "))
		if ex.Predicate != "" {
			stmt += " WHERE (" + ex.Predicate + ")"
		}
		return stmt + ";"
	default:
		return fmt.Sprintf("-- unsupported constraint kind %q for %s", c.Kind, c.ID)
	}
}

// DropConstraint renders ALTER TABLE ... DROP CONSTRAINT.
func DropConstraint(id catalog.ID) string {
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT %s;", Qualified(id.Schema, id.Table), Ident(id.Name))
}

func quotedList(names []string) string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = Ident(n)
	}
	return strings.Join(out, ", ")
}

// CreateExtension renders CREATE EXTENSION.
func CreateExtension(e catalog.Extension) string {
	stmt := fmt.Sprintf("CREATE EXTENSION %s", Ident(e.ID.Name))
	if e.Version != "" {
		stmt += fmt.Sprintf(" VERSION %s", Literal(e.Version))
	}
	return stmt + ";"
}

// DropExtension renders DROP EXTENSION.
func DropExtension(id catalog.ID) string {
	return fmt.Sprintf("DROP EXTENSION %s;", Ident(id.Name))
}

// targetDDLName renders the GRANT/REVOKE target, including the object-kind
// keyword only when the grammar requires it (spec §4.3, "Grants render
// without the object-kind keyword when the grammar permits omitting it").
func targetDDLName(target catalog.ID) string {
	switch target.Kind {
	case catalog.KindTable, catalog.KindView, catalog.KindSequence:
		return Qualified(target.Schema, target.Name)
	case catalog.KindSchema:
		return "SCHEMA " + Ident(target.Schema)
	case catalog.KindFunction:
		return "FUNCTION " + Qualified(target.Schema, target.Name) + "(" + target.Signature + ")"
	case catalog.KindType, catalog.KindDomain:
		return "TYPE " + Qualified(target.Schema, target.Name)
	default:
		return Qualified(target.Schema, target.Name)
	}
}

// CreateGrant renders GRANT.
func CreateGrant(g catalog.Grant) string {
	grantee := g.Grantee.Name
	if grantee != catalog.PublicRole {
		grantee = Ident(grantee)
	}
	stmt := fmt.Sprintf("GRANT %s ON %s TO %s", strings.Join(g.Privileges, ", "), targetDDLName(g.Target), grantee)
	if g.WithGrantOption {
		stmt += " WITH GRANT OPTION"
	}
	return stmt + ";"
}

// DropGrant renders REVOKE.
func DropGrant(g catalog.Grant) string {
	grantee := g.Grantee.Name
	if grantee != catalog.PublicRole {
		grantee = Ident(grantee)
	}
	return fmt.Sprintf("REVOKE %s ON %s FROM %s;", strings.Join(g.Privileges, ", "), targetDDLName(g.Target), grantee)
}

// CreateComment renders COMMENT ON.
func CreateComment(c catalog.Comment) string {
	return fmt.Sprintf("COMMENT ON %s IS %s;", commentTargetDDL(c.Target), Literal(c.Text))
}

// DropComment renders the COMMENT ON ... IS NULL; that clears a comment
// from target, using the same object-type qualification as CreateComment.
func DropComment(target catalog.ID) string {
	return fmt.Sprintf("COMMENT ON %s IS NULL;", commentTargetDDL(target))
}

func commentTargetDDL(target catalog.ID) string {
	switch target.Kind {
	case catalog.KindTable:
		return "TABLE " + Qualified(target.Schema, target.Name)
	case catalog.KindColumn:
		return "COLUMN " + Qualified(target.Schema, target.Table) + "." + Ident(target.Column)
	case catalog.KindView:
		return "VIEW " + Qualified(target.Schema, target.Name)
	case catalog.KindFunction:
		return "FUNCTION " + Qualified(target.Schema, target.Name) + "(" + target.Signature + ")"
	case catalog.KindSchema:
		return "SCHEMA " + Ident(target.Schema)
	default:
		return Qualified(target.Schema, target.Name)
	}
}
