// SPDX-License-Identifier: Apache-2.0

package diff

import (
	"github.com/pgmt-dev/pgmt/pkg/catalog"
	"github.com/pgmt-dev/pgmt/pkg/render"
)

func diffTables(old, new *catalog.Catalog, opts Options) ([]Step, []Violation, error) {
	oldM := indexByKey(old.Tables, func(t catalog.Table) catalog.ID { return t.ID })
	newM := indexByKey(new.Tables, func(t catalog.Table) catalog.ID { return t.ID })

	var steps []Step
	var violations []Violation

	for _, k := range sortedKeys(oldM, newM) {
		o, inOld := oldM[k]
		n, inNew := newM[k]
		switch {
		case !inOld:
			steps = append(steps, Step{Object: n.ID, Action: ActionCreate, SQL: render.CreateTable(n), Requires: n.DependsOn, Description: "create table " + n.ID.Name})
		case !inNew:
			steps = append(steps, Step{Object: o.ID, Action: ActionDrop, SQL: render.DropTable(o.ID), Narrows: true, Description: "drop table " + o.ID.Name})
		default:
			colSteps, colViolations := diffColumns(o, n, opts)
			steps = append(steps, colSteps...)
			violations = append(violations, colViolations...)
			if o.Comment != n.Comment {
				steps = append(steps, tableCommentStep(n.ID, n.Comment))
			}
		}
	}

	return steps, violations, nil
}

func tableCommentStep(id catalog.ID, comment string) Step {
	if comment == "" {
		return Step{Object: id, Action: ActionComment, Op: OpCommentClear, SQL: "COMMENT ON TABLE " + render.Qualified(id.Schema, id.Name) + " IS NULL;", Description: "clear comment on table " + id.Name}
	}
	return Step{Object: id, Action: ActionComment, Op: OpCommentSet, SQL: "COMMENT ON TABLE " + render.Qualified(id.Schema, id.Name) + " IS " + render.Literal(comment) + ";", Description: "set comment on table " + id.Name}
}

// diffColumns compares two versions of the same table's column list. It
// both emits column-level steps and validates the column order policy
// (spec §4.4, "Column order policy"): every new column must occupy a
// position at or after every preserved column.
func diffColumns(o, n catalog.Table, opts Options) ([]Step, []Violation) {
	oldPos := make(map[string]int, len(o.Columns))
	oldCols := make(map[string]catalog.Column, len(o.Columns))
	for i, c := range o.Columns {
		oldPos[c.Name] = i
		oldCols[c.Name] = c
	}

	var steps []Step
	var violations []Violation

	for i, nc := range n.Columns {
		oc, existed := oldCols[nc.Name]
		if !existed {
			if violatesColumnOrder(n.Columns, i, oldPos) {
				violations = append(violations, Violation{
					Kind: "column_order", Schema: n.ID.Schema, Table: n.ID.Name,
					Column: nc.Name, MustFollow: precedingPreservedColumn(n.Columns, i, oldPos),
				})
				if opts.ColumnOrder == ColumnOrderRelaxed {
					steps = append(steps, addColumnStep(n.ID, nc))
				}
				continue
			}
			steps = append(steps, addColumnStep(n.ID, nc))
			continue
		}
		steps = append(steps, diffColumnAttrs(n.ID, oc, nc)...)
	}

	for _, oc := range o.Columns {
		if _, stillExists := findColumn(n.Columns, oc.Name); !stillExists {
			steps = append(steps, Step{
				Object: catalog.ColumnID(n.ID.Schema, n.ID.Name, oc.Name), Action: ActionDrop,
				SQL: render.DropColumn(n.ID.Schema, n.ID.Name, oc.Name), Narrows: true,
				Description: "drop column " + n.ID.Name + "." + oc.Name,
			})
		}
	}

	return steps, violations
}

func addColumnStep(tableID catalog.ID, c catalog.Column) Step {
	col := c
	return Step{
		Object: catalog.ColumnID(tableID.Schema, tableID.Name, c.Name), Action: ActionCreate,
		Op:          OpAddColumn,
		SQL:         render.AddColumn(tableID.Schema, tableID.Name, c),
		Column:      &col,
		Description: "add column " + tableID.Name + "." + c.Name,
	}
}

func findColumn(cols []catalog.Column, name string) (catalog.Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return catalog.Column{}, false
}

// violatesColumnOrder reports whether the new column at index i in n's
// column list sits before some preserved (still-existing) column from the
// old table.
func violatesColumnOrder(cols []catalog.Column, i int, oldPos map[string]int) bool {
	for j := i + 1; j < len(cols); j++ {
		if _, existed := oldPos[cols[j].Name]; existed {
			return true
		}
	}
	return false
}

func precedingPreservedColumn(cols []catalog.Column, i int, oldPos map[string]int) string {
	for j := i + 1; j < len(cols); j++ {
		if _, existed := oldPos[cols[j].Name]; existed {
			return cols[j].Name
		}
	}
	return ""
}

func diffColumnAttrs(tableID catalog.ID, o, n catalog.Column) []Step {
	var steps []Step
	colID := catalog.ColumnID(tableID.Schema, tableID.Name, n.Name)

	if o.Type != n.Type {
		steps = append(steps, Step{
			Object: colID, Action: ActionAlter, Op: OpAlterColumnType,
			SQL:         render.AlterColumnType(tableID.Schema, tableID.Name, n.Name, n.Type),
			Narrows:     true,
			Description: "alter column type " + tableID.Name + "." + n.Name,
		})
	}

	if strPtr(o.Default) != strPtr(n.Default) {
		if n.Default != nil {
			steps = append(steps, Step{
				Object: colID, Action: ActionAlter, Op: OpSetDefault,
				SQL:         render.SetColumnDefault(tableID.Schema, tableID.Name, n.Name, *n.Default),
				Description: "set default " + tableID.Name + "." + n.Name,
			})
		} else {
			steps = append(steps, Step{
				Object: colID, Action: ActionAlter, Op: OpDropDefault,
				SQL:         render.DropColumnDefault(tableID.Schema, tableID.Name, n.Name),
				Narrows:     true,
				Description: "drop default " + tableID.Name + "." + n.Name,
			})
		}
	}

	if !o.NotNull && n.NotNull {
		steps = append(steps, Step{
			Object: colID, Action: ActionAlter, Op: OpSetNotNull,
			SQL:                render.SetColumnNotNull(tableID.Schema, tableID.Name, n.Name),
			Narrows:            true,
			RequiresEmptyTable: n.Default == nil,
			Description:        "set not null " + tableID.Name + "." + n.Name,
		})
	} else if o.NotNull && !n.NotNull {
		steps = append(steps, Step{
			Object: colID, Action: ActionAlter, Op: OpDropNotNull,
			SQL:         render.DropColumnNotNull(tableID.Schema, tableID.Name, n.Name),
			Description: "drop not null " + tableID.Name + "." + n.Name,
		})
	}

	return steps
}
