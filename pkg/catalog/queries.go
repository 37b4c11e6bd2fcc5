// SPDX-License-Identifier: Apache-2.0

package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Each loadX function below issues one or more pg_catalog/information_schema
// queries and returns the object-kind's records in arbitrary order; Build
// imposes canonical order afterwards. Queries are grounded on the style of
// pg_catalog.pg_get_constraintdef/pg_index lookups elsewhere in this module's
// history (constraint and index definitions are always read back through the
// deparsing functions rather than reconstructed field-by-field, to avoid
// drifting from what Postgres actually enforces).

func loadSchemas(ctx context.Context, db Querier, filter Filter) ([]SchemaObject, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, obj_description(n.oid, 'pg_namespace')
		FROM pg_catalog.pg_namespace n
		WHERE n.nspname !~ '^pg_' AND n.nspname <> 'information_schema'
		ORDER BY n.nspname`)
	if err != nil {
		return nil, fmt.Errorf("listing schemas: %w", err)
	}
	defer rows.Close()

	var out []SchemaObject
	for rows.Next() {
		var name string
		var comment sql.NullString
		if err := rows.Scan(&name, &comment); err != nil {
			return nil, fmt.Errorf("scanning schema: %w", err)
		}
		if !filter.schemaIncluded(name) {
			continue
		}
		out = append(out, SchemaObject{ID: SchemaID(name), Comment: comment.String})
	}
	return out, rows.Err()
}

func loadTables(ctx context.Context, db Querier, filter Filter) ([]Table, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.oid, n.nspname, c.relname, pg_get_userbyid(c.relowner), obj_description(c.oid, 'pg_class')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'
		ORDER BY n.nspname, c.relname`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	type tableRow struct {
		oid             string
		schema, name    string
		owner           string
		comment         sql.NullString
	}
	var candidates []tableRow
	for rows.Next() {
		var r tableRow
		if err := rows.Scan(&r.oid, &r.schema, &r.name, &r.owner, &r.comment); err != nil {
			return nil, fmt.Errorf("scanning table: %w", err)
		}
		if !filter.tableIncluded(r.schema, r.name) {
			continue
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Table, 0, len(candidates))
	for _, r := range candidates {
		cols, pk, err := loadColumns(ctx, db, r.oid, r.schema, r.name)
		if err != nil {
			return nil, fmt.Errorf("loading columns for %s.%s: %w", r.schema, r.name, err)
		}
		out = append(out, Table{
			ID:         TableID(r.schema, r.name),
			Columns:    cols,
			PrimaryKey: pk,
			Comment:    r.comment.String,
			Owner:      r.owner,
		})
	}
	return out, nil
}

func loadColumns(ctx context.Context, db Querier, tableOID, schema, table string) ([]Column, []string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT a.attname,
		       format_type(a.atttypid, a.atttypmod),
		       a.attnotnull,
		       pg_get_expr(ad.adbin, ad.adrelid),
		       a.attgenerated,
		       col_description(a.attrelid, a.attnum)
		FROM pg_catalog.pg_attribute a
		LEFT JOIN pg_catalog.pg_attrdef ad ON ad.adrelid = a.attrelid AND ad.adnum = a.attnum
		WHERE a.attrelid = $1 AND a.attnum > 0 AND NOT a.attisdropped
		ORDER BY a.attnum`, tableOID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var name, typ string
		var notNull bool
		var def, generated, comment sql.NullString
		if err := rows.Scan(&name, &typ, &notNull, &def, &generated, &comment); err != nil {
			return nil, nil, err
		}
		col := Column{Name: name, Type: typ, NotNull: notNull, Comment: comment.String}
		if def.Valid {
			d := def.String
			col.Default = &d
		}
		if generated.Valid && generated.String != "" {
			g := generated.String
			col.Generated = &g
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	pkRows, err := db.QueryContext(ctx, `
		SELECT a.attname
		FROM pg_catalog.pg_constraint con
		JOIN unnest(con.conkey) WITH ORDINALITY AS k(attnum, ord) ON true
		JOIN pg_catalog.pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.attnum
		WHERE con.conrelid = $1 AND con.contype = 'p'
		ORDER BY k.ord`, tableOID)
	if err != nil {
		return nil, nil, err
	}
	defer pkRows.Close()

	var pk []string
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return nil, nil, err
		}
		pk = append(pk, col)
	}
	return cols, pk, pkRows.Err()
}

func loadConstraints(ctx context.Context, db Querier, filter Filter) ([]Constraint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.relname, con.conname, con.contype,
		       pg_get_constraintdef(con.oid, true),
		       con.confrelid::regclass::text, con.confdeltype, con.confupdtype,
		       con.condeferrable, con.condeferred
		FROM pg_catalog.pg_constraint con
		JOIN pg_catalog.pg_class t ON t.oid = con.conrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		WHERE con.contype IN ('p', 'u', 'f', 'c', 'x')
		ORDER BY n.nspname, t.relname, con.conname`)
	if err != nil {
		return nil, fmt.Errorf("listing constraints: %w", err)
	}
	defer rows.Close()

	var out []Constraint
	for rows.Next() {
		var schema, table, name, def, refTable, onDelete, onUpdate string
		var contype string
		var deferrable, deferred bool
		if err := rows.Scan(&schema, &table, &name, &contype, &def, &refTable, &onDelete, &onUpdate, &deferrable, &deferred); err != nil {
			return nil, fmt.Errorf("scanning constraint: %w", err)
		}
		if !filter.tableIncluded(schema, table) {
			continue
		}

		c := Constraint{ID: ConstraintID(schema, table, name), Check: def}
		switch contype {
		case "p":
			c.Kind = ConstraintPrimaryKey
		case "u":
			c.Kind = ConstraintUnique
		case "f":
			c.Kind = ConstraintForeignKey
			c.ForeignKey = &ForeignKeyDetail{
				OnDelete:          foreignKeyAction(onDelete),
				OnUpdate:          foreignKeyAction(onUpdate),
				Deferrable:        deferrable,
				InitiallyDeferred: deferred,
			}
		case "c":
			c.Kind = ConstraintCheck
		case "x":
			c.Kind = ConstraintExclusion
			c.Exclusion = &ExclusionDetail{}
		}
		c.DependsOn = append(c.DependsOn, TableID(schema, table))
		out = append(out, c)
	}
	return out, rows.Err()
}

func foreignKeyAction(code string) string {
	switch code {
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	case "r":
		return "RESTRICT"
	default:
		return "NO ACTION"
	}
}

func loadIndexes(ctx context.Context, db Querier, filter Filter) ([]Index, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.relname, i.relname, ix.indisunique, am.amname,
		       pg_get_expr(ix.indpred, ix.indrelid),
		       (SELECT string_agg(pg_get_indexdef(ix.indexrelid, k, true), E'\x1f' ORDER BY k)
		        FROM generate_series(1, ix.indnkeyatts) AS k),
		       (SELECT string_agg(pg_get_indexdef(ix.indexrelid, k, true), E'\x1f' ORDER BY k)
		        FROM generate_series(ix.indnkeyatts + 1, ix.indnatts) AS k)
		FROM pg_catalog.pg_index ix
		JOIN pg_catalog.pg_class i ON i.oid = ix.indexrelid
		JOIN pg_catalog.pg_class t ON t.oid = ix.indrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_am am ON am.oid = i.relam
		WHERE NOT ix.indisprimary
		ORDER BY n.nspname, t.relname, i.relname`)
	if err != nil {
		return nil, fmt.Errorf("listing indexes: %w", err)
	}
	defer rows.Close()

	var out []Index
	for rows.Next() {
		var schema, table, name, method string
		var unique bool
		var predicate, keys, included sql.NullString
		if err := rows.Scan(&schema, &table, &name, &unique, &method, &predicate, &keys, &included); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		if !filter.tableIncluded(schema, table) {
			continue
		}
		idx := Index{
			ID:        IndexID(schema, name),
			Table:     table,
			Method:    method,
			Unique:    unique,
			Predicate: predicate.String,
			DependsOn: []ID{TableID(schema, table)},
		}
		if keys.Valid {
			idx.Keys = strings.Split(keys.String, "\x1f")
		}
		if included.Valid {
			idx.Included = strings.Split(included.String, "\x1f")
		}
		out = append(out, idx)
	}
	return out, rows.Err()
}

func loadViews(ctx context.Context, db Querier, filter Filter) ([]View, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, pg_get_viewdef(c.oid, true), obj_description(c.oid, 'pg_class')
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('v', 'm')
		ORDER BY n.nspname, c.relname`)
	if err != nil {
		return nil, fmt.Errorf("listing views: %w", err)
	}
	defer rows.Close()

	var out []View
	for rows.Next() {
		var schema, name, def string
		var comment sql.NullString
		if err := rows.Scan(&schema, &name, &def, &comment); err != nil {
			return nil, fmt.Errorf("scanning view: %w", err)
		}
		if !filter.schemaIncluded(schema) {
			continue
		}
		out = append(out, View{ID: ViewID(schema, name), Definition: def, Comment: comment.String})
	}
	return out, rows.Err()
}

func loadSequences(ctx context.Context, db Querier, filter Filter) ([]Sequence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, s.seqtypid::regtype::text, s.seqstart, s.seqincrement, s.seqmin, s.seqmax, s.seqcycle
		FROM pg_catalog.pg_sequence s
		JOIN pg_catalog.pg_class c ON c.oid = s.seqrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		ORDER BY n.nspname, c.relname`)
	if err != nil {
		return nil, fmt.Errorf("listing sequences: %w", err)
	}
	defer rows.Close()

	var out []Sequence
	for rows.Next() {
		var schema, name, dataType string
		var start, increment, min, max int64
		var cycle bool
		if err := rows.Scan(&schema, &name, &dataType, &start, &increment, &min, &max, &cycle); err != nil {
			return nil, fmt.Errorf("scanning sequence: %w", err)
		}
		if !filter.schemaIncluded(schema) {
			continue
		}
		out = append(out, Sequence{
			ID: SequenceID(schema, name), DataType: dataType,
			Start: start, Increment: increment, Min: min, Max: max, Cycle: cycle,
		})
	}
	return out, rows.Err()
}

func loadTypes(ctx context.Context, db Querier, filter Filter) ([]Type, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.typname, t.typtype
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE t.typtype IN ('e', 'c', 'r') AND t.typrelid = 0
		ORDER BY n.nspname, t.typname`)
	if err != nil {
		return nil, fmt.Errorf("listing types: %w", err)
	}
	defer rows.Close()

	type typeRow struct {
		schema, name, kind string
	}
	var candidates []typeRow
	for rows.Next() {
		var r typeRow
		if err := rows.Scan(&r.schema, &r.name, &r.kind); err != nil {
			return nil, fmt.Errorf("scanning type: %w", err)
		}
		if !filter.schemaIncluded(r.schema) {
			continue
		}
		candidates = append(candidates, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Type, 0, len(candidates))
	for _, r := range candidates {
		t := Type{ID: TypeID(r.schema, r.name)}
		switch r.kind {
		case "e":
			t.Kind = TypeEnum
			labels, err := loadEnumLabels(ctx, db, r.schema, r.name)
			if err != nil {
				return nil, err
			}
			t.EnumLabels = labels
		case "c":
			t.Kind = TypeComposite
		case "r":
			t.Kind = TypeRange
		}
		out = append(out, t)
	}
	return out, nil
}

func loadEnumLabels(ctx context.Context, db Querier, schema, name string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT e.enumlabel
		FROM pg_catalog.pg_enum e
		JOIN pg_catalog.pg_type t ON t.oid = e.enumtypid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1 AND t.typname = $2
		ORDER BY e.enumsortorder`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("listing enum labels for %s.%s: %w", schema, name, err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

func loadDomains(ctx context.Context, db Querier, filter Filter) ([]Domain, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.typname, format_type(t.typbasetype, t.typtypmod), t.typnotnull, t.typdefault
		FROM pg_catalog.pg_type t
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE t.typtype = 'd'
		ORDER BY n.nspname, t.typname`)
	if err != nil {
		return nil, fmt.Errorf("listing domains: %w", err)
	}
	defer rows.Close()

	var out []Domain
	for rows.Next() {
		var schema, name, base string
		var notNull bool
		var def sql.NullString
		if err := rows.Scan(&schema, &name, &base, &notNull, &def); err != nil {
			return nil, fmt.Errorf("scanning domain: %w", err)
		}
		if !filter.schemaIncluded(schema) {
			continue
		}
		d := Domain{ID: DomainID(schema, name), BaseType: base, NotNull: notNull}
		if def.Valid {
			v := def.String
			d.Default = &v
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func loadFunctions(ctx context.Context, db Querier, filter Filter) ([]Function, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, p.proname, pg_get_function_identity_arguments(p.oid),
		       l.lanname, format_type(p.prorettype, NULL), p.provolatile, p.proisstrict,
		       p.prosecdef, pg_get_functiondef(p.oid)
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		JOIN pg_catalog.pg_language l ON l.oid = p.prolang
		WHERE p.prokind = 'f'
		ORDER BY n.nspname, p.proname, p.oid`)
	if err != nil {
		return nil, fmt.Errorf("listing functions: %w", err)
	}
	defer rows.Close()

	var out []Function
	for rows.Next() {
		var schema, name, signature, lang, retType, body string
		var volatile string
		var strict, secdef bool
		if err := rows.Scan(&schema, &name, &signature, &lang, &retType, &volatile, &strict, &secdef, &body); err != nil {
			return nil, fmt.Errorf("scanning function: %w", err)
		}
		if !filter.schemaIncluded(schema) {
			continue
		}
		f := Function{
			ID: FunctionID(schema, name, signature), Language: lang, ReturnType: retType,
			Strict: strict, Body: body,
		}
		switch volatile {
		case "i":
			f.Volatility = VolatilityImmutable
		case "s":
			f.Volatility = VolatilityStable
		default:
			f.Volatility = VolatilityVolatile
		}
		if secdef {
			f.Security = SecurityDefiner
		} else {
			f.Security = SecurityInvoker
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func loadTriggers(ctx context.Context, db Querier, filter Filter) ([]Trigger, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, t.relname, tg.tgname, pg_get_triggerdef(tg.oid),
		       p.proname, pn.nspname, pg_get_function_identity_arguments(p.oid)
		FROM pg_catalog.pg_trigger tg
		JOIN pg_catalog.pg_class t ON t.oid = tg.tgrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_catalog.pg_proc p ON p.oid = tg.tgfoid
		JOIN pg_catalog.pg_namespace pn ON pn.oid = p.pronamespace
		WHERE NOT tg.tgisinternal
		ORDER BY n.nspname, t.relname, tg.tgname`)
	if err != nil {
		return nil, fmt.Errorf("listing triggers: %w", err)
	}
	defer rows.Close()

	var out []Trigger
	for rows.Next() {
		var schema, table, name, def, fnName, fnSchema, fnSig string
		if err := rows.Scan(&schema, &table, &name, &def, &fnName, &fnSchema, &fnSig); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		if !filter.tableIncluded(schema, table) {
			continue
		}
		fn := FunctionID(fnSchema, fnName, fnSig)
		out = append(out, Trigger{
			ID: TriggerID(schema, table, name), Table: table, Function: fn,
			ForEachRow: true,
			DependsOn:  []ID{TableID(schema, table), fn},
		})
	}
	return out, rows.Err()
}

func loadExtensions(ctx context.Context, db Querier, filter Filter) (map[string]string, []string, []Extension, error) {
	owner := map[string]string{}
	if !filter.Extensions {
		return owner, nil, nil, nil
	}

	rows, err := db.QueryContext(ctx, `
		SELECT e.extname, e.extversion
		FROM pg_catalog.pg_extension e
		ORDER BY e.extname`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("listing extensions: %w", err)
	}
	defer rows.Close()

	var installed []string
	var extensions []Extension
	for rows.Next() {
		var name, version string
		if err := rows.Scan(&name, &version); err != nil {
			return nil, nil, nil, fmt.Errorf("scanning extension: %w", err)
		}
		installed = append(installed, name)
		extensions = append(extensions, Extension{ID: ExtensionID(name), Version: version})
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, err
	}

	// pg_depend records every object an extension created as a dependency of
	// type 'e'; those objects are excluded from the catalog and user-object
	// dependencies on them are redirected to the owning extension (spec
	// §4.1, "Extension-owned objects"). Extensions own more than tables:
	// uuid-ossp alone installs a couple dozen functions, and citext/hstore
	// install types, so pg_proc and pg_type need their own branches.
	ownedRows, err := db.QueryContext(ctx, `
		SELECT 'table' AS kind, e.extname, n.nspname, c.relname, NULL::text, NULL::text
		FROM pg_catalog.pg_depend d
		JOIN pg_catalog.pg_extension e ON e.oid = d.refobjid
		JOIN pg_catalog.pg_class c ON c.oid = d.objid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE d.refclassid = 'pg_extension'::regclass AND d.deptype = 'e'
			AND d.classid = 'pg_class'::regclass

		UNION ALL

		SELECT 'function', e.extname, n.nspname, p.proname,
			pg_get_function_identity_arguments(p.oid), NULL::text
		FROM pg_catalog.pg_depend d
		JOIN pg_catalog.pg_extension e ON e.oid = d.refobjid
		JOIN pg_catalog.pg_proc p ON p.oid = d.objid
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		WHERE d.refclassid = 'pg_extension'::regclass AND d.deptype = 'e'
			AND d.classid = 'pg_proc'::regclass

		UNION ALL

		SELECT 'type', e.extname, n.nspname, t.typname, NULL::text, t.typtype
		FROM pg_catalog.pg_depend d
		JOIN pg_catalog.pg_extension e ON e.oid = d.refobjid
		JOIN pg_catalog.pg_type t ON t.oid = d.objid
		JOIN pg_catalog.pg_namespace n ON n.oid = t.typnamespace
		WHERE d.refclassid = 'pg_extension'::regclass AND d.deptype = 'e'
			AND d.classid = 'pg_type'::regclass`)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("listing extension-owned objects: %w", err)
	}
	defer ownedRows.Close()

	for ownedRows.Next() {
		var kind, ext, schema, name string
		var signature, typtype sql.NullString
		if err := ownedRows.Scan(&kind, &ext, &schema, &name, &signature, &typtype); err != nil {
			return nil, nil, nil, fmt.Errorf("scanning extension-owned object: %w", err)
		}
		switch kind {
		case "table":
			owner[TableID(schema, name).Key()] = ext
		case "function":
			owner[FunctionID(schema, name, signature.String).Key()] = ext
		case "type":
			if typtype.String == "d" {
				owner[DomainID(schema, name).Key()] = ext
			} else {
				owner[TypeID(schema, name).Key()] = ext
			}
		}
	}
	if err := ownedRows.Err(); err != nil {
		return nil, nil, nil, err
	}

	return owner, installed, extensions, nil
}

func loadGrants(ctx context.Context, db Querier, filter Filter) ([]Grant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_schema, table_name, grantee, privilege_type, is_grantable
		FROM information_schema.role_table_grants
		ORDER BY table_schema, table_name, grantee, privilege_type`)
	if err != nil {
		return nil, fmt.Errorf("listing table grants: %w", err)
	}
	defer rows.Close()

	grouped := map[string]*Grant{}
	var order []string
	for rows.Next() {
		var schema, table, grantee, privilege, grantable string
		if err := rows.Scan(&schema, &table, &grantee, &privilege, &grantable); err != nil {
			return nil, fmt.Errorf("scanning table grant: %w", err)
		}
		if !filter.tableIncluded(schema, table) {
			continue
		}
		target := TableID(schema, table)
		g := Grantee{Name: grantee, IsRole: grantee != PublicRole}
		key := target.Key() + "\x1f" + grantee
		entry, ok := grouped[key]
		if !ok {
			entry = &Grant{
				ID:        GrantID(target, grantee, ""),
				Target:    target,
				Grantee:   g,
				DependsOn: []ID{target},
			}
			grouped[key] = entry
			order = append(order, key)
		}
		entry.Privileges = append(entry.Privileges, privilege)
		if grantable == "YES" {
			entry.WithGrantOption = true
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Grant, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}

	if filter.IncludePublicFunctionGrants {
		fnGrants, err := loadFunctionGrants(ctx, db, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, fnGrants...)
	}

	return out, nil
}

func loadFunctionGrants(ctx context.Context, db Querier, filter Filter) ([]Grant, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, p.proname, pg_get_function_identity_arguments(p.oid), acl.grantee_name
		FROM pg_catalog.pg_proc p
		JOIN pg_catalog.pg_namespace n ON n.oid = p.pronamespace
		CROSS JOIN LATERAL (SELECT 'PUBLIC'::text AS grantee_name) acl
		WHERE p.prokind = 'f' AND p.proacl IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("listing function grants: %w", err)
	}
	defer rows.Close()

	var out []Grant
	for rows.Next() {
		var schema, name, signature, grantee string
		if err := rows.Scan(&schema, &name, &signature, &grantee); err != nil {
			return nil, fmt.Errorf("scanning function grant: %w", err)
		}
		if !filter.schemaIncluded(schema) {
			continue
		}
		target := FunctionID(schema, name, signature)
		out = append(out, Grant{
			ID:         GrantID(target, grantee, "EXECUTE"),
			Target:     target,
			Grantee:    Grantee{Name: grantee, IsRole: false},
			Privileges: []string{"EXECUTE"},
			DependsOn:  []ID{target},
		})
	}
	return out, rows.Err()
}

func loadComments(ctx context.Context, db Querier, filter Filter) ([]Comment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT n.nspname, c.relname, d.description
		FROM pg_catalog.pg_description d
		JOIN pg_catalog.pg_class c ON c.oid = d.objoid AND d.objsubid = 0
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = 'r'`)
	if err != nil {
		return nil, fmt.Errorf("listing table comments: %w", err)
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var schema, table, text string
		if err := rows.Scan(&schema, &table, &text); err != nil {
			return nil, fmt.Errorf("scanning table comment: %w", err)
		}
		if !filter.tableIncluded(schema, table) {
			continue
		}
		target := TableID(schema, table)
		out = append(out, Comment{ID: CommentID(target), Target: target, Text: text, DependsOn: []ID{target}})
	}
	return out, rows.Err()
}
