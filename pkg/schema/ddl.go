package schema

import (
	"fmt"
	"strings"

	"github.com/nodespace/core/pkg/nodeid"
)

// sqlType maps a field kind to the SQLite column affinity used to store it.
// Dates are stored as INTEGER unix-seconds to match the hub's created_at/
// modified_at convention; arrays, objects and enums-of-many are stored as
// TEXT-encoded JSON; records store the referenced node id as TEXT.
func sqlType(kind FieldKind) string {
	switch kind {
	case FieldNumber:
		return "REAL"
	case FieldBoolean:
		return "INTEGER"
	case FieldDate:
		return "INTEGER"
	case FieldArray, FieldObject:
		return "TEXT"
	case FieldRecord:
		return "TEXT"
	case FieldEnum, FieldString:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func columnName(field Field) string {
	return "f_" + field.Name
}

func indexName(table, path string) string {
	return "idx_" + table + "_" + strings.ReplaceAll(path, ".", "_")
}

// CreateSpokeTableDDL returns the statements that create the spoke table for
// d's typed fields, plus one index statement per Indexed field. Nested
// object/array-of-object fields get a single JSON column and a json_extract
// expression index instead of a physical column per nested path.
func CreateSpokeTableDDL(d Definition) []string {
	table := d.SpokeTableName()
	cols := []string{"node TEXT PRIMARY KEY REFERENCES nodes(id) ON DELETE CASCADE"}
	var stmts []string

	for _, f := range d.Fields {
		col := fmt.Sprintf("%s %s", columnName(f), sqlType(f.Kind))
		if f.Required && f.Default == nil {
			col += " NOT NULL"
		}
		cols = append(cols, col)

		if f.Indexed {
			switch f.Kind {
			case FieldObject, FieldArray:
				stmts = append(stmts, fmt.Sprintf(
					"CREATE INDEX IF NOT EXISTS %s ON %s (json_extract(%s, '$'))",
					indexName(table, f.Name), table, columnName(f)))
			default:
				unique := ""
				if f.Unique {
					unique = "UNIQUE "
				}
				stmts = append(stmts, fmt.Sprintf(
					"CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
					unique, indexName(table, f.Name), table, columnName(f)))
			}
		}
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", table, strings.Join(cols, ",\n  "))
	return append([]string{create}, stmts...)
}

// SyncSpokeTableDDL diffs prior against updated and returns the additive
// statements needed to bring the spoke table in line: new columns as
// ALTER TABLE ADD COLUMN, new indexes as CREATE INDEX IF NOT EXISTS. Core
// fields present in prior are never dropped or retyped, matching the
// always-additive schema-evolution rule; dropped user fields are left as
// orphan columns (SQLite cannot cheaply drop columns with PRAGMA
// legacy_alter_table compatibility in play) rather than destructive DROP
// COLUMN statements.
func SyncSpokeTableDDL(prior, updated Definition) []string {
	table := updated.SpokeTableName()
	var stmts []string

	existing := make(map[string]bool, len(prior.Fields))
	for _, f := range prior.Fields {
		existing[f.Name] = true
	}

	for _, f := range updated.Fields {
		if existing[f.Name] {
			continue
		}
		col := fmt.Sprintf("%s %s", columnName(f), sqlType(f.Kind))
		stmts = append(stmts, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, col))
		if f.Indexed {
			stmts = append(stmts, fmt.Sprintf(
				"CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
				indexName(table, f.Name), table, columnName(f)))
		}
	}
	return stmts
}

// CreateRelationTableDDL returns the statements that create the relation
// edge table for one relationship of d: an (in, out) pair plus
// created_at/version bookkeeping plus one typed column per edge field.
func CreateRelationTableDDL(d Definition, rel Relationship) []string {
	table := RelationTableName(d.TypeName, rel)
	cols := []string{
		"in_node TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE",
		"out_node TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE",
		"created_at INTEGER NOT NULL",
		"version INTEGER NOT NULL DEFAULT 1",
	}
	for _, f := range rel.Fields {
		cols = append(cols, fmt.Sprintf("%s %s", columnName(f), sqlType(f.Kind)))
	}

	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", table, strings.Join(cols, ",\n  "))
	uniqueIdx := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (in_node, out_node)",
		indexName(table, "in_out"), table)
	outIdx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (out_node)",
		indexName(table, "out"), table)

	return []string{create, uniqueIdx, outIdx}
}

// ValidateFieldName rejects names that collide with reserved relationship/
// link-field names or that use a namespace prefix reserved for a different
// origin than the one supplied (own-namespace additions, like
// "plugin:foo:bar" added by plugin "foo", are allowed).
func ValidateFieldName(name, namespace string) error {
	if name == "" {
		return fmt.Errorf("schema: field name must not be empty")
	}
	if nodeid.IsReservedRelationshipName(name) {
		return fmt.Errorf("schema: field name %q is reserved", name)
	}
	if strings.Contains(name, ":") {
		if namespace == "" || !strings.HasPrefix(name, namespace+":") {
			return fmt.Errorf("schema: namespaced field %q does not belong to namespace %q", name, namespace)
		}
	}
	return nil
}

// ValidateRelationshipName rejects relationship names that collide with the
// built-in edge kinds.
func ValidateRelationshipName(name string) error {
	if name == "" {
		return fmt.Errorf("schema: relationship name must not be empty")
	}
	if nodeid.IsReservedRelationshipName(name) {
		return fmt.Errorf("schema: relationship name %q is reserved", name)
	}
	return nil
}
