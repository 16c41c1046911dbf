package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDefinition() Definition {
	return Definition{
		TypeName: "project",
		Version:  1,
		Fields: []Field{
			{Name: "status", Kind: FieldEnum, Extensible: true, CoreValues: []string{"open", "closed"}, Indexed: true},
			{Name: "priority", Kind: FieldNumber},
			{Name: "due", Kind: FieldDate},
			{Name: "tags", Kind: FieldArray, ElementKind: FieldString},
		},
		Relationships: []Relationship{
			{Name: "blocks", TargetType: "project", Cardinality: "many"},
		},
	}
}

func TestCreateSpokeTableDDL(t *testing.T) {
	stmts := CreateSpokeTableDDL(sampleDefinition())
	require.NotEmpty(t, stmts)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS spoke_project")
	assert.Contains(t, stmts[0], "f_status TEXT")
	assert.Contains(t, stmts[0], "f_priority REAL")
	assert.Contains(t, stmts[0], "f_due INTEGER")

	var indexed bool
	for _, s := range stmts[1:] {
		if s == "CREATE INDEX IF NOT EXISTS idx_spoke_project_status ON spoke_project (f_status)" {
			indexed = true
		}
	}
	assert.True(t, indexed, "expected an index statement for the Indexed status field")
}

func TestSyncSpokeTableDDLIsAdditive(t *testing.T) {
	prior := sampleDefinition()
	updated := sampleDefinition()
	updated.Fields = append(updated.Fields, Field{Name: "owner", Kind: FieldString})

	stmts := SyncSpokeTableDDL(prior, updated)
	require.Len(t, stmts, 1)
	assert.Contains(t, stmts[0], "ALTER TABLE spoke_project ADD COLUMN f_owner TEXT")
}

func TestSyncSpokeTableDDLNoChangeNoStatements(t *testing.T) {
	d := sampleDefinition()
	assert.Empty(t, SyncSpokeTableDDL(d, d))
}

func TestCreateRelationTableDDL(t *testing.T) {
	d := sampleDefinition()
	rel, ok := d.RelationshipByName("blocks")
	require.True(t, ok)

	stmts := CreateRelationTableDDL(d, rel)
	require.Len(t, stmts, 3)
	assert.Contains(t, stmts[0], "CREATE TABLE IF NOT EXISTS project_blocks_project")
	assert.Contains(t, stmts[1], "UNIQUE INDEX")
}

func TestValidateFieldNameRejectsReserved(t *testing.T) {
	err := ValidateFieldName("has_child", "")
	assert.Error(t, err)
}

func TestValidateFieldNameNamespacing(t *testing.T) {
	assert.NoError(t, ValidateFieldName("plugin:foo:bar", "plugin:foo"))
	assert.Error(t, ValidateFieldName("plugin:foo:bar", "plugin:other"))
	assert.NoError(t, ValidateFieldName("plain", ""))
}

func TestInsertColumnsMissingRequiredField(t *testing.T) {
	d := Definition{
		TypeName: "t",
		Fields:   []Field{{Name: "name", Kind: FieldString, Required: true}},
	}
	_, _, err := InsertColumns(d, map[string]any{})
	assert.Error(t, err)
}

func TestInsertColumnsEncodesValues(t *testing.T) {
	d := sampleDefinition()
	cols, vals, err := InsertColumns(d, map[string]any{
		"status":   "open",
		"priority": float64(2),
		"due":      "2025-10-13T00:00:00Z",
		"tags":     []any{"a", "b"},
	})
	require.NoError(t, err)
	require.Len(t, cols, 4)
	assert.Equal(t, "open", vals[0])
	assert.Equal(t, float64(2), vals[1])
	assert.IsType(t, int64(0), vals[2])
	assert.Equal(t, `["a","b"]`, vals[3])
}

func TestEnumMutation(t *testing.T) {
	f := Field{Name: "status", Kind: FieldEnum, Extensible: true, CoreValues: []string{"open"}}
	require.NoError(t, AddEnumValue(&f, "blocked"))
	assert.True(t, IsValidEnumValue(f, "blocked"))

	assert.Error(t, AddEnumValue(&f, "open"), "duplicate value")
	assert.Error(t, RemoveEnumValue(&f, "open"), "cannot remove core value")
	require.NoError(t, RemoveEnumValue(&f, "blocked"))
	assert.False(t, IsValidEnumValue(f, "blocked"))
}
