package schemaservice

import (
	"context"
	"testing"

	"github.com/nodespace/core/internal/store"
	"github.com/nodespace/core/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFieldBumpsVersionAndPersistsNewUserField(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.AddField(ctx, "project", schema.Field{Name: "owner", Kind: schema.FieldString})
	require.NoError(t, err)

	def, err := schemas.GetSchema(ctx, "project")
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, 2, def.Version)
	f, ok := def.FieldByName("owner")
	require.True(t, ok)
	assert.Equal(t, schema.ProtectionUser, f.Protection)
}

func TestAddFieldRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.AddField(ctx, "project", schema.Field{Name: "status", Kind: schema.FieldString})
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestRemoveFieldRejectsCoreField(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.RemoveField(ctx, "project", "status")
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestRemoveFieldDropsUserField(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)
	_, err = schemas.AddField(ctx, "project", schema.Field{Name: "owner", Kind: schema.FieldString})
	require.NoError(t, err)

	_, err = schemas.RemoveField(ctx, "project", "owner")
	require.NoError(t, err)

	def, err := schemas.GetSchema(ctx, "project")
	require.NoError(t, err)
	_, ok := def.FieldByName("owner")
	assert.False(t, ok)
}

func TestExtendEnumFieldAppendsUserValue(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.ExtendEnumField(ctx, "project", "status", "archived")
	require.NoError(t, err)

	def, err := schemas.GetSchema(ctx, "project")
	require.NoError(t, err)
	f, ok := def.FieldByName("status")
	require.True(t, ok)
	assert.True(t, schema.IsValidEnumValue(f, "archived"))
}

func TestRemoveEnumValueRejectsCoreValue(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.RemoveEnumValue(ctx, "project", "status", "open")
	var invalidUpdate *store.InvalidUpdateError
	assert.ErrorAs(t, err, &invalidUpdate)
}

func TestRemoveEnumValueRemovesUserValue(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)
	_, err = schemas.ExtendEnumField(ctx, "project", "status", "archived")
	require.NoError(t, err)

	_, err = schemas.RemoveEnumValue(ctx, "project", "status", "archived")
	require.NoError(t, err)

	def, err := schemas.GetSchema(ctx, "project")
	require.NoError(t, err)
	f, _ := def.FieldByName("status")
	assert.False(t, schema.IsValidEnumValue(f, "archived"))
}

func TestSyncSchemaToDatabaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	schemas, _ := newTestService(t)

	_, err := schemas.CreateSchema(ctx, projectDef())
	require.NoError(t, err)

	_, err = schemas.SyncSchemaToDatabase(ctx, "project")
	require.NoError(t, err)

	def, err := schemas.GetSchema(ctx, "project")
	require.NoError(t, err)
	assert.Equal(t, 2, def.Version)
}
