package project_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/strategos-engine/internal/model"
	"github.com/rohankatakam/strategos-engine/internal/project"
)

func TestCreate_PersistsIdentityRecord(t *testing.T) {
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)

	p, err := store.Create("home radon mitigation")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.DirExists(t, p.Directory)
	assert.FileExists(t, filepath.Join(p.Directory, "project.json"))
}

func TestGet_CacheHit(t *testing.T) {
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)

	created, err := store.Create("topic")
	require.NoError(t, err)

	got, ok := store.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)
}

func TestGet_LoadsFromDiskOnFreshStore(t *testing.T) {
	root := t.TempDir()
	store, err := project.NewStore(root)
	require.NoError(t, err)

	created, err := store.Create("topic")
	require.NoError(t, err)

	reopened, err := project.NewStore(root)
	require.NoError(t, err)

	got, ok := reopened.Get(created.ID)
	require.True(t, ok)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Topic, got.Topic)
	assert.Equal(t, created.Directory, got.Directory)
}

func TestGet_UnknownIDIsMiss(t *testing.T) {
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)

	_, ok := store.Get("nonexistent")
	assert.False(t, ok)
}

func TestSave_PersistsMutation(t *testing.T) {
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)

	p, err := store.Create("topic")
	require.NoError(t, err)

	p.Touch(model.StatusPlanning, "planning started")
	require.NoError(t, store.Save(p))

	reopened, err := project.NewStore(filepath.Dir(p.Directory))
	require.NoError(t, err)
	got, ok := reopened.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusPlanning, got.Status)
	assert.Equal(t, "planning started", got.StatusDetail)
}

func TestList_ReturnsAllProjectIDs(t *testing.T) {
	store, err := project.NewStore(t.TempDir())
	require.NoError(t, err)

	p1, err := store.Create("topic-1")
	require.NoError(t, err)
	p2, err := store.Create("topic-2")
	require.NoError(t, err)

	ids, err := store.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{p1.ID, p2.ID}, ids)
}
