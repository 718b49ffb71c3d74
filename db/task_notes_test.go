package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNoteLazyCreateThenUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskNoteRepository(setupTestDB(t))

	note, err := repo.GetTaskNoteByTaskID(ctx, "task-1")
	require.NoError(t, err)
	assert.Nil(t, note)

	created, err := repo.UpsertTaskNote(ctx, "task-1", strPtr("doc-1"), strPtr("https://docs.google.com/document/d/doc-1/edit"), "first")
	require.NoError(t, err)
	require.NotNil(t, created.SyncedAt)

	updated, err := repo.UpsertTaskNote(ctx, "task-1", strPtr("doc-1"), strPtr("https://docs.google.com/document/d/doc-1/edit"), "second")
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "second", updated.Content)
	assert.Equal(t, "doc-1", *updated.GoogleDocID)

	all, err := repo.GetAllTaskNotes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestTaskNoteWithoutDocumentHasNoSyncTime(t *testing.T) {
	ctx := context.Background()
	repo := NewTaskNoteRepository(setupTestDB(t))

	note, err := repo.UpsertTaskNote(ctx, "task-2", nil, nil, "draft")
	require.NoError(t, err)
	assert.Nil(t, note.SyncedAt)
	assert.Nil(t, note.GoogleDocID)
}
