package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionStoreContract runs a suite of tests to verify that a SessionStore
// implementation adheres to the defined interface contract.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		// 1. Create a session mid-assessment
		s := domain.NewSession(sessionID, time.Now())
		s.Stage = domain.StageAssessment
		s.Answers[1] = 2
		s.Answers[2] = 3
		s.NextQuestion = 3
		s.History = append(s.History,
			domain.Turn{Role: domain.RoleUser, Text: "hi"},
			domain.Turn{Role: domain.RoleAgent, Text: "hello"},
		)

		// 2. Save
		require.NoError(t, store.Save(ctx, s), "Save should not return error")

		// 3. Load
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, domain.StageAssessment, loaded.Stage)
		assert.Equal(t, map[int]int{1: 2, 2: 3}, loaded.Answers)
		assert.Equal(t, 3, loaded.NextQuestion)
		require.Len(t, loaded.History, 2)
		assert.Equal(t, "hello", loaded.History[1].Text)
	})

	t.Run("Load Returns Isolated Copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Answers[3] = 1
		loaded.CrisisFlagged = true

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.NotContains(t, again.Answers, 3)
		assert.False(t, again.CrisisFlagged)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.NewSession(sessionID, time.Now())))

		require.NoError(t, store.Delete(ctx, sessionID), "Delete should not return error")

		_, err := store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")

		err = store.Delete(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Delete of a missing session should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, domain.NewSession(id1, time.Now())))
		require.NoError(t, store.Save(ctx, domain.NewSession(id2, time.Now())))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
