package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/deprebuddy/pkg/adapters/memory"
	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	data map[string]*domain.Session
	mu   sync.Mutex
}

func (s *SlowStore) Save(ctx context.Context, sess *domain.Session) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string]*domain.Session)
	}
	s.data[sess.ID] = sess.Clone()
	return nil
}

func (s *SlowStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.data[id]; ok {
		return sess.Clone(), nil
	}
	return nil, domain.ErrSessionNotFound
}

func (s *SlowStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *SlowStore) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_UpdateSerializes(t *testing.T) {
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	id := "race-test"

	var wg sync.WaitGroup
	concurrentWrites := 10

	// Every writer appends one turn. Without serialization, read-modify-write loses updates.
	for i := 0; i < concurrentWrites; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := manager.Update(ctx, id, func(_ context.Context, s *domain.Session) error {
				s.History = append(s.History, domain.Turn{Role: domain.RoleUser, Text: "hi"})
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Len(t, s.History, concurrentWrites)
}

func TestManager_GetOrCreate(t *testing.T) {
	// Verify atomic creation
	manager := session.NewManager(&SlowStore{})
	ctx := context.Background()
	id := "atomic-init"

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, isNew, err := manager.GetOrCreate(ctx, id)
			assert.NoError(t, err)
			assert.NotNil(t, s)
			if isNew {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "exactly one caller should create the session")

	s, err := manager.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StageTriage, s.Stage)
	assert.Equal(t, 1, s.NextQuestion)
}

func TestManager_UpdateFailureLeavesSessionUntouched(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, _, err := manager.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = manager.Update(ctx, "s1", func(_ context.Context, s *domain.Session) error {
		s.Stage = domain.StageAssessment
		s.Answers[1] = 3
		return boom
	})
	assert.ErrorIs(t, err, boom)

	s, err := manager.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StageTriage, s.Stage)
	assert.Empty(t, s.Answers)
}

func TestManager_Delete(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, _, err := manager.GetOrCreate(ctx, "s1")
	require.NoError(t, err)

	ok, err := manager.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = manager.Delete(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = manager.Get(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_DistributedLocker(t *testing.T) {
	locker := &countingLocker{}
	manager := session.NewManager(memory.NewStore(), session.WithLocker(locker), session.WithLockTTL(time.Second))
	ctx := context.Background()

	_, _, err := manager.GetOrCreate(ctx, "s1")
	require.NoError(t, err)
	_, err = manager.Update(ctx, "s1", func(context.Context, *domain.Session) error { return nil })
	require.NoError(t, err)

	assert.Equal(t, 2, locker.locks)
	assert.Equal(t, 2, locker.unlocks)
	assert.Equal(t, time.Second, locker.ttl)
}

func TestManager_DifferentSessionsDoNotBlock(t *testing.T) {
	manager := session.NewManager(memory.NewStore())
	ctx := context.Background()

	_, _, err := manager.GetOrCreate(ctx, "b")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	held := make(chan error, 1)
	go func() {
		_, err := manager.Update(ctx, "a", func(context.Context, *domain.Session) error {
			close(entered)
			<-release
			return nil
		})
		held <- err
	}()
	<-entered
	defer func() {
		close(release)
		assert.NoError(t, <-held)
	}()

	done := make(chan error, 1)
	go func() {
		if _, err := manager.Update(ctx, "b", func(_ context.Context, s *domain.Session) error {
			s.History = append(s.History, domain.Turn{Role: domain.RoleUser, Text: "hi"})
			return nil
		}); err != nil {
			done <- err
			return
		}
		_, err := manager.Get(ctx, "b")
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session b waited on the lock held by session a")
	}
}
