package middleware_test

import (
	"context"

	"github.com/aretw0/deprebuddy/pkg/domain"
	"github.com/aretw0/deprebuddy/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Session
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Session),
	}
}

func (s *MockStore) Save(ctx context.Context, sess *domain.Session) error {
	s.data[sess.ID] = sess.Clone()
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	sess, ok := s.data[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return sess.Clone(), nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	if _, ok := s.data[id]; !ok {
		return domain.ErrSessionNotFound
	}
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.SessionStore = (*MockStore)(nil)
