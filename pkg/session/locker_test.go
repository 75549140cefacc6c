package session_test

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/deprebuddy/pkg/ports"
)

type countingLocker struct {
	mu      sync.Mutex
	locks   int
	unlocks int
	ttl     time.Duration
}

func (l *countingLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks++
	l.ttl = ttl
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocks++
		return nil
	}, nil
}
