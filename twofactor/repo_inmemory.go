package twofactor

import (
	"context"
	"sync"
)

var _ Repo = (*InMemoryRepo)(nil)

// InMemoryRepo is an in-memory challenge store keyed by session id.
type InMemoryRepo struct {
	mu         sync.Mutex
	challenges map[string]Challenge
}

func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		challenges: make(map[string]Challenge),
	}
}

func (r *InMemoryRepo) Put(_ context.Context, challenge Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenges[challenge.SessionID] = challenge
	return nil
}

func (r *InMemoryRepo) Get(_ context.Context, sessionID string) (Challenge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.challenges[sessionID]
	if !ok {
		return Challenge{}, ErrNotFound
	}
	return c, nil
}

func (r *InMemoryRepo) DecrementAttempts(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.challenges[sessionID]
	if !ok {
		return 0, ErrNotFound
	}
	if c.AttemptsRemaining > 0 {
		c.AttemptsRemaining--
		r.challenges[sessionID] = c
	}
	return c.AttemptsRemaining, nil
}

func (r *InMemoryRepo) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.challenges, sessionID)
	return nil
}
