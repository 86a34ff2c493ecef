package auth

import (
	"context"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// MemoryStore keeps sessions in process memory. Expired sessions are hidden
// immediately and removed by Sweep.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]Session
	byUser map[string]string
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]Session),
		byUser: make(map[string]string),
		now:    time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.byUser[sess.Username]; ok && prev != sess.ID {
		delete(s.byID, prev)
	}
	s.byID[sess.ID] = sess
	s.byUser[sess.Username] = sess.ID
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[id]
	if !ok || sess.Expired(s.now()) {
		return nil, ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MemoryStore) FindByUser(ctx context.Context, username string) (*Session, error) {
	s.mu.RLock()
	id, ok := s.byUser[username]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Get(ctx, id)
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.remove(id)
	return nil
}

// remove must be called with mu held.
func (s *MemoryStore) remove(id string) {
	sess, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	if s.byUser[sess.Username] == id {
		delete(s.byUser, sess.Username)
	}
}

// Len returns the number of stored sessions, expired ones included until the
// next sweep.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Sweep drops expired sessions and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.byID {
		if sess.Expired(now) {
			s.remove(id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval on a gocron scheduler. onSweep, if
// set, receives the number of sessions left. Stop the returned scheduler on
// shutdown.
func (s *MemoryStore) StartSweeper(interval time.Duration, onSweep func(active int)) (*gocron.Scheduler, error) {
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(interval).Do(func() {
		s.Sweep()
		if onSweep != nil {
			onSweep(s.Len())
		}
	})
	if err != nil {
		return nil, err
	}
	scheduler.StartAsync()
	return scheduler, nil
}
