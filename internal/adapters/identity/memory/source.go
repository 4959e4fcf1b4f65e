package memory

import (
	"context"
	"sync"

	"github.com/bnema/catq/internal/domain"
	"github.com/bnema/catq/internal/ports"
)

// Source is an in-process identity signal. Emissions reach subscribers in
// the order Set was called.
type Source struct {
	emitMu sync.Mutex

	mu          sync.Mutex
	current     domain.Identity
	subscribers map[int]func(domain.Identity)
	nextID      int
}

var _ ports.IdentitySource = (*Source)(nil)

func New(initial domain.Identity) *Source {
	return &Source{
		current:     initial,
		subscribers: map[int]func(domain.Identity){},
	}
}

func (s *Source) Current() domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Set publishes identity to every subscriber, including repeats of the
// current value.
func (s *Source) Set(identity domain.Identity) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	s.mu.Lock()
	s.current = identity
	fns := make([]func(domain.Identity), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(identity)
	}
}

func (s *Source) Subscribe(ctx context.Context, fn func(domain.Identity)) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.emitMu.Lock()
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = fn
	current := s.current
	s.mu.Unlock()

	fn(current)
	s.emitMu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
		})
	}
	stop := context.AfterFunc(ctx, unsubscribe)

	return func() {
		stop()
		unsubscribe()
	}, nil
}

func (s *Source) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers)
}
