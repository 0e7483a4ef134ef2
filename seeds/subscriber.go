package seeds

import (
	"context"
	"sync"
)

// subscriber delivers updates in FIFO order. The queue is unbounded so a
// slow reader never blocks publishing or loses updates.
type subscriber struct {
	mu     sync.Mutex
	queue  []Update
	notify chan struct{}
	out    chan Update
}

func newSubscriber() *subscriber {
	return &subscriber{
		notify: make(chan struct{}, 1),
		out:    make(chan Update),
	}
}

func (s *subscriber) push(u Update) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *subscriber) pop() (Update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return Update{}, false
	}

	u := s.queue[0]
	s.queue[0] = Update{}
	s.queue = s.queue[1:]
	return u, true
}

func (s *subscriber) run(ctx context.Context) {
	defer close(s.out)

	for {
		u, ok := s.pop()
		if !ok {
			select {
			case <-s.notify:
				continue
			case <-ctx.Done():
				return
			}
		}

		select {
		case s.out <- u:
		case <-ctx.Done():
			return
		}
	}
}
