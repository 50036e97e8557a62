package realtime

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/codewandler/realtime-go/events"
)

// Subscriber receives every server event in arrival order, including the
// local *events.ConnectionClosedEvent that ends the stream. HandleEvent
// runs on the dispatch goroutine; slow subscribers delay all others.
type Subscriber interface {
	HandleEvent(evt events.ServerEvent)
}

type SubscriberFunc func(evt events.ServerEvent)

func (f SubscriberFunc) HandleEvent(evt events.ServerEvent) { f(evt) }

// DiagnosticFunc observes inbound messages that failed to decode.
type DiagnosticFunc func(data []byte, err error)

type subscribers struct {
	mu   sync.Mutex
	next int
	subs map[int]Subscriber
}

func (s *subscribers) add(sub Subscriber) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]Subscriber)
	}
	id := s.next
	s.next++
	s.subs[id] = sub

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

func (s *subscribers) publish(evt events.ServerEvent) {
	s.mu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	// subscription order
	slices.Sort(ids)
	for _, id := range ids {
		s.mu.Lock()
		sub, ok := s.subs[id]
		s.mu.Unlock()
		if ok {
			sub.HandleEvent(evt)
		}
	}
}

// Subscribe registers s and returns the function that removes it.
func (c *Client) Subscribe(s Subscriber) (unsubscribe func()) {
	return c.subs.add(s)
}

// Events returns the inbound events as a sequence. The sequence ends after
// the connection closed, when ctx is done or when the caller stops
// iterating. Events arriving before the iteration started are not replayed.
func (c *Client) Events(ctx context.Context) iter.Seq[events.ServerEvent] {
	return func(yield func(events.ServerEvent) bool) {
		ch := make(chan events.ServerEvent, 64)
		stop := make(chan struct{})
		unsubscribe := c.Subscribe(SubscriberFunc(func(evt events.ServerEvent) {
			select {
			case ch <- evt:
			case <-stop:
			}
		}))
		defer func() {
			close(stop)
			unsubscribe()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-ch:
				if !yield(evt) {
					return
				}
			case <-c.closed:
				for {
					select {
					case evt := <-ch:
						if !yield(evt) {
							return
						}
					default:
						return
					}
				}
			}
		}
	}
}
