package pubsub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/escrowhq/escrow/model"
)

const listenerBuffer = 64

// Service fans a single redis subscription out to any number of in-process
// listeners. The underlying redis subscription is opened when the first
// listener registers and torn down when the last one unsubscribes. Construct
// one per process and inject it; there is no package-level instance.
type Service struct {
	client  redis.UniversalClient
	channel string

	mu        sync.Mutex
	listeners map[int]chan model.StatusChangeEvent
	nextID    int
	sub       *redis.PubSub
	done      chan struct{}
}

func NewService(client redis.UniversalClient, channel string) *Service {
	return &Service{
		client:    client,
		channel:   channel,
		listeners: make(map[int]chan model.StatusChangeEvent),
	}
}

// Publish sends one status-change event to the channel. Errors are returned
// to the caller but never affect the transition that produced the event.
func (s *Service) Publish(ctx context.Context, event model.StatusChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, payload).Err()
}

// Subscribe registers a listener and returns its event channel together with
// an unsubscribe function. The first subscriber opens the redis subscription;
// unsubscribing the last one closes it.
func (s *Service) Subscribe(ctx context.Context) (<-chan model.StatusChangeEvent, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.listeners) == 0 {
		sub := s.client.Subscribe(ctx, s.channel)
		// Force the subscription to be established before fan-out starts.
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return nil, nil, err
		}
		s.sub = sub
		s.done = make(chan struct{})
		go s.pump(sub.Channel(), s.done)
	}

	id := s.nextID
	s.nextID++
	ch := make(chan model.StatusChangeEvent, listenerBuffer)
	s.listeners[id] = ch

	unsubscribe := func() { s.remove(id) }
	return ch, unsubscribe, nil
}

// Stop tears down the redis subscription and closes every listener channel.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.listeners {
		close(ch)
		delete(s.listeners, id)
	}
	s.closeSubLocked()
}

func (s *Service) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.listeners[id]
	if !ok {
		return
	}
	close(ch)
	delete(s.listeners, id)

	if len(s.listeners) == 0 {
		s.closeSubLocked()
	}
}

func (s *Service) closeSubLocked() {
	if s.sub == nil {
		return
	}
	if err := s.sub.Close(); err != nil {
		logrus.Error("closing pubsub subscription: ", err)
	}
	s.sub = nil
	close(s.done)
	s.done = nil
}

func (s *Service) pump(messages <-chan *redis.Message, done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event model.StatusChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				logrus.Error("bad pubsub payload: ", err)
				continue
			}
			s.fanOut(event)
		}
	}
}

func (s *Service) fanOut(event model.StatusChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range s.listeners {
		select {
		case ch <- event:
		default:
			// Slow listeners drop events rather than block the pump.
		}
	}
}
