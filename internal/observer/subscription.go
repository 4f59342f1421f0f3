package observer

import (
	"context"
	"sync"
)

// Subscription is one listener on an observer's event stream.
type Subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
	obs  *Observer

	// closed is only touched on the delivery goroutine.
	closed bool
}

// C returns the event channel. It is closed after Unsubscribe or when the
// observer is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Unsubscribe detaches the subscription. It is safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		close(s.done)
		if s.obs != nil {
			s.obs.exec.dispatch(func() { s.obs.removeSubscriber(s) })
		}
	})
}

// Subscribe registers a listener. A buffer of zero or less uses the
// configured subscriber buffer. Subscribing to a closed observer returns a
// subscription whose channel is already closed.
func (o *Observer) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = o.cfg.SubscriberBuffer
	}
	sub := &Subscription{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
		obs:  o,
	}
	if !o.exec.dispatchWait(context.Background(), func() { o.subs = append(o.subs, sub) }) {
		sub.closed = true
		close(sub.ch)
	}
	return sub
}

// removeSubscriber runs on the delivery goroutine.
func (o *Observer) removeSubscriber(sub *Subscription) {
	for i, s := range o.subs {
		if s == sub {
			o.subs = append(o.subs[:i], o.subs[i+1:]...)
			break
		}
	}
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// closeSubscribers runs on the delivery goroutine.
func (o *Observer) closeSubscribers() {
	for _, s := range o.subs {
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
	}
	o.subs = nil
}

// deliver hands ev to every subscriber in registration order without
// blocking. A reading that finds a full buffer is dropped for that subscriber.
// Faults and StreamEnded displace the oldest buffered event instead, so the
// terminal event always reaches every live subscriber.
func (o *Observer) deliver(ev Event) {
	for _, s := range o.subs {
		if s.closed || s.unsubscribed() {
			continue
		}
		select {
		case s.ch <- ev:
			continue
		default:
		}
		if ev.Kind == KindReading {
			o.metrics.SampleDropped(DropSubscriberFull)
			o.logger.Debug("subscriber buffer full, dropping reading", "reading_id", ev.Reading.ID)
			continue
		}
		s.displace(ev, o.metrics)
	}
}

func (s *Subscription) unsubscribed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// displace sends ev, evicting buffered events until it fits. Only the
// delivery goroutine sends on s.ch, so the loop ends once one slot is free.
func (s *Subscription) displace(ev Event, m Metrics) {
	for {
		select {
		case s.ch <- ev:
			return
		default:
		}
		select {
		case old := <-s.ch:
			if old.Kind == KindReading {
				m.SampleDropped(DropSubscriberFull)
			}
		default:
		}
	}
}
