package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// clientName identifies gateway connections in NATS monitoring.
	clientName = "remarketing-gateway"

	// closeFlushTimeout bounds how long Close waits for the server to
	// acknowledge buffered events.
	closeFlushTimeout = 5 * time.Second

	subscriptionBuffer = 64
)

// NATSPublisher publishes change events as JSON on their topic subject.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, append([]nats.Option{nats.Name(clientName)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling %s event: %w", topic, err)
	}
	if err := p.conn.Publish(topic, data); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}

// Close waits until the server has received every buffered event, then
// closes the connection. The connection is closed even when the flush fails.
func (p *NATSPublisher) Close() error {
	err := p.conn.FlushTimeout(closeFlushTimeout)
	p.conn.Close()
	if err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("flushing events: %w", err)
	}
	return nil
}

// NATSSubscriber receives change events for `rmk watch`.
type NATSSubscriber struct {
	conn *nats.Conn
}

// NewNATSSubscriber connects with unlimited reconnects. Extra options such
// as disconnect and reconnect handlers are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.Name(clientName + "-watch"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// Subscribe delivers messages published on any of topics, which may use
// NATS wildcards. No topics means TopicAll. When the consumer falls behind,
// NATS drops messages for this subscription rather than blocking.
func (s *NATSSubscriber) Subscribe(topics ...string) (<-chan Message, func(), error) {
	if len(topics) == 0 {
		topics = []string{TopicAll}
	}

	raw := make(chan *nats.Msg, subscriptionBuffer)
	subs := make([]*nats.Subscription, 0, len(topics))
	unsubscribe := func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}
	for _, topic := range topics {
		sub, err := s.conn.ChanSubscribe(topic, raw)
		if err != nil {
			unsubscribe()
			return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		subs = append(subs, sub)
	}
	// Interest must be registered before another connection publishes.
	if err := s.conn.Flush(); err != nil {
		unsubscribe()
		return nil, nil, fmt.Errorf("registering subscriptions: %w", err)
	}

	out := make(chan Message)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg := <-raw:
				m := Message{Topic: msg.Subject, Data: msg.Data, Received: time.Now()}
				select {
				case out <- m:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			unsubscribe()
			close(done)
		})
	}
	return out, cancel, nil
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
