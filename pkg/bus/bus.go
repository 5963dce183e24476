// Package bus carries deployment tracking events between ledgerctl, which
// publishes one event per saved record, and ledger-api, which follows them.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/nats-io/nats.go"
)

const (
	// Stream captures every ledger subject so saved events survive until
	// ledger-api consumes them.
	Stream = "DEPLOYLEDGER"
	// Subjects is the wildcard the stream is bound to.
	Subjects = "deployledger.>"
)

// Identified is implemented by events carrying their own id. The id is sent
// as the JetStream message id, so a retried publish is stored once.
type Identified interface {
	MessageID() string
}

// Bus is a JetStream session bound to the ledger stream.
type Bus struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// New connects to the NATS server at url and creates the ledger stream on
// first use.
func New(url string, opts ...nats.Option) (*Bus, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, err
	}
	if err := ensureStream(js); err != nil {
		nc.Close()
		return nil, err
	}
	return &Bus{conn: nc, js: js}, nil
}

func ensureStream(js nats.JetStreamContext) error {
	_, err := js.StreamInfo(Stream)
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return err
	}
	_, err = js.AddStream(&nats.StreamConfig{
		Name:     Stream,
		Subjects: []string{Subjects},
	})
	return err
}

// Close flushes pending publishes and disconnects.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	if err := b.conn.Drain(); err != nil {
		b.conn.Close()
	}
}

// Publish stores event as JSON on subj and waits for the stream ack.
func (b *Bus) Publish(ctx context.Context, subj string, event any) error {
	if b == nil {
		return errors.New("nil bus")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = b.js.Publish(subj, data, publishOptions(ctx, event)...)
	return err
}

func publishOptions(ctx context.Context, event any) []nats.PubOpt {
	opts := []nats.PubOpt{nats.Context(ctx)}
	if ev, ok := event.(Identified); ok && ev.MessageID() != "" {
		opts = append(opts, nats.MsgId(ev.MessageID()))
	}
	return opts
}

// consumer drains its subscription at most once, whether closed by the
// caller or by context cancellation.
type consumer struct {
	sub  *nats.Subscription
	once sync.Once
	err  error
}

func (c *consumer) Close() error {
	c.once.Do(func() { c.err = c.sub.Drain() })
	return c.err
}

// Subscribe follows subj with the durable consumer name durable. Each event
// is passed to fn; an error from fn naks the message for redelivery. The
// consumer stops when ctx is done or the returned Closer is closed.
func (b *Bus) Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error) {
	if b == nil {
		return nil, errors.New("nil bus")
	}
	if fn == nil {
		return nil, errors.New("nil handler")
	}

	sub, err := b.js.Subscribe(subj, func(msg *nats.Msg) {
		if err := fn(ctx, msg.Data); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, nats.Durable(durable), nats.ManualAck(), nats.AckExplicit())
	if err != nil {
		return nil, err
	}

	c := &consumer{sub: sub}
	go func() {
		<-ctx.Done()
		_ = c.Close()
	}()
	return c, nil
}
