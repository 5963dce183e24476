package ledgerapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"deployledger/services/ledger"
)

const (
	trackerDurable   = "ledger-api-tracker"
	recentEventsSize = 50
)

// Subscriber is the subset of pkg/bus the tracker needs.
type Subscriber interface {
	Subscribe(ctx context.Context, subj, durable string, fn func(ctx context.Context, data []byte) error) (io.Closer, error)
}

// Tracker consumes saved-deployment notifications, counts them per chain and
// keeps the most recent ones in memory.
type Tracker struct {
	bus     Subscriber
	subject string
	logger  zerolog.Logger
	saved   *prometheus.CounterVec

	mu     sync.Mutex
	sub    io.Closer
	recent []ledger.SavedEvent
}

// NewTracker builds a Tracker and registers its counter with reg.
func NewTracker(bus Subscriber, subject string, reg prometheus.Registerer, logger zerolog.Logger) (*Tracker, error) {
	if bus == nil {
		return nil, errors.New("bus is required")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("subject is required")
	}
	saved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "deployledger",
		Subsystem: "tracker",
		Name:      "deployments_saved_total",
		Help:      "Saved-deployment notifications received, by chain id.",
	}, []string{"chain_id"})
	if reg != nil {
		if err := reg.Register(saved); err != nil {
			return nil, err
		}
	}
	return &Tracker{bus: bus, subject: subject, logger: logger, saved: saved}, nil
}

// Start subscribes to the notification subject until ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) error {
	sub, err := t.bus.Subscribe(ctx, t.subject, trackerDurable, t.handle)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.sub = sub
	t.mu.Unlock()
	return nil
}

// Close stops the subscription if one was started.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sub == nil {
		return nil
	}
	err := t.sub.Close()
	t.sub = nil
	return err
}

// Recent returns the latest notifications, newest first.
func (t *Tracker) Recent() []ledger.SavedEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]ledger.SavedEvent, 0, len(t.recent))
	for i := len(t.recent) - 1; i >= 0; i-- {
		out = append(out, t.recent[i])
	}
	return out
}

func (t *Tracker) handle(_ context.Context, data []byte) error {
	var evt ledger.SavedEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	if evt.ID == uuid.Nil {
		return errors.New("id missing from event")
	}
	if evt.Name == "" {
		return errors.New("contract_name missing from event")
	}

	t.saved.WithLabelValues(evt.ChainID.String()).Inc()

	t.mu.Lock()
	t.recent = append(t.recent, evt)
	if len(t.recent) > recentEventsSize {
		t.recent = t.recent[len(t.recent)-recentEventsSize:]
	}
	t.mu.Unlock()

	t.logger.Info().
		Str("contract", evt.Name).
		Stringer("chain_id", evt.ChainID).
		Str("address", evt.Address.Hex()).
		Msg("deployment saved")
	return nil
}
