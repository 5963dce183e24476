package ledger

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"

	"deployledger/pkg/deployment"
)

// Publisher is the subset of pkg/bus the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, subj string, v any) error
}

// BusNotifier publishes tracking notifications to a message bus subject.
type BusNotifier struct {
	pub     Publisher
	subject string
}

// NewBusNotifier returns a Notifier publishing to subject via pub.
func NewBusNotifier(pub Publisher, subject string) (*BusNotifier, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if strings.TrimSpace(subject) == "" {
		return nil, errors.New("subject is required")
	}
	return &BusNotifier{pub: pub, subject: subject}, nil
}

// SavedEvent is the wire form of a tracking notification.
type SavedEvent struct {
	ID uuid.UUID `json:"id"`
	Notification
}

// MessageID lets the bus deduplicate a retried publish of the same event.
func (e SavedEvent) MessageID() string { return e.ID.String() }

func (n *BusNotifier) Notify(ctx context.Context, note Notification) error {
	return n.pub.Publish(ctx, n.subject, SavedEvent{ID: uuid.New(), Notification: note})
}

// ObjectStore is the subset of pkg/s3 the mirror needs.
type ObjectStore interface {
	PutBytes(ctx context.Context, bucket, key, contentType string, data []byte) error
	GetBytes(ctx context.Context, bucket, key string) ([]byte, error)
}

// S3Mirror copies canonical records to object storage under the same
// {chainId}/{name}.json layout used on disk.
type S3Mirror struct {
	store  ObjectStore
	bucket string
	prefix string
}

// NewS3Mirror returns a Recorder writing to bucket under prefix.
func NewS3Mirror(store ObjectStore, bucket, prefix string) (*S3Mirror, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	return &S3Mirror{store: store, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns the object key of the record for name on chain.
func (m *S3Mirror) Key(chain deployment.ChainID, name string) string {
	return path.Join(m.prefix, chain.String(), name+BroadcastExt)
}

func (m *S3Mirror) Record(ctx context.Context, rec deployment.Record, canonical []byte) error {
	return m.store.PutBytes(ctx, m.bucket, m.Key(rec.ChainID, rec.Name), "application/json", canonical)
}

// Fetch reads the mirrored record for name on chain.
func (m *S3Mirror) Fetch(ctx context.Context, chain deployment.ChainID, name string) (deployment.Record, error) {
	data, err := m.store.GetBytes(ctx, m.bucket, m.Key(chain, name))
	if err != nil {
		return deployment.Record{}, err
	}
	rec, ok := Parse(data, name)
	if !ok {
		return deployment.Record{}, &deployment.NotFoundError{Name: name, ChainID: chain}
	}
	return rec, nil
}
