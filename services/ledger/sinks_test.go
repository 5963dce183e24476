package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"deployledger/pkg/deployment"
)

type capturePublisher struct {
	subject string
	payload []byte
}

func (p *capturePublisher) Publish(_ context.Context, subj string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	p.subject = subj
	p.payload = data
	return nil
}

func TestBusNotifierPublishesSavedEvent(t *testing.T) {
	pub := &capturePublisher{}
	n, err := NewBusNotifier(pub, "deployledger.deployments.saved")
	if err != nil {
		t.Fatalf("NewBusNotifier: %v", err)
	}

	note := Notification{ChainID: 1, Name: "MyToken", Address: common.HexToAddress(tokenAddrA), BlockNumber: 7}
	if err := n.Notify(context.Background(), note); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if pub.subject != "deployledger.deployments.saved" {
		t.Fatalf("subject = %q", pub.subject)
	}

	var evt SavedEvent
	if err := json.Unmarshal(pub.payload, &evt); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if evt.ID == uuid.Nil {
		t.Fatalf("event id missing")
	}
	if evt.MessageID() != evt.ID.String() {
		t.Fatalf("MessageID = %q, want event id", evt.MessageID())
	}
	if evt.Notification != note {
		t.Fatalf("event = %+v, want %+v", evt.Notification, note)
	}
}

func TestNewBusNotifierValidates(t *testing.T) {
	if _, err := NewBusNotifier(nil, "x"); err == nil {
		t.Fatalf("expected error for nil publisher")
	}
	if _, err := NewBusNotifier(&capturePublisher{}, " "); err == nil {
		t.Fatalf("expected error for empty subject")
	}
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) PutBytes(_ context.Context, bucket, key, _ string, data []byte) error {
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[bucket+"/"+key] = append([]byte(nil), data...)
	return nil
}

func (m *memoryStore) GetBytes(_ context.Context, bucket, key string) ([]byte, error) {
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

func TestS3MirrorRoundTrip(t *testing.T) {
	store := &memoryStore{}
	mirror, err := NewS3Mirror(store, "ledger", "/deployments/")
	if err != nil {
		t.Fatalf("NewS3Mirror: %v", err)
	}

	rec := deployment.Record{Name: "MyToken", Address: common.HexToAddress(tokenAddrA), BlockNumber: 3, ChainID: 10}
	data, err := EncodeCanonical(rec)
	if err != nil {
		t.Fatalf("EncodeCanonical: %v", err)
	}
	if err := mirror.Record(context.Background(), rec, data); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if _, ok := store.objects["ledger/deployments/10/MyToken.json"]; !ok {
		t.Fatalf("object not stored under expected key: %v", store.objects)
	}

	got, err := mirror.Fetch(context.Background(), 10, "MyToken")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Address != rec.Address || got.ChainID != 10 || got.BlockNumber != 3 {
		t.Fatalf("Fetch = %+v", got)
	}

	if _, err := mirror.Fetch(context.Background(), 1, "MyToken"); err == nil {
		t.Fatalf("expected error for missing object")
	}
}
