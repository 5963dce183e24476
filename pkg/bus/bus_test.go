package bus

import (
	"context"
	"testing"
)

type idEvent string

func (e idEvent) MessageID() string { return string(e) }

func TestPublishOptions(t *testing.T) {
	tests := []struct {
		name  string
		event any
		want  int
	}{
		{name: "plain payload", event: map[string]int{"block": 1}, want: 1},
		{name: "identified event", event: idEvent("3f1c"), want: 2},
		{name: "empty id", event: idEvent(""), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(publishOptions(context.Background(), tt.event)); got != tt.want {
				t.Fatalf("publishOptions() returned %d options, want %d", got, tt.want)
			}
		})
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	b.Close()
	if err := b.Publish(context.Background(), "deployledger.deployments.saved", nil); err == nil {
		t.Fatalf("expected error publishing on nil bus")
	}
	if _, err := b.Subscribe(context.Background(), "deployledger.deployments.saved", "d", func(context.Context, []byte) error { return nil }); err == nil {
		t.Fatalf("expected error subscribing on nil bus")
	}
}
