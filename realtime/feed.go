package realtime

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event types mirror row-level change notifications from the backend.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// Event is one row-level change. New carries the row after the change
// (insert/update); Old carries what is known about the row before it
// (delete, and updates when the store had it at hand).
type Event struct {
	Type       EventType       `json:"type"`
	Collection string          `json:"collection"`
	New        json.RawMessage `json:"new,omitempty"`
	Old        json.RawMessage `json:"old,omitempty"`
}

// Record returns the payload most useful for filtering: the new row when
// present, otherwise the old one.
func (e Event) Record() json.RawMessage {
	if len(e.New) > 0 {
		return e.New
	}
	return e.Old
}

// Decode unmarshals the event's record into dest.
func (e Event) Decode(dest any) error {
	rec := e.Record()
	if len(rec) == 0 {
		return fmt.Errorf("event has no record payload")
	}
	return json.Unmarshal(rec, dest)
}

// Filter matches events whose record carries every listed field with the
// given stringified value. Backend rows are loosely typed at this boundary,
// so values compare by their string form.
type Filter map[string]string

// Matches reports whether the event's record satisfies the filter.
func (f Filter) Matches(e Event) bool {
	if len(f) == 0 {
		return true
	}
	rec := e.Record()
	if len(rec) == 0 {
		return false
	}
	var row map[string]any
	if err := json.Unmarshal(rec, &row); err != nil {
		return false
	}
	for field, want := range f {
		got, ok := row[field]
		if !ok {
			return false
		}
		if fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// Subscription delivers matching events until closed. Events are dropped,
// not buffered without bound, when the consumer falls behind.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

// ChangeFeed is the consumed change-notification interface: subscribe to
// row-level changes on one collection, optionally filtered.
type ChangeFeed interface {
	Subscribe(ctx context.Context, collection string, filter Filter, types ...EventType) (Subscription, error)
}

// Publisher is the producing half: stores emit an event after every
// successful mutation.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus carries ephemeral payloads that are not row changes: live-session
// chat and presence heartbeats. Payloads vanish if nobody is subscribed.
type Bus interface {
	PublishRaw(ctx context.Context, channel string, payload []byte) error
	SubscribeRaw(ctx context.Context, channel string) (BusSubscription, error)
}

// BusSubscription delivers raw payloads from one bus channel.
type BusSubscription interface {
	Messages() <-chan []byte
	Close() error
}

func typeMatches(t EventType, types []EventType) bool {
	if len(types) == 0 {
		return true
	}
	for _, want := range types {
		if t == want {
			return true
		}
	}
	return false
}
