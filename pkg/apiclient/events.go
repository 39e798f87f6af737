package apiclient

import "time"

// EventKind identifies a session lifecycle event published by the client.
type EventKind string

const (
	// EventTokensRefreshed is published after a refreshed pair has been persisted.
	EventTokensRefreshed EventKind = "tokens_refreshed"
	// EventReauthenticationRequired is published after a failed refresh cleared the stored pair.
	// Subscribers route the user back to a login entry point.
	EventReauthenticationRequired EventKind = "reauthentication_required"
)

// Event describes a session lifecycle change.
type Event struct {
	Kind       EventKind
	OccurredAt time.Time
	Err        error
}

// EventSink receives client events. *notify.Bus[Event] satisfies it.
type EventSink interface {
	Publish(event Event)
}

type noopSink struct{}

func (noopSink) Publish(Event) {}
