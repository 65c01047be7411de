package results

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultSubject is the NATS subject match events are published on.
const DefaultSubject = "pong.match.finished"

// LedgerStore persists matches in a database.
type LedgerStore interface {
	InsertMatch(ctx context.Context, m Match) error
}

// LedgerRecorder writes matches to a LedgerStore.
type LedgerRecorder struct {
	Store LedgerStore
}

// Record implements Recorder.
func (l LedgerRecorder) Record(ctx context.Context, m Match) error {
	if err := l.Store.InsertMatch(ctx, m); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// ObjectStore stores blobs under a key.
type ObjectStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
}

// ArchiveRecorder writes each match as a JSON object keyed by date, room id and round.
type ArchiveRecorder struct {
	Store  ObjectStore
	Prefix string
}

// Key returns the object key for m, e.g. matches/2025/03/<roomId>-r2.json.
func (a ArchiveRecorder) Key(m Match) string {
	prefix := a.Prefix
	if prefix == "" {
		prefix = "matches"
	}
	played := m.PlayedAt.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%s-r%d.json", prefix, played.Year(), int(played.Month()), m.RoomID, m.Round)
}

// Record implements Recorder.
func (a ArchiveRecorder) Record(ctx context.Context, m Match) error {
	body, err := json.Marshal(NewDocument(m))
	if err != nil {
		return fmt.Errorf("archive encode: %w", err)
	}
	if err := a.Store.PutObject(ctx, a.Key(m), body, "application/json"); err != nil {
		return fmt.Errorf("archive: %w", err)
	}
	return nil
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// EventRecorder publishes each match as a JSON event.
type EventRecorder struct {
	Publisher Publisher
	Subject   string
}

// Record implements Recorder.
func (e EventRecorder) Record(_ context.Context, m Match) error {
	subject := e.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	body, err := json.Marshal(NewDocument(m))
	if err != nil {
		return fmt.Errorf("event encode: %w", err)
	}
	if err := e.Publisher.Publish(subject, body); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}
