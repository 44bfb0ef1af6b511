package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"github.com/google/uuid"
)

// ObjectStore persists named blobs and returns their location.
type ObjectStore interface {
	Save(ctx context.Context, name string, r io.Reader) (string, error)
}

// Archive writes every event as its own JSON object so the history of a pair
// can be replayed from object storage.
type Archive struct {
	store  ObjectStore
	prefix string
	newID  func() string
}

// NewArchive constructs an archive sink writing under prefix.
func NewArchive(store ObjectStore, prefix string) *Archive {
	return &Archive{store: store, prefix: prefix, newID: uuid.NewString}
}

// Emit stores event.
func (a *Archive) Emit(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := a.store.Save(ctx, a.key(event), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("archive event: %w", err)
	}
	return nil
}

func (a *Archive) key(event Event) string {
	f := event.Payload.Friendship
	name := fmt.Sprintf("%s-%s-%s.json", event.OccurredAt.UTC().Format("20060102T150405.000000000Z"), event.Name, a.newID())
	return path.Join(a.prefix, f.FriendUID1, f.FriendUID2, name)
}
